package microkv

import (
	"encoding/json"
	"fmt"
	"strings"

	"southwinds.dev/microkv/internal/misc"
)

// Namespace is a non-owning view scoped to one logical key space of a
// shared Store. It prefixes every logical key with its tag before
// delegating to the store's map; encryption is untouched, the namespace is
// purely an addressing convention. An empty tag is the default, unscoped
// namespace.
//
// A Namespace holds a reference to the Store it was derived from and must
// not outlive it.
type Namespace struct {
	tag   string
	store *Store
}

// Tag returns the namespace tag.
func (n *Namespace) Tag() string {
	return n.tag
}

// Key composes the storage key for a logical key: the logical key verbatim
// for the default namespace, "<tag>@<key>" otherwise. Scoped views forbid
// the delimiter in both the tag and the key; without that restriction two
// different namespace/key splits could address the same entry. The default
// namespace stores keys verbatim, so composite keys remain addressable
// through the unscoped API.
func (n *Namespace) Key(logical string) (string, error) {
	if n.tag == "" {
		return logical, nil
	}
	if strings.Contains(n.tag, misc.NamespaceDelimiter) {
		return "", errSerialization(fmt.Sprintf("namespace %q contains reserved delimiter %q", n.tag, misc.NamespaceDelimiter), nil)
	}
	if strings.Contains(logical, misc.NamespaceDelimiter) {
		return "", errSerialization(fmt.Sprintf("key %q contains reserved delimiter %q", logical, misc.NamespaceDelimiter), nil)
	}
	return n.tag + misc.NamespaceDelimiter + logical, nil
}

// prefix returns the composite-key prefix this namespace matches. Empty for
// the default namespace, which matches everything.
func (n *Namespace) prefix() string {
	if n.tag == "" {
		return ""
	}
	return n.tag + misc.NamespaceDelimiter
}

// Get retrieves and decodes the value under key. Absent keys yield
// ErrKeyNotFound.
func (n *Namespace) Get(key string, out interface{}) error {
	found, err := n.Load(key, out)
	if err != nil {
		return err
	}
	if !found {
		return errKeyNotFound(key)
	}
	return nil
}

// Load retrieves and decodes the value under key, reporting presence
// instead of failing on absent keys. Decryption happens after the read
// lock is released; the lock only covers the map access.
func (n *Namespace) Load(key string, out interface{}) (bool, error) {
	ck, err := n.Key(key)
	if err != nil {
		return false, err
	}

	s := n.store
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return false, errPoisoned()
	}
	// capture the secret under the lock: Close and Destroy drop it
	secret := s.secret
	blob, ok := s.data.get(ck)
	if ok {
		// copy under the lock: a concurrent clear wipes blobs in place
		blob = append([]byte(nil), blob...)
	}
	s.mu.RUnlock()

	if !ok {
		return false, nil
	}

	payload := blob
	if secret != nil {
		payload, err = decryptValue(blob, secret, s.nonce)
		if err != nil {
			_ = s.audit.Log("get", false, map[string]interface{}{"key": ck})
			return false, err
		}
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return false, errSerialization("cannot deserialize into destination type", err)
	}
	_ = s.audit.Log("get", true, map[string]interface{}{"key": ck})
	return true, nil
}

// Put serializes value, encrypts it when a password is set, and stores it
// under the composite key. With auto-commit enabled the store is persisted
// after the write lock is released.
func (n *Namespace) Put(key string, value interface{}) error {
	ck, err := n.Key(key)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return errSerialization("cannot serialize value", err)
	}

	s := n.store
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errPoisoned()
	}
	// capture the secret under the lock: Close and Destroy drop it
	secret := s.secret
	s.mu.RUnlock()

	blob := payload
	if secret != nil {
		blob, err = encryptValue(payload, secret, s.nonce)
		if err != nil {
			return err
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errPoisoned()
	}
	s.data.put(ck, blob)
	auto := s.autoCommit
	s.mu.Unlock()

	_ = s.audit.Log("put", true, map[string]interface{}{"key": ck, "bytes": len(blob)})

	if auto {
		return s.Commit()
	}
	return nil
}

// Delete removes the entry under key. Deleting an absent key is not an
// error.
func (n *Namespace) Delete(key string) error {
	ck, err := n.Key(key)
	if err != nil {
		return err
	}

	s := n.store
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errPoisoned()
	}
	removed := s.data.delete(ck)
	auto := s.autoCommit
	s.mu.Unlock()

	_ = s.audit.Log("delete", removed, map[string]interface{}{"key": ck})

	if auto {
		return s.Commit()
	}
	return nil
}

// Exists reports whether a live entry is stored under key.
func (n *Namespace) Exists(key string) (bool, error) {
	ck, err := n.Key(key)
	if err != nil {
		return false, err
	}

	s := n.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, errPoisoned()
	}
	return s.data.exists(ck), nil
}

// Keys returns the composite keys belonging to this namespace in insertion
// order. The default namespace returns every key.
func (n *Namespace) Keys() ([]string, error) {
	return n.filteredKeys(func(m *storeMap) []string { return m.keys() })
}

// SortedKeys returns the composite keys belonging to this namespace in
// lexicographic order; the canonical insertion order held by other readers
// is not perturbed.
func (n *Namespace) SortedKeys() ([]string, error) {
	return n.filteredKeys(func(m *storeMap) []string { return m.sortedKeys() })
}

func (n *Namespace) filteredKeys(enumerate func(*storeMap) []string) ([]string, error) {
	s := n.store
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, errPoisoned()
	}
	all := enumerate(s.data)
	s.mu.RUnlock()

	prefix := n.prefix()
	if prefix == "" {
		return all, nil
	}
	out := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Clear securely wipes and removes every entry in this namespace. The
// default namespace clears the whole store.
func (n *Namespace) Clear() error {
	s := n.store
	prefix := n.prefix()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errPoisoned()
	}
	if prefix == "" {
		s.data.clear(func(string) bool { return true })
	} else {
		s.data.clear(func(key string) bool { return strings.HasPrefix(key, prefix) })
	}
	auto := s.autoCommit
	s.mu.Unlock()

	_ = s.audit.Log("clear", true, map[string]interface{}{"namespace": n.tag})

	if auto {
		return s.Commit()
	}
	return nil
}
