package microkv

import (
	"sort"

	"github.com/awnumar/memguard"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// storeMap is the single shared mutable resource of a store: an
// insertion-ordered mapping from composite keys to opaque blobs (ciphertext
// when a password is set, serialized plaintext otherwise). It carries no
// locking of its own; the owning Store's RWMutex guards every access.
type storeMap struct {
	entries *orderedmap.OrderedMap[string, []byte]
}

func newStoreMap() *storeMap {
	return &storeMap{entries: orderedmap.New[string, []byte]()}
}

func (m *storeMap) get(key string) ([]byte, bool) {
	return m.entries.Get(key)
}

// put inserts or replaces a value. A re-put of an existing key removes the
// old entry first so the key moves to the end of insertion order; most
// recently written keys always iterate last.
func (m *storeMap) put(key string, value []byte) {
	if _, ok := m.entries.Get(key); ok {
		m.entries.Delete(key)
	}
	m.entries.Set(key, value)
}

func (m *storeMap) delete(key string) bool {
	_, ok := m.entries.Delete(key)
	return ok
}

func (m *storeMap) exists(key string) bool {
	_, ok := m.entries.Get(key)
	return ok
}

func (m *storeMap) len() int {
	return m.entries.Len()
}

// keys returns every live key in insertion order.
func (m *storeMap) keys() []string {
	out := make([]string, 0, m.entries.Len())
	for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}

// sortedKeys returns every live key in lexicographic order. The sort happens
// on a copy; the canonical insertion order is untouched for other readers.
func (m *storeMap) sortedKeys() []string {
	out := m.keys()
	sort.Strings(out)
	return out
}

// clear wipes the backing bytes of every entry match selects, then drops
// those entries. An always-true match empties the whole map; the internal
// structure is retained for reuse.
func (m *storeMap) clear(match func(key string) bool) {
	var doomed []string
	for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
		if match(pair.Key) {
			memguard.WipeBytes(pair.Value)
			doomed = append(doomed, pair.Key)
		}
	}
	for _, key := range doomed {
		m.entries.Delete(key)
	}
}

// snapshot copies the live entries in insertion order for serialization.
func (m *storeMap) snapshot() []mapEntry {
	out := make([]mapEntry, 0, m.entries.Len())
	for pair := m.entries.Oldest(); pair != nil; pair = pair.Next() {
		value := make([]byte, len(pair.Value))
		copy(value, pair.Value)
		out = append(out, mapEntry{Key: pair.Key, Value: value})
	}
	return out
}

// mapEntry is one durable key/blob pair.
type mapEntry struct {
	Key   string
	Value []byte
}
