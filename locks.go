package microkv

// Scoped lock guards give bulk or custom operations direct access to the
// raw storage map under an explicitly held lock. The guard owns the lock
// from acquisition until Release; values read or written through a guard
// are the stored blobs, so the crypto codec is bypassed entirely.
//
// Guards must be released on every path:
//
//	guard, err := store.LockRead()
//	if err != nil { ... }
//	defer guard.Release()

// ReadGuard holds the store's lock in shared mode. Any number of
// ReadGuards and reading operations may be active at once.
type ReadGuard struct {
	s        *Store
	released bool
}

// LockRead acquires the storage lock in shared mode. Fails with
// PoisonError if the handle is closed.
func (s *Store) LockRead() (*ReadGuard, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, errPoisoned()
	}
	return &ReadGuard{s: s}, nil
}

// Get returns a copy of the raw blob stored under the composite key.
func (g *ReadGuard) Get(key string) ([]byte, bool) {
	blob, ok := g.s.data.get(key)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), blob...), true
}

// Exists reports whether the composite key has a live entry.
func (g *ReadGuard) Exists(key string) bool {
	return g.s.data.exists(key)
}

// Keys returns every key in insertion order.
func (g *ReadGuard) Keys() []string {
	return g.s.data.keys()
}

// SortedKeys returns every key in lexicographic order.
func (g *ReadGuard) SortedKeys() []string {
	return g.s.data.sortedKeys()
}

// Len returns the number of live entries.
func (g *ReadGuard) Len() int {
	return g.s.data.len()
}

// Release drops the shared lock. Release is idempotent; using the guard
// after Release is a caller error.
func (g *ReadGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.s.mu.RUnlock()
}

// WriteGuard holds the store's lock exclusively: no readers and no other
// writers until Release.
type WriteGuard struct {
	s        *Store
	released bool
}

// LockWrite acquires the storage lock exclusively. Fails with PoisonError
// if the handle is closed.
func (s *Store) LockWrite() (*WriteGuard, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errPoisoned()
	}
	return &WriteGuard{s: s}, nil
}

// Get returns a copy of the raw blob stored under the composite key.
func (g *WriteGuard) Get(key string) ([]byte, bool) {
	blob, ok := g.s.data.get(key)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), blob...), true
}

// Exists reports whether the composite key has a live entry.
func (g *WriteGuard) Exists(key string) bool {
	return g.s.data.exists(key)
}

// Keys returns every key in insertion order.
func (g *WriteGuard) Keys() []string {
	return g.s.data.keys()
}

// Len returns the number of live entries.
func (g *WriteGuard) Len() int {
	return g.s.data.len()
}

// Put stores a raw blob under the composite key, skipping serialization
// and encryption. A re-put moves the key to the end of insertion order.
func (g *WriteGuard) Put(key string, blob []byte) {
	g.s.data.put(key, append([]byte(nil), blob...))
}

// Delete removes the entry under the composite key, reporting whether it
// was present.
func (g *WriteGuard) Delete(key string) bool {
	return g.s.data.delete(key)
}

// Clear securely wipes and drops every entry.
func (g *WriteGuard) Clear() {
	g.s.data.clear(func(string) bool { return true })
}

// Release drops the exclusive lock. Release is idempotent. Auto-commit is
// deliberately not triggered by guard mutations; callers doing bulk writes
// commit once themselves.
func (g *WriteGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	g.s.mu.Unlock()
}
