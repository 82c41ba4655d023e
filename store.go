// Package microkv is a local, encrypted, persistent key-value store for
// single-process applications: secrets, configuration, license data.
//
// A Store owns an in-memory insertion-ordered map guarded by a
// reader/writer lock, an authenticated-encryption codec keyed by a
// password-derived secret, and a whole-file commit/load persistence
// protocol. Namespace views multiplex logical sub-stores over the one
// physical map via key prefixing.
package microkv

import (
	"sync"

	"github.com/awnumar/memguard"
	"southwinds.dev/microkv/audit"
	"southwinds.dev/microkv/internal/mem"
	"southwinds.dev/microkv/persist"
)

func init() {
	// Purge protected memory on interrupt so secrets never outlive the
	// process.
	memguard.CatchInterrupt()
}

// Store is the public handle to one database. All operations are safe for
// concurrent use from multiple goroutines; the embedded RWMutex admits many
// readers or a single writer.
//
// Configuration calls (WithPasswordClear, WithPasswordHash, SetAutoCommit)
// are not synchronized against in-flight operations: finish configuring the
// handle before sharing it. Re-setting the password mid-life makes values
// written under the old key unreadable; that is a caller error, not a
// re-encryption.
type Store struct {
	name string
	path string

	mu     sync.RWMutex
	data   *storeMap
	closed bool

	// public nonce, generated once at creation and persisted; immutable
	// for the lifetime of the physical file
	nonce [NonceSize]byte

	// hashed password, held only in memory, never persisted
	secret *memguard.Enclave

	autoCommit bool

	backend    persist.Store
	audit      audit.Logger
	protection mem.ProtectionLevel
}

// New initializes an empty, unencrypted store with a freshly generated
// nonce at the deterministic path derived from the default workspace
// directory and name. Nothing is written to disk until Commit.
func New(name string) (*Store, error) {
	return NewWithOptions(name, DefaultOptions())
}

// NewWithOptions is New with explicit configuration.
func NewWithOptions(name string, opts Options) (*Store, error) {
	s, err := buildHandle(name, opts)
	if err != nil {
		return nil, err
	}

	nonce, err := generateNonce()
	if err != nil {
		return nil, err
	}
	s.nonce = nonce
	s.data = newStoreMap()

	_ = s.audit.Log("create", true, map[string]interface{}{"database": name})
	return s, nil
}

// Open reads the store file at the deterministic path and restores the map
// and nonce. The password, if any, is supplied afterwards via the builder
// methods; opening never needs it because values stay encrypted at rest and
// in memory until read.
func Open(name string) (*Store, error) {
	return OpenWithOptions(name, DefaultOptions())
}

// OpenWithOptions is Open with explicit configuration.
func OpenWithOptions(name string, opts Options) (*Store, error) {
	s, err := buildHandle(name, opts)
	if err != nil {
		return nil, err
	}

	payload, err := s.backend.LoadState()
	if err != nil {
		_ = s.audit.Log("open", false, map[string]interface{}{"database": name})
		return nil, errFile("cannot read store file", err)
	}

	rec, err := decodeRecord(payload)
	if err != nil {
		_ = s.audit.Log("open", false, map[string]interface{}{"database": name})
		return nil, err
	}

	s.nonce = rec.Nonce
	s.data = newStoreMap()
	for _, e := range rec.Entries {
		s.data.put(e.Key, e.Value)
	}

	_ = s.audit.Log("open", true, map[string]interface{}{
		"database": name,
		"entries":  len(rec.Entries),
	})
	return s, nil
}

// buildHandle wires the backend, audit logger, and memory protection shared
// by New and Open.
func buildHandle(name string, opts Options) (*Store, error) {
	if err := validateOptions(opts); err != nil {
		return nil, errFile("invalid options", err)
	}

	backend, err := resolveBackend(name, opts)
	if err != nil {
		return nil, errFile("cannot initialize persistence backend", err)
	}
	if err := backend.Ping(); err != nil {
		return nil, errFile("persistence backend not reachable", err)
	}

	logger, err := audit.NewLogger(opts.Audit)
	if err != nil {
		return nil, errFile("cannot initialize audit logger", err)
	}

	// Best effort: the store works at whatever level the platform grants.
	protection, _ := mem.Lock()

	return &Store{
		name:       name,
		path:       statePath(backend, opts, name),
		autoCommit: opts.AutoCommit,
		backend:    backend,
		audit:      logger,
		protection: protection,
	}, nil
}

func statePath(backend persist.Store, opts Options, name string) string {
	if fs, ok := backend.(*persist.FileSystemStore); ok {
		return fs.StatePath()
	}
	return name + ".kv"
}

// WithPasswordClear hashes the cleartext password to a fixed-size secret
// and attaches it. Use it when the password comes from a prompt or a file;
// the store only guarantees hashing and locked storage, not the secrecy of
// the channel that carried the password here.
func (s *Store) WithPasswordClear(password string) *Store {
	secret := hashPassword(password)
	s.mu.Lock()
	s.secret = secret
	s.mu.Unlock()
	return s
}

// WithPasswordHash attaches a pre-hashed 32-byte secret directly. Use it
// when the key material is pseudorandom or was hashed by a preferred
// one-way function elsewhere.
func (s *Store) WithPasswordHash(hash [KeySize]byte) *Store {
	// NewEnclave wipes the source slice; work on a copy so the caller's
	// array is untouched.
	buf := make([]byte, KeySize)
	copy(buf, hash[:])
	secret := memguard.NewEnclave(buf)
	s.mu.Lock()
	s.secret = secret
	s.mu.Unlock()
	return s
}

// SetAutoCommit toggles whether every mutating call also persists the
// store immediately.
func (s *Store) SetAutoCommit(enabled bool) *Store {
	s.mu.Lock()
	s.autoCommit = enabled
	s.mu.Unlock()
	return s
}

// IsAutoCommit reports whether mutations persist immediately.
func (s *Store) IsAutoCommit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoCommit
}

// Name returns the database name.
func (s *Store) Name() string {
	return s.name
}

// Path returns the durable location of the store file.
func (s *Store) Path() string {
	return s.path
}

// MemoryProtection reports the level of memory protection achieved at
// construction: "full", "partial", or "none".
func (s *Store) MemoryProtection() string {
	return s.protection.String()
}

// Namespace derives a scoped view over this store. The view shares the
// store's map, lock, and codec and must not outlive the handle.
func (s *Store) Namespace(tag string) *Namespace {
	return &Namespace{tag: tag, store: s}
}

// The unscoped convenience API is defined to be identical to operating
// through the default (empty-tag) namespace view.

// Get retrieves the value stored under key, decrypting if a password is
// set, and decodes it into out. Absent keys yield ErrKeyNotFound.
func (s *Store) Get(key string, out interface{}) error {
	return s.Namespace("").Get(key, out)
}

// Load is Get with an Option-style result: found reports presence instead
// of an error.
func (s *Store) Load(key string, out interface{}) (found bool, err error) {
	return s.Namespace("").Load(key, out)
}

// Put serializes value, encrypts it if a password is set, and stores it
// under key. Re-putting an existing key moves it to the end of insertion
// order.
func (s *Store) Put(key string, value interface{}) error {
	return s.Namespace("").Put(key, value)
}

// Delete removes the entry under key. Deleting an absent key is not an
// error.
func (s *Store) Delete(key string) error {
	return s.Namespace("").Delete(key)
}

// Exists reports whether a live entry is stored under key.
func (s *Store) Exists(key string) (bool, error) {
	return s.Namespace("").Exists(key)
}

// Keys returns every live key in insertion order.
func (s *Store) Keys() ([]string, error) {
	return s.Namespace("").Keys()
}

// SortedKeys returns every live key in lexicographic order.
func (s *Store) SortedKeys() ([]string, error) {
	return s.Namespace("").SortedKeys()
}

// Clear securely wipes and removes every entry. The backing file is not
// deleted; see Destroy for that.
func (s *Store) Clear() error {
	return s.Namespace("").Clear()
}

// Commit serializes the whole handle, excluding the password secret, and
// overwrites the store file, creating the parent directory if missing. The
// map lock is released before any I/O happens.
func (s *Store) Commit() error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errPoisoned()
	}
	rec := storeRecord{
		Path:    s.path,
		Entries: s.data.snapshot(),
		Nonce:   s.nonce,
	}
	s.mu.RUnlock()

	payload, err := encodeRecord(rec)
	if err != nil {
		return err
	}

	if err := s.backend.SaveState(payload); err != nil {
		_ = s.audit.Log("commit", false, map[string]interface{}{"database": s.name})
		return errFile("cannot write store file", err)
	}

	_ = s.audit.Log("commit", true, map[string]interface{}{
		"database": s.name,
		"entries":  len(rec.Entries),
		"bytes":    len(payload),
	})
	return nil
}

// Destroy securely clears the map, wipes the secret, and deletes the
// backing file, removing all traces of the database. The handle is closed
// afterwards.
func (s *Store) Destroy() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errPoisoned()
	}
	s.data.clear(func(string) bool { return true })
	s.secret = nil
	s.closed = true
	s.mu.Unlock()

	if err := s.backend.DeleteState(); err != nil {
		return errFile("cannot delete store file", err)
	}
	_ = s.audit.Log("destroy", true, map[string]interface{}{"database": s.name})
	_ = s.backend.Close()
	return s.audit.Close()
}

// Close wipes the password secret and releases the handle. Entries that
// were not committed are lost. Close is idempotent; operations after Close
// fail with PoisonError.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	// Dropping the enclave reference is the wipe: per-operation key
	// buffers are destroyed after each use, and the sealed enclave is
	// purged with the memguard session.
	s.secret = nil
	s.closed = true
	s.mu.Unlock()

	_ = s.backend.Close()
	return s.audit.Close()
}
