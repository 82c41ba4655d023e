package microkv

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

var testPassphrase = "this-is-a-secure-passphrase-for-testing"

func createTestOptions(t *testing.T) Options {
	opts := DefaultOptions()
	opts.BasePath = t.TempDir()
	return opts
}

func createTestStore(t *testing.T, name string) *Store {
	store, err := NewWithOptions(name, createTestOptions(t))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreCreation(t *testing.T) {
	opts := createTestOptions(t)
	store, err := NewWithOptions("creation", opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.Name() != "creation" {
		t.Errorf("Expected name %q, got %q", "creation", store.Name())
	}
	if store.Path() == "" {
		t.Error("Store path was not set")
	}
	if store.data == nil {
		t.Error("Store map was not initialized")
	}
	if store.IsAutoCommit() {
		t.Error("Auto-commit should be off by default")
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	store := createTestStore(t, "roundtrip")

	if err := store.Put("answer", 42); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var got int
	if err := store.Get("answer", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}
}

func TestPutOverwrites(t *testing.T) {
	store := createTestStore(t, "overwrite")

	if err := store.Put("some_key", 42); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Put("some_key", "overwritten"); err != nil {
		t.Fatalf("Overwriting put failed: %v", err)
	}

	var got string
	if err := store.Get("some_key", &got); err != nil {
		t.Fatalf("Get after overwrite failed: %v", err)
	}
	if got != "overwritten" {
		t.Errorf("Expected %q, got %q", "overwritten", got)
	}
}

func TestGetMissingKey(t *testing.T) {
	store := createTestStore(t, "missing")

	var out string
	err := store.Get("nope", &out)
	if err == nil {
		t.Fatal("Expected an error for a missing key")
	}
	if !errors.Is(err, ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}

	found, err := store.Load("nope", &out)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if found {
		t.Error("Load reported a missing key as present")
	}
}

func TestDelete(t *testing.T) {
	store := createTestStore(t, "delete")

	if err := store.Put("victim", "value"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := store.Delete("victim"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	exists, err := store.Exists("victim")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("Key still present after delete")
	}

	// Deleting an absent key is not an error.
	if err := store.Delete("victim"); err != nil {
		t.Errorf("Deleting an absent key should be a no-op, got %v", err)
	}
}

func TestTypedValues(t *testing.T) {
	store := createTestStore(t, "typed")

	type record struct {
		Username string   `json:"username"`
		Logins   int      `json:"logins"`
		Tags     []string `json:"tags"`
	}

	original := record{Username: "admin", Logins: 3, Tags: []string{"ops", "root"}}
	if err := store.Put("user", original); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	var got record
	if err := store.Get("user", &got); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Username != original.Username || got.Logins != original.Logins || len(got.Tags) != 2 {
		t.Errorf("Round-tripped record does not match: %+v", got)
	}

	// Decoding into an incompatible type surfaces a serialization error.
	var wrong int
	err := store.Get("user", &wrong)
	if !errors.Is(err, ErrSerialization) {
		t.Errorf("Expected ErrSerialization, got %v", err)
	}
}

func TestKeysInsertionOrder(t *testing.T) {
	store := createTestStore(t, "keyorder")

	for _, k := range []string{"c", "a", "b"} {
		if err := store.Put(k, k); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	expectKeys(t, keys, []string{"c", "a", "b"})

	// Re-putting an existing key moves it to the end.
	if err := store.Put("c", "again"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	keys, err = store.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	expectKeys(t, keys, []string{"a", "b", "c"})

	sorted, err := store.SortedKeys()
	if err != nil {
		t.Fatalf("SortedKeys failed: %v", err)
	}
	expectKeys(t, sorted, []string{"a", "b", "c"})
}

func TestClear(t *testing.T) {
	store := createTestStore(t, "clear")

	for i := 0; i < 5; i++ {
		if err := store.Put(fmt.Sprintf("key%d", i), i); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("Expected empty store after clear, got %d keys", len(keys))
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	opts := createTestOptions(t)

	store, err := NewWithOptions("persist", opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	store.WithPasswordClear(testPassphrase)

	if err = store.Put("answer", 42); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err = store.Put("greeting", "hello"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err = store.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err = store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := OpenWithOptions("persist", opts)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()
	reopened.WithPasswordClear(testPassphrase)

	var answer int
	if err = reopened.Get("answer", &answer); err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if answer != 42 {
		t.Errorf("Expected 42 after reopen, got %d", answer)
	}

	var greeting string
	if err = reopened.Get("greeting", &greeting); err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if greeting != "hello" {
		t.Errorf("Expected %q after reopen, got %q", "hello", greeting)
	}
}

func TestWrongPassword(t *testing.T) {
	opts := createTestOptions(t)

	store, err := NewWithOptions("wrongpwd", opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	store.WithPasswordClear(testPassphrase)
	if err = store.Put("secret", "value"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err = store.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	store.Close()

	reopened, err := OpenWithOptions("wrongpwd", opts)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()
	reopened.WithPasswordClear("not-the-passphrase")

	var out string
	err = reopened.Get("secret", &out)
	if !errors.Is(err, ErrCrypto) {
		t.Errorf("Expected ErrCrypto with wrong password, got %v", err)
	}
}

func TestOpenMissingStore(t *testing.T) {
	_, err := OpenWithOptions("never-created", createTestOptions(t))
	if !errors.Is(err, ErrFile) {
		t.Errorf("Expected ErrFile for a missing state file, got %v", err)
	}
}

func TestAutoCommit(t *testing.T) {
	opts := createTestOptions(t)
	opts.AutoCommit = true

	store, err := NewWithOptions("autocommit", opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if !store.IsAutoCommit() {
		t.Fatal("Auto-commit flag was not honoured")
	}
	if err = store.Put("k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	store.Close()

	// No explicit Commit: the put alone must have persisted the state.
	reopened, err := OpenWithOptions("autocommit", opts)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	var v string
	if err = reopened.Get("k", &v); err != nil {
		t.Fatalf("Get after auto-commit failed: %v", err)
	}
	if v != "v" {
		t.Errorf("Expected %q, got %q", "v", v)
	}
}

func TestCommitFilePermissions(t *testing.T) {
	opts := createTestOptions(t)
	store, err := NewWithOptions("perms", opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if err = store.Put("k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err = store.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(opts.BasePath, "perms.kv"))
	if err != nil {
		t.Fatalf("State file missing after commit: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("Expected mode 0600 on state file, got %04o", perm)
	}
}

func TestConcurrentWriters(t *testing.T) {
	store := createTestStore(t, "concurrent")

	const writers = 8
	const perWriter = 50

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				key := fmt.Sprintf("w%d-k%d", id, i)
				if err := store.Put(key, i); err != nil {
					t.Errorf("Put failed: %v", err)
					return
				}
				var got int
				if err := store.Get(key, &got); err != nil {
					t.Errorf("Get failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	keys, err := store.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != writers*perWriter {
		t.Errorf("Expected %d keys, got %d", writers*perWriter, len(keys))
	}
}

func TestClosedStoreIsPoisoned(t *testing.T) {
	store := createTestStore(t, "closed")
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Close is idempotent.
	if err := store.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	if err := store.Put("k", "v"); !errors.Is(err, ErrPoisoned) {
		t.Errorf("Expected ErrPoisoned from Put, got %v", err)
	}
	var out string
	if err := store.Get("k", &out); !errors.Is(err, ErrPoisoned) {
		t.Errorf("Expected ErrPoisoned from Get, got %v", err)
	}
	if _, err := store.Keys(); !errors.Is(err, ErrPoisoned) {
		t.Errorf("Expected ErrPoisoned from Keys, got %v", err)
	}
	if err := store.Commit(); !errors.Is(err, ErrPoisoned) {
		t.Errorf("Expected ErrPoisoned from Commit, got %v", err)
	}
}

func TestDestroy(t *testing.T) {
	opts := createTestOptions(t)
	store, err := NewWithOptions("doomed", opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	if err = store.Put("k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err = store.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	statePath := filepath.Join(opts.BasePath, "doomed.kv")
	if _, err = os.Stat(statePath); err != nil {
		t.Fatalf("State file missing before destroy: %v", err)
	}

	if err = store.Destroy(); err != nil {
		t.Fatalf("Destroy failed: %v", err)
	}
	if _, err = os.Stat(statePath); !os.IsNotExist(err) {
		t.Errorf("State file still present after destroy: %v", err)
	}
	if err = store.Put("k", "v"); !errors.Is(err, ErrPoisoned) {
		t.Errorf("Expected ErrPoisoned after destroy, got %v", err)
	}
}

func TestReadGuard(t *testing.T) {
	store := createTestStore(t, "readguard")
	if err := store.Put("k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	guard, err := store.LockRead()
	if err != nil {
		t.Fatalf("LockRead failed: %v", err)
	}
	if guard.Len() != 1 {
		t.Errorf("Expected 1 entry, got %d", guard.Len())
	}
	if !guard.Exists("k") {
		t.Error("Guard did not see existing key")
	}
	blob, ok := guard.Get("k")
	if !ok || len(blob) == 0 {
		t.Error("Guard returned no blob for existing key")
	}
	guard.Release()
	guard.Release() // idempotent

	// The store must be usable again once the guard is released.
	if err = store.Put("k2", "v2"); err != nil {
		t.Fatalf("Put after release failed: %v", err)
	}
}

func TestWriteGuard(t *testing.T) {
	store := createTestStore(t, "writeguard")

	guard, err := store.LockWrite()
	if err != nil {
		t.Fatalf("LockWrite failed: %v", err)
	}
	guard.Put("raw", []byte{1, 2, 3})
	if !guard.Exists("raw") {
		t.Error("Guard did not see its own write")
	}
	if !guard.Delete("raw") {
		t.Error("Delete reported the key as absent")
	}
	guard.Put("kept", []byte{4})
	guard.Release()

	exists, err := store.Exists("kept")
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("Write made through the guard is not visible")
	}
}

func TestGuardOnClosedStore(t *testing.T) {
	store := createTestStore(t, "guardclosed")
	store.Close()

	if _, err := store.LockRead(); !errors.Is(err, ErrPoisoned) {
		t.Errorf("Expected ErrPoisoned from LockRead, got %v", err)
	}
	if _, err := store.LockWrite(); !errors.Is(err, ErrPoisoned) {
		t.Errorf("Expected ErrPoisoned from LockWrite, got %v", err)
	}
}

func TestPasswordHashBuilder(t *testing.T) {
	opts := createTestOptions(t)
	store, err := NewWithOptions("hashed", opts)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	var hash [KeySize]byte
	copy(hash[:], []byte("0123456789abcdef0123456789abcdef"))
	store.WithPasswordHash(hash)

	if err = store.Put("k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err = store.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	store.Close()

	reopened, err := OpenWithOptions("hashed", opts)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	var rehash [KeySize]byte
	copy(rehash[:], []byte("0123456789abcdef0123456789abcdef"))
	reopened.WithPasswordHash(rehash)

	var v string
	if err = reopened.Get("k", &v); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v != "v" {
		t.Errorf("Expected %q, got %q", "v", v)
	}
}

func TestMemoryProtectionReported(t *testing.T) {
	store := createTestStore(t, "memprot")
	level := store.MemoryProtection()
	if level == "" {
		t.Error("Memory protection level was not reported")
	}
}

func expectKeys(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("Expected keys %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Expected keys %v, got %v", want, got)
		}
	}
}

func TestConcurrentGetAndClose(t *testing.T) {
	opts := createTestOptions(t)

	for i := 0; i < 50; i++ {
		store, err := NewWithOptions(fmt.Sprintf("race%d", i), opts)
		if err != nil {
			t.Fatalf("Failed to create store: %v", err)
		}
		store.WithPasswordClear(testPassphrase)
		if err = store.Put("k", "v"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			for j := 0; j < 20; j++ {
				var out string
				err := store.Get("k", &out)
				switch {
				case err == nil:
					if out != "v" {
						t.Errorf("Expected %q, got %q", "v", out)
					}
				case errors.Is(err, ErrPoisoned):
					// the handle closed underneath us
				default:
					t.Errorf("Unexpected error while closing: %v", err)
				}
			}
		}()
		store.Close()
		<-done
	}
}
