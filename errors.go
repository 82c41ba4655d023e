package microkv

import (
	"errors"
	"fmt"
)

// ErrorKind partitions every failure the store can report into a closed set
// of categories. Callers should branch on the kind (via errors.Is against
// the exported sentinels) rather than on message text.
type ErrorKind int

const (
	// KeyNotFound indicates a lookup for a key that has no live entry.
	KeyNotFound ErrorKind = iota

	// CryptoError covers key derivation failures and authentication
	// failures during decryption. A wrong password and tampered
	// ciphertext are intentionally indistinguishable.
	CryptoError

	// SerializationError indicates a value that does not decode into the
	// caller's destination type, or a store file that does not parse.
	SerializationError

	// FileError wraps I/O failures against the backing file or its
	// parent directory.
	FileError

	// PoisonError reports an operation attempted against a handle whose
	// lock can no longer be acquired because the handle was closed.
	PoisonError
)

func (k ErrorKind) String() string {
	switch k {
	case KeyNotFound:
		return "KeyNotFound"
	case CryptoError:
		return "CryptoError"
	case SerializationError:
		return "SerializationError"
	case FileError:
		return "FileError"
	case PoisonError:
		return "PoisonError"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// KVError is the error type returned by every public store operation.
type KVError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *KVError) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("microkv: %s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("microkv: %s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("microkv: %s: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("microkv: %s", e.Kind)
	}
}

func (e *KVError) Unwrap() error {
	return e.Err
}

// Is matches any *KVError carrying the same kind, so that
// errors.Is(err, ErrKeyNotFound) works regardless of message or cause.
func (e *KVError) Is(target error) bool {
	var kv *KVError
	if !errors.As(target, &kv) {
		return false
	}
	return e.Kind == kv.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrKeyNotFound   = &KVError{Kind: KeyNotFound}
	ErrCrypto        = &KVError{Kind: CryptoError}
	ErrSerialization = &KVError{Kind: SerializationError}
	ErrFile          = &KVError{Kind: FileError}
	ErrPoisoned      = &KVError{Kind: PoisonError}
)

func errKeyNotFound(key string) error {
	return &KVError{Kind: KeyNotFound, Msg: fmt.Sprintf("key %q not found in storage", key)}
}

func errCrypto(msg string, cause error) error {
	return &KVError{Kind: CryptoError, Msg: msg, Err: cause}
}

func errSerialization(msg string, cause error) error {
	return &KVError{Kind: SerializationError, Msg: msg, Err: cause}
}

func errFile(msg string, cause error) error {
	return &KVError{Kind: FileError, Msg: msg, Err: cause}
}

func errPoisoned() error {
	return &KVError{Kind: PoisonError, Msg: "store handle is closed"}
}
