package persist

import "fmt"

// Store persists the serialized state of one database. Implementations
// receive the already-encoded record from the store layer; nothing here
// interprets or decrypts it.
type Store interface {
	// SaveState overwrites the durable copy of the database with data.
	SaveState(data []byte) error

	// LoadState returns the durable copy. A missing database yields an
	// error satisfying errors.Is(err, fs.ErrNotExist).
	LoadState() ([]byte, error)

	// StateExists reports whether a durable copy is present.
	StateExists() (bool, error)

	// DeleteState removes the durable copy. Deleting an absent state is
	// not an error.
	DeleteState() error

	// Ping tests connectivity for remote backends.
	Ping() error

	// Close releases any resources the backend holds.
	Close() error

	// GetType names the backend, e.g. "filesystem" or "s3".
	GetType() string
}

// StoreType selects a persistence backend.
type StoreType string

const (
	StoreTypeFileSystem StoreType = "filesystem"
	StoreTypeS3         StoreType = "s3"
)

// StoreConfig selects and configures a backend for one database.
type StoreConfig struct {
	Type   StoreType              `json:"type"`
	Config map[string]interface{} `json:"config"`
}

// NewStore builds the backend named by config for the given database name.
func NewStore(config StoreConfig, name string) (Store, error) {
	switch config.Type {
	case StoreTypeFileSystem:
		basePath, ok := config.Config["base_path"].(string)
		if !ok {
			return nil, fmt.Errorf("filesystem storage requires 'base_path' in config")
		}
		return NewFileSystemStore(basePath, name)

	case StoreTypeS3:
		return NewS3StoreFromConfig(config, name)

	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
