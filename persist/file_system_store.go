package persist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"southwinds.dev/microkv/internal/misc"
)

// FileSystemStore keeps one database as a single file <basePath>/<name>.kv.
type FileSystemStore struct {
	basePath  string
	name      string
	statePath string
}

// NewFileSystemStore builds a filesystem backend rooted at basePath. The
// base directory is created lazily on first save, not here, so opening a
// database for reading never modifies the filesystem.
func NewFileSystemStore(basePath, name string) (*FileSystemStore, error) {
	if err := validateName(name); err != nil {
		return nil, fmt.Errorf("invalid database name: %w", err)
	}
	return &FileSystemStore{
		basePath:  basePath,
		name:      name,
		statePath: filepath.Join(basePath, name+misc.StoreFileExt),
	}, nil
}

// StatePath returns the path of the backing file.
func (fs *FileSystemStore) StatePath() string {
	return fs.statePath
}

// SaveState writes the record through a temp file in the same directory and
// renames it over the target, so a crash mid-write never leaves a truncated
// store file behind.
func (fs *FileSystemStore) SaveState(data []byte) error {
	if err := os.MkdirAll(fs.basePath, misc.DirPermissions); err != nil {
		return fmt.Errorf("failed to create workspace directory %s: %w", fs.basePath, err)
	}

	f, err := os.CreateTemp(fs.basePath, fs.name+misc.StoreFileExt+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := f.Chmod(misc.FilePermissions); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to set state file permissions: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to sync state file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmp, fs.statePath); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

func (fs *FileSystemStore) LoadState() ([]byte, error) {
	data, err := os.ReadFile(fs.statePath)
	if err != nil {
		// os.ReadFile errors already satisfy errors.Is(err, fs.ErrNotExist)
		// for missing files.
		return nil, fmt.Errorf("failed to read state file %s: %w", fs.statePath, err)
	}
	return data, nil
}

func (fs *FileSystemStore) StateExists() (bool, error) {
	_, err := os.Stat(fs.statePath)
	if err == nil {
		return true, nil
	}
	if misc.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat state file: %w", err)
}

func (fs *FileSystemStore) DeleteState() error {
	if err := os.Remove(fs.statePath); err != nil && !misc.IsNotExist(err) {
		return fmt.Errorf("failed to delete state file: %w", err)
	}
	return nil
}

func (fs *FileSystemStore) Ping() error {
	// Local disk: verify the base path is usable if it exists at all.
	info, err := os.Stat(fs.basePath)
	if err != nil {
		if misc.IsNotExist(err) {
			return nil // created on first save
		}
		return fmt.Errorf("workspace directory not accessible: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("workspace path %s is not a directory", fs.basePath)
	}
	return nil
}

func (fs *FileSystemStore) Close() error {
	return nil
}

func (fs *FileSystemStore) GetType() string {
	return string(StoreTypeFileSystem)
}

// validateName rejects names that would escape the workspace directory.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.Contains(name, "..") ||
		strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("name contains invalid characters")
	}
	if len(name) > 100 {
		return fmt.Errorf("name too long (max 100 characters)")
	}
	return nil
}
