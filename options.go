package microkv

import (
	"fmt"
	"os"
	"path/filepath"

	"southwinds.dev/microkv/audit"
	"southwinds.dev/microkv/internal/misc"
	"southwinds.dev/microkv/persist"
)

// Options configures a store handle at construction time. The zero value is
// not usable directly; start from DefaultOptions and override.
type Options struct {
	// BasePath is the workspace directory holding store files. Defaults
	// to <home>/.microkv. Ignored when Backend is set.
	BasePath string

	// AutoCommit makes every mutating operation persist the whole store
	// immediately after the write lock is released.
	AutoCommit bool

	// Backend overrides the persistence layer. When nil, a filesystem
	// backend rooted at BasePath is created.
	Backend persist.Store

	// Audit enables operation logging. Nil disables auditing.
	Audit *audit.Config
}

// DefaultOptions resolves the default workspace directory under the user's
// home. Callers that cannot rely on home resolution must set BasePath or
// Backend explicitly.
func DefaultOptions() Options {
	base := misc.WorkspaceDirName
	if home, err := os.UserHomeDir(); err == nil {
		base = filepath.Join(home, misc.WorkspaceDirName)
	}
	return Options{BasePath: base}
}

func validateOptions(opts Options) error {
	if opts.Backend == nil && opts.BasePath == "" {
		return fmt.Errorf("either BasePath or Backend must be set")
	}
	return nil
}

// resolveBackend returns the persistence backend for name, creating the
// default filesystem backend when none was supplied.
func resolveBackend(name string, opts Options) (persist.Store, error) {
	if opts.Backend != nil {
		return opts.Backend, nil
	}
	return persist.NewFileSystemStore(opts.BasePath, name)
}
