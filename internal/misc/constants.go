package misc

import "os"

const (
	// WorkspaceDirName is the directory under the user's home that holds
	// store files when no explicit base path is configured.
	WorkspaceDirName = ".microkv"

	// StoreFileExt is the conventional extension for store files.
	StoreFileExt = ".kv"

	// NamespaceDelimiter joins a namespace tag and a logical key into a
	// composite key. Neither side may contain it.
	NamespaceDelimiter = "@"

	FilePermissions os.FileMode = 0600 // user read + write
	DirPermissions  os.FileMode = 0700 // user read + write + list
)
