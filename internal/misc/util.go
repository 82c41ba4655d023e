package misc

import (
	"errors"
	"io/fs"
)

// IsNotExist reports whether err indicates a missing store file or object,
// regardless of which persistence backend produced it.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
