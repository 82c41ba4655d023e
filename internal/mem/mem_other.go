//go:build !linux && !darwin && !freebsd && !openbsd && !netbsd && !dragonfly

package mem

// Without mlockall the best we offer is wiping buffers after use.
func lockPlatform() (ProtectionLevel, error) {
	return ProtectionPartial, nil
}
