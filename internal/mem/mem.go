package mem

// ProtectionLevel describes how well sensitive pages are protected from
// being swapped out or otherwise leaving resident memory.
type ProtectionLevel int

const (
	ProtectionNone    ProtectionLevel = iota // no protection available
	ProtectionPartial                        // secrets wiped, but pages may swap
	ProtectionFull                           // resident memory locked
)

func (p ProtectionLevel) String() string {
	switch p {
	case ProtectionFull:
		return "full"
	case ProtectionPartial:
		return "partial"
	default:
		return "none"
	}
}

// Lock attempts to pin the process's memory so password material is never
// written to swap. Best effort: stores stay usable at whatever level the
// platform grants.
func Lock() (ProtectionLevel, error) {
	return lockPlatform()
}
