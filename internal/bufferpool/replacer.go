package bufferpool

import "fmt"

const (
	ReplacerLRU   = "lru"
	ReplacerClock = "clock"
)

// NewReplacer builds the replacement policy named kind for a pool of capacity frames.
func NewReplacer(kind string, capacity int) (Replacer[FrameID], error) {
	switch kind {
	case "", ReplacerLRU:
		return NewLRUReplacer[FrameID](capacity), nil
	case ReplacerClock:
		return NewClockReplacer(capacity), nil
	default:
		return nil, fmt.Errorf("bufferpool: unknown replacer %q", kind)
	}
}
