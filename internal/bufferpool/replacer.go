package bufferpool

import "fmt"

// Replacer picks eviction victims among frame indices [0..capacity).
// Only frames marked evictable (pin == 0) are ever returned by Evict.
type Replacer interface {
	RecordAccess(frameID int)
	SetEvictable(frameID int, evictable bool)
	Evict() (frameID int, ok bool)
	Remove(frameID int)
	Size() int
}

const (
	ReplacerClock = "clock"
	ReplacerLRU   = "lru"
)

// NewReplacer builds a replacer by name; "" means clock.
func NewReplacer(kind string, capacity int) (Replacer, error) {
	switch kind {
	case "", ReplacerClock:
		return newClockReplacer(capacity), nil
	case ReplacerLRU:
		return newLRUReplacer(capacity), nil
	default:
		return nil, fmt.Errorf("bufferpool: unknown replacer %q", kind)
	}
}
