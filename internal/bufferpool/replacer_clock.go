package bufferpool

// clockReplacer implements CLOCK (second-chance) over a fixed number of frames.
// It tracks ref bits and evictable state per frame.
type clockReplacer struct {
	ref       []bool
	evictable []bool
	present   []bool
	hand      int
	size      int // number of evictable frames
}

var _ Replacer = (*clockReplacer)(nil)

func newClockReplacer(capacity int) *clockReplacer {
	if capacity <= 0 {
		capacity = 1
	}
	return &clockReplacer{
		ref:       make([]bool, capacity),
		evictable: make([]bool, capacity),
		present:   make([]bool, capacity),
	}
}

func (c *clockReplacer) valid(id int) bool { return id >= 0 && id < len(c.ref) }

// RecordAccess marks the frame as recently used.
func (c *clockReplacer) RecordAccess(id int) {
	if !c.valid(id) {
		return
	}
	c.present[id] = true
	c.ref[id] = true
}

func (c *clockReplacer) SetEvictable(id int, evictable bool) {
	if !c.valid(id) || !c.present[id] {
		return
	}
	if c.evictable[id] == evictable {
		return
	}
	c.evictable[id] = evictable
	if evictable {
		c.size++
	} else {
		c.size--
	}
}

// Evict sweeps at most twice around the clock. The victim stops being tracked.
func (c *clockReplacer) Evict() (int, bool) {
	n := len(c.ref)
	if c.size == 0 {
		return -1, false
	}
	for i := 0; i < 2*n; i++ {
		idx := c.hand
		c.hand = (c.hand + 1) % n

		if !c.present[idx] || !c.evictable[idx] {
			continue
		}
		if c.ref[idx] {
			// second chance
			c.ref[idx] = false
			continue
		}
		c.forget(idx)
		return idx, true
	}
	return -1, false
}

func (c *clockReplacer) Remove(id int) {
	if !c.valid(id) || !c.present[id] {
		return
	}
	c.forget(id)
}

func (c *clockReplacer) forget(id int) {
	if c.evictable[id] {
		c.size--
	}
	c.present[id] = false
	c.evictable[id] = false
	c.ref[id] = false
}

func (c *clockReplacer) Size() int { return c.size }
