package bufferpool

import "sync"

var _ Replacer[FrameID] = (*ClockReplacer)(nil)

// ClockReplacer implements CLOCK (second-chance) replacement for a fixed
// number of frame slots [0..capacity). Ids outside that range are ignored.
type ClockReplacer struct {
	mu      sync.Mutex
	tracked []bool
	ref     []bool
	hand    int
	size    int
}

func NewClockReplacer(capacity int) *ClockReplacer {
	if capacity <= 0 {
		capacity = 1
	}
	return &ClockReplacer{
		tracked: make([]bool, capacity),
		ref:     make([]bool, capacity),
	}
}

func (c *ClockReplacer) inRange(id FrameID) bool {
	return id >= 0 && int(id) < len(c.tracked)
}

// Insert tracks id and sets its reference bit.
func (c *ClockReplacer) Insert(id FrameID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inRange(id) {
		return
	}
	if !c.tracked[id] {
		c.tracked[id] = true
		c.size++
	}
	c.ref[id] = true
}

// Victim sweeps from the hand, clearing reference bits, and evicts the first
// tracked slot whose bit is already clear. Two sweeps always find one.
func (c *ClockReplacer) Victim() (FrameID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.tracked)
	if c.size == 0 {
		return -1, false
	}
	for range 2 * n {
		idx := c.hand
		c.hand = (c.hand + 1) % n
		if !c.tracked[idx] {
			continue
		}
		if c.ref[idx] {
			// Second chance.
			c.ref[idx] = false
			continue
		}
		c.tracked[idx] = false
		c.size--
		return FrameID(idx), true
	}
	return -1, false
}

func (c *ClockReplacer) Erase(id FrameID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.inRange(id) || !c.tracked[id] {
		return false
	}
	c.tracked[id] = false
	c.ref[id] = false
	c.size--
	return true
}

func (c *ClockReplacer) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}
