package bufferpool

type counters struct {
	hits       uint64
	misses     uint64
	evictions  uint64
	writeBacks uint64
}

// Stats is a point-in-time view of the pool.
type Stats struct {
	PoolSize   int
	FreeFrames int
	Resident   int
	Pinned     int
	Evictable  int
	Dirty      int

	Hits       uint64
	Misses     uint64
	Evictions  uint64
	WriteBacks uint64
}

// HitRate is hits over fetches, 0 when nothing was fetched.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

func (p *BufferPoolManager) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Stats{
		PoolSize:   len(p.frames),
		FreeFrames: len(p.freeList),
		Resident:   p.pageTable.Len(),
		Evictable:  p.replacer.Size(),
		Hits:       p.stats.hits,
		Misses:     p.stats.misses,
		Evictions:  p.stats.evictions,
		WriteBacks: p.stats.writeBacks,
	}
	for i := range p.frames {
		f := &p.frames[i]
		if f.pins > 0 {
			s.Pinned++
		}
		if f.resident() && f.dirty {
			s.Dirty++
		}
	}
	return s
}
