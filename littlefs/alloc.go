package littlefs

// allocator hands out free blocks from a lookahead window: a bitmap of
// size blocks starting at start, rebuilt from a filesystem traversal each
// time it is exhausted. The window moves forward around the device, so
// consecutive allocations spread over all blocks.
//
// ckpoint counts the blocks that may still be examined before the device
// is declared full. It is reset by ack once the previous operation has
// committed; blocks handed out since then lie behind the cursor and are
// never reconsidered, even though no committed metadata references them
// yet.
type allocator struct {
	fs         *FileSystem
	blockCount uint32
	size       uint32
	start      uint32
	next       uint32
	ckpoint    uint32
	stale      bool
	bitmap     []byte
}

func newAllocator(fs *FileSystem, lookahead, seed uint32) *allocator {
	size := min(lookahead*8, fs.blockCount)
	return &allocator{
		fs:         fs,
		blockCount: fs.blockCount,
		size:       size,
		start:      seed % fs.blockCount,
		ckpoint:    fs.blockCount,
		stale:      true,
		bitmap:     make([]byte, (size+7)/8),
	}
}

func (a *allocator) used(off uint32) bool {
	return a.bitmap[off/8]&(1<<(off%8)) != 0
}

func (a *allocator) mark(off uint32) {
	a.bitmap[off/8] |= 1 << (off % 8)
}

// ack starts a new allocation epoch. The window is rebuilt on the next
// allocation so blocks released by earlier commits become visible.
func (a *allocator) ack() {
	a.ckpoint = a.blockCount
	a.stale = true
}

// alloc returns a block no committed metadata references.
func (a *allocator) alloc() (uint32, error) {
	if a.stale {
		if err := a.rescan(a.start + a.next); err != nil {
			return 0, err
		}
	}
	for {
		for a.next < a.size {
			if a.ckpoint == 0 {
				return 0, errNoSpace("no free blocks among %d", a.blockCount)
			}
			off := a.next
			a.next++
			a.ckpoint--
			if !a.used(off) {
				a.mark(off)
				return (a.start + off) % a.blockCount, nil
			}
		}
		if a.ckpoint == 0 {
			return 0, errNoSpace("no free blocks among %d", a.blockCount)
		}
		if err := a.rescan(a.start + a.size); err != nil {
			return 0, err
		}
	}
}

func (a *allocator) rescan(start uint32) error {
	a.start = start % a.blockCount
	a.next = 0
	a.stale = false
	clear(a.bitmap)
	err := a.fs.traverse(func(block uint32) error {
		off := (block + a.blockCount - a.start) % a.blockCount
		if off < a.size {
			a.mark(off)
		}
		return nil
	})
	if err != nil {
		a.stale = true
		return err
	}
	a.fs.log.Debug("lookahead", "start", a.start, "size", a.size)
	return nil
}
