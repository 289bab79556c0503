package littlefs

// walkPairs calls fn for every metadata pair reachable from the root,
// following directory tails and child directories.
func (fs *FileSystem) walkPairs(fn func(m *mdir) error) error {
	limit := fs.blockCount / 2
	visited := uint32(0)
	stack := []pair{rootPair}
	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for !p.isNull() {
			visited++
			if visited > limit {
				return errCorrupt("metadata pairs form a cycle")
			}
			m, err := fs.fetch(p)
			if err != nil {
				return err
			}
			if err := fn(m); err != nil {
				return err
			}
			for i := range m.entries {
				if m.entries[i].kind == kindDir {
					stack = append(stack, m.entries[i].pair)
				}
			}
			p = m.tail
		}
	}
	return nil
}

// traverse calls fn for every block referenced by committed metadata.
func (fs *FileSystem) traverse(fn func(block uint32) error) error {
	return fs.walkPairs(func(m *mdir) error {
		if err := fn(m.pair[0]); err != nil {
			return err
		}
		if err := fn(m.pair[1]); err != nil {
			return err
		}
		for i := range m.entries {
			e := &m.entries[i]
			if e.kind != kindCTZ {
				continue
			}
			if err := fs.ctzTraverse(e.head, e.size, fn); err != nil {
				return err
			}
		}
		return nil
	})
}

// usedBlocks counts the distinct blocks referenced by committed metadata.
func (fs *FileSystem) usedBlocks() (uint32, error) {
	seen := make([]uint64, (fs.blockCount+63)/64)
	var n uint32
	err := fs.traverse(func(block uint32) error {
		if block >= fs.blockCount {
			return errCorrupt("block %d is past the end of the device", block)
		}
		word, bit := block/64, uint64(1)<<(block%64)
		if seen[word]&bit == 0 {
			seen[word] |= bit
			n++
		}
		return nil
	})
	return n, err
}
