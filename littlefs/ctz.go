package littlefs

import (
	"encoding/binary"
	"math/bits"
)

// File data lives in a CTZ skip-list. Block n of a file starts with
// ctz(n)+1 little-endian back-pointers, pointer i naming block n-2^i;
// block 0 has none. The rest of each block is file data. A file is
// referenced by its last block and its size.

// ctzPointers is the number of back-pointers stored in block n.
func ctzPointers(n uint32) uint32 {
	if n == 0 {
		return 0
	}
	return uint32(bits.TrailingZeros32(n)) + 1
}

// ctzIndex maps a file position to the index of the block holding it and
// the byte offset within that block, pointers included.
func ctzIndex(blockSize, pos uint32) (uint32, uint32) {
	b := blockSize - 2*4
	i := pos / b
	if i == 0 {
		return 0, pos
	}
	i = (pos - 4*(uint32(bits.OnesCount32(i-1))+2)) / b
	return i, pos - b*i - 4*uint32(bits.OnesCount32(i))
}

// ctzBlocks is the number of data blocks a file of size bytes occupies.
func ctzBlocks(blockSize, size uint32) uint32 {
	if size == 0 {
		return 0
	}
	i, _ := ctzIndex(blockSize, size-1)
	return i + 1
}

func (fs *FileSystem) readPointer(block, i uint32) (uint32, error) {
	var b [4]byte
	if err := fs.dev.Read(block, 4*i, b[:]); err != nil {
		return 0, err
	}
	ptr := binary.LittleEndian.Uint32(b[:])
	if ptr >= fs.blockCount {
		return 0, errCorrupt("block %d pointer %d out of range: %d", block, i, ptr)
	}
	return ptr, nil
}

// ctzFind returns the block and in-block offset holding pos, walking the
// largest skips that do not overshoot.
func (fs *FileSystem) ctzFind(head, size, pos uint32) (uint32, uint32, error) {
	current, _ := ctzIndex(fs.blockSize, size-1)
	target, off := ctzIndex(fs.blockSize, pos)
	for current > target {
		skip := min(uint32(bits.Len32(current-target))-1, uint32(bits.TrailingZeros32(current)))
		next, err := fs.readPointer(head, skip)
		if err != nil {
			return 0, 0, err
		}
		head = next
		current -= 1 << skip
	}
	return head, off, nil
}

// ctzRead fills p from position off of the file. Reads past size are
// truncated; the number of bytes read is returned.
func (fs *FileSystem) ctzRead(head, size uint32, p []byte, off uint32) (int, error) {
	if off >= size {
		return 0, nil
	}
	p = p[:min(uint32(len(p)), size-off)]
	n := 0
	for n < len(p) {
		pos := off + uint32(n)
		block, boff, err := fs.ctzFind(head, size, pos)
		if err != nil {
			return n, err
		}
		chunk := min(uint32(len(p)-n), fs.blockSize-boff, size-pos)
		if err := fs.dev.Read(block, boff, p[n:n+int(chunk)]); err != nil {
			return n, err
		}
		n += int(chunk)
	}
	return n, nil
}

// ctzExtend allocates the block the next byte after size is written to
// and returns it with the offset of that byte. A partially filled last
// block is copied, so blocks already referenced are never reprogrammed.
func (fs *FileSystem) ctzExtend(head, size uint32) (uint32, uint32, error) {
	block, err := fs.alloc.alloc()
	if err != nil {
		return 0, 0, err
	}
	if err := fs.dev.Erase(block); err != nil {
		return 0, 0, err
	}
	if size == 0 {
		return block, 0, nil
	}
	index, off := ctzIndex(fs.blockSize, size-1)
	off++
	if off != fs.blockSize {
		buf := fs.dbuf[:off]
		if err := fs.dev.Read(head, 0, buf); err != nil {
			return 0, 0, err
		}
		if err := fs.dev.Program(block, 0, buf); err != nil {
			return 0, 0, err
		}
		return block, off, nil
	}
	index++
	skips := ctzPointers(index)
	ptr := head
	var b [4]byte
	for i := range skips {
		binary.LittleEndian.PutUint32(b[:], ptr)
		if err := fs.dev.Program(block, 4*i, b[:]); err != nil {
			return 0, 0, err
		}
		if i != skips-1 {
			if ptr, err = fs.readPointer(ptr, i); err != nil {
				return 0, 0, err
			}
		}
	}
	return block, 4 * skips, nil
}

// ctzAppend writes data after the end of the file {head, size} and returns
// the new head and size. Pass size 0 to start a new file.
func (fs *FileSystem) ctzAppend(head, size uint32, data []byte) (uint32, uint32, error) {
	if uint64(size)+uint64(len(data)) > uint64(fs.sb.FileMax) {
		return 0, 0, errInvalid("file size %d exceeds the limit %d", uint64(size)+uint64(len(data)), fs.sb.FileMax)
	}
	for len(data) > 0 {
		block, off, err := fs.ctzExtend(head, size)
		if err != nil {
			return 0, 0, err
		}
		n := min(int(fs.blockSize-off), len(data))
		if err := fs.dev.Program(block, off, data[:n]); err != nil {
			return 0, 0, err
		}
		head = block
		size += uint32(n)
		data = data[n:]
	}
	return head, size, nil
}

// ctzTraverse calls fn for every block of the file, last block first.
func (fs *FileSystem) ctzTraverse(head, size uint32, fn func(block uint32) error) error {
	if size == 0 {
		return nil
	}
	index, _ := ctzIndex(fs.blockSize, size-1)
	for {
		if err := fn(head); err != nil {
			return err
		}
		if index == 0 {
			return nil
		}
		next, err := fs.readPointer(head, 0)
		if err != nil {
			return err
		}
		head = next
		index--
	}
}
