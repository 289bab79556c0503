package littlefs

import (
	"encoding/binary"
)

// A move record in the root pair marks a rename between two metadata
// pairs that may have been interrupted. It is committed before the
// destination record, and cleared after the source record is dropped.
// Mount finishes a recorded move: when the destination record exists the
// source record is dropped, otherwise the move never happened.
//
//	0  source directory head pair
//	8  destination directory head pair
//	16 identity of the moved record
//	24 crc of the source name
//	28 crc of the destination name
//	32 record kind
const moveSize = 33

type move struct {
	src     pair
	dst     pair
	kind    entryKind
	id      pair
	srcName uint32
	dstName uint32
}

// identity distinguishes a record by what it points to: the child pair
// of a directory, the skip-list of a file, or the size and crc of inline
// content.
func identity(e *entry) pair {
	switch e.kind {
	case kindDir:
		return e.pair
	case kindCTZ:
		return pair{e.head, e.size}
	}
	return pair{uint32(len(e.data)), crc(0xffffffff, e.data)}
}

func nameCRC(name string) uint32 {
	return crc(0xffffffff, []byte(name))
}

func newMove(src, dst *Directory, e *entry, srcName, dstName string) *move {
	return &move{
		src:     src.head,
		dst:     dst.head,
		kind:    e.kind,
		id:      identity(e),
		srcName: nameCRC(srcName),
		dstName: nameCRC(dstName),
	}
}

func (mv *move) appendTo(dst []byte) []byte {
	for _, v := range []uint32{mv.src[0], mv.src[1], mv.dst[0], mv.dst[1], mv.id[0], mv.id[1], mv.srcName, mv.dstName} {
		dst = binary.LittleEndian.AppendUint32(dst, v)
	}
	return append(dst, byte(mv.kind))
}

func decodeMove(p []byte) (*move, error) {
	if len(p) < moveSize {
		return nil, errCorrupt("truncated move record")
	}
	u := func(off int) uint32 { return binary.LittleEndian.Uint32(p[off:]) }
	mv := &move{
		src:     pair{u(0), u(4)},
		dst:     pair{u(8), u(12)},
		id:      pair{u(16), u(20)},
		srcName: u(24),
		dstName: u(28),
		kind:    entryKind(p[32]),
	}
	if mv.kind < kindDir || mv.kind > kindCTZ {
		return nil, errCorrupt("move record of unknown kind %d", mv.kind)
	}
	return mv, nil
}

func (mv *move) matches(e *entry, name uint32) bool {
	return e.kind == mv.kind && identity(e) == mv.id && nameCRC(e.name) == name
}

// findMoved returns the slot of the record matching mv and name, with
// i == -1 when there is none.
func (d *Directory) findMoved(mv *move, name uint32) (slot, error) {
	chain, err := d.chain()
	if err != nil {
		return slot{}, err
	}
	for k, m := range chain {
		for i := range m.entries {
			if mv.matches(&m.entries[i], name) {
				return slot{chain: chain, k: k, i: i}, nil
			}
		}
	}
	return slot{chain: chain, i: -1}, nil
}

// setMove records mv in the root pair, or clears the record when mv is
// nil.
func (fs *FileSystem) setMove(mv *move) error {
	root, err := fs.fetch(rootPair)
	if err != nil {
		return err
	}
	if root.move == nil && mv == nil {
		return nil
	}
	root.move = mv
	return fs.commitDir(root, root.entries, root.tail)
}

// finishMove completes or discards the move recorded in root.
func (fs *FileSystem) finishMove(root *mdir) error {
	mv := root.move
	src := &Directory{fs: fs, head: mv.src}
	dst := &Directory{fs: fs, head: mv.dst}
	ds, err := dst.findMoved(mv, mv.dstName)
	if err != nil {
		return err
	}
	if ds.i >= 0 {
		ss, err := src.findMoved(mv, mv.srcName)
		if err != nil {
			return err
		}
		if ss.i >= 0 && (src.head != dst.head || ss.k != ds.k || ss.i != ds.i) {
			fs.log.Info("finishing interrupted rename", "dir", mv.dst.String())
			if err := src.drop(ss); err != nil {
				return err
			}
		}
	}
	return fs.setMove(nil)
}
