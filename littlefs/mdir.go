package littlefs

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/rstms/lfs"
)

// Metadata block layout. The header is the same for every disk version:
//
//	0  magic "LFSM"
//	4  record encoding id
//	5  flags
//	6  reserved
//	8  revision
//	12 own pair
//	20 tail pair
//	28 payload length
//	32 payload (superblock record and move record when flagged, then
//	   directory records)
//	.. crc over header and payload
const (
	headerSize = 32
	crcSize    = 4

	blockNull uint32 = 0xffffffff

	flagSuperblock uint8 = 1 << 0
	flagMove       uint8 = 1 << 1
)

var magic = [4]byte{'L', 'F', 'S', 'M'}

// errNoRoom reports that a commit does not fit in one block; commitDir
// handles it by splitting the pair.
var errNoRoom = errors.New("metadata block full")

type pair [2]uint32

var (
	nullPair = pair{blockNull, blockNull}
	rootPair = pair{0, 1}
)

func (p pair) isNull() bool {
	return p[0] == blockNull || p[1] == blockNull
}

func (p pair) String() string {
	return fmt.Sprintf("{%d,%d}", p[0], p[1])
}

// seqGreater compares revision counts modulo 2^32, so a counter that
// wrapped past zero still outranks its predecessor.
func seqGreater(a, b uint32) bool {
	return int32(a-b) > 0
}

// mdir is one decoded metadata block. active is the index within pair of
// the block it was decoded from; it is derived by fetch from the two
// blocks on disk and only lives as long as the operation holding it.
type mdir struct {
	pair    pair
	active  int
	rev     uint32
	crc     uint32
	enc     uint8
	tail    pair
	sb      *Superblock
	move    *move
	entries []entry
}

func decodeBlock(buf []byte, expect pair) (*mdir, error) {
	if len(buf) < headerSize+crcSize {
		return nil, errCorrupt("block shorter than a header")
	}
	if !bytes.Equal(buf[:4], magic[:]) {
		return nil, errCorrupt("bad metadata magic")
	}
	n := binary.LittleEndian.Uint32(buf[28:])
	if uint64(n) > uint64(len(buf)-headerSize-crcSize) {
		return nil, errCorrupt("payload length %d out of range", n)
	}
	end := headerSize + int(n)
	sum := binary.LittleEndian.Uint32(buf[end:])
	if crc(0xffffffff, buf[:end]) != sum {
		return nil, errCorrupt("checksum mismatch")
	}
	m := &mdir{
		enc:  buf[4],
		rev:  binary.LittleEndian.Uint32(buf[8:]),
		pair: pair{binary.LittleEndian.Uint32(buf[12:]), binary.LittleEndian.Uint32(buf[16:])},
		tail: pair{binary.LittleEndian.Uint32(buf[20:]), binary.LittleEndian.Uint32(buf[24:])},
		crc:  sum,
	}
	if m.pair != expect {
		return nil, errCorrupt("block belongs to pair %v, want %v", m.pair, expect)
	}
	payload := buf[headerSize:end]
	if buf[5]&flagSuperblock != 0 {
		sb, err := decodeSuperblock(payload)
		if err != nil {
			return nil, err
		}
		m.sb = &sb
		payload = payload[superblockSize:]
	}
	if buf[5]&flagMove != 0 {
		mv, err := decodeMove(payload)
		if err != nil {
			return nil, err
		}
		m.move = mv
		payload = payload[moveSize:]
	}
	c, err := codecByID(m.enc)
	if err != nil {
		return nil, err
	}
	m.entries, err = c.decodeEntries(payload)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// fetch reads both halves of a pair and returns the newest valid copy.
func (fs *FileSystem) fetch(p pair) (*mdir, error) {
	var found *mdir
	var reason error
	for i := range 2 {
		if p[i] >= fs.blockCount {
			return nil, errCorrupt("metadata pair %v out of range", p)
		}
		if err := fs.dev.Read(p[i], 0, fs.rbuf); err != nil {
			return nil, err
		}
		m, err := decodeBlock(fs.rbuf, p)
		if err != nil {
			reason = err
			continue
		}
		m.active = i
		if found == nil || seqGreater(m.rev, found.rev) {
			found = m
		}
	}
	if found == nil {
		return nil, errCorrupt("metadata pair %v has no valid copy: %v", p, reason)
	}
	return found, nil
}

func (fs *FileSystem) encode(m *mdir, entries []entry, tail pair, rev uint32) []byte {
	var flags uint8
	if m.sb != nil {
		flags |= flagSuperblock
	}
	if m.move != nil {
		flags |= flagMove
	}
	buf := append(fs.pbuf[:0], magic[:]...)
	buf = append(buf, fs.codec.id(), flags, 0, 0)
	buf = binary.LittleEndian.AppendUint32(buf, rev)
	buf = binary.LittleEndian.AppendUint32(buf, m.pair[0])
	buf = binary.LittleEndian.AppendUint32(buf, m.pair[1])
	buf = binary.LittleEndian.AppendUint32(buf, tail[0])
	buf = binary.LittleEndian.AppendUint32(buf, tail[1])
	buf = binary.LittleEndian.AppendUint32(buf, 0)
	if m.sb != nil {
		buf = m.sb.appendTo(buf)
	}
	if m.move != nil {
		buf = m.move.appendTo(buf)
	}
	for i := range entries {
		buf = fs.codec.appendEntry(buf, &entries[i])
	}
	binary.LittleEndian.PutUint32(buf[28:], uint32(len(buf)-headerSize))
	buf = binary.LittleEndian.AppendUint32(buf, crc(0xffffffff, buf))
	fs.pbuf = buf[:0]
	return buf
}

// encodedSize is the number of bytes a commit of entries to m would use.
func (fs *FileSystem) encodedSize(m *mdir, entries []entry) int {
	n := headerSize + crcSize
	if m.sb != nil {
		n += superblockSize
	}
	if m.move != nil {
		n += moveSize
	}
	for i := range entries {
		n += entrySize(fs.codec, &entries[i])
	}
	return n
}

// commit writes a new revision of m to the half that is not active,
// verifies it by reading it back and only then adopts it. Until the
// program completes the old half stays the newest valid copy; once it
// completes the new half outranks it by revision.
func (fs *FileSystem) commit(m *mdir, entries []entry, tail pair) error {
	buf := fs.encode(m, entries, tail, m.rev+1)
	if len(buf) > int(fs.blockSize) {
		return errNoRoom
	}
	target := m.pair[1-m.active]
	if err := fs.dev.Erase(target); err != nil {
		return err
	}
	if err := fs.dev.Program(target, 0, buf); err != nil {
		return err
	}
	if err := fs.dev.Sync(); err != nil {
		return err
	}
	check := fs.rbuf[:len(buf)]
	if err := fs.dev.Read(target, 0, check); err != nil {
		return err
	}
	if !bytes.Equal(check, buf) {
		return lfs.Errorf(lfs.CodeIO, "read-back of block %d does not match the programmed data", target)
	}
	m.active = 1 - m.active
	m.rev++
	m.crc = binary.LittleEndian.Uint32(buf[len(buf)-crcSize:])
	m.enc = fs.codec.id()
	m.tail = tail
	m.entries = slices.Clone(entries)
	fs.log.Debug("commit", "pair", m.pair.String(), "block", target, "rev", m.rev, "entries", len(entries))
	return nil
}

// commitDir commits entries to m, splitting the pair when they do not fit.
// The second half is committed to a fresh pair first and only then linked
// from m, so a crash in between leaves an unreferenced pair behind.
func (fs *FileSystem) commitDir(m *mdir, entries []entry, tail pair) error {
	err := fs.commit(m, entries, tail)
	if !errors.Is(err, errNoRoom) {
		return err
	}
	if len(entries) < 2 {
		return errNoSpace("record does not fit in a metadata block")
	}
	split := fs.splitPoint(entries)
	child, err := fs.allocPair()
	if err != nil {
		return err
	}
	if err := fs.commitDir(child, slices.Clone(entries[split:]), tail); err != nil {
		return err
	}
	fs.log.Debug("split", "pair", m.pair.String(), "into", child.pair.String(), "at", split, "of", len(entries))
	return fs.commitDir(m, slices.Clone(entries[:split]), child.pair)
}

func (fs *FileSystem) splitPoint(entries []entry) int {
	total := 0
	sizes := make([]int, len(entries))
	for i := range entries {
		sizes[i] = entrySize(fs.codec, &entries[i])
		total += sizes[i]
	}
	acc := 0
	for i, size := range sizes {
		acc += size
		if 2*acc >= total {
			return min(max(i+1, 1), len(entries)-1)
		}
	}
	return len(entries) / 2
}

// allocPair allocates a new metadata pair ready for its first commit.
func (fs *FileSystem) allocPair() (*mdir, error) {
	a, err := fs.alloc.alloc()
	if err != nil {
		return nil, err
	}
	b, err := fs.alloc.alloc()
	if err != nil {
		return nil, err
	}
	// the first commit goes to a; b may hold a stale copy from an
	// earlier owner that must not outrank it
	if err := fs.dev.Erase(b); err != nil {
		return nil, err
	}
	return &mdir{pair: pair{a, b}, active: 1, tail: nullPair}, nil
}
