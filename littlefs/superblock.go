package littlefs

import (
	"encoding/binary"
	"io"

	"github.com/rstms/lfs"
)

const (
	superblockSize = 24

	// MinBlockSize keeps three maximum-size records plus the superblock
	// and a move record within one metadata block, so a split always produces two halves
	// that fit.
	MinBlockSize = 512

	fileMax = 0x7fffffff
)

// Superblock is the geometry and version record stored at the head of
// the root metadata pair.
type Superblock struct {
	Version    uint32
	BlockSize  uint32
	BlockCount uint32
	NameMax    uint32
	InlineMax  uint32
	FileMax    uint32
}

func newSuperblock(version, blockSize, blockCount uint32) Superblock {
	return Superblock{
		Version:    version,
		BlockSize:  blockSize,
		BlockCount: blockCount,
		NameMax:    lfs.NameMax,
		InlineMax:  inlineMax(blockSize),
		FileMax:    fileMax,
	}
}

// inlineMax is the largest file stored directly in its directory record.
func inlineMax(blockSize uint32) uint32 {
	return min(blockSize/8, 1022)
}

func (s *Superblock) appendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, s.Version)
	dst = binary.LittleEndian.AppendUint32(dst, s.BlockSize)
	dst = binary.LittleEndian.AppendUint32(dst, s.BlockCount)
	dst = binary.LittleEndian.AppendUint32(dst, s.NameMax)
	dst = binary.LittleEndian.AppendUint32(dst, s.InlineMax)
	dst = binary.LittleEndian.AppendUint32(dst, s.FileMax)
	return dst
}

func decodeSuperblock(p []byte) (Superblock, error) {
	if len(p) < superblockSize {
		return Superblock{}, errCorrupt("truncated superblock")
	}
	s := Superblock{
		Version:    binary.LittleEndian.Uint32(p),
		BlockSize:  binary.LittleEndian.Uint32(p[4:]),
		BlockCount: binary.LittleEndian.Uint32(p[8:]),
		NameMax:    binary.LittleEndian.Uint32(p[12:]),
		InlineMax:  binary.LittleEndian.Uint32(p[16:]),
		FileMax:    binary.LittleEndian.Uint32(p[20:]),
	}
	if s.NameMax == 0 || s.NameMax > 255 {
		return Superblock{}, errCorrupt("superblock name limit %d out of range", s.NameMax)
	}
	if s.InlineMax > 1022 || s.FileMax == 0 || s.FileMax > fileMax {
		return Superblock{}, errCorrupt("superblock file limits out of range")
	}
	return s, nil
}

// checkGeometry validates a device geometry for formatting with c.
func checkGeometry(c codec, blockSize, blockCount uint32) error {
	if err := lfs.ValidGeometry(blockSize, blockCount); err != nil {
		return err
	}
	if blockSize < MinBlockSize {
		return errInvalid("block size %d is below the minimum %d", blockSize, MinBlockSize)
	}
	need := headerSize + superblockSize + moveSize + 3*c.maxEntrySize(lfs.NameMax, inlineMax(blockSize)) + crcSize
	if need > int(blockSize) {
		return errInvalid("block size %d cannot hold a metadata pair", blockSize)
	}
	if blockCount < 4 {
		return errInvalid("block count %d is below the minimum 4", blockCount)
	}
	return nil
}

// Probe reads the superblock of an image without knowing its block size.
// The root metadata block is self-delimiting, so the first copy is read
// from offset 0; when it is invalid the second copy is searched for at
// every power-of-two block size.
func Probe(r io.ReaderAt, size int64) (Superblock, error) {
	if m, err := probeAt(r, 0, size); err == nil {
		return *m.sb, nil
	}
	for bs := int64(MinBlockSize); bs <= 1<<20 && 2*bs <= size; bs <<= 1 {
		if size%bs != 0 {
			continue
		}
		m, err := probeAt(r, bs, size)
		if err == nil && int64(m.sb.BlockSize) == bs {
			return *m.sb, nil
		}
	}
	return Superblock{}, errCorrupt("no valid superblock found")
}

func probeAt(r io.ReaderAt, off, size int64) (*mdir, error) {
	hdr := make([]byte, headerSize)
	if size-off < headerSize {
		return nil, errCorrupt("image too small")
	}
	if _, err := r.ReadAt(hdr, off); err != nil {
		return nil, errCorrupt("reading header: %v", err)
	}
	n := int64(headerSize) + int64(binary.LittleEndian.Uint32(hdr[28:])) + crcSize
	if n > size-off || n > 1<<20 {
		return nil, errCorrupt("header length out of range")
	}
	buf := make([]byte, n)
	if _, err := r.ReadAt(buf, off); err != nil {
		return nil, errCorrupt("reading block: %v", err)
	}
	m, err := decodeBlock(buf, rootPair)
	if err != nil {
		return nil, err
	}
	if m.sb == nil {
		return nil, errCorrupt("root block carries no superblock")
	}
	return m, nil
}
