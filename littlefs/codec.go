package littlefs

import (
	"github.com/rstms/lfs"
)

type entryKind uint8

const (
	kindDir    entryKind = 1
	kindInline entryKind = 2
	kindCTZ    entryKind = 3
)

// entry is one decoded directory record.
type entry struct {
	name string
	kind entryKind
	pair pair   // kindDir: head of the child directory
	data []byte // kindInline: file content
	head uint32 // kindCTZ: last block of the skip-list
	size uint32 // kindCTZ: file size
}

func (e *entry) typ() lfs.EntryType {
	if e.kind == kindDir {
		return lfs.TypeDir
	}
	return lfs.TypeFile
}

func (e *entry) fileSize() int64 {
	switch e.kind {
	case kindInline:
		return int64(len(e.data))
	case kindCTZ:
		return int64(e.size)
	}
	return 0
}

// codec encodes directory records in the layout of one disk version.
// Record layouts are the only thing that differs between versions; the
// metadata block header and the superblock record are shared.
type codec interface {
	id() uint8
	version() uint32
	appendEntry(dst []byte, e *entry) []byte
	decodeEntries(p []byte) ([]entry, error)
	maxEntrySize(nameMax, inlineMax uint32) int
}

const (
	codecIDv20 uint8 = 0
	codecIDv21 uint8 = 1
)

var codecs = map[uint8]codec{
	codecIDv20: codecV20{},
	codecIDv21: codecV21{},
}

// codecFor returns the codec writing the given disk version.
func codecFor(version uint32) (codec, error) {
	for _, c := range codecs {
		if c.version() == version {
			return c, nil
		}
	}
	return nil, lfs.Errorf(lfs.CodeInvalid, "unsupported disk version %s", lfs.FormatDiskVersion(version))
}

// codecByID returns the codec named in a metadata block header.
func codecByID(id uint8) (codec, error) {
	c, ok := codecs[id]
	if !ok {
		return nil, errCorrupt("unknown record encoding %d", id)
	}
	return c, nil
}

func entrySize(c codec, e *entry) int {
	return len(c.appendEntry(nil, e))
}
