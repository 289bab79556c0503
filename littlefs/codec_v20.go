package littlefs

import (
	"bytes"
	"encoding/binary"

	"github.com/rstms/lfs"
)

// codecV20 stores records with fixed-width little-endian fields:
//
//	kind u8 | nameLen u8 | name | dir: pair0 u32, pair1 u32
//	                            | inline: len u16, data
//	                            | ctz: head u32, size u32
type codecV20 struct{}

func (codecV20) id() uint8       { return codecIDv20 }
func (codecV20) version() uint32 { return lfs.DiskVersion2_0 }

func (codecV20) appendEntry(dst []byte, e *entry) []byte {
	dst = append(dst, byte(e.kind), byte(len(e.name)))
	dst = append(dst, e.name...)
	switch e.kind {
	case kindDir:
		dst = binary.LittleEndian.AppendUint32(dst, e.pair[0])
		dst = binary.LittleEndian.AppendUint32(dst, e.pair[1])
	case kindInline:
		dst = binary.LittleEndian.AppendUint16(dst, uint16(len(e.data)))
		dst = append(dst, e.data...)
	case kindCTZ:
		dst = binary.LittleEndian.AppendUint32(dst, e.head)
		dst = binary.LittleEndian.AppendUint32(dst, e.size)
	}
	return dst
}

func (codecV20) decodeEntries(p []byte) ([]entry, error) {
	var entries []entry
	for len(p) > 0 {
		if len(p) < 2 {
			return nil, errCorrupt("truncated record header")
		}
		kind, n := entryKind(p[0]), int(p[1])
		p = p[2:]
		if len(p) < n {
			return nil, errCorrupt("truncated record name")
		}
		e := entry{kind: kind, name: string(p[:n])}
		p = p[n:]
		switch kind {
		case kindDir:
			if len(p) < 8 {
				return nil, errCorrupt("truncated directory record")
			}
			e.pair = pair{binary.LittleEndian.Uint32(p), binary.LittleEndian.Uint32(p[4:])}
			p = p[8:]
		case kindInline:
			if len(p) < 2 {
				return nil, errCorrupt("truncated inline record")
			}
			size := int(binary.LittleEndian.Uint16(p))
			p = p[2:]
			if len(p) < size {
				return nil, errCorrupt("truncated inline data")
			}
			e.data = bytes.Clone(p[:size])
			p = p[size:]
		case kindCTZ:
			if len(p) < 8 {
				return nil, errCorrupt("truncated file record")
			}
			e.head = binary.LittleEndian.Uint32(p)
			e.size = binary.LittleEndian.Uint32(p[4:])
			p = p[8:]
		default:
			return nil, errCorrupt("unknown record kind %d", kind)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (codecV20) maxEntrySize(nameMax, inlineMax uint32) int {
	return 2 + int(nameMax) + max(8, 2+int(inlineMax))
}
