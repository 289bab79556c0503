package littlefs

import (
	"bytes"
	"encoding/binary"

	"github.com/rstms/lfs"
)

// codecV21 stores the same records as codecV20 with uvarint fields, which
// packs more entries into each metadata block.
type codecV21 struct{}

func (codecV21) id() uint8       { return codecIDv21 }
func (codecV21) version() uint32 { return lfs.DiskVersion2_1 }

func (codecV21) appendEntry(dst []byte, e *entry) []byte {
	dst = append(dst, byte(e.kind))
	dst = binary.AppendUvarint(dst, uint64(len(e.name)))
	dst = append(dst, e.name...)
	switch e.kind {
	case kindDir:
		dst = binary.AppendUvarint(dst, uint64(e.pair[0]))
		dst = binary.AppendUvarint(dst, uint64(e.pair[1]))
	case kindInline:
		dst = binary.AppendUvarint(dst, uint64(len(e.data)))
		dst = append(dst, e.data...)
	case kindCTZ:
		dst = binary.AppendUvarint(dst, uint64(e.head))
		dst = binary.AppendUvarint(dst, uint64(e.size))
	}
	return dst
}

type uvarintReader struct {
	p   []byte
	err error
}

func (r *uvarintReader) next() uint64 {
	if r.err != nil {
		return 0
	}
	v, n := binary.Uvarint(r.p)
	if n <= 0 {
		r.err = errCorrupt("malformed varint")
		return 0
	}
	r.p = r.p[n:]
	return v
}

func (r *uvarintReader) next32() uint32 {
	v := r.next()
	if v > 0xffffffff && r.err == nil {
		r.err = errCorrupt("varint %d overflows 32 bits", v)
	}
	return uint32(v)
}

func (r *uvarintReader) bytes(n uint64) []byte {
	if r.err != nil {
		return nil
	}
	if n > uint64(len(r.p)) {
		r.err = errCorrupt("truncated record")
		return nil
	}
	b := r.p[:n]
	r.p = r.p[n:]
	return b
}

func (codecV21) decodeEntries(p []byte) ([]entry, error) {
	var entries []entry
	r := &uvarintReader{p: p}
	for len(r.p) > 0 {
		kind := entryKind(r.p[0])
		r.p = r.p[1:]
		e := entry{kind: kind}
		e.name = string(r.bytes(r.next()))
		switch kind {
		case kindDir:
			e.pair = pair{r.next32(), r.next32()}
		case kindInline:
			e.data = bytes.Clone(r.bytes(r.next()))
			if e.data == nil {
				e.data = []byte{}
			}
		case kindCTZ:
			e.head = r.next32()
			e.size = r.next32()
		default:
			return nil, errCorrupt("unknown record kind %d", kind)
		}
		if r.err != nil {
			return nil, r.err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func uvarintLen(x uint64) int {
	var buf [binary.MaxVarintLen64]byte
	return binary.PutUvarint(buf[:], x)
}

func (codecV21) maxEntrySize(nameMax, inlineMax uint32) int {
	return 1 + uvarintLen(uint64(nameMax)) + int(nameMax) +
		max(2*binary.MaxVarintLen32, uvarintLen(uint64(inlineMax))+int(inlineMax))
}
