package littlefs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCTZPointers(t *testing.T) {
	want := map[uint32]uint32{0: 0, 1: 1, 2: 2, 3: 1, 4: 3, 5: 1, 6: 2, 8: 4, 12: 3, 16: 5, 1024: 11}
	for n, count := range want {
		require.Equal(t, count, ctzPointers(n), "block %d", n)
	}
}

func TestCTZIndexMatchesLayout(t *testing.T) {
	for _, bs := range []uint32{512, 1024, 4096} {
		pos := uint32(0)
		for n := uint32(0); n < 300; n++ {
			start := 4 * ctzPointers(n)
			for off := start; off < bs; off++ {
				index, boff := ctzIndex(bs, pos)
				if index != n || boff != off {
					t.Fatalf("bs=%d pos=%d: got block %d offset %d, want %d %d", bs, pos, index, boff, n, off)
				}
				pos++
			}
		}
		require.Equal(t, uint32(300), ctzBlocks(bs, pos))
		require.Equal(t, uint32(301), ctzBlocks(bs, pos+1))
	}
	require.Equal(t, uint32(0), ctzBlocks(512, 0))
	require.Equal(t, uint32(1), ctzBlocks(512, 512))
	require.Equal(t, uint32(2), ctzBlocks(512, 513))
}

func TestCTZAppendRead(t *testing.T) {
	fs, _ := newMounted(t, 512, 256)
	require.Nil(t, fs.begin())

	data := pattern(40000, 3)
	head, size, err := fs.ctzAppend(blockNull, 0, data[:1000])
	require.Nil(t, err)
	require.Equal(t, uint32(1000), size)

	// odd-sized appends exercise the partial last block copy
	for off := 1000; off < len(data); off += 3333 {
		end := min(off+3333, len(data))
		head, size, err = fs.ctzAppend(head, size, data[off:end])
		require.Nil(t, err)
	}
	require.Equal(t, uint32(len(data)), size)

	got := make([]byte, len(data))
	n, err := fs.ctzRead(head, size, got, 0)
	require.Nil(t, err)
	require.Equal(t, len(data), n)
	require.Equal(t, data, got)

	for _, pos := range []uint32{0, 511, 512, 1019, 1020, 20000, 39999} {
		buf := make([]byte, 100)
		n, err := fs.ctzRead(head, size, buf, pos)
		require.Nil(t, err)
		want := data[pos:min(int(pos)+100, len(data))]
		require.Equal(t, len(want), n)
		require.Equal(t, want, buf[:n])
	}

	blocks := 0
	require.Nil(t, fs.ctzTraverse(head, size, func(uint32) error {
		blocks++
		return nil
	}))
	require.Equal(t, int(ctzBlocks(512, size)), blocks)
}
