package littlefs

import (
	"testing"

	"github.com/rstms/lfs"
	"github.com/stretchr/testify/require"
)

func TestAllocNoSpace(t *testing.T) {
	fs, _ := newMounted(t, 512, 16)
	require.Nil(t, fs.begin())
	seen := map[uint32]bool{0: true, 1: true}
	for range 14 {
		block, err := fs.alloc.alloc()
		require.Nil(t, err)
		require.False(t, seen[block], "block %d handed out twice", block)
		seen[block] = true
	}
	_, err := fs.alloc.alloc()
	requireCode(t, lfs.CodeNoSpace, err)

	// nothing was committed, so a new operation finds the blocks free again
	require.Nil(t, fs.begin())
	_, err = fs.alloc.alloc()
	require.Nil(t, err)
}

func TestAllocSmallWindow(t *testing.T) {
	dev := newDevice(t, 512, 64)
	require.Nil(t, Format(dev, Config{}))
	fs, err := Mount(dev, Config{LookaheadSize: 1})
	require.Nil(t, err)
	require.Equal(t, uint32(8), fs.alloc.size)

	// the file spans more blocks than one window holds
	data := pattern(20000, 4)
	require.Nil(t, fs.WriteFile("/big", data))
	got, err := fs.ReadFile("/big")
	require.Nil(t, err)
	require.Equal(t, data, got)
}

func TestCanFitMatchesWrite(t *testing.T) {
	fs, _ := newMounted(t, 512, 48)
	for i := 0; ; i++ {
		fits, err := fs.Fits(3000)
		require.Nil(t, err)
		err = fs.WriteFile(fileName(i), pattern(3000, byte(i)))
		require.Equal(t, !fits, lfs.CodeOf(err) == lfs.CodeNoSpace, "file %d: fits=%v err=%v", i, fits, err)
		if !fits {
			break
		}
		require.Nil(t, err)
	}
	// inline files need no data blocks
	fits, err := fs.Fits(10)
	require.Nil(t, err)
	require.Equal(t, fits, fs.WriteFile("/tiny", []byte("tiny")) == nil)
}

func TestAllocSpreadsWear(t *testing.T) {
	fs, _ := newMounted(t, 512, 64)
	touched := map[uint32]bool{}
	for i := range 100 {
		require.Nil(t, fs.WriteFile("/hot", pattern(600, byte(i))))
		s, err := (&Directory{fs: fs, head: rootPair}).find("hot")
		require.Nil(t, err)
		e := s.entry()
		require.Nil(t, fs.ctzTraverse(e.head, e.size, func(block uint32) error {
			touched[block] = true
			return nil
		}))
	}
	// rewriting one file cycles through the whole device
	require.Greater(t, len(touched), 50)
}

func TestUsageCountsBlocks(t *testing.T) {
	fs, _ := newMounted(t, 512, 64)
	usage, err := fs.Usage()
	require.Nil(t, err)
	require.Equal(t, lfs.Usage{CapacityBytes: 512 * 64, UsedBytes: 2 * 512, FreeBytes: 62 * 512}, usage)

	require.Nil(t, fs.Mkdir("/d"))
	require.Nil(t, fs.WriteFile("/d/f", pattern(1000, 1)))
	usage, err = fs.Usage()
	require.Nil(t, err)
	require.Equal(t, uint64(6*512), usage.UsedBytes)
	require.Equal(t, usage.CapacityBytes, usage.UsedBytes+usage.FreeBytes)
}

func TestUsageCountsSharedBlocksOnce(t *testing.T) {
	fs, _ := newMounted(t, 512, 64)
	require.Nil(t, fs.Mkdir("/a"))
	require.Nil(t, fs.Mkdir("/b"))
	require.Nil(t, fs.WriteFile("/a/f", pattern(1500, 2)))
	usage, err := fs.Usage()
	require.Nil(t, err)

	// a second record naming the same skip-list, as an interrupted
	// rename leaves behind until the next mount
	require.Nil(t, fs.begin())
	a, err := fs.openDir([]string{"a"})
	require.Nil(t, err)
	s, err := a.find("f")
	require.Nil(t, err)
	alias := *s.entry()
	alias.name = "g"
	b, err := fs.openDir([]string{"b"})
	require.Nil(t, err)
	ds, err := b.find("g")
	require.Nil(t, err)
	require.Nil(t, b.insert(ds.chain, alias))

	shared, err := fs.Usage()
	require.Nil(t, err)
	require.Equal(t, usage, shared)
	require.Equal(t, shared.CapacityBytes, shared.UsedBytes+shared.FreeBytes)
}
