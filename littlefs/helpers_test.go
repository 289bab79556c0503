package littlefs

import (
	"bytes"
	"fmt"
	"sort"
	"testing"

	"github.com/rstms/lfs"
	"github.com/stretchr/testify/require"
)

func newDevice(t *testing.T, blockSize, blockCount uint32) *lfs.MemoryDevice {
	dev, err := lfs.NewMemoryDevice(blockSize, blockCount)
	require.Nil(t, err)
	return dev
}

func newMounted(t *testing.T, blockSize, blockCount uint32) (*FileSystem, *lfs.MemoryDevice) {
	dev := newDevice(t, blockSize, blockCount)
	require.Nil(t, Format(dev, Config{}))
	fs, err := Mount(dev, Config{})
	require.Nil(t, err)
	return fs, dev
}

func remount(t *testing.T, dev *lfs.MemoryDevice, cfg Config) *FileSystem {
	copied, err := lfs.NewMemoryDeviceFromImage(dev.Bytes(), dev.BlockSize())
	require.Nil(t, err)
	fs, err := Mount(copied, cfg)
	require.Nil(t, err)
	return fs
}

func pattern(n int, seed byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i*7) + seed
	}
	return p
}

// snapshot renders the whole tree as path -> content, with "<dir>" for
// directories.
func snapshot(t *testing.T, fs *FileSystem) map[string]string {
	tree := map[string]string{}
	var walk func(p string)
	walk = func(p string) {
		infos, err := fs.ReadDir(p)
		require.Nil(t, err)
		for _, info := range infos {
			if info.Type == lfs.TypeDir {
				tree[info.Path] = "<dir>"
				walk(info.Path)
				continue
			}
			data, err := fs.ReadFile(info.Path)
			require.Nil(t, err)
			require.Equal(t, info.Size, int64(len(data)))
			tree[info.Path] = string(data)
		}
	}
	walk("/")
	return tree
}

func names(t *testing.T, fs *FileSystem, p string) []string {
	infos, err := fs.ReadDir(p)
	require.Nil(t, err)
	result := []string{}
	for _, info := range infos {
		result = append(result, info.Path)
	}
	sort.Strings(result)
	return result
}

// faultDevice fails the n-th program or erase. A failing program writes
// the first half of its data first, as a torn write would.
type faultDevice struct {
	*lfs.MemoryDevice
	failAt int
	ops    int
	failed bool
}

var errInjected = lfs.Errorf(lfs.CodeIO, "injected fault")

func newFaultDevice(t *testing.T, image []byte, blockSize uint32, failAt int) *faultDevice {
	mem, err := lfs.NewMemoryDeviceFromImage(image, blockSize)
	require.Nil(t, err)
	return &faultDevice{MemoryDevice: mem, failAt: failAt}
}

// trip counts a write and reports whether it is the one that fails. Once
// tripped every later write fails too.
func (d *faultDevice) trip() (fail, first bool) {
	if d.failed {
		return true, false
	}
	d.ops++
	if d.ops == d.failAt {
		d.failed = true
		return true, true
	}
	return false, false
}

func (d *faultDevice) Program(block, off uint32, p []byte) error {
	if fail, first := d.trip(); fail {
		if first {
			_ = d.MemoryDevice.Program(block, off, p[:len(p)/2])
		}
		return errInjected
	}
	return d.MemoryDevice.Program(block, off, p)
}

func (d *faultDevice) Erase(block uint32) error {
	if fail, _ := d.trip(); fail {
		return errInjected
	}
	return d.MemoryDevice.Erase(block)
}

func requireCode(t *testing.T, code lfs.Code, err error) {
	t.Helper()
	require.NotNil(t, err)
	require.Equal(t, code, lfs.CodeOf(err), "error: %v", err)
}

func requireSameTree(t *testing.T, want, got map[string]string) {
	t.Helper()
	require.Equal(t, len(want), len(got))
	for p, content := range want {
		require.Contains(t, got, p)
		require.True(t, bytes.Equal([]byte(content), []byte(got[p])), fmt.Sprintf("content of %s differs", p))
	}
}
