package littlefs

import (
	"fmt"
	"strings"
	"testing"

	"github.com/rstms/lfs"
	"github.com/stretchr/testify/require"
)

func fileName(i int) string {
	return fmt.Sprintf("/file-%03d", i)
}

func TestFileSystemImplementsFileSystem(t *testing.T) {
	var raw interface{}
	raw = new(FileSystem)
	if _, ok := raw.(lfs.FileSystem); !ok {
		t.Fatal("FileSystem should be a FileSystem")
	}
}

func TestFormatRejectsBadGeometry(t *testing.T) {
	dev := newDevice(t, 256, 64)
	requireCode(t, lfs.CodeInvalid, Format(dev, Config{}))
	dev = newDevice(t, 512, 2)
	requireCode(t, lfs.CodeInvalid, Format(dev, Config{}))
	dev = newDevice(t, 512, 16)
	requireCode(t, lfs.CodeInvalid, Format(dev, Config{DiskVersion: 0x00010000}))
}

func TestMountBlankDevice(t *testing.T) {
	_, err := Mount(newDevice(t, 512, 16), Config{})
	requireCode(t, lfs.CodeCorrupt, err)
}

func TestMountGeometryMismatch(t *testing.T) {
	_, dev := newMounted(t, 512, 32)
	image := dev.Bytes()
	bigger, err := lfs.NewMemoryDeviceFromImage(append(image, make([]byte, 512*32)...), 512)
	require.Nil(t, err)
	_, err = Mount(bigger, Config{})
	requireCode(t, lfs.CodeInvalid, err)
}

func TestHelloScenario(t *testing.T) {
	fs, _ := newMounted(t, 4096, 64)
	require.Nil(t, fs.AddFile("/hello.txt", []byte("hi")))
	infos, err := fs.ReadDir("/")
	require.Nil(t, err)
	require.Equal(t, []lfs.Info{{Path: "/hello.txt", Size: 2, Type: lfs.TypeFile}}, infos)
	data, err := fs.ReadFile("/hello.txt")
	require.Nil(t, err)
	require.Equal(t, []byte("hi"), data)
	requireCode(t, lfs.CodeExists, fs.AddFile("/hello.txt", []byte("again")))
}

func TestEmptyFileReadsNonNil(t *testing.T) {
	fs, _ := newMounted(t, 512, 32)
	require.Nil(t, fs.WriteFile("/empty", nil))
	data, err := fs.ReadFile("/empty")
	require.Nil(t, err)
	require.NotNil(t, data)
	require.Len(t, data, 0)
}

func TestLargeFileOverwrite(t *testing.T) {
	fs, dev := newMounted(t, 512, 128)
	first := pattern(10000, 1)
	second := pattern(7000, 2)
	require.Nil(t, fs.WriteFile("/big", first))
	usage, err := fs.Usage()
	require.Nil(t, err)
	require.Equal(t, uint64(512*(2+ctzBlocks(512, 10000))), usage.UsedBytes)

	require.Nil(t, fs.WriteFile("/big", second))
	data, err := fs.ReadFile("/big")
	require.Nil(t, err)
	require.Equal(t, second, data)
	usage, err = fs.Usage()
	require.Nil(t, err)
	require.Equal(t, uint64(512*(2+ctzBlocks(512, 7000))), usage.UsedBytes)

	fs = remount(t, dev, Config{})
	data, err = fs.ReadFile("/big")
	require.Nil(t, err)
	require.Equal(t, second, data)
}

func TestAppendFile(t *testing.T) {
	fs, _ := newMounted(t, 512, 128)
	var want []byte
	for i := range 40 {
		chunk := pattern(97, byte(i))
		want = append(want, chunk...)
		require.Nil(t, fs.AppendFile("/log", chunk))
	}
	data, err := fs.ReadFile("/log")
	require.Nil(t, err)
	require.Equal(t, want, data)
	info, err := fs.Stat("/log")
	require.Nil(t, err)
	require.Equal(t, int64(len(want)), info.Size)
	require.Nil(t, fs.Mkdir("/d"))
	requireCode(t, lfs.CodeInvalid, fs.AppendFile("/d", []byte("x")))
}

func TestNameLimit(t *testing.T) {
	fs, _ := newMounted(t, 512, 32)
	require.Nil(t, fs.Mkdir("/"+strings.Repeat("a", lfs.NameMax)))
	requireCode(t, lfs.CodeInvalid, fs.Mkdir("/"+strings.Repeat("a", lfs.NameMax+1)))
	requireCode(t, lfs.CodeInvalid, fs.WriteFile("/", []byte("x")))
	requireCode(t, lfs.CodeInvalid, fs.Mkdir("/bad\x00name"))
}

func TestPathResolution(t *testing.T) {
	fs, _ := newMounted(t, 512, 64)
	require.Nil(t, fs.Mkdir("/a"))
	require.Nil(t, fs.Mkdir("a/b"))
	require.Nil(t, fs.WriteFile("/a/./b/../b/c.txt", []byte("c")))
	data, err := fs.ReadFile("a/b/c.txt")
	require.Nil(t, err)
	require.Equal(t, "c", string(data))

	requireCode(t, lfs.CodeNotFound, fs.Mkdir("/missing/x"))
	requireCode(t, lfs.CodeNotFound, fs.WriteFile("/a/b/c.txt/d", []byte("x")))
	_, err = fs.ReadFile("/a/nope")
	requireCode(t, lfs.CodeNotFound, err)
	_, err = fs.ReadFile("/a")
	requireCode(t, lfs.CodeInvalid, err)
	requireCode(t, lfs.CodeExists, fs.Mkdir("/a/b"))

	info, err := fs.Stat("/")
	require.Nil(t, err)
	require.Equal(t, lfs.TypeDir, info.Type)
	require.Equal(t, []string{"/a/b/c.txt"}, names(t, fs, "/a/b"))
}

func TestDeleteScenario(t *testing.T) {
	fs, _ := newMounted(t, 512, 64)
	require.Nil(t, fs.Mkdir("/a"))
	require.Nil(t, fs.AddFile("/a/b.txt", []byte("x")))
	requireCode(t, lfs.CodeNotEmpty, fs.Remove("/a", false))
	require.Nil(t, fs.Remove("/a", true))
	require.Equal(t, []string{}, names(t, fs, "/"))
	requireCode(t, lfs.CodeNotFound, fs.Remove("/a", false))
	requireCode(t, lfs.CodeInvalid, fs.Remove("/", false))
}

func TestRecursiveDeleteFreesBlocks(t *testing.T) {
	fs, _ := newMounted(t, 512, 256)
	before, err := fs.Usage()
	require.Nil(t, err)
	require.Nil(t, fs.Mkdir("/tree"))
	for i := range 3 {
		dir := fmt.Sprintf("/tree/d%d", i)
		require.Nil(t, fs.Mkdir(dir))
		require.Nil(t, fs.Mkdir(dir+"/sub"))
		for j := range 20 {
			require.Nil(t, fs.WriteFile(fmt.Sprintf("%s/sub/f%02d", dir, j), pattern(30+j*40, byte(j))))
		}
	}
	require.Nil(t, fs.Remove("/tree", true))
	after, err := fs.Usage()
	require.Nil(t, err)
	require.Equal(t, before, after)

	require.Nil(t, fs.WriteFile("/x", []byte("x")))
	require.Nil(t, fs.Remove("/", true))
	require.Equal(t, []string{}, names(t, fs, "/"))
}

func TestRenameScenario(t *testing.T) {
	fs, _ := newMounted(t, 512, 64)
	require.Nil(t, fs.WriteFile("/a.txt", []byte("from a")))
	require.Nil(t, fs.WriteFile("/b.txt", []byte("from b")))
	require.Nil(t, fs.Rename("/a.txt", "/b.txt"))
	data, err := fs.ReadFile("/b.txt")
	require.Nil(t, err)
	require.Equal(t, "from a", string(data))
	_, err = fs.ReadFile("/a.txt")
	requireCode(t, lfs.CodeNotFound, err)
	require.Equal(t, []string{"/b.txt"}, names(t, fs, "/"))
}

func TestRenameAcrossDirectories(t *testing.T) {
	fs, dev := newMounted(t, 512, 128)
	require.Nil(t, fs.Mkdir("/src"))
	require.Nil(t, fs.Mkdir("/dst"))
	require.Nil(t, fs.Mkdir("/src/tree"))
	require.Nil(t, fs.WriteFile("/src/tree/big", pattern(3000, 9)))
	require.Nil(t, fs.Rename("/src/tree", "/dst/moved"))
	require.Equal(t, []string{}, names(t, fs, "/src"))
	require.Equal(t, []string{"/dst/moved/big"}, names(t, fs, "/dst/moved"))

	require.Nil(t, fs.Rename("/dst/moved/big", "/top"))
	fs = remount(t, dev, Config{})
	data, err := fs.ReadFile("/top")
	require.Nil(t, err)
	require.Equal(t, pattern(3000, 9), data)
}

func TestRenameErrors(t *testing.T) {
	fs, _ := newMounted(t, 512, 64)
	require.Nil(t, fs.Mkdir("/d"))
	require.Nil(t, fs.Mkdir("/full"))
	require.Nil(t, fs.WriteFile("/full/x", []byte("x")))
	require.Nil(t, fs.WriteFile("/f", []byte("f")))

	requireCode(t, lfs.CodeNotFound, fs.Rename("/nope", "/other"))
	requireCode(t, lfs.CodeNotFound, fs.Rename("/f", "/nope/f"))
	requireCode(t, lfs.CodeInvalid, fs.Rename("/f", "/d"))
	requireCode(t, lfs.CodeInvalid, fs.Rename("/d", "/f"))
	requireCode(t, lfs.CodeInvalid, fs.Rename("/d", "/d/inner"))
	requireCode(t, lfs.CodeNotEmpty, fs.Rename("/d", "/full"))
	requireCode(t, lfs.CodeInvalid, fs.Rename("/", "/x"))
	require.Nil(t, fs.Rename("/f", "/f"))

	// an empty directory may be replaced
	require.Nil(t, fs.Mkdir("/empty"))
	require.Nil(t, fs.Rename("/full", "/empty"))
	require.Equal(t, []string{"/d", "/empty", "/f"}, names(t, fs, "/"))
	require.Equal(t, []string{"/empty/x"}, names(t, fs, "/empty"))
}

func TestRenameWithinSplitDirectory(t *testing.T) {
	fs, _ := newMounted(t, 512, 128)
	for i := range 40 {
		require.Nil(t, fs.WriteFile(fileName(i), pattern(20, byte(i))))
	}
	require.Nil(t, fs.Rename(fileName(0), fileName(39)))
	require.Nil(t, fs.Rename(fileName(38), "/renamed"))
	data, err := fs.ReadFile(fileName(39))
	require.Nil(t, err)
	require.Equal(t, pattern(20, 0), data)
	data, err = fs.ReadFile("/renamed")
	require.Nil(t, err)
	require.Equal(t, pattern(20, 38), data)
	require.Len(t, names(t, fs, "/"), 39)
}

func TestRemoveUnlinksEmptyPairs(t *testing.T) {
	fs, _ := newMounted(t, 512, 128)
	for i := range 60 {
		require.Nil(t, fs.WriteFile(fileName(i), pattern(20, byte(i))))
	}
	for i := range 60 {
		require.Nil(t, fs.Remove(fileName(i), false))
	}
	usage, err := fs.Usage()
	require.Nil(t, err)
	require.Equal(t, uint64(2*512), usage.UsedBytes)
	chain, err := (&Directory{fs: fs, head: rootPair}).chain()
	require.Nil(t, err)
	require.Len(t, chain, 1)
}

func TestFormatTwice(t *testing.T) {
	fs, dev := newMounted(t, 512, 32)
	require.Nil(t, fs.WriteFile("/a", pattern(2000, 1)))
	require.Nil(t, Format(dev, Config{}))
	fs, err := Mount(dev, Config{})
	require.Nil(t, err)
	first, err := fs.Usage()
	require.Nil(t, err)
	require.Nil(t, Format(dev, Config{}))
	fs, err = Mount(dev, Config{})
	require.Nil(t, err)
	second, err := fs.Usage()
	require.Nil(t, err)
	require.Equal(t, first, second)
	require.Equal(t, []string{}, names(t, fs, "/"))
}

func TestUnmountInvalidState(t *testing.T) {
	fs, _ := newMounted(t, 512, 32)
	require.Nil(t, fs.Unmount())
	requireCode(t, lfs.CodeInvalidState, fs.Unmount())
	requireCode(t, lfs.CodeInvalidState, fs.Mkdir("/a"))
	_, err := fs.ReadDir("/")
	requireCode(t, lfs.CodeInvalidState, err)
	_, err = fs.Usage()
	requireCode(t, lfs.CodeInvalidState, err)
	_, err = fs.Fits(1)
	requireCode(t, lfs.CodeInvalidState, err)
}

func TestErrorsCarryOperation(t *testing.T) {
	fs, _ := newMounted(t, 512, 32)
	err := fs.Mkdir("/a/b")
	var e *lfs.Error
	require.ErrorAs(t, err, &e)
	require.Equal(t, "mkdir", e.Op)
	require.Equal(t, "/a/b", e.Path)
	require.ErrorIs(t, err, lfs.ErrNotFound)
}
