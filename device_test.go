package lfs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidGeometry(t *testing.T) {
	require.Nil(t, ValidGeometry(512, 2))
	require.ErrorIs(t, ValidGeometry(0, 8), ErrInvalid)
	require.ErrorIs(t, ValidGeometry(1000, 8), ErrInvalid)
	require.ErrorIs(t, ValidGeometry(512, 1), ErrInvalid)
}

func testDevice(t *testing.T, dev BlockDevice) {
	bs := dev.BlockSize()
	buf := make([]byte, bs)
	require.Nil(t, dev.Erase(3))
	require.Nil(t, dev.Read(3, 0, buf))
	require.Equal(t, bytes.Repeat([]byte{Erased}, int(bs)), buf)

	require.Nil(t, dev.Program(3, 16, []byte("hello")))
	require.Nil(t, dev.Sync())
	got := make([]byte, 5)
	require.Nil(t, dev.Read(3, 16, got))
	require.Equal(t, "hello", string(got))

	// odd offsets and lengths are fine up to the last byte of a block
	require.Nil(t, dev.Program(3, 21, []byte("abc")))
	require.Nil(t, dev.Program(3, bs-1, []byte("z")))
	require.Nil(t, dev.Read(3, 21, got[:3]))
	require.Equal(t, "abc", string(got[:3]))
	require.Nil(t, dev.Read(3, bs-1, got[:1]))
	require.Equal(t, "z", string(got[:1]))

	require.ErrorIs(t, dev.Read(dev.BlockCount(), 0, got), ErrIO)
	require.ErrorIs(t, dev.Program(3, bs-2, got), ErrIO)
	require.ErrorIs(t, dev.Erase(dev.BlockCount()), ErrIO)
}

func TestMemoryDevice(t *testing.T) {
	dev, err := NewMemoryDevice(512, 8)
	require.Nil(t, err)
	testDevice(t, dev)

	// flash cannot program over programmed bytes without an erase
	require.ErrorIs(t, dev.Program(3, 16, []byte("x")), ErrIO)
	require.Nil(t, dev.Erase(3))
	require.Nil(t, dev.Program(3, 16, []byte("x")))

	copied, err := NewMemoryDeviceFromImage(dev.Bytes(), 512)
	require.Nil(t, err)
	require.Equal(t, uint32(8), copied.BlockCount())
	require.Equal(t, dev.Bytes(), copied.Bytes())

	_, err = NewMemoryDeviceFromImage(make([]byte, 700), 512)
	require.ErrorIs(t, err, ErrInvalid)
}

func TestFileDevice(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "device.img")
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR, 0600)
	require.Nil(t, err)
	require.Nil(t, file.Truncate(512*8))
	dev, err := NewFileDevice(file, 512, 8)
	require.Nil(t, err)
	testDevice(t, dev)
	require.Nil(t, dev.Close())

	data, err := os.ReadFile(filename)
	require.Nil(t, err)
	require.Equal(t, "hello", string(data[3*512+16:3*512+21]))
}
