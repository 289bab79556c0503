package lfs

import (
	"bytes"
	"io"
	"math/bits"
)

// Erased is the value every byte of a block holds after Erase.
const Erased = 0xff

// BlockDevice is a fixed-geometry array of erasable blocks.
//
// Program must only target bytes erased since they were last programmed.
// Reads and programs have byte granularity, so any offset and length that
// stay inside one block are aligned. Implementations fail with CodeIO on
// an out-of-range block or a range that crosses the end of a block, and
// never retry.
type BlockDevice interface {
	BlockSize() uint32
	BlockCount() uint32
	Read(block, off uint32, p []byte) error
	Program(block, off uint32, p []byte) error
	Erase(block uint32) error
	Sync() error
}

// ValidGeometry checks that blockSize is a power of two and blockCount
// leaves room for the superblock pair.
func ValidGeometry(blockSize, blockCount uint32) error {
	if blockSize == 0 || bits.OnesCount32(blockSize) != 1 {
		return Errorf(CodeInvalid, "block size %d is not a power of two", blockSize)
	}
	if blockCount < 2 {
		return Errorf(CodeInvalid, "block count %d is below 2", blockCount)
	}
	if uint64(blockSize)*uint64(blockCount) > 1<<40 {
		return Errorf(CodeInvalid, "device of %d x %d bytes is too large", blockCount, blockSize)
	}
	return nil
}

func checkRange(dev BlockDevice, block, off uint32, n int) error {
	if block >= dev.BlockCount() {
		return Errorf(CodeIO, "block %d out of range [0, %d)", block, dev.BlockCount())
	}
	if uint64(off)+uint64(n) > uint64(dev.BlockSize()) {
		return Errorf(CodeIO, "range %d+%d crosses the end of block %d", off, n, block)
	}
	return nil
}

// MemoryDevice keeps the whole device in a byte slice.
type MemoryDevice struct {
	blockSize  uint32
	blockCount uint32
	data       []byte
}

var _ BlockDevice = (*MemoryDevice)(nil)

// NewMemoryDevice returns a fully erased device.
func NewMemoryDevice(blockSize, blockCount uint32) (*MemoryDevice, error) {
	if err := ValidGeometry(blockSize, blockCount); err != nil {
		return nil, err
	}
	data := bytes.Repeat([]byte{Erased}, int(blockSize)*int(blockCount))
	return &MemoryDevice{blockSize: blockSize, blockCount: blockCount, data: data}, nil
}

// NewMemoryDeviceFromImage returns a device holding a copy of image.
func NewMemoryDeviceFromImage(image []byte, blockSize uint32) (*MemoryDevice, error) {
	if blockSize == 0 || len(image)%int(blockSize) != 0 {
		return nil, Errorf(CodeInvalid, "image size %d is not a multiple of block size %d", len(image), blockSize)
	}
	blockCount := uint32(len(image) / int(blockSize))
	if err := ValidGeometry(blockSize, blockCount); err != nil {
		return nil, err
	}
	return &MemoryDevice{
		blockSize:  blockSize,
		blockCount: blockCount,
		data:       bytes.Clone(image),
	}, nil
}

func (d *MemoryDevice) BlockSize() uint32  { return d.blockSize }
func (d *MemoryDevice) BlockCount() uint32 { return d.blockCount }

func (d *MemoryDevice) Read(block, off uint32, p []byte) error {
	if err := checkRange(d, block, off, len(p)); err != nil {
		return err
	}
	start := int(block)*int(d.blockSize) + int(off)
	copy(p, d.data[start:start+len(p)])
	return nil
}

func (d *MemoryDevice) Program(block, off uint32, p []byte) error {
	if err := checkRange(d, block, off, len(p)); err != nil {
		return err
	}
	start := int(block)*int(d.blockSize) + int(off)
	target := d.data[start : start+len(p)]
	for i, b := range target {
		if b != Erased {
			return Errorf(CodeIO, "program of unerased byte at block %d offset %d", block, int(off)+i)
		}
	}
	copy(target, p)
	return nil
}

func (d *MemoryDevice) Erase(block uint32) error {
	if err := checkRange(d, block, 0, 0); err != nil {
		return err
	}
	start := int(block) * int(d.blockSize)
	fill(d.data[start : start+int(d.blockSize)])
	return nil
}

func (d *MemoryDevice) Sync() error {
	return nil
}

// Bytes returns a copy of the device contents.
func (d *MemoryDevice) Bytes() []byte {
	return bytes.Clone(d.data)
}

func fill(p []byte) {
	for i := range p {
		p[i] = Erased
	}
}

// BackingFile is the storage a FileDevice needs; *os.File satisfies it.
type BackingFile interface {
	io.ReaderAt
	io.WriterAt
	Sync() error
}

// FileDevice maps blocks onto a host file. Writes go straight through to
// the file.
type FileDevice struct {
	file       BackingFile
	blockSize  uint32
	blockCount uint32
	erased     []byte
}

var _ BlockDevice = (*FileDevice)(nil)

// NewFileDevice returns a device over the first blockSize*blockCount bytes
// of file. The caller sizes the file.
func NewFileDevice(file BackingFile, blockSize, blockCount uint32) (*FileDevice, error) {
	if err := ValidGeometry(blockSize, blockCount); err != nil {
		return nil, err
	}
	erased := make([]byte, blockSize)
	fill(erased)
	return &FileDevice{file: file, blockSize: blockSize, blockCount: blockCount, erased: erased}, nil
}

func (d *FileDevice) BlockSize() uint32  { return d.blockSize }
func (d *FileDevice) BlockCount() uint32 { return d.blockCount }

func (d *FileDevice) offset(block, off uint32) int64 {
	return int64(block)*int64(d.blockSize) + int64(off)
}

func (d *FileDevice) Read(block, off uint32, p []byte) error {
	if err := checkRange(d, block, off, len(p)); err != nil {
		return err
	}
	if _, err := d.file.ReadAt(p, d.offset(block, off)); err != nil {
		return &Error{Code: CodeIO, Message: "read", Err: err}
	}
	return nil
}

func (d *FileDevice) Program(block, off uint32, p []byte) error {
	if err := checkRange(d, block, off, len(p)); err != nil {
		return err
	}
	if _, err := d.file.WriteAt(p, d.offset(block, off)); err != nil {
		return &Error{Code: CodeIO, Message: "program", Err: err}
	}
	return nil
}

func (d *FileDevice) Erase(block uint32) error {
	if err := checkRange(d, block, 0, 0); err != nil {
		return err
	}
	if _, err := d.file.WriteAt(d.erased, d.offset(block, 0)); err != nil {
		return &Error{Code: CodeIO, Message: "erase", Err: err}
	}
	return nil
}

func (d *FileDevice) Sync() error {
	if err := d.file.Sync(); err != nil {
		return &Error{Code: CodeIO, Message: "sync", Err: err}
	}
	return nil
}

// Close closes the underlying file when it supports closing.
func (d *FileDevice) Close() error {
	if c, ok := d.file.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
