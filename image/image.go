package image

import (
	"bytes"
	"io"
	"log/slog"
	"os"

	"github.com/rstms/lfs"
	"github.com/rstms/lfs/littlefs"
	"github.com/zeebo/blake3"
)

const MB = 1024 * 1024

// Filesystem is a mounted image with the full operation surface. It is not
// safe for concurrent use; callers serialize access to one handle.
type Filesystem struct {
	Filename string

	opts        Options
	log         *slog.Logger
	dev         lfs.BlockDevice
	file        *os.File
	container   Container
	fs          *littlefs.FileSystem
	diskVersion uint32
}

// DeleteOptions tunes Delete.
type DeleteOptions struct {
	Recursive bool
}

// New returns a filesystem freshly formatted on an in-memory device.
func New(opts Options) (*Filesystem, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if opts.BlockSize == 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.BlockCount == 0 {
		opts.BlockCount = DefaultBlockCount
	}
	dev, err := lfs.NewMemoryDevice(opts.BlockSize, opts.BlockCount)
	if err != nil {
		return nil, err
	}
	f := newFilesystem(dev, opts)
	if err := f.Format(); err != nil {
		return nil, err
	}
	return f, nil
}

// FromImage mounts a copy of a serialized image. A zero BlockSize is read
// from the image's superblock.
func FromImage(image []byte, opts Options) (*Filesystem, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	blockSize, err := imageBlockSize(bytes.NewReader(image), int64(len(image)), opts)
	if err != nil {
		return nil, err
	}
	opts.BlockSize = blockSize
	if opts.BlockCount != 0 && uint64(opts.BlockCount)*uint64(blockSize) != uint64(len(image)) {
		return nil, lfs.Errorf(lfs.CodeInvalid, "image of %d bytes is not %d blocks of %d", len(image), opts.BlockCount, blockSize)
	}
	dev, err := lfs.NewMemoryDeviceFromImage(image, blockSize)
	if err != nil {
		return nil, err
	}
	f := newFilesystem(dev, opts)
	if err := f.init(); err != nil {
		return nil, err
	}
	return f, nil
}

func newFilesystem(dev lfs.BlockDevice, opts Options) *Filesystem {
	f := &Filesystem{
		opts:        opts,
		log:         opts.logger(),
		dev:         dev,
		diskVersion: uint32(opts.DiskVersion),
	}
	if f.diskVersion == 0 {
		f.diskVersion = lfs.DiskVersion
	}
	return f
}

func imageBlockSize(r io.ReaderAt, size int64, opts Options) (uint32, error) {
	if opts.BlockSize != 0 {
		return opts.BlockSize, nil
	}
	if opts.FormatOnInit {
		return DefaultBlockSize, nil
	}
	sb, err := littlefs.Probe(r, size)
	if err != nil {
		return 0, err
	}
	return sb.BlockSize, nil
}

// init formats or mounts the device as the options ask.
func (f *Filesystem) init() error {
	if f.opts.FormatOnInit {
		return f.Format()
	}
	return f.mount(f.opts.DiskVersion != 0)
}

func (f *Filesystem) config(pin bool) littlefs.Config {
	return littlefs.Config{
		LookaheadSize: f.opts.LookaheadSize,
		DiskVersion:   f.diskVersion,
		PinVersion:    pin,
		Logger:        f.log,
	}
}

func (f *Filesystem) mount(pin bool) error {
	fs, err := littlefs.Mount(f.dev, f.config(pin))
	if err != nil {
		return err
	}
	f.fs = fs
	return nil
}

func (f *Filesystem) check() error {
	if f.fs == nil {
		return lfs.Errorf(lfs.CodeInvalidState, "filesystem has been cleaned up")
	}
	return nil
}

// Format wipes the device and mounts an empty filesystem at the disk
// version last given to SetDiskVersion.
func (f *Filesystem) Format() error {
	if f.dev == nil {
		return lfs.Errorf(lfs.CodeInvalidState, "filesystem has been cleaned up")
	}
	if err := littlefs.Format(f.dev, f.config(true)); err != nil {
		return lfs.WithOp(err, "format", "")
	}
	return f.mount(true)
}

// List returns the entries of the directory at path in storage order.
// An empty path lists the root.
func (f *Filesystem) List(path string) ([]lfs.Info, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	if path == "" {
		path = "/"
	}
	return f.fs.ReadDir(path)
}

func (f *Filesystem) Stat(path string) (lfs.Info, error) {
	if err := f.check(); err != nil {
		return lfs.Info{}, err
	}
	return f.fs.Stat(path)
}

// IsDir reports whether path names a directory.
func (f *Filesystem) IsDir(path string) (bool, error) {
	info, err := f.Stat(path)
	if lfs.CodeOf(err) == lfs.CodeNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Type == lfs.TypeDir, nil
}

// AddFile creates a file. It fails with CodeExists when path exists.
func (f *Filesystem) AddFile(path string, data []byte) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.fs.AddFile(path, data)
}

// WriteFile creates or overwrites a file.
func (f *Filesystem) WriteFile(path string, data []byte) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.fs.WriteFile(path, data)
}

func (f *Filesystem) AppendFile(path string, data []byte) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.fs.AppendFile(path, data)
}

// DeleteFile removes a file or an empty directory.
func (f *Filesystem) DeleteFile(path string) error {
	return f.Delete(path, DeleteOptions{})
}

func (f *Filesystem) Delete(path string, opts DeleteOptions) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.fs.Remove(path, opts.Recursive)
}

func (f *Filesystem) Mkdir(path string) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.fs.Mkdir(path)
}

func (f *Filesystem) Rename(oldPath, newPath string) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.fs.Rename(oldPath, newPath)
}

func (f *Filesystem) ReadFile(path string) ([]byte, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	return f.fs.ReadFile(path)
}

// ToImage returns the whole device, block by block.
func (f *Filesystem) ToImage() ([]byte, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	if err := f.dev.Sync(); err != nil {
		return nil, err
	}
	if mem, ok := f.dev.(*lfs.MemoryDevice); ok {
		return mem.Bytes(), nil
	}
	bs := f.dev.BlockSize()
	image := make([]byte, int(bs)*int(f.dev.BlockCount()))
	for block := range f.dev.BlockCount() {
		off := int(block) * int(bs)
		if err := f.dev.Read(block, 0, image[off:off+int(bs)]); err != nil {
			return nil, err
		}
	}
	return image, nil
}

// GetDiskVersion returns the version of the mounted image.
func (f *Filesystem) GetDiskVersion() (uint32, error) {
	if err := f.check(); err != nil {
		return 0, err
	}
	return f.fs.DiskVersion(), nil
}

// SetDiskVersion selects the version the next Format writes. The mounted
// image is not changed.
func (f *Filesystem) SetDiskVersion(version uint32) error {
	if err := f.check(); err != nil {
		return err
	}
	if !lfs.SupportedDiskVersion(version) {
		return lfs.Errorf(lfs.CodeInvalid, "unsupported disk version %s", lfs.FormatDiskVersion(version))
	}
	f.diskVersion = version
	return nil
}

// Migrate upgrades the mounted image in place.
func (f *Filesystem) Migrate(version uint32) error {
	if err := f.check(); err != nil {
		return err
	}
	return f.fs.Migrate(version)
}

func (f *Filesystem) GetUsage() (lfs.Usage, error) {
	if err := f.check(); err != nil {
		return lfs.Usage{}, err
	}
	return f.fs.Usage()
}

// CanFit reports whether a file of size bytes can be written. The path is
// accepted for interface compatibility and does not affect the answer.
func (f *Filesystem) CanFit(path string, size int64) (bool, error) {
	if err := f.check(); err != nil {
		return false, err
	}
	if size < 0 {
		return false, lfs.Errorf(lfs.CodeInvalid, "negative size %d", size)
	}
	return f.fs.Fits(size)
}

func (f *Filesystem) Info() (map[string]any, error) {
	if err := f.check(); err != nil {
		return nil, err
	}
	info, err := f.fs.Info()
	if err != nil {
		return nil, err
	}
	if f.Filename != "" {
		info["filename"] = f.Filename
		info["container"] = f.container.String()
	}
	return info, nil
}

// Digest returns the BLAKE3-256 hash of the serialized image.
func (f *Filesystem) Digest() ([]byte, error) {
	image, err := f.ToImage()
	if err != nil {
		return nil, err
	}
	sum := blake3.Sum256(image)
	return sum[:], nil
}

// Cleanup syncs the device and releases the engine. Every later call
// fails with CodeInvalidState.
func (f *Filesystem) Cleanup() error {
	if err := f.check(); err != nil {
		return err
	}
	err := f.fs.Unmount()
	f.fs = nil
	f.dev = nil
	return err
}
