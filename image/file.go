package image

import (
	"io"
	"os"

	"github.com/rstms/lfs"
)

// OpenImage mounts an image file. Raw images are used in place through a
// file-backed device; zstd and lz4 containers are unpacked into memory and
// written back by Save.
func OpenImage(filename string, opts Options) (*Filesystem, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filename, os.O_RDWR, 0600)
	if err != nil {
		return nil, Fatal(err)
	}
	header := make([]byte, 4)
	n, err := file.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		file.Close()
		return nil, Fatal(err)
	}
	if c := DetectContainer(header[:n]); c != ContainerRaw {
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, Fatal(err)
		}
		raw, _, err := Unpack(data)
		if err != nil {
			return nil, err
		}
		f, err := FromImage(raw, opts)
		if err != nil {
			return nil, err
		}
		f.Filename = filename
		f.container = c
		return f, nil
	}

	f, err := openFileDevice(file, opts)
	if err != nil {
		file.Close()
		return nil, err
	}
	f.Filename = filename
	return f, nil
}

func openFileDevice(file *os.File, opts Options) (*Filesystem, error) {
	stat, err := file.Stat()
	if err != nil {
		return nil, Fatal(err)
	}
	size := stat.Size()
	blockSize, err := imageBlockSize(file, size, opts)
	if err != nil {
		return nil, err
	}
	opts.BlockSize = blockSize
	if size%int64(blockSize) != 0 {
		return nil, lfs.Errorf(lfs.CodeInvalid, "image size %d is not a multiple of block size %d", size, blockSize)
	}
	if opts.BlockCount == 0 {
		opts.BlockCount = uint32(size / int64(blockSize))
	}
	dev, err := lfs.NewFileDevice(file, opts.BlockSize, opts.BlockCount)
	if err != nil {
		return nil, err
	}
	f := newFilesystem(dev, opts)
	f.file = file
	if err := f.init(); err != nil {
		return nil, err
	}
	return f, nil
}

// CreateImage formats a new image file. Files named *.zst or *.lz4 are
// built in memory and written compressed by Save and Close.
func CreateImage(filename string, opts Options) (*Filesystem, error) {
	if opts.BlockSize == 0 {
		opts.BlockSize = DefaultBlockSize
	}
	if opts.BlockCount == 0 {
		opts.BlockCount = DefaultBlockCount
	}
	if c := ContainerForName(filename); c != ContainerRaw {
		f, err := New(opts)
		if err != nil {
			return nil, err
		}
		f.Filename = filename
		f.container = c
		if err := f.Save(""); err != nil {
			return nil, err
		}
		return f, nil
	}
	if err := lfs.ValidGeometry(opts.BlockSize, opts.BlockCount); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_RDWR, 0600)
	if err != nil {
		return nil, Fatal(err)
	}
	err = file.Truncate(int64(opts.BlockSize) * int64(opts.BlockCount))
	if err != nil {
		file.Close()
		return nil, Fatal(err)
	}
	opts.FormatOnInit = true
	f, err := openFileDevice(file, opts)
	if err != nil {
		file.Close()
		return nil, err
	}
	f.Filename = filename
	return f, nil
}

// Save writes the image to filename, or back to the file it was opened
// from when filename is empty. The container follows the file extension.
func (f *Filesystem) Save(filename string) error {
	container := ContainerForName(filename)
	if filename == "" || filename == f.Filename {
		container = f.container
		if f.file != nil {
			if err := f.check(); err != nil {
				return err
			}
			return f.dev.Sync()
		}
		filename = f.Filename
	}
	if filename == "" {
		return lfs.Errorf(lfs.CodeInvalid, "no file name to save to")
	}
	raw, err := f.ToImage()
	if err != nil {
		return err
	}
	data, err := Pack(container, raw)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0600); err != nil {
		return Fatal(err)
	}
	f.log.Debug("saved", "filename", filename, "bytes", len(data))
	return nil
}

// Close saves a memory-backed image opened from a file, releases the
// engine and closes the file.
func (f *Filesystem) Close() error {
	var err error
	if f.fs != nil {
		if f.file == nil && f.Filename != "" {
			err = f.Save("")
		}
		if cerr := f.Cleanup(); err == nil {
			err = cerr
		}
	}
	if f.file != nil {
		if cerr := f.file.Close(); err == nil && cerr != nil {
			err = Fatal(cerr)
		}
		f.file = nil
	}
	return err
}
