package littlefs

import (
	"log/slog"

	"github.com/rstms/lfs"
)

// DefaultLookaheadSize is the lookahead bitmap size in bytes used when
// Config leaves it unset. Each byte tracks eight blocks.
const DefaultLookaheadSize = 32

// Config tunes a FileSystem. Geometry always comes from the device.
type Config struct {
	// LookaheadSize bounds the allocator bitmap, in bytes.
	LookaheadSize uint32
	// DiskVersion is the version Format writes; zero selects
	// lfs.DiskVersion.
	DiskVersion uint32
	// PinVersion mounts older images as they are instead of migrating
	// them to lfs.DiskVersion.
	PinVersion bool
	Logger     *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.LookaheadSize == 0 {
		c.LookaheadSize = DefaultLookaheadSize
	}
	if c.DiskVersion == 0 {
		c.DiskVersion = lfs.DiskVersion
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
	return c
}

// FileSystem is the implementation of lfs.FileSystem for a mounted
// littlefs-style image. It is not safe for concurrent use.
type FileSystem struct {
	dev        lfs.BlockDevice
	cfg        Config
	log        *slog.Logger
	blockSize  uint32
	blockCount uint32
	sb         Superblock
	codec      codec
	alloc      *allocator
	mounted    bool

	// scratch buffers, one block each
	rbuf []byte
	pbuf []byte
	dbuf []byte
}

// ensure FileSystem implements lfs.FileSystem
var _ lfs.FileSystem = (*FileSystem)(nil)

func newFileSystem(dev lfs.BlockDevice, cfg Config) *FileSystem {
	cfg = cfg.withDefaults()
	bs := dev.BlockSize()
	return &FileSystem{
		dev:        dev,
		cfg:        cfg,
		log:        cfg.Logger,
		blockSize:  bs,
		blockCount: dev.BlockCount(),
		rbuf:       make([]byte, bs),
		pbuf:       make([]byte, 0, bs+headerSize),
		dbuf:       make([]byte, bs),
	}
}

// Format erases dev and writes an empty filesystem with the configured
// disk version.
func Format(dev lfs.BlockDevice, cfg Config) error {
	fs := newFileSystem(dev, cfg)
	c, err := codecFor(fs.cfg.DiskVersion)
	if err != nil {
		return err
	}
	if err := checkGeometry(c, fs.blockSize, fs.blockCount); err != nil {
		return err
	}
	for block := range fs.blockCount {
		if err := dev.Erase(block); err != nil {
			return err
		}
	}
	fs.codec = c
	sb := newSuperblock(c.version(), fs.blockSize, fs.blockCount)
	// rev 0 in block 1 so the first commit lands in block 0 as rev 1
	root := &mdir{pair: rootPair, active: 1, tail: nullPair, sb: &sb}
	if err := fs.commit(root, nil, nullPair); err != nil {
		return err
	}
	fs.log.Debug("format", "blockSize", fs.blockSize, "blockCount", fs.blockCount,
		"version", lfs.FormatDiskVersion(sb.Version))
	return nil
}

// Mount reads the superblock from dev and returns the mounted filesystem.
// Images older than lfs.DiskVersion are migrated unless cfg.PinVersion
// is set.
func Mount(dev lfs.BlockDevice, cfg Config) (*FileSystem, error) {
	fs := newFileSystem(dev, cfg)
	root, err := fs.fetch(rootPair)
	if err != nil {
		return nil, err
	}
	if root.sb == nil {
		return nil, errCorrupt("root pair carries no superblock")
	}
	sb := *root.sb
	if !lfs.SupportedDiskVersion(sb.Version) {
		return nil, errCorrupt("unsupported disk version %s", lfs.FormatDiskVersion(sb.Version))
	}
	if sb.BlockSize != fs.blockSize || sb.BlockCount != fs.blockCount {
		return nil, errInvalid("image geometry %dx%d does not match device %dx%d",
			sb.BlockCount, sb.BlockSize, fs.blockCount, fs.blockSize)
	}
	if sb.NameMax < lfs.NameMax {
		return nil, errCorrupt("image name limit %d is below %d", sb.NameMax, lfs.NameMax)
	}
	fs.sb = sb
	if fs.codec, err = codecFor(sb.Version); err != nil {
		return nil, errCorrupt("%v", err)
	}
	fs.alloc = newAllocator(fs, fs.cfg.LookaheadSize, root.crc)
	fs.mounted = true
	fs.log.Debug("mount", "blockSize", fs.blockSize, "blockCount", fs.blockCount,
		"version", lfs.FormatDiskVersion(sb.Version))

	if root.move != nil {
		if err := fs.begin(); err != nil {
			return nil, err
		}
		if err := fs.finishMove(root); err != nil {
			return nil, err
		}
	}
	if sb.Version < lfs.DiskVersion && !fs.cfg.PinVersion {
		if err := fs.migrate(lfs.DiskVersion); err != nil {
			return nil, err
		}
	}
	return fs, nil
}

// Unmount syncs the device. Every later call fails with CodeInvalidState.
func (fs *FileSystem) Unmount() error {
	if err := fs.check(); err != nil {
		return err
	}
	fs.mounted = false
	fs.rbuf, fs.pbuf, fs.dbuf = nil, nil, nil
	fs.alloc = nil
	return fs.dev.Sync()
}

// check fails once the filesystem is unmounted.
func (fs *FileSystem) check() error {
	if !fs.mounted {
		return lfs.Errorf(lfs.CodeInvalidState, "filesystem is not mounted")
	}
	return nil
}

// begin starts a mutating operation.
func (fs *FileSystem) begin() error {
	if err := fs.check(); err != nil {
		return err
	}
	fs.alloc.ack()
	return nil
}

func (fs *FileSystem) DiskVersion() uint32 {
	return fs.sb.Version
}

func (fs *FileSystem) Superblock() Superblock {
	return fs.sb
}

func (fs *FileSystem) Device() lfs.BlockDevice {
	return fs.dev
}

func (fs *FileSystem) Info() (map[string]any, error) {
	if err := fs.check(); err != nil {
		return nil, err
	}
	usage, err := fs.Usage()
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"diskVersion":   lfs.FormatDiskVersion(fs.sb.Version),
		"blockSize":     fs.blockSize,
		"blockCount":    fs.blockCount,
		"nameMax":       fs.sb.NameMax,
		"inlineMax":     fs.sb.InlineMax,
		"lookaheadSize": fs.alloc.size / 8,
		"capacityBytes": usage.CapacityBytes,
		"usedBytes":     usage.UsedBytes,
		"freeBytes":     usage.FreeBytes,
	}, nil
}

// Usage counts the blocks referenced by committed metadata.
func (fs *FileSystem) Usage() (lfs.Usage, error) {
	if err := fs.check(); err != nil {
		return lfs.Usage{}, err
	}
	used, err := fs.usedBlocks()
	if err != nil {
		return lfs.Usage{}, err
	}
	bs := uint64(fs.blockSize)
	return lfs.Usage{
		CapacityBytes: bs * uint64(fs.blockCount),
		UsedBytes:     bs * uint64(used),
		FreeBytes:     bs * uint64(fs.blockCount-used),
	}, nil
}

// BlocksNeeded estimates the blocks a write of size bytes consumes: the
// data blocks of its skip-list plus one metadata pair for a directory
// split.
func (fs *FileSystem) BlocksNeeded(size int64) uint32 {
	var data uint32
	if size > int64(fs.sb.InlineMax) {
		data = ctzBlocks(fs.blockSize, uint32(min(size, fileMax)))
	}
	return data + 2
}

// Fits reports whether a file of size bytes can be written now. Writes run
// the same check first, so a write fails with CodeNoSpace exactly when
// Fits reports false.
func (fs *FileSystem) Fits(size int64) (bool, error) {
	if err := fs.check(); err != nil {
		return false, err
	}
	used, err := fs.usedBlocks()
	if err != nil {
		return false, err
	}
	return fs.BlocksNeeded(size) <= fs.blockCount-used, nil
}

func (fs *FileSystem) reserve(size int64) error {
	ok, err := fs.Fits(size)
	if err != nil {
		return err
	}
	if !ok {
		return errNoSpace("%d bytes need %d free blocks", size, fs.BlocksNeeded(size))
	}
	return nil
}

func (fs *FileSystem) RootDir() (lfs.Directory, error) {
	if err := fs.check(); err != nil {
		return nil, err
	}
	return &Directory{fs: fs, head: rootPair}, nil
}
