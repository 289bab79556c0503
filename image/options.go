package image

import (
	"log/slog"
	"os"

	"github.com/rstms/lfs"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBlockSize  = 4096
	DefaultBlockCount = 256
)

// Options configures a Filesystem. Zero values select defaults.
type Options struct {
	// BlockSize and BlockCount fix the device geometry. When mounting an
	// existing image a zero BlockSize is detected from the superblock and a
	// zero BlockCount from the image size.
	BlockSize  uint32 `yaml:"blockSize"`
	BlockCount uint32 `yaml:"blockCount"`
	// LookaheadSize bounds the allocator bitmap, in bytes.
	LookaheadSize uint32 `yaml:"lookaheadSize"`
	// FormatOnInit wipes the device on construction.
	FormatOnInit bool `yaml:"formatOnInit"`
	// DiskVersion is the version written by Format. Setting it also mounts
	// older images without migrating them.
	DiskVersion Version `yaml:"diskVersion"`

	Logger *slog.Logger `yaml:"-"`
}

// Version is a disk version that reads from YAML as "2.0", "2.1" or a
// number.
type Version uint32

func (v *Version) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := lfs.ParseDiskVersion(node.Value)
	if err != nil {
		return err
	}
	*v = Version(parsed)
	return nil
}

func (v Version) MarshalYAML() (any, error) {
	if v == 0 {
		return nil, nil
	}
	return lfs.FormatDiskVersion(uint32(v)), nil
}

func (v Version) String() string {
	return lfs.FormatDiskVersion(uint32(v))
}

// DefaultOptions returns the options New uses for zero fields.
func DefaultOptions() Options {
	return Options{
		BlockSize:  DefaultBlockSize,
		BlockCount: DefaultBlockCount,
	}
}

// LoadOptions reads options from a YAML file. Fields absent from the file
// keep their defaults.
func LoadOptions(filename string) (Options, error) {
	opts := DefaultOptions()
	data, err := os.ReadFile(filename)
	if err != nil {
		return Options{}, Fatal(err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return Options{}, Fatalf("%s: %v", filename, err)
	}
	return opts, nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return o.Logger
}

func (o Options) validate() error {
	if o.DiskVersion != 0 && !lfs.SupportedDiskVersion(uint32(o.DiskVersion)) {
		return lfs.Errorf(lfs.CodeInvalid, "unsupported disk version %s", o.DiskVersion)
	}
	return nil
}
