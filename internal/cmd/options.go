package cmd

import (
	"log/slog"

	"github.com/rstms/lfs"
	"github.com/rstms/lfs/image"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// versionValue lets a disk version be given as "2.0", "2.1" or a number.
type versionValue struct {
	version *image.Version
}

func (v versionValue) String() string {
	if v.version == nil || *v.version == 0 {
		return ""
	}
	return v.version.String()
}

func (v versionValue) Set(s string) error {
	parsed, err := lfs.ParseDiskVersion(s)
	if err != nil {
		return err
	}
	*v.version = image.Version(parsed)
	return nil
}

func (v versionValue) Type() string {
	return "version"
}

// imageFlags holds the geometry and logging flags shared by every command.
type imageFlags struct {
	config        string
	verbose       bool
	blockSize     uint32
	blockCount    uint32
	lookaheadSize uint32
	diskVersion   image.Version
}

func (f *imageFlags) register(flags *pflag.FlagSet) {
	flags.StringVarP(&f.config, "config", "c", "", "YAML options file")
	flags.BoolVar(&f.verbose, "verbose", false, "log engine activity to stderr")
	flags.Uint32Var(&f.blockSize, "block-size", 0, "block size in bytes (detected when opening)")
	flags.Uint32Var(&f.blockCount, "block-count", 0, "number of blocks (detected when opening)")
	flags.Uint32Var(&f.lookaheadSize, "lookahead", 0, "allocator lookahead in bytes")
	flags.Var(versionValue{&f.diskVersion}, "disk-version", "disk version to format with; also pins older images")
}

// options merges the config file with the flags given explicitly.
func (f *imageFlags) options(cmd *cobra.Command) (image.Options, error) {
	opts := image.Options{}
	if f.config != "" {
		loaded, err := image.LoadOptions(f.config)
		if err != nil {
			return image.Options{}, err
		}
		opts = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("block-size") {
		opts.BlockSize = f.blockSize
	}
	if flags.Changed("block-count") {
		opts.BlockCount = f.blockCount
	}
	if flags.Changed("lookahead") {
		opts.LookaheadSize = f.lookaheadSize
	}
	if flags.Changed("disk-version") {
		opts.DiskVersion = f.diskVersion
	}
	opts.Logger = f.logger(cmd)
	return opts, nil
}

func (f *imageFlags) logger(cmd *cobra.Command) *slog.Logger {
	if !f.verbose {
		return nil
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// open mounts filename and hands it to fn, closing it afterwards.
func (f *imageFlags) open(cmd *cobra.Command, filename string, fn func(*image.Filesystem) error) error {
	opts, err := f.options(cmd)
	if err != nil {
		return err
	}
	img, err := image.OpenImage(filename, opts)
	if err != nil {
		return err
	}
	err = fn(img)
	if cerr := img.Close(); err == nil {
		err = cerr
	}
	return err
}
