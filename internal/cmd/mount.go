package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/rstms/lfs/image"
	"github.com/rstms/lfs/internal/mount"
	"github.com/spf13/cobra"
)

// NewMountCmd serves an image through FUSE until interrupted.
func NewMountCmd(flags *imageFlags) *cobra.Command {
	var readOnly bool
	cmd := &cobra.Command{
		Use:   "mount IMAGE MOUNTPOINT",
		Short: "Mount an image with FUSE",
		Long: `Mount an image at MOUNTPOINT until interrupted.

File writes are committed to the image when the file is flushed or closed.
A compressed image is written back when the filesystem is unmounted.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			filename, mountpoint := args[0], args[1]
			if pathsOverlap(filename, mountpoint) {
				return Fatalf("image %s lies inside mountpoint %s", filename, mountpoint)
			}
			return flags.open(cmd, filename, func(img *image.Filesystem) error {
				return serve(cmd, img, mountpoint, readOnly, flags)
			})
		},
	}
	cmd.Flags().BoolVarP(&readOnly, "read-only", "r", false, "mount read-only")
	return cmd
}

func serve(cmd *cobra.Command, img *image.Filesystem, mountpoint string, readOnly bool, flags *imageFlags) error {
	options := []fuse.MountOption{
		fuse.FSName("lfs"),
		fuse.Subtype("lfs"),
	}
	if readOnly {
		options = append(options, fuse.ReadOnly())
	}
	c, err := fuse.Mount(mountpoint, options...)
	if err != nil {
		return Fatal(err)
	}
	defer c.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		if _, ok := <-sigChan; ok {
			fuse.Unmount(mountpoint)
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "%s mounted at %s\n", img.Filename, mountpoint)
	if err := fs.Serve(c, mount.New(img, flags.logger(cmd), readOnly)); err != nil {
		return Fatal(err)
	}
	return nil
}

// pathsOverlap reports whether one path contains the other.
func pathsOverlap(a, b string) bool {
	a, errA := filepath.Abs(a)
	b, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return false
	}
	if a == b {
		return true
	}
	sep := string(filepath.Separator)
	return strings.HasPrefix(a, b+sep) || strings.HasPrefix(b, a+sep)
}
