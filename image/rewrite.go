package image

import (
	"bytes"
	"os"

	"github.com/rstms/lfs/littlefs"
)

// RewriteImage copies the tree of srcFile into a newly created dstFile
// with the geometry and disk version in opts. Zero fields keep the
// source's values. The source file is never modified.
func RewriteImage(dstFile, srcFile string, opts Options) error {
	data, err := os.ReadFile(srcFile)
	if err != nil {
		return Fatal(err)
	}
	raw, _, err := Unpack(data)
	if err != nil {
		return err
	}
	sb, err := littlefs.Probe(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return err
	}
	// pinned to its own version so the source is read as it is
	src, err := FromImage(raw, Options{
		BlockSize:   sb.BlockSize,
		DiskVersion: Version(sb.Version),
		Logger:      opts.Logger,
	})
	if err != nil {
		return err
	}
	defer src.Cleanup()

	if opts.BlockSize == 0 {
		opts.BlockSize = sb.BlockSize
	}
	if opts.BlockCount == 0 {
		opts.BlockCount = sb.BlockCount
	}
	if opts.DiskVersion == 0 {
		version, err := src.GetDiskVersion()
		if err != nil {
			return err
		}
		opts.DiskVersion = Version(version)
	}
	dst, err := CreateImage(dstFile, opts)
	if err != nil {
		return err
	}
	defer dst.Close()

	if err := CopyTree(dst, src); err != nil {
		return err
	}
	return dst.Save("")
}
