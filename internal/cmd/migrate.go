package cmd

import (
	"fmt"

	"github.com/rstms/lfs"
	"github.com/rstms/lfs/image"
	"github.com/spf13/cobra"
)

// NewMigrateCmd upgrades an image to a newer disk version in place.
func NewMigrateCmd(flags *imageFlags) *cobra.Command {
	target := image.Version(lfs.DiskVersion)
	cmd := &cobra.Command{
		Use:   "migrate IMAGE",
		Short: "Upgrade an image's disk version",
		Long: `Upgrade an image to a newer disk version in place.

Every metadata pair is rewritten with the newer encoding. An interrupted
migration leaves a readable image; running migrate again finishes it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			// pin the mount so the upgrade happens here and nowhere else
			if opts.DiskVersion == 0 {
				opts.DiskVersion = image.Version(lfs.DiskVersion2_0)
			}
			img, err := image.OpenImage(args[0], opts)
			if err != nil {
				return err
			}
			before, err := img.GetDiskVersion()
			if err == nil {
				err = img.Migrate(uint32(target))
			}
			if cerr := img.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", args[0], lfs.FormatDiskVersion(before), target)
			return nil
		},
	}
	cmd.Flags().Var(versionValue{&target}, "to", "disk version to migrate to")
	return cmd
}

// NewRewriteCmd copies an image into a new file with different geometry,
// version or container.
func NewRewriteCmd(flags *imageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rewrite SRC DST",
		Short: "Copy an image into a new file",
		Long: `Copy the tree of image SRC into a newly formatted image DST.

--block-size, --block-count and --disk-version select the new geometry and
version; unset values are taken from SRC. The DST extension selects the
container. SRC is not modified.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			return image.RewriteImage(args[1], args[0], opts)
		},
	}
}
