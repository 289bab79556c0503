package cmd

import (
	"github.com/rstms/lfs/image"
	"github.com/spf13/cobra"
)

func NewImportCmd(flags *imageFlags) *cobra.Command {
	var dst string
	cmd := &cobra.Command{
		Use:   "import IMAGE DIR",
		Short: "Copy a host directory tree into the image",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				return img.Import(args[1], dst)
			})
		},
	}
	cmd.Flags().StringVar(&dst, "to", "/", "image directory to import into")
	return cmd
}

func NewExportCmd(flags *imageFlags) *cobra.Command {
	var src string
	cmd := &cobra.Command{
		Use:   "export IMAGE DIR",
		Short: "Copy an image directory tree to the host",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				return img.Export(src, args[1])
			})
		},
	}
	cmd.Flags().StringVar(&src, "from", "/", "image directory to export")
	return cmd
}
