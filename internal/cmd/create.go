package cmd

import (
	"fmt"

	"github.com/rstms/lfs/image"
	"github.com/spf13/cobra"
)

// NewCreateCmd formats a new image file, optionally filled from a host
// directory.
func NewCreateCmd(flags *imageFlags) *cobra.Command {
	var from string
	cmd := &cobra.Command{
		Use:   "create IMAGE",
		Short: "Format a new image file",
		Long: `Format a new image file with the given geometry.

An existing file is overwritten. The geometry defaults to 256 blocks of
4096 bytes. With --from, the contents of a host directory are copied into
the new image.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			img, err := image.CreateImage(args[0], opts)
			if err != nil {
				return err
			}
			if from != "" {
				err = img.Import(from, "/")
			}
			if cerr := img.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "host directory to import")
	return cmd
}
