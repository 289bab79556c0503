package cmd

import (
	"encoding/hex"
	"fmt"
	"slices"

	"github.com/rstms/lfs/image"
	"github.com/spf13/cobra"
)

// NewInfoCmd prints geometry, version, usage and digest of an image.
func NewInfoCmd(flags *imageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info IMAGE",
		Short: "Describe an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				info, err := img.Info()
				if err != nil {
					return err
				}
				digest, err := img.Digest()
				if err != nil {
					return err
				}
				info["digest"] = hex.EncodeToString(digest)
				keys := make([]string, 0, len(info))
				for key := range info {
					keys = append(keys, key)
				}
				slices.Sort(keys)
				out := cmd.OutOrStdout()
				for _, key := range keys {
					fmt.Fprintf(out, "%-14s %v\n", key+":", info[key])
				}
				return nil
			})
		},
	}
}

// NewDfCmd prints space usage.
func NewDfCmd(flags *imageFlags) *cobra.Command {
	var size int64
	cmd := &cobra.Command{
		Use:   "df IMAGE",
		Short: "Show space usage",
		Long: `Show the capacity, used and free bytes of an image.

With --fits, also report whether a file of that many bytes can be written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				usage, err := img.GetUsage()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "capacity %d\nused     %d\nfree     %d\n", usage.CapacityBytes, usage.UsedBytes, usage.FreeBytes)
				if cmd.Flags().Changed("fits") {
					fits, err := img.CanFit("/", size)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "fits     %t\n", fits)
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&size, "fits", 0, "check whether a file of this size fits")
	return cmd
}
