package cmd

import (
	"fmt"
	"path"
	"strings"

	"github.com/rstms/lfs"
	"github.com/rstms/lfs/image"
	"github.com/spf13/cobra"
)

func NewLsCmd(flags *imageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "ls IMAGE [PATH]",
		Short: "List a directory",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "/"
			if len(args) > 1 {
				dir = args[1]
			}
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				entries, err := img.List(dir)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, entry := range entries {
					name := path.Base(entry.Path)
					if entry.Type == lfs.TypeDir {
						name += "/"
					}
					fmt.Fprintf(out, "%-4s %10d  %s\n", entry.Type, entry.Size, name)
				}
				return nil
			})
		},
	}
}

// NewTreeCmd prints the tree below a directory, indented by depth.
func NewTreeCmd(flags *imageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "tree IMAGE [PATH]",
		Short: "Show a directory tree",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "/"
			if len(args) > 1 {
				root = args[1]
			}
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				base, err := img.Stat(root)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, base.Path)
				depth := strings.Count(strings.TrimSuffix(base.Path, "/"), "/")
				var files, dirs int
				err = img.Walk(base.Path, func(info lfs.Info) error {
					indent := strings.Repeat("  ", strings.Count(info.Path, "/")-depth)
					if info.Type == lfs.TypeDir {
						dirs++
						fmt.Fprintf(out, "%s%s/\n", indent, path.Base(info.Path))
					} else {
						files++
						fmt.Fprintf(out, "%s%s (%d)\n", indent, path.Base(info.Path), info.Size)
					}
					return nil
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\n%d directories, %d files\n", dirs, files)
				return nil
			})
		},
	}
}
