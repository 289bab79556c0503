package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rstms/lfs"
	"github.com/rstms/lfs/image"
	"github.com/spf13/cobra"
)

func NewCatCmd(flags *imageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "cat IMAGE PATH...",
		Short: "Print file contents",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				for _, name := range args[1:] {
					data, err := img.ReadFile(name)
					if err != nil {
						return err
					}
					if _, err := cmd.OutOrStdout().Write(data); err != nil {
						return Fatal(err)
					}
				}
				return nil
			})
		},
	}
}

// NewPutCmd writes a host file, or stdin for "-", into the image.
func NewPutCmd(flags *imageFlags) *cobra.Command {
	var (
		appendData bool
		noClobber  bool
	)
	cmd := &cobra.Command{
		Use:   "put IMAGE SRC DST",
		Short: "Copy a host file into the image",
		Long: `Copy the host file SRC into the image at DST, replacing any existing
file. SRC "-" reads standard input.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dst := args[1], args[2]
			var data []byte
			var err error
			if src == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				if !IsFile(src) {
					return Fatalf("%s: not a file", src)
				}
				data, err = os.ReadFile(src)
			}
			if err != nil {
				return Fatal(err)
			}
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				switch {
				case appendData:
					return img.AppendFile(dst, data)
				case noClobber:
					return img.AddFile(dst, data)
				}
				return img.WriteFile(dst, data)
			})
		},
	}
	cmd.Flags().BoolVarP(&appendData, "append", "a", false, "append to DST instead of replacing it")
	cmd.Flags().BoolVarP(&noClobber, "no-clobber", "n", false, "fail when DST exists")
	return cmd
}

// NewMkdirCmd creates directories. With --parents missing parents are
// created and existing directories are not an error.
func NewMkdirCmd(flags *imageFlags) *cobra.Command {
	var parents bool
	cmd := &cobra.Command{
		Use:   "mkdir IMAGE PATH...",
		Short: "Create directories",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				for _, name := range args[1:] {
					if !parents {
						if err := img.Mkdir(name); err != nil {
							return err
						}
						continue
					}
					if err := mkdirAll(img, name); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&parents, "parents", "p", false, "create missing parents")
	return cmd
}

func mkdirAll(img *image.Filesystem, name string) error {
	current := ""
	for _, segment := range strings.Split(name, "/") {
		if segment == "" {
			continue
		}
		current += "/" + segment
		err := img.Mkdir(current)
		if lfs.CodeOf(err) == lfs.CodeExists {
			isDir, serr := img.IsDir(current)
			if serr != nil {
				return serr
			}
			if isDir {
				continue
			}
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func NewRmCmd(flags *imageFlags) *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "rm IMAGE PATH...",
		Short: "Remove files and directories",
		Long: `Remove files and empty directories. With --recursive, directories are
removed with everything below them.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				for _, name := range args[1:] {
					if err := img.Delete(name, image.DeleteOptions{Recursive: recursive}); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "remove directories and their contents")
	return cmd
}

func NewMvCmd(flags *imageFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mv IMAGE OLD NEW",
		Short: "Rename a file or directory",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.open(cmd, args[0], func(img *image.Filesystem) error {
				if err := img.Rename(args[1], args[2]); err != nil {
					return err
				}
				if flags.verbose {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s -> %s\n", args[1], args[2])
				}
				return nil
			})
		},
	}
}
