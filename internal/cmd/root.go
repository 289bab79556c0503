package cmd

import (
	"github.com/rstms/lfs/version"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the lfs command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	flags := &imageFlags{}
	rootCmd := &cobra.Command{
		Use:   "lfs",
		Short: "lfs - build and inspect littlefs flash images",
		Long: `lfs builds, inspects and edits power-loss resilient flash filesystem
images on the host.

Images are plain files holding every block of the device. Files named
*.zst or *.lz4 are stored compressed and unpacked transparently.`,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags.register(rootCmd.PersistentFlags())

	groupImage := "image"
	groupFiles := "files"
	rootCmd.AddGroup(&cobra.Group{ID: groupImage, Title: "Image Commands"})
	rootCmd.AddGroup(&cobra.Group{ID: groupFiles, Title: "File Commands"})

	for _, cmd := range []*cobra.Command{
		NewCreateCmd(flags),
		NewInfoCmd(flags),
		NewDfCmd(flags),
		NewMigrateCmd(flags),
		NewRewriteCmd(flags),
		NewMountCmd(flags),
	} {
		cmd.GroupID = groupImage
		rootCmd.AddCommand(cmd)
	}
	for _, cmd := range []*cobra.Command{
		NewLsCmd(flags),
		NewTreeCmd(flags),
		NewCatCmd(flags),
		NewPutCmd(flags),
		NewMkdirCmd(flags),
		NewRmCmd(flags),
		NewMvCmd(flags),
		NewImportCmd(flags),
		NewExportCmd(flags),
	} {
		cmd.GroupID = groupFiles
		rootCmd.AddCommand(cmd)
	}
	rootCmd.AddCommand(NewVersionCmd())
	return rootCmd
}
