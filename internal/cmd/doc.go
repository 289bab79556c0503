// Package cmd implements the lfs command line: one constructor per cobra
// subcommand, wired together by NewRootCmd.
//
// Every command that touches an image takes the image file as its first
// argument. Raw images are changed in place; .zst and .lz4 images are
// unpacked into memory and written back when the command finishes.
package cmd
