package lfs

import (
	"fmt"
	"io"
)

type EntryType uint8

const (
	TypeFile EntryType = 1
	TypeDir  EntryType = 2
)

func (t EntryType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDir:
		return "dir"
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

func (t EntryType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *EntryType) UnmarshalText(text []byte) error {
	switch string(text) {
	case "file":
		*t = TypeFile
	case "dir":
		*t = TypeDir
	default:
		return fmt.Errorf("unknown entry type %q", text)
	}
	return nil
}

// Info describes one entry as seen through a path.
type Info struct {
	Path string    `json:"path" yaml:"path"`
	Size int64     `json:"size" yaml:"size"`
	Type EntryType `json:"type" yaml:"type"`
}

// Directory is an entry in a filesystem that stores files.
// Names are single path segments; entries are returned in storage order.
type Directory interface {
	Entry(name string) (DirectoryEntry, error)
	Entries() ([]DirectoryEntry, error)
	AddDirectory(name string) (DirectoryEntry, error)
	AddFile(name string, data []byte) (DirectoryEntry, error)
	WriteFile(name string, data []byte) (DirectoryEntry, error)
	Remove(name string) error
}

// DirectoryEntry represents a single entry within a directory,
// which can be either another Directory or a File.
type DirectoryEntry interface {
	Name() string
	Type() EntryType
	IsDir() bool
	Size() int64
	Dir() (Directory, error)
	Open() (File, error)
}

// File is a read-only view of a file's content.
type File interface {
	io.ReaderAt
	Size() int64
}
