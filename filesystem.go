package lfs

// A FileSystem provides access to a tree hierarchy of directories
// and files stored on a BlockDevice.
type FileSystem interface {
	// RootDir returns the single root directory.
	RootDir() (Directory, error)
	Info() (map[string]any, error)
	DiskVersion() uint32
	Usage() (Usage, error)
}

// Usage reports block accounting in bytes.
type Usage struct {
	CapacityBytes uint64 `json:"capacityBytes" yaml:"capacityBytes"`
	UsedBytes     uint64 `json:"usedBytes" yaml:"usedBytes"`
	FreeBytes     uint64 `json:"freeBytes" yaml:"freeBytes"`
}
