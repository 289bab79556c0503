package image

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/rstms/lfs"
)

// FileRecord is one entry found by ScanFiles.
type FileRecord struct {
	Name string `json:"name" yaml:"name"`
	Dir  bool   `json:"dir" yaml:"dir"`
	Size int64  `json:"size" yaml:"size"`
}

// WalkFunc is called by Walk for every entry below the starting directory.
// Returning fs.SkipDir from a directory skips its children.
type WalkFunc func(info lfs.Info) error

// Walk visits the tree below root depth first, parents before children.
func (f *Filesystem) Walk(root string, fn WalkFunc) error {
	infos, err := f.List(root)
	if err != nil {
		return err
	}
	for _, info := range infos {
		err := fn(info)
		if err == fs.SkipDir {
			continue
		}
		if err != nil {
			return err
		}
		if info.Type == lfs.TypeDir {
			if err := f.Walk(info.Path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// ScanFiles returns a record for every file and directory in the image.
func (f *Filesystem) ScanFiles() ([]FileRecord, error) {
	records := []FileRecord{}
	err := f.Walk("/", func(info lfs.Info) error {
		records = append(records, FileRecord{
			Name: info.Path,
			Dir:  info.Type == lfs.TypeDir,
			Size: info.Size,
		})
		return nil
	})
	if err != nil {
		return []FileRecord{}, err
	}
	return records, nil
}

// AddHostFile copies a host file into the image, replacing dstPathname.
func (f *Filesystem) AddHostFile(dstPathname, srcPathname string) error {
	data, err := os.ReadFile(srcPathname)
	if err != nil {
		return Fatal(err)
	}
	return f.WriteFile(dstPathname, data)
}

// Import copies the host directory srcDir into the image directory dst,
// creating directories as needed.
func (f *Filesystem) Import(srcDir, dst string) error {
	err := filepath.WalkDir(srcDir, func(hostPath string, d fs.DirEntry, err error) error {
		if err != nil {
			return Fatal(err)
		}
		rel, err := filepath.Rel(srcDir, hostPath)
		if err != nil {
			return Fatal(err)
		}
		target := path.Join("/", dst, filepath.ToSlash(rel))
		switch {
		case d.IsDir():
			isDir, err := f.IsDir(target)
			if err != nil {
				return err
			}
			if !isDir {
				if err := f.Mkdir(target); err != nil {
					return err
				}
			}
		case d.Type().IsRegular():
			f.log.Debug("import", "src", hostPath, "dst", target)
			if err := f.AddHostFile(target, hostPath); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return nil
}

// Export copies the image directory src into the host directory dstDir.
func (f *Filesystem) Export(src, dstDir string) error {
	if err := os.MkdirAll(dstDir, 0700); err != nil {
		return Fatal(err)
	}
	base, err := f.Stat(src)
	if err != nil {
		return err
	}
	if base.Type != lfs.TypeDir {
		return lfs.Errorf(lfs.CodeInvalid, "%s is not a directory", base.Path)
	}
	return f.Walk(base.Path, func(info lfs.Info) error {
		rel, err := filepath.Rel(base.Path, info.Path)
		if err != nil {
			return Fatal(err)
		}
		target := filepath.Join(dstDir, filepath.FromSlash(rel))
		if info.Type == lfs.TypeDir {
			if err := os.MkdirAll(target, 0700); err != nil {
				return Fatal(err)
			}
			return nil
		}
		data, err := f.ReadFile(info.Path)
		if err != nil {
			return err
		}
		if err := os.WriteFile(target, data, 0600); err != nil {
			return Fatal(err)
		}
		return nil
	})
}

// CopyTree copies every entry of src into dst, directories first.
func CopyTree(dst, src *Filesystem) error {
	return src.Walk("/", func(info lfs.Info) error {
		if info.Type == lfs.TypeDir {
			return dst.Mkdir(info.Path)
		}
		data, err := src.ReadFile(info.Path)
		if err != nil {
			return err
		}
		return dst.AddFile(info.Path, data)
	})
}
