package littlefs

import (
	"strings"

	"github.com/rstms/lfs"
)

// splitPath returns the segments of an absolute or relative path, resolved
// against the root. Empty and "." segments are dropped; ".." pops.
func splitPath(p string) ([]string, error) {
	if strings.IndexByte(p, 0) >= 0 {
		return nil, errInvalid("path contains NUL")
	}
	var segs []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
		case "..":
			if len(segs) > 0 {
				segs = segs[:len(segs)-1]
			}
		default:
			if err := validName(seg); err != nil {
				return nil, err
			}
			segs = append(segs, seg)
		}
	}
	return segs, nil
}

// joinPath renders segments as an absolute path.
func joinPath(segs []string) string {
	return "/" + strings.Join(segs, "/")
}

// CleanPath returns the canonical absolute form of p.
func CleanPath(p string) (string, error) {
	segs, err := splitPath(p)
	if err != nil {
		return "", err
	}
	return joinPath(segs), nil
}

// openDir walks segs from the root. Every segment must name a directory.
func (fs *FileSystem) openDir(segs []string) (*Directory, error) {
	d := &Directory{fs: fs, head: rootPair}
	for i, name := range segs {
		s, err := d.find(name)
		if err != nil {
			return nil, err
		}
		if s.i < 0 {
			return nil, errNotFound("%s does not exist", joinPath(segs[:i+1]))
		}
		e := s.entry()
		if e.kind != kindDir {
			return nil, errNotFound("%s is not a directory", joinPath(segs[:i+1]))
		}
		d = &Directory{fs: fs, head: e.pair}
	}
	return d, nil
}

// parent resolves everything but the last segment of p.
func (fs *FileSystem) parent(p string) (*Directory, string, error) {
	segs, err := splitPath(p)
	if err != nil {
		return nil, "", err
	}
	if len(segs) == 0 {
		return nil, "", errInvalid("operation not permitted on the root directory")
	}
	d, err := fs.openDir(segs[:len(segs)-1])
	if err != nil {
		return nil, "", err
	}
	return d, segs[len(segs)-1], nil
}

// Stat describes the entry at p.
func (fs *FileSystem) Stat(p string) (lfs.Info, error) {
	info, err := fs.stat(p)
	return info, lfs.WithOp(err, "stat", p)
}

func (fs *FileSystem) stat(p string) (lfs.Info, error) {
	if err := fs.check(); err != nil {
		return lfs.Info{}, err
	}
	segs, err := splitPath(p)
	if err != nil {
		return lfs.Info{}, err
	}
	if len(segs) == 0 {
		return lfs.Info{Path: "/", Type: lfs.TypeDir}, nil
	}
	d, err := fs.openDir(segs[:len(segs)-1])
	if err != nil {
		return lfs.Info{}, err
	}
	s, err := d.find(segs[len(segs)-1])
	if err != nil {
		return lfs.Info{}, err
	}
	if s.i < 0 {
		return lfs.Info{}, errNotFound("%s does not exist", joinPath(segs))
	}
	e := s.entry()
	return lfs.Info{Path: joinPath(segs), Size: e.fileSize(), Type: e.typ()}, nil
}

// ReadDir lists the directory at p in storage order.
func (fs *FileSystem) ReadDir(p string) ([]lfs.Info, error) {
	infos, err := fs.readDir(p)
	return infos, lfs.WithOp(err, "list", p)
}

func (fs *FileSystem) readDir(p string) ([]lfs.Info, error) {
	if err := fs.check(); err != nil {
		return nil, err
	}
	segs, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	d, err := fs.openDir(segs)
	if err != nil {
		return nil, err
	}
	chain, err := d.chain()
	if err != nil {
		return nil, err
	}
	infos := []lfs.Info{}
	for _, m := range chain {
		for i := range m.entries {
			e := &m.entries[i]
			infos = append(infos, lfs.Info{
				Path: joinPath(append(segs[:len(segs):len(segs)], e.name)),
				Size: e.fileSize(),
				Type: e.typ(),
			})
		}
	}
	return infos, nil
}

// ReadFile returns the content of the file at p.
func (fs *FileSystem) ReadFile(p string) ([]byte, error) {
	data, err := fs.readFile(p)
	return data, lfs.WithOp(err, "read", p)
}

func (fs *FileSystem) readFile(p string) ([]byte, error) {
	if err := fs.check(); err != nil {
		return nil, err
	}
	d, name, err := fs.parent(p)
	if err != nil {
		return nil, err
	}
	s, err := d.find(name)
	if err != nil {
		return nil, err
	}
	if s.i < 0 {
		return nil, errNotFound("%s does not exist", p)
	}
	e := s.entry()
	if e.kind == kindDir {
		return nil, errInvalid("%s is a directory", p)
	}
	return fs.readAll(e)
}

// Mkdir creates an empty directory at p.
func (fs *FileSystem) Mkdir(p string) error {
	err := fs.mkdir(p)
	return lfs.WithOp(err, "mkdir", p)
}

func (fs *FileSystem) mkdir(p string) error {
	if err := fs.begin(); err != nil {
		return err
	}
	d, name, err := fs.parent(p)
	if err != nil {
		return err
	}
	_, err = d.addDirectory(name)
	return err
}

// AddFile creates a file at p. It fails with CodeExists when p exists.
func (fs *FileSystem) AddFile(p string, data []byte) error {
	err := fs.writeFile(p, data, false)
	return lfs.WithOp(err, "add", p)
}

// WriteFile creates or replaces the file at p.
func (fs *FileSystem) WriteFile(p string, data []byte) error {
	err := fs.writeFile(p, data, true)
	return lfs.WithOp(err, "write", p)
}

func (fs *FileSystem) writeFile(p string, data []byte, overwrite bool) error {
	if err := fs.begin(); err != nil {
		return err
	}
	if err := fs.reserve(int64(len(data))); err != nil {
		return err
	}
	d, name, err := fs.parent(p)
	if err != nil {
		return err
	}
	_, err = d.writeFile(name, data, overwrite)
	return err
}

// AppendFile adds data to the end of the file at p, creating it when
// absent.
func (fs *FileSystem) AppendFile(p string, data []byte) error {
	err := fs.appendFile(p, data)
	return lfs.WithOp(err, "append", p)
}

func (fs *FileSystem) appendFile(p string, data []byte) error {
	if err := fs.begin(); err != nil {
		return err
	}
	d, name, err := fs.parent(p)
	if err != nil {
		return err
	}
	_, err = d.appendFile(name, data)
	return err
}

// Remove deletes the entry at p. A directory must be empty unless
// recursive is set, in which case its subtree is removed depth first.
// Removing the root with recursive set empties it.
func (fs *FileSystem) Remove(p string, recursive bool) error {
	err := fs.remove(p, recursive)
	return lfs.WithOp(err, "delete", p)
}

func (fs *FileSystem) remove(p string, recursive bool) error {
	if err := fs.begin(); err != nil {
		return err
	}
	segs, err := splitPath(p)
	if err != nil {
		return err
	}
	if len(segs) == 0 {
		if !recursive {
			return errInvalid("cannot remove the root directory")
		}
		return (&Directory{fs: fs, head: rootPair}).clear()
	}
	d, err := fs.openDir(segs[:len(segs)-1])
	if err != nil {
		return err
	}
	return d.remove(segs[len(segs)-1], recursive)
}

// Rename moves the entry at from to to. An existing file at to is
// replaced, as is an empty directory when from is a directory. A rename
// that touches two metadata pairs is recorded in the root pair first, so
// a crash leaves either the old or the new name once the image is
// mounted again.
func (fs *FileSystem) Rename(from, to string) error {
	err := fs.rename(from, to)
	return lfs.WithOp(err, "rename", from)
}

func (fs *FileSystem) rename(from, to string) error {
	if err := fs.begin(); err != nil {
		return err
	}
	src, err := splitPath(from)
	if err != nil {
		return err
	}
	dst, err := splitPath(to)
	if err != nil {
		return err
	}
	if len(src) == 0 || len(dst) == 0 {
		return errInvalid("cannot rename the root directory")
	}
	srcDir, err := fs.openDir(src[:len(src)-1])
	if err != nil {
		return err
	}
	srcName := src[len(src)-1]
	ss, err := srcDir.find(srcName)
	if err != nil {
		return err
	}
	if ss.i < 0 {
		return errNotFound("%s does not exist", joinPath(src))
	}
	moved := *ss.entry()
	if joinPath(src) == joinPath(dst) {
		return nil
	}
	if moved.kind == kindDir && strings.HasPrefix(joinPath(dst)+"/", joinPath(src)+"/") {
		return errInvalid("cannot move %s into itself", joinPath(src))
	}
	dstDir, err := fs.openDir(dst[:len(dst)-1])
	if err != nil {
		return err
	}
	dstName := dst[len(dst)-1]
	ds, err := dstDir.find(dstName)
	if err != nil {
		return err
	}
	if ds.i >= 0 {
		old := ds.entry()
		if (old.kind == kindDir) != (moved.kind == kindDir) {
			return errInvalid("cannot replace %s with an entry of another type", joinPath(dst))
		}
		if old.kind == kindDir {
			empty, err := (&Directory{fs: fs, head: old.pair}).empty()
			if err != nil {
				return err
			}
			if !empty {
				return lfs.Errorf(lfs.CodeNotEmpty, "directory %s is not empty", joinPath(dst))
			}
		}
	}
	moved.name = dstName

	if srcDir.head == dstDir.head {
		sm := ss.mdir()
		switch {
		case ds.i < 0:
			// rename within one pair rewrites the record in place
			return srcDir.replace(ss, moved)
		case ds.k == ss.k:
			entries := append([]entry{}, sm.entries...)
			entries[ds.i] = moved
			entries = append(entries[:ss.i], entries[ss.i+1:]...)
			return fs.commitDir(sm, entries, sm.tail)
		}
	}

	if err := fs.setMove(newMove(srcDir, dstDir, &moved, srcName, dstName)); err != nil {
		return err
	}
	if err := fs.moveEntry(srcDir, srcName, dstDir, moved); err != nil {
		// settle what was committed; a record left behind is settled by
		// the next mount
		if root, ferr := fs.fetch(rootPair); ferr == nil && root.move != nil {
			_ = fs.finishMove(root)
		}
		return err
	}
	return fs.setMove(nil)
}

// moveEntry commits moved to dstDir and then drops srcName from srcDir.
// Slots are looked up again since the move record may have changed the
// root pair.
func (fs *FileSystem) moveEntry(srcDir *Directory, srcName string, dstDir *Directory, moved entry) error {
	ds, err := dstDir.find(moved.name)
	if err != nil {
		return err
	}
	if ds.i >= 0 {
		err = dstDir.replace(ds, moved)
	} else {
		err = dstDir.insert(ds.chain, moved)
	}
	if err != nil {
		return err
	}
	ss, err := srcDir.find(srcName)
	if err != nil {
		return err
	}
	if ss.i < 0 {
		return errCorrupt("%s vanished during rename", srcName)
	}
	return srcDir.drop(ss)
}
