// Package mount serves an image through FUSE.
//
// Every request takes the same mutex before touching the image, so the
// kernel's concurrent calls reach the engine one at a time. File writes
// are buffered per node and committed as one WriteFile on Flush or Fsync.
// Nodes the kernel still holds follow a rename, so buffered writes land
// under the new name.
package mount

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/rstms/lfs"
	"github.com/rstms/lfs/image"
)

// FS is the FUSE view of one image.
type FS struct {
	image    *image.Filesystem
	log      *slog.Logger
	mounted  time.Time
	readOnly bool
	mu       sync.Mutex
	nodes    map[node]struct{}
}

// node is a Dir or File the kernel may still refer to.
type node interface {
	pathPtr() *string
}

func New(img *image.Filesystem, log *slog.Logger, readOnly bool) *FS {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &FS{
		image:    img,
		log:      log,
		mounted:  time.Now(),
		readOnly: readOnly,
		nodes:    map[node]struct{}{},
	}
}

// track registers n so a later rename can move it; the caller holds the
// lock.
func (f *FS) track(n node) {
	f.nodes[n] = struct{}{}
}

func (f *FS) forget(n node) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.nodes, n)
}

// moved rewrites the path of every tracked node at or below from.
func (f *FS) moved(from, to string) {
	for n := range f.nodes {
		p := n.pathPtr()
		switch {
		case *p == from:
			*p = to
		case strings.HasPrefix(*p, from+"/"):
			*p = to + (*p)[len(from):]
		}
	}
}

func (f *FS) Root() (fs.Node, error) {
	return &Dir{fs: f, path: "/", inode: 1}, nil
}

// Statfs reports image usage in blocks.
func (f *FS) Statfs(ctx context.Context, req *fuse.StatfsRequest, resp *fuse.StatfsResponse) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, err := f.image.Info()
	if err != nil {
		return errno(err)
	}
	usage, err := f.image.GetUsage()
	if err != nil {
		return errno(err)
	}
	bs, _ := info["blockSize"].(uint32)
	if bs == 0 {
		return fuse.EIO
	}
	resp.Bsize = bs
	resp.Frsize = bs
	resp.Blocks = usage.CapacityBytes / uint64(bs)
	resp.Bfree = usage.FreeBytes / uint64(bs)
	resp.Bavail = resp.Bfree
	resp.Namelen = lfs.NameMax
	return nil
}

// errno maps engine error codes onto the errno the kernel expects.
func errno(err error) error {
	if err == nil {
		return nil
	}
	var e *lfs.Error
	if !errors.As(err, &e) {
		return fuse.EIO
	}
	switch e.Code {
	case lfs.CodeNotFound:
		return fuse.ENOENT
	case lfs.CodeExists:
		return fuse.EEXIST
	case lfs.CodeNotEmpty:
		return fuse.Errno(syscall.ENOTEMPTY)
	case lfs.CodeNoSpace:
		return fuse.Errno(syscall.ENOSPC)
	case lfs.CodeInvalid:
		return fuse.Errno(syscall.EINVAL)
	case lfs.CodeInvalidState:
		return fuse.Errno(syscall.EBADF)
	}
	return fuse.EIO
}

func (f *FS) writable() error {
	if f.readOnly {
		return fuse.Errno(syscall.EROFS)
	}
	return nil
}

// Dir is a directory node.
type Dir struct {
	fs    *FS
	path  string
	inode uint64
}

func (d *Dir) pathPtr() *string { return &d.path }

func (d *Dir) Forget() { d.fs.forget(d) }

func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	a.Inode = d.inode
	a.Mode = os.ModeDir | 0o755
	a.Mtime = d.fs.mounted
	a.Ctime = d.fs.mounted
	a.Atime = d.fs.mounted
	return nil
}

func (d *Dir) child(name string, info lfs.Info) fs.Node {
	inode := fs.GenerateDynamicInode(d.inode, name)
	p := path.Join(d.path, name)
	if info.Type == lfs.TypeDir {
		dir := &Dir{fs: d.fs, path: p, inode: inode}
		d.fs.track(dir)
		return dir
	}
	file := &File{fs: d.fs, path: p, inode: inode}
	d.fs.track(file)
	return file
}

func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()
	info, err := d.fs.image.Stat(path.Join(d.path, name))
	if err != nil {
		return nil, errno(err)
	}
	return d.child(name, info), nil
}

func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()
	entries, err := d.fs.image.List(d.path)
	if err != nil {
		return nil, errno(err)
	}
	dirents := make([]fuse.Dirent, 0, len(entries))
	for _, entry := range entries {
		name := path.Base(entry.Path)
		dirent := fuse.Dirent{
			Inode: fs.GenerateDynamicInode(d.inode, name),
			Name:  name,
			Type:  fuse.DT_File,
		}
		if entry.Type == lfs.TypeDir {
			dirent.Type = fuse.DT_Dir
		}
		dirents = append(dirents, dirent)
	}
	return dirents, nil
}

func (d *Dir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	if err := d.fs.writable(); err != nil {
		return nil, err
	}
	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()
	if err := d.fs.image.Mkdir(path.Join(d.path, req.Name)); err != nil {
		return nil, errno(err)
	}
	return d.child(req.Name, lfs.Info{Type: lfs.TypeDir}), nil
}

func (d *Dir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fs.Node, fs.Handle, error) {
	if err := d.fs.writable(); err != nil {
		return nil, nil, err
	}
	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()
	if err := d.fs.image.AddFile(path.Join(d.path, req.Name), nil); err != nil {
		return nil, nil, errno(err)
	}
	file := d.child(req.Name, lfs.Info{Type: lfs.TypeFile}).(*File)
	file.data = []byte{}
	file.loaded = true
	file.attr(&resp.Attr)
	return file, file, nil
}

func (d *Dir) Remove(ctx context.Context, req *fuse.RemoveRequest) error {
	if err := d.fs.writable(); err != nil {
		return err
	}
	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()
	return errno(d.fs.image.DeleteFile(path.Join(d.path, req.Name)))
}

func (d *Dir) Rename(ctx context.Context, req *fuse.RenameRequest, newDir fs.Node) error {
	if err := d.fs.writable(); err != nil {
		return err
	}
	target, ok := newDir.(*Dir)
	if !ok {
		return fuse.EIO
	}
	d.fs.mu.Lock()
	defer d.fs.mu.Unlock()
	oldPath := path.Join(d.path, req.OldName)
	newPath := path.Join(target.path, req.NewName)
	d.fs.log.Debug("rename", "from", oldPath, "to", newPath)
	if err := d.fs.image.Rename(oldPath, newPath); err != nil {
		return errno(err)
	}
	d.fs.moved(oldPath, newPath)
	return nil
}

// File is both the node and the open handle of a regular file.
type File struct {
	fs     *FS
	path   string
	inode  uint64
	data   []byte
	loaded bool
	dirty  bool
}

func (f *File) pathPtr() *string { return &f.path }

func (f *File) Forget() { f.fs.forget(f) }

func (f *File) attr(a *fuse.Attr) {
	a.Inode = f.inode
	a.Mode = 0o644
	a.Size = uint64(len(f.data))
	a.Mtime = f.fs.mounted
	a.Ctime = f.fs.mounted
	a.Atime = f.fs.mounted
}

func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if f.loaded {
		f.attr(a)
		return nil
	}
	info, err := f.fs.image.Stat(f.path)
	if err != nil {
		return errno(err)
	}
	f.attr(a)
	a.Size = uint64(info.Size)
	return nil
}

// load reads the committed content once; the caller holds the lock.
func (f *File) load() error {
	if f.loaded {
		return nil
	}
	data, err := f.fs.image.ReadFile(f.path)
	if err != nil {
		return errno(err)
	}
	f.data = data
	f.loaded = true
	return nil
}

func (f *File) ReadAll(ctx context.Context) ([]byte, error) {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if err := f.load(); err != nil {
		return nil, err
	}
	return append([]byte(nil), f.data...), nil
}

func (f *File) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	if err := f.fs.writable(); err != nil {
		return err
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if err := f.load(); err != nil {
		return err
	}
	end := int(req.Offset) + len(req.Data)
	if end > len(f.data) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	copy(f.data[req.Offset:], req.Data)
	resp.Size = len(req.Data)
	f.dirty = true
	return nil
}

func (f *File) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if req.Valid.Size() {
		if err := f.fs.writable(); err != nil {
			return err
		}
		if err := f.load(); err != nil {
			return err
		}
		if req.Size <= uint64(len(f.data)) {
			f.data = f.data[:req.Size]
		} else {
			grown := make([]byte, req.Size)
			copy(grown, f.data)
			f.data = grown
		}
		f.dirty = true
	}
	if err := f.load(); err != nil {
		return err
	}
	f.attr(&resp.Attr)
	return nil
}

// Flush commits buffered writes.
func (f *File) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	if !f.dirty {
		return nil
	}
	if err := f.fs.image.WriteFile(f.path, f.data); err != nil {
		return errno(err)
	}
	f.dirty = false
	f.fs.log.Debug("flush", "path", f.path, "size", len(f.data))
	return nil
}

func (f *File) Fsync(ctx context.Context, req *fuse.FsyncRequest) error {
	return f.Flush(ctx, &fuse.FlushRequest{})
}

// Release drops the buffer so the next open reads committed content.
func (f *File) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	if err := f.Flush(ctx, &fuse.FlushRequest{}); err != nil {
		return err
	}
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.data = nil
	f.loaded = false
	return nil
}
