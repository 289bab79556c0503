package littlefs

import (
	"io"
	"slices"
	"strings"

	"github.com/rstms/lfs"
)

// Directory implements lfs.Directory over a chain of metadata pairs
// starting at head.
type Directory struct {
	fs   *FileSystem
	head pair
}

// ensure Directory implements lfs.Directory
var _ lfs.Directory = (*Directory)(nil)

// DirectoryEntry implements lfs.DirectoryEntry and represents a single
// file or directory record as it was when read.
type DirectoryEntry struct {
	fs *FileSystem
	e  entry
}

// ensure DirectoryEntry implements lfs.DirectoryEntry
var _ lfs.DirectoryEntry = (*DirectoryEntry)(nil)

// File reads the content of a file entry.
type File struct {
	fs *FileSystem
	e  entry
}

// ensure File implements lfs.File
var _ lfs.File = (*File)(nil)

// slot locates a record: chain[k].entries[i].
type slot struct {
	chain []*mdir
	k     int
	i     int
}

func (s slot) mdir() *mdir {
	return s.chain[s.k]
}

func (s slot) entry() *entry {
	return &s.chain[s.k].entries[s.i]
}

func validName(name string) error {
	switch {
	case name == "" || name == "." || name == "..":
		return errInvalid("invalid name %q", name)
	case len(name) > lfs.NameMax:
		return errInvalid("name of %d bytes exceeds the limit %d", len(name), lfs.NameMax)
	case strings.ContainsAny(name, "/\x00"):
		return errInvalid("name %q contains a reserved character", name)
	}
	return nil
}

// chain fetches every pair of the directory in order.
func (d *Directory) chain() ([]*mdir, error) {
	var chain []*mdir
	p := d.head
	for !p.isNull() {
		if uint32(len(chain)) >= d.fs.blockCount/2 {
			return nil, errCorrupt("directory tail list forms a cycle")
		}
		m, err := d.fs.fetch(p)
		if err != nil {
			return nil, err
		}
		chain = append(chain, m)
		p = m.tail
	}
	return chain, nil
}

// find returns the slot of name, with i == -1 when it is absent.
func (d *Directory) find(name string) (slot, error) {
	chain, err := d.chain()
	if err != nil {
		return slot{}, err
	}
	for k, m := range chain {
		for i := range m.entries {
			if m.entries[i].name == name {
				return slot{chain: chain, k: k, i: i}, nil
			}
		}
	}
	return slot{chain: chain, i: -1}, nil
}

func (d *Directory) empty() (bool, error) {
	chain, err := d.chain()
	if err != nil {
		return false, err
	}
	for _, m := range chain {
		if len(m.entries) > 0 {
			return false, nil
		}
	}
	return true, nil
}

// insert adds e to the first pair with room, splitting the last pair of
// the chain when none has any.
func (d *Directory) insert(chain []*mdir, e entry) error {
	fs := d.fs
	for _, m := range chain {
		entries := append(slices.Clone(m.entries), e)
		if fs.encodedSize(m, entries) <= int(fs.blockSize) {
			return fs.commit(m, entries, m.tail)
		}
	}
	last := chain[len(chain)-1]
	return fs.commitDir(last, append(slices.Clone(last.entries), e), last.tail)
}

// replace swaps the record at s for e in one commit.
func (d *Directory) replace(s slot, e entry) error {
	m := s.mdir()
	entries := slices.Clone(m.entries)
	entries[s.i] = e
	return d.fs.commitDir(m, entries, m.tail)
}

// drop removes the record at s in one commit. A pair other than the head
// left empty is unlinked from the chain by the same commit instead.
func (d *Directory) drop(s slot) error {
	m := s.mdir()
	entries := slices.Delete(slices.Clone(m.entries), s.i, s.i+1)
	if len(entries) == 0 && s.k > 0 {
		prev := s.chain[s.k-1]
		return d.fs.commit(prev, prev.entries, m.tail)
	}
	return d.fs.commit(m, entries, m.tail)
}

// newFileEntry stores data inline or in a fresh skip-list.
func (fs *FileSystem) newFileEntry(name string, data []byte) (entry, error) {
	if len(data) <= int(fs.sb.InlineMax) {
		return entry{name: name, kind: kindInline, data: append([]byte{}, data...)}, nil
	}
	if uint64(len(data)) > uint64(fs.sb.FileMax) {
		return entry{}, errInvalid("file size %d exceeds the limit %d", len(data), fs.sb.FileMax)
	}
	head, size, err := fs.ctzAppend(blockNull, 0, data)
	if err != nil {
		return entry{}, err
	}
	return entry{name: name, kind: kindCTZ, head: head, size: size}, nil
}

// appendEntry returns e extended by data. Blocks of e are reused, never
// modified.
func (fs *FileSystem) appendEntry(e entry, data []byte) (entry, error) {
	size := uint64(e.fileSize()) + uint64(len(data))
	if size > uint64(fs.sb.FileMax) {
		return entry{}, errInvalid("file size %d exceeds the limit %d", size, fs.sb.FileMax)
	}
	switch {
	case e.kind == kindCTZ:
		head, n, err := fs.ctzAppend(e.head, e.size, data)
		if err != nil {
			return entry{}, err
		}
		return entry{name: e.name, kind: kindCTZ, head: head, size: n}, nil
	case size <= uint64(fs.sb.InlineMax):
		return entry{name: e.name, kind: kindInline, data: slices.Concat(e.data, data)}, nil
	}
	return fs.newFileEntry(e.name, slices.Concat(e.data, data))
}

func (d *Directory) newEntry(e entry) *DirectoryEntry {
	return &DirectoryEntry{fs: d.fs, e: e}
}

func (d *Directory) Entries() ([]lfs.DirectoryEntry, error) {
	if err := d.fs.check(); err != nil {
		return nil, err
	}
	chain, err := d.chain()
	if err != nil {
		return nil, err
	}
	result := []lfs.DirectoryEntry{}
	for _, m := range chain {
		for _, e := range m.entries {
			result = append(result, d.newEntry(e))
		}
	}
	return result, nil
}

func (d *Directory) Entry(name string) (lfs.DirectoryEntry, error) {
	if err := d.fs.check(); err != nil {
		return nil, err
	}
	s, err := d.find(name)
	if err != nil {
		return nil, err
	}
	if s.i < 0 {
		return nil, errNotFound("no entry named %q", name)
	}
	return d.newEntry(*s.entry()), nil
}

func (d *Directory) AddDirectory(name string) (lfs.DirectoryEntry, error) {
	if err := d.fs.begin(); err != nil {
		return nil, err
	}
	return d.addDirectory(name)
}

func (d *Directory) addDirectory(name string) (*DirectoryEntry, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	s, err := d.find(name)
	if err != nil {
		return nil, err
	}
	if s.i >= 0 {
		return nil, errExists("%q already exists", name)
	}
	child, err := d.fs.allocPair()
	if err != nil {
		return nil, err
	}
	if err := d.fs.commit(child, nil, nullPair); err != nil {
		return nil, err
	}
	e := entry{name: name, kind: kindDir, pair: child.pair}
	if err := d.insert(s.chain, e); err != nil {
		return nil, err
	}
	return d.newEntry(e), nil
}

func (d *Directory) AddFile(name string, data []byte) (lfs.DirectoryEntry, error) {
	if err := d.fs.begin(); err != nil {
		return nil, err
	}
	if err := d.fs.reserve(int64(len(data))); err != nil {
		return nil, err
	}
	return d.writeFile(name, data, false)
}

func (d *Directory) WriteFile(name string, data []byte) (lfs.DirectoryEntry, error) {
	if err := d.fs.begin(); err != nil {
		return nil, err
	}
	if err := d.fs.reserve(int64(len(data))); err != nil {
		return nil, err
	}
	return d.writeFile(name, data, true)
}

// writeFile creates name, or replaces an existing file when overwrite is
// set. The new content is written in full before the record is swapped.
func (d *Directory) writeFile(name string, data []byte, overwrite bool) (*DirectoryEntry, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	s, err := d.find(name)
	if err != nil {
		return nil, err
	}
	if s.i >= 0 {
		if !overwrite {
			return nil, errExists("%q already exists", name)
		}
		if s.entry().kind == kindDir {
			return nil, errInvalid("%q is a directory", name)
		}
	}
	e, err := d.fs.newFileEntry(name, data)
	if err != nil {
		return nil, err
	}
	if s.i >= 0 {
		err = d.replace(s, e)
	} else {
		err = d.insert(s.chain, e)
	}
	if err != nil {
		return nil, err
	}
	return d.newEntry(e), nil
}

// AppendFile adds data to the end of name, creating it when absent.
func (d *Directory) AppendFile(name string, data []byte) (lfs.DirectoryEntry, error) {
	if err := d.fs.begin(); err != nil {
		return nil, err
	}
	return d.appendFile(name, data)
}

func (d *Directory) appendFile(name string, data []byte) (*DirectoryEntry, error) {
	if err := validName(name); err != nil {
		return nil, err
	}
	s, err := d.find(name)
	if err != nil {
		return nil, err
	}
	if s.i < 0 {
		e, err := d.fs.newFileEntry(name, data)
		if err != nil {
			return nil, err
		}
		if err := d.insert(s.chain, e); err != nil {
			return nil, err
		}
		return d.newEntry(e), nil
	}
	if s.entry().kind == kindDir {
		return nil, errInvalid("%q is a directory", name)
	}
	e, err := d.fs.appendEntry(*s.entry(), data)
	if err != nil {
		return nil, err
	}
	if err := d.replace(s, e); err != nil {
		return nil, err
	}
	return d.newEntry(e), nil
}

// Remove deletes a file or an empty directory.
func (d *Directory) Remove(name string) error {
	if err := d.fs.begin(); err != nil {
		return err
	}
	return d.remove(name, false)
}

// remove deletes name. With recursive set the children of a directory
// are removed first, depth first, each by its own commit.
func (d *Directory) remove(name string, recursive bool) error {
	s, err := d.find(name)
	if err != nil {
		return err
	}
	if s.i < 0 {
		return errNotFound("no entry named %q", name)
	}
	if e := s.entry(); e.kind == kindDir {
		child := &Directory{fs: d.fs, head: e.pair}
		empty, err := child.empty()
		if err != nil {
			return err
		}
		if !empty {
			if !recursive {
				return lfs.Errorf(lfs.CodeNotEmpty, "directory %q is not empty", name)
			}
			if err := child.clear(); err != nil {
				return err
			}
			// the chain may have changed shape
			if s, err = d.find(name); err != nil {
				return err
			}
			if s.i < 0 {
				return errNotFound("no entry named %q", name)
			}
		}
	}
	return d.drop(s)
}

// clear removes every entry of d, depth first.
func (d *Directory) clear() error {
	for {
		chain, err := d.chain()
		if err != nil {
			return err
		}
		var name string
		for _, m := range chain {
			if len(m.entries) > 0 {
				name = m.entries[0].name
				break
			}
		}
		if name == "" {
			return nil
		}
		if err := d.remove(name, true); err != nil {
			return err
		}
	}
}

func (e *DirectoryEntry) Name() string {
	return e.e.name
}

func (e *DirectoryEntry) Type() lfs.EntryType {
	return e.e.typ()
}

func (e *DirectoryEntry) IsDir() bool {
	return e.e.kind == kindDir
}

func (e *DirectoryEntry) Size() int64 {
	return e.e.fileSize()
}

func (e *DirectoryEntry) Dir() (lfs.Directory, error) {
	if !e.IsDir() {
		return nil, errInvalid("%q is not a directory", e.e.name)
	}
	return &Directory{fs: e.fs, head: e.e.pair}, nil
}

func (e *DirectoryEntry) Open() (lfs.File, error) {
	if e.IsDir() {
		return nil, errInvalid("%q is a directory", e.e.name)
	}
	return &File{fs: e.fs, e: e.e}, nil
}

func (f *File) Size() int64 {
	return f.e.fileSize()
}

func (f *File) ReadAt(p []byte, off int64) (int, error) {
	if err := f.fs.check(); err != nil {
		return 0, err
	}
	if off < 0 {
		return 0, errInvalid("negative offset %d", off)
	}
	size := f.Size()
	if off >= size {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}
	var n int
	var err error
	if f.e.kind == kindInline {
		n = copy(p, f.e.data[off:])
	} else {
		n, err = f.fs.ctzRead(f.e.head, f.e.size, p, uint32(off))
		if err != nil {
			return n, err
		}
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// readAll returns the whole content of e, never nil.
func (fs *FileSystem) readAll(e *entry) ([]byte, error) {
	if e.kind == kindInline {
		return append([]byte{}, e.data...), nil
	}
	buf := make([]byte, e.size)
	if _, err := fs.ctzRead(e.head, e.size, buf, 0); err != nil {
		return nil, err
	}
	return buf, nil
}
