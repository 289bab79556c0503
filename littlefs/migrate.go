package littlefs

import (
	"github.com/rstms/lfs"
)

// migrate re-encodes every metadata pair with the codec of version and
// then records version in the superblock. Pairs are decoded by the
// encoding named in their own header, so an interrupted migration leaves
// an image that mounts and migrates again.
func (fs *FileSystem) migrate(version uint32) error {
	c, err := codecFor(version)
	if err != nil {
		return err
	}
	if err := fs.begin(); err != nil {
		return err
	}
	from := fs.sb.Version
	var pairs []pair
	err = fs.walkPairs(func(m *mdir) error {
		if m.pair != rootPair {
			pairs = append(pairs, m.pair)
		}
		return nil
	})
	if err != nil {
		return err
	}
	fs.codec = c
	for _, p := range pairs {
		m, err := fs.fetch(p)
		if err != nil {
			return err
		}
		if m.enc == c.id() {
			continue
		}
		if err := fs.commitDir(m, m.entries, m.tail); err != nil {
			return err
		}
	}
	root, err := fs.fetch(rootPair)
	if err != nil {
		return err
	}
	sb := *root.sb
	sb.Version = version
	root.sb = &sb
	if err := fs.commitDir(root, root.entries, root.tail); err != nil {
		return err
	}
	fs.sb = sb
	fs.log.Info("migrated", "from", lfs.FormatDiskVersion(from), "to", lfs.FormatDiskVersion(version),
		"pairs", len(pairs)+1)
	return nil
}

// Migrate upgrades a mounted image to version. Downgrades are refused.
func (fs *FileSystem) Migrate(version uint32) error {
	if err := fs.check(); err != nil {
		return err
	}
	if !lfs.SupportedDiskVersion(version) {
		return lfs.WithOp(errInvalid("unsupported disk version %s", lfs.FormatDiskVersion(version)), "migrate", "")
	}
	if version < fs.sb.Version {
		return lfs.WithOp(errInvalid("cannot downgrade from %s to %s",
			lfs.FormatDiskVersion(fs.sb.Version), lfs.FormatDiskVersion(version)), "migrate", "")
	}
	if version == fs.sb.Version {
		return nil
	}
	return lfs.WithOp(fs.migrate(version), "migrate", "")
}
