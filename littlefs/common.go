// error constructors shared by the engine

package littlefs

import (
	"github.com/rstms/lfs"
)

func errCorrupt(format string, args ...any) error {
	return lfs.Errorf(lfs.CodeCorrupt, format, args...)
}

func errInvalid(format string, args ...any) error {
	return lfs.Errorf(lfs.CodeInvalid, format, args...)
}

func errNotFound(format string, args ...any) error {
	return lfs.Errorf(lfs.CodeNotFound, format, args...)
}

func errExists(format string, args ...any) error {
	return lfs.Errorf(lfs.CodeExists, format, args...)
}

func errNoSpace(format string, args ...any) error {
	return lfs.Errorf(lfs.CodeNoSpace, format, args...)
}
