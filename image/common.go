// go-common local proxy functions

package image

import (
	"errors"

	"github.com/rstms/go-common"
	"github.com/rstms/lfs"
)

// Fatal wraps host-side failures. Filesystem errors pass through so their
// code survives.
func Fatal(err error) error {
	var e *lfs.Error
	if err == nil || errors.As(err, &e) {
		return err
	}
	return common.Fatal(err)
}

func Fatalf(format string, args ...interface{}) error {
	return common.Fatalf(format, args...)
}

func IsFile(filename string) bool {
	return common.IsFile(filename)
}
