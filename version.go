package lfs

import (
	"fmt"
	"strconv"
	"strings"
)

// NameMax is the longest file or directory name, in bytes.
const NameMax = 64

// On-disk format versions. The major version occupies the upper 16 bits.
const (
	DiskVersion2_0 uint32 = 0x00020000
	DiskVersion2_1 uint32 = 0x00020001

	// DiskVersion is the version written by Format unless overridden.
	// Images with an older minor version are migrated to it on mount.
	DiskVersion = DiskVersion2_1
)

// FormatDiskVersion renders a disk version as "major.minor".
func FormatDiskVersion(version uint32) string {
	return fmt.Sprintf("%d.%d", version>>16, version&0xffff)
}

// SupportedDiskVersion reports whether this library can read and write
// images with the given version.
func SupportedDiskVersion(version uint32) bool {
	return version == DiskVersion2_0 || version == DiskVersion2_1
}

// ParseDiskVersion accepts "2.0", "2.1" or a numeric version such as
// "0x00020001".
func ParseDiskVersion(s string) (uint32, error) {
	var major, minor uint32
	if _, err := fmt.Sscanf(s, "%d.%d", &major, &minor); err == nil && !strings.HasPrefix(s, "0x") {
		v := major<<16 | minor
		if !SupportedDiskVersion(v) {
			return 0, Errorf(CodeInvalid, "unsupported disk version %s", s)
		}
		return v, nil
	}
	n, err := strconv.ParseUint(s, 0, 32)
	if err != nil || !SupportedDiskVersion(uint32(n)) {
		return 0, Errorf(CodeInvalid, "unsupported disk version %s", s)
	}
	return uint32(n), nil
}
