package littlefs

import (
	"github.com/klauspost/crc32"
)

// crc is the littlefs CRC-32: the IEEE polynomial seeded with 0xffffffff
// and without the final inversion.
func crc(seed uint32, p []byte) uint32 {
	return ^crc32.Update(^seed, crc32.IEEETable, p)
}
