package lfs

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatDiskVersion(t *testing.T) {
	require.Equal(t, "2.0", FormatDiskVersion(DiskVersion2_0))
	require.Equal(t, "2.1", FormatDiskVersion(DiskVersion2_1))
	require.Equal(t, uint32(0x00020000), DiskVersion2_0)
	require.Equal(t, uint32(0x00020001), DiskVersion2_1)
	require.Equal(t, 64, NameMax)
}

func TestParseDiskVersion(t *testing.T) {
	for input, want := range map[string]uint32{
		"2.0":        DiskVersion2_0,
		"2.1":        DiskVersion2_1,
		"0x00020001": DiskVersion2_1,
		"131072":     DiskVersion2_0,
	} {
		got, err := ParseDiskVersion(input)
		require.Nil(t, err, input)
		require.Equal(t, want, got, input)
	}
	for _, input := range []string{"", "3.0", "2.7", "banana", "0x00010000"} {
		_, err := ParseDiskVersion(input)
		require.ErrorIs(t, err, ErrInvalid, input)
	}
}
