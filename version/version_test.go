package version

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinkedVersion(t *testing.T) {
	saved := []string{Version, Commit, Date}
	defer func() { Version, Commit, Date = saved[0], saved[1], saved[2] }()

	Version, Commit, Date = "v1.2.3", "0123456789abcdef", "2026-01-02T03:04:05Z"
	require.Equal(t, "v1.2.3", GetVersion())
	require.Equal(t, "v1.2.3 (0123456, built 2026-01-02T03:04:05Z)", GetFullVersion())

	var buf bytes.Buffer
	Fprint(&buf, "lfs")
	require.Contains(t, buf.String(), "lfs version v1.2.3")
	require.Contains(t, buf.String(), "Disk version: 2.1")
}

func TestDevelopmentVersion(t *testing.T) {
	require.NotEmpty(t, GetVersion())
	require.NotEmpty(t, GetCommit())
	require.NotEmpty(t, GetFullVersion())
}
