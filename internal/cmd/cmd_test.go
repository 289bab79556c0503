package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rstms/lfs"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	err := root.Execute()
	return out.String(), err
}

func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := run(t, "", args...)
	require.Nil(t, err, "lfs %s", strings.Join(args, " "))
	return out
}

func newImage(t *testing.T, name string, args ...string) string {
	filename := filepath.Join(t.TempDir(), name)
	mustRun(t, append([]string{"create", filename, "--block-size", "512", "--block-count", "64"}, args...)...)
	return filename
}

func TestCreatePutCat(t *testing.T) {
	img := newImage(t, "flash.bin")
	_, err := run(t, "hi", "put", img, "-", "/hello.txt")
	require.Nil(t, err)

	out := mustRun(t, "ls", img)
	require.Regexp(t, `file\s+2\s+hello\.txt`, out)
	require.Equal(t, "hi", mustRun(t, "cat", img, "/hello.txt"))

	_, err = run(t, "again", "put", "--no-clobber", img, "-", "/hello.txt")
	require.Equal(t, lfs.CodeExists, lfs.CodeOf(err))
	_, err = run(t, " there", "put", "--append", img, "-", "/hello.txt")
	require.Nil(t, err)
	require.Equal(t, "hi there", mustRun(t, "cat", img, "/hello.txt"))

	_, err = run(t, "", "cat", img, "/missing")
	require.Equal(t, lfs.CodeNotFound, lfs.CodeOf(err))
}

func TestNamespaceCommands(t *testing.T) {
	img := newImage(t, "flash.bin")
	mustRun(t, "mkdir", "-p", img, "/a/b/c")
	mustRun(t, "mkdir", "-p", img, "/a/b")
	_, err := run(t, "", "mkdir", img, "/a")
	require.Equal(t, lfs.CodeExists, lfs.CodeOf(err))

	_, err = run(t, "x", "put", img, "-", "/a/b/c/file")
	require.Nil(t, err)
	_, err = run(t, "", "rm", img, "/a")
	require.Equal(t, lfs.CodeNotEmpty, lfs.CodeOf(err))

	mustRun(t, "mv", img, "/a/b/c/file", "/moved")
	require.Equal(t, "x", mustRun(t, "cat", img, "/moved"))
	mustRun(t, "rm", "-r", img, "/a")
	out := mustRun(t, "ls", img, "/")
	require.NotContains(t, out, "a/")
	require.Contains(t, out, "moved")
}

func TestInfoAndDf(t *testing.T) {
	img := newImage(t, "flash.bin")
	out := mustRun(t, "info", img)
	require.Regexp(t, `blockSize:\s+512`, out)
	require.Regexp(t, `blockCount:\s+64`, out)
	require.Regexp(t, `diskVersion:\s+2\.1`, out)
	require.Regexp(t, `digest:\s+[0-9a-f]{64}`, out)

	out = mustRun(t, "df", img, "--fits", "1000")
	require.Contains(t, out, "capacity 32768")
	require.Contains(t, out, "fits     true")
	out = mustRun(t, "df", img, "--fits", "1000000")
	require.Contains(t, out, "fits     false")
}

func TestTreeImportExport(t *testing.T) {
	src := t.TempDir()
	require.Nil(t, os.MkdirAll(filepath.Join(src, "www", "js"), 0700))
	require.Nil(t, os.WriteFile(filepath.Join(src, "www", "index.html"), []byte("<html/>"), 0600))
	require.Nil(t, os.WriteFile(filepath.Join(src, "www", "js", "app.js"), []byte("run()"), 0600))

	img := newImage(t, "flash.bin", "--from", src)
	out := mustRun(t, "tree", img)
	require.Contains(t, out, "  www/\n")
	require.Contains(t, out, "    js/\n")
	require.Contains(t, out, "      app.js (5)\n")
	require.Contains(t, out, "2 directories, 2 files")

	mustRun(t, "import", img, src, "--to", "/copy")
	dst := t.TempDir()
	mustRun(t, "export", img, dst, "--from", "/copy/www")
	data, err := os.ReadFile(filepath.Join(dst, "js", "app.js"))
	require.Nil(t, err)
	require.Equal(t, "run()", string(data))
}

func TestMigrateAndRewrite(t *testing.T) {
	img := newImage(t, "legacy.bin", "--disk-version", "2.0")
	_, err := run(t, "old", "put", "--disk-version", "2.0", img, "-", "/f")
	require.Nil(t, err)
	out := mustRun(t, "info", "--disk-version", "2.0", img)
	require.Regexp(t, `diskVersion:\s+2\.0`, out)

	out = mustRun(t, "migrate", img)
	require.Contains(t, out, "2.0 -> 2.1")
	out = mustRun(t, "info", img)
	require.Regexp(t, `diskVersion:\s+2\.1`, out)

	packed := filepath.Join(t.TempDir(), "new.img.zst")
	mustRun(t, "rewrite", "--block-size", "1024", img, packed)
	out = mustRun(t, "info", packed)
	require.Regexp(t, `blockSize:\s+1024`, out)
	require.Regexp(t, `container:\s+zstd`, out)
	require.Equal(t, "old", mustRun(t, "cat", packed, "/f"))
}

func TestConfigFile(t *testing.T) {
	config := filepath.Join(t.TempDir(), "lfs.yaml")
	require.Nil(t, os.WriteFile(config, []byte("blockSize: 1024\nblockCount: 32\n"), 0600))
	filename := filepath.Join(t.TempDir(), "flash.bin")
	mustRun(t, "create", "--config", config, filename)
	stat, err := os.Stat(filename)
	require.Nil(t, err)
	require.Equal(t, int64(1024*32), stat.Size())

	// explicit flags win over the file
	mustRun(t, "create", "--config", config, "--block-count", "16", filename)
	stat, err = os.Stat(filename)
	require.Nil(t, err)
	require.Equal(t, int64(1024*16), stat.Size())

	_, err = run(t, "", "create", "--disk-version", "3.0", filename)
	require.NotNil(t, err)
}

func TestVersionCommand(t *testing.T) {
	out := mustRun(t, "version")
	require.Contains(t, out, "lfs version")
	require.Contains(t, out, "Disk version: 2.1")
}

func TestPathsOverlap(t *testing.T) {
	tests := []struct {
		name     string
		path1    string
		path2    string
		expected bool
	}{
		{"identical paths", "/tmp/image.bin", "/tmp/image.bin", true},
		{"image inside mountpoint", "/mnt/flash/image.bin", "/mnt/flash", true},
		{"separate paths", "/tmp/image.bin", "/mnt/flash", false},
		{"sibling prefix", "/tmp/flash.bin", "/tmp/flash", false},
		{"relative inside", "mnt/image.bin", "mnt", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, pathsOverlap(tt.path1, tt.path2))
		})
	}
}
