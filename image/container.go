package image

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Container is the wrapping an image file is stored in.
type Container uint8

const (
	ContainerRaw Container = iota
	ContainerZstd
	ContainerLZ4
)

var (
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

func (c Container) String() string {
	switch c {
	case ContainerRaw:
		return "raw"
	case ContainerZstd:
		return "zstd"
	case ContainerLZ4:
		return "lz4"
	}
	return fmt.Sprintf("container(%d)", uint8(c))
}

// ContainerForName picks the container from a file name extension.
func ContainerForName(filename string) Container {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".zst", ".zstd":
		return ContainerZstd
	case ".lz4":
		return ContainerLZ4
	}
	return ContainerRaw
}

// DetectContainer identifies a container by its leading magic bytes.
func DetectContainer(header []byte) Container {
	switch {
	case bytes.HasPrefix(header, zstdMagic):
		return ContainerZstd
	case bytes.HasPrefix(header, lz4Magic):
		return ContainerLZ4
	}
	return ContainerRaw
}

// zstd encoder and decoder are safe for concurrent use and reused
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("image: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("image: zstd decoder initialization failed: " + err.Error())
	}
}

// Pack wraps a raw image in container c.
func Pack(c Container, raw []byte) ([]byte, error) {
	switch c {
	case ContainerRaw:
		return raw, nil
	case ContainerZstd:
		return zstdEncoder.EncodeAll(raw, nil), nil
	case ContainerLZ4:
		var buf bytes.Buffer
		zw := lz4.NewWriter(&buf)
		if _, err := zw.Write(raw); err != nil {
			return nil, Fatal(err)
		}
		if err := zw.Close(); err != nil {
			return nil, Fatal(err)
		}
		return buf.Bytes(), nil
	}
	return nil, Fatalf("unsupported container %v", c)
}

// Unpack detects the container of data and returns the raw image.
func Unpack(data []byte) ([]byte, Container, error) {
	c := DetectContainer(data)
	switch c {
	case ContainerZstd:
		raw, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, c, Fatalf("zstd decompress: %v", err)
		}
		return raw, c, nil
	case ContainerLZ4:
		raw, err := io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
		if err != nil {
			return nil, c, Fatalf("lz4 decompress: %v", err)
		}
		return raw, c, nil
	}
	return data, c, nil
}
