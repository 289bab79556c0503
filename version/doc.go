// Package version reports build metadata for the lfs tool.
//
// Values come from -ldflags when the release build sets them:
//
//	-ldflags "-X github.com/rstms/lfs/version.Version=v1.0.0 -X github.com/rstms/lfs/version.Commit=abc123"
//
// Otherwise they fall back to the module and VCS settings recorded by the
// Go toolchain in debug.ReadBuildInfo.
package version
