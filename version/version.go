package version

import (
	"fmt"
	"io"
	"runtime/debug"

	"github.com/rstms/lfs"
)

// set by -ldflags
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Info is the complete build description.
type Info struct {
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	Date        string `json:"date"`
	DiskVersion string `json:"diskVersion"`
}

func buildSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, setting := range info.Settings {
		if setting.Key == key {
			return setting.Value
		}
	}
	return ""
}

// GetVersion prefers the linked version, then the module version.
func GetVersion() string {
	if Version != "dev" && Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" && info.Main.Version != "(devel)" {
			return info.Main.Version
		}
	}
	return "development"
}

func GetCommit() string {
	if Commit != "unknown" && Commit != "" {
		return Commit
	}
	if value := buildSetting("vcs.revision"); value != "" {
		return value
	}
	return "unknown"
}

func GetBuildDate() string {
	if Date != "unknown" && Date != "" {
		return Date
	}
	if value := buildSetting("vcs.time"); value != "" {
		return value
	}
	return "unknown"
}

func GetInfo() Info {
	return Info{
		Version:     GetVersion(),
		Commit:      GetCommit(),
		Date:        GetBuildDate(),
		DiskVersion: lfs.FormatDiskVersion(lfs.DiskVersion),
	}
}

// GetFullVersion returns the version with short commit and build date
// when they are known.
func GetFullVersion() string {
	info := GetInfo()
	if info.Commit == "unknown" || len(info.Commit) <= 7 {
		return info.Version
	}
	if info.Date != "unknown" {
		return fmt.Sprintf("%s (%s, built %s)", info.Version, info.Commit[:7], info.Date)
	}
	return fmt.Sprintf("%s (%s)", info.Version, info.Commit[:7])
}

// Fprint writes a human readable version report.
func Fprint(w io.Writer, appName string) {
	info := GetInfo()
	fmt.Fprintf(w, "%s version %s\n", appName, GetFullVersion())
	fmt.Fprintf(w, "Disk version: %s\n", info.DiskVersion)
	fmt.Fprintf(w, "Commit: %s\n", info.Commit)
	fmt.Fprintf(w, "Build Date: %s\n", info.Date)
}
