package version

import (
	"fmt"
	"runtime/debug"
)

// Swappable for testing
var readBuildInfo = debug.ReadBuildInfo

// BuildVersion returns the module version, or "dev" if unavailable.
func BuildVersion() string {
	info, ok := readBuildInfo()
	if !ok {
		return "dev"
	}
	if info.Main.Version == "" || info.Main.Version == "(devel)" {
		return "dev"
	}
	return info.Main.Version
}

// String returns the version with the short VCS revision when the
// build carries one, e.g. "v0.3.1 (1a2b3c4)". Audit evidence should
// name the exact binary that produced it.
func String() string {
	v := BuildVersion()
	info, ok := readBuildInfo()
	if !ok {
		return v
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && len(s.Value) >= 7 {
			return fmt.Sprintf("%s (%s)", v, s.Value[:7])
		}
	}
	return v
}
