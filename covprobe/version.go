package covprobe

import "github.com/kolkov/covprobe/internal/cover/patch"

// Version information for covprobe.
const (
	// Version is the current version, written into coverage metadata.
	Version = "0.1.0"

	// VersionMajor is the major version number.
	VersionMajor = 0

	// VersionMinor is the minor version number.
	VersionMinor = 1

	// VersionPatch is the patch version number.
	VersionPatch = 0
)

// Info provides runtime information about covprobe.
type Info struct {
	// Version is the library version string.
	Version string

	// Immediate indicates whether this runtime can patch call sites in
	// place. Without it, immediate mode falls back to batched passes.
	Immediate bool
}

// GetInfo returns information about the covprobe runtime.
//
// Example:
//
//	info := covprobe.GetInfo()
//	fmt.Printf("covprobe %s (immediate: %v)\n", info.Version, info.Immediate)
func GetInfo() Info {
	return Info{
		Version:   Version,
		Immediate: patch.Default().Supported(),
	}
}
