// Package platform detects the host and names it the way runtime providers do.
//
// The identifier is derived from the build's GOOS and GOARCH, since the
// runtime has to match the userland this binary runs in. gopsutil supplies
// the kernel architecture and Linux distribution for display. The result is
// exposed to Lua configuration as a read-only table.
package platform

import "context"

// Info contains platform detection information.
type Info struct {
	OS      string // "linux", "darwin", "windows"
	Arch    string // "amd64", "arm64", "386", "arm" or GOARCH when unrecognized
	Kernel  string // kernel architecture as reported (e.g. "x86_64", "aarch64")
	Distro  string // Linux distribution ID, empty elsewhere or when undetected
	Version string // distribution version
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// IsAMD64 returns true if the architecture is amd64.
func (i *Info) IsAMD64() bool {
	return i.Arch == "amd64"
}

// IsARM64 returns true if the architecture is arm64.
func (i *Info) IsARM64() bool {
	return i.Arch == "arm64"
}

// IsAppleSilicon returns true if running on Apple Silicon (macOS + arm64).
func (i *Info) IsAppleSilicon() bool {
	return i.OS == "darwin" && i.Arch == "arm64"
}

// CanonicalID returns the platform identifier runtime providers key on:
// "windows-x64", "windows-x86", "mac-os-arm64", "mac-os", "linux",
// "linux-arm64", "linux-arm", "linux-i386", otherwise "<os>-<arch>".
func (i *Info) CanonicalID() string {
	switch i.OS {
	case "windows":
		switch i.Arch {
		case "amd64":
			return "windows-x64"
		case "386":
			return "windows-x86"
		}
	case "darwin":
		if i.Arch == "arm64" {
			return "mac-os-arm64"
		}
		return "mac-os"
	case "linux":
		switch i.Arch {
		case "amd64":
			return "linux"
		case "386":
			return "linux-i386"
		default:
			return "linux-" + i.Arch
		}
	}
	return i.OS + "-" + i.Arch
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
