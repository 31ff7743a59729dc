package jre

// PlatformTokens is the (os, arch, bitness) triple the secondary provider understands.
type PlatformTokens struct {
	OS      string
	Arch    string
	Bitness string
}

// platformTokens is the closed set of platforms the secondary provider serves.
var platformTokens = map[string]PlatformTokens{
	"mac-os-arm64": {OS: "macos", Arch: "arm", Bitness: "64"},
	"linux-arm64":  {OS: "linux", Arch: "arm", Bitness: "64"},
	"linux-arm":    {OS: "linux", Arch: "arm", Bitness: "32"},
	"linux":        {OS: "linux", Arch: "x86", Bitness: "64"},
}

// MapPlatform translates a canonical platform id into secondary provider tokens.
// ok is false for every id outside the table; callers must not query the provider then.
func MapPlatform(platformID string) (PlatformTokens, bool) {
	tokens, ok := platformTokens[platformID]
	return tokens, ok
}

// MappedPlatforms returns the ids MapPlatform accepts.
func MappedPlatforms() []string {
	return []string{"mac-os-arm64", "linux-arm64", "linux-arm", "linux"}
}
