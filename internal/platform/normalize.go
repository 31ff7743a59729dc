package platform

import (
	"fmt"
	"strings"
)

// archAliases maps GOARCH and uname spellings to one name per architecture.
var archAliases = map[string]string{
	"amd64":   "amd64",
	"x86_64":  "amd64",
	"x64":     "amd64",
	"arm64":   "arm64",
	"aarch64": "arm64",
	"386":     "386",
	"i386":    "386",
	"i686":    "386",
	"x86":     "386",
	"arm":     "arm",
	"armv6l":  "arm",
	"armv7l":  "arm",
	"armhf":   "arm",
}

// normalizeArch converts GOARCH or kernel values to normalized architecture
// names. Unknown architectures are returned lowercased so they still form an
// "<os>-<arch>" identifier.
func normalizeArch(arch string) (string, error) {
	a := strings.ToLower(strings.TrimSpace(arch))
	if a == "" {
		return "", fmt.Errorf("empty architecture")
	}
	if canonical, ok := archAliases[a]; ok {
		return canonical, nil
	}
	return a, nil
}

// normalizePlatform converts platform IDs to lowercase for consistency.
func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}
