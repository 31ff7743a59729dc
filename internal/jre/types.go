package jre

import (
	"fmt"
	"path"
	"strings"
)

// Channel selects which Java runtime line to acquire.
type Channel int

const (
	// Legacy is the Java 8 runtime line.
	Legacy Channel = iota
	// Current is the Java 17 runtime line.
	Current
)

// Channels lists every channel in prompt order.
var Channels = []Channel{Legacy, Current}

// String returns the channel name used on the command line.
func (c Channel) String() string {
	switch c {
	case Legacy:
		return "legacy"
	case Current:
		return "current"
	default:
		return fmt.Sprintf("channel(%d)", int(c))
	}
}

// JavaVersion returns the major Java version of the channel.
func (c Channel) JavaVersion() int {
	if c == Legacy {
		return 8
	}
	return 17
}

// ManifestKey returns the key the primary provider's index uses for the channel.
func (c Channel) ManifestKey() string {
	if c == Legacy {
		return "jre-legacy"
	}
	return "java-runtime-gamma"
}

// FallbackVersion returns the java_version value sent to the secondary provider.
func (c Channel) FallbackVersion() string {
	return fmt.Sprintf("%d.0", c.JavaVersion())
}

// DirName returns the directory under <root>/java the channel installs into.
func (c Channel) DirName() string {
	if c == Legacy {
		return "java-legacy"
	}
	return "java-current"
}

// ParseChannel accepts "legacy", "8", "current" or "17".
func ParseChannel(s string) (Channel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "legacy", "8", "java8", "jre-legacy":
		return Legacy, nil
	case "current", "17", "java17":
		return Current, nil
	default:
		return 0, fmt.Errorf("unknown channel %q (want legacy or current)", s)
	}
}

// Request is an immutable acquisition request.
type Request struct {
	PlatformID string
	Channel    Channel
}

// Validate checks that the request can be handed to a pipeline.
func (r Request) Validate() error {
	if r.PlatformID == "" {
		return fmt.Errorf("platform id is required")
	}
	if r.Channel != Legacy && r.Channel != Current {
		return fmt.Errorf("invalid channel %d", int(r.Channel))
	}
	return nil
}

// EntryKind is the kind of a file-list entry.
type EntryKind int

const (
	// Directory entries are created with MkdirAll.
	Directory EntryKind = iota
	// SymbolicLink entries point at a sibling path.
	SymbolicLink
	// RegularFile entries are downloaded.
	RegularFile
)

// String returns the manifest spelling of the kind.
func (k EntryKind) String() string {
	switch k {
	case Directory:
		return "directory"
	case SymbolicLink:
		return "link"
	case RegularFile:
		return "file"
	default:
		return "unknown"
	}
}

// FileEntry is one element of a primary provider file list.
// Path is relative to the install root and uses forward slashes.
type FileEntry struct {
	Path string
	Kind EntryKind

	// RegularFile only
	URL        string
	Digest     []byte // SHA-1, 20 bytes
	Size       int64
	Executable bool

	// SymbolicLink only
	LinkTarget string
}

// Bundle is the single-archive payload chosen from the secondary provider.
type Bundle struct {
	ArchiveURL string
}

// ArchiveName returns the last path element of the archive URL.
func (b Bundle) ArchiveName() string {
	u := b.ArchiveURL
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return path.Base(u)
}

// TopLevelDir returns the directory every archive entry is nested under:
// the archive file name with its extension removed.
func (b Bundle) TopLevelDir() string {
	name := b.ArchiveName()
	return strings.TrimSuffix(name, path.Ext(name))
}
