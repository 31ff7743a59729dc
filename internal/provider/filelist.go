package provider

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
)

// manifestFile is the value of files[path] in a runtime manifest.
type manifestFile struct {
	Type       string `json:"type"`
	Executable bool   `json:"executable"`
	Target     string `json:"target"`
	Downloads  struct {
		Raw *struct {
			URL  string `json:"url"`
			SHA1 string `json:"sha1"`
			Size int64  `json:"size"`
		} `json:"raw"`
	} `json:"downloads"`
}

type skippedEntry struct {
	path string
	kind string
}

// parseFileList decodes {"files": {...}} token by token so the entries keep
// the order they have in the document. Directories must precede their
// contents there, and materialization relies on that.
func parseFileList(data []byte, source string) ([]jre.FileEntry, []skippedEntry, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	if err := expectDelim(dec, '{'); err != nil {
		return nil, nil, wrapDecode(source, dec, err)
	}

	var entries []jre.FileEntry
	var skipped []skippedEntry
	sawFiles := false

	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, nil, wrapDecode(source, dec, err)
		}

		if key != "files" {
			var ignored json.RawMessage
			if err := dec.Decode(&ignored); err != nil {
				return nil, nil, wrapDecode(source, dec, err)
			}
			continue
		}

		sawFiles = true
		if err := expectDelim(dec, '{'); err != nil {
			return nil, nil, wrapDecode(source, dec, err)
		}
		for dec.More() {
			p, err := readKey(dec)
			if err != nil {
				return nil, nil, wrapDecode(source, dec, err)
			}
			offset := dec.InputOffset()

			var mf manifestFile
			if err := dec.Decode(&mf); err != nil {
				return nil, nil, wrapDecode(source, dec, fmt.Errorf("files[%q]: %w", p, err))
			}

			entry, known, err := toEntry(p, mf)
			if err != nil {
				return nil, nil, malformedAt(source, offset, "files[%q]: %v", p, err)
			}
			if !known {
				skipped = append(skipped, skippedEntry{path: p, kind: mf.Type})
				continue
			}
			entries = append(entries, entry)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, nil, wrapDecode(source, dec, err)
		}
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, nil, wrapDecode(source, dec, err)
	}
	if !sawFiles {
		return nil, nil, malformedAt(source, 0, "manifest has no files object")
	}
	return entries, skipped, nil
}

// toEntry converts one manifest record. known is false for types this
// version does not understand; those are skipped rather than rejected.
func toEntry(p string, mf manifestFile) (jre.FileEntry, bool, error) {
	if !isLocalPath(p) {
		return jre.FileEntry{}, false, fmt.Errorf("path escapes the install root")
	}

	switch mf.Type {
	case "directory":
		return jre.FileEntry{Path: p, Kind: jre.Directory}, true, nil

	case "link":
		if mf.Target == "" {
			return jre.FileEntry{}, false, fmt.Errorf("link has no target")
		}
		if !isLocalPath(path.Join(path.Dir(p), mf.Target)) {
			return jre.FileEntry{}, false, fmt.Errorf("link target %q escapes the install root", mf.Target)
		}
		return jre.FileEntry{Path: p, Kind: jre.SymbolicLink, LinkTarget: mf.Target}, true, nil

	case "file":
		raw := mf.Downloads.Raw
		if raw == nil || raw.URL == "" {
			return jre.FileEntry{}, false, fmt.Errorf("file has no raw download")
		}
		digest, err := hex.DecodeString(raw.SHA1)
		if err != nil || len(digest) != 20 {
			return jre.FileEntry{}, false, fmt.Errorf("invalid sha1 %q", raw.SHA1)
		}
		if raw.Size < 0 {
			return jre.FileEntry{}, false, fmt.Errorf("negative size %d", raw.Size)
		}
		return jre.FileEntry{
			Path:       p,
			Kind:       jre.RegularFile,
			URL:        raw.URL,
			Digest:     digest,
			Size:       raw.Size,
			Executable: mf.Executable,
		}, true, nil

	default:
		return jre.FileEntry{}, false, nil
	}
}

// isLocalPath reports whether a forward-slash manifest path stays inside the root.
func isLocalPath(p string) bool {
	if p == "" || path.IsAbs(p) {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(p))
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, got %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func wrapDecode(source string, dec *json.Decoder, err error) error {
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	m := malformed(source, err).(*MalformedResponseError)
	if m.Offset == 0 {
		m.Offset = dec.InputOffset()
	}
	return m
}
