package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	jujuerrors "github.com/juju/errors"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/fetch"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
)

// fakeFetcher serves canned documents keyed by URL.
type fakeFetcher struct {
	docs      map[string]string
	err       error
	requested []string
}

func (f *fakeFetcher) Get(ctx context.Context, u string, progress fetch.ProgressFunc) ([]byte, error) {
	f.requested = append(f.requested, u)
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[u]
	if !ok {
		return nil, &fetch.StatusError{URL: u, StatusCode: http.StatusNotFound}
	}
	return []byte(doc), nil
}

const testIndexURL = "https://meta.example/all.json"

const testIndex = `{
  "linux": {
    "java-runtime-gamma": [
      {"availability": {"group": 1, "progress": 100}, "manifest": {"sha1": "x", "size": 1, "url": "https://meta.example/gamma-linux.json"}},
      {"manifest": {"url": "https://meta.example/second.json"}}
    ],
    "jre-legacy": [
      {"manifest": {"url": "https://meta.example/legacy-linux.json"}}
    ]
  },
  "linux-arm64": {
    "java-runtime-gamma": [],
    "jre-legacy": []
  },
  "mac-os": {
    "java-runtime-gamma": [{"manifest": {}}]
  }
}`

func TestPrimaryResolverResolve(t *testing.T) {
	tests := []struct {
		name      string
		platform  string
		channel   jre.Channel
		index     string
		wantURL   string
		wantFound bool
		wantErr   bool
	}{
		{"first candidate wins", "linux", jre.Current, testIndex, "https://meta.example/gamma-linux.json", true, false},
		{"legacy key", "linux", jre.Legacy, testIndex, "https://meta.example/legacy-linux.json", true, false},
		{"empty candidate list", "linux-arm64", jre.Current, testIndex, "", false, false},
		{"missing channel key", "mac-os", jre.Legacy, testIndex, "", false, false},
		{"missing platform", "windows-x64", jre.Current, testIndex, "", false, false},
		{"candidate without url", "mac-os", jre.Current, testIndex, "", false, true},
		{"not json", "linux", jre.Current, `<html>`, "", false, true},
		{"truncated", "linux", jre.Current, `{"linux": {"jre-legacy": [`, "", false, true},
		{"top level array", "linux", jre.Current, `[]`, "", false, true},
		{"top level null", "linux", jre.Current, `null`, "", false, true},
		{"channel not an array", "linux", jre.Current, `{"linux": {"java-runtime-gamma": 5}}`, "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeFetcher{docs: map[string]string{testIndexURL: tt.index}}
			r := NewPrimaryResolver(f, testIndexURL, nil)

			got, found, err := r.Resolve(context.Background(), tt.platform, tt.channel)
			if tt.wantErr {
				var malformedErr *MalformedResponseError
				if !errors.As(err, &malformedErr) {
					t.Fatalf("error = %v, want MalformedResponseError", err)
				}
				if !errors.Is(err, jujuerrors.NotValid) {
					t.Error("malformed response should match errors.NotValid")
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if found != tt.wantFound || got != tt.wantURL {
				t.Errorf("Resolve() = (%q, %v), want (%q, %v)", got, found, tt.wantURL, tt.wantFound)
			}
		})
	}
}

func TestPrimaryResolverTransportError(t *testing.T) {
	f := &fakeFetcher{err: errors.New("connection refused")}
	r := NewPrimaryResolver(f, testIndexURL, nil)

	_, _, err := r.Resolve(context.Background(), "linux", jre.Current)
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("error = %v, want transport error", err)
	}
}

func TestPrimaryResolverDefaultIndex(t *testing.T) {
	r := NewPrimaryResolver(&fakeFetcher{}, "", nil)
	if r.indexURL != DefaultPrimaryIndexURL {
		t.Errorf("indexURL = %s, want default", r.indexURL)
	}
}

const testManifest = `{
  "files": {
    "bin": {"type": "directory"},
    "bin/java": {
      "type": "file",
      "executable": true,
      "downloads": {
        "lzma": {"sha1": "ffffffffffffffffffffffffffffffffffffffff", "size": 3, "url": "https://cdn.example/java.lzma"},
        "raw": {"sha1": "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed", "size": 11, "url": "https://cdn.example/java"}
      }
    },
    "legal": {"type": "directory"},
    "legal/LICENSE": {"type": "link", "target": "../LICENSE"},
    "LICENSE": {
      "type": "file",
      "executable": false,
      "downloads": {"raw": {"sha1": "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3", "size": 4, "url": "https://cdn.example/license"}}
    },
    "lib/weird": {"type": "fifo"}
  }
}`

func TestPrimaryResolverFileList(t *testing.T) {
	const manifestURL = "https://meta.example/gamma-linux.json"
	f := &fakeFetcher{docs: map[string]string{manifestURL: testManifest}}
	r := NewPrimaryResolver(f, testIndexURL, nil)

	entries, err := r.FileList(context.Background(), manifestURL)
	if err != nil {
		t.Fatalf("FileList() error = %v", err)
	}

	want := []struct {
		path string
		kind jre.EntryKind
	}{
		{"bin", jre.Directory},
		{"bin/java", jre.RegularFile},
		{"legal", jre.Directory},
		{"legal/LICENSE", jre.SymbolicLink},
		{"LICENSE", jre.RegularFile},
	}
	if len(entries) != len(want) {
		t.Fatalf("got %d entries, want %d: %+v", len(entries), len(want), entries)
	}
	for i, w := range want {
		if entries[i].Path != w.path || entries[i].Kind != w.kind {
			t.Errorf("entries[%d] = %s (%s), want %s (%s)", i, entries[i].Path, entries[i].Kind, w.path, w.kind)
		}
	}

	java := entries[1]
	if java.URL != "https://cdn.example/java" {
		t.Errorf("java URL = %s, want raw download url", java.URL)
	}
	if !java.Executable || java.Size != 11 || len(java.Digest) != 20 {
		t.Errorf("java entry = %+v", java)
	}
	if fmt.Sprintf("%x", java.Digest) != "2aae6c35c94fcfb415dbe95f408b9ce91ee846ed" {
		t.Errorf("java digest = %x", java.Digest)
	}
	if entries[3].LinkTarget != "../LICENSE" {
		t.Errorf("link target = %s, want ../LICENSE", entries[3].LinkTarget)
	}
}

func TestParseFileListRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no files object", `{"other": 1}`},
		{"files not object", `{"files": []}`},
		{"absolute path", `{"files": {"/etc/passwd": {"type": "directory"}}}`},
		{"parent path", `{"files": {"../escape": {"type": "directory"}}}`},
		{"link escapes root", `{"files": {"bin/x": {"type": "link", "target": "../../etc"}}}`},
		{"link without target", `{"files": {"bin/x": {"type": "link"}}}`},
		{"file without raw", `{"files": {"a": {"type": "file", "downloads": {}}}}`},
		{"file bad sha1", `{"files": {"a": {"type": "file", "downloads": {"raw": {"url": "u", "sha1": "zz"}}}}}`},
		{"file short sha1", `{"files": {"a": {"type": "file", "downloads": {"raw": {"url": "u", "sha1": "abcd"}}}}}`},
		{"truncated", `{"files": {"a": {"type": "dir`},
		{"empty", ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := parseFileList([]byte(tt.doc), "test")
			var malformedErr *MalformedResponseError
			if !errors.As(err, &malformedErr) {
				t.Errorf("error = %v, want MalformedResponseError", err)
			}
		})
	}
}

func TestParseFileListReportsSkipped(t *testing.T) {
	entries, skipped, err := parseFileList([]byte(`{"files": {"a": {"type": "socket"}, "b": {"type": "directory"}}}`), "test")
	if err != nil {
		t.Fatalf("parseFileList() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "b" {
		t.Errorf("entries = %+v, want only b", entries)
	}
	if len(skipped) != 1 || skipped[0].path != "a" || skipped[0].kind != "socket" {
		t.Errorf("skipped = %+v", skipped)
	}
}

func TestFallbackResolverQueryURL(t *testing.T) {
	r := NewFallbackResolver(&fakeFetcher{}, "", nil)
	got, err := r.QueryURL(jre.PlatformTokens{OS: "linux", Arch: "arm", Bitness: "64"}, "17.0")
	if err != nil {
		t.Fatalf("QueryURL() error = %v", err)
	}

	u, err := url.Parse(got)
	if err != nil {
		t.Fatalf("parse %s: %v", got, err)
	}
	if u.Host != "api.azul.com" {
		t.Errorf("host = %s, want api.azul.com", u.Host)
	}
	want := map[string]string{
		"java_version": "17.0",
		"os":           "linux",
		"arch":         "arm",
		"hw_bitness":   "64",
		"ext":          "zip",
		"bundle_type":  "jre",
		"latest":       "true",
	}
	for k, v := range want {
		if got := u.Query().Get(k); got != v {
			t.Errorf("query %s = %q, want %q", k, got, v)
		}
	}
}

func TestFallbackResolverResolve(t *testing.T) {
	tokens := jre.PlatformTokens{OS: "linux", Arch: "arm", Bitness: "64"}

	tests := []struct {
		name       string
		body       string
		wantURL    string
		wantNone   bool
		wantFormat bool
	}{
		{
			name:    "first bundle wins",
			body:    `[{"id": 1, "url": "https://cdn.azul.com/zulu17-linux_aarch64.zip"}, {"url": "https://cdn.azul.com/other.zip"}]`,
			wantURL: "https://cdn.azul.com/zulu17-linux_aarch64.zip",
		},
		{name: "empty list", body: `[]`, wantNone: true},
		{name: "not json", body: `oops`, wantFormat: true},
		{name: "object instead of array", body: `{"url": "x"}`, wantFormat: true},
		{name: "bundle without url", body: `[{"id": 3}]`, wantFormat: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewFallbackResolver(nil, "", nil)
			queryURL, err := r.QueryURL(tokens, "17.0")
			if err != nil {
				t.Fatal(err)
			}
			r.fetcher = &fakeFetcher{docs: map[string]string{queryURL: tt.body}}

			bundle, err := r.Resolve(context.Background(), tokens, "17.0")
			switch {
			case tt.wantNone:
				if !errors.Is(err, ErrNoRuntime) {
					t.Fatalf("error = %v, want ErrNoRuntime", err)
				}
				if !strings.Contains(err.Error(), "no suitable runtime found") {
					t.Errorf("error text = %q", err.Error())
				}
			case tt.wantFormat:
				var malformedErr *MalformedResponseError
				if !errors.As(err, &malformedErr) {
					t.Errorf("error = %v, want MalformedResponseError", err)
				}
			default:
				if err != nil {
					t.Fatalf("Resolve() error = %v", err)
				}
				if bundle.ArchiveURL != tt.wantURL {
					t.Errorf("ArchiveURL = %s, want %s", bundle.ArchiveURL, tt.wantURL)
				}
			}
		})
	}
}

func TestResolversOverHTTP(t *testing.T) {
	mux := http.NewServeMux()
	var server *httptest.Server
	mux.HandleFunc("/all.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"linux": {"java-runtime-gamma": [{"manifest": {"url": "%s/manifest.json"}}]}}`, server.URL)
	})
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"files": {"release": {"type": "file", "downloads": {"raw": {"url": "x", "sha1": "a94a8fe5ccb19ba61c4c0873d391e987982fbbd3", "size": 4}}}}}`)
	})
	mux.HandleFunc("/bundles/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("java_version") != "8.0" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `[]`)
	})
	server = httptest.NewServer(mux)
	defer server.Close()

	engine := fetch.NewEngine(fetch.Config{RetryDelay: time.Millisecond})
	primary := NewPrimaryResolver(engine, server.URL+"/all.json", nil)

	manifestURL, found, err := primary.Resolve(context.Background(), "linux", jre.Current)
	if err != nil || !found {
		t.Fatalf("Resolve() = (%q, %v, %v)", manifestURL, found, err)
	}
	entries, err := primary.FileList(context.Background(), manifestURL)
	if err != nil {
		t.Fatalf("FileList() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Path != "release" {
		t.Errorf("entries = %+v", entries)
	}

	fallback := NewFallbackResolver(engine, server.URL+"/bundles/", nil)
	_, err = fallback.Resolve(context.Background(), jre.PlatformTokens{OS: "linux", Arch: "x86", Bitness: "64"}, "8.0")
	if !errors.Is(err, ErrNoRuntime) {
		t.Errorf("error = %v, want ErrNoRuntime", err)
	}
}
