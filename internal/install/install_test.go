package install

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/fetch"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
)

func sha1Of(s string) []byte {
	sum := sha1.Sum([]byte(s))
	return sum[:]
}

func newTestEngine() *fetch.Engine {
	return fetch.NewEngine(fetch.Config{Retries: 1, RetryDelay: time.Millisecond, Parallelism: 4})
}

func serveFiles(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMaterialize(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks are skipped on windows")
	}

	server := serveFiles(t, map[string]string{
		"/java":    "hello world",
		"/license": "test",
	})

	entries := []jre.FileEntry{
		{Path: "bin", Kind: jre.Directory},
		{Path: "bin/java", Kind: jre.RegularFile, URL: server.URL + "/java", Digest: sha1Of("hello world"), Size: 11, Executable: true},
		{Path: "legal/java.base", Kind: jre.Directory},
		{Path: "legal/java.base/LICENSE", Kind: jre.SymbolicLink, LinkTarget: "../../LICENSE"},
		{Path: "LICENSE", Kind: jre.RegularFile, URL: server.URL + "/license", Digest: sha1Of("test"), Size: 4},
	}

	root := filepath.Join(t.TempDir(), "java-current")
	var lastDone, lastTotal int64
	summary, err := NewMaterializer(newTestEngine(), nil).Materialize(context.Background(), root, entries, func(done, total int64) {
		lastDone, lastTotal = done, total
	})
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}

	want := Summary{Directories: 2, Links: 1, Files: 2, Bytes: 15}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	if lastDone != 15 || lastTotal != 15 {
		t.Errorf("final progress = %d/%d, want 15/15", lastDone, lastTotal)
	}

	info, err := os.Stat(filepath.Join(root, "bin", "java"))
	if err != nil {
		t.Fatalf("stat java: %v", err)
	}
	if info.Mode().Perm()&0o111 != 0o111 {
		t.Errorf("java mode = %v, want execute bits", info.Mode())
	}

	licenseInfo, err := os.Stat(filepath.Join(root, "LICENSE"))
	if err != nil {
		t.Fatalf("stat LICENSE: %v", err)
	}
	if licenseInfo.Mode().Perm()&0o111 != 0 {
		t.Errorf("LICENSE mode = %v, want no execute bits", licenseInfo.Mode())
	}

	link := filepath.Join(root, "legal", "java.base", "LICENSE")
	target, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != filepath.FromSlash("../../LICENSE") {
		t.Errorf("link target = %s, want ../../LICENSE", target)
	}
	content, err := os.ReadFile(link)
	if err != nil {
		t.Fatalf("read through link: %v", err)
	}
	if string(content) != "test" {
		t.Errorf("content through link = %q, want test", content)
	}
}

func TestMaterializeReplacesExistingLink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks are skipped on windows")
	}

	root := t.TempDir()
	link := filepath.Join(root, "current")
	if err := os.Symlink("old", link); err != nil {
		t.Fatal(err)
	}

	entries := []jre.FileEntry{{Path: "current", Kind: jre.SymbolicLink, LinkTarget: "new"}}
	if _, err := NewMaterializer(&fakeBatch{}, nil).Materialize(context.Background(), root, entries, nil); err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}

	target, err := os.Readlink(link)
	if err != nil || target != "new" {
		t.Errorf("Readlink() = (%s, %v), want new", target, err)
	}
}

func TestMaterializeSkipsLinksWithoutSupport(t *testing.T) {
	m := NewMaterializer(&fakeBatch{}, nil)
	m.symlinks = false

	root := t.TempDir()
	entries := []jre.FileEntry{{Path: "a", Kind: jre.SymbolicLink, LinkTarget: "b"}}
	summary, err := m.Materialize(context.Background(), root, entries, nil)
	if err != nil {
		t.Fatalf("Materialize() error = %v", err)
	}
	if summary.SkippedLinks != 1 || summary.Links != 0 {
		t.Errorf("summary = %+v, want one skipped link", summary)
	}
	if _, err := os.Lstat(filepath.Join(root, "a")); !os.IsNotExist(err) {
		t.Error("link should not have been created")
	}
}

type fakeBatch struct {
	actions []fetch.Action
	err     error
}

func (f *fakeBatch) Batch(ctx context.Context, actions []fetch.Action, progress fetch.ProgressFunc) error {
	f.actions = actions
	return f.err
}

func TestMaterializeSubmitsOneBatch(t *testing.T) {
	batch := &fakeBatch{err: &fetch.DigestMismatchError{Path: "bin/java"}}
	entries := []jre.FileEntry{
		{Path: "bin", Kind: jre.Directory},
		{Path: "bin/java", Kind: jre.RegularFile, URL: "u1", Size: 1, Executable: true},
		{Path: "lib/rt.jar", Kind: jre.RegularFile, URL: "u2", Size: 2},
	}

	root := t.TempDir()
	_, err := NewMaterializer(batch, nil).Materialize(context.Background(), root, entries, nil)
	if !errors.Is(err, fetch.ErrIntegrity) {
		t.Errorf("error = %v, want integrity failure", err)
	}
	if len(batch.actions) != 2 {
		t.Fatalf("batch got %d actions, want 2", len(batch.actions))
	}
	if batch.actions[0].OnSuccess == nil || batch.actions[1].OnSuccess != nil {
		t.Error("only executable entries should have an OnSuccess hook")
	}
	if got := batch.actions[1].Path; got != filepath.Join(root, "lib", "rt.jar") {
		t.Errorf("action path = %s", got)
	}
}

func TestMaterializeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := &fakeBatch{}
	_, err := NewMaterializer(batch, nil).Materialize(ctx, t.TempDir(), []jre.FileEntry{{Path: "bin", Kind: jre.Directory}}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
	if batch.actions != nil {
		t.Error("batch should not be submitted after cancellation")
	}
}

type zipEntry struct {
	name string
	body string
	mode os.FileMode
}

func buildZip(t *testing.T, entries []zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		hdr.SetMode(e.mode)
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestArchiveInstall(t *testing.T) {
	const prefix = "zulu17.44.53-ca-jre17.0.8.1-linux_aarch64"
	entries := []zipEntry{
		{name: prefix + "/", mode: os.ModeDir | 0o755},
		{name: prefix + "/bin/", mode: os.ModeDir | 0o755},
		{name: prefix + "/bin/java", body: "#!java", mode: 0o755},
		{name: prefix + "/release", body: "JAVA_VERSION=17", mode: 0o644},
		{name: "stray.txt", body: "outside", mode: 0o644},
	}
	if runtime.GOOS != "windows" {
		entries = append(entries, zipEntry{name: prefix + "/bin/javaw", body: "java", mode: os.ModeSymlink | 0o777})
	}
	archive := buildZip(t, entries)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer server.Close()

	base := t.TempDir()
	scratch := filepath.Join(base, "temp")
	root := filepath.Join(base, "java", "java-current")
	installer := NewArchiveInstaller(newTestEngine(), scratch, nil)

	bundle := jre.Bundle{ArchiveURL: server.URL + "/zulu/bin/" + prefix + ".zip"}
	archivePath, err := installer.Fetch(context.Background(), "run-1", bundle, nil)
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if archivePath != installer.ScratchPath("run-1") {
		t.Errorf("archive path = %s, want %s", archivePath, installer.ScratchPath("run-1"))
	}
	n, err := installer.Extract(context.Background(), archivePath, bundle.TopLevelDir(), root)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if err := installer.Cleanup("run-1"); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if n < 3 {
		t.Errorf("extracted %d entries, want at least 3", n)
	}

	content, err := os.ReadFile(filepath.Join(root, "release"))
	if err != nil || string(content) != "JAVA_VERSION=17" {
		t.Errorf("release = (%q, %v)", content, err)
	}
	if runtime.GOOS != "windows" {
		info, err := os.Stat(filepath.Join(root, "bin", "java"))
		if err != nil {
			t.Fatalf("stat java: %v", err)
		}
		if info.Mode().Perm() != 0o755 {
			t.Errorf("java mode = %v, want 0755", info.Mode().Perm())
		}
		if target, err := os.Readlink(filepath.Join(root, "bin", "javaw")); err != nil || target != "java" {
			t.Errorf("javaw link = (%s, %v), want java", target, err)
		}
	}
	if _, err := os.Stat(filepath.Join(root, "stray.txt")); !os.IsNotExist(err) {
		t.Error("entries outside the prefix should be ignored")
	}
	if _, err := os.Stat(filepath.Join(root, prefix)); !os.IsNotExist(err) {
		t.Error("prefix directory should be stripped")
	}
	if _, err := os.Stat(installer.ScratchPath("run-1")); !os.IsNotExist(err) {
		t.Error("scratch file should be removed by Cleanup")
	}
}

func TestArchiveExtractRejectsTraversal(t *testing.T) {
	archive := buildZip(t, []zipEntry{
		{name: "jre/../../evil", body: "x", mode: 0o644},
	})
	path := filepath.Join(t.TempDir(), "a.zip")
	if err := os.WriteFile(path, archive, 0o644); err != nil {
		t.Fatal(err)
	}

	root := filepath.Join(t.TempDir(), "out")
	_, err := NewArchiveInstaller(nil, t.TempDir(), nil).Extract(context.Background(), path, "jre", root)
	if err == nil {
		t.Fatal("expected error for path traversal")
	}
}

func TestArchiveExtractEmptyPrefix(t *testing.T) {
	archive := buildZip(t, []zipEntry{{name: "other/file", body: "x", mode: 0o644}})
	path := filepath.Join(t.TempDir(), "a.zip")
	if err := os.WriteFile(path, archive, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := NewArchiveInstaller(nil, t.TempDir(), nil).Extract(context.Background(), path, "jre", t.TempDir())
	if err == nil {
		t.Fatal("expected error when nothing is under the prefix")
	}
}

func TestArchiveFetchFailureRemovesScratch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	installer := NewArchiveInstaller(newTestEngine(), t.TempDir(), nil)
	_, err := installer.Fetch(context.Background(), "run-2", jre.Bundle{ArchiveURL: server.URL + "/x.zip"}, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, statErr := os.Stat(installer.ScratchPath("run-2")); !os.IsNotExist(statErr) {
		t.Error("scratch file should be removed after a failed download")
	}
}

func TestArchiveFetchScratchIsExclusive(t *testing.T) {
	dir := t.TempDir()
	installer := NewArchiveInstaller(newTestEngine(), dir, nil)
	if err := os.WriteFile(installer.ScratchPath("dup"), nil, 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := installer.Fetch(context.Background(), "dup", jre.Bundle{ArchiveURL: "http://127.0.0.1:0/x.zip"}, nil)
	var fsErr *jre.FSError
	if !errors.As(err, &fsErr) {
		t.Errorf("error = %v, want FSError for an existing scratch file", err)
	}
}

func TestStripPrefix(t *testing.T) {
	tests := []struct {
		name   string
		want   string
		wantOK bool
	}{
		{"jre/", "", true},
		{"jre", "", true},
		{"jre/bin/", "bin", true},
		{"jre/bin/java", "bin/java", true},
		{"./jre/lib", "lib", true},
		{"jre2/lib", "", false},
		{"other/jre/lib", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := stripPrefix(tt.name, "jre")
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("stripPrefix(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}
