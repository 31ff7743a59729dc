package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/fetch"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/logging"
)

// BatchDownloader runs one concurrent batch of transfers. *fetch.Engine implements it.
type BatchDownloader interface {
	Batch(ctx context.Context, actions []fetch.Action, progress fetch.ProgressFunc) error
}

// Summary counts what a materialization produced.
type Summary struct {
	Directories  int
	Links        int
	SkippedLinks int
	Files        int
	Bytes        int64
}

// Materializer turns a primary provider file list into files on disk.
type Materializer struct {
	engine   BatchDownloader
	logger   logging.Logger
	symlinks bool
}

// NewMaterializer creates a materializer. Links are skipped on Windows.
func NewMaterializer(engine BatchDownloader, logger logging.Logger) *Materializer {
	return &Materializer{
		engine:   engine,
		logger:   logging.OrNop(logger),
		symlinks: runtime.GOOS != "windows",
	}
}

// Materialize creates directories and links in document order, then downloads
// every regular file in a single batch. Executable files get the execute bits
// added once their digest has been verified.
func (m *Materializer) Materialize(ctx context.Context, root string, entries []jre.FileEntry, progress fetch.ProgressFunc) (Summary, error) {
	var s Summary
	if err := os.MkdirAll(root, 0o755); err != nil {
		return s, &jre.FSError{Op: "create directory", Path: root, Err: err}
	}

	var actions []fetch.Action
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return s, err
		}
		target := filepath.Join(root, filepath.FromSlash(e.Path))

		switch e.Kind {
		case jre.Directory:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return s, &jre.FSError{Op: "create directory", Path: target, Err: err}
			}
			s.Directories++

		case jre.SymbolicLink:
			if !m.symlinks {
				m.logger.Warn("symbolic links unsupported, skipping", "path", e.Path, "target", e.LinkTarget)
				s.SkippedLinks++
				continue
			}
			if err := replaceSymlink(target, filepath.FromSlash(e.LinkTarget)); err != nil {
				return s, err
			}
			s.Links++

		case jre.RegularFile:
			a := fetch.Action{
				URL:    e.URL,
				Path:   target,
				Digest: e.Digest,
				Size:   e.Size,
			}
			if e.Executable {
				a.OnSuccess = markExecutable
			}
			actions = append(actions, a)
			s.Files++
			s.Bytes += e.Size
		}
	}

	m.logger.Info("downloading runtime files", "files", s.Files, "bytes", s.Bytes)
	if err := m.engine.Batch(ctx, actions, progress); err != nil {
		return s, fmt.Errorf("download runtime files: %w", err)
	}
	return s, nil
}

// replaceSymlink creates link pointing at target, which is relative to the
// link's own directory. Anything already at link is removed first.
func replaceSymlink(link, target string) error {
	if err := os.MkdirAll(filepath.Dir(link), 0o755); err != nil {
		return &jre.FSError{Op: "create directory", Path: filepath.Dir(link), Err: err}
	}
	if _, err := os.Lstat(link); err == nil {
		if err := os.Remove(link); err != nil {
			return &jre.FSError{Op: "remove existing", Path: link, Err: err}
		}
	}
	if err := os.Symlink(target, link); err != nil {
		return &jre.FSError{Op: "create symlink", Path: link, Err: err}
	}
	return nil
}

// markExecutable adds the execute bits to the file's current permissions.
func markExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &jre.FSError{Op: "stat", Path: path, Err: err}
	}
	if err := os.Chmod(path, info.Mode().Perm()|0o111); err != nil {
		return &jre.FSError{Op: "set executable", Path: path, Err: err}
	}
	return nil
}
