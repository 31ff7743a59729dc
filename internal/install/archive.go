package install

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mholt/archiver"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/fetch"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/logging"
)

// FileDownloader performs a single transfer. *fetch.Engine implements it.
type FileDownloader interface {
	Download(ctx context.Context, a fetch.Action, progress fetch.ProgressFunc) error
}

// ArchiveInstaller downloads a secondary provider bundle to a scratch file
// and unpacks it into an install directory.
type ArchiveInstaller struct {
	engine     FileDownloader
	scratchDir string
	logger     logging.Logger
	symlinks   bool
}

// NewArchiveInstaller creates an installer that keeps scratch archives in scratchDir.
func NewArchiveInstaller(engine FileDownloader, scratchDir string, logger logging.Logger) *ArchiveInstaller {
	return &ArchiveInstaller{
		engine:     engine,
		scratchDir: scratchDir,
		logger:     logging.OrNop(logger),
		symlinks:   runtime.GOOS != "windows",
	}
}

// ScratchPath returns the scratch file a run downloads its archive to.
func (a *ArchiveInstaller) ScratchPath(runID string) string {
	return filepath.Join(a.scratchDir, runID+".zip")
}

// Fetch reserves the run's scratch file and downloads the bundle into it.
// The name is claimed exclusively so two runs never share a scratch file.
func (a *ArchiveInstaller) Fetch(ctx context.Context, runID string, bundle jre.Bundle, progress fetch.ProgressFunc) (string, error) {
	if err := os.MkdirAll(a.scratchDir, 0o755); err != nil {
		return "", &jre.FSError{Op: "create directory", Path: a.scratchDir, Err: err}
	}

	scratch := a.ScratchPath(runID)
	f, err := os.OpenFile(scratch, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", &jre.FSError{Op: "create scratch file", Path: scratch, Err: err}
	}
	f.Close()

	a.logger.Info("downloading runtime archive", "url", bundle.ArchiveURL, "scratch", scratch)
	if err := a.engine.Download(ctx, fetch.Action{URL: bundle.ArchiveURL, Path: scratch}, progress); err != nil {
		os.Remove(scratch)
		return "", fmt.Errorf("download runtime archive: %w", err)
	}
	return scratch, nil
}

// Cleanup removes the run's scratch file if it exists.
func (a *ArchiveInstaller) Cleanup(runID string) error {
	scratch := a.ScratchPath(runID)
	for _, p := range []string{scratch, scratch + ".part"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return &jre.FSError{Op: "remove scratch file", Path: p, Err: err}
		}
	}
	return nil
}

// Extract unpacks every entry below prefix/ in the zip at archivePath into
// root, dropping the prefix. Entries outside prefix are ignored. It returns
// the number of entries written.
func (a *ArchiveInstaller) Extract(ctx context.Context, archivePath, prefix, root string) (int, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return 0, &jre.FSError{Op: "create directory", Path: root, Err: err}
	}
	cleanRoot := filepath.Clean(root)

	count := 0
	var walkErr error
	err := archiver.NewZip().Walk(archivePath, func(f archiver.File) error {
		if err := ctx.Err(); err != nil {
			walkErr = err
			return err
		}

		header, ok := f.Header.(zip.FileHeader)
		if !ok {
			walkErr = fmt.Errorf("unexpected zip header type %T", f.Header)
			return walkErr
		}

		rel, ok := stripPrefix(header.Name, prefix)
		if !ok || rel == "" {
			return nil
		}

		// Security check: prevent path traversal
		target := filepath.Join(cleanRoot, filepath.FromSlash(rel))
		if !strings.HasPrefix(target, cleanRoot+string(os.PathSeparator)) {
			walkErr = fmt.Errorf("illegal file path: %s", header.Name)
			return walkErr
		}

		if err := a.extractEntry(f, rel, target, cleanRoot); err != nil {
			walkErr = err
			return err
		}
		count++
		return nil
	})
	if walkErr != nil {
		return count, walkErr
	}
	if err != nil {
		return count, fmt.Errorf("read archive: %w", err)
	}
	if count == 0 {
		return 0, fmt.Errorf("archive has no entries under %s/", prefix)
	}

	a.logger.Info("extracted runtime archive", "entries", count, "root", root)
	return count, nil
}

func (a *ArchiveInstaller) extractEntry(f archiver.File, rel, target, root string) error {
	switch {
	case f.IsDir():
		if err := os.MkdirAll(target, 0o755); err != nil {
			return &jre.FSError{Op: "create directory", Path: target, Err: err}
		}

	case f.Mode()&os.ModeSymlink != 0:
		if !a.symlinks {
			a.logger.Warn("symbolic links unsupported, skipping", "path", rel)
			return nil
		}
		linkTarget, err := io.ReadAll(f)
		if err != nil {
			return fmt.Errorf("read link %s: %w", rel, err)
		}
		resolved := path.Join(path.Dir(rel), string(linkTarget))
		if path.IsAbs(string(linkTarget)) || !filepath.IsLocal(filepath.FromSlash(resolved)) {
			return fmt.Errorf("illegal link target %q for %s", linkTarget, rel)
		}
		if err := replaceSymlink(target, filepath.FromSlash(string(linkTarget))); err != nil {
			return err
		}

	default:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return &jre.FSError{Op: "create directory", Path: filepath.Dir(target), Err: err}
		}
		perm := f.Mode().Perm()
		if perm == 0 {
			perm = 0o644
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
		if err != nil {
			return &jre.FSError{Op: "create file", Path: target, Err: err}
		}
		if _, err := io.Copy(out, f); err != nil {
			out.Close()
			return fmt.Errorf("write file %s: %w", target, err)
		}
		if err := out.Close(); err != nil {
			return &jre.FSError{Op: "close file", Path: target, Err: err}
		}
		// OpenFile honours the umask; restore the archived bits.
		if err := os.Chmod(target, perm); err != nil {
			return &jre.FSError{Op: "chmod", Path: target, Err: err}
		}
	}
	return nil
}

// stripPrefix returns name relative to prefix/, and false when name is not
// under prefix.
func stripPrefix(name, prefix string) (string, bool) {
	name = strings.TrimPrefix(name, "./")
	if name == prefix || name == prefix+"/" {
		return "", true
	}
	if !strings.HasPrefix(name, prefix+"/") {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(name, prefix+"/"), "/"), true
}
