package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	jujuerrors "github.com/juju/errors"
	"gopkg.in/tomb.v2"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/fetch"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/install"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/logging"
)

const (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = jujuerrors.ConstError("pipeline already started")
	// ErrUnmappedPlatform means the secondary provider has no tokens for the platform.
	ErrUnmappedPlatform = jujuerrors.ConstError("platform is not supported by the fallback provider")
	// ErrAborted is the Result error of a cancelled run.
	ErrAborted = jujuerrors.ConstError("acquisition aborted")
)

// PrimaryResolver looks up per-file manifests. *provider.PrimaryResolver implements it.
type PrimaryResolver interface {
	Resolve(ctx context.Context, platformID string, channel jre.Channel) (string, bool, error)
	FileList(ctx context.Context, manifestURL string) ([]jre.FileEntry, error)
}

// FallbackResolver picks an archive bundle. *provider.FallbackResolver implements it.
type FallbackResolver interface {
	Resolve(ctx context.Context, tokens jre.PlatformTokens, javaVersion string) (jre.Bundle, error)
}

// Materializer writes a file list to disk. *install.Materializer implements it.
type Materializer interface {
	Materialize(ctx context.Context, root string, entries []jre.FileEntry, progress fetch.ProgressFunc) (install.Summary, error)
}

// ArchiveInstaller downloads and unpacks bundles. *install.ArchiveInstaller implements it.
type ArchiveInstaller interface {
	Fetch(ctx context.Context, runID string, bundle jre.Bundle, progress fetch.ProgressFunc) (string, error)
	Extract(ctx context.Context, archivePath, prefix, root string) (int, error)
	Cleanup(runID string) error
}

// Options wires a pipeline to its collaborators.
type Options struct {
	Primary      PrimaryResolver
	Fallback     FallbackResolver
	Materializer Materializer
	Archives     ArchiveInstaller

	// InstallRoot is the directory that holds java/java-legacy and java/java-current.
	InstallRoot string

	Logger   logging.Logger
	Listener Listener
}

// Result is the terminal outcome of a run.
type Result struct {
	State State
	// Err is nil on success, ErrAborted after Abort, otherwise the failure.
	Err   error
	RunID string
}

// Pipeline acquires one runtime. A Pipeline runs at most once.
type Pipeline struct {
	opts   Options
	logger logging.Logger

	tomb tomb.Tomb
	done chan struct{}

	mu      sync.Mutex
	started bool
	state   State
	result  Result

	// Owned by the run goroutine.
	req        jre.Request
	runID      string
	createdDir string
	progress   chan Progress
}

// New validates opts and returns an idle pipeline.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Primary == nil:
		return nil, jujuerrors.NotValidf("pipeline without primary resolver")
	case opts.Fallback == nil:
		return nil, jujuerrors.NotValidf("pipeline without fallback resolver")
	case opts.Materializer == nil:
		return nil, jujuerrors.NotValidf("pipeline without materializer")
	case opts.Archives == nil:
		return nil, jujuerrors.NotValidf("pipeline without archive installer")
	case opts.InstallRoot == "":
		return nil, jujuerrors.NotValidf("empty install root")
	}
	return &Pipeline{
		opts:     opts,
		logger:   logging.OrNop(opts.Logger),
		done:     make(chan struct{}),
		state:    Idle,
		progress: make(chan Progress),
	}, nil
}

// Start begins the run in the background.
func (p *Pipeline) Start(req jre.Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return ErrAlreadyStarted
	}
	p.started = true
	p.req = req
	p.runID = uuid.NewString()
	p.result.RunID = p.runID

	p.tomb.Go(p.loop)
	return nil
}

// Abort cancels the run. The active batch stops starting transfers and the
// install directory created by this run is removed. Abort is a no-op once
// the run has ended.
func (p *Pipeline) Abort() {
	p.tomb.Kill(nil)
}

// Wait blocks until the run reaches a terminal state. It returns at once with
// State Idle if the pipeline was never started.
func (p *Pipeline) Wait() Result {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()
	if !started {
		return Result{State: Idle}
	}

	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.result
}

// State returns the current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// InstallDir returns the directory the request installs into.
func (p *Pipeline) InstallDir(channel jre.Channel) string {
	return filepath.Join(p.opts.InstallRoot, "java", channel.DirName())
}

func (p *Pipeline) loop() error {
	defer close(p.done)

	ctx := p.tomb.Context(context.Background())
	p.logger.Info("acquisition started", "run", p.runID, "platform", p.req.PlatformID, "channel", p.req.Channel)

	err := p.run(ctx)
	p.finish(err)
	return nil
}

func (p *Pipeline) run(ctx context.Context) error {
	if err := p.transition(QueryingManifest); err != nil {
		return err
	}

	var (
		manifestURL string
		found       bool
	)
	err := p.stage(func(progress fetch.ProgressFunc) error {
		var err error
		manifestURL, found, err = p.opts.Primary.Resolve(ctx, p.req.PlatformID, p.req.Channel)
		return err
	})
	if err != nil {
		return fmt.Errorf("query runtime manifest: %w", err)
	}

	if found {
		return p.runPrimary(ctx, manifestURL)
	}
	return p.runFallback(ctx)
}

func (p *Pipeline) runPrimary(ctx context.Context, manifestURL string) error {
	if err := p.transition(MaterializingFiles); err != nil {
		return err
	}
	root, err := p.claimInstallDir()
	if err != nil {
		return err
	}

	err = p.stage(func(progress fetch.ProgressFunc) error {
		entries, err := p.opts.Primary.FileList(ctx, manifestURL)
		if err != nil {
			return fmt.Errorf("fetch runtime file list: %w", err)
		}
		summary, err := p.opts.Materializer.Materialize(ctx, root, entries, progress)
		if err != nil {
			return err
		}
		p.logger.Info("runtime files materialized",
			"run", p.runID, "files", summary.Files, "directories", summary.Directories,
			"links", summary.Links, "skipped_links", summary.SkippedLinks)
		return nil
	})
	if err != nil {
		return err
	}
	return p.transition(Succeeded)
}

func (p *Pipeline) runFallback(ctx context.Context) error {
	if err := p.transition(QueryingFallback); err != nil {
		return err
	}
	p.logger.Info("no manifest from primary provider, trying fallback", "run", p.runID, "platform", p.req.PlatformID)

	tokens, ok := jre.MapPlatform(p.req.PlatformID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnmappedPlatform, p.req.PlatformID)
	}

	var bundle jre.Bundle
	err := p.stage(func(progress fetch.ProgressFunc) error {
		var err error
		bundle, err = p.opts.Fallback.Resolve(ctx, tokens, p.req.Channel.FallbackVersion())
		return err
	})
	if err != nil {
		return fmt.Errorf("query fallback provider: %w", err)
	}

	if err := p.transition(DownloadingArchive); err != nil {
		return err
	}
	// The scratch archive never outlives the run, whatever the outcome.
	defer p.removeScratch()
	var archivePath string
	err = p.stage(func(progress fetch.ProgressFunc) error {
		var err error
		archivePath, err = p.opts.Archives.Fetch(ctx, p.runID, bundle, progress)
		return err
	})
	if err != nil {
		return err
	}

	if err := p.transition(Extracting); err != nil {
		return err
	}
	root, err := p.claimInstallDir()
	if err != nil {
		return err
	}
	err = p.stage(func(progress fetch.ProgressFunc) error {
		n, err := p.opts.Archives.Extract(ctx, archivePath, bundle.TopLevelDir(), root)
		if err != nil {
			return fmt.Errorf("extract runtime archive: %w", err)
		}
		p.logger.Info("runtime archive extracted", "run", p.runID, "entries", n)
		return nil
	})
	if err != nil {
		return err
	}
	return p.transition(Succeeded)
}

// stage runs fn on its own goroutine and relays its progress to the listener
// until fn reports back. Once the run is dying the stage's result is still
// awaited so compensation never races its writes.
func (p *Pipeline) stage(fn func(progress fetch.ProgressFunc) error) error {
	result := make(chan error, 1)
	stop := p.tomb.Dying()
	go func() {
		result <- fn(func(done, total int64) {
			select {
			case p.progress <- Progress{Completed: done, Total: total}:
			case <-stop:
			}
		})
	}()

	dying := p.tomb.Dying()

	for {
		select {
		case err := <-result:
			if err != nil && p.aborting() {
				return ErrAborted
			}
			return err
		case pr := <-p.progress:
			p.emit(Event{Type: EventProgress, Progress: &pr})
		case <-dying:
			// Stop relaying; the progress callback gives up once dying is closed.
			dying = nil
		}
	}
}

func (p *Pipeline) aborting() bool {
	select {
	case <-p.tomb.Dying():
		return true
	default:
		return false
	}
}

// claimInstallDir creates the run's install directory. Only a directory
// created here is removed by compensation.
func (p *Pipeline) claimInstallDir() (string, error) {
	root := p.InstallDir(p.req.Channel)
	parent := filepath.Dir(root)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return "", &jre.FSError{Op: "create directory", Path: parent, Err: err}
	}

	err := os.Mkdir(root, 0o755)
	switch {
	case err == nil:
		p.createdDir = root
	case errors.Is(err, os.ErrExist):
		p.logger.Warn("install directory already exists, leaving it in place on failure", "path", root)
	default:
		return "", &jre.FSError{Op: "create directory", Path: root, Err: err}
	}
	return root, nil
}

func (p *Pipeline) removeScratch() {
	if err := p.opts.Archives.Cleanup(p.runID); err != nil {
		p.logger.Warn("failed to remove scratch archive", "run", p.runID, "error", err)
	}
}

func (p *Pipeline) compensate() {
	if p.createdDir != "" {
		if err := os.RemoveAll(p.createdDir); err != nil {
			p.logger.Warn("failed to remove install directory", "path", p.createdDir, "error", err)
			return
		}
		p.logger.Info("removed install directory", "path", p.createdDir)
	}
}

func (p *Pipeline) finish(err error) {
	var (
		terminal State
		event    Event
	)
	switch {
	case err == nil:
		terminal = Succeeded
		event = Event{Type: EventSucceeded}
	case errors.Is(err, ErrAborted) || (p.aborting() && errors.Is(err, context.Canceled)):
		err = ErrAborted
		terminal = Aborted
		event = Event{Type: EventAborted}
	default:
		terminal = Failed
		event = Event{Type: EventFailed, Reason: err.Error()}
	}

	if terminal != Succeeded {
		p.compensate()
		if cur := p.State(); !cur.IsTerminal() {
			p.setState(terminal)
		}
		if terminal == Aborted {
			p.logger.Warn("acquisition aborted", "run", p.runID)
		} else {
			p.logger.Error("acquisition failed", "run", p.runID, "error", err)
		}
	} else {
		p.logger.Info("acquisition succeeded", "run", p.runID, "dir", p.InstallDir(p.req.Channel))
	}

	p.mu.Lock()
	p.result.State = terminal
	p.result.Err = err
	p.mu.Unlock()

	p.emit(event)
}

// transition moves the run to the next state and reports it.
func (p *Pipeline) transition(to State) error {
	from := p.State()
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	p.setState(to)
	p.logger.Debug("state changed", "run", p.runID, "from", from, "to", to)
	return nil
}

func (p *Pipeline) setState(to State) {
	p.mu.Lock()
	from := p.state
	p.state = to
	p.mu.Unlock()
	p.emit(Event{Type: EventState, From: from, To: to})
}

func (p *Pipeline) emit(e Event) {
	if p.opts.Listener != nil {
		p.opts.Listener(e)
	}
}
