package fetch

import (
	"bytes"
	"context"
	"crypto/sha1"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"golang.org/x/sync/errgroup"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/logging"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 5 * time.Minute
	// DefaultRetries is the default number of retries after a failed attempt
	DefaultRetries = 3
	// DefaultRetryDelay is the delay before the first retry; it doubles after that
	DefaultRetryDelay = time.Second
	// DefaultParallelism bounds concurrent transfers within a batch
	DefaultParallelism = 8
	// DefaultUserAgent is the User-Agent header sent with requests
	DefaultUserAgent = "jrefetch/1.0"
	// MaxDocumentSize caps the body Get will buffer in memory
	MaxDocumentSize = 32 << 20
)

// Config configures an Engine. Zero values select the defaults above,
// except Retries which is taken literally.
type Config struct {
	Client      *http.Client
	UserAgent   string
	Retries     int
	RetryDelay  time.Duration
	Parallelism int
	Clock       clock.Clock
	Logger      logging.Logger
	Metrics     *Metrics
}

// Action describes one file transfer: fetch URL into Path and, when Digest
// is set, verify the payload before it becomes visible at Path.
type Action struct {
	URL    string
	Path   string
	Digest []byte
	// NewHash builds the digest hash. SHA-1 is used when nil.
	NewHash func() hash.Hash
	// Size is the declared length, used for progress totals. Zero means unknown.
	Size int64
	// OnSuccess runs after the verified file has been renamed into place.
	OnSuccess func(path string) error
}

// Engine performs HTTP transfers with retry, digest validation and bounded
// batch concurrency.
type Engine struct {
	client      *http.Client
	userAgent   string
	retries     int
	retryDelay  time.Duration
	parallelism int
	clock       clock.Clock
	logger      logging.Logger
	metrics     *Metrics
}

// NewEngine creates a new download engine
func NewEngine(cfg Config) *Engine {
	e := &Engine{
		client:      cfg.Client,
		userAgent:   cfg.UserAgent,
		retries:     cfg.Retries,
		retryDelay:  cfg.RetryDelay,
		parallelism: cfg.Parallelism,
		clock:       cfg.Clock,
		logger:      logging.OrNop(cfg.Logger),
		metrics:     cfg.Metrics,
	}
	if e.client == nil {
		e.client = &http.Client{
			Timeout: DefaultTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	if e.userAgent == "" {
		e.userAgent = DefaultUserAgent
	}
	if e.retries < 0 {
		e.retries = 0
	}
	if e.retryDelay <= 0 {
		e.retryDelay = DefaultRetryDelay
	}
	if e.parallelism <= 0 {
		e.parallelism = DefaultParallelism
	}
	if e.clock == nil {
		e.clock = clock.WallClock
	}
	return e
}

// Get fetches url into memory. It is used for provider documents.
func (e *Engine) Get(ctx context.Context, url string, progress ProgressFunc) ([]byte, error) {
	m := &meter{t: newTracker(progress, 0)}

	var body []byte
	err := e.withRetry(ctx, url, func(ctx context.Context) error {
		m.reset()
		resp, err := e.open(ctx, url)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		m.size(resp.ContentLength)

		var buf bytes.Buffer
		n, err := io.Copy(io.MultiWriter(&buf, m), io.LimitReader(resp.Body, MaxDocumentSize+1))
		if err != nil {
			return fmt.Errorf("read response body: %w", err)
		}
		if n > MaxDocumentSize {
			return permanent(fmt.Errorf("response from %s exceeds %d bytes", url, MaxDocumentSize))
		}
		body = buf.Bytes()
		return nil
	})
	e.metrics.observe(err, int64(len(body)))
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Download performs a single file transfer.
func (e *Engine) Download(ctx context.Context, a Action, progress ProgressFunc) error {
	return e.run(ctx, a, newTracker(progress, a.Size))
}

// Batch transfers every action with at most Parallelism in flight. The first
// failure cancels the rest, and no transfer starts once cancellation has been
// observed. Batch succeeds only if every action succeeded.
func (e *Engine) Batch(ctx context.Context, actions []Action, progress ProgressFunc) error {
	if len(actions) == 0 {
		return ctx.Err()
	}

	var total int64
	for _, a := range actions {
		total += a.Size
	}
	t := newTracker(progress, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for _, a := range actions {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return e.run(gctx, a, t)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (e *Engine) run(ctx context.Context, a Action, t *tracker) error {
	m := &meter{t: t, sized: a.Size > 0}
	var written int64
	err := e.withRetry(ctx, a.URL, func(ctx context.Context) error {
		m.reset()
		n, err := e.transferOnce(ctx, a, m)
		written = n
		return err
	})
	e.metrics.observe(err, written)
	if err != nil {
		return err
	}

	if a.OnSuccess != nil {
		if err := a.OnSuccess(a.Path); err != nil {
			return fmt.Errorf("finish %s: %w", a.Path, err)
		}
	}
	return nil
}

// transferOnce performs a single download attempt
func (e *Engine) transferOnce(ctx context.Context, a Action, m *meter) (int64, error) {
	resp, err := e.open(ctx, a.URL)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	m.size(resp.ContentLength)

	destDir := filepath.Dir(a.Path)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return 0, &jre.FSError{Op: "create directory", Path: destDir, Err: err}
	}

	tmpPath := a.Path + ".part"
	tmpFile, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, &jre.FSError{Op: "create file", Path: tmpPath, Err: err}
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	writers := []io.Writer{fileWriter{f: tmpFile}, m}
	var h hash.Hash
	if len(a.Digest) > 0 {
		h = sha1.New()
		if a.NewHash != nil {
			h = a.NewHash()
		}
		writers = append(writers, h)
	}

	n, err := io.Copy(io.MultiWriter(writers...), resp.Body)
	if err != nil {
		return n, fmt.Errorf("copy response body: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return n, &jre.FSError{Op: "close file", Path: tmpPath, Err: err}
	}

	if h != nil {
		if got := h.Sum(nil); !bytes.Equal(got, a.Digest) {
			return n, &DigestMismatchError{URL: a.URL, Path: a.Path, Want: a.Digest, Got: got}
		}
	}

	if err := os.Rename(tmpPath, a.Path); err != nil {
		return n, &jre.FSError{Op: "rename file", Path: a.Path, Err: err}
	}

	cleanupNeeded = false
	return n, nil
}

func (e *Engine) open(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp, nil
}

// withRetry runs attempt until it succeeds, fails fatally, runs out of
// retries, or ctx is done. Delays double after every failed attempt.
func (e *Engine) withRetry(ctx context.Context, url string, attempt func(context.Context) error) error {
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			return attempt(ctx)
		},
		IsFatalError: func(err error) bool {
			return ctx.Err() != nil || isFatal(err)
		},
		NotifyFunc: func(err error, n int) {
			e.metrics.attemptFailed()
			e.logger.Warn("transfer attempt failed", "url", url, "attempt", n, "error", err)
		},
		Attempts:    e.retries + 1,
		Delay:       e.retryDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       e.clock,
		Stop:        ctx.Done(),
	})
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if retry.IsAttemptsExceeded(err) || retry.IsRetryStopped(err) {
		err = retry.LastError(err)
		return fmt.Errorf("fetch %s failed after %d attempts: %w", url, e.retries+1, err)
	}
	return fmt.Errorf("fetch %s: %w", url, err)
}

// fileWriter tags write failures as filesystem errors so they are not retried.
type fileWriter struct {
	f *os.File
}

func (w fileWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	if err != nil {
		return n, &jre.FSError{Op: "write file", Path: w.f.Name(), Err: err}
	}
	return n, nil
}
