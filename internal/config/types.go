package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/juju/loggo/v2"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/provider"
)

// Config is the jrefetch configuration.
type Config struct {
	// InstallRoot holds java/java-legacy and java/java-current (supports ~)
	InstallRoot string

	// ScratchDir receives downloaded archives; defaults to <InstallRoot>/temp
	ScratchDir string

	Parallelism int
	Retries     int
	RetryDelay  time.Duration
	Timeout     time.Duration
	LogLevel    string

	Providers Providers
}

// Providers are the endpoints runtimes are resolved against.
type Providers struct {
	PrimaryIndex    string
	FallbackBundles string
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		InstallRoot: DefaultInstallRoot(),
		Parallelism: DefaultParallelism,
		Retries:     DefaultRetries,
		RetryDelay:  DefaultRetryDelay,
		Timeout:     DefaultTimeout,
		LogLevel:    DefaultLogLevel,
		Providers: Providers{
			PrimaryIndex:    provider.DefaultPrimaryIndexURL,
			FallbackBundles: provider.DefaultFallbackURL,
		},
	}
}

// DefaultInstallRoot returns $JREFETCH_ROOT, or the per-user data directory.
func DefaultInstallRoot() string {
	if root := os.Getenv(EnvInstallRoot); root != "" {
		return root
	}
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		return filepath.Join(dataHome, "jrefetch")
	}
	return "~/.local/share/jrefetch"
}

// ScratchPath returns ScratchDir, or <InstallRoot>/temp when unset.
func (c *Config) ScratchPath() string {
	if c.ScratchDir != "" {
		return c.ScratchDir
	}
	return filepath.Join(c.InstallRoot, "temp")
}

// Validate performs basic validation on a Config.
func (c *Config) Validate() error {
	if c.InstallRoot == "" {
		return &ValidationError{Field: luaFieldInstallRoot, Message: "cannot be empty"}
	}
	if err := validatePath(c.InstallRoot); err != nil {
		return &ValidationError{Field: luaFieldInstallRoot, Message: err.Error()}
	}
	if c.ScratchDir != "" {
		if err := validatePath(c.ScratchDir); err != nil {
			return &ValidationError{Field: luaFieldScratchDir, Message: err.Error()}
		}
	}

	if c.Parallelism < 1 || c.Parallelism > MaxParallelism {
		return &ValidationError{
			Field:   luaFieldParallelism,
			Message: fmt.Sprintf("must be between 1 and %d (got %d)", MaxParallelism, c.Parallelism),
		}
	}
	if c.Retries < 0 || c.Retries > MaxRetries {
		return &ValidationError{
			Field:   luaFieldRetries,
			Message: fmt.Sprintf("must be between 0 and %d (got %d)", MaxRetries, c.Retries),
		}
	}
	if c.RetryDelay <= 0 || c.RetryDelay > MaxRetryDelay {
		return &ValidationError{
			Field:   luaFieldRetryDelayMS,
			Message: fmt.Sprintf("must be positive and at most %s (got %s)", MaxRetryDelay, c.RetryDelay),
		}
	}
	if c.Timeout <= 0 || c.Timeout > MaxTimeout {
		return &ValidationError{
			Field:   luaFieldTimeoutS,
			Message: fmt.Sprintf("must be positive and at most %s (got %s)", MaxTimeout, c.Timeout),
		}
	}
	if _, ok := loggo.ParseLevel(c.LogLevel); !ok {
		return &ValidationError{Field: luaFieldLogLevel, Message: fmt.Sprintf("unknown level %q", c.LogLevel)}
	}

	if err := validateProviderURL(c.Providers.PrimaryIndex); err != nil {
		return &ValidationError{Field: "providers." + luaFieldPrimaryIndex, Message: err.Error()}
	}
	if err := validateProviderURL(c.Providers.FallbackBundles); err != nil {
		return &ValidationError{Field: "providers." + luaFieldFallbackBundle, Message: err.Error()}
	}
	return nil
}

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "config validation failed for " + e.Field + ": " + e.Message
	}
	return "config validation failed: " + e.Message
}

// ExpandPaths replaces a leading ~ in InstallRoot and ScratchDir with the
// user's home directory.
func (c *Config) ExpandPaths() error {
	var err error
	if c.InstallRoot, err = expandHome(c.InstallRoot); err != nil {
		return err
	}
	if c.ScratchDir, err = expandHome(c.ScratchDir); err != nil {
		return err
	}
	return nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path[1:], "/")), nil
}

// validatePath rejects relative paths and traversal. Paths may start with ~.
func validatePath(path string) error {
	if strings.HasPrefix(path, "~/") || path == "~" {
		path = "/" + strings.TrimPrefix(path[1:], "/")
	}
	if !filepath.IsAbs(path) && !strings.HasPrefix(path, "/") {
		return fmt.Errorf("must be absolute or start with ~/ (got %q)", path)
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal not allowed: %s", path)
		}
	}
	return nil
}

// validateProviderURL requires an absolute http(s) URL.
func validateProviderURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must use https:// or http:// scheme (got: %s)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host")
	}
	return nil
}
