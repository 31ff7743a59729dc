package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/platform"
)

// MaxConfigSize caps the config file size read by ParseFile.
const MaxConfigSize = 1 << 20

// Parser represents a Lua config parser with platform detection.
type Parser struct {
	detector platform.Detector
}

// NewParser creates a new config parser with the given platform detector.
// A nil detector leaves the platform table undefined.
func NewParser(detector platform.Detector) *Parser {
	return &Parser{detector: detector}
}

// Path returns the config file location: $JREFETCH_CONFIG, or jrefetch.lua
// under $XDG_CONFIG_HOME/jrefetch, or ~/.config/jrefetch.
func Path() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "jrefetch", "jrefetch.lua"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", "jrefetch", "jrefetch.lua"), nil
}

// Load parses the file at Path. A missing file yields Default.
func (p *Parser) Load(ctx context.Context) (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	cfg, err := p.ParseFile(ctx, path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// ParseFile parses the Lua config at path.
func (p *Parser) ParseFile(ctx context.Context, path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	if info.Size() > MaxConfigSize {
		return nil, &ParseError{
			Message: "config file too large",
			Detail:  fmt.Sprintf("%s is %d bytes, maximum is %d", path, info.Size(), MaxConfigSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return p.ParseString(ctx, string(data))
}

// ParseString parses a Lua config from a string.
// Fields the config leaves out keep their Default values.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Config, error) {
	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	if p.detector != nil {
		platformInfo, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, platformInfo); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
	}

	if err := L.DoString(luaCode); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ParseError{
			Message: "Lua syntax error",
			Detail:  err.Error(),
		}
	}

	return extractConfig(L)
}

// ParseError represents a config parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractConfig reads the global "jrefetch" table over Default.
func extractConfig(L *lua.LState) (*Config, error) {
	root := L.GetGlobal(luaGlobalJrefetch)
	if root.Type() != lua.LTTable {
		return nil, &ParseError{
			Message: "missing or invalid 'jrefetch' table",
			Detail:  fmt.Sprintf("expected table, got %s", root.Type()),
		}
	}
	table := root.(*lua.LTable)
	cfg := Default()

	var err error
	if cfg.InstallRoot, err = getString(table, luaFieldInstallRoot, cfg.InstallRoot); err != nil {
		return nil, err
	}
	if cfg.ScratchDir, err = getString(table, luaFieldScratchDir, cfg.ScratchDir); err != nil {
		return nil, err
	}
	if cfg.LogLevel, err = getString(table, luaFieldLogLevel, cfg.LogLevel); err != nil {
		return nil, err
	}
	if cfg.Parallelism, err = getInt(table, luaFieldParallelism, cfg.Parallelism); err != nil {
		return nil, err
	}
	if cfg.Retries, err = getInt(table, luaFieldRetries, cfg.Retries); err != nil {
		return nil, err
	}

	delayMS, err := getInt(table, luaFieldRetryDelayMS, int(cfg.RetryDelay/time.Millisecond))
	if err != nil {
		return nil, err
	}
	cfg.RetryDelay = time.Duration(delayMS) * time.Millisecond

	timeoutS, err := getInt(table, luaFieldTimeoutS, int(cfg.Timeout/time.Second))
	if err != nil {
		return nil, err
	}
	cfg.Timeout = time.Duration(timeoutS) * time.Second

	switch providers := table.RawGetString(luaFieldProviders); providers.Type() {
	case lua.LTNil:
	case lua.LTTable:
		pt := providers.(*lua.LTable)
		if cfg.Providers.PrimaryIndex, err = getString(pt, luaFieldPrimaryIndex, cfg.Providers.PrimaryIndex); err != nil {
			return nil, err
		}
		if cfg.Providers.FallbackBundles, err = getString(pt, luaFieldFallbackBundle, cfg.Providers.FallbackBundles); err != nil {
			return nil, err
		}
	default:
		return nil, typeError(luaFieldProviders, "table", providers)
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ParseError{
			Message: "config validation failed",
			Detail:  err.Error(),
		}
	}
	return cfg, nil
}

// getString returns table[key] or def when the field is nil.
func getString(table *lua.LTable, key, def string) (string, error) {
	v := table.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return def, nil
	case lua.LTString:
		return v.String(), nil
	default:
		return "", typeError(key, "string", v)
	}
}

// getInt returns table[key] or def when the field is nil. Fractions are rejected.
func getInt(table *lua.LTable, key string, def int) (int, error) {
	v := table.RawGetString(key)
	switch v.Type() {
	case lua.LTNil:
		return def, nil
	case lua.LTNumber:
		n := float64(lua.LVAsNumber(v))
		if n != float64(int(n)) {
			return 0, &ParseError{Message: "invalid field " + key, Detail: fmt.Sprintf("expected integer, got %v", n)}
		}
		return int(n), nil
	default:
		return 0, typeError(key, "number", v)
	}
}

func typeError(key, want string, got lua.LValue) error {
	return &ParseError{
		Message: "invalid field " + key,
		Detail:  fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
