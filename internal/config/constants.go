package config

import "time"

// Lua schema field names and globals
const (
	luaGlobalJrefetch      = "jrefetch"
	luaFieldInstallRoot    = "install_root"
	luaFieldScratchDir     = "scratch_dir"
	luaFieldParallelism    = "parallelism"
	luaFieldRetries        = "retries"
	luaFieldRetryDelayMS   = "retry_delay_ms"
	luaFieldTimeoutS       = "timeout_s"
	luaFieldLogLevel       = "log_level"
	luaFieldProviders      = "providers"
	luaFieldPrimaryIndex   = "primary_index"
	luaFieldFallbackBundle = "fallback_bundles"
)

// Defaults and bounds
const (
	DefaultParallelism = 8
	DefaultRetries     = 3
	DefaultRetryDelay  = time.Second
	DefaultTimeout     = 5 * time.Minute
	DefaultLogLevel    = "INFO"

	MaxParallelism = 64
	MaxRetries     = 10
	MaxRetryDelay  = time.Minute
	MaxTimeout     = time.Hour
)

// Environment variables consulted by Path and DefaultInstallRoot
const (
	EnvConfig      = "JREFETCH_CONFIG"
	EnvInstallRoot = "JREFETCH_ROOT"
)
