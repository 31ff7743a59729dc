// Package config loads jrefetch settings from a sandboxed Lua file.
//
// # File
//
// The file is read from $JREFETCH_CONFIG, else
// $XDG_CONFIG_HOME/jrefetch/jrefetch.lua, else ~/.config/jrefetch/jrefetch.lua.
// A missing file is not an error; Default is used. The file assigns a global
// table:
//
//	jrefetch = {
//	  install_root   = "~/.local/share/jrefetch",
//	  parallelism    = 8,
//	  retries        = 3,
//	  retry_delay_ms = 1000,
//	  timeout_s      = 300,
//	  log_level      = "INFO",
//	  providers = {
//	    primary_index    = "https://...",
//	    fallback_bundles = "https://...",
//	  },
//	}
//
// Omitted fields keep their defaults. The read-only platform table from
// package platform is injected first, so values can depend on the host:
//
//	parallelism = platform.is_arm64 and 4 or 8
//
// # Sandbox
//
// Configs run in gopher-lua with os, io, module loading and debug removed.
// Evaluation is bound to the caller's context.
//
// # Generation
//
// Generator writes a Config back out as Lua; `jrefetch config` uses it to
// print the effective settings.
package config
