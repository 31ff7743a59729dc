package config

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// Generator generates Lua configuration code from a Config.
type Generator struct {
	indent string // Indentation string (default: two spaces)
}

// NewGenerator creates a new Lua config generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ", // Two spaces
	}
}

// Generate renders cfg as a jrefetch.lua file that ParseString reads back
// to an equal Config. The scratch directory is written only when set.
func (g *Generator) Generate(cfg *Config) (string, error) {
	if cfg.RetryDelay%time.Millisecond != 0 {
		return "", fmt.Errorf("retry delay %s is not a whole number of milliseconds", cfg.RetryDelay)
	}
	if cfg.Timeout%time.Second != 0 {
		return "", fmt.Errorf("timeout %s is not a whole number of seconds", cfg.Timeout)
	}

	var buf bytes.Buffer
	buf.WriteString("-- jrefetch configuration\n")
	buf.WriteString("-- The read-only `platform` table is available, e.g. platform.when(platform.is_linux, ...)\n\n")
	buf.WriteString(luaGlobalJrefetch + " = {\n")

	g.writeField(&buf, 1, luaFieldInstallRoot, g.quoteLuaString(cfg.InstallRoot))
	if cfg.ScratchDir != "" {
		g.writeField(&buf, 1, luaFieldScratchDir, g.quoteLuaString(cfg.ScratchDir))
	}
	g.writeField(&buf, 1, luaFieldParallelism, fmt.Sprint(cfg.Parallelism))
	g.writeField(&buf, 1, luaFieldRetries, fmt.Sprint(cfg.Retries))
	g.writeField(&buf, 1, luaFieldRetryDelayMS, fmt.Sprint(cfg.RetryDelay.Milliseconds()))
	g.writeField(&buf, 1, luaFieldTimeoutS, fmt.Sprint(int64(cfg.Timeout/time.Second)))
	g.writeField(&buf, 1, luaFieldLogLevel, g.quoteLuaString(cfg.LogLevel))

	buf.WriteString("\n")
	buf.WriteString(g.indent + luaFieldProviders + " = {\n")
	g.writeField(&buf, 2, luaFieldPrimaryIndex, g.quoteLuaString(cfg.Providers.PrimaryIndex))
	g.writeField(&buf, 2, luaFieldFallbackBundle, g.quoteLuaString(cfg.Providers.FallbackBundles))
	buf.WriteString(g.indent + "},\n")

	buf.WriteString("}\n")
	return buf.String(), nil
}

func (g *Generator) writeField(buf *bytes.Buffer, depth int, name, value string) {
	buf.WriteString(strings.Repeat(g.indent, depth))
	buf.WriteString(name)
	buf.WriteString(" = ")
	buf.WriteString(value)
	buf.WriteString(",\n")
}

// quoteLuaString quotes a string for Lua, handling special characters.
func (g *Generator) quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
