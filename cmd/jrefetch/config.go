package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/config"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/platform"
)

// runConfig handles `jrefetch config`: it prints the effective configuration
// as Lua that parses back to the same values.
func runConfig(args []string, w io.Writer) error {
	for _, arg := range args {
		switch arg {
		case "-h", "--help":
			fmt.Fprintln(w, "Usage: jrefetch config")
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Print the effective configuration, including defaults.")
			fmt.Fprintf(w, "The file is read from $%s or the user config directory.\n", config.EnvConfig)
			return nil
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := loadConfig(ctx, platform.NewDetector(), installOptions{})
	if err != nil {
		return err
	}

	out, err := config.NewGenerator().Generate(cfg)
	if err != nil {
		return fmt.Errorf("generate config: %w", err)
	}

	if path, err := config.Path(); err == nil {
		fmt.Fprintf(w, "-- %s\n", path)
	}
	fmt.Fprint(w, out)
	return nil
}
