package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/platform"
)

// runPlatform handles `jrefetch platform`.
func runPlatform(args []string, detector platform.Detector, w io.Writer) error {
	verbose := false
	for _, arg := range args {
		switch arg {
		case "-v", "--verbose":
			verbose = true
		case "-h", "--help":
			fmt.Fprintln(w, "Usage: jrefetch platform [-v]")
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Print the platform identifier used to query runtime providers.")
			return nil
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	info, err := detector.Detect(ctx)
	if err != nil {
		return fmt.Errorf("detect platform: %w", err)
	}

	if !verbose {
		fmt.Fprintln(w, info.CanonicalID())
		return nil
	}

	row := func(label, value string) {
		if value == "" {
			value = faintStyle.Render("unknown")
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-9s", label)), value)
	}
	row("platform", info.CanonicalID())
	row("os", info.OS)
	row("arch", info.Arch)
	row("kernel", info.Kernel)
	if info.IsLinux() {
		distro := info.Distro
		if distro != "" && info.Version != "" {
			distro += " " + info.Version
		}
		row("distro", distro)
	}
	return nil
}
