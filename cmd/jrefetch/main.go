package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/pipeline"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/platform"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "--version", "version":
			fmt.Printf("jrefetch %s\n", Version)
			return
		case "install":
			err = runInstall(os.Args[2:])
		case "platform":
			err = runPlatform(os.Args[2:], platform.NewDetector(), os.Stdout)
		case "config":
			err = runConfig(os.Args[2:], os.Stdout)
		case "help", "--help", "-h":
			printHelp()
			return
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n\n", os.Args[1])
			printHelp()
			os.Exit(1)
		}
		if err != nil {
			exit(err)
		}
		return
	}

	printHelp()
}

// exit reports err and terminates. An aborted install is not an error box:
// the user asked for it.
func exit(err error) {
	if errors.Is(err, pipeline.ErrAborted) {
		fmt.Fprintln(os.Stderr, warningStyle.Render("Installation aborted."))
		os.Exit(130)
	}
	fmt.Fprintln(os.Stderr, errorBox.Render(fmt.Sprintf("Error: %v", err)))
	os.Exit(1)
}

func printHelp() {
	fmt.Println(titleStyle.Render("jrefetch") + " - fetch Java runtimes for the current platform")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  jrefetch install [options]   Download and install a Java runtime")
	fmt.Println("  jrefetch platform [-v]       Show the detected platform identifier")
	fmt.Println("  jrefetch config              Print the effective configuration")
	fmt.Println("  jrefetch --version           Show version information")
	fmt.Println()
	fmt.Println("Run 'jrefetch install --help' for install options.")
}
