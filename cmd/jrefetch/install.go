package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ZebulonRouseFrantzich/jrefetch/internal/config"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/fetch"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/install"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/jre"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/lock"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/logging"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/pipeline"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/platform"
	"github.com/ZebulonRouseFrantzich/jrefetch/internal/provider"
)

// installOptions holds the parsed `jrefetch install` flags.
type installOptions struct {
	channel     string // "legacy", "current", "both" or empty to prompt
	root        string
	platformID  string
	logLevel    string
	metricsFile string
	help        bool
}

// parseInstallArgs parses flags in both "--flag value" and "--flag=value" form.
func parseInstallArgs(args []string) (installOptions, error) {
	var opts installOptions
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "-h" || arg == "--help" {
			opts.help = true
			continue
		}

		name, value, hasValue := strings.Cut(arg, "=")
		var target *string
		switch name {
		case "--channel":
			target = &opts.channel
		case "--root":
			target = &opts.root
		case "--platform":
			target = &opts.platformID
		case "--log-level":
			target = &opts.logLevel
		case "--metrics-file":
			target = &opts.metricsFile
		default:
			return opts, fmt.Errorf("unknown flag: %s", arg)
		}
		if !hasValue {
			if i+1 >= len(args) {
				return opts, fmt.Errorf("flag %s requires a value", name)
			}
			i++
			value = args[i]
		}
		if value == "" {
			return opts, fmt.Errorf("flag %s requires a value", name)
		}
		*target = value
	}

	if opts.channel != "" {
		if _, err := parseChannels(opts.channel); err != nil {
			return opts, err
		}
	}
	return opts, nil
}

// parseChannels expands a --channel value into the channels to install.
func parseChannels(s string) ([]jre.Channel, error) {
	if s == "both" || s == "all" {
		return jre.Channels, nil
	}
	ch, err := jre.ParseChannel(s)
	if err != nil {
		return nil, err
	}
	return []jre.Channel{ch}, nil
}

// installedChannels reports which channels already have a non-empty
// install directory under root.
func installedChannels(root string) map[jre.Channel]bool {
	installed := make(map[jre.Channel]bool)
	for _, ch := range jre.Channels {
		entries, err := os.ReadDir(filepath.Join(root, "java", ch.DirName()))
		if err == nil && len(entries) > 0 {
			installed[ch] = true
		}
	}
	return installed
}

// channelChoices lists the prompt options for channels not yet installed.
func channelChoices(installed map[jre.Channel]bool) []huh.Option[string] {
	var options []huh.Option[string]
	for _, ch := range jre.Channels {
		if installed[ch] {
			continue
		}
		label := fmt.Sprintf("Java %d", ch.JavaVersion())
		options = append(options, huh.NewOption(titleStyle.Render(label)+" ("+ch.String()+")", ch.String()))
	}
	if len(options) == len(jre.Channels) {
		options = append(options, huh.NewOption(titleStyle.Render("Both"), "both"))
	}
	return options
}

func promptChannels(installed map[jre.Channel]bool) ([]jre.Channel, error) {
	options := channelChoices(installed)
	if len(options) == 0 {
		return nil, nil
	}

	var selection string
	err := huh.NewSelect[string]().
		Title(labelStyle.Render("Select Java Runtime")).
		Description(faintStyle.Render("Runtimes already installed are not listed")).
		Options(options...).
		Value(&selection).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, pipeline.ErrAborted
		}
		return nil, err
	}
	return parseChannels(selection)
}

// runInstall handles the `jrefetch install` subcommand.
func runInstall(args []string) error {
	opts, err := parseInstallArgs(args)
	if err != nil {
		return err
	}
	if opts.help {
		printInstallHelp()
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	detector := platform.NewDetector()
	cfg, err := loadConfig(ctx, detector, opts)
	if err != nil {
		return err
	}
	if err := logging.Configure(cfg.LogLevel); err != nil {
		return err
	}

	platformID := opts.platformID
	if platformID == "" {
		info, err := detector.Detect(ctx)
		if err != nil {
			return fmt.Errorf("detect platform: %w", err)
		}
		platformID = info.CanonicalID()
	}

	var channels []jre.Channel
	if opts.channel != "" {
		channels, _ = parseChannels(opts.channel)
	} else if channels, err = promptChannels(installedChannels(cfg.InstallRoot)); err != nil {
		return err
	}
	if len(channels) == 0 {
		fmt.Println(successStyle.Render("All Java runtimes are already installed."))
		return nil
	}

	l, err := lock.AcquireLock(ctx, filepath.Join(cfg.InstallRoot, "java"))
	if err != nil {
		return fmt.Errorf("lock install root: %w", err)
	}
	defer l.Release()

	registry := prometheus.NewRegistry()
	metrics, err := fetch.NewMetrics(registry)
	if err != nil {
		return err
	}
	inst := newInstaller(cfg, metrics)

	for _, ch := range channels {
		err = inst.run(ctx, jre.Request{PlatformID: platformID, Channel: ch}, isTerminal(os.Stdout))
		if err != nil {
			break
		}
	}

	if opts.metricsFile != "" {
		if werr := prometheus.WriteToTextfile(opts.metricsFile, registry); werr != nil && err == nil {
			err = fmt.Errorf("write metrics: %w", werr)
		}
	}
	return err
}

// loadConfig reads the user's config file, falling back to defaults, applies
// the command-line overrides and validates the result with paths expanded.
func loadConfig(ctx context.Context, detector platform.Detector, opts installOptions) (*config.Config, error) {
	cfg, err := config.NewParser(detector).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %s", config.FormatError(err, false))
	}
	if opts.root != "" {
		root, err := filepath.Abs(opts.root)
		if err != nil {
			return nil, fmt.Errorf("resolve install root: %w", err)
		}
		cfg.InstallRoot = root
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if err := cfg.ExpandPaths(); err != nil {
		return nil, fmt.Errorf("expand config paths: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// installer builds one pipeline per channel from shared components.
type installer struct {
	root         string
	primary      *provider.PrimaryResolver
	fallback     *provider.FallbackResolver
	materializer *install.Materializer
	archives     *install.ArchiveInstaller
	stdout       io.Writer
}

func newInstaller(cfg *config.Config, metrics *fetch.Metrics) *installer {
	engine := fetch.NewEngine(fetch.Config{
		Client:      &http.Client{Timeout: cfg.Timeout},
		Retries:     cfg.Retries,
		RetryDelay:  cfg.RetryDelay,
		Parallelism: cfg.Parallelism,
		Logger:      logging.New("fetch"),
		Metrics:     metrics,
	})
	return &installer{
		root:         cfg.InstallRoot,
		primary:      provider.NewPrimaryResolver(engine, cfg.Providers.PrimaryIndex, logging.New("provider")),
		fallback:     provider.NewFallbackResolver(engine, cfg.Providers.FallbackBundles, logging.New("provider")),
		materializer: install.NewMaterializer(engine, logging.New("install")),
		archives:     install.NewArchiveInstaller(engine, cfg.ScratchPath(), logging.New("install")),
		stdout:       os.Stdout,
	}
}

// run installs one channel. With interactive set the run is rendered as a
// progress bar, otherwise each stage is printed as a line.
func (in *installer) run(ctx context.Context, req jre.Request, interactive bool) error {
	var (
		p       *pipeline.Pipeline
		program *tea.Program
	)
	listener := func(e pipeline.Event) {
		if e.Type == pipeline.EventState && !e.To.IsTerminal() {
			fmt.Fprintln(in.stdout, faintStyle.Render(stageLabel(e.To)))
		}
	}
	if interactive {
		program = tea.NewProgram(newProgressModel(req.Channel, func() { p.Abort() }))
		listener = func(e pipeline.Event) { program.Send(eventMsg(e)) }
	}

	p, err := pipeline.New(pipeline.Options{
		Primary:      in.primary,
		Fallback:     in.fallback,
		Materializer: in.materializer,
		Archives:     in.archives,
		InstallRoot:  in.root,
		Logger:       logging.New("pipeline"),
		Listener:     listener,
	})
	if err != nil {
		return err
	}
	if program != nil {
		if err := logging.SetOutput(programWriter{program}); err != nil {
			return err
		}
		defer logging.SetOutput(os.Stderr)
	}
	if ctx.Err() != nil {
		p.Abort()
	}
	if err := p.Start(req); err != nil {
		return err
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			p.Abort()
		case <-done:
		}
	}()

	if program != nil {
		if _, err := program.Run(); err != nil {
			p.Abort()
		}
	}

	result := p.Wait()
	switch result.State {
	case pipeline.Succeeded:
		fmt.Fprintf(in.stdout, "%s Java %d installed to %s\n",
			successStyle.Render("✓"), req.Channel.JavaVersion(), p.InstallDir(req.Channel))
		return nil
	case pipeline.Aborted:
		return fmt.Errorf("install java %d: %w", req.Channel.JavaVersion(), pipeline.ErrAborted)
	default:
		return fmt.Errorf("install java %d: %w", req.Channel.JavaVersion(), result.Err)
	}
}

// isTerminal reports whether f is attached to a character device.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

func printInstallHelp() {
	fmt.Println("Usage: jrefetch install [options]")
	fmt.Println()
	fmt.Println("Download a Java runtime from the primary provider, falling back to a")
	fmt.Println("platform archive when no manifest is published for this platform.")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --channel C        legacy (Java 8), current (Java 17) or both; prompts when omitted")
	fmt.Println("  --root DIR         Install root (runtimes go to DIR/java/java-<channel>)")
	fmt.Println("  --platform ID      Override the detected platform identifier")
	fmt.Println("  --log-level L      Log level: TRACE, DEBUG, INFO, WARNING, ERROR")
	fmt.Println("  --metrics-file F   Write transfer metrics in Prometheus text format to F")
	fmt.Println("  -h, --help         Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  jrefetch install --channel current")
	fmt.Println("  jrefetch install --channel both --root ~/games/runtime")
}
