package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/bamsammich/sortcp/internal/config"
	"github.com/bamsammich/sortcp/internal/engine"
	"github.com/bamsammich/sortcp/internal/event"
	"github.com/bamsammich/sortcp/internal/filter"
	"github.com/bamsammich/sortcp/internal/stats"
	"github.com/bamsammich/sortcp/internal/ui"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	collision      string
	unknownBucket  string
	bwLimit        string
	filterFile     string
	minSize        string
	maxSize        string
	logFile        string
	color          string
	configPath     string
	stateDir       string
	rules          []string // --include/--exclude in command-line order
	progress       time.Duration
	workers        int
	unbounded      bool
	followSymlinks bool
	foldCase       bool
	verify         bool
	dryRun         bool
	resume         bool
	strict         bool
	quiet          bool
	verbose        bool
	benchmark      bool
	showVersion    bool
}

// filterFlag is a custom pflag.Value that preserves CLI ordering of
// --exclude and --include rules.
type filterFlag struct {
	rules  *[]string
	prefix string
}

func (*filterFlag) String() string { return "" }
func (*filterFlag) Type() string   { return "string" }

func (f *filterFlag) Set(val string) error {
	if err := filter.NewChain().AddRule(f.prefix + val); err != nil {
		return err
	}
	*f.rules = append(*f.rules, f.prefix+val)
	return nil
}

func run(args []string, stdout, stderr io.Writer) int {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			return exitErr.code
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var o options

	rootCmd := &cobra.Command{
		Use:   "sortcp [flags] <source> <output>",
		Short: "Copy every file under a directory into per-extension folders",
		Long: `sortcp walks <source> recursively and copies each regular file into
<output>/<extension>/<name>. Files without an extension go to
<output>/unknown. Copies run in parallel; a failure on one file is reported
and never stops the others.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if o.showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if o.showVersion {
				fmt.Fprintf(stdout, "sortcp %s\n", version)
				return nil
			}
			return runSort(cmd, &o, args[0], args[1], stdout, stderr)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	f := rootCmd.Flags()
	f.BoolVar(&o.showVersion, "version", false, "print version and exit")
	f.IntVarP(&o.workers, "workers", "n", 0, "number of copy workers (default: min(NumCPU*2, 32))")
	f.BoolVar(&o.unbounded, "unbounded", false, "start one copy goroutine per file")
	f.BoolVarP(&o.followSymlinks, "follow-symlinks", "L", false, "follow symbolic links (cycles are skipped)")
	f.StringVar(&o.collision, "collision", "rename", "same-name files in one bucket: rename, overwrite or skip")
	f.BoolVar(&o.foldCase, "fold-case", false, "lowercase bucket names so .JPG and .jpg share a folder")
	f.StringVar(&o.unknownBucket, "unknown-bucket", engine.DefaultUnknownBucket, "folder for files without an extension")
	f.BoolVar(&o.verify, "verify", false, "verify each copy with a BLAKE3 checksum before it is renamed into place")
	f.BoolVar(&o.dryRun, "dry-run", false, "show where files would go without writing")
	f.BoolVar(&o.resume, "resume", false, "skip files copied by an earlier run and unchanged since")
	f.StringVar(&o.bwLimit, "bwlimit", "", "bandwidth limit (e.g. 100M, 1G)")
	f.Var(&filterFlag{rules: &o.rules, prefix: "- "}, "exclude", "exclude files matching PATTERN (repeatable)")
	f.Var(&filterFlag{rules: &o.rules, prefix: "+ "}, "include", "include files matching PATTERN (repeatable)")
	f.StringVar(&o.filterFile, "filter", "", "read filter rules from FILE")
	f.StringVar(&o.minSize, "min-size", "", "skip files smaller than SIZE (e.g. 1M, 100K)")
	f.StringVar(&o.maxSize, "max-size", "", "skip files larger than SIZE (e.g. 1G, 500M)")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "print errors only")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "verbose output")
	f.StringVar(&o.logFile, "log", "", "write structured JSON log to FILE")
	f.DurationVar(&o.progress, "progress", 0, "print progress to stderr at this interval (e.g. 5s)")
	f.StringVar(&o.color, "color", "auto", "colorize output: auto, always or never")
	f.BoolVar(&o.strict, "strict", false, "exit 1 if any file could not be copied")
	f.StringVar(&o.configPath, "config", "", "config file (default: $XDG_CONFIG_HOME/sortcp/config.toml)")
	f.StringVar(&o.stateDir, "state-dir", "", "directory for resume journals and run locks")
	f.BoolVar(&o.benchmark, "benchmark", false, "measure throughput before copying and auto-tune workers")

	rootCmd.MarkFlagsMutuallyExclusive("workers", "unbounded")
	rootCmd.MarkFlagsMutuallyExclusive("quiet", "verbose")

	rootCmd.AddCommand(newDocsCmd())
	return rootCmd
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: CLI entry point wires config, logging, presenter and engine
func runSort(cmd *cobra.Command, o *options, src, dst string, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	applyConfigDefaults(cmd.Flags(), cfg, o)

	closeLog, err := setupLogging(o, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	collision, err := engine.ParseCollisionPolicy(o.collision)
	if err != nil {
		return err
	}

	var bwLimit int64
	if o.bwLimit != "" {
		if bwLimit, err = filter.ParseSize(o.bwLimit); err != nil {
			return fmt.Errorf("invalid --bwlimit: %w", err)
		}
	}

	chain, err := buildFilter(cfg.Filter, o)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers := o.workers
	if o.unbounded {
		workers = engine.Unbounded
	}
	if o.benchmark && !o.dryRun {
		res, benchErr := engine.RunBenchmark(ctx, src, dst)
		if benchErr != nil {
			slog.Warn("benchmark failed", "error", benchErr)
		} else {
			fmt.Fprintln(stderr, engine.FormatBenchmark(res))
			if workers == 0 {
				workers = res.SuggestedWorkers
			}
		}
	}

	if o.dryRun {
		slog.Info("dry run mode")
	}

	collector := stats.NewCollector()
	events := make(chan event.Event, 256)
	var presenterEvents <-chan event.Event = events
	if o.logFile != "" {
		presenterEvents = ui.TeeEvents(events, slog.Default())
	}

	presenter := ui.NewPresenter(ui.Config{
		Writer:    stdout,
		ErrWriter: stderr,
		Stats:     collector,
		Progress:  o.progress,
		Color:     ui.ColorEnabled(o.color, isTerminal(stdout)),
		Quiet:     o.quiet,
		Verbose:   o.verbose,
	})

	var presenterErr error
	var presenterWg sync.WaitGroup
	presenterWg.Add(1)
	go func() {
		defer presenterWg.Done()
		presenterErr = presenter.Run(presenterEvents)
	}()

	result := engine.Run(ctx, engine.Config{
		Src:            src,
		Dst:            dst,
		Reporter:       event.NewEmitter(events, o.dryRun),
		Stats:          collector,
		Filter:         chain,
		StateDir:       o.stateDir,
		Workers:        workers,
		BWLimit:        bwLimit,
		Collision:      collision,
		UnknownBucket:  o.unknownBucket,
		FollowSymlinks: o.followSymlinks,
		FoldCase:       o.foldCase,
		Verify:         o.verify,
		DryRun:         o.dryRun,
		Resume:         o.resume,
	})
	stop()
	close(events)
	presenterWg.Wait()
	if presenterErr != nil {
		fmt.Fprintf(stderr, "presenter: %v\n", presenterErr)
	}

	if summary := presenter.Summary(); summary != "" {
		fmt.Fprintln(stderr, summary)
	}

	return exitFor(result, o.strict)
}

// exitFor maps a run result to the process outcome.
func exitFor(result engine.Result, strict bool) error {
	if result.Err != nil {
		slog.Error("sort failed", "error", result.Err)
		return &exitError{code: 2}
	}
	if strict && (len(result.Failures) > 0 || len(result.ScanErrors) > 0) {
		return &exitError{code: 1}
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return config.Config{}, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config", "error", err)
		return config.Config{}, nil
	}
	return cfg, nil
}

// applyConfigDefaults applies config file defaults for flags not explicitly set on the CLI.
func applyConfigDefaults(flags *pflag.FlagSet, cfg config.Config, o *options) {
	d := cfg.Defaults
	setInt := func(name string, dst *int, v *int) {
		if v != nil && !flags.Changed(name) {
			*dst = *v
		}
	}
	setBool := func(name string, dst *bool, v *bool) {
		if v != nil && !flags.Changed(name) {
			*dst = *v
		}
	}
	setString := func(name string, dst *string, v *string) {
		if v != nil && !flags.Changed(name) {
			*dst = *v
		}
	}

	if !flags.Changed("unbounded") {
		setInt("workers", &o.workers, d.Workers)
	}
	setBool("verify", &o.verify, d.Verify)
	setBool("follow-symlinks", &o.followSymlinks, d.FollowSymlinks)
	setBool("fold-case", &o.foldCase, d.FoldCase)
	setBool("strict", &o.strict, d.Strict)
	setString("bwlimit", &o.bwLimit, d.BWLimit)
	setString("collision", &o.collision, d.Collision)
	setString("unknown-bucket", &o.unknownBucket, d.UnknownBucket)
	setString("min-size", &o.minSize, cfg.Filter.MinSize)
	setString("max-size", &o.maxSize, cfg.Filter.MaxSize)
	setString("color", &o.color, cfg.Output.Color)
}

// buildFilter assembles config rules, then CLI rules, then the --filter
// file. It returns nil when nothing would be filtered.
func buildFilter(fc config.FilterConfig, o *options) (*filter.Chain, error) {
	chain := filter.NewChain()
	for _, rule := range fc.Rules {
		if err := chain.AddRule(rule); err != nil {
			return nil, fmt.Errorf("config filter rule %q: %w", rule, err)
		}
	}
	for _, rule := range o.rules {
		if err := chain.AddRule(rule); err != nil {
			return nil, err
		}
	}
	if o.filterFile != "" {
		if err := chain.LoadFile(o.filterFile); err != nil {
			return nil, fmt.Errorf("load filter file: %w", err)
		}
	}
	if o.minSize != "" {
		n, err := filter.ParseSize(o.minSize)
		if err != nil {
			return nil, fmt.Errorf("invalid --min-size: %w", err)
		}
		chain.SetMinSize(n)
	}
	if o.maxSize != "" {
		n, err := filter.ParseSize(o.maxSize)
		if err != nil {
			return nil, fmt.Errorf("invalid --max-size: %w", err)
		}
		chain.SetMaxSize(n)
	}
	if chain.Empty() {
		return nil, nil
	}
	return chain, nil
}

// setupLogging installs the default slog logger. The returned func closes
// the --log file, if any.
func setupLogging(o *options, stderr io.Writer) (func(), error) {
	level := slog.LevelInfo
	switch {
	case o.verbose:
		level = slog.LevelDebug
	case o.quiet:
		level = slog.LevelWarn
	}
	textHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})

	if o.logFile == "" {
		slog.SetDefault(slog.New(textHandler))
		return func() {}, nil
	}

	lf, err := os.Create(o.logFile)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	jsonHandler := slog.NewJSONHandler(lf, &slog.HandlerOptions{Level: slog.LevelDebug})
	slog.SetDefault(slog.New(ui.NewMultiHandler(textHandler, jsonHandler)))
	return func() { lf.Close() }, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && ui.IsTTY(f.Fd())
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
