// Command pkgguard runs the Windows package manager with validated
// arguments and structured output.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/deixis/pkgguard"
	"github.com/deixis/pkgguard/internal/config"
	"github.com/deixis/pkgguard/internal/gate"
	"github.com/deixis/pkgguard/internal/logging"
	"github.com/deixis/pkgguard/internal/metrics"
	"github.com/deixis/pkgguard/internal/report"
	"github.com/deixis/pkgguard/internal/runner"
	"github.com/deixis/pkgguard/internal/workflow"
)

// Process exit codes.
const (
	exitOK         = 0
	exitOther      = 1
	exitUsage      = 2
	exitValidation = 3
	exitExecution  = 4
	exitParse      = 5
)

func main() {
	log.SetFlags(0)
	log.SetPrefix("pkgguard: ")

	if len(os.Args) < 2 {
		usage()
		os.Exit(exitUsage)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "list":
		err = listMain(args)
	case "search":
		err = searchMain(args)
	case "upgrades":
		err = upgradesMain(args)
	case "upgrade", "install", "uninstall", "repair":
		err = changeMain(cmd, args)
	case "sources":
		err = sourcesMain(args)
	case "validate":
		err = validateMain(args)
	case "inspect":
		err = inspectMain(args)
	case "mcp":
		err = mcpMain(args)
	case "version":
		fmt.Println(pkgguard.Version)
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "pkgguard: unknown command %q\n", cmd)
		usage()
		os.Exit(exitUsage)
	}

	if err != nil {
		log.Print(err)
		os.Exit(exitCode(err))
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: pkgguard <command> [flags] [args]

Commands:
  list        List installed packages [query]
  search      Search the configured sources <query>
  upgrades    List installed packages with an update available
  upgrade     Upgrade a package <id>
  install     Install a package <id>
  uninstall   Uninstall a package <id>
  repair      Repair a package <id>
  sources     List the configured sources [name]
  validate    Check a value without running anything <context> <value>
  inspect     Show a previous run <run-id> [package]
  mcp         Start the MCP server
  version     Print the version
  help        Show this help

Use "pkgguard <command> -h" for command-specific flags.`)
}

// usageError is a command-line mistake.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// errRejected reports a value that pkgguard validate rejected.
var errRejected = errors.New("value rejected")

// exitCode maps an error to the process exit code.
func exitCode(err error) int {
	var uerr *usageError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &uerr):
		return exitUsage
	case errors.Is(err, errRejected):
		return exitValidation
	}
	switch workflow.Classify(err) {
	case workflow.ClassValidation:
		return exitValidation
	case workflow.ClassExecution:
		return exitExecution
	case workflow.ClassParse:
		return exitParse
	}
	return exitOther
}

// app is everything a command needs, built from the .pkgguard file.
type app struct {
	cfg     *config.Config
	engine  *workflow.Engine
	store   report.Store
	closers []io.Closer
}

// loadConfig finds the .pkgguard file above the working directory.
func loadConfig() (*config.Config, error) {
	workspace, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("determining working directory: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	logging.SetLevel(loaded.Config.LogLevel())
	if loaded.Path != "" {
		logging.Debug("config", "loaded", "path", loaded.Path, "log_level", logging.CurrentLevel())
	}
	return loaded.Config, nil
}

// newApp wires the engine and run history from cfg. A positive
// timeoutOverride replaces the configured timeout.
func newApp(cfg *config.Config, timeoutOverride time.Duration, m metrics.Metrics) (*app, error) {
	timeout := cfg.Timeout()
	if timeoutOverride > 0 {
		timeout = timeoutOverride
	}

	if m == nil {
		m = metrics.Noop{}
	}
	g := gate.New(cfg.Concurrency())
	g.Observe(m.SetInFlight)

	a := &app{cfg: cfg}
	a.engine = &workflow.Engine{
		Policy: cfg.CommandPolicy(),
		Runner: &runner.Runner{
			Binary:    cfg.BinaryPath(),
			Timeout:   timeout,
			KillGrace: cfg.KillGrace(),
			MaxOutput: cfg.MaxOutputBytes(),
		},
		Gate:              g,
		Metrics:           m,
		KeepPartialOutput: cfg.KeepPartialOutput,
		ScanLimit:         cfg.ScanLines(),
	}

	store, err := a.openStore()
	if err != nil {
		return nil, err
	}
	a.store = store
	return a, nil
}

// openStore puts an in-memory LRU in front of Redis when a URL is
// configured, else in front of the disk store.
func (a *app) openStore() (report.Store, error) {
	sc := a.cfg.Store
	var back report.Store
	if sc.RedisURL != "" {
		rs, err := report.NewRedisStore(sc.RedisURL, sc.TTL())
		if err != nil {
			return nil, fmt.Errorf("opening run history: %w", err)
		}
		a.closers = append(a.closers, rs)
		back = rs
	} else {
		back = report.NewDiskStore(sc.Directory())
	}
	return report.NewLRUStore(sc.CacheSize(), back), nil
}

func (a *app) Close() {
	for _, c := range a.closers {
		_ = c.Close()
	}
}

// save stores run. A failure is logged and does not fail the command.
func (a *app) save(run *workflow.Run) {
	if err := a.store.Save(run.Record()); err != nil {
		logging.Error("report", "saving run failed", "run_id", run.ID, "error", err)
	}
}

// withApp builds an app, runs fn with it and releases it.
func withApp(timeout time.Duration, fn func(context.Context, *app) error) error {
	ctx, stop := signalContext()
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := newApp(cfg, timeout, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}
