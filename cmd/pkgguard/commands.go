package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/deixis/pkgguard/internal/report"
	"github.com/deixis/pkgguard/internal/validate"
	"github.com/deixis/pkgguard/internal/workflow"
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

// common holds the flags every package command accepts.
type common struct {
	json    bool
	timeout time.Duration
	source  string
}

func newFlagSet(name string, c *common) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.BoolVar(&c.json, "json", false, "output results as JSON")
	fs.DurationVar(&c.timeout, "timeout", 0, "override configured timeout (e.g. 5m)")
	fs.StringVar(&c.source, "source", "", "restrict to one source (e.g. winget)")
	return fs
}

// optionalArg returns the single positional argument, or "".
func optionalArg(fs *flag.FlagSet) (string, error) {
	switch fs.NArg() {
	case 0:
		return "", nil
	case 1:
		return fs.Arg(0), nil
	}
	return "", usagef("%s: expected at most one argument, got %d (quote values with spaces)", fs.Name(), fs.NArg())
}

// requiredArg returns the single positional argument.
func requiredArg(fs *flag.FlagSet, what string) (string, error) {
	if fs.NArg() != 1 {
		return "", usagef("%s: expected exactly one %s", fs.Name(), what)
	}
	return fs.Arg(0), nil
}

// --- list / search / upgrades / sources ---

func listMain(args []string) error {
	var c common
	fs := newFlagSet("list", &c)
	id := fs.String("id", "", "filter by exact package id")
	name := fs.String("name", "", "filter by package name")
	count := fs.Int("count", 0, "maximum number of results")
	exact := fs.Bool("exact", false, "match exactly")
	_ = fs.Parse(args)
	query, err := optionalArg(fs)
	if err != nil {
		return err
	}

	return withApp(c.timeout, func(ctx context.Context, a *app) error {
		run, err := a.engine.List(ctx, workflow.ListQuery{
			ID:     *id,
			Name:   *name,
			Query:  query,
			Source: c.source,
			Count:  *count,
			Exact:  *exact,
		})
		if err != nil {
			return err
		}
		a.save(run)
		return output(c, run, formatPackagesCLI)
	})
}

func searchMain(args []string) error {
	var c common
	fs := newFlagSet("search", &c)
	count := fs.Int("count", 0, "maximum number of results")
	_ = fs.Parse(args)
	query, err := requiredArg(fs, "query")
	if err != nil {
		return err
	}

	return withApp(c.timeout, func(ctx context.Context, a *app) error {
		run, err := a.engine.Search(ctx, workflow.SearchQuery{Query: query, Source: c.source, Count: *count})
		if err != nil {
			return err
		}
		a.save(run)
		return output(c, run, formatPackagesCLI)
	})
}

func upgradesMain(args []string) error {
	var c common
	fs := newFlagSet("upgrades", &c)
	_ = fs.Parse(args)
	if fs.NArg() != 0 {
		return usagef("upgrades: unexpected arguments")
	}

	return withApp(c.timeout, func(ctx context.Context, a *app) error {
		run, err := a.engine.Upgrades(ctx, c.source)
		if err != nil {
			return err
		}
		a.save(run)
		return output(c, run, formatPackagesCLI)
	})
}

func sourcesMain(args []string) error {
	var c common
	fs := newFlagSet("sources", &c)
	_ = fs.Parse(args)
	name, err := optionalArg(fs)
	if err != nil {
		return err
	}

	return withApp(c.timeout, func(ctx context.Context, a *app) error {
		run, err := a.engine.Sources(ctx, name)
		if err != nil {
			return err
		}
		a.save(run)
		return output(c, run, formatSourcesCLI)
	})
}

// --- upgrade / install / uninstall / repair ---

func changeMain(cmd string, args []string) error {
	var c common
	fs := newFlagSet(cmd, &c)
	silent := fs.Bool("silent", false, "request a silent installer run")
	exact := fs.Bool("exact", false, "match the id exactly")
	accept := fs.Bool("accept", false, "accept package agreements")
	var version *string
	var includeUnknown *bool
	switch cmd {
	case "install":
		version = fs.String("version", "", "version to install")
	case "upgrade":
		includeUnknown = fs.Bool("include-unknown", false, "upgrade packages whose installed version is unknown")
	}
	_ = fs.Parse(args)
	id, err := requiredArg(fs, "package id")
	if err != nil {
		return err
	}

	ref := workflow.PackageRef{ID: id, Source: c.source}
	if version != nil {
		ref.Version = *version
	}
	opts := workflow.ChangeOptions{Silent: *silent, Exact: *exact, AcceptAgreements: *accept}
	if includeUnknown != nil {
		opts.IncludeUnknown = *includeUnknown
	}

	return withApp(c.timeout, func(ctx context.Context, a *app) error {
		fn := map[string]func(context.Context, workflow.PackageRef, workflow.ChangeOptions) (*workflow.Run, error){
			"upgrade":   a.engine.Upgrade,
			"install":   a.engine.Install,
			"uninstall": a.engine.Uninstall,
			"repair":    a.engine.Repair,
		}[cmd]
		run, err := fn(ctx, ref, opts)
		if err != nil {
			return err
		}
		a.save(run)
		return output(c, run, formatChangeCLI)
	})
}

// --- validate ---

func validateMain(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	jsonFlag := fs.Bool("json", false, "output the verdict as JSON")
	_ = fs.Parse(args)
	if fs.NArg() != 2 {
		return usagef("validate: expected <context> <value>")
	}
	ctx, ok := validate.ParseContext(fs.Arg(0))
	if !ok {
		return usagef("validate: unknown context %q", fs.Arg(0))
	}

	v := validate.Default()
	verdict := v.Validate(fs.Arg(1), ctx)
	if *jsonFlag {
		if err := writeJSON(verdict); err != nil {
			return err
		}
	} else {
		fmt.Print(formatVerdictCLI(ctx, verdict))
	}
	if !verdict.Accepted {
		return errRejected
	}
	return nil
}

// --- inspect ---

func inspectMain(args []string) error {
	var c common
	fs := newFlagSet("inspect", &c)
	_ = fs.Parse(args)
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return usagef("inspect: expected <run-id> [package]")
	}
	runID, pkg := fs.Arg(0), fs.Arg(1)

	return withApp(c.timeout, func(ctx context.Context, a *app) error {
		result, err := a.store.Load(runID)
		if err != nil {
			return fmt.Errorf("loading run %s: %w", runID, err)
		}
		if pkg != "" {
			result.Packages = report.ByPackage(result, pkg)
		}
		if c.json {
			return writeJSON(result)
		}
		fmt.Print(formatInspectCLI(result))
		return nil
	})
}

func output(c common, run *workflow.Run, format func(*workflow.Run) string) error {
	if c.json {
		return writeJSON(run.Record())
	}
	fmt.Print(format(run))
	return nil
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
