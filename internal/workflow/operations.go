package workflow

import (
	"context"
	"strconv"

	"github.com/deixis/pkgguard/internal/policy"
	"github.com/deixis/pkgguard/internal/validate"
)

// ListQuery selects installed packages. Empty fields are omitted.
type ListQuery struct {
	ID               string
	Name             string
	Query            string
	Source           string
	Count            int
	Exact            bool
	UpgradeAvailable bool
}

// SearchQuery searches the configured sources.
type SearchQuery struct {
	Query  string
	Source string
	Count  int
}

// PackageRef names the package a change operation targets.
type PackageRef struct {
	ID      string
	Source  string
	Version string // install only
}

// ChangeOptions tune upgrade, install, uninstall and repair.
type ChangeOptions struct {
	Silent           bool
	Exact            bool
	AcceptAgreements bool
	IncludeUnknown   bool // upgrade only
}

// List reports installed packages.
func (e *Engine) List(ctx context.Context, q ListQuery) (*Run, error) {
	var args argList
	args.value("--id", q.ID, validate.PackageIdentifier)
	args.value("--name", q.Name, validate.SearchTerm)
	args.value("-q", q.Query, validate.SearchTerm)
	args.value("--source", q.Source, validate.SourceName)
	args.count(q.Count)
	args.flag("--exact", q.Exact)
	args.flag("--upgrade-available", q.UpgradeAvailable)
	args.flag("--accept-source-agreements", true)
	args.flag("--disable-interactivity", true)
	return e.Run(ctx, policy.List, args, q.Source)
}

// Search looks packages up in the configured sources.
func (e *Engine) Search(ctx context.Context, q SearchQuery) (*Run, error) {
	var args argList
	args.value("-q", q.Query, validate.SearchTerm)
	args.value("--source", q.Source, validate.SourceName)
	args.count(q.Count)
	return e.Run(ctx, policy.Search, args, q.Source)
}

// Upgrades reports installed packages with an update available.
func (e *Engine) Upgrades(ctx context.Context, source string) (*Run, error) {
	return e.List(ctx, ListQuery{Source: source, UpgradeAvailable: true})
}

// Upgrade updates one package.
func (e *Engine) Upgrade(ctx context.Context, ref PackageRef, opts ChangeOptions) (*Run, error) {
	return e.Run(ctx, policy.Upgrade, changeArgs(ref, opts), ref.Source)
}

// Install installs one package, optionally at a given version.
func (e *Engine) Install(ctx context.Context, ref PackageRef, opts ChangeOptions) (*Run, error) {
	return e.Run(ctx, policy.Install, changeArgs(ref, opts), ref.Source)
}

// Uninstall removes one package.
func (e *Engine) Uninstall(ctx context.Context, ref PackageRef, opts ChangeOptions) (*Run, error) {
	return e.Run(ctx, policy.Uninstall, changeArgs(ref, opts), ref.Source)
}

// Repair repairs one package.
func (e *Engine) Repair(ctx context.Context, ref PackageRef, opts ChangeOptions) (*Run, error) {
	return e.Run(ctx, policy.Repair, changeArgs(ref, opts), ref.Source)
}

// Sources reports the configured package sources.
func (e *Engine) Sources(ctx context.Context, name string) (*Run, error) {
	var args argList
	args.value("--name", name, validate.SourceName)
	return e.Run(ctx, policy.Source, args, "")
}

// changeArgs maps a change request onto flags. The id is always passed,
// even when empty, so the policy rejects a missing target. Every option
// that is set becomes a flag whatever the operation, and the policy
// rejects the ones the operation does not take.
func changeArgs(ref PackageRef, opts ChangeOptions) argList {
	args := argList{policy.Flag("--id", ref.ID, validate.PackageIdentifier)}
	args.value("--source", ref.Source, validate.SourceName)
	args.flag("--exact", opts.Exact)
	args.flag("--silent", opts.Silent)
	args.flag("--accept-source-agreements", true)
	args.flag("--disable-interactivity", true)
	args.value("--version", ref.Version, validate.GenericArgument)
	args.flag("--accept-package-agreements", opts.AcceptAgreements)
	args.flag("--include-unknown", opts.IncludeUnknown)
	return args
}

// argList accumulates optional arguments, skipping unset ones.
type argList []policy.Arg

func (a *argList) value(flag, v string, ctx validate.Context) {
	if v != "" {
		*a = append(*a, policy.Flag(flag, v, ctx))
	}
}

func (a *argList) flag(flag string, on bool) {
	if on {
		*a = append(*a, policy.Switch(flag))
	}
}

func (a *argList) count(n int) {
	if n > 0 {
		*a = append(*a, policy.Flag("--count", strconv.Itoa(n), validate.GenericArgument))
	}
}
