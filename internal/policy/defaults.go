package policy

import (
	"regexp"

	"github.com/deixis/pkgguard/internal/validate"
)

func ctxPtr(c validate.Context) *validate.Context { return &c }

var (
	countPattern = regexp.MustCompile(`^[0-9]{1,4}$`)

	flagID        = FlagSpec{Name: "--id", Value: ctxPtr(validate.PackageIdentifier)}
	flagName      = FlagSpec{Name: "--name", Value: ctxPtr(validate.SearchTerm)}
	flagQuery     = FlagSpec{Name: "-q", Aliases: []string{"--query"}, Value: ctxPtr(validate.SearchTerm)}
	flagSource    = FlagSpec{Name: "--source", Aliases: []string{"-s"}, Value: ctxPtr(validate.SourceName)}
	flagCount     = FlagSpec{Name: "--count", Aliases: []string{"-n"}, Value: ctxPtr(validate.GenericArgument), Pattern: countPattern}
	flagVersion   = FlagSpec{Name: "--version", Aliases: []string{"-v"}, Value: ctxPtr(validate.GenericArgument)}
	flagExact     = FlagSpec{Name: "--exact", Aliases: []string{"-e"}}
	flagSilent    = FlagSpec{Name: "--silent", Aliases: []string{"-h"}}
	flagSourceAgr = FlagSpec{Name: "--accept-source-agreements"}
	flagPkgAgr    = FlagSpec{Name: "--accept-package-agreements"}
	flagNoPrompt  = FlagSpec{Name: "--disable-interactivity"}
	flagUnknown   = FlagSpec{Name: "--include-unknown", Aliases: []string{"-u"}}
	flagUpgrades  = FlagSpec{Name: "--upgrade-available"}
	flagSrcName   = FlagSpec{Name: "--name", Aliases: []string{"-n"}, Value: ctxPtr(validate.SourceName)}
)

// DefaultSpecs returns the winget whitelist.
func DefaultSpecs() []OperationSpec {
	return []OperationSpec{
		{
			Operation: List,
			Verb:      []string{"list"},
			Flags:     []FlagSpec{flagID, flagName, flagQuery, flagSource, flagCount, flagExact, flagUpgrades, flagSourceAgr, flagNoPrompt},
		},
		{
			Operation: Upgrade,
			Verb:      []string{"upgrade"},
			Flags:     []FlagSpec{flagID, flagSource, flagSilent, flagSourceAgr, flagPkgAgr, flagExact, flagUnknown, flagNoPrompt},
		},
		{
			Operation: Install,
			Verb:      []string{"install"},
			Flags:     []FlagSpec{flagID, flagSource, flagVersion, flagSilent, flagExact, flagSourceAgr, flagPkgAgr, flagNoPrompt},
		},
		{
			Operation: Uninstall,
			Verb:      []string{"uninstall"},
			Flags:     []FlagSpec{flagID, flagSource, flagSilent, flagExact, flagSourceAgr, flagNoPrompt},
		},
		{
			Operation: Repair,
			Verb:      []string{"repair"},
			Flags:     []FlagSpec{flagID, flagSource, flagSilent, flagSourceAgr, flagPkgAgr, flagNoPrompt},
		},
		{
			Operation: Search,
			Verb:      []string{"search"},
			Flags:     []FlagSpec{{Name: "-q", Value: ctxPtr(validate.SearchTerm)}, {Name: "--source", Value: ctxPtr(validate.SourceName)}, {Name: "--count", Value: ctxPtr(validate.GenericArgument), Pattern: countPattern}},
		},
		{
			Operation: Source,
			Verb:      []string{"source", "list"},
			Flags:     []FlagSpec{flagSrcName},
		},
	}
}

// Default returns the winget policy checked by the default validator.
func Default() *Policy {
	return New(validate.Default(), DefaultSpecs()...)
}
