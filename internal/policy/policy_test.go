package policy

import (
	"errors"
	"reflect"
	"testing"

	"github.com/deixis/pkgguard/internal/validate"
)

func TestBuildIntent_ListByID(t *testing.T) {
	p := Default()
	intent, err := p.BuildIntent(List, []Arg{
		Flag("--id", "Microsoft.PowerShell", validate.PackageIdentifier),
		Switch("--exact"),
		Switch("--accept-source-agreements"),
	})
	if err != nil {
		t.Fatalf("BuildIntent: %v", err)
	}
	want := []string{"list", "--id", "Microsoft.PowerShell", "--exact", "--accept-source-agreements"}
	if got := intent.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("Args = %q, want %q", got, want)
	}
	if intent.Operation() != List {
		t.Errorf("Operation = %s, want list", intent.Operation())
	}
}

func TestBuildIntent_ValueWithSpacesIsOneToken(t *testing.T) {
	intent, err := Default().BuildIntent(Search, []Arg{
		Flag("-q", "visual studio code", validate.SearchTerm),
	})
	if err != nil {
		t.Fatalf("BuildIntent: %v", err)
	}
	want := []string{"search", "-q", "visual studio code"}
	if got := intent.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("Args = %q, want %q", got, want)
	}
}

func TestBuildIntent_ArgsIsCopy(t *testing.T) {
	intent, err := Default().BuildIntent(List, nil)
	if err != nil {
		t.Fatal(err)
	}
	a := intent.Args()
	a[0] = "uninstall"
	if intent.Args()[0] != "list" {
		t.Error("mutating Args() changed the intent")
	}
}

func TestBuildIntent_SearchRejectsOtherFlags(t *testing.T) {
	p := Default()
	for _, f := range []string{"--id", "--name", "--exact", "--silent", "--query", "--version", "--override", "--location"} {
		var arg Arg
		if f == "--exact" || f == "--silent" {
			arg = Switch(f)
		} else {
			arg = Flag(f, "x", validate.GenericArgument)
		}
		_, err := p.BuildIntent(Search, []Arg{arg})
		var unknown *UnknownParameterError
		if !errors.As(err, &unknown) {
			t.Errorf("search %s: err = %v, want UnknownParameterError", f, err)
			continue
		}
		if unknown.Param != f {
			t.Errorf("Param = %q, want %q", unknown.Param, f)
		}
	}
	for _, f := range []string{"-q", "--source", "--count"} {
		if !p.Allows(Search, f) {
			t.Errorf("search does not allow %s", f)
		}
	}
	if got, want := p.Flags(Search), []string{"--count", "--source", "-q"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Flags(search) = %v, want %v", got, want)
	}
}

func TestBuildIntent_Aliases(t *testing.T) {
	intent, err := Default().BuildIntent(List, []Arg{Flag("--query", "git", validate.SearchTerm)})
	if err != nil {
		t.Fatal(err)
	}
	// Aliases are emitted under the canonical name.
	if got := intent.Args(); got[1] != "-q" {
		t.Errorf("Args = %q, want canonical -q", got)
	}
}

func TestBuildIntent_DangerousValue(t *testing.T) {
	_, err := Default().BuildIntent(Install, []Arg{
		Flag("--id", "Foo; rm -rf /", validate.PackageIdentifier),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Reason != validate.DangerousPattern || verr.Rule != "shell-metacharacters" {
		t.Errorf("got %s/%s, want DangerousPattern/shell-metacharacters", verr.Reason, verr.Rule)
	}
	if verr.Param != "--id" {
		t.Errorf("Param = %q, want --id", verr.Param)
	}
}

func TestBuildIntent_DeclaredContextMismatch(t *testing.T) {
	_, err := Default().BuildIntent(Upgrade, []Arg{
		Flag("--id", "Git.Git", validate.SearchTerm),
	})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != validate.ContextMismatch {
		t.Fatalf("err = %v, want ContextMismatch", err)
	}
}

func TestBuildIntent_CountFormat(t *testing.T) {
	p := Default()
	if _, err := p.BuildIntent(Search, []Arg{Flag("--count", "25", validate.GenericArgument)}); err != nil {
		t.Fatalf("count 25: %v", err)
	}
	_, err := p.BuildIntent(Search, []Arg{Flag("--count", "lots", validate.GenericArgument)})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != FormatMismatch {
		t.Fatalf("err = %v, want FormatMismatch", err)
	}
}

func TestBuildIntent_SwitchAndValueShape(t *testing.T) {
	p := Default()
	_, err := p.BuildIntent(Upgrade, []Arg{{Flag: "--silent", Value: "yes", Context: validate.GenericArgument}})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != UnexpectedValue {
		t.Errorf("switch with value: err = %v, want UnexpectedValue", err)
	}
	_, err = p.BuildIntent(Upgrade, []Arg{{Flag: "--id", Context: validate.PackageIdentifier}})
	if !errors.As(err, &verr) || verr.Reason != MissingValue {
		t.Errorf("valued flag without value: err = %v, want MissingValue", err)
	}
}

func TestBuildIntent_PositionalNotPermitted(t *testing.T) {
	_, err := Default().BuildIntent(Install, []Arg{Positional("Git.Git", validate.PackageIdentifier)})
	var unknown *UnknownParameterError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownParameterError", err)
	}
}

func TestBuildIntent_UnknownOperation(t *testing.T) {
	_, err := Default().BuildIntent(Operation("export"), nil)
	var unknown *UnknownParameterError
	if !errors.As(err, &unknown) {
		t.Fatalf("err = %v, want UnknownParameterError", err)
	}
	if got, want := err.Error(), `unknown operation "export"`; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestBuildIntent_SourceVerb(t *testing.T) {
	intent, err := Default().BuildIntent(Source, []Arg{Flag("--name", "winget", validate.SourceName)})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"source", "list", "--name", "winget"}
	if got := intent.Args(); !reflect.DeepEqual(got, want) {
		t.Errorf("Args = %q, want %q", got, want)
	}
}

func TestBuildIntent_CustomPositional(t *testing.T) {
	generic := validate.GenericArgument
	p := New(nil, OperationSpec{Operation: List, Positional: &generic})
	intent, err := p.BuildIntent(List, []Arg{Positional("5", validate.GenericArgument)})
	if err != nil {
		t.Fatal(err)
	}
	if got := intent.Args(); !reflect.DeepEqual(got, []string{"5"}) {
		t.Errorf("Args = %q, want [5]", got)
	}
}

func TestPolicy_Without(t *testing.T) {
	p := Default().Without(Uninstall, Repair)
	if _, ok := p.Spec(Uninstall); ok {
		t.Error("uninstall still present")
	}
	if _, ok := p.Spec(List); !ok {
		t.Error("list removed")
	}
	if _, err := p.BuildIntent(Repair, nil); err == nil {
		t.Error("repair allowed after Without")
	}
}

func TestValidationError_DoesNotEchoValue(t *testing.T) {
	_, err := Default().BuildIntent(List, []Arg{Flag("--id", "evil|marker", validate.PackageIdentifier)})
	if err == nil {
		t.Fatal("expected error")
	}
	if got := err.Error(); got != "list: invalid --id: DangerousPattern (shell-metacharacters)" {
		t.Errorf("Error() = %q", got)
	}
}

func TestParseOperation(t *testing.T) {
	for _, op := range Operations {
		got, ok := ParseOperation(string(op))
		if !ok || got != op {
			t.Errorf("ParseOperation(%q) = %v, %v", op, got, ok)
		}
	}
	if _, ok := ParseOperation("export"); ok {
		t.Error("ParseOperation(export) ok = true")
	}
}

func TestBuildIntent_FlagLikeValue(t *testing.T) {
	tests := []struct {
		op   Operation
		arg  Arg
		flag string
	}{
		{Install, Flag("--id", "--force", validate.PackageIdentifier), "--id"},
		{Upgrade, Flag("--id", "--all", validate.PackageIdentifier), "--id"},
		{Install, Flag("--version", "--override=x", validate.GenericArgument), "--version"},
		{Search, Flag("-q", "--accept-source-agreements", validate.SearchTerm), "-q"},
		{List, Flag("--name", " -h", validate.SearchTerm), "--name"},
	}
	for _, tt := range tests {
		intent, err := Default().BuildIntent(tt.op, []Arg{tt.arg})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("%s %s: argv %q accepted, want rejection", tt.op, tt.flag, intent.Args())
			continue
		}
		if verr.Reason != FlagLikeValue || verr.Param != tt.flag {
			t.Errorf("%s %s: err = %v, want FlagLikeValue", tt.op, tt.flag, err)
		}
	}

	// A dash inside a value is fine.
	if _, err := Default().BuildIntent(Install, []Arg{Flag("--id", "vim.vim-nightly", validate.PackageIdentifier)}); err != nil {
		t.Errorf("BuildIntent: %v", err)
	}
}
