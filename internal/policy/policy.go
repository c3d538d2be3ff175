// Package policy maps each package-manager operation to the flags it may
// carry and assembles validated argument vectors. A Policy is an explicit
// value: callers build one (usually with Default) and pass it to whatever
// needs it, so tests can substitute stricter or looser tables.
package policy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/deixis/pkgguard/internal/validate"
)

// Operation is the closed set of package-manager verbs.
type Operation string

const (
	List      Operation = "list"
	Upgrade   Operation = "upgrade"
	Install   Operation = "install"
	Uninstall Operation = "uninstall"
	Repair    Operation = "repair"
	Search    Operation = "search"
	Source    Operation = "source"
)

// Operations lists every operation in a stable order.
var Operations = []Operation{List, Upgrade, Install, Uninstall, Repair, Search, Source}

// ParseOperation returns the Operation named by s.
func ParseOperation(s string) (Operation, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, op := range Operations {
		if string(op) == s {
			return op, true
		}
	}
	return "", false
}

// FlagSpec describes one permitted flag. A nil Value makes it a switch.
type FlagSpec struct {
	Name    string
	Aliases []string
	Value   *validate.Context
	// Pattern further restricts the value after validation (e.g. digits only).
	Pattern *regexp.Regexp
}

// OperationSpec is the whitelist for one operation.
type OperationSpec struct {
	Operation Operation
	// Verb is the leading argv tokens (e.g. "source", "list").
	Verb  []string
	Flags []FlagSpec
	// Positional, if set, permits bare values validated in this context.
	Positional *validate.Context
}

// Policy is an immutable operation table plus the validator used for values.
type Policy struct {
	validator *validate.Validator
	specs     map[Operation]*compiledSpec
}

type compiledSpec struct {
	spec  OperationSpec
	flags map[string]*FlagSpec // keyed by name and every alias
}

// New builds a Policy from specs. A later spec for the same operation
// replaces an earlier one.
func New(v *validate.Validator, specs ...OperationSpec) *Policy {
	if v == nil {
		v = validate.Default()
	}
	p := &Policy{
		validator: v,
		specs:     make(map[Operation]*compiledSpec, len(specs)),
	}
	for _, s := range specs {
		cs := &compiledSpec{spec: s, flags: make(map[string]*FlagSpec)}
		for i := range s.Flags {
			f := &cs.spec.Flags[i]
			cs.flags[f.Name] = f
			for _, a := range f.Aliases {
				cs.flags[a] = f
			}
		}
		p.specs[s.Operation] = cs
	}
	return p
}

// Validator returns the validator the policy checks values with.
func (p *Policy) Validator() *validate.Validator {
	return p.validator
}

// Spec returns the whitelist for op.
func (p *Policy) Spec(op Operation) (OperationSpec, bool) {
	cs, ok := p.specs[op]
	if !ok {
		return OperationSpec{}, false
	}
	return cs.spec, true
}

// Allows reports whether flag is permitted for op.
func (p *Policy) Allows(op Operation, flag string) bool {
	cs, ok := p.specs[op]
	if !ok {
		return false
	}
	_, ok = cs.flags[flag]
	return ok
}

// Flags returns the canonical flag names permitted for op, sorted.
func (p *Policy) Flags(op Operation) []string {
	cs, ok := p.specs[op]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(cs.spec.Flags))
	for _, f := range cs.spec.Flags {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// Without returns a copy of p with the given operations removed. It can
// only narrow a policy, never widen it.
func (p *Policy) Without(ops ...Operation) *Policy {
	drop := make(map[Operation]bool, len(ops))
	for _, op := range ops {
		drop[op] = true
	}
	var specs []OperationSpec
	for _, op := range Operations {
		if cs, ok := p.specs[op]; ok && !drop[op] {
			specs = append(specs, cs.spec)
		}
	}
	return New(p.validator, specs...)
}

// Arg is one caller-supplied argument. Flag is empty for a positional
// value; Value is empty for a switch. Context is the caller's declaration
// of what Value is.
type Arg struct {
	Flag    string
	Value   string
	Context validate.Context
}

// Flag is a flag carrying a value.
func Flag(name, value string, ctx validate.Context) Arg {
	return Arg{Flag: name, Value: value, Context: ctx}
}

// Switch is a flag without a value.
func Switch(name string) Arg {
	return Arg{Flag: name}
}

// Positional is a bare value.
func Positional(value string, ctx validate.Context) Arg {
	return Arg{Value: value, Context: ctx}
}

func (a Arg) String() string {
	if a.Flag == "" {
		return "<positional>"
	}
	return a.Flag
}

// Intent is a fully validated command. Its argv holds one token per
// element and is never re-tokenised downstream.
type Intent struct {
	op   Operation
	argv []string
}

// Operation returns the intent's operation.
func (i Intent) Operation() Operation {
	return i.op
}

// Args returns a copy of the argument vector, verb first.
func (i Intent) Args() []string {
	return append([]string(nil), i.argv...)
}

func (i Intent) String() string {
	return fmt.Sprintf("%s %v", i.op, i.argv)
}

// BuildIntent validates args against the spec for op and assembles the
// argument vector in the caller's order.
func (p *Policy) BuildIntent(op Operation, args []Arg) (Intent, error) {
	cs, ok := p.specs[op]
	if !ok {
		return Intent{}, &UnknownParameterError{Operation: op, Param: string(op)}
	}

	argv := append([]string(nil), cs.spec.Verb...)
	for _, a := range args {
		tokens, err := p.resolve(cs, a)
		if err != nil {
			return Intent{}, err
		}
		argv = append(argv, tokens...)
	}
	return Intent{op: op, argv: argv}, nil
}

func (p *Policy) resolve(cs *compiledSpec, a Arg) ([]string, error) {
	op := cs.spec.Operation

	if a.Flag == "" {
		if cs.spec.Positional == nil {
			return nil, &UnknownParameterError{Operation: op, Param: a.String()}
		}
		value, err := p.check(op, a, *cs.spec.Positional, nil)
		if err != nil {
			return nil, err
		}
		return []string{value}, nil
	}

	f, ok := cs.flags[a.Flag]
	if !ok {
		return nil, &UnknownParameterError{Operation: op, Param: a.Flag}
	}

	if f.Value == nil {
		if a.Value != "" {
			return nil, &ValidationError{Operation: op, Param: a.Flag, Reason: UnexpectedValue}
		}
		return []string{f.Name}, nil
	}

	if a.Value == "" {
		return nil, &ValidationError{Operation: op, Param: a.Flag, Reason: MissingValue}
	}
	value, err := p.check(op, a, *f.Value, f.Pattern)
	if err != nil {
		return nil, err
	}
	return []string{f.Name, value}, nil
}

func (p *Policy) check(op Operation, a Arg, want validate.Context, pattern *regexp.Regexp) (string, error) {
	if a.Context != want {
		return "", &ValidationError{Operation: op, Param: a.String(), Reason: validate.ContextMismatch}
	}
	verdict := p.validator.Validate(a.Value, want)
	if !verdict.Accepted {
		return "", &ValidationError{Operation: op, Param: a.String(), Reason: verdict.Reason, Rule: verdict.Rule}
	}
	// Every value is its own argv token, so one that starts with a dash
	// would reach the binary as an option the table never lists.
	if strings.HasPrefix(verdict.Sanitized, "-") {
		return "", &ValidationError{Operation: op, Param: a.String(), Reason: FlagLikeValue}
	}
	if pattern != nil && !pattern.MatchString(verdict.Sanitized) {
		return "", &ValidationError{Operation: op, Param: a.String(), Reason: FormatMismatch}
	}
	return verdict.Sanitized, nil
}
