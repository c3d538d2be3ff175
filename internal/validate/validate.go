// Package validate classifies untrusted strings before they can reach an
// argument vector. A Validator checks a value against an ordered list of
// named deny rules, applied to the raw value and to its decoded forms, and
// then against an allow pattern selected by the declared Context.
//
// A Validator is immutable once built and is safe for concurrent use.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMaxLength bounds every input, in runes, regardless of context.
const DefaultMaxLength = 260

// Context declares what a value is supposed to be. The caller supplies
// it; the validator never infers it from the value's shape.
type Context int

const (
	PackageIdentifier Context = iota + 1
	SearchTerm
	SourceName
	FilePathSegment
	GenericArgument
)

var contextNames = map[Context]string{
	PackageIdentifier: "package-identifier",
	SearchTerm:        "search-term",
	SourceName:        "source-name",
	FilePathSegment:   "file-path-segment",
	GenericArgument:   "generic-argument",
}

func (c Context) String() string {
	if name, ok := contextNames[c]; ok {
		return name
	}
	return fmt.Sprintf("context(%d)", int(c))
}

// ParseContext maps a context name (as printed by String) back to a Context.
func ParseContext(s string) (Context, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for c, name := range contextNames {
		if name == s {
			return c, true
		}
	}
	return 0, false
}

// Reason explains a verdict.
type Reason string

const (
	None             Reason = ""
	Empty            Reason = "Empty"
	LengthExceeded   Reason = "LengthExceeded"
	DangerousPattern Reason = "DangerousPattern"
	ContextMismatch  Reason = "ContextMismatch"
	InvalidContext   Reason = "InvalidContext"
)

// Verdict is the outcome of validating one value. Rule names the deny rule
// that fired; the matched text is deliberately not carried.
type Verdict struct {
	Accepted  bool   `json:"accepted"`
	Reason    Reason `json:"reason,omitempty"`
	Rule      string `json:"rule,omitempty"`
	Sanitized string `json:"sanitized,omitempty"`
}

// Rule is a single named deny check. Exempt, when set, lets a value
// through in contexts where a match is expected.
type Rule struct {
	Name   string
	Match  func(string) bool
	Exempt func(value string, ctx Context) bool
}

// Validator holds the compiled rule set.
type Validator struct {
	maxLength int
	rules     []Rule
	allow     map[Context]*regexp.Regexp
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxLength overrides DefaultMaxLength.
func WithMaxLength(n int) Option {
	return func(v *Validator) {
		if n > 0 {
			v.maxLength = n
		}
	}
}

// WithRule appends an extra deny rule after the built-in ones.
func WithRule(r Rule) Option {
	return func(v *Validator) {
		v.rules = append(v.rules, r)
	}
}

// New builds a Validator with the built-in rules and allow patterns.
func New(opts ...Option) *Validator {
	v := &Validator{
		maxLength: DefaultMaxLength,
		rules:     defaultRules(),
		allow: map[Context]*regexp.Regexp{
			PackageIdentifier: regexp.MustCompile(`^[A-Za-z0-9._+-]+$`),
			SearchTerm:        regexp.MustCompile(`^[\p{L}\p{N}\p{M} ._+#@,:-]+$`),
			SourceName:        regexp.MustCompile(`^[A-Za-z0-9._-]+$`),
			FilePathSegment:   regexp.MustCompile(`^[\p{L}\p{N}\p{M} ._-]+$`),
			GenericArgument:   regexp.MustCompile(`^[\p{L}\p{N}\p{M} ._+:,=@#-]+$`),
		},
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

var defaultValidator = New()

// Default returns the shared Validator built with no options.
func Default() *Validator {
	return defaultValidator
}

// Rules returns the ordered names of the deny rules.
func (v *Validator) Rules() []string {
	names := make([]string, len(v.rules))
	for i, r := range v.rules {
		names[i] = r.Name
	}
	return names
}

// MaxLength returns the configured length bound in runes.
func (v *Validator) MaxLength() int {
	return v.maxLength
}

// Validate classifies value for the given context. It never panics and
// always returns a verdict.
func (v *Validator) Validate(value string, ctx Context) Verdict {
	allow, ok := v.allow[ctx]
	if !ok {
		return reject(InvalidContext, "")
	}
	if strings.TrimSpace(value) == "" {
		return reject(Empty, "")
	}
	if utf8.RuneCountInString(value) > v.maxLength {
		return reject(LengthExceeded, "")
	}

	forms := candidateForms(value)
	for _, r := range v.rules {
		for _, f := range forms {
			if r.Match(f) && (r.Exempt == nil || !r.Exempt(f, ctx)) {
				return reject(DangerousPattern, r.Name)
			}
		}
	}

	if !allow.MatchString(value) {
		return reject(ContextMismatch, "")
	}
	if ctx == FilePathSegment {
		if t := strings.TrimSpace(value); t == "." || t == ".." {
			return reject(ContextMismatch, "")
		}
	}

	return Verdict{
		Accepted:  true,
		Sanitized: norm.NFC.String(strings.TrimSpace(value)),
	}
}

func reject(reason Reason, rule string) Verdict {
	return Verdict{Reason: reason, Rule: rule}
}
