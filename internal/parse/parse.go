// Package parse turns the column-aligned tables printed by the package
// manager into rows. Column boundaries are inferred from the header and
// separator lines of each table rather than assumed, because widths vary
// with locale and terminal size.
package parse

import (
	"fmt"
	"strings"
)

// DefaultScanLimit bounds how many non-blank lines are searched for a header.
const DefaultScanLimit = 50

// Column names a table column.
type Column string

const (
	Name      Column = "Name"
	ID        Column = "Id"
	Version   Column = "Version"
	Available Column = "Available"
	Match     Column = "Match"
	Source    Column = "Source"

	Argument Column = "Argument"
	Explicit Column = "Explicit"
	Type     Column = "Type"
)

// Row is one data line keyed by column.
type Row map[Column]string

// Get returns the value for col, or "" when the table had no such column.
func (r Row) Get(col Column) string {
	return r[col]
}

// Schema says which header keywords form a table and which column keys
// a row.
type Schema struct {
	Known    []Column
	Required []Column
	Key      Column

	// Sparse lists columns that are often blank, in the order they are
	// left empty when a row has fewer fields than the header.
	Sparse []Column
}

var (
	// PackageTable matches list, search and upgrade output.
	PackageTable = Schema{
		Known:    []Column{Name, ID, Version, Available, Match, Source},
		Required: []Column{Name, ID},
		Key:      ID,
		Sparse:   []Column{Available, Match},
	}
	// SourceTable matches source list output.
	SourceTable = Schema{
		Known:    []Column{Name, Argument, Explicit, Type},
		Required: []Column{Name, Argument},
		Key:      Name,
		Sparse:   []Column{Type},
	}
)

// Stage identifies why parsing failed.
type Stage string

const (
	EmptyOutput        Stage = "EmptyOutput"
	HeaderNotFound     Stage = "HeaderNotFound"
	ColumnMisalignment Stage = "ColumnMisalignment"
)

// Failure is returned when output could not be read as a table. It is
// never converted into an empty result.
type Failure struct {
	Stage Stage
	Line  string // offending line, if any
}

func (f *Failure) Error() string {
	if f.Line == "" {
		return "parse: " + string(f.Stage)
	}
	line := f.Line
	if len(line) > 120 {
		line = line[:120] + "..."
	}
	return fmt.Sprintf("parse: %s at %q", f.Stage, line)
}

// Parser reads tables described by Schema.
type Parser struct {
	Schema    Schema
	ScanLimit int
}

// Parse reads package tables with the default scan limit.
func Parse(output string) ([]Row, error) {
	return Parser{Schema: PackageTable}.Parse(output)
}

// Parse returns the data rows of every table in output, in order. A
// table with a header and no rows yields an empty, non-nil slice.
func (p Parser) Parse(output string) ([]Row, error) {
	lines := cleanLines(output)

	first := -1
	for i, l := range lines {
		if !isBlank(l) {
			first = i
			break
		}
	}
	if first < 0 {
		return nil, &Failure{Stage: EmptyOutput}
	}

	limit := p.ScanLimit
	if limit <= 0 {
		limit = DefaultScanLimit
	}
	start, seen := -1, 0
	for i := first; i < len(lines) && seen < limit; i++ {
		if isBlank(lines[i]) {
			continue
		}
		seen++
		if _, ok := p.Schema.header(lines[i]); ok {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, &Failure{Stage: HeaderNotFound, Line: strings.TrimSpace(lines[first])}
	}

	rows := []Row{}
	var tbl *table
	for i := start; i < len(lines); i++ {
		l := lines[i]
		if isBlank(l) {
			continue
		}
		if h, ok := p.Schema.header(l); ok {
			j := nextNonBlank(lines, i+1)
			if j < 0 {
				return nil, &Failure{Stage: ColumnMisalignment, Line: strings.TrimSpace(l)}
			}
			if !isSeparator(lines[j]) {
				return nil, &Failure{Stage: ColumnMisalignment, Line: strings.TrimSpace(lines[j])}
			}
			tbl = newTable(h, measure(lines[j]))
			i = j
			continue
		}
		if isSeparator(l) || isProse(l) {
			continue
		}
		if row, ok := tbl.row(l, p.Schema); ok {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func nextNonBlank(lines []string, from int) int {
	for i := from; i < len(lines); i++ {
		if !isBlank(lines[i]) {
			return i
		}
	}
	return -1
}

// header is a recognised header line.
type header struct {
	cols   []Column
	starts []int
}

// header reports whether line is a header for s: every token is a known
// column, none repeats, and all required columns are present.
func (s Schema) header(line string) (header, bool) {
	words, starts := measure(line).tokens()
	if len(words) < 2 {
		return header{}, false
	}
	seen := make(map[Column]bool, len(words))
	cols := make([]Column, 0, len(words))
	for _, w := range words {
		col, ok := s.lookup(w)
		if !ok || seen[col] {
			return header{}, false
		}
		seen[col] = true
		cols = append(cols, col)
	}
	for _, req := range s.Required {
		if !seen[req] {
			return header{}, false
		}
	}
	return header{cols: cols, starts: starts}, true
}

func (s Schema) lookup(word string) (Column, bool) {
	for _, c := range s.Known {
		if strings.EqualFold(string(c), word) {
			return c, true
		}
	}
	return "", false
}

func (s Schema) required(c Column) bool {
	for _, r := range s.Required {
		if r == c {
			return true
		}
	}
	return false
}

// table holds the column cuts of the current table.
type table struct {
	cols []Column
	cuts []int
}

func newTable(h header, sep cellLine) *table {
	cuts := h.starts
	// A separator broken into one dash run per column is more precise
	// than the header text.
	if _, runs := sep.tokens(); len(runs) == len(h.starts) && len(runs) > 1 {
		cuts = runs
	}
	return &table{cols: h.cols, cuts: append([]int(nil), cuts...)}
}

func (t *table) row(line string, s Schema) (Row, bool) {
	fields, ok := t.aligned(measure(line), s)
	keyIdx := t.index(s.Key)
	if !ok || (keyIdx >= 0 && strings.ContainsFunc(fields[keyIdx], isSpace)) {
		fields = t.split(line, s)
	}
	if keyIdx >= 0 {
		key := fields[keyIdx]
		if key == "" || strings.ContainsFunc(key, isSpace) {
			return nil, false
		}
	}
	row := make(Row, len(t.cols))
	for i, c := range t.cols {
		row[c] = fields[i]
	}
	return row, true
}

// aligned slices l at the table cuts, moving each cut by at most one cell
// onto whitespace. It fails when a cut bounding a required column still
// lands inside a token.
func (t *table) aligned(l cellLine, s Schema) ([]string, bool) {
	cuts := make([]int, len(t.cuts))
	cuts[0] = 0
	for i := 1; i < len(t.cuts); i++ {
		c := t.cuts[i]
		switch {
		case l.spaceAt(c - 1):
		case l.spaceAt(c - 2):
			c--
		case l.spaceAt(c):
			c++
		default:
			if s.required(t.cols[i-1]) || s.required(t.cols[i]) {
				return nil, false
			}
		}
		if c < cuts[i-1] {
			c = cuts[i-1]
		}
		cuts[i] = c
	}

	fields := make([]string, len(cuts))
	for i := range cuts {
		to := -1
		if i+1 < len(cuts) {
			to = cuts[i+1]
		}
		fields[i] = strings.TrimSpace(l.slice(cuts[i], to))
	}
	return fields, true
}

// split is the whitespace fallback. Columns are split on gaps of two or
// more spaces, or on single whitespace runs when the line has no such gap.
// Overflow joins the Name column, or the last column when the table has no
// Name. A short row keeps its fields in order and leaves the columns
// chosen by blanks empty.
func (t *table) split(line string, s Schema) []string {
	n := len(t.cols)
	parts := gapSplit.Split(strings.TrimSpace(line), -1)
	if len(parts) == 1 {
		parts = strings.Fields(line)
	}

	fields := make([]string, n)
	switch {
	case len(parts) == n:
		copy(fields, parts)
	case len(parts) < n:
		skip := t.blanks(s, n-len(parts))
		j := 0
		for i := range fields {
			if skip[i] || j == len(parts) {
				continue
			}
			fields[i] = parts[j]
			j++
		}
	default:
		stretch := t.index(Name)
		if stretch < 0 {
			stretch = n - 1
		}
		extra := len(parts) - n
		copy(fields, parts[:stretch])
		fields[stretch] = strings.Join(parts[stretch:stretch+extra+1], " ")
		copy(fields[stretch+1:], parts[stretch+extra+1:])
	}
	return fields
}

// blanks marks k columns to leave empty: sparse columns first, then
// optional columns from the right, then any column from the right.
func (t *table) blanks(s Schema, k int) []bool {
	skip := make([]bool, len(t.cols))
	mark := func(i int) {
		if k > 0 && i >= 0 && !skip[i] {
			skip[i] = true
			k--
		}
	}
	for _, c := range s.Sparse {
		mark(t.index(c))
	}
	for i := len(t.cols) - 1; i >= 0; i-- {
		if !s.required(t.cols[i]) {
			mark(i)
		}
	}
	for i := len(t.cols) - 1; i >= 0; i-- {
		mark(i)
	}
	return skip
}

func (t *table) index(c Column) int {
	for i, col := range t.cols {
		if col == c {
			return i
		}
	}
	return -1
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t'
}
