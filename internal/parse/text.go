package parse

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]|\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)|\x1b[@-Z\\-_]`)

// cleanLines splits output into lines, resolving carriage-return
// overwrites and removing terminal escape sequences.
func cleanLines(output string) []string {
	raw := strings.Split(output, "\n")
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if i := strings.LastIndexByte(l, '\r'); i >= 0 {
			l = l[i+1:]
		}
		l = ansiEscape.ReplaceAllString(l, "")
		lines = append(lines, strings.TrimRightFunc(l, unicode.IsSpace))
	}
	return lines
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// cellLine is a line measured in terminal display cells.
type cellLine struct {
	runes []rune
	start []int // start cell of each rune
	width int
}

func measure(s string) cellLine {
	l := cellLine{runes: []rune(s)}
	l.start = make([]int, len(l.runes))
	cell := 0
	for i, r := range l.runes {
		l.start[i] = cell
		cell += runeCells(r)
	}
	l.width = cell
	return l
}

func runeCells(r rune) int {
	if r == '\t' {
		return 1
	}
	if unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Me, r) {
		return 0
	}
	switch width.LookupRune(r).Kind() {
	case width.EastAsianWide, width.EastAsianFullwidth:
		return 2
	}
	return 1
}

// spaceAt reports whether the given cell is blank. Cells outside the line
// are blank.
func (l cellLine) spaceAt(cell int) bool {
	if cell < 0 || cell >= l.width {
		return true
	}
	// Last rune starting at or before cell occupies it.
	i := sort.Search(len(l.start), func(i int) bool { return l.start[i] > cell }) - 1
	if i < 0 {
		return true
	}
	return unicode.IsSpace(l.runes[i])
}

// slice returns the runes starting in [from, to). A negative to means
// the end of the line.
func (l cellLine) slice(from, to int) string {
	var b strings.Builder
	for i, r := range l.runes {
		c := l.start[i]
		if c < from {
			continue
		}
		if to >= 0 && c >= to {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// tokens returns the non-blank runs of the line with their start cells.
func (l cellLine) tokens() ([]string, []int) {
	var (
		words  []string
		starts []int
		cur    []rune
	)
	for i, r := range l.runes {
		if unicode.IsSpace(r) {
			if len(cur) > 0 {
				words = append(words, string(cur))
				cur = cur[:0]
			}
			continue
		}
		if len(cur) == 0 {
			starts = append(starts, l.start[i])
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		words = append(words, string(cur))
	}
	return words, starts
}

func isDash(r rune) bool {
	switch r {
	case '-', '=', '_', '\u2010', '\u2012', '\u2013', '\u2014', '\u2015', '\u2500', '\u2501', '\u2550':
		return true
	}
	return false
}

// isSeparator reports whether s is a rule line made of dash-like runes.
func isSeparator(s string) bool {
	n := 0
	for _, r := range s {
		switch {
		case isDash(r):
			n++
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return n >= 3
}

var columnGap = regexp.MustCompile(`\S\s{2,}\S`)

// isProse reports whether s reads as a sentence rather than a table row:
// it ends with '.' or ':' and has no column gap.
func isProse(s string) bool {
	t := strings.TrimSpace(s)
	if !strings.HasSuffix(t, ".") && !strings.HasSuffix(t, ":") {
		return false
	}
	return !columnGap.MatchString(t)
}

var gapSplit = regexp.MustCompile(`\s{2,}`)
