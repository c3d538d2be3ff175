package validate

import (
	"html"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// slashLookalikes are separators that NFKC leaves alone but that some
// path handlers treat as real separators.
var slashLookalikes = strings.NewReplacer(
	"\u2215", "/", // division slash
	"\u2044", "/", // fraction slash
	"\u29f8", "/", // big solidus
	"\u2216", `\`, // set minus
	"\u29f9", `\`, // big reverse solidus
)

// candidateForms returns the raw value plus one level of percent-decoding
// and HTML-entity decoding, in both orders, and the compatibility fold of
// each. Duplicates are dropped; the raw value is always first.
func candidateForms(raw string) []string {
	forms := []string{raw}
	seen := map[string]bool{raw: true}
	add := func(s string) {
		if !seen[s] {
			seen[s] = true
			forms = append(forms, s)
		}
	}

	urlDecoded, urlOK := percentDecode(raw)
	if urlOK {
		add(urlDecoded)
		add(html.UnescapeString(urlDecoded))
	}
	htmlDecoded := html.UnescapeString(raw)
	add(htmlDecoded)
	if d, ok := percentDecode(htmlDecoded); ok {
		add(d)
	}

	for _, f := range append([]string(nil), forms...) {
		add(fold(f))
	}
	return forms
}

func percentDecode(s string) (string, bool) {
	if !strings.Contains(s, "%") {
		return s, false
	}
	d, err := url.PathUnescape(s)
	if err != nil {
		return s, false
	}
	return d, true
}

func fold(s string) string {
	return slashLookalikes.Replace(norm.NFKC.String(s))
}
