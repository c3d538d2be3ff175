package validate

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	controlChars = regexp.MustCompile(`[\x00-\x1f\x7f\x{200B}-\x{200F}\x{202A}-\x{202E}\x{2066}-\x{2069}\x{FEFF}]`)
	traversal    = regexp.MustCompile(`\.\.[\\/]|[\\/]\.\.(?:$|[\\/])`)
	markup       = regexp.MustCompile(`(?i)<\s*/?\s*script|javascript\s*:|vbscript\s*:|data\s*:\s*text/html|\{\{|\}\}|\$\{|<%|%>`)
	shellMeta    = regexp.MustCompile("[;&|><$`(){}\\\\\"']")
)

// dangerousTokens are commands and interpreters that must not appear as a
// word in a value. A lone word is still allowed where the context is an
// identifier, since package and source names such as eval or node exist.
var dangerousTokens = map[string]bool{
	"exec": true, "eval": true, "system": true, "iex": true,
	"invoke-expression": true, "start-process": true,
	"sh": true, "bash": true, "zsh": true, "cmd": true,
	"powershell": true, "pwsh": true, "python": true, "python3": true,
	"perl": true, "ruby": true, "node": true, "wscript": true,
	"cscript": true, "mshta": true, "rundll32": true, "regsvr32": true,
}

func defaultRules() []Rule {
	return []Rule{
		{Name: "control-characters", Match: controlChars.MatchString},
		{Name: "path-traversal", Match: traversal.MatchString},
		{Name: "markup-injection", Match: markup.MatchString},
		{Name: "shell-metacharacters", Match: shellMeta.MatchString},
		{Name: "dangerous-token", Match: containsDangerousToken, Exempt: lonePackageName},
	}
}

func containsDangerousToken(s string) bool {
	for _, w := range strings.FieldsFunc(s, unicode.IsSpace) {
		w = strings.TrimSuffix(strings.ToLower(w), ".exe")
		if dangerousTokens[w] {
			return true
		}
	}
	return false
}

func lonePackageName(s string, ctx Context) bool {
	if ctx != PackageIdentifier && ctx != SourceName {
		return false
	}
	return len(strings.FieldsFunc(s, unicode.IsSpace)) == 1
}
