package navigation

import (
	"regexp"
	"strings"
)

var (
	directiveRe    = regexp.MustCompile(`\[NAV:\s*(.+?)\s*\]`)
	anyDirectiveRe = regexp.MustCompile(`\[NAV:.+?\]`)
)

// ExtractDirective returns the reference text of the first [NAV:<ref>]
// directive embedded in generated text.
func ExtractDirective(text string) (string, bool) {
	m := directiveRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// StripDirectives removes every navigation directive so the text can be shown
// or spoken.
func StripDirectives(text string) string {
	return strings.TrimSpace(anyDirectiveRe.ReplaceAllString(text, ""))
}
