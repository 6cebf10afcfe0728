package sanitize

import (
	"regexp"
	"strings"
)

// metaCommentary is applied in order; each match is removed.
var metaCommentary = []*regexp.Regexp{
	regexp.MustCompile(`\*\*`),
	regexp.MustCompile(`(?m)^[ \t]*#+[ \t]*`),
	regexp.MustCompile(`(?i)^\s*(sure|certainly|of course|absolutely)[!,.]\s*`),
	regexp.MustCompile(`(?i)^\s*here(?:'s| is) (?:a|an|the|your)\b[^:\n]*:\s*`),
	regexp.MustCompile(`(?i)^\s*(?:summary|explanation)\s*:\s*`),
	regexp.MustCompile(`(?i)\s*(?:i hope (?:this|that) helps|let me know if)[^\n]*$`),
	regexp.MustCompile(`(?i)\s*(?:feel free to ask)[^\n]*$`),
}

var blankRunRX = regexp.MustCompile(`[ \t]{2,}`)

// StripMetaCommentary removes boilerplate preambles and sign-offs that models
// wrap around plain-text answers. It does no structural validation.
func StripMetaCommentary(text string) string {
	out := strings.TrimSpace(text)
	for _, rx := range metaCommentary {
		out = rx.ReplaceAllString(out, "")
	}
	out = blankRunRX.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}
