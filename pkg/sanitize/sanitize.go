// Package sanitize normalizes prose before persistence: Unicode NFC
// normalization, mojibake cleanup, and system-residue stripping, per
// spec.md §4.5/§4.6 (Agent 9) and Testable Property 8 (idempotence).
//
// The residue patterns are compiled once at package init, the same shape
// as the teacher's masking.CompiledPattern table (pkg/masking/pattern.go):
// a name, a regex, and a replacement, applied in a fixed order.
package sanitize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// residuePattern is one compiled system-residue rule.
type residuePattern struct {
	name        string
	re          *regexp.Regexp
	replacement string
}

// residuePatterns strip leaked system/assistant scaffolding that
// occasionally survives into generated prose (role tags, chain-of-thought
// markers, leftover markdown fences).
var residuePatterns = []residuePattern{
	{"role-tag", regexp.MustCompile(`(?i)^(assistant|system|user)\s*:\s*`), ""},
	{"markdown-fence", regexp.MustCompile("```[a-zA-Z]*"), ""},
	{"thinking-block", regexp.MustCompile(`(?is)<thinking>.*?</thinking>`), ""},
	{"bracketed-meta", regexp.MustCompile(`(?i)\[(end of (chapter|response)|system note)[^\]]*\]`), ""},
}

// mojibakeRe matches the Unicode replacement character and common
// double-encoded UTF-8-as-Latin1 byte sequences ("â€™" for a right
// single quote, etc.).
var mojibakeRe = regexp.MustCompile("�|Ã¢â‚¬â„¢|â€™|â€œ|â€|Â")

var mojibakeReplacements = map[string]string{
	"â€™": "’",
	"â€œ": "“",
	"â€": "”",
	"Â":   "",
}

// Sanitize applies NFC normalization, mojibake cleanup, and residue
// stripping, in that fixed order, so that Sanitize is idempotent:
// Sanitize(Sanitize(s)) == Sanitize(s) (Testable Property 8).
func Sanitize(text string) string {
	out := norm.NFC.String(text)
	out = cleanMojibake(out)
	for _, p := range residuePatterns {
		out = p.re.ReplaceAllString(out, p.replacement)
	}
	out = strings.TrimSpace(out)
	return out
}

func cleanMojibake(s string) string {
	// Longer sequences first: "â€" is a prefix of "â€™" and "â€œ".
	for _, bad := range []string{"â€™", "â€œ", "â€", "Â"} {
		s = strings.ReplaceAll(s, bad, mojibakeReplacements[bad])
	}
	// Anything left matching mojibakeRe after targeted replacement is
	// unrecognized residue; strip it rather than leave visible garbage.
	return mojibakeRe.ReplaceAllString(s, "")
}

// ResidueCount reports how many matches of recognizable mojibake or system
// residue remain in text. Used by the prose release gate's mojibake
// guardrail (spec.md §4.5): "Mojibake: sanitizer residue is zero."
func ResidueCount(text string) int {
	count := len(mojibakeRe.FindAllString(text, -1))
	for _, p := range residuePatterns {
		count += len(p.re.FindAllString(text, -1))
	}
	return count
}
