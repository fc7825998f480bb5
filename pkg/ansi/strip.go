// Package ansi removes terminal escape sequences from text.
// The lookup API colors its plain-text responses with a mix of real
// ESC-prefixed sequences and literal "[0;36m" text, so both forms are
// stripped before any line is interpreted.
package ansi

import "regexp"

var (
	// csiSeq matches CSI sequences such as "\x1b[0;36m".
	csiSeq = regexp.MustCompile(`\x1b\[[0-?]*[ -/]*[@-~]`)

	// escSeq matches the remaining two-byte escape sequence forms.
	escSeq = regexp.MustCompile(`\x1b[@-Z\\-_][0-?]*[ -/]*[@-~]`)

	// charsetSeq matches character set selection sequences such as "\x1b(B".
	charsetSeq = regexp.MustCompile(`\x1b\([AB0-2]`)

	// literalSeq matches the color codes the API emits as plain text,
	// without a leading ESC byte, such as "[0;36m" or "[0m".
	literalSeq = regexp.MustCompile(`\[\d+(?:;\d+)*m`)
)

// Strip removes all recognized escape sequence forms from s.
func Strip(s string) string {
	s = csiSeq.ReplaceAllString(s, "")
	s = escSeq.ReplaceAllString(s, "")
	s = charsetSeq.ReplaceAllString(s, "")
	return literalSeq.ReplaceAllString(s, "")
}
