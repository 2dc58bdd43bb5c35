/**
 * OCR text cleanup
 *
 * Raw tesseract output on card scans carries replacement characters,
 * control bytes, and garbage runs from photo/hologram areas. CleanText
 * normalizes that into something the keyword matcher can search.
 */

package ocr

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CleanText strips control characters, replacement-character runs, and
// excess whitespace from raw OCR output. The '<' delimiter is preserved as
// it carries MRZ signal.
func CleanText(text string) string {
	if text == "" {
		return ""
	}

	text = norm.NFC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar:
			// drop
		case r == '\n' || r == '\t' || r == ' ':
			b.WriteRune(r)
		case unicode.IsControl(r):
			// drop
		default:
			b.WriteRune(r)
		}
	}
	text = b.String()

	// Runs of bullets or question marks are OCR garbage, not content.
	text = stripRuns(text, '?', 4)
	text = stripRuns(text, '•', 4)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// stripRuns removes every run of ch at least minRun long.
func stripRuns(text string, ch rune, minRun int) string {
	var b strings.Builder
	b.Grow(len(text))
	run := 0
	flush := func() {
		if run > 0 && run < minRun {
			b.WriteString(strings.Repeat(string(ch), run))
		}
		run = 0
	}
	for _, r := range text {
		if r == ch {
			run++
			continue
		}
		flush()
		b.WriteRune(r)
	}
	flush()
	return b.String()
}
