package livescreen

import (
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/padding"
)

// ansiTerminators lists the CSI final bytes this engine understands:
// SGR (m), erase-in-line/display (K, J), cursor position (H), and
// cursor motion (A, B, C, D). Anything else is treated as plain text,
// which is fine: the renderer never emits other sequences and a stray
// escape from caller content just measures as zero-width text instead
// of a recognized control sequence.
const ansiTerminators = "mKJHABCD"

// scanToken reads one visible rune, or one full "ESC [ params terminator"
// escape sequence, starting at s[i]. It returns the token text and the
// index just past it. Escape sequences are always returned whole: a
// terminator is never split from the sequence that precedes it, and a
// sequence is never split from the rune that follows it.
func scanToken(s string, i int) (token string, next int) {
	if s[i] != 0x1b { // ESC
		_, size := utf8.DecodeRuneInString(s[i:])
		if size == 0 {
			size = 1
		}
		return s[i : i+size], i + size
	}
	j := i + 1
	if j < len(s) && s[j] == '[' {
		j++
		for j < len(s) && !strings.ContainsRune(ansiTerminators, rune(s[j])) {
			j++
		}
		if j < len(s) {
			j++ // consume the terminator itself
		}
	} else {
		j++ // bare ESC with nothing recognizable following; consume it alone
	}
	return s[i:j], j
}

// isEscape reports whether a token returned by scanToken is an ANSI
// escape sequence rather than visible text.
func isEscape(tok string) bool {
	return len(tok) > 0 && tok[0] == 0x1b
}

// visibleWidth measures the on-screen column width of s, treating ANSI
// escape sequences as contributing zero width.
func visibleWidth(s string) int {
	total := 0
	for i := 0; i < len(s); {
		tok, next := scanToken(s, i)
		i = next
		if !isEscape(tok) {
			total += runewidth.StringWidth(tok)
		}
	}
	return total
}

// chunkLine splits one line (no embedded "\n") into chunks of at most
// width visible columns each. Escape sequences never count toward width
// and are never separated from the chunk in which they were emitted: a
// sequence encountered right after a chunk boundary sticks to the
// following chunk, and sequences with no visible text after them stay on
// the last chunk. A line whose visible width is an exact multiple of
// width yields exactly that many chunks, with no trailing empty one.
func chunkLine(line string, width int) []string {
	if width <= 0 {
		return []string{line}
	}

	var chunks []string
	var cur strings.Builder
	visible := 0

	flush := func() {
		chunks = append(chunks, cur.String())
		cur.Reset()
		visible = 0
	}

	for i := 0; i < len(line); {
		tok, next := scanToken(line, i)
		i = next

		if isEscape(tok) {
			cur.WriteString(tok)
			continue
		}

		r, _ := utf8.DecodeRuneInString(tok)
		w := runewidth.RuneWidth(r)
		if visible > 0 && visible+w > width {
			flush()
		}
		cur.WriteString(tok)
		visible += w
		if visible >= width {
			flush()
		}
	}
	if visible == 0 && cur.Len() > 0 && len(chunks) > 0 {
		// Only escapes follow the last full chunk: keep them on it.
		chunks[len(chunks)-1] += cur.String()
	} else if cur.Len() > 0 || len(chunks) == 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// renderBlock splits styled content on explicit line breaks and chunks
// each resulting line so that no visible line exceeds width columns. It
// returns the re-joined multi-line styled text and the total line count
// (the block's height). Empty content yields one empty line, height 1.
func renderBlock(content string, width int) (string, int) {
	rawLines := strings.Split(content, "\n")
	var allChunks []string
	for _, line := range rawLines {
		allChunks = append(allChunks, chunkLine(line, width)...)
	}
	return strings.Join(allChunks, "\n"), len(allChunks)
}

// padLine right-pads line with spaces until it occupies width visible
// columns. Lines already at or beyond width are returned unchanged.
func padLine(line string, width int) string {
	if width <= 0 {
		return line
	}
	if visibleWidth(line) == 0 {
		// padding.String leaves a line with no visible text unpadded.
		return line + strings.Repeat(" ", width)
	}
	return padding.String(line, uint(width))
}

// padToWidth right-pads every line of data to width visible columns,
// preserving a trailing "\n" exactly as given rather than treating it as
// an additional, empty line to pad. Used to erase stale characters from
// the region an above-write is about to overwrite.
func padToWidth(data []byte, width int) []byte {
	s := string(data)
	trailingNewline := strings.HasSuffix(s, "\n")
	if trailingNewline {
		s = s[:len(s)-1]
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	out := strings.Join(lines, "\n")
	if trailingNewline {
		out += "\n"
	}
	return []byte(out)
}

// padBox right-pads content's own lines to width and pads the result
// with additional blank, width-padded lines until it occupies exactly
// height rows. It implements a fixed min-width/min-height rectangle with
// no border.
func padBox(content string, width, height int) []string {
	lines := strings.Split(content, "\n")
	out := make([]string, height)
	for i := 0; i < height; i++ {
		if i < len(lines) {
			out[i] = padLine(lines[i], width)
		} else {
			out[i] = padLine("", width)
		}
	}
	return out
}
