package livescreen

import (
	"os"

	"golang.org/x/term"
)

// WidthSource is the external collaborator the engine consumes to learn
// the terminal's current column count. Returning false means no terminal
// is attached.
type WidthSource interface {
	Columns() (int, bool)
}

// TermWidth is the default WidthSource, backed by the file descriptor's
// window size. It is an external collaborator, not part of the core
// renderer: terminal-width detection is explicitly scoped out of the
// engine's own responsibility.
type TermWidth struct {
	Fd uintptr
}

// Columns implements WidthSource.
func (t TermWidth) Columns() (int, bool) {
	w, _, err := term.GetSize(int(t.Fd))
	if err != nil {
		return 0, false
	}
	return w, true
}

func defaultWidthSource() WidthSource {
	return TermWidth{Fd: os.Stdout.Fd()}
}
