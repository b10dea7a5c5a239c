package livescreen

import (
	"bytes"

	"github.com/muesli/termenv"
)

// renderResult is the outcome of one tick: the composite bytes to hand to
// the terminal writer in a single call, the updated above-paint-done
// flag, and a closure that must run only after that write has succeeded
// (it replies to put_chars submitters, and that reply must happen after
// the composite write succeeds, never before).
type renderResult struct {
	output     []byte
	aboveDone  bool
	afterWrite func()
}

// sumHeights returns the total row count currently occupied by every
// rendered block.
func sumHeights(store *blockStore) int {
	total := 0
	for _, id := range store.rendered {
		total += store.blocks[id].lastHeight
	}
	return total
}

// renderTick runs phases A, B and C against store and the queued
// above-writes in wb, producing the single composite write for this
// tick. It mutates store (clearing pending state, appending newly
// painted blocks, updating cached content/height) and wb (draining the
// queue), exactly as the actor is expected to apply them.
//
// The overall shape (diff against the previous paint, compute a cursor
// delta, emit one buffer, one write) generalizes a single-viewport diff
// to N independently addressable blocks plus an above-the-fold write
// queue.
func renderTick(store *blockStore, wb *writeBuffer, width int, aboveDone bool) renderResult {
	var segments [][]byte
	phaseARan := false
	afterWrite := func() {}

	// Phase A — flush write_queue.
	if queued := wb.drain(); len(queued) > 0 {
		phaseARan = true
		h := sumHeights(store)
		up := h
		if aboveDone {
			up++
		}

		var buf bytes.Buffer
		out := termenv.NewOutput(&buf)
		if up > 0 {
			out.CursorUp(up)
			for _, req := range queued {
				buf.Write(padToWidth(req.data, width))
			}
		} else {
			for _, req := range queued {
				buf.Write(req.data)
			}
		}
		segments = append(segments, buf.Bytes())
		aboveDone = true

		afterWrite = func() {
			for _, req := range queued {
				if req.reply != nil {
					req.reply <- nil
				}
			}
		}
	}

	// Phase B — redraw updated (and invalidated) blocks.
	changed := store.takePending()
	totalBefore := sumHeights(store) // computed before any repaint below mutates heights
	var body bytes.Buffer
	bodyOut := termenv.NewOutput(&body)
	force := phaseARan
	pendingOffset := 0
	emittedAny := false

	for _, id := range store.rendered {
		b := store.blocks[id]
		oldHeight := b.lastHeight
		_, isChanged := changed[id]

		if force || isChanged {
			if pendingOffset > 0 {
				bodyOut.CursorDown(pendingOffset)
				pendingOffset = 0
			}
			content := b.render(b.state)
			rendered, newHeight := renderBlock(content, width)
			maxHeight := newHeight
			if oldHeight > maxHeight {
				maxHeight = oldHeight
			}
			for _, line := range padBox(rendered, width, maxHeight) {
				body.WriteString(line)
				body.WriteString("\n")
			}
			b.lastContent = rendered
			b.lastHeight = maxHeight
			if newHeight > oldHeight {
				force = true // cascading invalidation: later blocks shifted down
			}
			emittedAny = true
		} else {
			pendingOffset += oldHeight
		}
	}
	trailingOffset := pendingOffset

	if emittedAny {
		var full bytes.Buffer
		fullOut := termenv.NewOutput(&full)
		if !phaseARan && totalBefore > 0 {
			fullOut.CursorUp(totalBefore)
		}
		full.Write(body.Bytes())
		if trailingOffset > 0 {
			fullOut.CursorDown(trailingOffset)
		}
		segments = append(segments, full.Bytes())
	}

	// Phase C — paint newly added blocks; they land at the bottom, where
	// the cursor already sits, so no cursor motion is required.
	if len(store.pending) > 0 {
		var buf bytes.Buffer
		for _, id := range store.pending {
			b := store.blocks[id]
			content := b.render(b.state)
			rendered, height := renderBlock(content, width)
			b.lastContent = rendered
			b.lastHeight = height
			for _, line := range padBox(rendered, width, height) {
				buf.WriteString(line)
				buf.WriteString("\n")
			}
			store.rendered = append(store.rendered, id)
		}
		store.pending = nil
		segments = append(segments, buf.Bytes())
	}

	return renderResult{
		output:     joinPhases(segments),
		aboveDone:  aboveDone,
		afterWrite: afterWrite,
	}
}

// joinPhases concatenates the non-empty phase segments of one tick into
// the single composite write so that every phase starts at the beginning
// of a line: a newline is inserted before the next phase's content only
// when the previous segment leaves the cursor mid-line, rather than
// leaving the separation to however each phase's own content happens to
// end.
func joinPhases(segments [][]byte) []byte {
	var out bytes.Buffer
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if out.Len() > 0 && !endsAtLineStart(out.Bytes()) {
			out.WriteByte('\n')
		}
		out.Write(seg)
	}
	return out.Bytes()
}

// endsAtLineStart reports whether b leaves the cursor at the start of a
// line: it ends in "\n", or in a cursor-down sequence (Phase B's skip
// over trailing untouched blocks) written right after a "\n".
func endsAtLineStart(b []byte) bool {
	if b[len(b)-1] == '\n' {
		return true
	}
	i := bytes.LastIndexByte(b, 0x1b)
	if i <= 0 || b[i-1] != '\n' {
		return false
	}
	tok, next := scanToken(string(b), i)
	return next == len(b) && tok[len(tok)-1] == 'B'
}
