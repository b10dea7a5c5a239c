package livescreen

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/muesli/termenv"
)

// niceByteStringRepr and compareBuffers give byte-exact failure output
// for ANSI stream assertions.
func niceByteStringRepr(b []byte, hl int) string {
	x := strings.Builder{}
	for i, c := range b {
		if i == hl {
			x.WriteString(
				termenv.
					String(strconv.Quote(string(c))).
					Foreground(termenv.ANSIRed).String(),
			)
		} else {
			x.WriteString(strconv.Quote(string(c)))
		}
		if i != len(b)-1 {
			x.WriteString(", ")
		}
	}
	return x.String()
}

func compareBuffers(t *testing.T, actual, expected []byte) {
	t.Helper()
	if bytes.Equal(actual, expected) {
		return
	}
	m := len(actual)
	if x := len(expected); x < m {
		m = x
	}
	i := 0
	for ; i < m; i++ {
		if actual[i] != expected[i] {
			t.Errorf("first mismatch at idx=%d c=%s", i, strconv.Quote(string(actual[i])))
			break
		}
	}
	t.Errorf("expected buffer to be:\n%s\ngot:\n%s", niceByteStringRepr(expected, i), niceByteStringRepr(actual, i))
}

func newStoreWithBlock(id, content string) *blockStore {
	s := newBlockStore()
	s.register(id, content, func(state any) string { return state.(string) })
	return s
}

// paintAll runs renderTick once so freshly-registered blocks move from
// pending into rendered, mirroring what the actor's first tick does.
func paintAll(store *blockStore, wb *writeBuffer, width int) renderResult {
	return renderTick(store, wb, width, false)
}

func TestRenderTickPaintsNewBlocksOnly(t *testing.T) {
	store := newStoreWithBlock("a", "hello")
	wb := &writeBuffer{}

	result := paintAll(store, wb, 20)

	var want bytes.Buffer
	want.WriteString(padLine("hello", 20))
	want.WriteString("\n")

	compareBuffers(t, result.output, want.Bytes())
	if len(store.rendered) != 1 || store.rendered[0] != "a" {
		t.Fatalf("rendered = %v, want [a]", store.rendered)
	}
	if len(store.pending) != 0 {
		t.Fatalf("pending should be drained, got %v", store.pending)
	}
}

func TestRenderTickRepaintsOnlyDirtyBlocks(t *testing.T) {
	store := newBlockStore()
	store.register("a", "A1", func(s any) string { return s.(string) })
	store.register("b", "B1", func(s any) string { return s.(string) })
	wb := &writeBuffer{}
	paintAll(store, wb, 10)

	store.setState("a", "A2")
	result := renderTick(store, wb, 10, true)

	if !bytes.Contains(result.output, []byte("A2")) {
		t.Errorf("expected repaint to contain updated content A2, got %q", result.output)
	}
	if bytes.Contains(result.output, []byte("B1")) {
		t.Errorf("unchanged block B should not be repainted, got %q", result.output)
	}
}

func TestRenderTickGrowthForcesTrailingBlocksToRepaint(t *testing.T) {
	store := newBlockStore()
	store.register("a", "one line", func(s any) string { return s.(string) })
	store.register("b", "untouched", func(s any) string { return s.(string) })
	wb := &writeBuffer{}
	paintAll(store, wb, 20)

	store.setState("a", "line one\nline two") // grows from height 1 to 2
	result := renderTick(store, wb, 20, true)

	if !bytes.Contains(result.output, []byte("untouched")) {
		t.Errorf("block b should be force-repainted after a's growth, got %q", result.output)
	}
}

func TestRenderTickFlushesWriteQueueAboveBlocks(t *testing.T) {
	store := newStoreWithBlock("a", "sticky")
	wb := &writeBuffer{}
	paintAll(store, wb, 20) // block already on screen, aboveDone still false

	reply := make(chan error, 1)
	wb.push([]byte("log line\n"), reply)

	result := renderTick(store, wb, 20, false)
	if !bytes.Contains(result.output, []byte("log line")) {
		t.Errorf("expected queued write to appear in output, got %q", result.output)
	}
	result.afterWrite()
	select {
	case err := <-reply:
		if err != nil {
			t.Errorf("unexpected ack error: %v", err)
		}
	default:
		t.Error("expected afterWrite to deliver an ack")
	}
	if !result.aboveDone {
		t.Error("aboveDone should become true after the first above-write")
	}
}

// TestRenderTickPutCharsEndingInNewlineStaysCleanlySeparatedFromBlock
// guards against padToWidth fabricating a spurious padded empty line for
// put_chars data that already ends in "\n": that bug glued the block
// repaint directly onto the end of the padded above-write with no line
// break, which would desync the cursor bookkeeping on a real terminal.
func TestRenderTickPutCharsEndingInNewlineStaysCleanlySeparatedFromBlock(t *testing.T) {
	store := newStoreWithBlock("a", "sticky")
	wb := &writeBuffer{}
	paintAll(store, wb, 10) // block already on screen

	wb.push([]byte("done\n"), nil)
	result := renderTick(store, wb, 10, true)

	var want bytes.Buffer
	wantOut := termenv.NewOutput(&want)
	wantOut.CursorUp(2) // 1 block row + the above-write parking row
	want.WriteString(padLine("done", 10))
	want.WriteString("\n")
	want.WriteString(padLine("sticky", 10))
	want.WriteString("\n")

	compareBuffers(t, result.output, want.Bytes())
}

func TestRenderTickNoOpWhenNothingChanged(t *testing.T) {
	store := newStoreWithBlock("a", "steady")
	wb := &writeBuffer{}
	paintAll(store, wb, 20)

	result := renderTick(store, wb, 20, true)
	if len(result.output) != 0 {
		t.Errorf("expected empty output for a no-op tick, got %q", result.output)
	}
}

func TestSumHeightsAddsRenderedBlockHeights(t *testing.T) {
	store := newBlockStore()
	store.register("a", "a1\na2", func(s any) string { return s.(string) })
	store.register("b", "b1", func(s any) string { return s.(string) })
	paintAll(store, &writeBuffer{}, 20)

	if got := sumHeights(store); got != 3 {
		t.Errorf("sumHeights = %d, want 3", got)
	}
}
