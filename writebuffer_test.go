package livescreen

import "testing"

func TestWriteBufferFIFOOrder(t *testing.T) {
	var wb writeBuffer
	if !wb.empty() {
		t.Fatal("new writeBuffer should be empty")
	}
	wb.push([]byte("first"), nil)
	wb.push([]byte("second"), nil)
	wb.push([]byte("third"), nil)

	got := wb.drain()
	want := []string{"first", "second", "third"}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i, w := range want {
		if string(got[i].data) != w {
			t.Errorf("entry %d = %q, want %q", i, got[i].data, w)
		}
	}
	if !wb.empty() {
		t.Error("drain should clear the queue")
	}
}

func TestWriteBufferDrainDeliversReplyChannels(t *testing.T) {
	var wb writeBuffer
	reply := make(chan error, 1)
	wb.push([]byte("x"), reply)

	got := wb.drain()
	if len(got) != 1 || got[0].reply != (chan<- error)(reply) {
		t.Fatalf("reply channel not preserved through drain")
	}
}
