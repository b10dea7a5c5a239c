package livescreen

// writeRequest is one queued "put-above" byte chunk and the channel its
// submitter is (optionally) waiting on for an acknowledgement. Modeled on
// grailbio-base's status.Reporter req{kind, p, w, rc} shape: a payload
// paired with a reply channel, serviced by a single owning goroutine.
type writeRequest struct {
	data  []byte
	reply chan<- error
}

// writeBuffer queues above-the-blocks byte chunks between ticks, in
// arrival order. A plain append-only slice is already FIFO and needs no
// stack-then-reverse trick to preserve arrival order.
type writeBuffer struct {
	queue []writeRequest
}

// push enqueues data with its (possibly nil) reply channel.
func (w *writeBuffer) push(data []byte, reply chan<- error) {
	w.queue = append(w.queue, writeRequest{data: data, reply: reply})
}

// empty reports whether the queue is empty.
func (w *writeBuffer) empty() bool {
	return len(w.queue) == 0
}

// drain returns the queue in FIFO order and clears it.
func (w *writeBuffer) drain() []writeRequest {
	q := w.queue
	w.queue = nil
	return q
}
