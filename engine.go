// Package livescreen implements a terminal live-screen engine: a
// long-lived single-threaded actor that lets callers register named
// sticky blocks at the bottom of a terminal, update their state over
// time, and interleave normal streaming writes that appear above the
// sticky region without tearing.
package livescreen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/muesli/ansi/compressor"
	"golang.org/x/sync/errgroup"
)

// Errors surfaced across the public API.
var (
	// ErrNoTerminal is returned by Start when the width source reports
	// no terminal is attached.
	ErrNoTerminal = errors.New("livescreen: no terminal available")
	// ErrNotSupported is the reply to an unsupported I/O-device request.
	ErrNotSupported = errors.New("livescreen: io request not supported")
	// ErrBadRequest is the reply to an unrecognized I/O-device request.
	ErrBadRequest = errors.New("livescreen: malformed io request")
)

// mailboxBuffer bounds how many fire-and-forget messages (add_block,
// update, put_chars) may be outstanding before a sender blocks. The
// actor drains its mailbox continuously, so this only smooths bursts.
const mailboxBuffer = 64

// BlockOption configures a block at registration time.
type BlockOption func(*addBlockMsg)

// WithState sets a block's initial state (default: nil).
func WithState(state any) BlockOption {
	return func(m *addBlockMsg) { m.state = state }
}

// WithRender sets a block's render function (default: identityRender).
func WithRender(r RenderFunc) BlockOption {
	return func(m *addBlockMsg) { m.render = r }
}

type addBlockMsg struct {
	id     string
	state  any
	render RenderFunc
}

type updateMsg struct {
	id    string
	state any
}

type putCharsMsg struct {
	data  []byte
	reply chan<- error
}

type putCharsFuncMsg struct {
	fn    func() []byte
	reply chan<- error
}

// IORequestKind enumerates the io-device protocol requests other than
// put_chars. All of them are replied to immediately, without mutating
// engine state.
type IORequestKind int

const (
	IORequestGetChars IORequestKind = iota
	IORequestGetLine
	IORequestGetUntil
	IORequestGetPassword
	IORequestSetOpts
	IORequestGetOpts
	IORequestGetGeometry
	IORequestRequests
)

type ioRequest struct {
	kind  IORequestKind
	reply chan<- error
}

// Engine is a running live-screen actor. Every exported method other than
// Kill and Wait is a thin sender onto the actor's mailbox; Kill cancels
// the actor's context and Wait waits for it to exit. All state mutation
// happens on the single goroutine started by Start.
type Engine struct {
	addBlockCh  chan addBlockMsg
	updateCh    chan updateMsg
	putCharsCh  chan putCharsMsg
	putFuncCh   chan putCharsFuncMsg
	ioRequestCh chan ioRequest
	flushCh     chan chan error
	stopCh      chan chan error
	renderNowCh chan chan error

	cancel context.CancelFunc
	group  *errgroup.Group
}

// Start initializes and launches the engine. It fails deliberately with
// ErrNoTerminal if the width source (os.Stdout's window size by default)
// reports no terminal is attached.
func Start(opts ...Option) (*Engine, error) {
	cfg := newConfig(opts)

	if cfg.widthSource == nil {
		cfg.widthSource = defaultWidthSource()
	}

	width := cfg.width
	if width == AutoWidth {
		w, ok := cfg.widthSource.Columns()
		if !ok {
			return nil, ErrNoTerminal
		}
		width = w
	}

	out := cfg.output
	if cfg.useANSICompressor {
		out = &compressor.Writer{Forward: out}
	}

	e := &Engine{
		addBlockCh:  make(chan addBlockMsg, mailboxBuffer),
		updateCh:    make(chan updateMsg, mailboxBuffer),
		putCharsCh:  make(chan putCharsMsg, mailboxBuffer),
		putFuncCh:   make(chan putCharsFuncMsg, mailboxBuffer),
		ioRequestCh: make(chan ioRequest),
		flushCh:     make(chan chan error),
		stopCh:      make(chan chan error),
		renderNowCh: make(chan chan error),
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)
	e.cancel = cancel
	e.group = group

	a := &actorState{
		store:       newBlockStore(),
		writeBuf:    &writeBuffer{},
		out:         out,
		cfg:         cfg,
		widthSource: cfg.widthSource,
		width:       width,
	}

	group.Go(func() error {
		return a.run(ctx, e)
	})

	return e, nil
}

// AddBlock registers a new sticky block. It is fire-and-forget: the
// caller receives no acknowledgement.
func (e *Engine) AddBlock(id string, opts ...BlockOption) {
	msg := addBlockMsg{id: id}
	for _, opt := range opts {
		opt(&msg)
	}
	e.addBlockCh <- msg
}

// Update records a new state for id, to be painted on the next tick.
// Unknown ids are silently ignored: update never reports whether its id
// exists.
func (e *Engine) Update(id string, state any) {
	e.updateCh <- updateMsg{id: id, state: state}
}

// PutChars submits bytes to be rendered above the sticky region. The
// returned channel receives a single acknowledgement after the bytes
// have actually been painted (deferred to the tick after submission);
// callers that don't care may discard it.
func (e *Engine) PutChars(data []byte) <-chan error {
	reply := make(chan error, 1)
	e.putCharsCh <- putCharsMsg{data: data, reply: reply}
	return reply
}

// PutCharsFunc is a statically typed deferred-producer form of PutChars:
// fn is evaluated synchronously by the actor to obtain the bytes to
// enqueue.
func (e *Engine) PutCharsFunc(fn func() []byte) <-chan error {
	reply := make(chan error, 1)
	e.putFuncCh <- putCharsFuncMsg{fn: fn, reply: reply}
	return reply
}

// IORequest services one of the io-device protocol requests that are not
// put_chars. Every one of them is replied to immediately with
// ErrNotSupported (or ErrBadRequest for an unrecognized kind) without
// touching engine state.
func (e *Engine) IORequest(kind IORequestKind) error {
	reply := make(chan error, 1)
	e.ioRequestCh <- ioRequest{kind: kind, reply: reply}
	return <-reply
}

// Flush runs an immediate tick and then detaches every block, clearing
// all render state. The engine keeps running and accepts new blocks,
// which start a fresh terminal region.
func (e *Engine) Flush() error {
	reply := make(chan error)
	e.flushCh <- reply
	return <-reply
}

// Stop runs a final tick so no pending update is lost, then shuts the
// engine down. The engine is not usable afterward.
func (e *Engine) Stop() error {
	reply := make(chan error)
	e.stopCh <- reply
	err := <-reply
	waitErr := e.group.Wait()
	if err != nil {
		return err
	}
	return waitErr
}

// Kill halts the engine immediately without a final render, for use
// alongside Stop when a caller needs an unconditional shutdown path.
func (e *Engine) Kill() {
	e.cancel()
	_ = e.group.Wait()
}

// Wait blocks until the actor goroutine exits (from Stop, Kill, or an
// internal terminal write failure) and returns its error, if any. Useful
// for detecting an asynchronous crash that wasn't triggered by Stop.
func (e *Engine) Wait() error {
	return e.group.Wait()
}

// renderNow forces an immediate synchronous tick, bypassing the refresh
// ticker. Exposed for tests and debugging.
func (e *Engine) renderNow() error {
	reply := make(chan error)
	e.renderNowCh <- reply
	return <-reply
}

// actorState is the mutable state owned exclusively by the actor
// goroutine — no locks are needed because nothing else ever touches it.
type actorState struct {
	store       *blockStore
	writeBuf    *writeBuffer
	out         io.Writer
	cfg         config
	widthSource WidthSource
	width       int // fixed width, or last-known auto width

	aboveDone bool
	armed     bool
	ticker    *time.Ticker
}

func (a *actorState) logf(format string, args ...any) {
	if a.cfg.verbose {
		log.Printf("livescreen["+a.cfg.name+"] "+format, args...)
	}
}

// hasWork reports whether a tick would have anything to do: a tick stays
// armed iff there exists work.
func (a *actorState) hasWork() bool {
	return a.store.hasBlocks() || !a.writeBuf.empty()
}

func (a *actorState) arm() {
	if a.armed {
		return
	}
	a.armed = true
	if a.ticker == nil {
		a.ticker = time.NewTicker(a.cfg.refreshEvery)
	} else {
		a.ticker.Reset(a.cfg.refreshEvery)
	}
}

func (a *actorState) disarm() {
	a.armed = false
	if a.ticker != nil {
		a.ticker.Stop()
	}
}

func (a *actorState) currentWidth() int {
	if a.cfg.width != AutoWidth {
		return a.cfg.width
	}
	if w, ok := a.widthSource.Columns(); ok {
		a.width = w
	}
	return a.width
}

// tick runs one full render cycle and writes its output. A panic from a
// caller-supplied render function is recovered here rather than left to
// unwind through the select loop: that would otherwise strand any
// Flush/Stop caller waiting on its reply channel forever, which is never
// an acceptable outcome even for a programmer-error crash. The panic is
// still fatal to the actor — it is converted into an error that
// propagates to Wait/Stop, not swallowed.
func (a *actorState) tick() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("livescreen: render function panicked: %v", r)
		}
	}()

	width := a.currentWidth()
	result := renderTick(a.store, a.writeBuf, width, a.aboveDone)
	a.logf("tick: %d bytes, width=%d", len(result.output), width)

	if len(result.output) > 0 {
		if _, writeErr := a.out.Write(result.output); writeErr != nil {
			return fmt.Errorf("livescreen: terminal write failed: %w", writeErr)
		}
	}
	a.aboveDone = result.aboveDone
	result.afterWrite()
	return nil
}

func (a *actorState) handleIORequest(req ioRequest) {
	switch req.kind {
	case IORequestGetChars, IORequestGetLine, IORequestGetUntil, IORequestGetPassword,
		IORequestSetOpts, IORequestGetOpts, IORequestGetGeometry, IORequestRequests:
		req.reply <- ErrNotSupported
	default:
		req.reply <- ErrBadRequest
	}
}

// run is the actor's mailbox loop: one goroutine, one owner of all
// mutable state, a ticker-plus-done-channel shape generalized to several
// message kinds in the manner of grailbio-base's status.Reporter (select
// over a ticker and a typed request channel, serviced by a single
// switch) — see DESIGN.md.
func (a *actorState) run(ctx context.Context, e *Engine) error {
	defer func() {
		if a.ticker != nil {
			a.ticker.Stop()
		}
	}()

	for {
		var tickC <-chan time.Time
		if a.ticker != nil {
			tickC = a.ticker.C
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case msg := <-e.addBlockCh:
			shouldArm := !a.armed && !a.store.hasBlocks()
			a.store.register(msg.id, msg.state, msg.render)
			if shouldArm {
				a.arm()
			}

		case msg := <-e.updateCh:
			// No arming here: if no tick is armed and no blocks exist,
			// this update is lost silently. Intentional back-pressure,
			// not a bug.
			a.store.setState(msg.id, msg.state)

		case msg := <-e.putCharsCh:
			a.writeBuf.push(msg.data, msg.reply)
			if !a.armed {
				a.arm()
			}

		case msg := <-e.putFuncCh:
			a.writeBuf.push(msg.fn(), msg.reply)
			if !a.armed {
				a.arm()
			}

		case req := <-e.ioRequestCh:
			a.handleIORequest(req)

		case reply := <-e.flushCh:
			err := a.tick()
			if err == nil {
				a.store.reset()
				a.writeBuf.queue = nil
				a.aboveDone = false
				a.disarm()
			}
			reply <- err
			if err != nil {
				return err
			}

		case reply := <-e.renderNowCh:
			err := a.tick()
			reply <- err
			if err != nil {
				return err
			}
			if a.hasWork() {
				a.arm()
			} else {
				a.disarm()
			}

		case reply := <-e.stopCh:
			err := a.tick()
			reply <- err
			return err

		case <-tickC:
			if err := a.tick(); err != nil {
				return err
			}
			if a.hasWork() {
				a.arm()
			} else {
				a.disarm()
			}
		}
	}
}
