package livescreen

import (
	"io"
	"os"
	"time"
)

// AutoWidth requests that the engine ask its WidthSource for the current
// terminal width on every tick, rather than using a fixed value.
const AutoWidth = 0

const defaultRefreshEvery = 100 * time.Millisecond

type config struct {
	name              string
	refreshEvery      time.Duration
	width             int
	widthSource       WidthSource
	useANSICompressor bool
	verbose           bool
	output            io.Writer
}

// Option configures an Engine at Start time, following the standard
// functional-options pattern: each Option mutates a private config
// struct, so new settings can be added without breaking Start's
// signature.
type Option func(*config)

// WithName attaches an optional identifier to the engine, useful for
// logging when several engines run in the same process.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithRefreshInterval overrides the default 100ms tick period.
func WithRefreshInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.refreshEvery = d
		}
	}
}

// WithWidth pins the terminal width to a fixed value instead of asking
// the WidthSource every tick.
func WithWidth(width int) Option {
	return func(c *config) { c.width = width }
}

// WithWidthSource overrides the default os.Stdout-backed WidthSource.
func WithWidthSource(s WidthSource) Option {
	return func(c *config) { c.widthSource = s }
}

// WithANSICompressor enables collapsing redundant ANSI runs in the
// composite write.
func WithANSICompressor(enabled bool) Option {
	return func(c *config) { c.useANSICompressor = enabled }
}

// WithVerbose enables diagnostic tick tracing to stderr.
func WithVerbose(v bool) Option {
	return func(c *config) { c.verbose = v }
}

// WithOutput overrides the underlying terminal writer (os.Stdout by
// default). Tests use this to capture the emitted byte stream.
func WithOutput(w io.Writer) Option {
	return func(c *config) { c.output = w }
}

func newConfig(opts []Option) config {
	cfg := config{
		refreshEvery: defaultRefreshEvery,
		output:       os.Stdout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
