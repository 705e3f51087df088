package upscale

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/bits"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/deepteams/upscale/decode"
	"github.com/deepteams/upscale/frame"
	"github.com/deepteams/upscale/gifenc"
	"github.com/deepteams/upscale/resample"
)

// Params are the per-conversion animation parameters.
type Params struct {
	// Scale is the integer magnification factor, 2..10.
	Scale int
	// LoopCount is written to animated GIF output; 0 loops forever.
	LoopCount uint
}

// Request is one conversion request. The declared format is taken from
// FileName's extension, or from MIMEType when the extension is not
// recognized.
type Request struct {
	Data     []byte
	MIMEType string
	FileName string
	Params   Params
}

// Format returns the declared format of the request.
func (r *Request) Format() frame.Format {
	if f := frame.ParseExt(r.FileName); f != frame.Unknown {
		return f
	}
	return frame.ParseMIME(r.MIMEType)
}

// Fallback describes how the output container relates to the input.
type Fallback int

const (
	// FallbackNone: the output uses the input container (GIF to GIF).
	FallbackNone Fallback = iota
	// FallbackStatic: a single-frame WebP was written as a static WebP.
	FallbackStatic
	// FallbackDowngraded: an animated WebP was written as an animated GIF.
	FallbackDowngraded
)

func (f Fallback) String() string {
	switch f {
	case FallbackStatic:
		return "static"
	case FallbackDowngraded:
		return "downgraded"
	default:
		return "none"
	}
}

// Output is the result of a successful conversion.
type Output struct {
	Data     []byte
	MIMEType string
	FileName string
	Format   frame.Format
	Frames   int
	Width    int
	Height   int
	Fallback Fallback
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReporter sets the progress reporter.
func WithReporter(r Reporter) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithLogger sets the logger. The default logger discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithMemoryLimit bounds the pixel memory a conversion may hold, in bytes.
// Zero or a negative limit disables the check.
func WithMemoryLimit(n int64) Option {
	return func(c *Coordinator) { c.memLimit = n }
}

// WithGIFOptions sets the GIF encoder options.
func WithGIFOptions(o gifenc.Options) Option {
	return func(c *Coordinator) { c.gif = o }
}

// DefaultMemoryLimit is the pixel memory budget of a conversion unless
// WithMemoryLimit overrides it.
const DefaultMemoryLimit int64 = 1 << 30

// MaxWebPDimension is the largest side of a static WebP output.
const MaxWebPDimension = 16383

// MemoryNeed returns the pixel memory, in bytes, of decoding info and
// magnifying it by scale: every frame is held as a full canvas, then again
// at scale*scale its area.
func MemoryNeed(info frame.Info, scale int) uint64 {
	canvas := uint64(info.Width) * uint64(info.Height) * 4
	frames := uint64(max(info.FrameCount, 1))
	s := uint64(scale)
	hi, lo := bits.Mul64(canvas*frames, 1+s*s)
	if hi != 0 {
		return math.MaxUint64
	}
	return lo
}

// Coordinator runs one conversion through the states
// Idle -> Decoding -> Resampling -> Encoding -> Done | Failed.
// A Coordinator is single-use.
type Coordinator struct {
	reporter Reporter
	log      zerolog.Logger
	gif      gifenc.Options
	memLimit int64

	mu      sync.Mutex
	state   State
	started bool
}

// NewCoordinator returns an idle coordinator.
func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		reporter: nopReporter{},
		log:      zerolog.Nop(),
		memLimit: DefaultMemoryLimit,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Convert runs req on a fresh coordinator.
func Convert(ctx context.Context, req Request, opts ...Option) (*Output, error) {
	return NewCoordinator(opts...).Run(ctx, req)
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Coordinator) report(stage State, current, total int, format string, args ...any) {
	c.reporter.Report(Event{Stage: stage, Message: fmt.Sprintf(format, args...), Current: current, Total: total})
}

// Run performs the conversion. It may be called once; later calls return
// ErrAlreadyRun. Cancellation of ctx takes effect at the next frame
// boundary and fails the run with ErrCanceled.
func (c *Coordinator) Run(ctx context.Context, req Request) (*Output, error) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return nil, ErrAlreadyRun
	}
	c.started = true
	c.mu.Unlock()

	start := time.Now()
	log := c.log.With().Str("file", req.FileName).Int("scale", req.Params.Scale).Logger()

	out, err := c.run(ctx, req, log)
	if err != nil {
		c.setState(StateFailed)
		c.reporter.Report(Event{Stage: StateFailed, Message: "Error: " + err.Error(), Terminal: true, Err: err})
		log.Error().Err(err).Dur("duration", time.Since(start)).Msg("conversion failed")
		return nil, err
	}

	c.setState(StateDone)
	c.reporter.Report(Event{Stage: StateDone, Message: successMessage(out), Terminal: true})
	log.Info().
		Str("format", out.Format.String()).
		Int("frames", out.Frames).
		Str("fallback", out.Fallback.String()).
		Int("bytes", len(out.Data)).
		Dur("duration", time.Since(start)).
		Msg("conversion done")
	return out, nil
}

func successMessage(out *Output) string {
	switch out.Fallback {
	case FallbackStatic:
		return "Static WebP upscaled successfully!"
	case FallbackDowngraded:
		return fmt.Sprintf("WebP upscaled successfully! (converted to GIF, %d frames)", out.Frames)
	default:
		return "GIF upscaled successfully!"
	}
}

func (c *Coordinator) run(ctx context.Context, req Request, log zerolog.Logger) (*Output, error) {
	format := req.Format()
	if format == frame.Unknown {
		return nil, &Error{Kind: KindUnsupportedFormat, Stage: StateIdle, Frame: -1,
			Err: fmt.Errorf("%q (%q) is neither GIF nor WebP", req.FileName, req.MIMEType)}
	}
	scale := req.Params.Scale
	if err := resample.CheckScale(scale); err != nil {
		return nil, &Error{Kind: KindInvalidScale, Stage: StateIdle, Frame: -1, Err: err}
	}

	// Decoding.
	c.setState(StateDecoding)
	log.Debug().Str("state", StateDecoding.String()).Msg("state")
	c.report(StateDecoding, 0, 0, "Processing animation...")
	c.report(StateDecoding, 0, 0, "Reading %s file...", format)

	it, err := decode.Open(req.Data, format)
	if err != nil {
		return nil, decodeError(err)
	}
	info := it.Info()
	n := info.FrameCount
	log.Debug().Int("frames", n).Int("width", info.Width).Int("height", info.Height).Msg("container parsed")

	if err := c.checkLimits(format, info, scale); err != nil {
		return nil, err
	}

	c.report(StateDecoding, 0, n, "Decoding %s frames...", format)
	seq, err := it.Collect(ctx, func(cur, total int) {
		c.report(StateDecoding, cur, total, "Decoding frame %d/%d...", cur, total)
	})
	if err != nil {
		return nil, decodeError(err)
	}
	c.report(StateDecoding, 0, n, "Found %d frames. Processing...", n)

	// Resampling.
	c.setState(StateResampling)
	log.Debug().Str("state", StateResampling.String()).Msg("state")
	scaled, err := resample.Sequence(ctx, seq, scale, func(cur, total int) {
		c.report(StateResampling, cur, total, "Processing frame %d/%d...", cur, total)
	})
	if err != nil {
		return nil, stageError(StateResampling, err)
	}

	// Encoding.
	c.setState(StateEncoding)
	log.Debug().Str("state", StateEncoding.String()).Msg("state")

	out := &Output{
		Frames: scaled.Len(),
		Width:  scaled.Info.Width,
		Height: scaled.Info.Height,
	}
	switch {
	case format == frame.WebP && n == 1:
		out.Format, out.Fallback = frame.WebP, FallbackStatic
		c.report(StateEncoding, 0, 1, "Treating as static WebP...")
		c.report(StateEncoding, 0, 1, "Creating upscaled WebP...")
		out.Data, err = encodeStaticWebP(&scaled.Frames[0])
		if err != nil {
			return nil, &Error{Kind: KindEncode, Stage: StateEncoding, Frame: 0, Err: err}
		}
	default:
		out.Format = frame.GIF
		if format == frame.WebP {
			out.Fallback = FallbackDowngraded
			c.report(StateEncoding, 0, n, "Animated WebP cannot be re-encoded; converting %d frames to GIF...", n)
			log.Info().Int("frames", n).Msg("animated WebP downgraded to GIF")
		}
		c.report(StateEncoding, 0, n, "Encoding upscaled GIF...")
		opts := c.gif
		opts.Progress = func(cur, total int) {
			c.report(StateEncoding, cur, total, "Encoding frame %d/%d...", cur, total)
		}
		out.Data, err = gifenc.EncodeBytes(ctx, scaled.Frames, int(req.Params.LoopCount), &opts)
		if err != nil {
			return nil, stageError(StateEncoding, err)
		}
	}
	out.MIMEType = out.Format.MIMEType()
	out.FileName = OutputName(req.FileName, out.Format)
	return out, nil
}

// checkLimits rejects conversions whose output cannot be written or whose
// frames would not fit the memory budget, before any frame is decoded.
func (c *Coordinator) checkLimits(format frame.Format, info frame.Info, scale int) error {
	w, h := info.Width*scale, info.Height*scale
	if format == frame.WebP && info.FrameCount == 1 {
		if w > MaxWebPDimension || h > MaxWebPDimension {
			return &Error{Kind: KindEncode, Stage: StateDecoding, Frame: -1,
				Err: fmt.Errorf("%w: %dx%d WebP, max side %d", ErrTooLarge, w, h, MaxWebPDimension)}
		}
	} else if w > gifenc.MaxDimension || h > gifenc.MaxDimension {
		return &Error{Kind: KindEncode, Stage: StateDecoding, Frame: -1,
			Err: fmt.Errorf("%w: %w: %dx%d", ErrTooLarge, gifenc.ErrTooLarge, w, h)}
	}
	if c.memLimit > 0 {
		if need := MemoryNeed(info, scale); need > uint64(c.memLimit) {
			return &Error{Kind: KindEncode, Stage: StateDecoding, Frame: -1,
				Err: fmt.Errorf("%w: %d frames of %dx%d at x%d need %d bytes, limit %d",
					ErrTooLarge, info.FrameCount, info.Width, info.Height, scale, need, c.memLimit)}
		}
	}
	return nil
}

// decodeError maps a decode package error to an *Error.
func decodeError(err error) error {
	if isCanceled(err) {
		return &Error{Kind: KindCanceled, Stage: StateDecoding, Frame: -1, Err: err}
	}
	if errors.Is(err, decode.ErrUnsupported) {
		return &Error{Kind: KindUnsupportedFormat, Stage: StateDecoding, Frame: -1, Err: err}
	}
	e := &Error{Kind: KindCorruptContainer, Stage: StateDecoding, Frame: -1, Err: err}
	var ce *decode.CorruptError
	if errors.As(err, &ce) {
		e.Frame = ce.Frame
	}
	return e
}

func stageError(stage State, err error) error {
	if isCanceled(err) {
		return &Error{Kind: KindCanceled, Stage: stage, Frame: -1, Err: err}
	}
	return &Error{Kind: KindEncode, Stage: stage, Frame: -1, Err: err}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
