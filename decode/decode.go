// Package decode turns GIF and WebP byte buffers into full-canvas frame
// sequences.
//
// Container metadata is parsed first: Open reports the frame count, canvas
// size and loop count before any pixel buffer is allocated. Frames are then
// decoded one at a time through an Iterator, each composited onto the canvas
// so every yielded frame covers the whole image. Decode drains an Iterator
// and is all-or-nothing: on any failure no frames are returned.
package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/deepteams/upscale/frame"
	"github.com/deepteams/upscale/internal/container"
)

// DefaultGIFDelay is used for GIF frames without a graphic control extension.
const DefaultGIFDelay = 100 // milliseconds

// MaxCanvasPixels bounds the canvas area accepted by Open.
const MaxCanvasPixels = 1 << 26

var (
	ErrCorrupt     = errors.New("decode: corrupt container")
	ErrUnsupported = errors.New("decode: unsupported format")
	ErrTooLarge    = errors.New("decode: canvas too large")
)

// CorruptError reports a structural or bitstream failure. Frame is the index
// of the frame being parsed or decoded, or -1 when the failure precedes the
// first frame.
type CorruptError struct {
	Frame int
	Err   error
}

func (e *CorruptError) Error() string {
	if e.Frame < 0 {
		return fmt.Sprintf("decode: corrupt container: %v", e.Err)
	}
	return fmt.Sprintf("decode: corrupt container at frame %d: %v", e.Frame, e.Err)
}

// Unwrap exposes both ErrCorrupt and the underlying cause.
func (e *CorruptError) Unwrap() []error { return []error{ErrCorrupt, e.Err} }

// corrupt converts a container parse error into a *CorruptError carrying
// the failing frame index.
func corrupt(err error) error {
	var fe *container.FrameError
	if errors.As(err, &fe) {
		return &CorruptError{Frame: fe.Index, Err: fe.Err}
	}
	return &CorruptError{Frame: -1, Err: err}
}

// source decodes the frames of one container in order.
type source interface {
	info() frame.Info
	durations() []time.Duration
	// decodeFrame decodes frame i onto the canvas and returns a snapshot.
	// It is called with i = 0, 1, 2, ... exactly once each.
	decodeFrame(i int) (frame.Frame, error)
}

// Iterator yields the frames of a container in display order.
type Iterator struct {
	src  source
	info frame.Info
	next int
	err  error
}

// Open parses the container structure of data. format selects the parser;
// frame.Unknown sniffs the magic bytes. Data that does not parse as the
// given format is reported as a *CorruptError.
func Open(data []byte, format frame.Format) (*Iterator, error) {
	if format == frame.Unknown {
		format = container.Sniff(data)
	}

	var (
		src source
		err error
	)
	switch format {
	case frame.GIF:
		src, err = openGIF(data)
	case frame.WebP:
		src, err = openWebP(data)
	default:
		return nil, ErrUnsupported
	}
	if err != nil {
		return nil, err
	}

	info := src.info()
	if uint64(info.Width)*uint64(info.Height) > MaxCanvasPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, info.Width, info.Height)
	}
	return &Iterator{src: src, info: info}, nil
}

// Info returns the container metadata read by Open.
func (it *Iterator) Info() frame.Info { return it.info }

// Durations returns the display duration of every frame as read from the
// container, without decoding pixels.
func (it *Iterator) Durations() []time.Duration { return it.src.durations() }

// Len returns the total number of frames.
func (it *Iterator) Len() int { return it.info.FrameCount }

// Next decodes the next frame. It returns io.EOF after the last frame.
// After an error every further call returns the same error.
func (it *Iterator) Next() (frame.Frame, error) {
	if it.err != nil {
		return frame.Frame{}, it.err
	}
	if it.next >= it.info.FrameCount {
		return frame.Frame{}, io.EOF
	}
	f, err := it.src.decodeFrame(it.next)
	if err != nil {
		var ce *CorruptError
		if !errors.As(err, &ce) {
			err = &CorruptError{Frame: it.next, Err: err}
		}
		it.err = err
		return frame.Frame{}, err
	}
	it.next++
	return f, nil
}

// ProgressFunc is called after each decoded frame with the 1-based index of
// that frame and the total frame count.
type ProgressFunc func(current, total int)

// Decode decodes every frame of data. The context is checked between
// frames; a canceled context aborts the decode with ctx.Err().
func Decode(ctx context.Context, data []byte, format frame.Format, progress ProgressFunc) (*frame.Sequence, error) {
	it, err := Open(data, format)
	if err != nil {
		return nil, err
	}
	return it.Collect(ctx, progress)
}

// Collect drains the iterator into a Sequence.
func (it *Iterator) Collect(ctx context.Context, progress ProgressFunc) (*frame.Sequence, error) {
	seq := &frame.Sequence{
		Info:   it.info,
		Frames: make([]frame.Frame, 0, it.info.FrameCount),
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := it.Next()
		if err == io.EOF {
			return seq, nil
		}
		if err != nil {
			return nil, err
		}
		seq.Frames = append(seq.Frames, f)
		if progress != nil {
			progress(len(seq.Frames), it.info.FrameCount)
		}
	}
}

// Probe reads the container metadata of data without decoding any frame.
func Probe(data []byte, format frame.Format) (frame.Info, error) {
	it, err := Open(data, format)
	if err != nil {
		return frame.Info{}, err
	}
	return it.Info(), nil
}
