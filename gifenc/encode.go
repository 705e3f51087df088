// Package gifenc writes full-canvas frame sequences as GIF streams.
//
// Each frame gets its own color table: frames with few enough colors keep
// their exact colors, richer frames are reduced with median-cut
// quantization. Pixels with alpha below 128 become transparent. Every frame
// carries a graphic control extension. Multi-frame output carries a
// NETSCAPE2.0 loop extension; single frames never do.
package gifenc

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"io"
	"time"

	"github.com/deepteams/upscale/frame"
)

// MaxDimension is the largest canvas side a GIF can describe.
const MaxDimension = 1<<16 - 1

var (
	ErrNoFrames     = errors.New("gifenc: no frames")
	ErrSizeMismatch = errors.New("gifenc: frame size differs from first frame")
	ErrTooLarge     = errors.New("gifenc: canvas exceeds GIF limits")
	ErrMaxColors    = errors.New("gifenc: max colors out of range")
)

// Options tune the encoder. The zero value is ready to use.
type Options struct {
	// MaxColors caps each frame's color table, 2..256. Zero means 256.
	MaxColors int

	// KeepZeroDelay writes a zero delay for frames whose duration is
	// exactly zero instead of raising it to one centisecond.
	KeepZeroDelay bool

	// Progress, if set, is called after each frame is quantized.
	Progress func(current, total int)
}

func (o *Options) maxColors() (int, error) {
	if o == nil || o.MaxColors == 0 {
		return 256, nil
	}
	if o.MaxColors < 2 || o.MaxColors > 256 {
		return 0, fmt.Errorf("%w: %d", ErrMaxColors, o.MaxColors)
	}
	return o.MaxColors, nil
}

// Delay converts a frame duration to GIF centiseconds, rounding to the
// nearest unit. A result of zero becomes one unless keepZero is set and the
// duration is exactly zero.
func Delay(d time.Duration, keepZero bool) int {
	ms := d.Milliseconds()
	cs := int((ms + 5) / 10)
	if cs == 0 && !(keepZero && ms == 0) {
		cs = 1
	}
	if cs > 0xffff {
		cs = 0xffff
	}
	return cs
}

// Encode writes frames to w as a GIF. loopCount is written in the NETSCAPE2.0
// extension (0 loops forever) when there is more than one frame. The context
// is checked between frames.
func Encode(ctx context.Context, w io.Writer, frames []frame.Frame, loopCount int, opts *Options) error {
	g, err := build(ctx, frames, loopCount, opts)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	if err := gif.EncodeAll(bw, g); err != nil {
		return fmt.Errorf("gifenc: %w", err)
	}
	return bw.Flush()
}

// EncodeBytes is like Encode but returns the stream.
func EncodeBytes(ctx context.Context, frames []frame.Frame, loopCount int, opts *Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(ctx, &buf, frames, loopCount, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// build validates frames and converts them to a gif.GIF.
func build(ctx context.Context, frames []frame.Frame, loopCount int, opts *Options) (*gif.GIF, error) {
	if len(frames) == 0 {
		return nil, ErrNoFrames
	}
	maxColors, err := opts.maxColors()
	if err != nil {
		return nil, err
	}
	keepZero := opts != nil && opts.KeepZeroDelay

	width, height := frames[0].Width, frames[0].Height
	if width > MaxDimension || height > MaxDimension {
		return nil, fmt.Errorf("%w: %dx%d", ErrTooLarge, width, height)
	}
	for i := range frames {
		if err := frames[i].Validate(); err != nil {
			return nil, fmt.Errorf("gifenc: %w", err)
		}
		if frames[i].Width != width || frames[i].Height != height {
			return nil, fmt.Errorf("%w: frame %d is %dx%d, want %dx%d",
				ErrSizeMismatch, i, frames[i].Width, frames[i].Height, width, height)
		}
	}

	n := len(frames)
	g := &gif.GIF{
		Image:    make([]*image.Paletted, 0, n),
		Delay:    make([]int, 0, n),
		Disposal: make([]byte, 0, n),
		Config:   image.Config{Width: width, Height: height},
	}
	if n > 1 {
		g.LoopCount = loopCount
	} else {
		g.LoopCount = -1
	}

	alpha := make([]bool, n)
	for i := range frames {
		alpha[i] = hasTransparency(&frames[i])
	}

	for i := range frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		g.Image = append(g.Image, palettize(&frames[i], maxColors))
		g.Disposal = append(g.Disposal, disposal(alpha, i))
		if n == 1 {
			g.Delay = append(g.Delay, 0)
		} else {
			g.Delay = append(g.Delay, Delay(frames[i].Duration, keepZero))
		}
		if opts != nil && opts.Progress != nil {
			opts.Progress(i+1, n)
		}
	}
	return g, nil
}

// disposal picks the disposal of frame i: frames are full-canvas, so the
// canvas only needs clearing when the following frame (wrapping around for
// loops) lets it show through. A single frame is left in place; the explicit
// method also makes image/gif write its graphic control extension.
func disposal(alpha []bool, i int) byte {
	if len(alpha) == 1 {
		return gif.DisposalNone
	}
	next := (i + 1) % len(alpha)
	if alpha[next] {
		return gif.DisposalBackground
	}
	return gif.DisposalNone
}
