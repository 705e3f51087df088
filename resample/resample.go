// Package resample magnifies frames by an integer factor with exact
// nearest-neighbor replication: output pixel (x, y) is input pixel
// (x/scale, y/scale) for all four channels.
package resample

import (
	"context"
	"errors"
	"fmt"

	"github.com/deepteams/upscale/frame"
)

// Accepted scale range.
const (
	MinScale = 2
	MaxScale = 10
)

// ErrScale is returned for a scale outside [MinScale, MaxScale].
var ErrScale = errors.New("resample: scale out of range")

// CheckScale validates scale.
func CheckScale(scale int) error {
	if scale < MinScale || scale > MaxScale {
		return fmt.Errorf("%w: %d not in [%d,%d]", ErrScale, scale, MinScale, MaxScale)
	}
	return nil
}

// Frame returns f magnified by scale. The result has its own pixel buffer
// of exactly (Width*scale)*(Height*scale)*4 bytes and keeps f's Index and
// Duration.
func Frame(f frame.Frame, scale int) (frame.Frame, error) {
	if err := CheckScale(scale); err != nil {
		return frame.Frame{}, err
	}
	if err := f.Validate(); err != nil {
		return frame.Frame{}, err
	}
	out := frame.Frame{
		Pix:      make([]byte, 4*f.Width*scale*f.Height*scale),
		Width:    f.Width * scale,
		Height:   f.Height * scale,
		Duration: f.Duration,
		Index:    f.Index,
	}
	replicate(out.Pix, f.Pix, f.Width, f.Height, scale)
	return out, nil
}

// replicate writes the magnified image of src (w x h) into dst.
func replicate(dst, src []byte, w, h, scale int) {
	srcStride := 4 * w
	dstStride := srcStride * scale
	for y := 0; y < h; y++ {
		srow := src[y*srcStride : (y+1)*srcStride]
		first := dst[y*scale*dstStride : (y*scale+1)*dstStride]

		// Expand one row horizontally, then duplicate it scale-1 times.
		o := 0
		for x := 0; x < srcStride; x += 4 {
			px := srow[x : x+4 : x+4]
			for k := 0; k < scale; k++ {
				copy(first[o:o+4], px)
				o += 4
			}
		}
		for k := 1; k < scale; k++ {
			row := (y*scale + k) * dstStride
			copy(dst[row:row+dstStride], first)
		}
	}
}

// ProgressFunc is called after each frame with its 1-based position and the
// frame count.
type ProgressFunc func(current, total int)

// Sequence magnifies every frame of seq. The context is checked between
// frames; on any error no frames are returned. Info keeps the source
// metadata with Width and Height updated.
func Sequence(ctx context.Context, seq *frame.Sequence, scale int, progress ProgressFunc) (*frame.Sequence, error) {
	if err := CheckScale(scale); err != nil {
		return nil, err
	}
	out := &frame.Sequence{
		Info:   seq.Info,
		Frames: make([]frame.Frame, 0, len(seq.Frames)),
	}
	out.Info.Width *= scale
	out.Info.Height *= scale

	for i := range seq.Frames {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := Frame(seq.Frames[i], scale)
		if err != nil {
			return nil, err
		}
		out.Frames = append(out.Frames, f)
		if progress != nil {
			progress(i+1, len(seq.Frames))
		}
	}
	return out, nil
}
