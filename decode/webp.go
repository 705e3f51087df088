package decode

import (
	"bytes"
	"image"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/image/webp"

	"github.com/deepteams/upscale/frame"
	"github.com/deepteams/upscale/internal/container"
	"github.com/deepteams/upscale/internal/pool"
)

// webpSource decodes each frame bitstream separately and composites it the
// way libwebp's animation decoder does.
type webpSource struct {
	w      *container.WebP
	canvas *image.NRGBA
	prev   *container.WebPFrame
}

func openWebP(data []byte) (*webpSource, error) {
	w, err := container.ParseWebP(data)
	if err != nil {
		return nil, corrupt(err)
	}
	return &webpSource{w: w}, nil
}

func (s *webpSource) info() frame.Info {
	return frame.Info{
		Format:     frame.WebP,
		Width:      s.w.Width,
		Height:     s.w.Height,
		FrameCount: len(s.w.Frames),
		LoopCount:  s.w.LoopCount,
		Animated:   s.w.Animated && len(s.w.Frames) > 1,
		HasAlpha:   s.w.HasAlpha,
		Lossless:   s.w.Lossless(),
	}
}

func (s *webpSource) durations() []time.Duration {
	d := make([]time.Duration, len(s.w.Frames))
	for i := range s.w.Frames {
		d[i] = s.duration(&s.w.Frames[i])
	}
	return d
}

func (s *webpSource) duration(f *container.WebPFrame) time.Duration {
	if len(s.w.Frames) == 1 {
		return 0
	}
	return time.Duration(f.Duration) * time.Millisecond
}

func (s *webpSource) decodeFrame(i int) (frame.Frame, error) {
	f := &s.w.Frames[i]

	buf := pool.Get(f.StreamSize())[:0]
	stream := f.AppendStream(buf)
	img, err := webp.Decode(bytes.NewReader(stream))
	pool.Put(stream)
	if err != nil {
		return frame.Frame{}, &CorruptError{Frame: i, Err: err}
	}
	src := toNRGBA(img)

	if s.canvas == nil {
		s.canvas = image.NewNRGBA(image.Rect(0, 0, s.w.Width, s.w.Height))
	}
	if s.prev != nil && s.prev.DisposeBackground {
		clearRect(s.canvas, webpRect(s.prev))
	}
	compositeNRGBA(s.canvas, src, image.Pt(f.X, f.Y), !f.NoBlend)
	s.prev = f

	return frame.FromNRGBA(s.canvas, i, s.duration(f)), nil
}

func webpRect(f *container.WebPFrame) image.Rectangle {
	return image.Rect(f.X, f.Y, f.X+f.Width, f.Y+f.Height)
}

// toNRGBA returns img as a zero-origin *image.NRGBA. Lossless frames decode
// to NRGBA already; lossy frames (YCbCr, NYCbCrA) are converted.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	b := img.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}
