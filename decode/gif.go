package decode

import (
	"bytes"
	"image"
	"image/gif"
	"time"

	"golang.org/x/image/draw"

	"github.com/deepteams/upscale/frame"
	"github.com/deepteams/upscale/internal/container"
	"github.com/deepteams/upscale/internal/pool"
)

// gifSource composites GIF frames following their disposal methods.
type gifSource struct {
	g      *container.GIF
	canvas *image.NRGBA
	saved  *image.NRGBA // canvas before a "restore to previous" frame
	prev   *container.GIFFrame
}

func openGIF(data []byte) (*gifSource, error) {
	g, err := container.ParseGIF(data)
	if err != nil {
		return nil, corrupt(err)
	}
	return &gifSource{g: g}, nil
}

func (s *gifSource) info() frame.Info {
	info := frame.Info{
		Format:     frame.GIF,
		Width:      s.g.Width,
		Height:     s.g.Height,
		FrameCount: len(s.g.Frames),
		LoopCount:  s.g.LoopCount,
		Animated:   len(s.g.Frames) > 1,
	}
	for i := range s.g.Frames {
		if s.g.Frames[i].Transparent {
			info.HasAlpha = true
			break
		}
	}
	return info
}

func (s *gifSource) durations() []time.Duration {
	d := make([]time.Duration, len(s.g.Frames))
	for i := range s.g.Frames {
		d[i] = s.duration(&s.g.Frames[i])
	}
	return d
}

// duration converts the GCE delay to milliseconds. Still images have no
// duration.
func (s *gifSource) duration(f *container.GIFFrame) time.Duration {
	if len(s.g.Frames) == 1 {
		return 0
	}
	if !f.HasGCE {
		return DefaultGIFDelay * time.Millisecond
	}
	return time.Duration(f.Delay) * 10 * time.Millisecond
}

func (s *gifSource) decodeFrame(i int) (frame.Frame, error) {
	f := &s.g.Frames[i]

	buf := pool.Get(s.g.StreamSize(f))[:0]
	stream := s.g.AppendStream(buf, f)
	img, err := gif.Decode(bytes.NewReader(stream))
	pool.Put(stream)
	if err != nil {
		return frame.Frame{}, &CorruptError{Frame: i, Err: err}
	}

	if s.canvas == nil {
		s.canvas = image.NewNRGBA(image.Rect(0, 0, s.g.Width, s.g.Height))
	}
	s.dispose()

	if f.Disposal == container.GIFDisposalPrevious {
		if s.saved == nil {
			s.saved = image.NewNRGBA(s.canvas.Rect)
		}
		copy(s.saved.Pix, s.canvas.Pix)
	}

	rect := frameRect(f).Intersect(s.canvas.Rect)
	if !rect.Empty() {
		draw.Draw(s.canvas, rect, img, rect.Min.Sub(image.Pt(f.X, f.Y)), draw.Over)
	}
	s.prev = f

	return frame.FromNRGBA(s.canvas, i, s.duration(f)), nil
}

// dispose applies the disposal method of the previously displayed frame.
func (s *gifSource) dispose() {
	if s.prev == nil {
		return
	}
	switch s.prev.Disposal {
	case container.GIFDisposalBackground:
		clearRect(s.canvas, frameRect(s.prev))
	case container.GIFDisposalPrevious:
		if s.saved != nil {
			copy(s.canvas.Pix, s.saved.Pix)
		}
	}
}

func frameRect(f *container.GIFFrame) image.Rectangle {
	return image.Rect(f.X, f.Y, f.X+f.Width, f.Y+f.Height)
}
