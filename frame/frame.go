// Package frame defines the pixel and container types shared by the decode,
// resample and gifenc packages.
//
// A Frame always covers the full canvas of its animation: sub-rectangle
// frames found in the source container are composited before they become a
// Frame, so every Frame of a Sequence has the same Width and Height.
package frame

import (
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"
)

// Format identifies an image container.
type Format int

const (
	Unknown Format = iota
	GIF
	WebP
)

// String returns a human-readable format name.
func (f Format) String() string {
	switch f {
	case GIF:
		return "GIF"
	case WebP:
		return "WebP"
	default:
		return "unknown"
	}
}

// MIMEType returns the media type of the container.
func (f Format) MIMEType() string {
	switch f {
	case GIF:
		return "image/gif"
	case WebP:
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Ext returns the canonical file extension, including the leading dot.
func (f Format) Ext() string {
	switch f {
	case GIF:
		return ".gif"
	case WebP:
		return ".webp"
	default:
		return ""
	}
}

// ParseMIME maps a media type to a Format. Parameters such as
// "; charset=" are ignored and the match is case-insensitive.
func ParseMIME(mimeType string) Format {
	t := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	switch t {
	case "image/gif":
		return GIF
	case "image/webp":
		return WebP
	default:
		return Unknown
	}
}

// ParseExt maps the extension of a file name to a Format (case-insensitive).
func ParseExt(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".gif":
		return GIF
	case ".webp":
		return WebP
	default:
		return Unknown
	}
}

// Info describes a container as read from its metadata, before any pixel
// buffers are allocated.
type Info struct {
	Format     Format
	Width      int
	Height     int
	FrameCount int

	// LoopCount is the loop count signalled by the source: 0 means infinite,
	// -1 means the container carries no loop information.
	LoopCount int

	Animated bool
	HasAlpha bool
	Lossless bool // WebP only: every frame is VP8L
}

// Frame is one full-canvas image of an animation.
type Frame struct {
	// Pix holds non-premultiplied RGBA samples, row-major, 4 bytes per pixel,
	// with a stride of 4*Width.
	Pix    []byte
	Width  int
	Height int

	// Duration is the display time of the frame in whole milliseconds.
	// Still images have a zero Duration.
	Duration time.Duration

	// Index is the position of the frame in display order.
	Index int
}

// ErrPixLength is returned by Validate when Pix does not match the dimensions.
var ErrPixLength = errors.New("frame: pixel buffer length does not match dimensions")

// New allocates a transparent frame of the given size.
func New(width, height, index int) Frame {
	return Frame{
		Pix:    make([]byte, 4*width*height),
		Width:  width,
		Height: height,
		Index:  index,
	}
}

// FromNRGBA copies img into a new Frame.
func FromNRGBA(img *image.NRGBA, index int, d time.Duration) Frame {
	b := img.Bounds()
	f := New(b.Dx(), b.Dy(), index)
	f.Duration = d
	rowLen := 4 * b.Dx()
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[y*img.Stride : y*img.Stride+rowLen]
		copy(f.Pix[y*rowLen:(y+1)*rowLen], src)
	}
	return f
}

// Validate checks that Pix matches Width and Height.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("frame %d: invalid size %dx%d", f.Index, f.Width, f.Height)
	}
	if len(f.Pix) != 4*f.Width*f.Height {
		return fmt.Errorf("%w: frame %d has %d bytes, want %d", ErrPixLength, f.Index, len(f.Pix), 4*f.Width*f.Height)
	}
	return nil
}

// Image returns an *image.NRGBA view sharing the frame's pixel buffer.
func (f *Frame) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    f.Pix,
		Stride: 4 * f.Width,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// Sequence is the ordered frame list of one container.
type Sequence struct {
	Info   Info
	Frames []Frame
}

// Len returns the number of frames.
func (s *Sequence) Len() int { return len(s.Frames) }
