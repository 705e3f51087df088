package resample

import (
	"bytes"
	"context"
	"errors"
	"image"
	"math/rand"
	"testing"
	"time"

	"golang.org/x/image/draw"

	"github.com/deepteams/upscale/frame"
)

func randomFrame(w, h int, seed int64) frame.Frame {
	rng := rand.New(rand.NewSource(seed))
	f := frame.New(w, h, 0)
	rng.Read(f.Pix)
	return f
}

// oracle scales with x/image/draw's nearest-neighbor kernel. Going through
// *image.RGBA on both sides keeps the copy byte-exact whatever the alpha.
func oracle(f frame.Frame, scale int) []byte {
	src := &image.RGBA{Pix: f.Pix, Stride: 4 * f.Width, Rect: image.Rect(0, 0, f.Width, f.Height)}
	dst := image.NewRGBA(image.Rect(0, 0, f.Width*scale, f.Height*scale))
	draw.NearestNeighbor.Scale(dst, dst.Rect, src, src.Rect, draw.Src, nil)
	return dst.Pix
}

func TestFrame_MatchesFloorMapping(t *testing.T) {
	sizes := [][2]int{{1, 1}, {3, 2}, {7, 5}, {16, 1}}
	for scale := MinScale; scale <= MaxScale; scale++ {
		for i, sz := range sizes {
			src := randomFrame(sz[0], sz[1], int64(scale*100+i))
			got, err := Frame(src, scale)
			if err != nil {
				t.Fatalf("Frame(scale=%d): %v", scale, err)
			}
			if got.Width != sz[0]*scale || got.Height != sz[1]*scale {
				t.Fatalf("size = %dx%d, want %dx%d", got.Width, got.Height, sz[0]*scale, sz[1]*scale)
			}
			if want := 4 * sz[0] * scale * sz[1] * scale; len(got.Pix) != want {
				t.Fatalf("len(Pix) = %d, want %d", len(got.Pix), want)
			}
			for y := 0; y < got.Height; y++ {
				for x := 0; x < got.Width; x++ {
					o := 4 * (y*got.Width + x)
					s := 4 * ((y/scale)*src.Width + x/scale)
					if !bytes.Equal(got.Pix[o:o+4], src.Pix[s:s+4]) {
						t.Fatalf("scale %d %dx%d: pixel (%d,%d) = %v, want %v",
							scale, sz[0], sz[1], x, y, got.Pix[o:o+4], src.Pix[s:s+4])
					}
				}
			}
		}
	}
}

func TestFrame_MatchesDrawNearestNeighbor(t *testing.T) {
	for _, scale := range []int{2, 3, 7, 10} {
		src := randomFrame(9, 4, int64(scale))
		got, err := Frame(src, scale)
		if err != nil {
			t.Fatalf("Frame: %v", err)
		}
		if !bytes.Equal(got.Pix, oracle(src, scale)) {
			t.Fatalf("scale %d: output differs from draw.NearestNeighbor", scale)
		}
	}
}

func TestFrame_Deterministic(t *testing.T) {
	src := randomFrame(5, 5, 42)
	a, _ := Frame(src, 4)
	b, _ := Frame(src, 4)
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Fatal("repeated calls differ")
	}
	if &a.Pix[0] == &src.Pix[0] {
		t.Fatal("output aliases input")
	}
}

func TestFrame_KeepsMetadata(t *testing.T) {
	src := randomFrame(2, 2, 1)
	src.Index = 7
	src.Duration = 120 * time.Millisecond
	got, err := Frame(src, 2)
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if got.Index != 7 || got.Duration != 120*time.Millisecond {
		t.Fatalf("index=%d duration=%v", got.Index, got.Duration)
	}
}

func TestFrame_Errors(t *testing.T) {
	valid := randomFrame(2, 2, 1)
	tests := []struct {
		name  string
		f     frame.Frame
		scale int
		want  error
	}{
		{"scale 1", valid, 1, ErrScale},
		{"scale 0", valid, 0, ErrScale},
		{"scale 11", valid, 11, ErrScale},
		{"negative", valid, -2, ErrScale},
		{"short pix", frame.Frame{Pix: make([]byte, 3), Width: 1, Height: 1}, 2, frame.ErrPixLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Frame(tt.f, tt.scale); !errors.Is(err, tt.want) {
				t.Fatalf("Frame() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSequence(t *testing.T) {
	seq := &frame.Sequence{
		Info: frame.Info{Format: frame.GIF, Width: 2, Height: 3, FrameCount: 3},
		Frames: []frame.Frame{
			randomFrame(2, 3, 1), randomFrame(2, 3, 2), randomFrame(2, 3, 3),
		},
	}
	var calls int
	out, err := Sequence(context.Background(), seq, 3, func(cur, total int) {
		calls++
		if cur != calls || total != 3 {
			t.Errorf("progress(%d, %d), want (%d, 3)", cur, total, calls)
		}
	})
	if err != nil {
		t.Fatalf("Sequence: %v", err)
	}
	if out.Len() != 3 || out.Info.Width != 6 || out.Info.Height != 9 {
		t.Fatalf("out = %d frames, %dx%d", out.Len(), out.Info.Width, out.Info.Height)
	}
	if seq.Info.Width != 2 {
		t.Fatal("input info modified")
	}
}

func TestSequence_Canceled(t *testing.T) {
	seq := &frame.Sequence{Frames: []frame.Frame{randomFrame(1, 1, 1), randomFrame(1, 1, 2)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if out, err := Sequence(ctx, seq, 2, nil); !errors.Is(err, context.Canceled) || out != nil {
		t.Fatalf("Sequence() = %v, %v, want nil, context.Canceled", out, err)
	}
}

func BenchmarkFrame(b *testing.B) {
	src := randomFrame(320, 240, 1)
	b.SetBytes(int64(len(src.Pix)))
	for i := 0; i < b.N; i++ {
		if _, err := Frame(src, 4); err != nil {
			b.Fatal(err)
		}
	}
}
