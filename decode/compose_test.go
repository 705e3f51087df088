package decode

import (
	"image"
	"image/color"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// --- blendOver ---

func blended(src, dst color.NRGBA) color.NRGBA {
	d := []byte{dst.R, dst.G, dst.B, dst.A}
	blendOver(d, []byte{src.R, src.G, src.B, src.A})
	return color.NRGBA{R: d[0], G: d[1], B: d[2], A: d[3]}
}

func TestBlendOver(t *testing.T) {
	opaque := color.NRGBA{R: 10, G: 20, B: 30, A: 255}
	half := color.NRGBA{R: 100, G: 100, B: 100, A: 128}

	tests := []struct {
		name     string
		src, dst color.NRGBA
		want     color.NRGBA
	}{
		{"opaque src", opaque, half, opaque},
		{"transparent src", color.NRGBA{R: 255}, half, half},
		{"transparent dst", half, color.NRGBA{}, half},
		// da = 255*128>>8 = 127, a = 255, inv = 2^24/255 = 65793.
		{"half over opaque", color.NRGBA{R: 200, G: 100, B: 50, A: 128}, color.NRGBA{R: 50, G: 200, B: 100, A: 255},
			color.NRGBA{R: 125, G: 149, B: 74, A: 255}},
		// da = 100*156>>8 = 60, a = 160, inv = 2^24/160 = 104857.
		{"both translucent", color.NRGBA{R: 255, A: 100}, color.NRGBA{B: 255, A: 100},
			color.NRGBA{R: 159, G: 0, B: 95, A: 160}},
	}
	for _, tt := range tests {
		if got := blended(tt.src, tt.dst); got != tt.want {
			t.Errorf("%s: blendOver = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// --- compositeNRGBA / clearRect ---

func TestCompositeNRGBA_Overwrite(t *testing.T) {
	canvas := solid(4, 4, color.NRGBA{R: 255, A: 255})
	src := solid(2, 2, color.NRGBA{})
	compositeNRGBA(canvas, src, image.Pt(2, 2), false)

	if got := canvas.NRGBAAt(3, 3); got != (color.NRGBA{}) {
		t.Fatalf("(3,3) = %v, want transparent", got)
	}
	if got := canvas.NRGBAAt(1, 1); got.R != 255 {
		t.Fatalf("(1,1) = %v, want red", got)
	}
}

func TestCompositeNRGBA_BlendKeepsUnderlying(t *testing.T) {
	canvas := solid(2, 2, color.NRGBA{G: 255, A: 255})
	src := solid(2, 2, color.NRGBA{})
	src.SetNRGBA(0, 0, color.NRGBA{B: 255, A: 255})
	compositeNRGBA(canvas, src, image.Point{}, true)

	if got := canvas.NRGBAAt(0, 0); got != (color.NRGBA{B: 255, A: 255}) {
		t.Fatalf("(0,0) = %v, want blue", got)
	}
	if got := canvas.NRGBAAt(1, 1); got != (color.NRGBA{G: 255, A: 255}) {
		t.Fatalf("(1,1) = %v, want green", got)
	}
}

func TestCompositeNRGBA_ClipsToCanvas(t *testing.T) {
	canvas := image.NewNRGBA(image.Rect(0, 0, 3, 3))
	src := solid(4, 4, color.NRGBA{R: 9, A: 255})
	compositeNRGBA(canvas, src, image.Pt(2, 2), false)

	if got := canvas.NRGBAAt(2, 2); got.R != 9 {
		t.Fatalf("(2,2) = %v, want overwritten", got)
	}
	if got := canvas.NRGBAAt(1, 1); got.A != 0 {
		t.Fatalf("(1,1) = %v, want untouched", got)
	}
}

func TestClearRect(t *testing.T) {
	canvas := solid(4, 4, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	clearRect(canvas, image.Rect(1, 1, 10, 2))
	for x := 0; x < 4; x++ {
		got := canvas.NRGBAAt(x, 1)
		if x >= 1 && got.A != 0 {
			t.Errorf("(%d,1) = %v, want cleared", x, got)
		}
		if x == 0 && got.A != 255 {
			t.Errorf("(0,1) = %v, want untouched", got)
		}
	}
	if got := canvas.NRGBAAt(2, 2); got.A != 255 {
		t.Errorf("(2,2) = %v, want untouched", got)
	}
}
