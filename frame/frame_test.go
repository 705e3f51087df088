package frame

import (
	"errors"
	"image"
	"image/color"
	"testing"
	"time"
)

func TestParseMIME(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"image/gif", GIF},
		{"IMAGE/GIF", GIF},
		{" image/webp ", WebP},
		{"image/webp; charset=binary", WebP},
		{"image/png", Unknown},
		{"", Unknown},
	}
	for _, tt := range tests {
		if got := ParseMIME(tt.in); got != tt.want {
			t.Errorf("ParseMIME(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseExt(t *testing.T) {
	tests := []struct {
		in   string
		want Format
	}{
		{"cat.gif", GIF},
		{"CAT.GIF", GIF},
		{"dir.v2/anim.WebP", WebP},
		{"anim.webp.png", Unknown},
		{"noext", Unknown},
	}
	for _, tt := range tests {
		if got := ParseExt(tt.in); got != tt.want {
			t.Errorf("ParseExt(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatStrings(t *testing.T) {
	if GIF.MIMEType() != "image/gif" || GIF.Ext() != ".gif" || GIF.String() != "GIF" {
		t.Errorf("GIF strings = %q %q %q", GIF.MIMEType(), GIF.Ext(), GIF.String())
	}
	if WebP.MIMEType() != "image/webp" || WebP.Ext() != ".webp" || WebP.String() != "WebP" {
		t.Errorf("WebP strings = %q %q %q", WebP.MIMEType(), WebP.Ext(), WebP.String())
	}
	if Unknown.Ext() != "" {
		t.Errorf("Unknown.Ext() = %q, want empty", Unknown.Ext())
	}
}

func TestFromNRGBA_SubImage(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	img.SetNRGBA(2, 1, color.NRGBA{R: 9, G: 8, B: 7, A: 6})
	sub := img.SubImage(image.Rect(1, 1, 3, 3)).(*image.NRGBA)

	f := FromNRGBA(sub, 3, 40*time.Millisecond)
	if f.Width != 2 || f.Height != 2 {
		t.Fatalf("size = %dx%d, want 2x2", f.Width, f.Height)
	}
	if f.Index != 3 || f.Duration != 40*time.Millisecond {
		t.Fatalf("index/duration = %d/%v", f.Index, f.Duration)
	}
	if got := f.Image().NRGBAAt(1, 0); got != (color.NRGBA{R: 9, G: 8, B: 7, A: 6}) {
		t.Fatalf("pixel (1,0) = %v", got)
	}
}

func TestValidate(t *testing.T) {
	f := New(3, 2, 0)
	if err := f.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
	f.Pix = f.Pix[:5]
	if err := f.Validate(); !errors.Is(err, ErrPixLength) {
		t.Fatalf("Validate() short buffer = %v, want ErrPixLength", err)
	}
	z := Frame{}
	if err := z.Validate(); err == nil {
		t.Fatal("Validate() on empty frame returned nil")
	}
}
