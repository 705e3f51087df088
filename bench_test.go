package upscale

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/color/palette"
	"image/gif"
	"testing"
)

// gradientGIF builds a 160x120 animation drawn from the web-safe palette.
func gradientGIF(b *testing.B, frames int) []byte {
	g := &gif.GIF{}
	for i := 0; i < frames; i++ {
		img := image.NewPaletted(image.Rect(0, 0, 160, 120), palette.WebSafe)
		for y := 0; y < 120; y++ {
			for x := 0; x < 160; x++ {
				img.SetColorIndex(x, y, uint8((x+y+i*7)%len(palette.WebSafe)))
			}
		}
		g.Image = append(g.Image, img)
		g.Delay = append(g.Delay, 4)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		b.Fatal(err)
	}
	return buf.Bytes()
}

func BenchmarkConvertGIF(b *testing.B) {
	data := gradientGIF(b, 8)
	for _, scale := range []int{2, 4} {
		b.Run(fmt.Sprintf("x%d", scale), func(b *testing.B) {
			req := Request{Data: data, FileName: "bench.gif", Params: Params{Scale: scale}}
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				out, err := Convert(context.Background(), req)
				if err != nil {
					b.Fatal(err)
				}
				b.SetBytes(int64(len(out.Data)))
			}
		})
	}
}

func BenchmarkConvertStaticWebP(b *testing.B) {
	img := image.NewNRGBA(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x + y), A: 255})
		}
	}
	req := Request{Data: webpStill(b, img), FileName: "bench.webp", Params: Params{Scale: 2}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Convert(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}
