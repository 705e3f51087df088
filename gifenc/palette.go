package gifenc

import (
	"image"
	"image/color"

	"github.com/ericpauley/go-quantize/quantize"

	"github.com/deepteams/upscale/frame"
)

// alphaThreshold separates transparent from opaque pixels; GIF has no
// partial transparency.
const alphaThreshold = 128

// maxSamples bounds the pixels handed to the median-cut quantizer.
const maxSamples = 1 << 16

// transparentIndex is the palette slot reserved for transparent pixels.
const transparentIndex = 0

// hasTransparency reports whether any pixel of f is below alphaThreshold.
func hasTransparency(f *frame.Frame) bool {
	for i := 3; i < len(f.Pix); i += 4 {
		if f.Pix[i] < alphaThreshold {
			return true
		}
	}
	return false
}

func rgbKey(p []byte) uint32 {
	return uint32(p[0])<<16 | uint32(p[1])<<8 | uint32(p[2])
}

// palettize converts f to a paletted image with at most maxColors entries.
// Frames whose opaque colors fit the palette are converted exactly; others
// go through median-cut quantization and nearest-color mapping.
func palettize(f *frame.Frame, maxColors int) *image.Paletted {
	transparent := hasTransparency(f)
	limit := maxColors
	var pal color.Palette
	if transparent {
		pal = append(pal, color.RGBA{})
		limit--
	}

	index := make(map[uint32]uint8)
	exact := true
	for i := 0; i < len(f.Pix); i += 4 {
		p := f.Pix[i : i+4 : i+4]
		if p[3] < alphaThreshold {
			continue
		}
		k := rgbKey(p)
		if _, ok := index[k]; ok {
			continue
		}
		if len(index) == limit {
			exact = false
			break
		}
		index[k] = uint8(len(pal))
		pal = append(pal, color.RGBA{R: p[0], G: p[1], B: p[2], A: 0xff})
	}

	if !exact {
		pal = pal[:0]
		if transparent {
			pal = append(pal, color.RGBA{})
		}
		pal = append(pal, medianCut(f, limit)...)
		clear(index)
	}
	if len(pal) == 0 {
		pal = append(pal, color.RGBA{A: 0xff})
	}

	img := image.NewPaletted(image.Rect(0, 0, f.Width, f.Height), pal)
	for i, o := 0, 0; i < len(f.Pix); i, o = i+4, o+1 {
		p := f.Pix[i : i+4 : i+4]
		if p[3] < alphaThreshold {
			img.Pix[o] = transparentIndex
			continue
		}
		k := rgbKey(p)
		idx, ok := index[k]
		if !ok {
			idx = nearest(pal, transparent, p)
			index[k] = idx
		}
		img.Pix[o] = idx
	}
	return img
}

// medianCut builds an opaque palette of at most n colors from a bounded
// sample of the opaque pixels of f.
func medianCut(f *frame.Frame, n int) color.Palette {
	opaque := 0
	for i := 3; i < len(f.Pix); i += 4 {
		if f.Pix[i] >= alphaThreshold {
			opaque++
		}
	}
	step := 1
	if opaque > maxSamples {
		step = (opaque + maxSamples - 1) / maxSamples
	}

	sample := image.NewNRGBA(image.Rect(0, 0, (opaque+step-1)/step, 1))
	o, seen := 0, 0
	for i := 0; i < len(f.Pix) && o < len(sample.Pix); i += 4 {
		if f.Pix[i+3] < alphaThreshold {
			continue
		}
		if seen%step == 0 {
			copy(sample.Pix[o:o+3], f.Pix[i:i+3])
			sample.Pix[o+3] = 0xff
			o += 4
		}
		seen++
	}

	q := quantize.MedianCutQuantizer{}
	raw := q.Quantize(make(color.Palette, 0, n), sample)

	pal := make(color.Palette, 0, n)
	for _, c := range raw {
		if len(pal) == n {
			break
		}
		r, g, b, _ := c.RGBA()
		pal = append(pal, color.RGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: 0xff})
	}
	if len(pal) == 0 {
		pal = append(pal, color.RGBA{A: 0xff})
	}
	return pal
}

// nearest returns the index of the opaque palette entry closest to p,
// skipping the transparent slot.
func nearest(pal color.Palette, transparent bool, p []byte) uint8 {
	start := 0
	if transparent {
		start = 1
	}
	best, bestDist := start, uint32(1<<32-1)
	for i := start; i < len(pal); i++ {
		c := pal[i].(color.RGBA)
		dr := int32(c.R) - int32(p[0])
		dg := int32(c.G) - int32(p[1])
		db := int32(c.B) - int32(p[2])
		d := uint32(dr*dr + dg*dg + db*db)
		if d < bestDist {
			best, bestDist = i, d
			if d == 0 {
				break
			}
		}
	}
	return uint8(best)
}
