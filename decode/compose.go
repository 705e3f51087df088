package decode

import "image"

// compositeNRGBA draws src onto canvas at off. With blend set, pixels are
// alpha-blended over the canvas; otherwise they overwrite it. The frame
// rectangle is clipped to the canvas.
func compositeNRGBA(canvas, src *image.NRGBA, off image.Point, blend bool) {
	rect := src.Rect.Add(off).Intersect(canvas.Rect)
	if rect.Empty() {
		return
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		so := src.PixOffset(rect.Min.X-off.X, y-off.Y)
		do := canvas.PixOffset(rect.Min.X, y)
		n := 4 * rect.Dx()
		if !blend {
			copy(canvas.Pix[do:do+n], src.Pix[so:so+n])
			continue
		}
		for i := 0; i < n; i += 4 {
			blendOver(canvas.Pix[do+i:do+i+4:do+i+4], src.Pix[so+i:so+i+4:so+i+4])
		}
	}
}

// blendOver draws the non-premultiplied pixel src over dst in place. The
// integer arithmetic is libwebp's BlendPixelNonPremult, so blended frames
// match libwebp's animation decoder bit for bit.
func blendOver(dst, src []byte) {
	sa := uint32(src[3])
	if sa == 0 {
		return
	}
	if sa == 0xff || dst[3] == 0 {
		copy(dst[:4], src[:4])
		return
	}
	// da is the share of dst left visible; a is the resulting alpha.
	da := uint32(dst[3]) * (256 - sa) >> 8
	a := sa + da
	inv := (1 << 24) / a
	for c := 0; c < 3; c++ {
		v := (uint32(src[c])*sa + uint32(dst[c])*da) * inv >> 24
		dst[c] = uint8(min(v, 0xff))
	}
	dst[3] = uint8(a)
}

// clearRect sets rect (clipped to the canvas) to transparent black.
func clearRect(canvas *image.NRGBA, rect image.Rectangle) {
	rect = rect.Intersect(canvas.Rect)
	if rect.Empty() {
		return
	}
	n := 4 * rect.Dx()
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		o := canvas.PixOffset(rect.Min.X, y)
		clear(canvas.Pix[o : o+n])
	}
}
