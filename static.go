package upscale

import (
	"bytes"

	"github.com/HugoSmits86/nativewebp"

	"github.com/deepteams/upscale/frame"
)

// encodeStaticWebP writes f as a lossless (VP8L) still WebP.
func encodeStaticWebP(f *frame.Frame) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(f.Pix) / 4)
	if err := nativewebp.Encode(&buf, f.Image(), nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
