// Package containertest provides WebP fixtures for tests: two lossy sample
// files and a writer that assembles animated WebP files from parsed frames.
//
// The samples come from the golang.org/x/image test corpus:
// blue-purple-pink.lossy.webp is a simple VP8 file of 150x100 pixels and
// yellow_rose.lossy-with-alpha.webp is a VP8X file with an ALPH chunk,
// 400x301 pixels.
package containertest

import (
	"embed"
	"encoding/binary"
	"fmt"

	"github.com/deepteams/upscale/internal/container"
)

//go:embed testdata/*.webp
var samples embed.FS

func sample(name string) []byte {
	data, err := samples.ReadFile("testdata/" + name)
	if err != nil {
		panic(err)
	}
	return data
}

// Lossy returns a simple lossy (VP8) still.
func Lossy() []byte { return sample("blue-purple-pink.lossy.webp") }

// LossyAlpha returns an extended lossy still with an alpha plane.
func LossyAlpha() []byte { return sample("yellow_rose.lossy-with-alpha.webp") }

// Animate parses still and repeats its only frame n times as an animation
// looping forever, each frame lasting durMS milliseconds.
func Animate(still []byte, n, durMS int) ([]byte, error) {
	w, err := container.ParseWebP(still)
	if err != nil {
		return nil, err
	}
	anim := &container.WebP{
		Width:    w.Width,
		Height:   w.Height,
		Animated: true,
		HasAlpha: w.HasAlpha,
	}
	for i := 0; i < n; i++ {
		f := w.Frames[0]
		f.Index = i
		f.Duration = durMS
		anim.Frames = append(anim.Frames, f)
	}
	return WebP(anim)
}

// WebP writes w as a complete WebP file; it is the inverse of
// container.ParseWebP. Animated files are written as VP8X + ANIM + one ANMF
// per frame, with ALPH inside the ANMF ahead of the VP8 bitstream as
// libwebp orders it. A still is written through its frame's AppendStream.
func WebP(w *container.WebP) ([]byte, error) {
	if len(w.Frames) == 0 {
		return nil, container.ErrNoFrames
	}
	if !w.Animated {
		return w.Frames[0].AppendStream(nil), nil
	}

	dst := make([]byte, container.RIFFHeaderSize, 1024)
	binary.LittleEndian.PutUint32(dst[0:4], container.FourCCRIFF)
	binary.LittleEndian.PutUint32(dst[8:12], container.FourCCWEBP)

	vp8x := make([]byte, container.VP8XChunkSize)
	vp8x[0] = container.AnimationFlag
	if w.HasAlpha {
		vp8x[0] |= container.AlphaFlag
	}
	putUint24(vp8x[4:7], w.Width-1)
	putUint24(vp8x[7:10], w.Height-1)
	dst = appendChunk(dst, container.FourCCVP8X, vp8x)

	anim := make([]byte, container.ANIMChunkSize)
	binary.LittleEndian.PutUint32(anim[0:4], w.BackgroundColor)
	binary.LittleEndian.PutUint16(anim[4:6], uint16(max(w.LoopCount, 0)))
	dst = appendChunk(dst, container.FourCCANIM, anim)

	for i := range w.Frames {
		f := &w.Frames[i]
		if f.X%2 != 0 || f.Y%2 != 0 {
			return nil, fmt.Errorf("%w: frame %d offset (%d,%d) is odd", container.ErrInvalidChunk, i, f.X, f.Y)
		}
		if f.X+f.Width > w.Width || f.Y+f.Height > w.Height {
			return nil, fmt.Errorf("%w: frame %d", container.ErrFrameOutside, i)
		}
		dst = appendANMF(dst, f)
	}

	binary.LittleEndian.PutUint32(dst[4:8], uint32(len(dst)-container.ChunkHeaderSize))
	return dst, nil
}

func appendANMF(dst []byte, f *container.WebPFrame) []byte {
	start := len(dst)
	hdr := make([]byte, container.ChunkHeaderSize+container.ANMFHeaderSize)
	binary.LittleEndian.PutUint32(hdr[0:4], container.FourCCANMF)
	putUint24(hdr[8:11], f.X/2)
	putUint24(hdr[11:14], f.Y/2)
	putUint24(hdr[14:17], f.Width-1)
	putUint24(hdr[17:20], f.Height-1)
	putUint24(hdr[20:23], f.Duration)
	if f.DisposeBackground {
		hdr[23] |= 0x01
	}
	if f.NoBlend {
		hdr[23] |= 0x02
	}
	dst = append(dst, hdr...)

	if f.Lossless {
		dst = appendChunk(dst, container.FourCCVP8L, f.Bitstream)
	} else {
		if len(f.Alpha) > 0 {
			dst = appendChunk(dst, container.FourCCALPH, f.Alpha)
		}
		dst = appendChunk(dst, container.FourCCVP8, f.Bitstream)
	}

	// Sub-chunks are padded individually, so the payload is even.
	binary.LittleEndian.PutUint32(dst[start+4:start+8], uint32(len(dst)-start-container.ChunkHeaderSize))
	return dst
}

func appendChunk(dst []byte, fourcc uint32, payload []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, fourcc)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(payload)))
	dst = append(dst, payload...)
	if len(payload)%2 == 1 {
		dst = append(dst, 0)
	}
	return dst
}

func putUint24(b []byte, v int) {
	b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
}
