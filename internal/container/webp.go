package container

import (
	"encoding/binary"
	"fmt"
)

// WebPFrame holds the placement, timing and raw bitstream of one frame of a
// WebP file. Still images produce a single WebPFrame covering the canvas.
type WebPFrame struct {
	Index    int
	X, Y     int
	Width    int
	Height   int
	Duration int // milliseconds

	DisposeBackground bool // dispose bit of the ANMF flags
	NoBlend           bool // blending bit of the ANMF flags

	Lossless  bool   // VP8L when true, VP8 otherwise
	HasAlpha  bool   // VP8L alpha hint or presence of ALPH
	Bitstream []byte // VP8 or VP8L chunk payload
	Alpha     []byte // ALPH chunk payload (VP8 only)
}

// WebP is the parsed structure of a WebP file.
type WebP struct {
	Width, Height int
	Animated      bool
	HasAlpha      bool

	// LoopCount is the ANIM loop count (0 = infinite) or -1 for stills.
	LoopCount       int
	BackgroundColor uint32 // ANIM background color, BGRA byte order

	Frames []WebPFrame
}

// Lossless reports whether every frame is VP8L encoded.
func (w *WebP) Lossless() bool {
	for i := range w.Frames {
		if !w.Frames[i].Lossless {
			return false
		}
	}
	return len(w.Frames) > 0
}

// ParseWebP parses a complete WebP file held in data. Bitstream payloads
// in the result are sub-slices of data.
func ParseWebP(data []byte) (*WebP, error) {
	buf, err := parseRIFFHeader(data)
	if err != nil {
		return nil, frameErr(-1, err)
	}
	if len(buf) < ChunkHeaderSize {
		return nil, frameErr(-1, ErrTruncated)
	}

	w := &WebP{LoopCount: -1}
	switch first := binary.LittleEndian.Uint32(buf[0:4]); first {
	case FourCCVP8X:
		err = w.parseExtended(buf)
	case FourCCVP8, FourCCVP8L:
		err = w.parseSimple(buf)
	default:
		err = frameErr(-1, fmt.Errorf("%w: unexpected first chunk %q", ErrInvalidChunk, FourCCString(first)))
	}
	if err != nil {
		return nil, err
	}
	if len(w.Frames) == 0 {
		return nil, frameErr(-1, ErrNoFrames)
	}
	return w, nil
}

// parseSimple parses a non-extended WebP file (a single VP8 or VP8L chunk).
func (w *WebP) parseSimple(buf []byte) error {
	fourcc, payload, _, err := readChunk(buf)
	if err != nil {
		return frameErr(0, err)
	}
	f := WebPFrame{Bitstream: payload, Lossless: fourcc == FourCCVP8L}
	if err := f.readBitstreamHeader(); err != nil {
		return frameErr(0, err)
	}
	w.Width, w.Height = f.Width, f.Height
	w.HasAlpha = f.HasAlpha
	w.Frames = append(w.Frames, f)
	return nil
}

// parseExtended parses a VP8X file, still or animated.
func (w *WebP) parseExtended(buf []byte) error {
	_, payload, rest, err := readChunk(buf)
	if err != nil {
		return frameErr(-1, err)
	}
	if len(payload) != VP8XChunkSize {
		return frameErr(-1, ErrInvalidVP8X)
	}

	flags := payload[0]
	w.Animated = flags&AnimationFlag != 0
	w.HasAlpha = flags&AlphaFlag != 0

	// Canvas dimensions: 24-bit LE, stored as value-1.
	w.Width = 1 + readLE24(payload[4:7])
	w.Height = 1 + readLE24(payload[7:10])
	if uint64(w.Width)*uint64(w.Height) >= MaxImageArea {
		return frameErr(-1, ErrInvalidImage)
	}

	if w.Animated {
		return w.parseAnimation(rest)
	}
	return w.parseExtendedStill(rest)
}

// parseExtendedStill locates the image chunk of a VP8X still, skipping
// metadata chunks (ICCP, EXIF, XMP and unknown chunks).
func (w *WebP) parseExtendedStill(buf []byte) error {
	var alpha []byte
	for len(buf) > 0 {
		fourcc, payload, rest, err := readChunk(buf)
		if err != nil {
			return frameErr(0, err)
		}
		switch fourcc {
		case FourCCALPH:
			alpha = payload
		case FourCCVP8, FourCCVP8L:
			f := WebPFrame{Bitstream: payload, Lossless: fourcc == FourCCVP8L}
			if !f.Lossless {
				f.Alpha = alpha
			}
			if err := f.readBitstreamHeader(); err != nil {
				return frameErr(0, err)
			}
			if f.Width != w.Width || f.Height != w.Height {
				return frameErr(0, fmt.Errorf("%w: bitstream %dx%d on canvas %dx%d",
					ErrInvalidImage, f.Width, f.Height, w.Width, w.Height))
			}
			w.HasAlpha = w.HasAlpha || f.HasAlpha
			w.Frames = append(w.Frames, f)
			return nil
		case FourCCANMF, FourCCANIM:
			return frameErr(0, fmt.Errorf("%w: %s in still image", ErrInvalidChunk, FourCCString(fourcc)))
		}
		buf = rest
	}
	return frameErr(0, ErrNoFrames)
}

// parseAnimation reads the ANIM chunk and every ANMF chunk that follows it.
func (w *WebP) parseAnimation(buf []byte) error {
	seenANIM := false
	for len(buf) > 0 {
		index := len(w.Frames)
		fourcc, payload, rest, err := readChunk(buf)
		if err != nil {
			return frameErr(index, err)
		}
		switch fourcc {
		case FourCCANIM:
			if len(payload) < ANIMChunkSize {
				return frameErr(-1, ErrInvalidChunk)
			}
			seenANIM = true
			w.BackgroundColor = binary.LittleEndian.Uint32(payload[0:4])
			w.LoopCount = readLE16(payload[4:6])
		case FourCCANMF:
			if !seenANIM {
				return frameErr(index, fmt.Errorf("%w: ANMF before ANIM", ErrInvalidChunk))
			}
			f, err := parseANMF(payload)
			if err != nil {
				return frameErr(index, err)
			}
			if f.X+f.Width > w.Width || f.Y+f.Height > w.Height {
				return frameErr(index, fmt.Errorf("%w: %dx%d at (%d,%d) on canvas %dx%d",
					ErrFrameOutside, f.Width, f.Height, f.X, f.Y, w.Width, w.Height))
			}
			f.Index = index
			w.Frames = append(w.Frames, f)
		case FourCCVP8, FourCCVP8L, FourCCALPH:
			return frameErr(index, fmt.Errorf("%w: %s outside ANMF", ErrInvalidChunk, FourCCString(fourcc)))
		}
		buf = rest
	}
	if !seenANIM {
		return frameErr(-1, fmt.Errorf("%w: animation without ANIM chunk", ErrInvalidChunk))
	}
	return nil
}

// parseANMF parses an ANMF chunk payload into a WebPFrame.
func parseANMF(payload []byte) (WebPFrame, error) {
	if len(payload) < ANMFHeaderSize {
		return WebPFrame{}, ErrTruncated
	}
	f := WebPFrame{
		X:        2 * readLE24(payload[0:3]),
		Y:        2 * readLE24(payload[3:6]),
		Width:    1 + readLE24(payload[6:9]),
		Height:   1 + readLE24(payload[9:12]),
		Duration: readLE24(payload[12:15]),
	}
	bits := payload[15]
	f.DisposeBackground = bits&1 != 0
	f.NoBlend = bits&2 != 0

	width, height := f.Width, f.Height
	buf := payload[ANMFHeaderSize:]
	for len(buf) > 0 {
		fourcc, sub, rest, err := readChunk(buf)
		if err != nil {
			return WebPFrame{}, err
		}
		switch fourcc {
		case FourCCALPH:
			f.Alpha = sub
		case FourCCVP8, FourCCVP8L:
			f.Bitstream = sub
			f.Lossless = fourcc == FourCCVP8L
			if f.Lossless {
				f.Alpha = nil
			}
			if err := f.readBitstreamHeader(); err != nil {
				return WebPFrame{}, err
			}
			if f.Width != width || f.Height != height {
				return WebPFrame{}, fmt.Errorf("%w: bitstream %dx%d in %dx%d frame",
					ErrInvalidImage, f.Width, f.Height, width, height)
			}
			return f, nil
		}
		buf = rest
	}
	return WebPFrame{}, fmt.Errorf("%w: ANMF without image data", ErrInvalidChunk)
}

// readBitstreamHeader fills Width, Height and HasAlpha from the VP8 or VP8L
// frame header.
func (f *WebPFrame) readBitstreamHeader() error {
	var err error
	if f.Lossless {
		f.Width, f.Height, f.HasAlpha, err = parseVP8LHeader(f.Bitstream)
		return err
	}
	f.Width, f.Height, err = parseVP8Header(f.Bitstream)
	f.HasAlpha = len(f.Alpha) > 0
	return err
}

// parseVP8Header extracts width and height from a VP8 keyframe header.
func parseVP8Header(data []byte) (width, height int, err error) {
	if len(data) < VP8FrameHeaderSize {
		return 0, 0, ErrTruncated
	}
	frameTag := uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16
	if frameTag&1 != 0 {
		return 0, 0, fmt.Errorf("%w: VP8 non-keyframe", ErrInvalidChunk)
	}
	sig := uint32(data[3])<<16 | uint32(data[4])<<8 | uint32(data[5])
	if sig != VP8Signature {
		return 0, 0, fmt.Errorf("%w: VP8 signature 0x%06x", ErrInvalidChunk, sig)
	}
	width = readLE16(data[6:8]) & 0x3fff
	height = readLE16(data[8:10]) & 0x3fff
	if width == 0 || height == 0 {
		return 0, 0, ErrInvalidImage
	}
	return width, height, nil
}

// parseVP8LHeader extracts width, height and the alpha hint from a VP8L
// bitstream header.
func parseVP8LHeader(data []byte) (width, height int, hasAlpha bool, err error) {
	if len(data) < VP8LFrameHeaderSize {
		return 0, 0, false, ErrTruncated
	}
	if data[0] != VP8LMagicByte {
		return 0, 0, false, fmt.Errorf("%w: VP8L signature 0x%02x", ErrInvalidChunk, data[0])
	}
	bits := binary.LittleEndian.Uint32(data[1:5])
	width = int(bits&0x3fff) + 1
	height = int((bits>>14)&0x3fff) + 1
	hasAlpha = (bits>>28)&1 != 0
	if version := (bits >> 29) & 0x7; version != VP8LVersion {
		return 0, 0, false, fmt.Errorf("%w: VP8L version %d", ErrInvalidChunk, version)
	}
	return width, height, hasAlpha, nil
}

// StreamSize returns the byte length of the standalone stream built by
// AppendStream.
func (f *WebPFrame) StreamSize() int {
	n := RIFFHeaderSize + ChunkHeaderSize + int(paddedSize(uint32(len(f.Bitstream))))
	if f.needsVP8X() {
		n += ChunkHeaderSize + VP8XChunkSize
		n += ChunkHeaderSize + int(paddedSize(uint32(len(f.Alpha))))
	}
	return n
}

func (f *WebPFrame) needsVP8X() bool {
	return !f.Lossless && len(f.Alpha) > 0
}

// AppendStream appends a standalone still WebP holding only this frame's
// bitstream to dst: a simple VP8L or VP8 file, or VP8X+ALPH+VP8 when the
// frame carries a separate alpha plane.
func (f *WebPFrame) AppendStream(dst []byte) []byte {
	start := len(dst)
	var hdr [RIFFHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], FourCCRIFF)
	binary.LittleEndian.PutUint32(hdr[8:12], FourCCWEBP)
	dst = append(dst, hdr[:]...)

	switch {
	case f.Lossless:
		dst = appendChunk(dst, FourCCVP8L, f.Bitstream)
	case f.needsVP8X():
		var vp8x [VP8XChunkSize]byte
		vp8x[0] = AlphaFlag
		putLE24(vp8x[4:7], f.Width-1)
		putLE24(vp8x[7:10], f.Height-1)
		dst = appendChunk(dst, FourCCVP8X, vp8x[:])
		dst = appendChunk(dst, FourCCALPH, f.Alpha)
		dst = appendChunk(dst, FourCCVP8, f.Bitstream)
	default:
		dst = appendChunk(dst, FourCCVP8, f.Bitstream)
	}

	binary.LittleEndian.PutUint32(dst[start+4:start+8], uint32(len(dst)-start-ChunkHeaderSize))
	return dst
}
