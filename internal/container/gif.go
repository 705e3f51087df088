package container

import (
	"bytes"
	"fmt"
)

// GIF disposal methods as stored in the graphic control extension.
const (
	GIFDisposalUnspecified = 0
	GIFDisposalNone        = 1
	GIFDisposalBackground  = 2
	GIFDisposalPrevious    = 3
)

// GIFFrame locates one image of a GIF stream together with the graphic
// control extension that precedes it.
type GIFFrame struct {
	Index  int
	X, Y   int
	Width  int
	Height int

	// HasGCE is false when the image has no graphic control extension;
	// Delay, Disposal and Transparent are then zero.
	HasGCE           bool
	Delay            int // centiseconds
	Disposal         int
	Transparent      bool
	TransparentIndex byte

	LocalTable bool

	gcePacked byte
	block     []byte // image descriptor through the block terminator
}

// GIF is the parsed block structure of a GIF stream.
type GIF struct {
	Width, Height int

	// LoopCount is the NETSCAPE2.0 loop count (0 = infinite) or -1 when
	// the stream carries no application loop extension.
	LoopCount int

	Frames []GIFFrame

	screen      [gifScreenDescSize]byte
	globalTable []byte
}

// HasGlobalTable reports whether the stream has a global color table.
func (g *GIF) HasGlobalTable() bool { return len(g.globalTable) > 0 }

// ParseGIF walks every block of a GIF stream. It validates sub-block
// chains, counts frames and reads timing, disposal, transparency and loop
// metadata without decompressing any image data.
//
// A stream that ends without a trailer after at least one complete image
// is accepted.
func ParseGIF(data []byte) (*GIF, error) {
	if len(data) < gifHeaderSize+gifScreenDescSize {
		return nil, frameErr(-1, ErrTruncated)
	}
	if !bytes.HasPrefix(data, []byte("GIF87a")) && !bytes.HasPrefix(data, []byte("GIF89a")) {
		return nil, frameErr(-1, ErrInvalidGIF)
	}

	g := &GIF{LoopCount: -1}
	copy(g.screen[:], data[gifHeaderSize:gifHeaderSize+gifScreenDescSize])
	g.Width = readLE16(g.screen[0:2])
	g.Height = readLE16(g.screen[2:4])

	pos := gifHeaderSize + gifScreenDescSize
	if packed := g.screen[4]; packed&gifColorTableFlag != 0 {
		n := colorTableLen(packed)
		if pos+n > len(data) {
			return nil, frameErr(-1, ErrTruncated)
		}
		g.globalTable = data[pos : pos+n]
		pos += n
	}

	var (
		pendingGCE bool
		gcePacked  byte
		delay      int
		transIndex byte
	)
	for {
		index := len(g.Frames)
		if pos >= len(data) {
			if index > 0 {
				break
			}
			return nil, frameErr(0, ErrTruncated)
		}

		switch data[pos] {
		case gifTrailer:
			if index == 0 {
				return nil, frameErr(-1, ErrNoFrames)
			}
			g.fixCanvas()
			return g, nil

		case gifExtensionIntroducer:
			if pos+2 > len(data) {
				return nil, frameErr(index, ErrTruncated)
			}
			label := data[pos+1]
			body := pos + 2
			end, err := skipSubBlocks(data, body)
			if err != nil {
				return nil, frameErr(index, err)
			}
			switch label {
			case gifLabelGraphicControl:
				n := int(data[body])
				if n < 4 {
					return nil, frameErr(index, fmt.Errorf("%w: graphic control extension size %d", ErrInvalidBlock, n))
				}
				pendingGCE = true
				gcePacked = data[body+1]
				delay = readLE16(data[body+2 : body+4])
				transIndex = data[body+4]
			case gifLabelApplication:
				g.readApplication(data[body:end])
			}
			pos = end

		case gifImageSeparator:
			f, end, err := g.readImage(data, pos)
			if err != nil {
				return nil, frameErr(index, err)
			}
			f.Index = index
			if pendingGCE {
				f.HasGCE = true
				f.gcePacked = gcePacked
				f.Delay = delay
				f.Disposal = int(gcePacked>>2) & 0x07
				f.Transparent = gcePacked&0x01 != 0
				f.TransparentIndex = transIndex
				pendingGCE = false
			}
			g.Frames = append(g.Frames, f)
			pos = end

		default:
			return nil, frameErr(index, fmt.Errorf("%w: unknown block 0x%02x at offset %d", ErrInvalidBlock, data[pos], pos))
		}
	}

	g.fixCanvas()
	return g, nil
}

// readApplication recognizes the NETSCAPE2.0 / ANIMEXTS1.0 loop extension.
// blocks starts at the first sub-block size byte.
func (g *GIF) readApplication(blocks []byte) {
	if len(blocks) < 12 || blocks[0] != 11 {
		return
	}
	id := string(blocks[1:12])
	if id != "NETSCAPE2.0" && id != "ANIMEXTS1.0" {
		return
	}
	sub := blocks[12:]
	if len(sub) >= 4 && sub[0] >= 3 && sub[1] == 1 {
		g.LoopCount = readLE16(sub[2:4])
	}
}

// readImage parses the image descriptor at pos and validates the LZW
// sub-block chain that follows it.
func (g *GIF) readImage(data []byte, pos int) (GIFFrame, int, error) {
	if pos+gifImageDescSize > len(data) {
		return GIFFrame{}, 0, ErrTruncated
	}
	desc := data[pos : pos+gifImageDescSize]
	f := GIFFrame{
		X:      readLE16(desc[1:3]),
		Y:      readLE16(desc[3:5]),
		Width:  readLE16(desc[5:7]),
		Height: readLE16(desc[7:9]),
	}
	packed := desc[9]
	f.LocalTable = packed&gifColorTableFlag != 0
	if f.Width == 0 || f.Height == 0 {
		return GIFFrame{}, 0, ErrInvalidImage
	}
	if !f.LocalTable && !g.HasGlobalTable() {
		return GIFFrame{}, 0, ErrNoColorTable
	}

	p := pos + gifImageDescSize
	if f.LocalTable {
		p += colorTableLen(packed)
	}
	// LZW minimum code size.
	if p >= len(data) {
		return GIFFrame{}, 0, ErrTruncated
	}
	if lzw := data[p]; lzw < 1 || lzw > 11 {
		return GIFFrame{}, 0, fmt.Errorf("%w: LZW code size %d", ErrInvalidBlock, lzw)
	}
	end, err := skipSubBlocks(data, p+1)
	if err != nil {
		return GIFFrame{}, 0, err
	}
	f.block = data[pos:end]
	return f, end, nil
}

// fixCanvas falls back to the first frame's extent when the logical screen
// descriptor declares an empty canvas.
func (g *GIF) fixCanvas() {
	if (g.Width == 0 || g.Height == 0) && len(g.Frames) > 0 {
		f := g.Frames[0]
		g.Width = f.X + f.Width
		g.Height = f.Y + f.Height
	}
}

// skipSubBlocks returns the offset just past the block terminator of the
// sub-block chain starting at pos.
func skipSubBlocks(data []byte, pos int) (int, error) {
	for {
		if pos >= len(data) {
			return 0, ErrTruncated
		}
		n := int(data[pos])
		pos++
		if n == 0 {
			return pos, nil
		}
		pos += n
		if pos > len(data) {
			return 0, ErrTruncated
		}
	}
}

func colorTableLen(packed byte) int {
	return 3 * (1 << ((packed & gifTableSizeMask) + 1))
}

// StreamSize returns the byte length of the single-image stream built by
// AppendStream for f.
func (g *GIF) StreamSize(f *GIFFrame) int {
	n := gifHeaderSize + gifScreenDescSize + len(g.globalTable) + len(f.block) + 1
	if f.HasGCE {
		n += gifGCESize
	}
	return n
}

// AppendStream appends a standalone single-image GIF holding frame f to dst.
// The stream keeps the global color table and the frame's graphic control
// extension so the frame decodes with the same palette and transparency.
// The image is moved to the origin of a screen exactly its size, so it
// decodes to (0,0)-(Width,Height) whatever its placement on the canvas;
// callers position it at (f.X, f.Y).
func (g *GIF) AppendStream(dst []byte, f *GIFFrame) []byte {
	dst = append(dst, "GIF89a"...)

	screen := g.screen
	screen[0], screen[1] = byte(f.Width), byte(f.Width>>8)
	screen[2], screen[3] = byte(f.Height), byte(f.Height>>8)
	dst = append(dst, screen[:]...)
	dst = append(dst, g.globalTable...)

	if f.HasGCE {
		dst = append(dst,
			gifExtensionIntroducer, gifLabelGraphicControl, 4,
			f.gcePacked, byte(f.Delay), byte(f.Delay>>8), f.TransparentIndex,
			0)
	}
	desc := len(dst)
	dst = append(dst, f.block...)
	clear(dst[desc+1 : desc+5])
	return append(dst, gifTrailer)
}
