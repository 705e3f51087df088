// Package container parses the block structure of GIF and RIFF/WebP files.
//
// It never decodes pixels: it locates frames, reads their timing and
// placement metadata and re-wraps single frames into standalone streams
// that a bitstream decoder can consume.
package container

import "encoding/binary"

// FourCC creates a FourCC value from four bytes (little-endian).
func FourCC(a, b, c, d byte) uint32 {
	return uint32(a) | uint32(b)<<8 | uint32(c)<<16 | uint32(d)<<24
}

// RIFF/WebP FourCC values.
var (
	FourCCRIFF = FourCC('R', 'I', 'F', 'F')
	FourCCWEBP = FourCC('W', 'E', 'B', 'P')
	FourCCVP8  = FourCC('V', 'P', '8', ' ')
	FourCCVP8L = FourCC('V', 'P', '8', 'L')
	FourCCVP8X = FourCC('V', 'P', '8', 'X')
	FourCCALPH = FourCC('A', 'L', 'P', 'H')
	FourCCANIM = FourCC('A', 'N', 'I', 'M')
	FourCCANMF = FourCC('A', 'N', 'M', 'F')
)

// RIFF structure sizes.
const (
	ChunkHeaderSize = 8  // FourCC + little-endian payload size
	RIFFHeaderSize  = 12 // "RIFFnnnnWEBP"
	ANMFHeaderSize  = 16 // ANMF payload before its sub-chunks
	ANIMChunkSize   = 6
	VP8XChunkSize   = 10
)

// Bitstream header constants.
const (
	VP8Signature        = 0x9d012a
	VP8FrameHeaderSize  = 10
	VP8LMagicByte       = 0x2f
	VP8LVersion         = 0
	VP8LFrameHeaderSize = 5
)

// VP8X feature flags.
const (
	AnimationFlag byte = 0x02
	XMPFlag       byte = 0x04
	EXIFFlag      byte = 0x08
	AlphaFlag     byte = 0x10
	ICCPFlag      byte = 0x20
)

// Limits.
const (
	MaxImageArea    = uint64(1) << 32
	MaxChunkPayload = ^uint32(0) - ChunkHeaderSize - 1
)

// GIF block introducers and labels.
const (
	gifExtensionIntroducer = 0x21
	gifImageSeparator      = 0x2c
	gifTrailer             = 0x3b

	gifLabelGraphicControl = 0xf9
	gifLabelApplication    = 0xff

	gifHeaderSize     = 6
	gifScreenDescSize = 7
	gifImageDescSize  = 10 // including the separator byte
	gifGCESize        = 8  // introducer, label, size, 4 bytes, terminator

	gifColorTableFlag = 0x80
	gifTableSizeMask  = 0x07
)

func readLE16(b []byte) int {
	return int(binary.LittleEndian.Uint16(b))
}

// readLE24 reads a 24-bit little-endian integer from 3 bytes.
func readLE24(b []byte) int {
	return int(b[0]) | int(b[1])<<8 | int(b[2])<<16
}

func putLE24(b []byte, v int) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
}

// FourCCString returns a human-readable string for a FourCC value.
func FourCCString(fourcc uint32) string {
	b := [4]byte{
		byte(fourcc),
		byte(fourcc >> 8),
		byte(fourcc >> 16),
		byte(fourcc >> 24),
	}
	return string(b[:])
}
