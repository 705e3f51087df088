package container

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrTruncated    = errors.New("container: truncated data")
	ErrInvalidRIFF  = errors.New("container: invalid RIFF header")
	ErrInvalidWebP  = errors.New("container: invalid WEBP signature")
	ErrInvalidChunk = errors.New("container: invalid chunk")
	ErrInvalidVP8X  = errors.New("container: invalid VP8X chunk")
	ErrInvalidImage = errors.New("container: invalid image dimensions")
	ErrTooLarge     = errors.New("container: chunk too large")
	ErrNoFrames     = errors.New("container: no image frames")
	ErrInvalidGIF   = errors.New("container: invalid GIF signature")
	ErrInvalidBlock = errors.New("container: invalid GIF block")
	ErrFrameOutside = errors.New("container: frame exceeds canvas bounds")
	ErrNoColorTable = errors.New("container: frame has no color table")
)

// parseRIFFHeader validates the 12-byte RIFF/WEBP header and returns the
// chunk area bounded by the declared RIFF size.
func parseRIFFHeader(data []byte) ([]byte, error) {
	if len(data) < RIFFHeaderSize {
		return nil, ErrTruncated
	}
	if binary.LittleEndian.Uint32(data[0:4]) != FourCCRIFF {
		return nil, ErrInvalidRIFF
	}
	size := binary.LittleEndian.Uint32(data[4:8])
	if size < 4+ChunkHeaderSize {
		return nil, ErrInvalidRIFF
	}
	if size > MaxChunkPayload {
		return nil, ErrTooLarge
	}
	if binary.LittleEndian.Uint32(data[8:12]) != FourCCWEBP {
		return nil, ErrInvalidWebP
	}
	// Limit parsing to the declared RIFF size; chunk reads catch truncation.
	end := int(size) + ChunkHeaderSize
	if end > len(data) {
		end = len(data)
	}
	return data[RIFFHeaderSize:end], nil
}

// readChunk splits the next chunk off buf. It returns the FourCC, the
// payload (without padding) and the remainder after the padded payload.
func readChunk(buf []byte) (fourcc uint32, payload, rest []byte, err error) {
	if len(buf) < ChunkHeaderSize {
		return 0, nil, nil, ErrTruncated
	}
	fourcc = binary.LittleEndian.Uint32(buf[0:4])
	size := binary.LittleEndian.Uint32(buf[4:8])
	if size > MaxChunkPayload {
		return 0, nil, nil, ErrTooLarge
	}
	total := uint64(ChunkHeaderSize) + uint64(paddedSize(size))
	if total > uint64(len(buf)) {
		// A missing pad byte on the very last chunk is tolerated.
		if total-1 == uint64(len(buf)) && size&1 == 1 {
			return fourcc, buf[ChunkHeaderSize : ChunkHeaderSize+int(size)], nil, nil
		}
		return 0, nil, nil, ErrTruncated
	}
	return fourcc, buf[ChunkHeaderSize : ChunkHeaderSize+int(size)], buf[total:], nil
}

// paddedSize returns the payload size padded to an even number of bytes,
// as required by the RIFF format.
func paddedSize(size uint32) uint32 {
	return size + (size & 1)
}

// appendChunk appends a chunk header, payload and pad byte to dst.
func appendChunk(dst []byte, fourcc uint32, payload []byte) []byte {
	var hdr [ChunkHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], fourcc)
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(len(payload)))
	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)
	if len(payload)&1 == 1 {
		dst = append(dst, 0)
	}
	return dst
}

// FrameError reports a structural error found while parsing the frame at
// Index. Index is -1 when the error precedes the first frame.
type FrameError struct {
	Index int
	Err   error
}

func (e *FrameError) Error() string {
	if e.Index < 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("frame %d: %v", e.Index, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

func frameErr(index int, err error) error {
	return &FrameError{Index: index, Err: err}
}
