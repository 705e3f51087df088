package container

import (
	"bytes"

	"github.com/deepteams/upscale/frame"
)

// Sniff identifies the container from its magic bytes.
func Sniff(data []byte) frame.Format {
	switch {
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return frame.GIF
	case len(data) >= RIFFHeaderSize && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return frame.WebP
	default:
		return frame.Unknown
	}
}
