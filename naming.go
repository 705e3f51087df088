package upscale

import (
	"path/filepath"
	"strings"

	"github.com/deepteams/upscale/frame"
)

// Suffix is inserted before the extension of output file names.
const Suffix = "_upscaled"

// OutputName returns the suggested name for the output of converting name
// to format: the base name without its extension, Suffix, and the output
// format's extension.
//
//	OutputName("dir/cat.WEBP", frame.GIF) == "cat_upscaled.gif"
func OutputName(name string, format frame.Format) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		base = ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" {
		base = "image"
	}
	return base + Suffix + format.Ext()
}

// IsOutputName reports whether name looks like a file produced by
// OutputName.
func IsOutputName(name string) bool {
	base := filepath.Base(name)
	return strings.HasSuffix(strings.TrimSuffix(base, filepath.Ext(base)), Suffix)
}
