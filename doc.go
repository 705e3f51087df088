// Package upscale enlarges animated GIF and WebP images by an integer
// factor with nearest-neighbor pixel replication, keeping every frame's
// timing and the loop count.
//
// A conversion runs as a single sequential pipeline:
//
//	decode (decode package) -> resample (resample package) -> encode
//
// GIF input produces GIF output. A single-frame WebP produces a static
// lossless WebP. An animated WebP is converted to an animated GIF; the
// Output reports that downgrade through its Fallback field and the output
// file name switches to the .gif extension.
//
// Basic usage:
//
//	out, err := upscale.Convert(ctx, upscale.Request{
//		Data:     data,
//		FileName: "walk.gif",
//		Params:   upscale.Params{Scale: 4},
//	})
//
// Progress is reported through a Reporter as an ordered list of Events; the
// last Event of every run is terminal and carries the success or error
// summary.
package upscale
