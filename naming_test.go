package upscale

import (
	"testing"

	"github.com/deepteams/upscale/frame"
)

func TestOutputName(t *testing.T) {
	tests := []struct {
		name   string
		format frame.Format
		want   string
	}{
		{"cat.gif", frame.GIF, "cat_upscaled.gif"},
		{"cat.WEBP", frame.GIF, "cat_upscaled.gif"},
		{"cat.webp", frame.WebP, "cat_upscaled.webp"},
		{"dir/sub/cat.gif", frame.GIF, "cat_upscaled.gif"},
		{"archive.tar.gif", frame.GIF, "archive.tar_upscaled.gif"},
		{"noext", frame.GIF, "noext_upscaled.gif"},
		{".gif", frame.GIF, "image_upscaled.gif"},
		{"", frame.WebP, "image_upscaled.webp"},
	}
	for _, tt := range tests {
		if got := OutputName(tt.name, tt.format); got != tt.want {
			t.Errorf("OutputName(%q, %v) = %q, want %q", tt.name, tt.format, got, tt.want)
		}
	}
}

func TestIsOutputName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"cat_upscaled.gif", true},
		{"/tmp/x/cat_upscaled.webp", true},
		{"cat.gif", false},
		{"cat_upscaled_2.gif", false},
	}
	for _, tt := range tests {
		if got := IsOutputName(tt.name); got != tt.want {
			t.Errorf("IsOutputName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestRequestFormat(t *testing.T) {
	tests := []struct {
		req  Request
		want frame.Format
	}{
		{Request{FileName: "a.gif"}, frame.GIF},
		{Request{FileName: "a.webp", MIMEType: "image/gif"}, frame.WebP},
		{Request{FileName: "a.bin", MIMEType: "image/webp"}, frame.WebP},
		{Request{MIMEType: " IMAGE/GIF "}, frame.GIF},
		{Request{FileName: "a.png", MIMEType: "image/png"}, frame.Unknown},
	}
	for _, tt := range tests {
		if got := tt.req.Format(); got != tt.want {
			t.Errorf("%+v.Format() = %v, want %v", tt.req, got, tt.want)
		}
	}
}
