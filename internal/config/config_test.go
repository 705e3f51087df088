package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	conf, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if conf.Upscale.Scale != 2 || conf.Upscale.MaxColors != 256 || conf.Upscale.Loop != 0 {
		t.Errorf("upscale = %+v", conf.Upscale)
	}
	if conf.Server.Addr != ":8080" || conf.Server.MaxConcurrent != 4 || conf.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("server = %+v", conf.Server)
	}
	if conf.Server.MaxUploadBytes != 64<<20 {
		t.Errorf("max upload = %d", conf.Server.MaxUploadBytes)
	}
	if conf.Upscale.MaxMemory != 1<<30 {
		t.Errorf("max memory = %d", conf.Upscale.MaxMemory)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UPSCALE_UPSCALE_SCALE", "7")
	t.Setenv("UPSCALE_SERVER_ADDR", "127.0.0.1:9000")

	conf, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if conf.Upscale.Scale != 7 {
		t.Errorf("scale = %d, want 7", conf.Upscale.Scale)
	}
	if conf.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("addr = %q", conf.Server.Addr)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	body := "upscale:\n  scale: 4\n  loop: 3\nwatch:\n  dir: /in\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	conf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if conf.Upscale.Scale != 4 || conf.Upscale.Loop != 3 || conf.Watch.Dir != "/in" {
		t.Errorf("conf = %+v", conf)
	}
	if conf.Upscale.MaxColors != 256 {
		t.Errorf("defaults not applied: max colors = %d", conf.Upscale.MaxColors)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load(missing) = nil error")
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"scale low", func(c *Config) { c.Upscale.Scale = 1 }},
		{"scale high", func(c *Config) { c.Upscale.Scale = 11 }},
		{"colors", func(c *Config) { c.Upscale.MaxColors = 1 }},
		{"memory", func(c *Config) { c.Upscale.MaxMemory = -1 }},
		{"concurrency", func(c *Config) { c.Server.MaxConcurrent = 0 }},
		{"upload", func(c *Config) { c.Server.MaxUploadBytes = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf, err := Load("")
			if err != nil {
				t.Fatal(err)
			}
			tt.mod(&conf)
			if conf.Validate() == nil {
				t.Fatal("Validate() = nil")
			}
		})
	}
}

func TestFlagsOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	conf, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	conf.Upscale.AddFlags(fs)
	conf.Log.AddFlags(fs)
	if err := fs.Parse([]string{"-s", "5", "--loop=2", "--max-memory=0", "-v"}); err != nil {
		t.Fatal(err)
	}
	if conf.Upscale.Scale != 5 || conf.Upscale.Loop != 2 || conf.Upscale.MaxMemory != 0 || !conf.Log.Debug {
		t.Fatalf("conf = %+v", conf)
	}
	if conf.Upscale.MaxColors != 256 {
		t.Fatalf("unset flag changed max colors to %d", conf.Upscale.MaxColors)
	}
	if o := conf.Upscale.GIFOptions(); o.MaxColors != 256 || o.KeepZeroDelay {
		t.Fatalf("GIFOptions() = %+v", o)
	}
	if n := len(conf.Upscale.Options()); n != 2 {
		t.Fatalf("Options() = %d options, want 2", n)
	}
}
