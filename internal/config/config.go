// Package config loads the upscale configuration from an optional YAML file,
// UPSCALE_ environment variables and command line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kkyr/fig"
	"github.com/spf13/pflag"

	"github.com/deepteams/upscale"
	"github.com/deepteams/upscale/gifenc"
	"github.com/deepteams/upscale/resample"
)

const (
	// EnvPrefix prefixes environment overrides, as in UPSCALE_SERVER_ADDR.
	EnvPrefix = "UPSCALE"
	// FileName is the config file looked up when no path is given.
	FileName = "upscale.yaml"
)

// Config is the complete configuration, one section per concern.
type Config struct {
	Upscale Upscale `fig:"upscale"`
	Log     Log     `fig:"log"`
	Server  Server  `fig:"server"`
	Watch   Watch   `fig:"watch"`
}

// Upscale holds the conversion defaults.
type Upscale struct {
	Scale         int  `fig:"scale" default:"2"`
	Loop          uint `fig:"loop"`
	MaxColors     int  `fig:"max_colors" default:"256"`
	KeepZeroDelay bool `fig:"keep_zero_delay"`
	// MaxMemory bounds the pixel memory of one conversion in bytes; 0
	// disables the limit.
	MaxMemory int64 `fig:"max_memory" default:"1073741824"`
}

// Log selects the logger output.
type Log struct {
	Debug   bool `fig:"debug"`
	JSON    bool `fig:"json"`
	NoColor bool `fig:"no_color"`
}

// Server holds the HTTP server settings of upscale serve.
type Server struct {
	Addr            string        `fig:"addr" default:":8080"`
	MaxUploadBytes  int64         `fig:"max_upload_bytes" default:"67108864"`
	MaxConcurrent   int           `fig:"max_concurrent" default:"4"`
	Metrics         bool          `fig:"metrics"`
	ShutdownTimeout time.Duration `fig:"shutdown_timeout" default:"10s"`
}

// Watch holds the directory settings of upscale watch. An empty Out writes
// results next to their sources.
type Watch struct {
	Dir string `fig:"dir"`
	Out string `fig:"out"`
}

// Load reads the configuration. A non-empty path names the config file and
// must exist. Otherwise upscale.yaml is looked up in ., ./configs and
// $HOME/.upscale, and defaults apply when none is found.
func Load(path string) (Config, error) {
	var conf Config
	opts := []fig.Option{fig.UseEnv(EnvPrefix)}
	if path != "" {
		opts = append(opts, fig.File(filepath.Base(path)), fig.Dirs(filepath.Dir(path)))
		if err := fig.Load(&conf, opts...); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", path, err)
		}
		return conf, conf.Validate()
	}

	dirs := []string{".", "configs"}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(home, ".upscale"))
	}
	err := fig.Load(&conf, append(opts, fig.File(FileName), fig.Dirs(dirs...))...)
	if errors.Is(err, fig.ErrFileNotFound) {
		conf = Config{}
		err = fig.Load(&conf, append(opts, fig.IgnoreFile())...)
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return conf, conf.Validate()
}

// Validate checks value ranges that the loaders cannot express.
func (c *Config) Validate() error {
	if err := resample.CheckScale(c.Upscale.Scale); err != nil {
		return fmt.Errorf("config: upscale.scale: %w", err)
	}
	if c.Upscale.MaxColors < 2 || c.Upscale.MaxColors > 256 {
		return fmt.Errorf("config: upscale.max_colors %d not in [2, 256]", c.Upscale.MaxColors)
	}
	if c.Upscale.MaxMemory < 0 {
		return fmt.Errorf("config: upscale.max_memory must not be negative")
	}
	if c.Server.MaxConcurrent < 1 {
		return fmt.Errorf("config: server.max_concurrent must be positive")
	}
	if c.Server.MaxUploadBytes < 1 {
		return fmt.Errorf("config: server.max_upload_bytes must be positive")
	}
	return nil
}

// GIFOptions returns the encoder options for the upscale section.
func (u *Upscale) GIFOptions() gifenc.Options {
	return gifenc.Options{MaxColors: u.MaxColors, KeepZeroDelay: u.KeepZeroDelay}
}

// Options returns the coordinator options for the upscale section.
func (u *Upscale) Options() []upscale.Option {
	return []upscale.Option{
		upscale.WithGIFOptions(u.GIFOptions()),
		upscale.WithMemoryLimit(u.MaxMemory),
	}
}

// AddFlags binds the upscale section to fs, using the loaded values as
// defaults.
func (u *Upscale) AddFlags(fs *pflag.FlagSet) *Upscale {
	fs.IntVarP(&u.Scale, "scale", "s", u.Scale, "Integer scale factor (2-10)")
	fs.UintVarP(&u.Loop, "loop", "", u.Loop, "GIF loop count, 0 loops forever")
	fs.IntVarP(&u.MaxColors, "max-colors", "", u.MaxColors, "Maximum GIF palette size per frame")
	fs.BoolVarP(&u.KeepZeroDelay, "keep-zero-delay", "", u.KeepZeroDelay, "Write 0ms frames with a zero GIF delay")
	fs.Int64VarP(&u.MaxMemory, "max-memory", "", u.MaxMemory, "Pixel memory budget per conversion in bytes, 0 for none")
	return u
}

// AddFlags binds the log section to fs.
func (l *Log) AddFlags(fs *pflag.FlagSet) *Log {
	fs.BoolVarP(&l.Debug, "verbose", "v", l.Debug, "Enable debug logging")
	fs.BoolVarP(&l.JSON, "log-json", "", l.JSON, "Log as JSON lines")
	fs.BoolVarP(&l.NoColor, "no-color", "", l.NoColor, "Disable colored console logs")
	return l
}

// AddFlags binds the server section to fs.
func (s *Server) AddFlags(fs *pflag.FlagSet) *Server {
	fs.StringVarP(&s.Addr, "addr", "a", s.Addr, "HTTP listen address")
	fs.Int64VarP(&s.MaxUploadBytes, "max-upload", "", s.MaxUploadBytes, "Maximum request body size in bytes")
	fs.IntVarP(&s.MaxConcurrent, "max-concurrent", "", s.MaxConcurrent, "Maximum conversions in flight")
	fs.BoolVarP(&s.Metrics, "metrics", "m", s.Metrics, "Expose prometheus metrics on /metrics")
	fs.DurationVarP(&s.ShutdownTimeout, "shutdown-timeout", "", s.ShutdownTimeout, "Graceful shutdown timeout")
	return s
}

// AddFlags binds the watch section to fs.
func (w *Watch) AddFlags(fs *pflag.FlagSet) *Watch {
	fs.StringVarP(&w.Out, "out", "o", w.Out, "Output directory (default: the watched directory)")
	return w
}
