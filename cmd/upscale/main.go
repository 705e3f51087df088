// Command upscale enlarges animated GIF and WebP files by an integer factor
// with nearest-neighbor sampling.
//
// Usage:
//
//	upscale run [options] <input...>   Upscale files ("-" for stdin)
//	upscale info <input>               Display container metadata
//	upscale serve [options]            Start the HTTP server
//	upscale watch [options] <dir>      Upscale files dropped into dir
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/deepteams/upscale"
	"github.com/deepteams/upscale/decode"
	"github.com/deepteams/upscale/frame"
	"github.com/deepteams/upscale/internal/atomicfile"
	"github.com/deepteams/upscale/internal/config"
	"github.com/deepteams/upscale/internal/container"
	"github.com/deepteams/upscale/internal/logger"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "run":
		err = runRun(ctx, os.Args[2:])
	case "info":
		err = runInfo(os.Args[2:])
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "watch":
		err = runWatch(ctx, os.Args[2:])
	case "-h", "-help", "--help", "help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "upscale: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "upscale: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage:
  upscale run [options] <input...>   Upscale GIF/WebP files by an integer factor
  upscale info <input>               Display container metadata
  upscale serve [options]            Start the HTTP server
  upscale watch [options] <dir>      Upscale files as they appear in dir

Use "-" as input to read from stdin, "-o -" to write to stdout.

Run "upscale <command> -h" for command-specific options.
`)
}

// configPath finds the --config/-c value ahead of flag parsing, since the
// loaded file provides the flag defaults.
func configPath(args []string) string {
	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--":
			return ""
		case a == "--config" || a == "-c":
			if i+1 < len(args) {
				return args[i+1]
			}
		case strings.HasPrefix(a, "--config="):
			return strings.TrimPrefix(a, "--config=")
		case strings.HasPrefix(a, "-c") && len(a) > 2:
			return a[2:]
		}
	}
	return ""
}

// newFlagSet loads the configuration and returns a flag set carrying the
// --config flag.
func newFlagSet(name string, args []string) (*pflag.FlagSet, config.Config, error) {
	conf, err := config.Load(configPath(args))
	if err != nil {
		return nil, conf, err
	}
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.StringP("config", "c", "", "config file (default: upscale.yaml in ., ./configs, ~/.upscale)")
	return fs, conf, nil
}

func newLogger(conf config.Log) *logger.Logger {
	if conf.JSON {
		return logger.New(conf.Debug)
	}
	return logger.NewConsole(conf.Debug, conf.NoColor)
}

// openInput returns the contents of path, or of stdin when path is "-".
func openInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

// --- run ---

func runRun(ctx context.Context, args []string) error {
	fs, conf, err := newFlagSet("run", args)
	if err != nil {
		return err
	}
	conf.Upscale.AddFlags(fs)
	conf.Log.AddFlags(fs)
	output := fs.StringP("output", "o", "", `output file or directory (default: next to the input, "-" for stdout)`)
	mediaType := fs.StringP("type", "t", "", "declared media type, e.g. image/gif (default: from the file name or content)")
	quiet := fs.BoolP("quiet", "q", false, "do not print progress")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	inputs := fs.Args()
	if len(inputs) < 1 {
		return fmt.Errorf("run: missing input file\nUsage: upscale run [options] <input...>")
	}
	if *output == "-" && len(inputs) > 1 {
		return fmt.Errorf("run: -o - needs exactly one input")
	}

	log := logger.Nop()
	if conf.Log.Debug {
		log = newLogger(conf.Log)
	}
	j := &job{
		conf:      conf.Upscale,
		log:       log,
		output:    *output,
		mediaType: *mediaType,
		multi:     len(inputs) > 1,
		progress:  os.Stderr,
	}
	if *quiet {
		j.progress = io.Discard
	}
	// One conversion at a time.
	for _, in := range inputs {
		if err := j.convert(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

type job struct {
	conf      config.Upscale
	log       *logger.Logger
	output    string
	mediaType string
	multi     bool
	progress  io.Writer
}

func (j *job) convert(ctx context.Context, inputPath string) error {
	start := time.Now()
	data, err := openInput(inputPath)
	if err != nil {
		return err
	}
	req := upscale.Request{
		Data:     data,
		MIMEType: j.mediaType,
		Params:   upscale.Params{Scale: j.conf.Scale, LoopCount: j.conf.Loop},
	}
	if inputPath != "-" {
		req.FileName = inputPath
	}
	if req.Format() == frame.Unknown && j.mediaType == "" {
		req.MIMEType = declaredFormat(inputPath, "", data).MIMEType()
	}

	name := inputPath
	if inputPath == "-" {
		name = "<stdin>"
	}
	reporter := upscale.ReporterFunc(func(e upscale.Event) {
		if !e.Terminal {
			fmt.Fprintf(j.progress, "%s: %s\n", name, e.Message)
		}
	})
	opts := append(j.conf.Options(), upscale.WithReporter(reporter), upscale.WithLogger(j.log.Zerolog()))
	out, err := upscale.Convert(ctx, req, opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if j.output == "-" {
		_, err := os.Stdout.Write(out.Data)
		return err
	}
	dst := j.destination(inputPath, out)
	if err := atomicfile.Write(dst, out.Data, 0o644); err != nil {
		return err
	}
	note := ""
	if out.Fallback != upscale.FallbackNone {
		note = ", " + out.Fallback.String()
	}
	fmt.Fprintf(j.progress, "Upscaled %s → %s (%dx%d, %d frames%s, %d bytes, %v)\n",
		name, dst, out.Width, out.Height, out.Frames, note, len(out.Data), time.Since(start).Round(time.Millisecond))
	return nil
}

// destination picks the output path: the -o file, a file inside the -o
// directory, or the suggested name next to the input.
func (j *job) destination(inputPath string, out *upscale.Output) string {
	if j.output == "" {
		if inputPath == "-" {
			return out.FileName
		}
		return filepath.Join(filepath.Dir(inputPath), out.FileName)
	}
	if fi, err := os.Stat(j.output); (err == nil && fi.IsDir()) || j.multi {
		return filepath.Join(j.output, out.FileName)
	}
	return j.output
}

// declaredFormat resolves the input format with the precedence of
// upscale.Request: the file extension, then the declared media type. Only
// when neither is given are the magic bytes consulted.
func declaredFormat(inputPath, mediaType string, data []byte) frame.Format {
	req := upscale.Request{MIMEType: mediaType}
	if inputPath != "-" {
		req.FileName = inputPath
	}
	if f := req.Format(); f != frame.Unknown || mediaType != "" {
		return f
	}
	return container.Sniff(data)
}

// --- info ---

func runInfo(args []string) error {
	fs := pflag.NewFlagSet("info", pflag.ContinueOnError)
	mediaType := fs.StringP("type", "t", "", "declared media type (default: from the content)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 1 {
		return fmt.Errorf("info: missing input file\nUsage: upscale info <input>")
	}
	inputPath := fs.Arg(0)
	data, err := openInput(inputPath)
	if err != nil {
		return err
	}

	it, err := decode.Open(data, declaredFormat(inputPath, *mediaType, data))
	if err != nil {
		return fmt.Errorf("info: %w", err)
	}
	info := it.Info()

	name := inputPath
	if inputPath == "-" {
		name = "<stdin>"
	}
	fmt.Printf("File:       %s\n", name)
	fmt.Printf("Format:     %s\n", info.Format)
	fmt.Printf("Dimensions: %d x %d\n", info.Width, info.Height)
	fmt.Printf("Alpha:      %v\n", info.HasAlpha)
	fmt.Printf("Animation:  %v\n", info.Animated)
	fmt.Printf("Frames:     %d\n", info.FrameCount)
	if info.Format == frame.WebP {
		fmt.Printf("Lossless:   %v\n", info.Lossless)
	}
	switch {
	case info.LoopCount == 0:
		fmt.Printf("Loop count: infinite\n")
	case info.LoopCount > 0:
		fmt.Printf("Loop count: %d\n", info.LoopCount)
	}
	if info.FrameCount > 1 {
		var total time.Duration
		parts := make([]string, 0, info.FrameCount)
		for _, d := range it.Durations() {
			total += d
			parts = append(parts, fmt.Sprintf("%dms", d.Milliseconds()))
		}
		fmt.Printf("Durations:  %s\n", strings.Join(parts, " "))
		fmt.Printf("Total:      %v\n", total)
	}
	fmt.Printf("File size:  %d bytes\n", len(data))
	return nil
}
