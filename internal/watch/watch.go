// Package watch converts GIF and WebP files as they appear in a directory.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/deepteams/upscale"
	"github.com/deepteams/upscale/frame"
	"github.com/deepteams/upscale/internal/atomicfile"
	"github.com/deepteams/upscale/internal/config"
	"github.com/deepteams/upscale/internal/logger"
)

// DefaultSettle is how long a file must stay unmodified before it is
// converted.
const DefaultSettle = 500 * time.Millisecond

// Result describes one processed file.
type Result struct {
	Source string
	Output string // empty on failure
	Out    *upscale.Output
	Err    error
}

// Watcher converts GIF and WebP files as they appear in a directory, one at
// a time, once their writes have settled.
type Watcher struct {
	dir    string
	out    string
	params upscale.Params
	opts   []upscale.Option
	log    *logger.Logger

	// Settle is the quiet period after the last write event of a file.
	Settle time.Duration
	// OnResult, if set, is called after each file is processed.
	OnResult func(Result)
}

// New returns a watcher for conf.Dir writing to conf.Out, or to the watched
// directory when Out is empty.
func New(conf config.Watch, params upscale.Params, log *logger.Logger, opts ...upscale.Option) *Watcher {
	if log == nil {
		log = logger.Nop()
	}
	out := conf.Out
	if out == "" {
		out = conf.Dir
	}
	return &Watcher{
		dir:    conf.Dir,
		out:    out,
		params: params,
		opts:   opts,
		log:    log,
		Settle: DefaultSettle,
	}
}

// Eligible reports whether path names a file the watcher converts: a .gif
// or .webp file that is not itself an upscaled output.
func Eligible(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return false
	}
	return frame.ParseExt(base) != frame.Unknown && !upscale.IsOutputName(base)
}

// Run watches the directory until ctx is done. Files are converted one at a
// time in the order their writes settled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.log.Info().Str("dir", w.dir).Str("out", w.out).Msg("watching")

	settle := w.Settle
	if settle <= 0 {
		settle = DefaultSettle
	}
	tick := time.NewTicker(settle / 2)
	defer tick.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if Eligible(event.Name) {
					pending[event.Name] = time.Now()
				}
			case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				delete(pending, event.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		case now := <-tick.C:
			for _, path := range settled(pending, now, settle) {
				delete(pending, path)
				w.process(ctx, path)
				if ctx.Err() != nil {
					return nil
				}
			}
		}
	}
}

// settled returns the pending paths quiet for at least d, oldest first.
func settled(pending map[string]time.Time, now time.Time, d time.Duration) []string {
	var paths []string
	for p, t := range pending {
		if now.Sub(t) >= d {
			paths = append(paths, p)
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		ti, tj := pending[paths[i]], pending[paths[j]]
		if ti.Equal(tj) {
			return paths[i] < paths[j]
		}
		return ti.Before(tj)
	})
	return paths
}

func (w *Watcher) process(ctx context.Context, path string) {
	start := time.Now()
	res := Result{Source: path}
	res.Output, res.Out, res.Err = w.Convert(ctx, path)
	if res.Err != nil {
		logger.Since(w.log.Error(), start).Err(res.Err).Str("src", path).Msg("conversion failed")
	} else {
		logger.Since(w.log.Info(), start).Str("src", path).Str("dst", res.Output).
			Str("fallback", res.Out.Fallback.String()).Msg("converted")
	}
	if w.OnResult != nil {
		w.OnResult(res)
	}
}

// Convert upscales the file at path into the output directory and returns
// the written path.
func (w *Watcher) Convert(ctx context.Context, path string) (string, *upscale.Output, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	opts := append([]upscale.Option{upscale.WithLogger(w.log.Zerolog())}, w.opts...)
	out, err := upscale.Convert(ctx, upscale.Request{
		Data:     data,
		FileName: filepath.Base(path),
		Params:   w.params,
	}, opts...)
	if err != nil {
		return "", nil, err
	}
	dst := filepath.Join(w.out, out.FileName)
	if err := atomicfile.Write(dst, out.Data, 0o644); err != nil {
		return "", nil, err
	}
	return dst, out, nil
}
