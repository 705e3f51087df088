package main

import (
	"context"
	"fmt"

	"github.com/deepteams/upscale"
	"github.com/deepteams/upscale/internal/server"
	"github.com/deepteams/upscale/internal/watch"
)

func runServe(ctx context.Context, args []string) error {
	fs, conf, err := newFlagSet("serve", args)
	if err != nil {
		return err
	}
	conf.Upscale.AddFlags(fs)
	conf.Log.AddFlags(fs)
	conf.Server.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}

	log := newLogger(conf.Log)
	log.Debug().Msgf("config: %+v", conf)
	return server.New(conf.Server, conf.Upscale, log).Run(ctx)
}

func runWatch(ctx context.Context, args []string) error {
	fs, conf, err := newFlagSet("watch", args)
	if err != nil {
		return err
	}
	conf.Upscale.AddFlags(fs)
	conf.Log.AddFlags(fs)
	conf.Watch.AddFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	if fs.NArg() > 0 {
		conf.Watch.Dir = fs.Arg(0)
	}
	if conf.Watch.Dir == "" {
		return fmt.Errorf("watch: missing directory\nUsage: upscale watch [options] <dir>")
	}

	log := newLogger(conf.Log)
	params := upscale.Params{Scale: conf.Upscale.Scale, LoopCount: conf.Upscale.Loop}
	w := watch.New(conf.Watch, params, log, conf.Upscale.Options()...)
	return w.Run(ctx)
}
