// aistrackd tracks the vessels heard in an NMEA feed and serves them over
// HTTP, with a websocket stream of track events.
package main

import (
	"flag"

	"aistrack/ais/config"
	"aistrack/ais/libmain"
	"aistrack/ais/log"
	"aistrack/ais/tracker"
	"aistrack/ais/util/clock"
	"aistrack/ais/ws"
	"aistrack/gogroup"

	"github.com/pkg/errors"
)

var (
	configFile  = flag.String("config", "", "YAML settings file, reloaded when it changes")
	listen      = flag.String("listen", "", "HTTP address for /tracks and /events, e.g. :8080")
	input       = flag.String("input", "-", "NMEA input: a file, - for stdin, or tcp://host:port")
	source      = flag.String("source", "", "Source name for sentences without an s: tag")
	filterExpr  = flag.String("filter", "", "Filter expression, e.g. \"sog > 2 and msgid in (1, 2, 3)\"")
	doublets    = flag.Bool("doublet", true, "Drop messages repeated within the doublet window")
	replaySpeed = flag.Float64("replay-speed", 0, "Pace a recorded feed at this multiple of real time, 0 to disable")
)

func main() {
	libmain.Main(realMain)
}

// settings merges the config file with the flags given on the command line.
func settings() (config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			return cfg, err
		}
	}
	cfg = applyFlags(cfg)
	return cfg, cfg.Validate()
}

// applyFlags lets flags set on the command line win over the file.
func applyFlags(cfg config.Config) config.Config {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			cfg.Listen = *listen
		case "filter":
			cfg.Filter = *filterExpr
		}
	})
	return cfg
}

func realMain(ctxt gogroup.GoGroup) error {
	cfg, err := settings()
	if err != nil {
		return errors.Wrap(err, "settings")
	}
	log.Debug("settings: %v", log.Spew(cfg))

	replay := &clock.Replay{}
	tr := tracker.New(
		tracker.WithName("aistrackd"),
		tracker.WithOptions(cfg.TrackerOptions()),
		tracker.WithClock(replay),
	)
	defer tr.Shutdown()

	in := &ingest{
		tracker:  tr,
		replay:   replay,
		speed:    *replaySpeed,
		doublets: *doublets,
	}
	if err := in.configure(cfg); err != nil {
		return err
	}

	if *configFile != "" {
		err := config.Watch(ctxt, *configFile, func(c config.Config) {
			c = applyFlags(c)
			tr.Reconfigure(c.TrackerOptions())
			if err := in.configure(c); err != nil {
				log.Error("Filters not reloaded: %v", err)
			}
			if c.Listen != cfg.Listen {
				log.Warn("listen changed to %q, takes effect after a restart", c.Listen)
			}
		})
		if err != nil {
			log.Warn("Settings will not be reloaded: %v", err)
		}
	}

	workers := ctxt.Child("workers")
	if cfg.Listen != "" {
		events := ws.NewHandler(ctxt.Child("ws"))
		id := tr.RegisterSubscriber(events)
		defer tr.UnregisterSubscriber(id)
		workers.Go(func(g gogroup.GoGroup) error {
			if err := serve(g, cfg.Listen, tr, events); err != nil {
				ctxt.Cancel(err)
			}
			return nil
		})
	}

	workers.Go(func(g gogroup.GoGroup) error {
		err := in.run(g, *input, *source)
		if err != nil {
			ctxt.Cancel(err)
			return nil
		}
		log.Notice("Input %v exhausted, %d tracks held", *input, tr.TrackCount())
		return nil
	})

	<-ctxt.Done()
	log.Info("Shutting down")
	if !workers.WaitTimeout(cfg.ShutdownTimeout) {
		log.Warn("Workers still running after %v", cfg.ShutdownTimeout)
	}
	return nil
}
