package main

import (
	"io"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"aistrack/ais"
	"aistrack/ais/config"
	"aistrack/ais/filter"
	"aistrack/ais/log"
	"aistrack/ais/nmea"
	"aistrack/ais/tracker"
	"aistrack/ais/util/clock"
	"aistrack/gogroup"

	"github.com/pkg/errors"
)

type ingest struct {
	tracker  *tracker.Tracker
	doublets bool

	// chain, expr and cfg are guarded by mu. They are replaced on reload.
	mu    sync.Mutex
	chain filter.Chain
	// Shares the tracker, so messages it has written are not applied again
	expr *filter.Expression
	cfg  config.Config

	replay *clock.Replay
	speed  float64
}

// configure builds the filters of cfg. The doublet cache and the expression
// are only rebuilt when their settings differ from the current ones, so a
// reload touching other keys keeps the remembered digests.
func (in *ingest) configure(cfg config.Config) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	built := in.chain != nil || in.expr != nil
	sameDoublet := built && cfg.DoubletWindow == in.cfg.DoubletWindow && cfg.DoubletCapacity == in.cfg.DoubletCapacity
	sameFilter := built && cfg.Filter == in.cfg.Filter
	if sameDoublet && sameFilter {
		return nil
	}

	var chain filter.Chain
	if in.doublets {
		if sameDoublet {
			chain = append(chain, in.chain[0])
		} else {
			d, err := filter.NewDoublet(cfg.DoubletWindow, cfg.DoubletCapacity, filter.WithClock(in.replay))
			if err != nil {
				return err
			}
			chain = append(chain, d)
		}
	}

	expr := in.expr
	if !sameFilter {
		expr = nil
		if cfg.Filter != "" {
			var err error
			if expr, err = filter.NewExpression(cfg.Filter, in.tracker); err != nil {
				return err
			}
		}
	}
	if expr != nil {
		chain = append(chain, expr)
	}

	if built {
		log.Notice("Filters reloaded: doublet window %v capacity %d, filter %q",
			cfg.DoubletWindow, cfg.DoubletCapacity, cfg.Filter)
	}
	// An empty chain still marks the filters as built
	if chain == nil {
		chain = filter.Chain{}
	}
	in.chain, in.expr, in.cfg = chain, expr, cfg
	return nil
}

func (in *ingest) filters() (filter.Chain, *filter.Expression) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.chain, in.expr
}

func open(name string) (io.ReadCloser, error) {
	switch {
	case name == "-":
		return os.Stdin, nil
	case strings.HasPrefix(name, "tcp://"):
		return net.Dial("tcp", strings.TrimPrefix(name, "tcp://"))
	}
	return os.Open(name)
}

func (in *ingest) run(g gogroup.GoGroup, name, source string) error {
	r, err := open(name)
	if err != nil {
		return errors.Wrap(err, "input")
	}
	go func() {
		// Unblocks the scanner on shutdown
		<-g.Done()
		r.Close()
	}()
	log.Info("Reading NMEA from %v", name)

	err = nmea.Scan(g, r, nmea.NewDecoder(source, in.replay), in.handle(g))
	if g.Canceled() {
		return nil
	}
	return err
}

func (in *ingest) handle(g gogroup.GoGroup) func(*ais.Message) error {
	return func(m *ais.Message) error {
		if err := in.pace(g, m); err != nil {
			return err
		}
		chain, expr := in.filters()
		if !chain.Test(m) {
			return nil
		}
		if expr != nil && expr.Ingests(m) {
			return nil
		}
		err := in.tracker.Update(m)
		switch {
		case errors.Is(err, tracker.ErrShutdown):
			return err
		case err != nil:
			log.Debug("%v: %v", m, err)
		}
		return nil
	}
}

// pace holds m back until it is due, when replaying a recording.
func (in *ingest) pace(g gogroup.GoGroup, m *ais.Message) error {
	if in.speed <= 0 || m.Timestamp().IsZero() {
		return nil
	}
	if !in.replay.Enabled {
		*in.replay = *clock.NewReplay(m.Timestamp(), in.speed, nil)
		log.Info("Replaying from %v at %vx", m.Timestamp(), in.speed)
		return nil
	}
	wait := in.replay.Until(m.Timestamp())
	if wait <= 0 {
		return nil
	}
	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-g.Done():
		return g.Err()
	}
}
