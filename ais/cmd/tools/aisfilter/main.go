// aisfilter copies the AIS sentences of stdin accepted by a filter
// expression to stdout, optionally dropping doublets.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"aistrack/ais/filter"
	"aistrack/ais/libmain"
	"aistrack/ais/log"
	"aistrack/ais/nmea"
	"aistrack/gogroup"

	"github.com/pkg/errors"
)

var (
	filterExpr = flag.String("filter", "", "Filter expression, e.g. \"mmsi = 219000001 or sog > 10\"")
	doublets   = flag.Bool("doublet", false, "Drop messages repeated within -window")
	window     = flag.Duration("window", filter.DefaultDoubletWindow, "Doublet window")
	capacity   = flag.Int("capacity", filter.DefaultDoubletCapacity, "Maximum number of remembered messages")
)

func main() {
	libmain.Main(func(ctxt gogroup.GoGroup) error {
		defer ctxt.Cancel(nil)
		chain, closeFn, err := build()
		if err != nil {
			return err
		}
		defer closeFn()

		out := bufio.NewWriter(os.Stdout)
		defer out.Flush()
		n, err := copyAccepted(ctxt, os.Stdin, out, chain)
		log.Info("%d messages accepted", n)
		return err
	})
}

func build() (filter.Chain, func(), error) {
	var chain filter.Chain
	closeFn := func() {}
	if *doublets {
		d, err := filter.NewDoublet(*window, *capacity)
		if err != nil {
			return nil, closeFn, err
		}
		chain = append(chain, d)
	}
	if *filterExpr != "" {
		expr, err := filter.NewExpression(*filterExpr, nil)
		if err != nil {
			return nil, closeFn, err
		}
		chain = append(chain, expr)
		closeFn = expr.Close
	}
	return chain, closeFn, nil
}

// copyAccepted writes every sentence of the messages chain accepts. All the
// fragments of a multi-sentence message are written together.
func copyAccepted(ctxt gogroup.GoGroup, r io.Reader, w io.Writer, chain filter.Chain) (int, error) {
	dec := nmea.NewDecoder("", nil)
	scanner := bufio.NewScanner(r)
	var pending []string
	accepted := 0
	started := time.Now()

	for scanner.Scan() {
		if ctxt.Canceled() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		msg, err := dec.Decode(line)
		if err != nil {
			if !errors.Is(err, nmea.ErrNotAIS) {
				log.Debug("skipping %q: %v", line, err)
			}
			pending = pending[:0]
			continue
		}
		pending = append(pending, line)
		if msg == nil {
			continue
		}
		if chain.Test(msg) {
			accepted++
			for _, l := range pending {
				if _, err := fmt.Fprintln(w, l); err != nil {
					return accepted, err
				}
			}
		}
		pending = pending[:0]
	}
	log.Debug("filtered in %v", time.Since(started))
	return accepted, scanner.Err()
}
