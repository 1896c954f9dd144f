package nmea

import (
	"bufio"
	"context"
	"io"
	"strings"

	"aistrack/ais"
	"aistrack/ais/log"

	"github.com/pkg/errors"
)

// Scan decodes r line by line and hands each complete message to handle.
// Lines that cannot be decoded are logged and skipped. Scanning stops at EOF,
// when ctx is done, or when handle returns an error, which is then returned.
func Scan(ctx context.Context, r io.Reader, d *Decoder, handle func(*ais.Message) error) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		line++

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		msg, err := d.Decode(text)
		switch {
		case errors.Is(err, ErrNotAIS):
			tracer.Logf("line %d: %v", line, err)
			continue
		case err != nil:
			log.Debug("line %d: %v", line, err)
			continue
		case msg == nil:
			continue
		}
		if err := handle(msg); err != nil {
			return err
		}
	}
	return scanner.Err()
}
