package log

import (
	"bytes"
	"log/syslog"
	"sync"
)

// Writer adapts the default logger to an io.Writer, one entry per line. It
// lets net/http and other stdlib users log through this package.
type Writer struct {
	Priority syslog.Priority

	mu  sync.Mutex
	buf bytes.Buffer
}

func NewWriter(prio syslog.Priority) *Writer {
	return &Writer{
		Priority: prio,
	}
}

func (w *Writer) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, b := range p {
		if b == '\n' {
			Log(w.Priority, "%s", w.buf.String())
			w.buf.Reset()
			continue
		}
		w.buf.WriteByte(b)
	}
	return len(p), nil
}
