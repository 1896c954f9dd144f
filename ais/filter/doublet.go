package filter

import (
	"crypto"
	_ "crypto/sha256"
	"sync"
	"time"

	"aistrack/ais"
	"aistrack/ais/log"
	"aistrack/ais/util/clock"

	"github.com/armon/go-metrics"
	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/pkg/errors"
)

var (
	DefaultDoubletWindow   = 15 * time.Second
	DefaultDoubletCapacity = 100000
)

// Doublet rejects messages whose content was seen within the window. The
// window slides: each rejected duplicate extends it. When more than capacity
// distinct messages are inside the window, the least recently seen are
// forgotten.
type Doublet struct {
	window time.Duration
	hash   crypto.Hash
	clock  clock.C

	mu   sync.Mutex
	seen *simplelru.LRU
}

type DoubletOption func(*Doublet)

// WithHash selects the digest. A hash not linked into the binary makes every
// message pass.
func WithHash(h crypto.Hash) DoubletOption {
	return func(d *Doublet) {
		d.hash = h
	}
}

func WithClock(c clock.C) DoubletOption {
	return func(d *Doublet) {
		d.clock = c
	}
}

func NewDoublet(window time.Duration, capacity int, opts ...DoubletOption) (*Doublet, error) {
	if window <= 0 {
		return nil, errors.Wrapf(ErrInvalidWindow, "got %v", window)
	}
	seen, err := simplelru.NewLRU(capacity, nil)
	if err != nil {
		return nil, errors.Wrap(err, "doublet cache")
	}
	d := &Doublet{
		window: window,
		hash:   crypto.SHA256,
		clock:  &clock.Real{},
		seen:   seen,
	}
	for _, o := range opts {
		o(d)
	}
	return d, nil
}

// Test returns false for a duplicate of a message seen within the window.
func (d *Doublet) Test(m *ais.Message) bool {
	digest, err := m.Digest(d.hash)
	if err != nil {
		log.Debug("doublet check skipped: %v", err)
		return true
	}
	key := string(digest)
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if v, ok := d.seen.Get(key); ok && now.Sub(v.(time.Time)) < d.window {
		d.seen.Add(key, now)
		metrics.IncrCounter([]string{"filter", "doublet", "rejected"}, 1)
		return false
	}
	d.seen.Add(key, now)
	return true
}

// Len is the number of digests held, including expired ones not yet evicted.
func (d *Doublet) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seen.Len()
}
