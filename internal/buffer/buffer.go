// Package buffer accumulates captured events and hands them off in
// batches, either when the queue fills up or on a repeating timer.
package buffer

import (
	"sync"
	"time"

	"github.com/vincentbai/shadowtrace/internal/clock"
	"github.com/vincentbai/shadowtrace/internal/models"
)

const (
	// DefaultMaxEvents is the queue length that triggers a flush.
	DefaultMaxEvents = 10
	// DefaultFlushInterval is the period of the flush timer.
	DefaultFlushInterval = 5 * time.Second
)

// Config holds the buffering parameters of a client.
type Config struct {
	// Enabled turns batching on. When false the client sends every
	// event on its own.
	Enabled bool `yaml:"enabled"`

	// MaxEvents is the queue length that triggers an immediate flush.
	// Values below 1 mean DefaultMaxEvents.
	MaxEvents int `yaml:"max_events"`

	// FlushInterval is the period of the flush timer. Non-positive
	// values mean DefaultFlushInterval.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// WithDefaults returns c with unset fields replaced by their defaults.
func (c Config) WithDefaults() Config {
	if c.MaxEvents < 1 {
		c.MaxEvents = DefaultMaxEvents
	}
	if c.FlushInterval <= 0 {
		c.FlushInterval = DefaultFlushInterval
	}
	return c
}

// FlushFunc receives each non-empty batch, in insertion order. It is
// called without the buffer's lock held.
type FlushFunc func(batch []models.Event)

// Buffer is a mutex-guarded event queue with a size trigger and a timer
// trigger. It is safe for concurrent use.
type Buffer struct {
	config Config
	clock  clock.Clock
	flush  FlushFunc

	mu      sync.Mutex
	queue   []models.Event
	timer   *clock.Timer
	running bool
}

// New creates a stopped buffer. Call Start to arm the flush timer.
func New(config Config, clk clock.Clock, flush FlushFunc) *Buffer {
	if clk == nil {
		clk = clock.Real()
	}
	return &Buffer{
		config: config.WithDefaults(),
		clock:  clk,
		flush:  flush,
	}
}

// Config returns the effective configuration.
func (b *Buffer) Config() Config { return b.config }

// Add appends event to the queue. When the queue reaches MaxEvents it is
// flushed before Add returns.
func (b *Buffer) Add(event models.Event) {
	b.mu.Lock()
	b.queue = append(b.queue, event)
	full := len(b.queue) >= b.config.MaxEvents
	b.mu.Unlock()

	if full {
		b.Flush()
	}
}

// Flush hands the queued events to the flush function as one batch and
// empties the queue. Flushing an empty queue does nothing.
func (b *Buffer) Flush() {
	b.mu.Lock()
	batch := b.queue
	b.queue = nil
	b.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	b.flush(batch)
}

// Len returns the number of queued events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Start arms the repeating flush timer. Calling Start on a running
// buffer does nothing.
func (b *Buffer) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return
	}
	b.running = true
	b.timer = b.clock.AfterFunc(b.config.FlushInterval, b.tick)
}

func (b *Buffer) tick() {
	b.Flush()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		b.timer.Reset(b.config.FlushInterval)
	}
}

// Stop cancels the flush timer. Queued events stay queued and are not
// delivered. Stop is idempotent and safe on a buffer never started.
func (b *Buffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.running {
		return
	}
	b.running = false
	b.timer.Stop()
}
