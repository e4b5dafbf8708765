// Package client is the capture client: it owns the session, the
// sampling decision, the buffer and the transport, and it attaches the
// plugins that produce events.
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/vincentbai/shadowtrace/internal/buffer"
	"github.com/vincentbai/shadowtrace/internal/clock"
	"github.com/vincentbai/shadowtrace/internal/codec"
	"github.com/vincentbai/shadowtrace/internal/event"
	"github.com/vincentbai/shadowtrace/internal/models"
	"github.com/vincentbai/shadowtrace/internal/plugin"
	"github.com/vincentbai/shadowtrace/internal/plugin/domevents"
	"github.com/vincentbai/shadowtrace/internal/sampling"
	"github.com/vincentbai/shadowtrace/internal/scrub"
	"github.com/vincentbai/shadowtrace/internal/session"
	"github.com/vincentbai/shadowtrace/internal/transport"
)

// Options configures a Client. Only URL is required, unless Sender is
// given.
type Options struct {
	// URL is the collection endpoint base.
	URL string
	// Headers are sent with every request.
	Headers map[string]string
	// Token is sent as a bearer token when set.
	Token string

	// SessionIDProvider overrides session lookup entirely.
	SessionIDProvider func() string
	// Store persists the session id. Defaults to an in-memory store.
	Store session.Store

	// Plugins produce events. When empty and Host is set, the DOM-event
	// plugin is attached to Host.
	Plugins []plugin.Plugin
	// Host dispatches interactions to the default plugin.
	Host domevents.Host
	// ScrubRules configure the default plugin's scrubbing.
	ScrubRules []scrub.Rule

	Buffer buffer.Config

	// SampleRate is the probability this client records anything. Nil
	// means sampling.DefaultRate.
	SampleRate *float64

	// Transport selects the delivery policy when Sender is nil.
	Transport transport.Mode
	// Sender replaces the transport built from the options above.
	Sender     transport.Transport
	Codec      codec.Codec
	Compress   bool
	HTTPClient *http.Client

	// Page attributes events to a page. Defaults to Host when it
	// reports its own location, else an empty page.
	Page event.PageContext

	Random      sampling.Source
	ScrubSource scrub.Source
	Clock       clock.Clock
	Logger      *slog.Logger
	Meter       metric.Meter
}

// Client captures events for one session.
type Client struct {
	sessionID string
	sampled   bool
	page      event.PageContext
	clock     clock.Clock
	logger    *slog.Logger

	sender transport.Transport
	buffer *buffer.Buffer

	captured  metric.Int64Counter
	unsampled metric.Int64Counter
	flushed   metric.Int64Counter

	closeOnce sync.Once
	closeErr  error
}

var _ plugin.Capturer = (*Client)(nil)

// New creates a client, draws its sampling decision and attaches its
// plugins. Unsampled clients still attach plugins; their captures are
// dropped.
func New(opts Options) (*Client, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	c := &Client{
		clock:  clk,
		logger: logger.With("component", "client"),
		page:   pageContext(opts),
	}

	if err := c.initMetrics(opts.Meter); err != nil {
		return nil, err
	}

	c.sender = opts.Sender
	if c.sender == nil {
		sender, err := transport.New(opts.Transport, transport.Config{
			URL:        opts.URL,
			Headers:    opts.Headers,
			Token:      opts.Token,
			HTTPClient: opts.HTTPClient,
			Codec:      opts.Codec,
			Compress:   opts.Compress,
			Logger:     logger,
			Meter:      opts.Meter,
		})
		if err != nil {
			return nil, fmt.Errorf("client: %w", err)
		}
		c.sender = sender
	}

	c.sessionID = resolveSession(opts, logger)
	c.sampled = sampling.Decide(opts.SampleRate, opts.Random)
	c.logger = c.logger.With("session", c.sessionID)
	c.logger.Debug("client created", "sampled", c.sampled, "rate", sampling.Clamp(opts.SampleRate))

	if opts.Buffer.Enabled {
		c.buffer = buffer.New(opts.Buffer, clk, c.flushBatch)
		c.buffer.Start()
	}

	for _, p := range plugins(opts, logger) {
		c.attach(p)
	}
	return c, nil
}

func (c *Client) initMetrics(meter metric.Meter) error {
	if meter == nil {
		meter = otel.Meter("github.com/vincentbai/shadowtrace/internal/client")
	}
	var err error
	if c.captured, err = meter.Int64Counter("shadowtrace.events.captured",
		metric.WithDescription("Events accepted by sampled clients")); err != nil {
		return fmt.Errorf("client: creating captured counter: %w", err)
	}
	if c.unsampled, err = meter.Int64Counter("shadowtrace.events.unsampled",
		metric.WithDescription("Events dropped because the client is not sampled")); err != nil {
		return fmt.Errorf("client: creating unsampled counter: %w", err)
	}
	if c.flushed, err = meter.Int64Counter("shadowtrace.batches.flushed",
		metric.WithDescription("Batches handed to the transport")); err != nil {
		return fmt.Errorf("client: creating flushed counter: %w", err)
	}
	return nil
}

func resolveSession(opts Options, logger *slog.Logger) string {
	if opts.SessionIDProvider != nil {
		return opts.SessionIDProvider()
	}
	store := opts.Store
	if store == nil {
		store = session.NewMemoryStore()
	}
	return session.Resolve(context.Background(), store, logger)
}

func pageContext(opts Options) event.PageContext {
	if opts.Page != nil {
		return opts.Page
	}
	if page, ok := opts.Host.(event.PageContext); ok {
		return page
	}
	return event.StaticPage{}
}

func plugins(opts Options, logger *slog.Logger) []plugin.Plugin {
	if len(opts.Plugins) > 0 || opts.Host == nil {
		return opts.Plugins
	}
	scrubOpts := []scrub.Option{scrub.WithLogger(logger)}
	if opts.ScrubSource != nil {
		scrubOpts = append(scrubOpts, scrub.WithSource(opts.ScrubSource))
	}
	engine := scrub.New(opts.ScrubRules, scrubOpts...)
	return []plugin.Plugin{domevents.New(opts.Host, engine, logger)}
}

// attach runs one plugin's setup. A failing plugin is logged and skipped.
func (c *Client) attach(p plugin.Plugin) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("plugin panicked during attach", "plugin", fmt.Sprintf("%T", p), "panic", r)
		}
	}()
	if err := p.Attach(c); err != nil {
		c.logger.Error("attaching plugin", "plugin", fmt.Sprintf("%T", p), "error", err)
	}
}

// Capture stamps event with the session id and queues or sends it.
// Unsampled clients drop it.
func (c *Client) Capture(e models.Event) {
	ctx := context.Background()
	if !c.sampled {
		c.unsampled.Add(ctx, 1)
		return
	}
	e.SessionID = c.sessionID
	c.captured.Add(ctx, 1)

	if c.buffer != nil {
		c.buffer.Add(e)
		return
	}
	c.sender.Send(e)
}

func (c *Client) flushBatch(batch []models.Event) {
	c.flushed.Add(context.Background(), 1)
	c.sender.SendBatch(batch)
}

// Sampled reports the sampling decision drawn at construction.
func (c *Client) Sampled() bool { return c.sampled }

// SessionID returns the id stamped on every event.
func (c *Client) SessionID() string { return c.sessionID }

// PageContext returns the page events are attributed to.
func (c *Client) PageContext() event.PageContext { return c.page }

// Now returns the client clock's current time.
func (c *Client) Now() time.Time { return c.clock.Now() }

// Flush sends whatever is buffered now. It does nothing when buffering
// is disabled or the buffer is empty.
func (c *Client) Flush() {
	if c.buffer != nil {
		c.buffer.Flush()
	}
}

// StopFlushInterval stops the flush timer. Buffered events stay queued
// until the next size-triggered or explicit Flush.
func (c *Client) StopFlushInterval() {
	if c.buffer != nil {
		c.buffer.Stop()
	}
}

// Close stops the flush timer and closes the transport, waiting for
// in-flight requests or ctx. Buffered events are not flushed; call
// Flush first to keep them.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.StopFlushInterval()
		c.closeErr = c.sender.Close(ctx)
	})
	return c.closeErr
}
