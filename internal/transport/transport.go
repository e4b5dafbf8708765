// Package transport delivers events to the collection endpoint.
//
// Single events go to {URL}/session and batches to {URL}/sessions so the
// collector can tell the two payload shapes apart. Requests are never
// retried and delivery failures never reach the caller.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/vincentbai/shadowtrace/internal/codec"
	"github.com/vincentbai/shadowtrace/internal/models"
)

// Endpoint paths relative to Config.URL.
const (
	SinglePath = "/session"
	BatchPath  = "/sessions"
)

// Mode names a delivery policy.
type Mode string

const (
	// ModeQueued issues tracked POST requests and logs failures.
	ModeQueued Mode = "queued"
	// ModeBeacon fires requests without observing their outcome.
	ModeBeacon Mode = "beacon"
)

// Transport sends events. Send and SendBatch return before the request
// completes.
type Transport interface {
	Send(event models.Event)
	SendBatch(batch []models.Event)
	Close(ctx context.Context) error
}

// Config configures a Transport. URL is required.
type Config struct {
	// URL is the collection endpoint base, without a trailing path.
	URL string

	// Headers are added to every request. Content-Type is always set
	// by the codec and cannot be overridden here.
	Headers map[string]string

	// Token, when set, is sent as "Authorization: Bearer <token>".
	Token string

	// HTTPClient performs requests. Defaults to http.DefaultClient;
	// request timeouts are the client's business.
	HTTPClient *http.Client

	// Codec encodes payloads. Defaults to codec.JSON.
	Codec codec.Codec

	// Compress gzips request bodies.
	Compress bool

	// Logger receives delivery failures. Defaults to slog.Default().
	Logger *slog.Logger

	// Meter records delivery counters. Defaults to the global meter.
	Meter metric.Meter
}

// New builds the transport for mode. An empty mode means ModeQueued.
func New(mode Mode, config Config) (Transport, error) {
	switch mode {
	case "", ModeQueued:
		return NewQueued(config)
	case ModeBeacon:
		return NewBeacon(config)
	}
	return nil, fmt.Errorf("unknown transport mode %q", mode)
}

// poster holds what both policies need to build and issue a request.
type poster struct {
	url        string
	headers    map[string]string
	token      string
	client     *http.Client
	codec      codec.Codec
	compress   bool
	logger     *slog.Logger
	deliveries metric.Int64Counter
	failures   metric.Int64Counter
}

func newPoster(config Config, component string) (*poster, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("transport: URL is required")
	}
	p := &poster{
		url:      strings.TrimRight(config.URL, "/"),
		headers:  config.Headers,
		token:    config.Token,
		client:   config.HTTPClient,
		codec:    config.Codec,
		compress: config.Compress,
		logger:   config.Logger,
	}
	if p.client == nil {
		p.client = http.DefaultClient
	}
	if p.codec == nil {
		p.codec = codec.JSON
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With("component", component)

	meter := config.Meter
	if meter == nil {
		meter = otel.Meter("github.com/vincentbai/shadowtrace/internal/transport")
	}
	var err error
	p.deliveries, err = meter.Int64Counter("shadowtrace.deliveries",
		metric.WithDescription("Delivery requests issued"))
	if err != nil {
		return nil, fmt.Errorf("transport: creating delivery counter: %w", err)
	}
	p.failures, err = meter.Int64Counter("shadowtrace.deliveries.failed",
		metric.WithDescription("Delivery requests that failed before a response arrived"))
	if err != nil {
		return nil, fmt.Errorf("transport: creating failure counter: %w", err)
	}
	return p, nil
}

// encode marshals payload and, when configured, gzips it.
func (p *poster) encode(payload any) ([]byte, error) {
	body, err := p.codec.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	if !p.compress {
		return body, nil
	}
	var compressed bytes.Buffer
	writer := gzip.NewWriter(&compressed)
	if _, err := writer.Write(body); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("compressing payload: %w", err)
	}
	return compressed.Bytes(), nil
}

// do issues one POST of an encoded body. The request is detached from
// any caller context so it outlives the capture call that caused it.
func (p *poster) do(path string, body []byte) (*http.Response, error) {
	request, err := http.NewRequestWithContext(context.Background(), http.MethodPost, p.url+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	for name, value := range p.headers {
		request.Header.Set(name, value)
	}
	if p.token != "" {
		request.Header.Set("Authorization", "Bearer "+p.token)
	}
	request.Header.Set("Content-Type", p.codec.ContentType())
	if p.compress {
		request.Header.Set("Content-Encoding", "gzip")
	}

	p.deliveries.Add(context.Background(), 1)
	response, err := p.client.Do(request)
	if err != nil {
		p.failures.Add(context.Background(), 1)
		return nil, err
	}
	return response, nil
}
