package transport

import (
	"context"
	"io"
	"sync"

	"github.com/vincentbai/shadowtrace/internal/models"
)

// Queued issues each request on its own goroutine and tracks it until it
// completes. Failures are logged and dropped; the response status is not
// inspected.
type Queued struct {
	*poster

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

// NewQueued creates a queued POST transport.
func NewQueued(config Config) (*Queued, error) {
	p, err := newPoster(config, "transport.queued")
	if err != nil {
		return nil, err
	}
	return &Queued{poster: p}, nil
}

// Send posts one event to SinglePath.
func (q *Queued) Send(event models.Event) {
	q.dispatch(SinglePath, event)
}

// SendBatch posts batch to BatchPath as one array.
func (q *Queued) SendBatch(batch []models.Event) {
	q.dispatch(BatchPath, models.Batch(batch))
}

func (q *Queued) dispatch(path string, payload any) {
	body, err := q.encode(payload)
	if err != nil {
		q.logger.Error("dropping event payload", "path", path, "error", err)
		return
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		q.logger.Debug("transport closed, dropping payload", "path", path)
		return
	}
	q.inflight.Add(1)
	q.mu.Unlock()

	go func() {
		defer q.inflight.Done()
		response, err := q.do(path, body)
		if err != nil {
			q.logger.Error("sending events", "path", path, "error", err)
			return
		}
		_, _ = io.Copy(io.Discard, response.Body)
		response.Body.Close()
	}()
}

// Close stops accepting payloads and waits for in-flight requests, or
// for ctx to end.
func (q *Queued) Close(ctx context.Context) error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
