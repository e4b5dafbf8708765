package transport

import (
	"context"

	"github.com/vincentbai/shadowtrace/internal/models"
)

// Beacon is a one-way transport for moments when nobody will be around to
// observe a response, such as a page being torn down. The response body
// is closed unread and errors go nowhere.
type Beacon struct {
	*poster
}

// NewBeacon creates a best-effort beacon transport.
func NewBeacon(config Config) (*Beacon, error) {
	p, err := newPoster(config, "transport.beacon")
	if err != nil {
		return nil, err
	}
	return &Beacon{poster: p}, nil
}

// Send fires one event at SinglePath.
func (b *Beacon) Send(event models.Event) {
	b.fire(SinglePath, event)
}

// SendBatch fires batch at BatchPath.
func (b *Beacon) SendBatch(batch []models.Event) {
	b.fire(BatchPath, models.Batch(batch))
}

func (b *Beacon) fire(path string, payload any) {
	body, err := b.encode(payload)
	if err != nil {
		return
	}
	go func() {
		if response, err := b.do(path, body); err == nil {
			response.Body.Close()
		}
	}()
}

// Close returns immediately; beacons are never waited on.
func (b *Beacon) Close(context.Context) error { return nil }
