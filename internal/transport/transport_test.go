package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/shadowtrace/internal/codec"
	"github.com/vincentbai/shadowtrace/internal/models"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type received struct {
	path    string
	header  http.Header
	payload []byte
}

func newCollector(t *testing.T, status int) (*httptest.Server, chan received) {
	t.Helper()
	requests := make(chan received, 16)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body io.Reader = r.Body
		if r.Header.Get("Content-Encoding") == "gzip" {
			reader, err := gzip.NewReader(r.Body)
			if err != nil {
				t.Errorf("gzip reader: %v", err)
				return
			}
			body = reader
		}
		payload, _ := io.ReadAll(body)
		requests <- received{path: r.URL.Path, header: r.Header.Clone(), payload: payload}
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)
	return server, requests
}

func next(t *testing.T, requests chan received) received {
	t.Helper()
	select {
	case r := <-requests:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("no request reached the collector")
		return received{}
	}
}

func TestQueuedSendSingleEvent(t *testing.T) {
	server, requests := newCollector(t, http.StatusNoContent)
	q, err := NewQueued(Config{
		URL:     server.URL + "/",
		Headers: map[string]string{"X-App": "shop", "Content-Type": "text/plain"},
		Token:   "t0ken",
		Logger:  quietLogger,
	})
	require.NoError(t, err)

	q.Send(models.Event{Action: "CLICK", SessionID: "s-1"})
	got := next(t, requests)
	require.NoError(t, q.Close(context.Background()))

	assert.Equal(t, SinglePath, got.path)
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Equal(t, "shop", got.header.Get("X-App"))
	assert.Equal(t, "Bearer t0ken", got.header.Get("Authorization"))
	var event models.Event
	require.NoError(t, json.Unmarshal(got.payload, &event))
	assert.Equal(t, "s-1", event.SessionID)
}

func TestQueuedSendBatch(t *testing.T) {
	server, requests := newCollector(t, http.StatusNoContent)
	q, err := NewQueued(Config{URL: server.URL, Logger: quietLogger})
	require.NoError(t, err)

	q.SendBatch([]models.Event{{Action: "CLICK"}, {Action: "SUBMIT"}})
	got := next(t, requests)
	require.NoError(t, q.Close(context.Background()))

	assert.Equal(t, BatchPath, got.path)
	var batch []models.Event
	require.NoError(t, json.Unmarshal(got.payload, &batch))
	require.Len(t, batch, 2)
	assert.Equal(t, "CLICK", batch[0].Action)
	assert.Equal(t, "SUBMIT", batch[1].Action)
	assert.Empty(t, got.header.Get("Authorization"))
}

func TestQueuedGzipAndCBOR(t *testing.T) {
	server, requests := newCollector(t, http.StatusNoContent)
	q, err := NewQueued(Config{URL: server.URL, Codec: codec.CBOR, Compress: true, Logger: quietLogger})
	require.NoError(t, err)

	q.SendBatch([]models.Event{{Action: "LOAD", SessionID: "s-9"}})
	got := next(t, requests)
	require.NoError(t, q.Close(context.Background()))

	assert.Equal(t, "application/cbor", got.header.Get("Content-Type"))
	assert.Equal(t, "gzip", got.header.Get("Content-Encoding"))
	var batch models.Batch
	require.NoError(t, codec.CBOR.Decode(bytes.NewReader(got.payload), &batch))
	assert.Equal(t, "s-9", batch[0].SessionID)
}

func TestQueuedSwallowsFailures(t *testing.T) {
	server, requests := newCollector(t, http.StatusInternalServerError)
	q, err := NewQueued(Config{URL: server.URL, Logger: quietLogger})
	require.NoError(t, err)

	assert.NotPanics(t, func() { q.Send(models.Event{Action: "CLICK"}) })
	next(t, requests)

	unreachable, err := NewQueued(Config{URL: "http://127.0.0.1:1", Logger: quietLogger})
	require.NoError(t, err)
	assert.NotPanics(t, func() { unreachable.Send(models.Event{Action: "CLICK"}) })

	require.NoError(t, q.Close(context.Background()))
	require.NoError(t, unreachable.Close(context.Background()))
}

func TestQueuedDropsAfterClose(t *testing.T) {
	server, requests := newCollector(t, http.StatusNoContent)
	q, err := NewQueued(Config{URL: server.URL, Logger: quietLogger})
	require.NoError(t, err)
	require.NoError(t, q.Close(context.Background()))

	q.Send(models.Event{Action: "CLICK"})

	select {
	case <-requests:
		t.Fatal("closed transport delivered a payload")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBeaconFiresAndForgets(t *testing.T) {
	server, requests := newCollector(t, http.StatusNoContent)
	b, err := NewBeacon(Config{URL: server.URL, Logger: quietLogger})
	require.NoError(t, err)

	b.Send(models.Event{Action: "LOAD"})
	got := next(t, requests)
	b.SendBatch([]models.Event{{Action: "CLICK"}})
	gotBatch := next(t, requests)

	assert.Equal(t, SinglePath, got.path)
	assert.Equal(t, BatchPath, gotBatch.path)
	assert.NoError(t, b.Close(context.Background()))
}

func TestNew(t *testing.T) {
	transport, err := New("", Config{URL: "http://collector"})
	require.NoError(t, err)
	assert.IsType(t, &Queued{}, transport)

	transport, err = New(ModeBeacon, Config{URL: "http://collector"})
	require.NoError(t, err)
	assert.IsType(t, &Beacon{}, transport)

	_, err = New("carrier-pigeon", Config{URL: "http://collector"})
	assert.Error(t, err)

	_, err = New(ModeQueued, Config{})
	assert.Error(t, err)
}
