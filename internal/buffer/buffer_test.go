package buffer

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/shadowtrace/internal/clock"
	"github.com/vincentbai/shadowtrace/internal/models"
)

// recorder collects the batches handed to a FlushFunc.
type recorder struct {
	mu      sync.Mutex
	batches [][]models.Event
}

func (r *recorder) flush(batch []models.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, batch)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

func newTestBuffer(t *testing.T, config Config) (*Buffer, *clock.FakeClock, *recorder) {
	t.Helper()
	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	rec := &recorder{}
	return New(config, clk, rec.flush), clk, rec
}

func TestConfigDefaults(t *testing.T) {
	got := Config{Enabled: true}.WithDefaults()

	assert.Equal(t, DefaultMaxEvents, got.MaxEvents)
	assert.Equal(t, DefaultFlushInterval, got.FlushInterval)
	assert.True(t, got.Enabled)
}

func TestFlushEmptyIsNoop(t *testing.T) {
	buf, _, rec := newTestBuffer(t, Config{Enabled: true})

	buf.Flush()
	buf.Flush()

	assert.Equal(t, 0, rec.count())
}

func TestSizeTriggeredFlush(t *testing.T) {
	buf, _, rec := newTestBuffer(t, Config{Enabled: true, MaxEvents: 3})

	buf.Add(models.Event{Action: "CLICK"})
	buf.Add(models.Event{Action: "INPUT"})
	assert.Equal(t, 0, rec.count())

	buf.Add(models.Event{Action: "SUBMIT"})

	require.Equal(t, 1, rec.count())
	assert.Len(t, rec.batches[0], 3)
	assert.Equal(t, 0, buf.Len())
}

func TestTimeTriggeredFlush(t *testing.T) {
	buf, clk, rec := newTestBuffer(t, Config{Enabled: true, FlushInterval: 5 * time.Second})
	buf.Start()
	defer buf.Stop()

	buf.Add(models.Event{Action: "CLICK"})
	buf.Add(models.Event{Action: "SUBMIT"})
	clk.Advance(4999 * time.Millisecond)
	assert.Equal(t, 0, rec.count())

	clk.Advance(time.Millisecond)

	require.Equal(t, 1, rec.count())
	require.Len(t, rec.batches[0], 2)
	assert.Equal(t, "CLICK", rec.batches[0][0].Action)
	assert.Equal(t, "SUBMIT", rec.batches[0][1].Action)
}

func TestTimerRepeatsAndSkipsEmptyQueues(t *testing.T) {
	buf, clk, rec := newTestBuffer(t, Config{Enabled: true, FlushInterval: time.Second})
	buf.Start()
	defer buf.Stop()

	clk.Advance(time.Second)
	buf.Add(models.Event{Action: "CLICK"})
	clk.Advance(time.Second)
	clk.Advance(time.Second)
	buf.Add(models.Event{Action: "LOAD"})
	clk.Advance(time.Second)

	require.Equal(t, 2, rec.count())
	assert.Equal(t, "CLICK", rec.batches[0][0].Action)
	assert.Equal(t, "LOAD", rec.batches[1][0].Action)
}

func TestStopCancelsTimerWithoutFlushing(t *testing.T) {
	buf, clk, rec := newTestBuffer(t, Config{Enabled: true, FlushInterval: time.Second})
	buf.Start()
	buf.Add(models.Event{Action: "CLICK"})

	buf.Stop()
	buf.Stop()
	clk.Advance(time.Minute)

	assert.Equal(t, 0, rec.count())
	assert.Equal(t, 1, buf.Len(), "buffered events are dropped, not delivered")
	assert.Equal(t, 0, clk.PendingCount())
}

func TestStopBeforeStart(t *testing.T) {
	buf, _, _ := newTestBuffer(t, Config{Enabled: true})

	assert.NotPanics(t, buf.Stop)
}

func TestStartIsIdempotent(t *testing.T) {
	buf, clk, _ := newTestBuffer(t, Config{Enabled: true})

	buf.Start()
	buf.Start()
	defer buf.Stop()

	assert.Equal(t, 1, clk.PendingCount())
}

func TestConcurrentAddsAreAllDelivered(t *testing.T) {
	buf, _, rec := newTestBuffer(t, Config{Enabled: true, MaxEvents: 7})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				buf.Add(models.Event{Action: "CLICK"})
			}
		}()
	}
	wg.Wait()
	buf.Flush()

	total := 0
	for _, batch := range rec.batches {
		total += len(batch)
	}
	assert.Equal(t, 1000, total)
}
