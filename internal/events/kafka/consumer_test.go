package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"feedra/internal/events"
)

type flakyHandler struct {
	failures int
	calls    int
	err      error
}

func (h *flakyHandler) Handle(context.Context, events.Event) error {
	h.calls++
	if h.calls <= h.failures {
		return h.err
	}
	return nil
}

func testConsumer(h events.Handler, attempts int) *Consumer {
	return &Consumer{
		handler:  h,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		attempts: attempts,
		backoff:  time.Millisecond,
	}
}

func record(t *testing.T, e events.Event) *kgo.Record {
	t.Helper()
	value, err := json.Marshal(e)
	require.NoError(t, err)
	return &kgo.Record{Key: []byte(e.ID), Value: value}
}

func TestHandleRetriesFailedHandler(t *testing.T) {
	ctx := context.Background()
	e := events.Event{ID: "e1", Type: events.TypeDonationCreated}

	t.Run("succeeds on a later attempt", func(t *testing.T) {
		h := &flakyHandler{failures: 2, err: errors.New("smtp down")}
		testConsumer(h, 3).handle(ctx, record(t, e))
		assert.Equal(t, 3, h.calls)
	})

	t.Run("stops after the configured attempts", func(t *testing.T) {
		h := &flakyHandler{failures: 10, err: errors.New("smtp down")}
		err := testConsumer(h, 3).handleWithRetry(ctx, e)
		assert.EqualError(t, err, "smtp down")
		assert.Equal(t, 3, h.calls)
	})

	t.Run("healthy handler is called once", func(t *testing.T) {
		h := &flakyHandler{}
		testConsumer(h, 3).handle(ctx, record(t, e))
		assert.Equal(t, 1, h.calls)
	})

	t.Run("cancelled context ends the retries", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		h := &flakyHandler{failures: 10, err: errors.New("smtp down")}
		c := testConsumer(h, 5)
		c.backoff = time.Hour
		assert.ErrorIs(t, c.handleWithRetry(cancelled, e), context.Canceled)
		assert.Equal(t, 1, h.calls)
	})
}

func TestHandleSkipsMalformedRecord(t *testing.T) {
	h := &flakyHandler{}
	testConsumer(h, 3).handle(context.Background(), &kgo.Record{Value: []byte("{not json")})
	assert.Zero(t, h.calls)
}

func TestWithRetryIgnoresInvalidValues(t *testing.T) {
	c := &Consumer{attempts: defaultAttempts, backoff: defaultBackoff}
	WithRetry(0, -time.Second)(c)
	assert.Equal(t, defaultAttempts, c.attempts)
	assert.Equal(t, defaultBackoff, c.backoff)

	WithRetry(5, 0)(c)
	assert.Equal(t, 5, c.attempts)
	assert.Zero(t, c.backoff)
}
