package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(opts ...Option) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	b := New("emailjs", append([]Option{WithClock(clock.now)}, opts...)...)
	return b, clock
}

func TestNewDefaults(t *testing.T) {
	b := New("prediction")
	assert.Equal(t, "prediction", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())

	for range 4 {
		fallback, _ := b.RecordFailure()
		require.False(t, fallback)
	}
	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.True(t, change.Opened, "five consecutive failures open by default")
}

func TestConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(3))

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.False(t, b.IsOpen(), "a success in between resets the streak")

	_, change := b.RecordFailure()
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	fallback, change := b.RecordFailure()
	assert.True(t, fallback)
	assert.Equal(t, StateChange{}, change, "already open")
}

func TestRecovery(t *testing.T) {
	b, clock := newTestBreaker(
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithCooldown(time.Minute),
	)

	b.RecordFailure()
	require.True(t, b.IsOpen())
	assert.False(t, b.Allow(), "calls are shed during cooldown")

	clock.advance(30 * time.Second)
	assert.False(t, b.Allow())

	clock.advance(30 * time.Second)
	assert.True(t, b.Allow(), "first call after cooldown is a probe")
	assert.False(t, b.Allow(), "one probe at a time")

	primary, change := b.RecordSuccess()
	assert.False(t, primary)
	assert.False(t, change.Closed)

	assert.True(t, b.Allow(), "next probe once the previous one reported")
	primary, change = b.RecordSuccess()
	assert.True(t, primary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestFailedProbeRestartsCooldown(t *testing.T) {
	b, clock := newTestBreaker(
		WithFailureThreshold(1),
		WithSuccessThreshold(3),
		WithCooldown(time.Minute),
	)

	b.RecordFailure()
	clock.advance(time.Minute)
	require.True(t, b.Allow())
	b.RecordSuccess()
	b.RecordSuccess()

	b.RecordFailure()
	assert.True(t, b.IsOpen(), "a failure while half-recovered keeps it open")
	assert.False(t, b.Allow())

	clock.advance(time.Minute)
	assert.True(t, b.Allow())
	b.RecordSuccess()
	b.RecordSuccess()
	assert.True(t, b.IsOpen(), "success streak starts over")
	b.RecordSuccess()
	assert.False(t, b.IsOpen())
}

func TestReset(t *testing.T) {
	b, _ := newTestBreaker(WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestInvalidOptionsIgnored(t *testing.T) {
	b := New("emailjs", WithFailureThreshold(0), WithCooldown(-time.Second), WithClock(nil))
	for range 4 {
		b.RecordFailure()
	}
	assert.False(t, b.IsOpen())
}
