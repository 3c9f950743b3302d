package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"

	"feedra/internal/donation/models"
)

func TestInstant(t *testing.T) {
	at := time.Date(2026, 10, 14, 18, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		input  models.Timestamp
		want   time.Time
		wantOK bool
	}{
		{"missing", models.Missing(), time.Time{}, false},
		{"instant", models.Instant(at), at, true},
		{"zero instant", models.Instant(time.Time{}), time.Time{}, false},
		{"epoch millis", models.EpochMillis(at.UnixMilli()), at, true},
		{"non-positive epoch", models.EpochMillis(0), time.Time{}, false},
		{"rfc3339", models.RawTimestamp("2026-10-14T18:30:00Z"), at, true},
		{"datetime-local", models.RawTimestamp("2026-10-14T18:30"), at, true},
		{"date only", models.RawTimestamp("2026-10-14"), time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC), true},
		{"epoch string", models.RawTimestamp("1792002600000"), time.UnixMilli(1792002600000).UTC(), true},
		{"garbage", models.RawTimestamp("next tuesday"), time.Time{}, false},
		{"blank", models.RawTimestamp("   "), time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Instant(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.True(t, tt.want.Equal(got), "want %v got %v", tt.want, got)
			}
		})
	}
}

func TestRequiredAndOptionalFallbacks(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	t.Run("required missing is now", func(t *testing.T) {
		assert.Equal(t, now, Required(models.Missing(), now))
		assert.WithinDuration(t, time.Now(), Required(models.Missing(), time.Now()), time.Second)
	})

	t.Run("required unparseable is now", func(t *testing.T) {
		assert.Equal(t, now, Required(models.RawTimestamp("NaN"), now))
	})

	t.Run("optional missing is absent", func(t *testing.T) {
		assert.Nil(t, Optional(models.Missing()))
		assert.Nil(t, Optional(models.RawTimestamp("not a date")))
	})

	t.Run("protobuf timestamps convert at the boundary", func(t *testing.T) {
		at := time.Date(2026, 10, 14, 10, 0, 0, 0, time.UTC)
		got := Optional(models.TimestampOf(timestamppb.New(at)))
		require.NotNil(t, got)
		assert.True(t, at.Equal(*got))
	})

	t.Run("nil protobuf timestamp is missing, not the epoch", func(t *testing.T) {
		var unset *timestamppb.Timestamp
		assert.Nil(t, Optional(models.TimestampOf(unset)))
		assert.Equal(t, now, Required(models.TimestampOf(unset), now))
	})
}

func TestDonationNormalizesEveryTimestampField(t *testing.T) {
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	claimed := now.Add(-time.Hour)

	rec := models.Record{
		ID:         "D1",
		Status:     models.StatusClaimed,
		CreatedAt:  models.Missing(),
		ExpiryDate: models.RawTimestamp("2026-10-14T20:00"),
		ClaimedBy:  "U2",
		ClaimedAt:  models.Instant(claimed),
	}

	got := Donation(rec, now)

	assert.Equal(t, now, got.CreatedAt, "required createdAt defaults to now")
	assert.Equal(t, time.Date(2026, 10, 14, 20, 0, 0, 0, time.UTC), got.ExpiryDate)
	require.NotNil(t, got.ClaimedAt)
	assert.Equal(t, claimed, *got.ClaimedAt)
	assert.Nil(t, got.CompletedAt, "optional completedAt is never fabricated")
	assert.Equal(t, []string{}, got.Tags)
}
