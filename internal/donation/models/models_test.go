package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"

	dErrors "feedra/pkg/domain-errors"
)

func TestStatusTransitions(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusAvailable, StatusClaimed}: true,
		{StatusClaimed, StatusCompleted}: true,
	}
	all := []Status{StatusAvailable, StatusClaimed, StatusCompleted}
	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]Status{from, to}], from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.False(t, Status("expired").CanTransitionTo(StatusClaimed))
}

func TestCreateRequest(t *testing.T) {
	valid := func() CreateRequest {
		return CreateRequest{
			FoodType:    "  Prepared Meals ",
			Description: "Rice and dal",
			Quantity:    5,
			Location:    "Hostel B gate",
			ExpiryDate:  "2026-10-14T20:00",
		}
	}

	t.Run("normalize applies defaults", func(t *testing.T) {
		req := valid()
		req.Normalize()
		assert.Equal(t, "prepared meals", req.FoodType)
		assert.Equal(t, UrgencyMedium, req.Urgency)
		assert.NotNil(t, req.Tags)
		require.NoError(t, req.Validate())
	})

	t.Run("missing fields are listed", func(t *testing.T) {
		req := CreateRequest{Quantity: 1}
		req.Normalize()
		err := req.Validate()
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Contains(t, err.Error(), "foodType")
		assert.Contains(t, err.Error(), "expiryDate")
	})

	t.Run("non-positive quantity is rejected", func(t *testing.T) {
		for _, qty := range []float64{0, -2} {
			req := valid()
			req.Quantity = qty
			req.Normalize()
			err := req.Validate()
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		}
	})

	t.Run("unknown urgency is rejected", func(t *testing.T) {
		req := valid()
		req.Urgency = "critical"
		req.Normalize()
		assert.Error(t, req.Validate())
	})
}

func TestTimestampOf(t *testing.T) {
	now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, TimestampMissing, TimestampOf(nil).Kind)
	assert.Equal(t, TimestampMissing, TimestampOf(time.Time{}).Kind)
	assert.Equal(t, Instant(now), TimestampOf(now))
	assert.Equal(t, Instant(now), TimestampOf(&now))
	assert.Equal(t, EpochMillis(1700000000000), TimestampOf(int64(1700000000000)))
	assert.Equal(t, RawTimestamp("2026-10-14"), TimestampOf("2026-10-14"))
	assert.Equal(t, TimestampMissing, TimestampOf(struct{}{}).Kind)

	assert.Equal(t, Instant(now), TimestampOf(timestamppb.New(now)))
	assert.Equal(t, TimestampMissing, TimestampOf((*timestamppb.Timestamp)(nil)).Kind,
		"a typed nil must not read as the Unix epoch")
}

func TestFieldsApply(t *testing.T) {
	now := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	rec := Record{ID: "D1", Status: StatusAvailable, Description: "bread"}

	ClaimFields("U2", now).Apply(&rec)

	assert.Equal(t, StatusClaimed, rec.Status)
	assert.Equal(t, "U2", rec.ClaimedBy)
	assert.Equal(t, Instant(now), rec.ClaimedAt)
	assert.Equal(t, "bread", rec.Description, "unrelated fields untouched")
	assert.True(t, rec.CompletedAt.IsMissing())
}
