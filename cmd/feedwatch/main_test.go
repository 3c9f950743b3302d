package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedra/internal/donation/feed"
	"feedra/internal/donation/models"
)

func TestPrinter(t *testing.T) {
	ds := []models.Donation{{
		ID: "d1", Status: models.StatusAvailable, FoodType: "cooked", Quantity: 2.5,
		Location: "Hall B", DonorName: "Asha", CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}}

	t.Run("table", func(t *testing.T) {
		var buf bytes.Buffer
		(&printer{out: &buf}).donations(ds)

		out := buf.String()
		assert.Contains(t, out, "1 donations")
		assert.Contains(t, out, "STATUS")
		assert.Contains(t, out, "2025-01-02 03:04:05")
	})

	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		(&printer{out: &buf, asJSON: true}).donations(ds)

		var doc struct {
			Donations []models.Donation `json:"donations"`
		}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
		assert.Equal(t, "d1", doc.Donations[0].ID)
	})

	t.Run("stats", func(t *testing.T) {
		var buf bytes.Buffer
		(&printer{out: &buf}).stats(feed.Stats{TotalDonations: 3, TotalFoodSaved: 10, ActiveDonors: 2, CO2Saved: 23})
		assert.Contains(t, buf.String(), "food_saved=10kg")
	})
}
