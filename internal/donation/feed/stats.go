package feed

import (
	"context"
	"math"

	"feedra/internal/donation/models"
)

// co2PerKg is the CO2 (kg) avoided per kg of food redistributed.
const co2PerKg = 2.3

// Stats summarizes every donation in a snapshot.
type Stats struct {
	TotalDonations int `json:"totalDonations"`
	TotalFoodSaved int `json:"totalFoodSaved"`
	ActiveDonors   int `json:"activeDonors"`
	CO2Saved       int `json:"co2Saved"`
}

// ComputeStats derives Stats from a full snapshot. Quantities are summed
// before rounding.
func ComputeStats(donations []models.Donation) Stats {
	var total float64
	donors := make(map[string]struct{}, len(donations))
	for _, d := range donations {
		if !math.IsNaN(d.Quantity) && !math.IsInf(d.Quantity, 0) {
			total += d.Quantity
		}
		if d.DonorID != "" {
			donors[d.DonorID] = struct{}{}
		}
	}
	return Stats{
		TotalDonations: len(donations),
		TotalFoodSaved: int(math.Round(total)),
		ActiveDonors:   len(donors),
		CO2Saved:       int(math.Round(total * co2PerKg)),
	}
}

// SubscribeStats streams Stats over all donations.
func (m *Manager) SubscribeStats(ctx context.Context, onData func(Stats), onError ErrorFunc) Unsubscribe {
	return m.Subscribe(ctx, models.Filter{}, func(donations []models.Donation) {
		onData(ComputeStats(donations))
	}, onError)
}
