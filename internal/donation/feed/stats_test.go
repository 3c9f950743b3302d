package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedra/internal/donation/models"
	"feedra/internal/donation/store"
)

func TestComputeStats(t *testing.T) {
	got := ComputeStats([]models.Donation{
		{DonorID: "U1", Quantity: 2.4},
		{DonorID: "U1", Quantity: 3.3},
		{DonorID: "U2", Quantity: 4},
	})

	assert.Equal(t, Stats{
		TotalDonations: 3,
		TotalFoodSaved: 10,
		ActiveDonors:   2,
		CO2Saved:       22,
	}, got)
	assert.Equal(t, Stats{}, ComputeStats(nil))
}

func TestSubscribeStats(t *testing.T) {
	ctx := context.Background()
	st := store.NewInMemory()
	mgr := New(st)

	var mu sync.Mutex
	var latest Stats
	unsubscribe := mgr.SubscribeStats(ctx, func(s Stats) {
		mu.Lock()
		latest = s
		mu.Unlock()
	}, nil)
	defer mgr.Wait()
	defer unsubscribe()

	_, err := st.Create(ctx, availableRecord("U1", time.Now()))
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return latest.TotalDonations == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, latest.TotalFoodSaved)
	assert.Equal(t, 7, latest.CO2Saved)
}
