package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"feedra/internal/donation/models"
	"feedra/internal/donation/query"
	"feedra/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	base  time.Time
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.base = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryStoreSuite) record(donor string, status models.Status, age time.Duration) models.Record {
	return models.Record{
		FoodType:   "bread",
		Quantity:   2,
		Location:   "Hall 3",
		Status:     status,
		Urgency:    models.UrgencyMedium,
		CreatedAt:  models.Instant(s.base.Add(-age)),
		ExpiryDate: models.Instant(s.base.Add(time.Hour)),
		DonorID:    donor,
	}
}

func mustBuild(t *testing.T, f models.Filter) query.Spec {
	t.Helper()
	spec, err := query.Build(f)
	require.NoError(t, err)
	return spec
}

func (s *InMemoryStoreSuite) TestQueryFiltersOrdersAndLimits() {
	ctx := context.Background()
	oldest, err := s.store.Create(ctx, s.record("U1", models.StatusAvailable, 3*time.Hour))
	s.Require().NoError(err)
	newest, err := s.store.Create(ctx, s.record("U1", models.StatusAvailable, time.Hour))
	s.Require().NoError(err)
	_, err = s.store.Create(ctx, s.record("U2", models.StatusClaimed, 2*time.Hour))
	s.Require().NoError(err)
	missing := s.record("U1", models.StatusAvailable, 0)
	missing.CreatedAt = models.Missing()
	noDate, err := s.store.Create(ctx, missing)
	s.Require().NoError(err)

	got, err := s.store.Query(ctx, mustBuild(s.T(), models.Filter{Status: "available"}))
	s.Require().NoError(err)
	s.Require().Len(got, 3)
	s.Equal([]string{newest, oldest, noDate}, ids(got), "newest first, undated last")

	got, err = s.store.Query(ctx, mustBuild(s.T(), models.Filter{OwnerID: "U2"}))
	s.Require().NoError(err)
	s.Len(got, 1)

	got, err = s.store.Query(ctx, mustBuild(s.T(), models.Filter{Limit: 1}))
	s.Require().NoError(err)
	s.Equal([]string{newest}, ids(got))
}

func (s *InMemoryStoreSuite) TestUpdateFieldsIsPartial() {
	ctx := context.Background()
	rec := s.record("U1", models.StatusAvailable, time.Minute)
	rec.Description = "Rice"
	id, err := s.store.Create(ctx, rec)
	s.Require().NoError(err)

	s.Require().NoError(s.store.UpdateFields(ctx, id, models.ClaimFields("U2", s.base)))

	got, err := s.store.Get(ctx, id)
	s.Require().NoError(err)
	s.Equal(models.StatusClaimed, got.Status)
	s.Equal("U2", got.ClaimedBy)
	s.Equal("Rice", got.Description)
	s.Equal(rec.CreatedAt, got.CreatedAt)
}

func (s *InMemoryStoreSuite) TestMissingDocument() {
	ctx := context.Background()
	_, err := s.store.Get(ctx, "nope")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.UpdateFields(ctx, "nope", models.CompleteFields(s.base)), sentinel.ErrNotFound)
	s.ErrorIs(s.store.Delete(ctx, "nope"), sentinel.ErrNotFound)
}

func (s *InMemoryStoreSuite) TestListenDeliversInitialAndChangedSnapshots() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stream, err := s.store.Listen(ctx, mustBuild(s.T(), models.Filter{Status: "available"}))
	s.Require().NoError(err)
	defer stream.Stop()

	first, err := stream.Next(ctx)
	s.Require().NoError(err)
	s.Empty(first)

	id, err := s.store.Create(ctx, s.record("U1", models.StatusAvailable, 0))
	s.Require().NoError(err)

	second, err := stream.Next(ctx)
	s.Require().NoError(err)
	s.Equal([]string{id}, ids(second))

	s.Require().NoError(s.store.UpdateFields(ctx, id, models.ClaimFields("U2", s.base)))
	third, err := stream.Next(ctx)
	s.Require().NoError(err)
	s.Empty(third, "claimed donation leaves the available feed")
}

func (s *InMemoryStoreSuite) TestStopClosesStreamAndUnregisters() {
	ctx := context.Background()
	stream, err := s.store.Listen(ctx, query.Spec{Collection: query.Collection})
	s.Require().NoError(err)
	s.Equal(1, s.store.ListenerCount())

	stream.Stop()
	stream.Stop()

	s.Equal(0, s.store.ListenerCount())
	_, err = stream.Next(ctx)
	s.ErrorIs(err, ErrStreamClosed)
}

func TestStreamNextHonoursContext(t *testing.T) {
	st := NewInMemory()
	stream, err := st.Listen(context.Background(), query.Spec{Collection: query.Collection})
	require.NoError(t, err)
	defer stream.Stop()

	_, err = stream.Next(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = stream.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func ids(recs []models.Record) []string {
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}
