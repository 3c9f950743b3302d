package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Publisher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"feedra/internal/donation/models"
	"feedra/internal/donation/query"
	"feedra/internal/donation/service/mocks"
	"feedra/internal/donation/store"
	"feedra/internal/events"
	dErrors "feedra/pkg/domain-errors"
	"feedra/pkg/platform/sentinel"
	"feedra/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	store     *mocks.MockStore
	publisher *mocks.MockPublisher
	service   *Service
	now       time.Time
	ctx       context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.store = mocks.NewMockStore(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = New(s.store, WithPublisher(s.publisher), WithLogger(logger))
	s.now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) donor() requestcontext.Actor {
	return requestcontext.Actor{ID: "U1", Email: "asha@example.com"}
}

func (s *ServiceSuite) validRequest() models.CreateRequest {
	return models.CreateRequest{
		FoodType:    "Cooked Rice",
		Description: "Two trays",
		Quantity:    5,
		Location:    "Block A",
		ExpiryDate:  "2026-10-14T20:00",
	}
}

func (s *ServiceSuite) TestCreate() {
	s.Run("stores an available donation with defaults", func() {
		var stored models.Record
		s.store.EXPECT().Create(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, rec models.Record) (string, error) {
				stored = rec
				return "D1", nil
			})
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e events.Event) error {
				s.Equal(events.TypeDonationCreated, e.Type)
				s.Equal("D1", e.Donation.ID)
				return nil
			})

		got, err := s.service.Create(s.ctx, s.donor(), s.validRequest())
		s.Require().NoError(err)

		s.Equal("D1", got.ID)
		s.Equal(models.StatusAvailable, stored.Status)
		s.Equal("cooked rice", stored.FoodType)
		s.Equal(models.UrgencyMedium, stored.Urgency)
		s.Equal([]string{}, stored.Tags)
		s.Equal("asha", stored.DonorName, "name falls back to email local part")
		s.Equal("asha@example.com", stored.ContactInfo)
		s.Equal(models.Instant(s.now), stored.CreatedAt)
		s.Nil(got.ClaimedAt)
		s.Nil(got.CompletedAt)
	})

	s.Run("rejects invalid input before any write", func() {
		cases := map[string]func(*models.CreateRequest){
			"missing food type":   func(r *models.CreateRequest) { r.FoodType = "" },
			"zero quantity":       func(r *models.CreateRequest) { r.Quantity = 0 },
			"expiry in the past":  func(r *models.CreateRequest) { r.ExpiryDate = "2026-10-14T08:00" },
			"expiry equal to now": func(r *models.CreateRequest) { r.ExpiryDate = "2026-10-14T12:00" },
			"unparseable expiry":  func(r *models.CreateRequest) { r.ExpiryDate = "tomorrow" },
		}
		for name, mutate := range cases {
			req := s.validRequest()
			mutate(&req)
			_, err := s.service.Create(s.ctx, s.donor(), req)
			s.Require().Error(err, name)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation), name)
		}
	})

	s.Run("requires a signed-in donor", func() {
		_, err := s.service.Create(s.ctx, requestcontext.Actor{}, s.validRequest())
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestClaim() {
	s.Run("available becomes claimed with a partial write", func() {
		s.store.EXPECT().Get(gomock.Any(), "D1").Return(models.Record{
			ID: "D1", Status: models.StatusAvailable, Description: "bread",
		}, nil)
		s.store.EXPECT().UpdateFields(gomock.Any(), "D1", models.ClaimFields("U2", s.now)).Return(nil)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, e events.Event) error {
				s.Equal(events.TypeDonationClaimed, e.Type)
				s.Equal("U2", e.ActorID)
				return nil
			})

		got, err := s.service.Claim(s.ctx, "D1", "U2")
		s.Require().NoError(err)
		s.Equal(models.StatusClaimed, got.Status)
		s.Equal("U2", got.ClaimedBy)
		s.Require().NotNil(got.ClaimedAt)
		s.Equal(s.now, *got.ClaimedAt)
		s.Equal("bread", got.Description)
	})

	s.Run("claimed donation cannot be claimed again", func() {
		s.store.EXPECT().Get(gomock.Any(), "D1").Return(models.Record{ID: "D1", Status: models.StatusClaimed}, nil)

		_, err := s.service.Claim(s.ctx, "D1", "U3")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("missing donation is not found", func() {
		s.store.EXPECT().Get(gomock.Any(), "D9").Return(models.Record{}, sentinel.ErrNotFound)

		_, err := s.service.Claim(s.ctx, "D9", "U2")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("empty actor is rejected", func() {
		_, err := s.service.Claim(s.ctx, "D1", " ")
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("publish failure does not fail the write", func() {
		s.store.EXPECT().Get(gomock.Any(), "D1").Return(models.Record{ID: "D1", Status: models.StatusAvailable}, nil)
		s.store.EXPECT().UpdateFields(gomock.Any(), "D1", gomock.Any()).Return(nil)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

		_, err := s.service.Claim(s.ctx, "D1", "U2")
		s.NoError(err)
	})
}

func (s *ServiceSuite) TestComplete() {
	s.Run("complete on available is rejected", func() {
		s.store.EXPECT().Get(gomock.Any(), "D1").Return(models.Record{ID: "D1", Status: models.StatusAvailable}, nil)

		_, err := s.service.Complete(s.ctx, "D1")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("claimed becomes completed", func() {
		claimedAt := s.now.Add(-time.Hour)
		s.store.EXPECT().Get(gomock.Any(), "D1").Return(models.Record{
			ID: "D1", Status: models.StatusClaimed, ClaimedBy: "U2", ClaimedAt: models.Instant(claimedAt),
		}, nil)
		s.store.EXPECT().UpdateFields(gomock.Any(), "D1", models.CompleteFields(s.now)).Return(nil)
		s.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Return(nil)

		got, err := s.service.Complete(s.ctx, "D1")
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, got.Status)
		s.Require().NotNil(got.CompletedAt)
		s.Equal(claimedAt, *got.ClaimedAt, "claim history preserved")
	})

	s.Run("store failures are translated", func() {
		s.store.EXPECT().Get(gomock.Any(), "D1").Return(models.Record{ID: "D1", Status: models.StatusClaimed}, nil)
		s.store.EXPECT().UpdateFields(gomock.Any(), "D1", gomock.Any()).
			Return(fmt.Errorf("update: %w", sentinel.ErrPermissionDenied))

		_, err := s.service.Complete(s.ctx, "D1")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ServiceSuite) TestListAndDelete() {
	s.Run("list by donor uses a capped owner query", func() {
		want, err := query.Build(models.Filter{OwnerID: "U1", Limit: donorListLimit})
		s.Require().NoError(err)
		s.store.EXPECT().Query(gomock.Any(), want).Return([]models.Record{
			{ID: "D2", CreatedAt: models.Missing()},
		}, nil)

		got, err := s.service.ListByDonor(s.ctx, "U1")
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(s.now, got[0].CreatedAt, "missing createdAt falls back to request time")
	})

	s.Run("malformed filter is a validation error", func() {
		_, err := s.service.List(s.ctx, models.Filter{Status: "gone"})
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing index surfaces as precondition failure", func() {
		s.store.EXPECT().Query(gomock.Any(), gomock.Any()).Return(nil, sentinel.ErrFailedPrecondition)

		_, err := s.service.List(s.ctx, models.Filter{Status: "available"})
		s.True(dErrors.HasCode(err, dErrors.CodePreconditionFailed))
	})

	s.Run("delete requires admin", func() {
		err := s.service.Delete(s.ctx, s.donor(), "D1")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		s.store.EXPECT().Delete(gomock.Any(), "D1").Return(nil)
		s.NoError(s.service.Delete(s.ctx, requestcontext.Actor{ID: "A1", Admin: true}, "D1"))
	})
}

// TestLifecycleAgainstInMemoryStore runs create → claim → complete end to end
// with the real in-memory store and no publisher.
func TestLifecycleAgainstInMemoryStore(t *testing.T) {
	ctx := requestcontext.WithTime(context.Background(), time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC))
	svc := New(store.NewInMemory())

	created, err := svc.Create(ctx, requestcontext.Actor{ID: "U1", Name: "Asha"}, models.CreateRequest{
		FoodType: "bread", Description: "loaves", Quantity: 3, Location: "Gate", ExpiryDate: "2026-10-14T18:00",
	})
	require.NoError(t, err)

	claimed, err := svc.Claim(ctx, created.ID, "U2")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimed, claimed.Status)
	assert.Equal(t, "U2", claimed.ClaimedBy)

	_, err = svc.Complete(ctx, created.ID)
	require.NoError(t, err)

	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.NotNil(t, got.ClaimedAt)
	assert.NotNil(t, got.CompletedAt)

	_, err = svc.Claim(ctx, created.ID, "U3")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState), "claim after completion: %v", err)
}

// TestConcurrentClaimsLastWriteWins: both claims may pass the status check
// before either write lands. The donation ends claimed by exactly one of them.
func TestConcurrentClaimsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	svc := New(store.NewInMemory())

	created, err := svc.Create(ctx, requestcontext.Actor{ID: "U1"}, models.CreateRequest{
		FoodType: "fruit", Description: "apples", Quantity: 1, Location: "Lab",
		ExpiryDate: time.Now().Add(time.Hour).UTC().Format(time.RFC3339),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []string{"U2", "U3"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = svc.Claim(ctx, created.ID, actor)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidState), "unexpected claim error: %v", err)
		}
	}
	got, err := svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClaimed, got.Status)
	assert.Contains(t, []string{"U2", "U3"}, got.ClaimedBy)
}
