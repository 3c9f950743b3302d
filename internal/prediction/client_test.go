package prediction

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedra/internal/platform/config"
	dErrors "feedra/pkg/domain-errors"
	"feedra/pkg/platform/circuit"
)

func newModelServer(t *testing.T, status int, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/predict", r.URL.Path)
		var in Input
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		w.WriteHeader(status)
		if status == http.StatusOK {
			_ = json.NewEncoder(w).Encode(map[string]any{"predicted_waste_kg": in.FoodPreparedKg - in.FoodConsumedKg})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientPredict(t *testing.T) {
	t.Run("returns the model response", func(t *testing.T) {
		var calls atomic.Int32
		srv := newModelServer(t, http.StatusOK, &calls)
		c := New(config.PredictionConfig{URL: srv.URL + "/", Timeout: time.Second})

		out, err := c.Predict(context.Background(), Input{FoodPreparedKg: 12, FoodConsumedKg: 9, MenuType: "Veg", DayOfWeek: "Friday"})

		require.NoError(t, err)
		assert.InDelta(t, 3.0, out["predicted_waste_kg"], 0.001)
	})

	t.Run("validation happens before the call", func(t *testing.T) {
		var calls atomic.Int32
		srv := newModelServer(t, http.StatusOK, &calls)
		c := New(config.PredictionConfig{URL: srv.URL})

		_, err := c.Predict(context.Background(), Input{FoodPreparedKg: 1})

		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Zero(t, calls.Load())
	})

	t.Run("failures are unavailable and trip the breaker", func(t *testing.T) {
		var calls atomic.Int32
		srv := newModelServer(t, http.StatusInternalServerError, &calls)
		c := New(config.PredictionConfig{URL: srv.URL},
			WithBreaker(circuit.New("test", circuit.WithFailureThreshold(1), circuit.WithCooldown(time.Hour))))

		_, err := c.Predict(context.Background(), probeInput)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnavailable))

		st := c.Status(context.Background())
		assert.False(t, st.Active)
		assert.Equal(t, "open", st.Breaker)
		assert.EqualValues(t, 1, calls.Load())
	})
}

func TestHandler(t *testing.T) {
	var calls atomic.Int32
	srv := newModelServer(t, http.StatusOK, &calls)
	r := chi.NewRouter()
	NewHandler(New(config.PredictionConfig{URL: srv.URL}), slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)

	t.Run("status probe", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/predictions/status", nil))

		var st Status
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
		assert.True(t, st.Active)
	})

	t.Run("bad body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader("nope")))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("predict", func(t *testing.T) {
		body := `{"food_prepared_kg":5,"food_consumed_kg":4,"customers_served":20,"temperature":30,"humidity":60,"menu_type":"Non-Veg","day_of_week":"Sunday"}`
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/predictions", strings.NewReader(body)))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "predicted_waste_kg")
	})
}
