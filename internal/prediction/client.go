// Package prediction talks to the food wastage prediction model service.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feedra/internal/platform/config"
	"feedra/internal/platform/metrics"
	dErrors "feedra/pkg/domain-errors"
	"feedra/pkg/platform/circuit"
)

const outboundTarget = "prediction"

// Input is one day of kitchen figures.
type Input struct {
	FoodPreparedKg  float64 `json:"food_prepared_kg"`
	FoodConsumedKg  float64 `json:"food_consumed_kg"`
	CustomersServed int     `json:"customers_served"`
	Temperature     float64 `json:"temperature"`
	Humidity        float64 `json:"humidity"`
	MenuType        string  `json:"menu_type"`
	DayOfWeek       string  `json:"day_of_week"`
}

func (in Input) Validate() error {
	var missing []string
	if strings.TrimSpace(in.MenuType) == "" {
		missing = append(missing, "menu_type")
	}
	if strings.TrimSpace(in.DayOfWeek) == "" {
		missing = append(missing, "day_of_week")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeValidation, "missing required fields: "+strings.Join(missing, ", "))
	}
	if in.FoodPreparedKg < 0 || in.FoodConsumedKg < 0 || in.CustomersServed < 0 {
		return dErrors.New(dErrors.CodeValidation, "quantities must not be negative")
	}
	return nil
}

// probeInput is the fixed request used to check that the model answers.
var probeInput = Input{
	FoodPreparedKg:  1,
	FoodConsumedKg:  1,
	CustomersServed: 1,
	Temperature:     25,
	Humidity:        40,
	MenuType:        "Veg",
	DayOfWeek:       "Monday",
}

// Prediction is the model's response body, passed through as-is.
type Prediction map[string]any

// Status reports whether the model service is reachable.
type Status struct {
	Active  bool   `json:"active"`
	Breaker string `json:"breaker"`
	Error   string `json:"error,omitempty"`
}

type Client struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
	metrics *metrics.Metrics
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.client = c }
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Client) { cl.metrics = m }
}

func New(cfg config.PredictionConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: circuit.New(outboundTarget, circuit.WithFailureThreshold(3)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Predict asks the model for a wastage forecast. Transport and model failures
// are CodeUnavailable.
func (c *Client) Predict(ctx context.Context, in Input) (Prediction, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !c.breaker.Allow() {
		c.metrics.IncrementOutbound(outboundTarget, "short_circuit")
		return nil, dErrors.New(dErrors.CodeUnavailable, "prediction service is unavailable")
	}

	out, err := c.post(ctx, in)
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.metrics.SetBreakerOpen(outboundTarget, true)
		}
		c.metrics.IncrementOutbound(outboundTarget, "error")
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "prediction service is unavailable")
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.metrics.SetBreakerOpen(outboundTarget, false)
	}
	c.metrics.IncrementOutbound(outboundTarget, "ok")
	return out, nil
}

// Status sends the fixed probe request.
func (c *Client) Status(ctx context.Context) Status {
	_, err := c.Predict(ctx, probeInput)
	st := Status{Active: err == nil, Breaker: string(c.breaker.State())}
	if err != nil {
		st.Error = dErrors.MessageOf(err)
	}
	return st
}

func (c *Client) post(ctx context.Context, in Input) (Prediction, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encode prediction request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build prediction request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call prediction service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("prediction service: status %d: %s", resp.StatusCode, bytes.TrimSpace(text))
	}
	var out Prediction
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode prediction response: %w", err)
	}
	return out, nil
}
