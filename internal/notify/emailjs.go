package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"feedra/internal/platform/config"
	"feedra/internal/platform/metrics"
	"feedra/pkg/platform/circuit"
)

// ErrCircuitOpen is returned without calling the provider while it is failing.
var ErrCircuitOpen = errors.New("email provider circuit open")

const outboundTarget = "emailjs"

// EmailJSSender posts messages to the EmailJS REST API.
type EmailJSSender struct {
	cfg     config.EmailJSConfig
	client  *http.Client
	breaker *circuit.Breaker
	metrics *metrics.Metrics
}

type SenderOption func(*EmailJSSender)

func WithHTTPClient(c *http.Client) SenderOption {
	return func(s *EmailJSSender) { s.client = c }
}

func WithBreaker(b *circuit.Breaker) SenderOption {
	return func(s *EmailJSSender) { s.breaker = b }
}

func WithSenderMetrics(m *metrics.Metrics) SenderOption {
	return func(s *EmailJSSender) { s.metrics = m }
}

func NewEmailJSSender(cfg config.EmailJSConfig, opts ...SenderOption) *EmailJSSender {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s := &EmailJSSender{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		breaker: circuit.New(outboundTarget),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type sendRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
}

func (s *EmailJSSender) Send(ctx context.Context, msg Message) error {
	if !s.breaker.Allow() {
		s.metrics.IncrementOutbound(outboundTarget, "short_circuit")
		return ErrCircuitOpen
	}

	err := s.post(ctx, msg)
	if err != nil {
		_, change := s.breaker.RecordFailure()
		if change.Opened {
			s.metrics.SetBreakerOpen(outboundTarget, true)
		}
		s.metrics.IncrementOutbound(outboundTarget, "error")
		return err
	}
	_, change := s.breaker.RecordSuccess()
	if change.Closed {
		s.metrics.SetBreakerOpen(outboundTarget, false)
	}
	s.metrics.IncrementOutbound(outboundTarget, "ok")
	return nil
}

func (s *EmailJSSender) post(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendRequest{
		ServiceID:      s.cfg.ServiceID,
		TemplateID:     s.cfg.TemplateID,
		UserID:         s.cfg.PublicKey,
		TemplateParams: msg.Params,
	})
	if err != nil {
		return fmt.Errorf("encode email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s email: %w", msg.Template, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send %s email: status %d: %s", msg.Template, resp.StatusCode, bytes.TrimSpace(text))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
