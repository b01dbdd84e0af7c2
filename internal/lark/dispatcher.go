package lark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marminbh/appstore-notify/internal/config"
)

// maxResponseBodySize caps how much of the webhook response is read.
const maxResponseBodySize = 64 * 1024

// DeliveryResult is the terminal outcome of a delivery, after retries.
type DeliveryResult struct {
	Success    bool
	Attempts   int
	HTTPStatus *int
	LastError  error
}

// attemptResult is the outcome of a single HTTP POST.
type attemptResult struct {
	httpStatus *int
	latency    time.Duration
	err        error
}

// Dispatcher delivers signed card messages to the configured Lark
// webhook with bounded retry. Each attempt rebuilds the envelope so the
// timestamp and signature are always fresh.
type Dispatcher struct {
	webhookURL    string
	signingSecret string
	httpClient    *http.Client
	logger        *zap.Logger
	now           func() time.Time
	sleep         func(time.Duration)
}

// NewDispatcher creates a dispatcher for the configured webhook.
func NewDispatcher(cfg *config.LarkConfig, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		webhookURL:    cfg.WebhookURL,
		signingSecret: cfg.SigningSecret,
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
		now:           time.Now,
		sleep:         time.Sleep,
	}
}

// Deliver posts the card to the webhook. Transport errors, 5xx and 429
// are retried with backoff; other 4xx responses and rejections encoded
// in the response body are terminal. The result is never an inbound
// error: the caller logs failures and still acknowledges the platform.
func (d *Dispatcher) Deliver(ctx context.Context, card *Card) DeliveryResult {
	deliveryID := uuid.NewString()
	result := DeliveryResult{}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if delay := backoffDelay(attempt); delay > 0 {
			d.sleep(delay)
		}

		result.Attempts = attempt
		outcome := d.post(ctx, card)
		result.HTTPStatus = outcome.httpStatus
		result.LastError = outcome.err

		if outcome.err == nil {
			result.Success = true
			d.logger.Info("Lark delivery succeeded",
				zap.String("delivery_id", deliveryID),
				zap.Int("attempt", attempt),
				zap.Duration("latency", outcome.latency),
			)
			return result
		}

		if !retryable(outcome) {
			d.logger.Warn("Lark delivery failed, not retryable",
				zap.String("delivery_id", deliveryID),
				zap.Int("attempt", attempt),
				zap.Error(outcome.err),
			)
			return result
		}

		d.logger.Warn("Lark delivery attempt failed",
			zap.String("delivery_id", deliveryID),
			zap.Int("attempt", attempt),
			zap.Error(outcome.err),
		)
	}

	d.logger.Error("Lark delivery failed, attempts exhausted",
		zap.String("delivery_id", deliveryID),
		zap.Int("attempts", result.Attempts),
		zap.Error(result.LastError),
	)
	return result
}

// post performs one delivery attempt with a freshly signed envelope.
func (d *Dispatcher) post(ctx context.Context, card *Card) attemptResult {
	outcome := attemptResult{}

	message := NewMessage(card, d.signingSecret, d.now().Unix())
	payload, err := json.Marshal(message)
	if err != nil {
		outcome.err = fmt.Errorf("failed to marshal Lark message: %w", err)
		return outcome
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(payload))
	if err != nil {
		outcome.err = fmt.Errorf("failed to create webhook request: %w", err)
		return outcome
	}
	req.Header.Set("Content-Type", "application/json")

	start := d.now()
	resp, err := d.httpClient.Do(req)
	outcome.latency = time.Since(start)
	if err != nil {
		outcome.err = fmt.Errorf("webhook request failed: %w", err)
		return outcome
	}
	defer resp.Body.Close()

	outcome.httpStatus = &resp.StatusCode

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		outcome.err = fmt.Errorf("failed to read webhook response: %w", err)
		return outcome
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		outcome.err = fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
		return outcome
	}

	// A 2xx alone is not success: Lark reports rejections (bad sign,
	// malformed card) in the response body.
	code, ok := responseCode(body)
	if !ok {
		outcome.err = fmt.Errorf("webhook response carries no status code: %s", truncate(body, 200))
		return outcome
	}
	if *code != 0 {
		outcome.err = fmt.Errorf("webhook rejected message with code %d: %s", *code, truncate(body, 200))
		return outcome
	}

	return outcome
}

// responseCode extracts Lark's embedded status code, which appears as
// "code" on current bots and "StatusCode" on legacy ones.
func responseCode(body []byte) (*int, bool) {
	var decoded struct {
		Code       *int `json:"code"`
		StatusCode *int `json:"StatusCode"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, false
	}
	if decoded.Code != nil {
		return decoded.Code, true
	}
	if decoded.StatusCode != nil {
		return decoded.StatusCode, true
	}
	return nil, false
}

// retryable reports whether an attempt outcome warrants another try:
// transport errors, 5xx and rate limiting do; everything else is a
// malformed or rejected request that a retry would just repeat.
func retryable(outcome attemptResult) bool {
	if outcome.httpStatus == nil {
		return true
	}
	status := *outcome.httpStatus
	if status >= 500 {
		return true
	}
	if status == http.StatusTooManyRequests {
		return true
	}
	return false
}

func truncate(body []byte, max int) string {
	if len(body) <= max {
		return string(body)
	}
	return string(body[:max]) + "..."
}
