package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nsabot/updatescanner/internal/model"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrCircuitOpen is returned when deliveries are suspended after repeated failures
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Dispatcher delivers change notifications with retry and a circuit breaker
type Dispatcher struct {
	httpClient     *http.Client
	circuitBreaker *CircuitBreaker
}

// NewDispatcher creates a new webhook dispatcher
func NewDispatcher(timeout time.Duration) *Dispatcher {
	return &Dispatcher{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		circuitBreaker: NewCircuitBreaker(5, 2, 60*time.Second),
	}
}

// Send posts payload to the webhook and returns the delivery log. The log is returned
// even when delivery fails.
func (d *Dispatcher) Send(ctx context.Context, webhook model.Webhook, payload ChangePayload, batchID string) (*model.Notification, error) {
	if payload.Metadata == nil {
		payload.Metadata = map[string]interface{}{}
	}
	payload.Metadata["timestamp"] = time.Now().UTC().Format(time.RFC3339)

	n := &model.Notification{
		ID:          primitive.NewObjectID(),
		BatchID:     batchID,
		WebhookURL:  webhook.URL,
		Text:        payload.Text,
		Pages:       payload.Pages,
		Attempts:    make([]model.DeliveryAttempt, 0),
		FinalStatus: "retrying",
		CreatedAt:   time.Now().UTC(),
	}

	finish := func(status string) {
		n.FinalStatus = status
		n.CompletedAt = time.Now().UTC()
	}

	if !d.circuitBreaker.CanAttempt() {
		slog.Warn("Circuit breaker is open, skipping notification",
			"batch_id", batchID,
			"webhook_url", webhook.URL,
		)
		finish("failed")
		return n, ErrCircuitOpen
	}

	body, err := json.Marshal(payload)
	if err != nil {
		finish("failed")
		return n, fmt.Errorf("failed to marshal payload: %w", err)
	}

	retry := NewRetryStrategy(webhook.RetryConfig)

	for attempt := 1; attempt <= retry.GetMaxAttempts(); attempt++ {
		result, transportErr := d.deliver(ctx, webhook, body)
		result.AttemptNumber = attempt
		n.Attempts = append(n.Attempts, result)

		if transportErr == nil && result.StatusCode >= 200 && result.StatusCode < 300 {
			slog.Info("Notification delivered",
				"batch_id", batchID,
				"attempt", attempt,
				"status_code", result.StatusCode,
			)
			finish("delivered")
			d.circuitBreaker.RecordSuccess()
			return n, nil
		}

		if !retry.ShouldRetry(attempt, result.StatusCode, transportErr) {
			break
		}

		delay := retry.CalculateDelay(attempt)
		slog.Warn("Notification delivery failed, retrying",
			"batch_id", batchID,
			"attempt", attempt,
			"next_retry_ms", delay.Milliseconds(),
			"error", result.Error,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			finish("failed")
			d.circuitBreaker.RecordFailure()
			return n, ctx.Err()
		}
	}

	slog.Error("Notification delivery failed",
		"batch_id", batchID,
		"webhook_url", webhook.URL,
		"attempts", len(n.Attempts),
	)
	finish("failed")
	d.circuitBreaker.RecordFailure()
	return n, fmt.Errorf("notification delivery failed after %d attempts", len(n.Attempts))
}

// deliver performs a single attempt. The error is set only when no response was received.
func (d *Dispatcher) deliver(ctx context.Context, webhook model.Webhook, body []byte) (model.DeliveryAttempt, error) {
	start := time.Now()
	attempt := model.DeliveryAttempt{Timestamp: start.UTC()}

	req, err := http.NewRequestWithContext(ctx, webhook.Method, webhook.URL, bytes.NewReader(body))
	if err != nil {
		attempt.Error = fmt.Sprintf("failed to create request: %v", err)
		return attempt, err
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range webhook.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		attempt.Error = fmt.Sprintf("request failed: %v", err)
		attempt.DurationMs = time.Since(start).Milliseconds()
		return attempt, err
	}
	defer resp.Body.Close()

	// 1KB is enough to diagnose a rejected delivery
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		slog.Warn("Failed to read webhook response body", "error", err)
	}

	attempt.StatusCode = resp.StatusCode
	attempt.ResponseBody = string(respBody)
	attempt.DurationMs = time.Since(start).Milliseconds()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		attempt.Error = fmt.Sprintf("webhook returned status %d", resp.StatusCode)
	}

	return attempt, nil
}

// CircuitState returns the current circuit breaker state
func (d *Dispatcher) CircuitState() CircuitState {
	return d.circuitBreaker.State()
}
