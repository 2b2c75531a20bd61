// Package discord delivers messages to a Discord channel through an
// incoming webhook.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"
)

// MaxContentLength is the longest message Discord accepts, in characters.
const MaxContentLength = 2000

const (
	// DefaultRate is the sustained number of messages sent per second.
	// Discord allows roughly five requests per two seconds per webhook.
	DefaultRate = 2.5

	// DefaultBurst is the number of messages sent back to back before the
	// rate applies.
	DefaultBurst = 5

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 1024
)

// ErrDeliveryFailed matches every *DeliveryError.
var ErrDeliveryFailed = errors.New("discord: delivery failed")

// DeliveryError reports a message the webhook did not accept.
type DeliveryError struct {
	StatusCode int    // 0 when the request never got a response
	Message    string // response body excerpt, if any
	Err        error
}

func (e *DeliveryError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("discord webhook: %v", e.Err)
	case e.Message != "":
		return fmt.Sprintf("discord webhook: http %d: %s", e.StatusCode, e.Message)
	default:
		return fmt.Sprintf("discord webhook: http %d", e.StatusCode)
	}
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func (e *DeliveryError) Is(target error) bool {
	return target == ErrDeliveryFailed
}

// Message is the part of Discord's reply kept for logging.
type Message struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// Webhook posts messages to one webhook URL.
type Webhook struct {
	url        string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
}

// Option configures a Webhook.
type Option func(*Webhook)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(w *Webhook) {
		if hc != nil {
			w.httpClient = hc
		}
	}
}

// WithRateLimit paces deliveries to perSecond messages with the given burst.
// A non-positive perSecond disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(w *Webhook) {
		if perSecond <= 0 {
			w.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithLogger sets the logger for delivery tracing.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Webhook) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// NewWebhook returns a Webhook posting to webhookURL.
func NewWebhook(webhookURL string, opts ...Option) *Webhook {
	w := &Webhook{
		url:        webhookURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRate), DefaultBurst),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Deliver posts message and waits for Discord to store it.
func (w *Webhook) Deliver(ctx context.Context, message string) error {
	_, err := w.Send(ctx, message)
	return err
}

// Send posts message and returns Discord's record of it. Messages longer
// than MaxContentLength are truncated.
func (w *Webhook) Send(ctx context.Context, message string) (Message, error) {
	if strings.TrimSpace(message) == "" {
		return Message{}, fmt.Errorf("discord: empty message")
	}
	if err := w.limiter.Wait(ctx); err != nil {
		return Message{}, fmt.Errorf("discord: rate limit: %w", err)
	}

	target, err := withWait(w.url)
	if err != nil {
		return Message{}, err
	}
	form := url.Values{"content": {truncate(message, MaxContentLength)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return Message{}, fmt.Errorf("discord: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return Message{}, &DeliveryError{Err: redact(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Message{}, &DeliveryError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
		}
	}

	var msg Message
	if resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil && !errors.Is(err, io.EOF) {
			w.logger.Debug("discord reply not decoded", "error", err)
		}
	}
	w.logger.Debug("message delivered", "message_id", msg.ID, "status", resp.StatusCode)
	return msg, nil
}

// withWait adds wait=true so Discord answers with the created message.
func withWait(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("discord: invalid webhook url")
	}
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// redact strips the webhook URL, which embeds its secret token, from
// transport errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", strings.ToLower(ue.Op), ue.Err)
	}
	return err
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}
