package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SignatureHeader carries the hex HMAC-SHA256 of the delivery body,
// keyed with the endpoint secret.
const SignatureHeader = "X-Meridian-Signature"

const dedupeTTL = 24 * time.Hour

// Delivery is one event envelope bound for one endpoint.
type Delivery struct {
	ID         uuid.UUID       `json:"id"`
	EndpointID int64           `json:"endpoint_id"`
	Event      string          `json:"event"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// Dispatcher POSTs event envelopes to registered endpoints. Delivery is
// best-effort and at-least-once; a Redis marker suppresses duplicate
// sends when the queue redelivers an already-completed task.
type Dispatcher struct {
	repo   *Repository
	redis  *redis.Client
	client *http.Client
	logger *slog.Logger
}

// NewDispatcher constructs a dispatcher with the given POST timeout.
func NewDispatcher(repo *Repository, rdb *redis.Client, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		repo:   repo,
		redis:  rdb,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Deliver sends one delivery to its endpoint. A nil error means the
// receiver acknowledged with a 2xx or the delivery was already sent.
func (d *Dispatcher) Deliver(ctx context.Context, delivery Delivery) error {
	endpoint, err := d.repo.Get(ctx, delivery.EndpointID)
	if err != nil {
		return fmt.Errorf("webhooks: deliver %s: %w", delivery.ID, err)
	}
	if !endpoint.Subscribed(delivery.Event) {
		d.logger.Info("webhook delivery skipped",
			slog.String("delivery", delivery.ID.String()),
			slog.Int64("endpoint", endpoint.ID),
			slog.String("event", delivery.Event))
		return nil
	}

	fresh, err := d.markOnce(ctx, delivery)
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}

	body, err := json.Marshal(delivery)
	if err != nil {
		return fmt.Errorf("webhooks: deliver %s: %w", delivery.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhooks: deliver %s: %w", delivery.ID, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, Sign(endpoint.Secret(), body))

	resp, err := d.client.Do(req)
	if err != nil {
		d.unmark(ctx, delivery)
		return fmt.Errorf("webhooks: deliver %s: %w", delivery.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.unmark(ctx, delivery)
		return fmt.Errorf("webhooks: deliver %s: endpoint returned %d", delivery.ID, resp.StatusCode)
	}

	d.logger.Info("webhook delivered",
		slog.String("delivery", delivery.ID.String()),
		slog.Int64("endpoint", endpoint.ID),
		slog.String("event", delivery.Event))
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (d *Dispatcher) markOnce(ctx context.Context, delivery Delivery) (bool, error) {
	key := dedupeKey(delivery)
	ok, err := d.redis.SetNX(ctx, key, "1", dedupeTTL).Result()
	if err != nil {
		return false, fmt.Errorf("webhooks: dedupe %s: %w", delivery.ID, err)
	}
	return ok, nil
}

func (d *Dispatcher) unmark(ctx context.Context, delivery Delivery) {
	if err := d.redis.Del(ctx, dedupeKey(delivery)).Err(); err != nil {
		d.logger.Warn("webhook dedupe cleanup failed",
			slog.String("delivery", delivery.ID.String()),
			slog.Any("error", err))
	}
}

func dedupeKey(delivery Delivery) string {
	return fmt.Sprintf("webhook:sent:%s:%d", delivery.ID, delivery.EndpointID)
}
