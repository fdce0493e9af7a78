package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	kafkax "github.com/ariefcatur/go-appliance-care/internal/kafka"
	"github.com/ariefcatur/go-appliance-care/internal/metrics"
	"github.com/ariefcatur/go-appliance-care/internal/redisx"
	"github.com/ariefcatur/go-appliance-care/internal/users"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// Deduper remembers which events have already been mailed.
type Deduper interface {
	// Claim returns false when id was claimed before.
	Claim(ctx context.Context, id string) (bool, error)
	Release(ctx context.Context, id string) error
}

type RedisDeduper struct {
	rdb      *redis.Client
	consumer string
}

func NewRedisDeduper(rdb *redis.Client, consumer string) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, consumer: consumer}
}

func (d *RedisDeduper) key(id string) string {
	return fmt.Sprintf(redisx.KeyDedup, d.consumer, id)
}

func (d *RedisDeduper) Claim(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, d.key(id), "1", redisx.TTLDedup).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, d.key(id)).Err()
}

type Recipients interface {
	Get(ctx context.Context, id string) (*users.User, error)
}

// MailHandler consumes notification envelopes and sends one email per
// event id.
type MailHandler struct {
	dedup  Deduper
	users  Recipients
	mailer Mailer
	log    *slog.Logger
}

func NewMailHandler(dedup Deduper, us Recipients, mailer Mailer, log *slog.Logger) *MailHandler {
	return &MailHandler{dedup: dedup, users: us, mailer: mailer, log: log.With("component", "mail-handler")}
}

// Handle is a kafka.Handler. Returning an error leaves the offset
// uncommitted so the message is retried.
func (h *MailHandler) Handle(ctx context.Context, m kafka.Message) error {
	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		h.log.Warn("skipping malformed envelope", "offset", m.Offset, "error", err)
		metrics.EmailsSent.WithLabelValues("malformed").Inc()
		return nil
	}
	if t := kafkax.HeaderValue(m, kafkax.HeaderEventType); t != "" && t != env.EventType {
		h.log.Warn("event type header mismatch", "header", t, "envelope", env.EventType)
	}
	log := h.log.With("event_id", env.EventID, "event_type", env.EventType, "trace_id", env.TraceID)

	userID := userOf(env.Payload)
	if userID == "" {
		metrics.EmailsSent.WithLabelValues("skipped").Inc()
		return nil
	}

	claimed, err := h.dedup.Claim(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup claim: %w", err)
	}
	if !claimed {
		metrics.EmailsSent.WithLabelValues("duplicate").Inc()
		return nil
	}

	if err := h.send(ctx, env, userID); err != nil {
		if rerr := h.dedup.Release(ctx, env.EventID); rerr != nil {
			log.Warn("dedup release failed", "error", rerr)
		}
		metrics.EmailsSent.WithLabelValues("failed").Inc()
		return err
	}
	return nil
}

func (h *MailHandler) send(ctx context.Context, env Envelope, userID string) error {
	u, err := h.users.Get(ctx, userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			metrics.EmailsSent.WithLabelValues("skipped").Inc()
			return nil
		}
		return err
	}
	subject, body, ok, err := Render(env, u.Name)
	if err != nil {
		h.log.Warn("skipping unrenderable event", "event_id", env.EventID, "error", err)
		metrics.EmailsSent.WithLabelValues("malformed").Inc()
		return nil
	}
	if !ok {
		metrics.EmailsSent.WithLabelValues("skipped").Inc()
		return nil
	}
	if err := h.mailer.Send(ctx, Message{To: u.Email, Subject: subject, Body: body}); err != nil {
		return err
	}
	metrics.EmailsSent.WithLabelValues("sent").Inc()
	h.log.Info("email sent", "event_id", env.EventID, "to", u.Email, "subject", subject)
	return nil
}
