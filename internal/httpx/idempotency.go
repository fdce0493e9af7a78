package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-appliance-care/internal/redisx"
	"github.com/redis/go-redis/v9"
)

const (
	headerIdempotencyKey = "Idempotency-Key"
	headerReplayed       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
)

// StoredResponse is the replayable part of a handled request.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// IdempotencyStore keeps one response per (user, key) pair. Lock guards
// the window between the first request starting and its response being
// saved.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Lock(ctx context.Context, key string) (bool, error)
	Save(ctx context.Context, key string, resp StoredResponse) error
	Unlock(ctx context.Context, key string) error
}

type RedisIdempotencyStore struct {
	rdb *redis.Client
}

func NewRedisIdempotencyStore(rdb *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb}
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*StoredResponse, error) {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var resp StoredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &resp, nil
}

func (s *RedisIdempotencyStore) Lock(ctx context.Context, key string) (bool, error) {
	return s.rdb.SetNX(ctx, key+":lock", "1", redisx.TTLIdempotencyLock).Result()
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, resp StoredResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, raw, redisx.TTLIdempotency).Err()
}

func (s *RedisIdempotencyStore) Unlock(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key+":lock").Err()
}

type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.buf.Write(b)
	return c.ResponseWriter.Write(b)
}

// idempotent replays the stored response for a repeated Idempotency-Key.
// Requests without the header pass straight through, and so does every
// request while the store is unreachable.
func idempotent(store IdempotencyStore, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := r.Header.Get(headerIdempotencyKey)
			if store == nil || raw == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(raw) > maxIdempotencyKeyLen {
				fail(w, http.StatusBadRequest, "Idempotency-Key is too long")
				return
			}
			ctx := r.Context()
			key := fmt.Sprintf(redisx.KeyIdempotency, identity(r).UserID, r.Method+" "+r.URL.Path+" "+raw)

			stored, err := store.Get(ctx, key)
			if err != nil {
				log.Warn("idempotency lookup failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if stored != nil {
				w.Header().Set("Content-Type", stored.ContentType)
				w.Header().Set(headerReplayed, "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			locked, err := store.Lock(ctx, key)
			if err != nil {
				log.Warn("idempotency lock failed", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !locked {
				fail(w, http.StatusConflict, "a request with this Idempotency-Key is still in progress")
				return
			}
			bg := context.WithoutCancel(ctx)
			defer func() {
				if err := store.Unlock(bg, key); err != nil {
					log.Warn("idempotency unlock failed", "error", err)
				}
			}()

			cw := &captureWriter{ResponseWriter: w}
			next.ServeHTTP(cw, r)

			// server errors are left retryable
			if cw.status == 0 || cw.status >= http.StatusInternalServerError {
				return
			}
			resp := StoredResponse{Status: cw.status, ContentType: cw.Header().Get("Content-Type"), Body: cw.buf.Bytes()}
			if err := store.Save(bg, key, resp); err != nil {
				log.Warn("idempotency save failed", "error", err)
			}
		})
	}
}
