package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-appliance-care/internal/apperr"
	"github.com/ariefcatur/go-appliance-care/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps only the latest location per booking; it expires after
// redisx.TTLTechLocation without updates.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Save(ctx context.Context, loc Location) error {
	b, err := json.Marshal(loc)
	if err != nil {
		return err
	}
	key := fmt.Sprintf(redisx.KeyTechLocation, loc.BookingID)
	if err := s.rdb.Set(ctx, key, b, redisx.TTLTechLocation).Err(); err != nil {
		return apperr.Upstream("location store unavailable", err)
	}
	return nil
}

func (s *RedisStore) Last(ctx context.Context, bookingID string) (*Location, error) {
	raw, err := s.rdb.Get(ctx, fmt.Sprintf(redisx.KeyTechLocation, bookingID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoLocation
	}
	if err != nil {
		return nil, apperr.Upstream("location store unavailable", err)
	}
	var loc Location
	if err := json.Unmarshal(raw, &loc); err != nil {
		return nil, fmt.Errorf("decode location: %w", err)
	}
	return &loc, nil
}
