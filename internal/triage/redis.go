package triage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "triagem:ficha:"

// redisStore keeps each record as one JSON blob, keyed by session id.
// No TTL: the triage outcome must stay readable for the physician.
type redisStore struct {
	client *redis.Client
}

// NewRedisStore builds the Redis-backed store.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (s *redisStore) Create(ctx context.Context, rec *IntakeRecord) error {
	return s.Save(ctx, rec)
}

func (s *redisStore) Get(ctx context.Context, sessionID string) (*IntakeRecord, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+sessionID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrSessionNotFound
		}
		return nil, errors.Wrap(err, "get ficha from redis")
	}

	var rec IntakeRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, errors.Wrap(err, "unmarshal ficha")
	}
	return &rec, nil
}

func (s *redisStore) Save(ctx context.Context, rec *IntakeRecord) error {
	rec.UpdatedAt = time.Now()
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, "marshal ficha")
	}
	if err := s.client.Set(ctx, redisKeyPrefix+rec.ID.String(), data, 0).Err(); err != nil {
		return errors.Wrap(err, "save ficha to redis")
	}
	return nil
}
