package redis

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	repo "github.com/oksasatya/go-registration-form/internal/domain/repository"
)

// DraftStorage keeps drafts as plain string values. A zero ttl keeps them
// until deleted.
type DraftStorage struct {
	rdb *goredis.Client
	ttl time.Duration
}

func NewDraftStorage(rdb *goredis.Client, ttl time.Duration) *DraftStorage {
	return &DraftStorage{rdb: rdb, ttl: ttl}
}

func (s *DraftStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *DraftStorage) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, key, value, s.ttl).Err()
}

func (s *DraftStorage) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

var _ repo.DraftStorage = (*DraftStorage)(nil)
