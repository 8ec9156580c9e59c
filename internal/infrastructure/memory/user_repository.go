package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
)

// UserRepository is an append-only in-memory users collection. When a feed
// is attached, every append is published as an added batch.
type UserRepository struct {
	mu      sync.Mutex
	records []entity.UserRecord
	feed    *ChangeFeed
}

func NewUserRepository(feed *ChangeFeed) *UserRepository {
	return &UserRepository{feed: feed}
}

func (r *UserRepository) Append(ctx context.Context, rec *entity.UserRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	r.records = append(r.records, *rec)
	r.mu.Unlock()

	if r.feed != nil {
		cp := *rec
		r.feed.Publish([]entity.ChangeEvent{{Kind: entity.ChangeAdded, Record: &cp}})
	}
	return nil
}

// Records returns a copy of every stored record in append order.
func (r *UserRepository) Records() []entity.UserRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.UserRecord, len(r.records))
	copy(out, r.records)
	return out
}
