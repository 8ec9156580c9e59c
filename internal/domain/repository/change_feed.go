package repository

import (
	"context"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
)

// ChangeHandler receives one batch of change events.
type ChangeHandler func(batch []entity.ChangeEvent)

// ChangeFeed delivers batches of changes made to the "users" collection by
// any client.
type ChangeFeed interface {
	Subscribe(ctx context.Context, handler ChangeHandler) (Subscription, error)
}

// Subscription is a standing change-feed subscription. It must be closed.
type Subscription interface {
	// Done is closed when the subscription ends; Err then reports why
	// (nil after Close).
	Done() <-chan struct{}
	Err() error
	Close() error
}
