package rabbitmq

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	repo "github.com/oksasatya/go-registration-form/internal/domain/repository"
)

type jsonPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// NotifyingRepository announces every successful append on the change feed.
// A failed announcement is logged; the append itself has already succeeded.
type NotifyingRepository struct {
	Next    repo.UserRepository
	Pub     jsonPublisher
	Logger  *logrus.Logger
	Timeout time.Duration
}

func NewNotifyingRepository(next repo.UserRepository, pub jsonPublisher, logger *logrus.Logger) *NotifyingRepository {
	return &NotifyingRepository{Next: next, Pub: pub, Logger: logger, Timeout: 3 * time.Second}
}

func (r *NotifyingRepository) Append(ctx context.Context, u *entity.UserRecord) error {
	if err := r.Next.Append(ctx, u); err != nil {
		return err
	}
	if r.Pub == nil {
		return nil
	}
	// Subscribers only need to know a record arrived; the password stays out
	// of the broker.
	announced := *u
	announced.Password = ""
	batch := []entity.ChangeEvent{{Kind: entity.ChangeAdded, Record: &announced}}

	c, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.Timeout)
	defer cancel()
	if err := r.Pub.PublishJSON(c, batch); err != nil && r.Logger != nil {
		r.Logger.WithError(err).WithField("user_id", u.ID).Warn("publish user change failed")
	}
	return nil
}

var _ repo.UserRepository = (*NotifyingRepository)(nil)
