package container

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-registration-form/config"
	pginfra "github.com/oksasatya/go-registration-form/internal/infrastructure/postgres"
	"github.com/oksasatya/go-registration-form/internal/infrastructure/rabbitmq"
	"github.com/oksasatya/go-registration-form/pkg/helpers"
)

// Options selects the optional parts of Init.
type Options struct {
	Migrate bool
}

// Init connects every backing service and stores it in the container.
// Postgres is required; Redis, RabbitMQ and Elasticsearch are skipped with a
// warning when unavailable. The returned func releases what was opened.
func Init(ctx context.Context, c *config.Config, l *logrus.Logger, opts Options) (func(), error) {
	SetConfig(c)
	SetLogger(l)
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pool, err := pginfra.NewPool(ctx, c.PostgresDSN(), pginfra.PoolConfig{
		MaxConns:    c.DBMaxConns,
		MinConns:    c.DBMinConns,
		MaxConnLife: c.DBMaxConnLife,
	})
	if err != nil {
		return cleanup, fmt.Errorf("connect postgres: %w", err)
	}
	closers = append(closers, pool.Close)
	SetPGPool(pool)

	if opts.Migrate {
		if err := pginfra.Migrate(c.PostgresDSN(), c.MigrationsDir, l); err != nil {
			return cleanup, fmt.Errorf("migrate: %w", err)
		}
	}

	if c.RedisAddr != "" {
		rdb := helpers.NewRedisClient(c.RedisAddr, c.RedisPassword, c.RedisDB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			l.WithError(err).Warn("redis unavailable, drafts stay in memory")
			_ = rdb.Close()
		} else {
			closers = append(closers, func() { _ = rdb.Close() })
			SetRedis(rdb)
		}
	}

	if c.RabbitMQURL != "" {
		pub, err := rabbitmq.NewPublisher(c.RabbitMQURL, c.RabbitMQUsersExchange)
		if err != nil {
			l.WithError(err).Warn("rabbitmq unavailable, user changes are not announced")
		} else {
			closers = append(closers, pub.Close)
			SetRabbitPub(pub)
		}
	}

	if addrs := c.ESAddrs(); len(addrs) > 0 {
		es, err := helpers.NewESClient(addrs, c.ElasticsearchUser, c.ElasticsearchPass)
		if err != nil {
			l.WithError(err).Warn("elasticsearch client init failed, search disabled")
		} else {
			SetES(es)
		}
	}
	return cleanup, nil
}
