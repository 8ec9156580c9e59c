package container

import (
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-registration-form/config"
	repo "github.com/oksasatya/go-registration-form/internal/domain/repository"
	pginfra "github.com/oksasatya/go-registration-form/internal/infrastructure/postgres"
	"github.com/oksasatya/go-registration-form/internal/infrastructure/rabbitmq"
	"github.com/oksasatya/go-registration-form/internal/infrastructure/search"
)

// app-level container to share constructed components across packages.
// Router modules and commands wire themselves from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	pgPool      *pgxpool.Pool
	redisClient *redis.Client
	rabbitPub   *rabbitmq.Publisher
	esClient    *elasticsearch.Client
)

func SetConfig(c *config.Config)         { cfg = c }
func GetConfig() *config.Config          { return cfg }
func SetLogger(l *logrus.Logger)         { logger = l }
func GetLogger() *logrus.Logger          { return logger }
func SetPGPool(p *pgxpool.Pool)          { pgPool = p }
func GetPGPool() *pgxpool.Pool           { return pgPool }
func SetRedis(r *redis.Client)           { redisClient = r }
func GetRedis() *redis.Client            { return redisClient }
func SetRabbitPub(p *rabbitmq.Publisher) { rabbitPub = p }
func GetRabbitPub() *rabbitmq.Publisher  { return rabbitPub }
func SetES(c *elasticsearch.Client)      { esClient = c }
func GetES() *elasticsearch.Client       { return esClient }

// GetUserIndex returns the Elasticsearch view of the users collection. It is
// inert when no client is configured.
func GetUserIndex() *search.UserIndex {
	return search.NewUserIndex(GetES(), cfg.ESUsersIndex, logger)
}

// GetUserRepository builds the append chain: Postgres, then the search
// index, then the change-feed announcement.
func GetUserRepository() repo.UserRepository {
	var r repo.UserRepository = pginfra.NewUserRepository(GetPGPool())
	if GetES() != nil {
		r = search.NewIndexingRepository(r, GetUserIndex())
	}
	if pub := GetRabbitPub(); pub != nil {
		r = rabbitmq.NewNotifyingRepository(r, pub, logger)
	}
	return r
}

// GetChangeFeed returns the users change feed, or nil when RabbitMQ is not
// configured.
func GetChangeFeed() repo.ChangeFeed {
	if cfg == nil || cfg.RabbitMQURL == "" {
		return nil
	}
	return rabbitmq.NewChangeFeed(cfg.RabbitMQURL, cfg.RabbitMQUsersExchange, logger)
}
