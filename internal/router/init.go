package router

import (
	"github.com/oksasatya/go-registration-form/internal/application"
	"github.com/oksasatya/go-registration-form/internal/container"
	repo "github.com/oksasatya/go-registration-form/internal/domain/repository"
	"github.com/oksasatya/go-registration-form/internal/infrastructure/memory"
	redisinfra "github.com/oksasatya/go-registration-form/internal/infrastructure/redis"
	handlers "github.com/oksasatya/go-registration-form/internal/interface/http"
	"github.com/oksasatya/go-registration-form/internal/router/modules"
)

type RegistrationModuleDeps struct {
	Repo    repo.UserRepository
	Service *application.Service
	Handler *handlers.RegistrationHandler
}

// BuildRegistrationService wires the form controller from the container.
// Drafts go to Redis when it is configured and stay in memory otherwise.
func BuildRegistrationService(users repo.UserRepository) (*application.Service, error) {
	cfg := container.GetConfig()
	logger := container.GetLogger()

	var storage repo.DraftStorage = memory.NewDraftStorage()
	if rdb := container.GetRedis(); rdb != nil {
		storage = redisinfra.NewDraftStorage(rdb, cfg.DraftTTL)
	}
	drafts, err := application.NewDraftStore(storage, cfg.DraftKey,
		application.WithDebounce(cfg.DraftDebounce),
		application.WithDraftWriteTimeout(cfg.DraftWriteTimeout),
		application.WithDraftLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	var listener *application.LiveUpdateListener
	if feed := container.GetChangeFeed(); feed != nil {
		listener, err = application.NewLiveUpdateListener(feed,
			application.WithListenerLogger(logger),
			application.WithRetryPolicy(cfg.SubscriptionMaxRetries, cfg.SubscriptionRetryInterval),
		)
		if err != nil {
			return nil, err
		}
	}

	return application.NewService(users, drafts, listener, logger, application.WithNoticeTTL(cfg.NoticeTTL))
}

func buildRegistrationDeps() (RegistrationModuleDeps, error) {
	users := container.GetUserRepository()
	service, err := BuildRegistrationService(users)
	if err != nil {
		return RegistrationModuleDeps{}, err
	}
	handler := handlers.NewRegistrationHandler(service, container.GetUserIndex(), container.GetLogger())
	return RegistrationModuleDeps{Repo: users, Service: service, Handler: handler}, nil
}

// InitModules initializes all application modules and registers them with the router registry.
// The returned service must be mounted before serving and closed on shutdown.
func InitModules(r *Registry) (*application.Service, error) {
	deps, err := buildRegistrationDeps()
	if err != nil {
		return nil, err
	}
	cfg := container.GetConfig()
	r.Add(modules.NewRegistrationModule(deps.Handler, container.GetRedis(), cfg.SubmitRateLimit, container.GetLogger()))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule(container.GetRedis()))
	}
	return deps.Service, nil
}
