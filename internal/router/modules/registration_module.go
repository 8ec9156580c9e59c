package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	handlers "github.com/oksasatya/go-registration-form/internal/interface/http"
	"github.com/oksasatya/go-registration-form/internal/interface/middleware"
)

// RegistrationModule serves the registration form.
// Pages: GET/POST /register
// API: /api/registration/..., /api/registrations/search
type RegistrationModule struct {
	Handler    *handlers.RegistrationHandler
	Redis      *redis.Client
	SubmitRate int
	Logger     *logrus.Logger
}

func NewRegistrationModule(h *handlers.RegistrationHandler, rdb *redis.Client, submitRate int, logger *logrus.Logger) *RegistrationModule {
	return &RegistrationModule{Handler: h, Redis: rdb, SubmitRate: submitRate, Logger: logger}
}

func (m *RegistrationModule) submitLimiter() gin.HandlerFunc {
	return middleware.RateLimit(m.Redis, m.SubmitRate, time.Minute, middleware.KeyByIP("registration:submit"), m.Logger)
}

func (m *RegistrationModule) Register(rg *gin.RouterGroup) {
	reg := rg.Group("/registration")
	{
		reg.GET("", m.Handler.GetForm)
		reg.PUT("/fields/:name", m.Handler.ChangeField)
		reg.POST("/fields/:name/blur", m.Handler.BlurField)
		reg.POST("/fields/:name/visibility", m.Handler.ToggleVisibility)
		reg.POST("/submit", m.submitLimiter(), m.Handler.Submit)
		reg.DELETE("/notices/:kind", m.Handler.DismissNotice)
		reg.GET("/events", m.Handler.Events)
	}

	searchLimiter := middleware.RateLimit(m.Redis, 60, time.Minute, middleware.KeyByIP("registration:search"), m.Logger)
	rg.GET("/registrations/search", searchLimiter, m.Handler.SearchUsers)
}

func (m *RegistrationModule) RegisterPages(rg *gin.RouterGroup) {
	rg.GET("/register", m.Handler.Page)
	rg.POST("/register", m.submitLimiter(), m.Handler.PostPage)
}
