package handlers

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/render"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-registration-form/internal/application"
	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	"github.com/oksasatya/go-registration-form/internal/infrastructure/search"
	"github.com/oksasatya/go-registration-form/pkg/field"
	"github.com/oksasatya/go-registration-form/pkg/response"
	"github.com/oksasatya/go-registration-form/pkg/validation"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templatesFS, "templates/*.tmpl"))

// UserSearcher queries appended registrations.
type UserSearcher interface {
	Search(ctx context.Context, q string, size int) ([]search.Hit, error)
}

type RegistrationHandler struct {
	Svc    *application.Service
	Search UserSearcher
	Logger *logrus.Logger
}

func NewRegistrationHandler(svc *application.Service, searcher UserSearcher, logger *logrus.Logger) *RegistrationHandler {
	return &RegistrationHandler{Svc: svc, Search: searcher, Logger: logger}
}

type changeFieldRequest struct {
	Value *string `json:"value" binding:"required"`
}

type submittedRecord struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type pageData struct {
	Form    application.FormView
	Failure string
}

// publicView blanks secret values; JSON clients share the one form and never
// get the password back.
func publicView(v application.FormView) application.FormView {
	fields := make([]field.View, len(v.Fields))
	for i, fv := range v.Fields {
		if fv.Secret {
			fv.Value = ""
		}
		fields[i] = fv
	}
	v.Fields = fields
	return v
}

func toSubmitted(rec *entity.UserRecord) submittedRecord {
	return submittedRecord{ID: rec.ID, FullName: rec.FullName, Email: rec.Email, CreatedAt: rec.CreatedAt}
}

// Page renders the HTML form.
func (h *RegistrationHandler) Page(c *gin.Context) {
	h.renderPage(c, http.StatusOK, "")
}

// PostPage handles a classic form post: every field is applied, then the
// form is submitted. Success redirects back to the page.
func (h *RegistrationHandler) PostPage(c *gin.Context) {
	for _, name := range entity.FieldNames {
		value, ok := c.GetPostForm(name)
		if !ok {
			continue
		}
		if err := h.Svc.Change(name, value); err != nil {
			h.renderPage(c, statusFor(err), messageFor(err))
			return
		}
	}
	if _, err := h.Svc.Submit(c.Request.Context()); err != nil {
		h.renderPage(c, statusFor(err), messageFor(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/register")
}

func (h *RegistrationHandler) renderPage(c *gin.Context, status int, failure string) {
	// Validation messages are shown inline next to each field.
	if status == http.StatusUnprocessableEntity {
		failure = ""
	}
	c.Render(status, render.HTML{
		Template: pageTemplate,
		Name:     "register",
		Data:     pageData{Form: publicView(h.Svc.View()), Failure: failure},
	})
}

func (h *RegistrationHandler) GetForm(c *gin.Context) {
	response.Success(c, http.StatusOK, publicView(h.Svc.View()), "registration form", nil)
}

func (h *RegistrationHandler) ChangeField(c *gin.Context) {
	var req changeFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if err := h.Svc.Change(c.Param("name"), *req.Value); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, publicView(h.Svc.View()), "field updated", nil)
}

func (h *RegistrationHandler) BlurField(c *gin.Context) {
	if err := h.Svc.Blur(c.Param("name")); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, publicView(h.Svc.View()), "field touched", nil)
}

func (h *RegistrationHandler) ToggleVisibility(c *gin.Context) {
	revealed, err := h.Svc.ToggleVisibility(c.Param("name"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"revealed": revealed}, "visibility toggled", nil)
}

func (h *RegistrationHandler) Submit(c *gin.Context) {
	rec, err := h.Svc.Submit(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, toSubmitted(rec), "Registration successful!", nil)
}

func (h *RegistrationHandler) DismissNotice(c *gin.Context) {
	if err := h.Svc.DismissNotice(application.NoticeKind(c.Param("kind"))); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, h.Svc.View().Notices, "notice dismissed", nil)
}

// Events streams the visible notices as server-sent events.
func (h *RegistrationHandler) Events(c *gin.Context) {
	updates, stop := h.Svc.WatchNotices()
	defer stop()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case notices, ok := <-updates:
			if !ok {
				return false
			}
			c.SSEvent("notices", notices)
			return true
		case <-ctx.Done():
			return false
		}
	})
}

func (h *RegistrationHandler) SearchUsers(c *gin.Context) {
	q := c.Query("q")
	if q == "" {
		response.Error[any](c, http.StatusBadRequest, "missing query", map[string]string{"q": "is required"})
		return
	}
	if h.Search == nil {
		response.Success(c, http.StatusOK, []search.Hit{}, "search results", map[string]any{"count": 0})
		return
	}
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	hits, err := h.Search.Search(c.Request.Context(), q, size)
	if err != nil {
		h.Logger.WithError(err).Warn("user search failed")
		response.Error[any](c, http.StatusBadGateway, "search unavailable", nil)
		return
	}
	response.Success(c, http.StatusOK, hits, "search results", map[string]any{"count": len(hits)})
}

func (h *RegistrationHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	var verr *application.ValidationError
	if errors.As(err, &verr) {
		response.Error[any](c, status, "validation failed", verr.Errors)
		return
	}
	if status >= http.StatusInternalServerError {
		h.Logger.WithError(err).WithField("request_id", c.GetString("request_id")).Error("registration request failed")
	}
	response.Error[any](c, status, messageFor(err), nil)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, application.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, application.ErrUnknownField), errors.Is(err, application.ErrUnknownNotice):
		return http.StatusNotFound
	case errors.Is(err, application.ErrFormDisabled), errors.Is(err, application.ErrSubmitInProgress):
		return http.StatusConflict
	case errors.Is(err, application.ErrNotMounted), errors.Is(err, application.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, application.ErrSubmission):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func messageFor(err error) string {
	switch {
	case errors.Is(err, application.ErrValidation):
		return "validation failed"
	case errors.Is(err, application.ErrSubmission):
		return "registration could not be saved, please try again"
	case errors.Is(err, application.ErrUnknownField):
		return "unknown field"
	case errors.Is(err, application.ErrUnknownNotice):
		return "unknown notice"
	case errors.Is(err, application.ErrFormDisabled), errors.Is(err, application.ErrSubmitInProgress):
		return "submission in progress"
	case errors.Is(err, application.ErrNotMounted), errors.Is(err, application.ErrClosed):
		return "form unavailable"
	}
	return "internal error"
}
