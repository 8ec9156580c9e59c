package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-registration-form/internal/application"
	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	"github.com/oksasatya/go-registration-form/internal/domain/repository"
	"github.com/oksasatya/go-registration-form/internal/infrastructure/memory"
	"github.com/oksasatya/go-registration-form/internal/infrastructure/search"
	"github.com/oksasatya/go-registration-form/internal/interface/middleware"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Status  int             `json:"status"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type stubSearcher struct {
	hits []search.Hit
	err  error
}

func (s stubSearcher) Search(context.Context, string, int) ([]search.Hit, error) {
	return s.hits, s.err
}

type brokenRepo struct{}

func (brokenRepo) Append(context.Context, *entity.UserRecord) error {
	return errors.New("connection refused")
}

type fixture struct {
	router  *gin.Engine
	svc     *application.Service
	users   *memory.UserRepository
	storage *memory.DraftStorage
}

func newFixture(t *testing.T, repo repository.UserRepository) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	users := memory.NewUserRepository(nil)
	if repo == nil {
		repo = users
	}
	storage := memory.NewDraftStorage()
	drafts, err := application.NewDraftStore(storage, "")
	require.NoError(t, err)
	svc, err := application.NewService(repo, drafts, nil, logger)
	require.NoError(t, err)
	require.NoError(t, svc.Mount(context.Background()))
	t.Cleanup(func() { _ = svc.Close(context.Background()) })

	h := NewRegistrationHandler(svc, stubSearcher{hits: []search.Hit{{ID: "1", FullName: "Ada Lovelace", Email: "ada@example.com"}}}, logger)
	r := gin.New()
	r.Use(middleware.RequestIDMiddleware())
	r.GET("/register", h.Page)
	r.POST("/register", h.PostPage)
	api := r.Group("/api")
	api.GET("/registration", h.GetForm)
	api.PUT("/registration/fields/:name", h.ChangeField)
	api.POST("/registration/fields/:name/blur", h.BlurField)
	api.POST("/registration/fields/:name/visibility", h.ToggleVisibility)
	api.POST("/registration/submit", h.Submit)
	api.DELETE("/registration/notices/:kind", h.DismissNotice)
	api.GET("/registration/events", h.Events)
	api.GET("/registrations/search", h.SearchUsers)
	return &fixture{router: r, svc: svc, users: users, storage: storage}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func (f *fixture) fill(t *testing.T, v entity.FormValues) {
	t.Helper()
	for _, name := range entity.FieldNames {
		value, _ := v.Get(name)
		b, _ := json.Marshal(map[string]string{"value": value})
		w, _ := f.do(t, http.MethodPut, "/api/registration/fields/"+name, string(b))
		require.Equal(t, http.StatusOK, w.Code, name)
	}
}

var ada = entity.FormValues{FullName: "Ada Lovelace", Email: "ada@example.com", Password: "Secret1!", ConfirmPassword: "Secret1!"}

func TestGetForm(t *testing.T) {
	f := newFixture(t, nil)
	w, env := f.do(t, http.MethodGet, "/api/registration", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var view application.FormView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, application.StateReady, view.State)
	assert.Len(t, view.Fields, 4)
	assert.Equal(t, "Register", view.SubmitLabel)
}

func TestSecretValuesStayOnServer(t *testing.T) {
	f := newFixture(t, nil)
	f.fill(t, ada)

	for _, req := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/registration", ""},
		{http.MethodPut, "/api/registration/fields/password", `{"value":"Secret1!"}`},
		{http.MethodPost, "/api/registration/fields/confirmPassword/blur", ""},
		{http.MethodGet, "/register", ""},
	} {
		w, _ := f.do(t, req.method, req.path, req.body)
		require.Equal(t, http.StatusOK, w.Code, req.path)
		assert.NotContains(t, w.Body.String(), "Secret1!", req.method+" "+req.path)
		assert.Contains(t, w.Body.String(), "ada@example.com", req.method+" "+req.path)
	}

	// The controller keeps the values for submission.
	assert.Equal(t, "Secret1!", f.svc.Values().Password)
	w, _ := f.do(t, http.MethodPost, "/api/registration/submit", "")
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, f.users.Records(), 1)
	assert.Equal(t, "Secret1!", f.users.Records()[0].Password)
}

func TestPage_SecretFieldsHaveToggleButton(t *testing.T) {
	f := newFixture(t, nil)

	w, _ := f.do(t, http.MethodGet, "/register", "")
	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	assert.Equal(t, 2, strings.Count(page, `<button type="button"`))
	assert.Contains(t, page, `data-field="password"`)
	assert.Contains(t, page, `data-field="confirmPassword"`)
	assert.NotContains(t, page, `data-field="fullName"`)
	assert.NotContains(t, page, `data-field="email"`)
	assert.Contains(t, page, `id="password" name="password" type="password"`)

	w, _ = f.do(t, http.MethodPost, "/api/registration/fields/password/visibility", "")
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = f.do(t, http.MethodGet, "/register", "")
	page = w.Body.String()
	assert.Contains(t, page, `id="password" name="password" type="text"`)
	assert.Contains(t, page, `id="confirmPassword" name="confirmPassword" type="password"`)
	assert.Contains(t, page, `aria-pressed="true"`)
}

func TestChangeField_Errors(t *testing.T) {
	f := newFixture(t, nil)

	w, _ := f.do(t, http.MethodPut, "/api/registration/fields/email", `{"value":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/registration/fields/email", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/registration/fields/nickname", `{"value":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, _ = f.do(t, http.MethodPut, "/api/registration/fields/email", `{"value":""}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBlurShowsInlineError(t *testing.T) {
	f := newFixture(t, nil)
	f.fill(t, entity.FormValues{Email: "not-an-address"})

	w, env := f.do(t, http.MethodPost, "/api/registration/fields/email/blur", "")
	require.Equal(t, http.StatusOK, w.Code)
	var view application.FormView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	for _, fv := range view.Fields {
		if fv.Name == entity.FieldEmail {
			assert.True(t, fv.Error)
			assert.Equal(t, "Invalid email address", fv.HelperText)
		}
	}
}

func TestToggleVisibility(t *testing.T) {
	f := newFixture(t, nil)
	w, env := f.do(t, http.MethodPost, "/api/registration/fields/password/visibility", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"revealed":true}`, string(env.Data))
}

func TestSubmit_ValidationErrors(t *testing.T) {
	f := newFixture(t, nil)
	v := ada
	v.ConfirmPassword = "Secret1?"
	f.fill(t, v)

	w, env := f.do(t, http.MethodPost, "/api/registration/submit", "")
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.False(t, env.Success)
	assert.JSONEq(t, `{"confirmPassword":"Passwords must match"}`, string(env.Error))
	assert.Empty(t, f.users.Records())
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t, nil)
	f.fill(t, ada)

	w, env := f.do(t, http.MethodPost, "/api/registration/submit", "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Registration successful!", env.Message)
	assert.NotContains(t, string(env.Data), "Secret1!")

	records := f.users.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "Secret1!", records[0].Password)

	_, env = f.do(t, http.MethodGet, "/api/registration", "")
	var view application.FormView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	for _, fv := range view.Fields {
		assert.Empty(t, fv.Value, fv.Name)
	}
	require.Len(t, view.Notices, 1)
	assert.Equal(t, application.NoticeSuccess, view.Notices[0].Kind)

	w, _ = f.do(t, http.MethodDelete, "/api/registration/notices/success", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.svc.View().Notices)
}

func TestSubmit_RemoteFailure(t *testing.T) {
	f := newFixture(t, brokenRepo{})
	f.fill(t, ada)

	w, env := f.do(t, http.MethodPost, "/api/registration/submit", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "registration could not be saved, please try again", env.Message)
	assert.Equal(t, ada, f.svc.Values())
}

func TestDismissUnknownNotice(t *testing.T) {
	f := newFixture(t, nil)
	w, _ := f.do(t, http.MethodDelete, "/api/registration/notices/banner", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPage_FormPostFlow(t *testing.T) {
	f := newFixture(t, nil)

	w, _ := f.do(t, http.MethodGet, "/register", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="confirmPassword"`)
	assert.Contains(t, w.Body.String(), "Full Name")

	form := url.Values{}
	form.Set("fullName", "Ada 2")
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Full Name should not contain numbers or special characters")

	form = url.Values{}
	for _, name := range entity.FieldNames {
		value, _ := ada.Get(name)
		form.Set(name, value)
	}
	req = httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/register", w.Header().Get("Location"))

	w, _ = f.do(t, http.MethodGet, "/register", "")
	assert.Contains(t, w.Body.String(), "Registration successful!")
	assert.NotContains(t, w.Body.String(), "Secret1!")
}

func TestSearchUsers(t *testing.T) {
	f := newFixture(t, nil)

	w, _ := f.do(t, http.MethodGet, "/api/registrations/search", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env := f.do(t, http.MethodGet, "/api/registrations/search?q=ada", "")
	require.Equal(t, http.StatusOK, w.Code)
	var hits []search.Hit
	require.NoError(t, json.Unmarshal(env.Data, &hits))
	require.Len(t, hits, 1)
	assert.Equal(t, "ada@example.com", hits[0].Email)
}

func TestEvents_StreamsNotices(t *testing.T) {
	f := newFixture(t, nil)
	srv := httptest.NewServer(f.router)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/registration/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	nextData := func() string {
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data:"); ok {
				return data
			}
		}
		return ""
	}
	assert.Equal(t, "[]", nextData())

	f.fill(t, ada)
	_, err = f.svc.Submit(context.Background())
	require.NoError(t, err)
	assert.Contains(t, nextData(), "Registration successful!")
}
