package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	repo "github.com/oksasatya/go-registration-form/internal/domain/repository"
	"github.com/oksasatya/go-registration-form/pkg/field"
	"github.com/oksasatya/go-registration-form/pkg/validation"
)

// State is the controller lifecycle state.
type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateSubmitting State = "submitting"
)

const (
	submitLabel           = "Register"
	submittingSubmitLabel = "Submitting..."
)

// FormView is a render-ready snapshot of the form.
type FormView struct {
	State          State        `json:"state"`
	Fields         []field.View `json:"fields"`
	SubmitLabel    string       `json:"submitLabel"`
	SubmitDisabled bool         `json:"submitDisabled"`
	Notices        []Notice     `json:"notices"`
}

// Service is the registration form controller. It owns the single set of
// form values and the draft slot; every mutation goes through mu.
type Service struct {
	Repo     repo.UserRepository
	Drafts   *DraftStore
	Listener *LiveUpdateListener
	Logger   *logrus.Logger

	clock     Clock
	noticeTTL time.Duration
	notices   *Notices
	fields    []*field.Field
	byName    map[string]*field.Field

	mu      sync.Mutex
	state   State
	values  entity.FormValues
	errors  map[string]string
	touched map[string]bool
	mounted bool
	closed  bool
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock driving notice auto-dismissal.
func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithNoticeTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.noticeTTL = d
		}
	}
}

// NewService wires the controller. listener may be nil, in which case no live
// update notices are raised.
func NewService(repo repo.UserRepository, drafts *DraftStore, listener *LiveUpdateListener, logger *logrus.Logger, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, errors.New("user repository is required")
	}
	if drafts == nil {
		return nil, errors.New("draft store is required")
	}
	if logger == nil {
		logger = discardLogger()
	}
	s := &Service{
		Repo:      repo,
		Drafts:    drafts,
		Listener:  listener,
		Logger:    logger,
		clock:     RealClock,
		noticeTTL: DefaultNoticeTTL,
		state:     StateLoading,
		errors:    map[string]string{},
		touched:   map[string]bool{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.notices = newNotices(s.clock, s.noticeTTL, s.noticeHidden)
	s.fields = []*field.Field{
		field.New(entity.FieldFullName, "Full Name", field.TypeText),
		field.New(entity.FieldEmail, "Email Address", field.TypeText),
		field.New(entity.FieldPassword, "Password", field.TypePassword),
		field.New(entity.FieldConfirmPassword, "Confirm Password", field.TypePassword),
	}
	s.byName = make(map[string]*field.Field, len(s.fields))
	for _, f := range s.fields {
		s.byName[f.Name] = f
	}
	return s, nil
}

// Mount hydrates the form from the stored draft and starts listening for
// new records. A corrupt draft is discarded and the form starts empty.
func (s *Service) Mount(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.mounted {
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoading

	values, found, err := s.Drafts.Load(ctx)
	switch {
	case errors.Is(err, ErrDraftCorrupt):
		s.Logger.WithError(err).WithField("key", s.Drafts.Key()).Warn("discarding corrupt draft")
		if cErr := s.Drafts.Clear(ctx); cErr != nil {
			s.Logger.WithError(cErr).Warn("delete corrupt draft failed")
		}
		values = entity.FormValues{}
	case err != nil:
		s.Logger.WithError(err).Warn("draft unavailable, starting empty")
		values = entity.FormValues{}
	case found:
		s.Logger.WithField("key", s.Drafts.Key()).Debug("draft restored")
	}

	s.values = values
	s.errors = validation.Validate(values)
	s.touched = map[string]bool{}
	s.state = StateReady
	s.mounted = true
	s.mu.Unlock()

	if s.Listener != nil {
		s.Listener.Start(ctx, func() {
			if err := s.notices.Raise(NoticeNewData); err != nil {
				s.Logger.WithError(err).Warn("raise notice failed")
			}
		})
	}
	return nil
}

// Change sets one field, re-validates and schedules a draft save.
func (s *Service) Change(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if !s.values.Set(name, value) {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	s.errors = validation.Validate(s.values)
	// Saved under mu so drafts are scheduled in change order.
	s.Drafts.Save(s.values)
	return nil
}

// Blur marks a field as touched so its inline error is shown.
func (s *Service) Blur(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	if _, ok := s.byName[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	s.touched[name] = true
	return nil
}

// ToggleVisibility flips the reveal state of a secret field and returns it.
func (s *Service) ToggleVisibility(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return false, err
	}
	f, ok := s.byName[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return f.Toggle(), nil
}

// Submit validates the whole form and appends the record. Validation
// failures touch every field and return a *ValidationError without
// contacting the repository. Append failures are logged, leave values and
// draft in place and return ErrSubmission.
func (s *Service) Submit(ctx context.Context) (*entity.UserRecord, error) {
	s.mu.Lock()
	if s.state == StateSubmitting {
		s.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if err := s.editableLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.errors = validation.Validate(s.values)
	if len(s.errors) > 0 {
		for _, name := range entity.FieldNames {
			s.touched[name] = true
		}
		verr := &ValidationError{Errors: copyErrors(s.errors)}
		s.mu.Unlock()
		return nil, verr
	}
	s.state = StateSubmitting
	record := s.values.Record()
	s.mu.Unlock()

	if err := s.Repo.Append(ctx, record); err != nil {
		submissionFailures.Add(1)
		s.Logger.WithError(err).WithField("email", record.Email).Error("error adding registration record")
		s.mu.Lock()
		s.state = StateReady
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrSubmission, err)
	}
	submissionsTotal.Add(1)

	// Still submitting here, so no change can schedule a draft in between.
	if err := s.Drafts.Clear(ctx); err != nil {
		s.Logger.WithError(err).Warn("draft not deleted after submission")
	}

	s.mu.Lock()
	s.values = entity.FormValues{}
	s.errors = validation.Validate(s.values)
	s.touched = map[string]bool{}
	s.state = StateReady
	s.mu.Unlock()

	if err := s.notices.Raise(NoticeSuccess); err != nil {
		s.Logger.WithError(err).Warn("raise notice failed")
	}
	s.Logger.WithFields(logrus.Fields{"id": record.ID, "email": record.Email}).Info("registration submitted")
	return record, nil
}

// DismissNotice hides a notice. Form values are never affected.
func (s *Service) DismissNotice(kind NoticeKind) error {
	return s.notices.Dismiss(kind)
}

// WatchNotices streams the visible notices after every change.
func (s *Service) WatchNotices() (<-chan []Notice, func()) {
	return s.notices.Watch()
}

// State returns the lifecycle state.
func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Values returns a copy of the current form values.
func (s *Service) Values() entity.FormValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values
}

// View renders the form. Errors are shown for touched fields only.
func (s *Service) View() FormView {
	s.mu.Lock()
	defer s.mu.Unlock()

	submitting := s.state == StateSubmitting
	views := make([]field.View, 0, len(s.fields))
	for _, f := range s.fields {
		value, _ := s.values.Get(f.Name)
		props := field.Props{Value: value, Disabled: submitting}
		if s.touched[f.Name] {
			props.HelperText = s.errors[f.Name]
			props.Error = props.HelperText != ""
		}
		views = append(views, f.Render(props))
	}

	label := submitLabel
	if submitting {
		label = submittingSubmitLabel
	}
	return FormView{
		State:          s.state,
		Fields:         views,
		SubmitLabel:    label,
		SubmitDisabled: submitting || s.state == StateLoading,
		Notices:        s.notices.Visible(),
	}
}

// Close tears the controller down: the subscription is released and a
// pending draft write is flushed. Later calls are no-ops.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.Listener != nil {
		_ = s.Listener.Close()
	}
	err := s.Drafts.Close(ctx)
	s.notices.Close()
	return err
}

func (s *Service) editableLocked() error {
	switch {
	case s.closed:
		return ErrClosed
	case !s.mounted:
		return ErrNotMounted
	case s.state == StateSubmitting:
		return ErrFormDisabled
	}
	return nil
}

func (s *Service) noticeHidden(kind NoticeKind) {
	if kind == NoticeNewData && s.Listener != nil {
		s.Listener.Clear()
	}
}

func copyErrors(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
