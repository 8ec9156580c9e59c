package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	repo "github.com/oksasatya/go-registration-form/internal/domain/repository"
)

const (
	DefaultDraftKey          = "userRegistrationDraft"
	DefaultDraftDebounce     = 500 * time.Millisecond
	defaultDraftWriteTimeout = 3 * time.Second
)

// DraftStore persists the in-progress form under a single fixed key. Saves
// are debounced: a burst of calls inside the quiescence window results in one
// write of the latest value.
type DraftStore struct {
	storage      repo.DraftStorage
	key          string
	debounce     time.Duration
	writeTimeout time.Duration
	clock        Clock
	logger       *logrus.Logger

	// wmu serialises storage writes and deletes so a timer write can never
	// land after a Clear.
	wmu sync.Mutex

	mu      sync.Mutex
	pending *entity.FormValues
	timer   Timer
	token   uint64
	closed  bool
}

// DraftOption configures a DraftStore.
type DraftOption func(*DraftStore)

func WithDebounce(d time.Duration) DraftOption {
	return func(s *DraftStore) {
		if d > 0 {
			s.debounce = d
		}
	}
}

func WithDraftWriteTimeout(d time.Duration) DraftOption {
	return func(s *DraftStore) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

func WithDraftClock(c Clock) DraftOption {
	return func(s *DraftStore) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithDraftLogger(l *logrus.Logger) DraftOption {
	return func(s *DraftStore) {
		if l != nil {
			s.logger = l
		}
	}
}

func NewDraftStore(storage repo.DraftStorage, key string, opts ...DraftOption) (*DraftStore, error) {
	if storage == nil {
		return nil, errors.New("draft storage is required")
	}
	if key == "" {
		key = DefaultDraftKey
	}
	s := &DraftStore{
		storage:      storage,
		key:          key,
		debounce:     DefaultDraftDebounce,
		writeTimeout: defaultDraftWriteTimeout,
		clock:        RealClock,
		logger:       discardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Key returns the storage key of the draft slot.
func (s *DraftStore) Key() string { return s.key }

// Load reads the draft. found is false when no draft is stored; fields
// missing from the stored value come back empty. A payload that is not a
// JSON object of strings yields ErrDraftCorrupt.
func (s *DraftStore) Load(ctx context.Context) (entity.FormValues, bool, error) {
	raw, found, err := s.storage.Get(ctx, s.key)
	if err != nil {
		return entity.FormValues{}, false, fmt.Errorf("load draft: %w", err)
	}
	if !found {
		return entity.FormValues{}, false, nil
	}
	var draft *entity.FormValues
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return entity.FormValues{}, false, fmt.Errorf("%w: %v", ErrDraftCorrupt, err)
	}
	if draft == nil {
		return entity.FormValues{}, false, nil
	}
	return *draft, true, nil
}

// Save schedules a write of values once the debounce window passes without
// another Save. Saves after Close are dropped.
func (s *DraftStore) Save(values entity.FormValues) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = &values
	if s.timer != nil {
		s.timer.Stop()
	}
	s.token++
	token := s.token
	s.timer = s.clock.AfterFunc(s.debounce, func() { s.fire(token) })
}

// Pending reports whether a debounced write is scheduled.
func (s *DraftStore) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *DraftStore) fire(token uint64) {
	s.wmu.Lock()
	defer s.wmu.Unlock()

	s.mu.Lock()
	if token != s.token || s.pending == nil {
		s.mu.Unlock()
		return
	}
	values := *s.pending
	s.pending = nil
	s.timer = nil
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
	defer cancel()
	if err := s.write(ctx, values); err != nil {
		s.logger.WithError(err).WithField("key", s.key).Warn("debounced draft write failed")
	}
}

// take cancels the scheduled timer and returns the pending value, if any.
func (s *DraftStore) take() *entity.FormValues {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.token++
	pending := s.pending
	s.pending = nil
	return pending
}

// Flush writes a pending value immediately.
func (s *DraftStore) Flush(ctx context.Context) error {
	pending := s.take()
	if pending == nil {
		return nil
	}
	s.wmu.Lock()
	defer s.wmu.Unlock()
	return s.write(ctx, *pending)
}

// Clear drops any pending write and deletes the stored draft, so the next
// Load reports no draft.
func (s *DraftStore) Clear(ctx context.Context) error {
	s.take()
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.storage.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("delete draft: %w", err)
	}
	s.logger.WithField("key", s.key).Debug("draft deleted")
	return nil
}

// Close flushes a pending write and rejects later saves.
func (s *DraftStore) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.Flush(ctx)
}

func (s *DraftStore) write(ctx context.Context, values entity.FormValues) error {
	b, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if err := s.storage.Set(ctx, s.key, string(b)); err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	draftWrites.Add(1)
	s.logger.WithField("key", s.key).Debug("draft saved")
	return nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
