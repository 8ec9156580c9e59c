package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	repo "github.com/oksasatya/go-registration-form/internal/domain/repository"
)

const (
	defaultSubscriptionRetries  = 5
	defaultSubscriptionInterval = time.Second
)

// LiveUpdateListener keeps a standing change-feed subscription and raises a
// one-shot flag whenever a batch contains an added record.
//
// Subscribe failures are retried with exponential backoff, at most
// maxRetries times per attempt. A subscription that ends with an error is
// re-established; after maxRetries consecutive drops without a delivered
// batch the listener gives up and live updates stay off.
type LiveUpdateListener struct {
	feed          repo.ChangeFeed
	logger        *logrus.Logger
	maxRetries    int
	retryInterval time.Duration

	raised    atomic.Bool
	delivered atomic.Bool

	mu        sync.Mutex
	onSignal  func()
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// ListenerOption configures a LiveUpdateListener.
type ListenerOption func(*LiveUpdateListener)

func WithListenerLogger(l *logrus.Logger) ListenerOption {
	return func(ls *LiveUpdateListener) {
		if l != nil {
			ls.logger = l
		}
	}
}

// WithRetryPolicy bounds resubscription: maxRetries attempts, starting at
// interval and growing exponentially.
func WithRetryPolicy(maxRetries int, interval time.Duration) ListenerOption {
	return func(ls *LiveUpdateListener) {
		if maxRetries >= 0 {
			ls.maxRetries = maxRetries
		}
		if interval > 0 {
			ls.retryInterval = interval
		}
	}
}

func NewLiveUpdateListener(feed repo.ChangeFeed, opts ...ListenerOption) (*LiveUpdateListener, error) {
	if feed == nil {
		return nil, errors.New("change feed is required")
	}
	l := &LiveUpdateListener{
		feed:          feed,
		logger:        discardLogger(),
		maxRetries:    defaultSubscriptionRetries,
		retryInterval: defaultSubscriptionInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Start subscribes in the background. onSignal, when non-nil, runs after the
// flag is raised. Calling Start twice is a no-op.
func (l *LiveUpdateListener) Start(ctx context.Context, onSignal func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.onSignal = onSignal
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(runCtx, l.done)
}

// Raised reports whether new records arrived since the last Clear.
func (l *LiveUpdateListener) Raised() bool { return l.raised.Load() }

// Clear resets the flag.
func (l *LiveUpdateListener) Clear() { l.raised.Store(false) }

// Close releases the subscription and waits for the background loop to exit.
// It is safe to call more than once.
func (l *LiveUpdateListener) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		cancel, done := l.cancel, l.done
		l.mu.Unlock()
		if cancel == nil {
			return
		}
		cancel()
		<-done
	})
	return nil
}

func (l *LiveUpdateListener) handle(batch []entity.ChangeEvent) {
	l.delivered.Store(true)
	added := false
	for _, ev := range batch {
		if ev.Kind == entity.ChangeAdded {
			added = true
			break
		}
	}
	if !added {
		return
	}
	l.raised.Store(true)
	liveSignals.Add(1)

	l.mu.Lock()
	onSignal := l.onSignal
	l.mu.Unlock()
	if onSignal != nil {
		onSignal()
	}
}

func (l *LiveUpdateListener) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	drops := 0
	for {
		sub, err := l.subscribe(ctx)
		if err != nil {
			if ctx.Err() == nil {
				l.logger.WithError(err).Error("live updates disabled")
			}
			return
		}

		select {
		case <-ctx.Done():
			_ = sub.Close()
			return
		case <-sub.Done():
			cause := sub.Err()
			_ = sub.Close()
			if ctx.Err() != nil {
				return
			}
			if l.delivered.Swap(false) {
				drops = 0
			}
			drops++
			if drops > l.maxRetries {
				l.logger.WithError(fmt.Errorf("%w: %v", ErrSubscription, cause)).
					WithField("drops", drops).
					Error("live updates disabled")
				return
			}
			l.logger.WithError(cause).WithField("drops", drops).Warn("change feed subscription ended, resubscribing")
		}
	}
}

func (l *LiveUpdateListener) subscribe(ctx context.Context) (repo.Subscription, error) {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = l.retryInterval
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(l.maxRetries)), ctx)

	var sub repo.Subscription
	op := func() error {
		s, err := l.feed.Subscribe(ctx, l.handle)
		if err != nil {
			return err
		}
		sub = s
		return nil
	}
	notify := func(err error, wait time.Duration) {
		l.logger.WithError(err).WithField("retry_in", wait.String()).Warn("change feed subscribe failed")
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscription, err)
	}
	return sub, nil
}
