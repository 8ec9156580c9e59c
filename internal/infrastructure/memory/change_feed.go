package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	repo "github.com/oksasatya/go-registration-form/internal/domain/repository"
)

var errSubscriptionDropped = errors.New("subscription dropped")

// ChangeFeed fans batches out to in-process subscribers. Batches are
// delivered synchronously on the publishing goroutine.
type ChangeFeed struct {
	mu           sync.Mutex
	subs         map[int]*subscription
	nextID       int
	subscribes   int
	failNext     int
	subscribeErr error
}

func NewChangeFeed() *ChangeFeed {
	return &ChangeFeed{subs: make(map[int]*subscription)}
}

// FailNextSubscribe makes the next n Subscribe calls return err.
func (f *ChangeFeed) FailNextSubscribe(n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext = n
	f.subscribeErr = err
}

func (f *ChangeFeed) Subscribe(ctx context.Context, handler repo.ChangeHandler) (repo.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribes++
	if f.failNext > 0 {
		f.failNext--
		return nil, f.subscribeErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id := f.nextID
	f.nextID++
	s := &subscription{feed: f, id: id, handler: handler, done: make(chan struct{})}
	f.subs[id] = s
	return s, nil
}

// Publish delivers one batch to every live subscriber.
func (f *ChangeFeed) Publish(batch []entity.ChangeEvent) {
	f.mu.Lock()
	handlers := make([]repo.ChangeHandler, 0, len(f.subs))
	for _, s := range f.subs {
		handlers = append(handlers, s.handler)
	}
	f.mu.Unlock()
	for _, h := range handlers {
		h(batch)
	}
}

// Drop ends every live subscription with errSubscriptionDropped.
func (f *ChangeFeed) Drop() {
	f.mu.Lock()
	subs := make([]*subscription, 0, len(f.subs))
	for id, s := range f.subs {
		subs = append(subs, s)
		delete(f.subs, id)
	}
	f.mu.Unlock()
	for _, s := range subs {
		s.end(errSubscriptionDropped)
	}
}

// Active returns the number of open subscriptions.
func (f *ChangeFeed) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Subscribes returns how many Subscribe calls were made.
func (f *ChangeFeed) Subscribes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes
}

type subscription struct {
	feed    *ChangeFeed
	id      int
	handler repo.ChangeHandler
	done    chan struct{}
	once    sync.Once
	err     error
	closeMu sync.Mutex
}

func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) Err() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.feed.mu.Lock()
	delete(s.feed.subs, s.id)
	s.feed.mu.Unlock()
	s.end(nil)
	return nil
}

func (s *subscription) end(err error) {
	s.once.Do(func() {
		s.closeMu.Lock()
		s.err = err
		s.closeMu.Unlock()
		close(s.done)
	})
}
