package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
	repo "github.com/oksasatya/go-registration-form/internal/domain/repository"
)

var errDeliveriesClosed = errors.New("deliveries channel closed")

// ChangeFeed subscribes to the users fanout exchange. Every subscription
// owns its connection and an exclusive, auto-deleted queue, so each form
// sees every batch.
type ChangeFeed struct {
	URL      string
	Exchange string
	Logger   *logrus.Logger
}

func NewChangeFeed(url, exchange string, logger *logrus.Logger) *ChangeFeed {
	return &ChangeFeed{URL: url, Exchange: exchange, Logger: logger}
}

func (f *ChangeFeed) Subscribe(ctx context.Context, handler repo.ChangeHandler) (repo.Subscription, error) {
	conn, err := amqp.Dial(f.URL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	msgs, err := f.bind(ch)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	s := newSubscription(func() {
		_ = ch.Close()
		_ = conn.Close()
	})
	closed := conn.NotifyClose(make(chan *amqp.Error, 1))
	go func() {
		select {
		case amqpErr, ok := <-closed:
			if ok && amqpErr != nil {
				s.end(amqpErr)
			}
		case <-s.done:
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.done:
		}
	}()
	go s.consume(msgs, handler, f.Logger)
	return s, nil
}

func (f *ChangeFeed) bind(ch *amqp.Channel) (<-chan amqp.Delivery, error) {
	if err := declareExchange(ch, f.Exchange); err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(
		"",    // server-named
		false, // durable
		true,  // autoDelete
		true,  // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		return nil, err
	}
	if err := ch.QueueBind(q.Name, "", f.Exchange, false, nil); err != nil {
		return nil, err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		return nil, err
	}
	return ch.Consume(q.Name, "", false, true, false, false, nil)
}

type subscription struct {
	release func()
	done    chan struct{}
	endOnce sync.Once
	relOnce sync.Once
	mu      sync.Mutex
	err     error
}

func newSubscription(release func()) *subscription {
	return &subscription{release: release, done: make(chan struct{})}
}

func (s *subscription) Done() <-chan struct{} { return s.done }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *subscription) Close() error {
	s.end(nil)
	s.relOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
	return nil
}

func (s *subscription) end(err error) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

// consume hands every decoded batch to handler. Undecodable messages are
// rejected without requeue.
func (s *subscription) consume(msgs <-chan amqp.Delivery, handler repo.ChangeHandler, logger *logrus.Logger) {
	for msg := range msgs {
		var batch []entity.ChangeEvent
		if err := json.Unmarshal(msg.Body, &batch); err != nil {
			if logger != nil {
				logger.WithError(err).Warn("bad change message")
			}
			_ = msg.Nack(false, false)
			continue
		}
		handler(batch)
		_ = msg.Ack(false)
	}
	s.end(errDeliveriesClosed)
}
