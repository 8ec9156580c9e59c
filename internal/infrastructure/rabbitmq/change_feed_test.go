package rabbitmq

import (
	"sync"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-registration-form/internal/domain/entity"
)

type recordingAck struct {
	mu       sync.Mutex
	acks     []uint64
	nacks    []uint64
	requeues []bool
}

func (a *recordingAck) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acks = append(a.acks, tag)
	return nil
}

func (a *recordingAck) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacks = append(a.nacks, tag)
	a.requeues = append(a.requeues, requeue)
	return nil
}

func (a *recordingAck) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func TestSubscription_ConsumeDecodesAndAcks(t *testing.T) {
	ack := &recordingAck{}
	msgs := make(chan amqp.Delivery, 3)
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`[{"kind":"added","record":{"fullName":"Ada","email":"ada@example.com","password":""}}]`)}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte(`not json`)}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`[{"kind":"modified"}]`)}
	close(msgs)

	var batches [][]entity.ChangeEvent
	s := newSubscription(nil)
	s.consume(msgs, func(b []entity.ChangeEvent) { batches = append(batches, b) }, nil)

	require.Len(t, batches, 2)
	assert.Equal(t, entity.ChangeAdded, batches[0][0].Kind)
	assert.Equal(t, "ada@example.com", batches[0][0].Record.Email)
	assert.Equal(t, entity.ChangeModified, batches[1][0].Kind)

	assert.Equal(t, []uint64{1, 3}, ack.acks)
	assert.Equal(t, []uint64{2}, ack.nacks)
	assert.Equal(t, []bool{false}, ack.requeues)

	select {
	case <-s.Done():
	default:
		t.Fatal("subscription should end when deliveries close")
	}
	assert.ErrorIs(t, s.Err(), errDeliveriesClosed)
}

func TestSubscription_CloseReleasesOnce(t *testing.T) {
	released := 0
	s := newSubscription(func() { released++ })

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, 1, released)
	assert.NoError(t, s.Err())
	<-s.Done()
}
