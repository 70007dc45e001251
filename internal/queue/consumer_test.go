package queue

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

type fakeRenderer struct{ err error }

func (f fakeRenderer) Render(model.ReceiptJob) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("%PDF-fake"), nil
}

type sink struct{ got []model.Notification }

func (s *sink) Notify(_ context.Context, n model.Notification) error {
	s.got = append(s.got, n)
	return nil
}

func TestHandleWritesReceiptAndNotifiesBothParties(t *testing.T) {
	dir := t.TempDir()
	s := &sink{}
	c := &ReceiptConsumer{Dir: dir, Renderer: fakeRenderer{}, Notifier: s}

	body, err := json.Marshal(model.ReceiptJob{
		ID: "99", CellID: 3, CellLabel: 12,
		Customer: model.ReceiptParty{UserID: "cust"},
		Employee: model.ReceiptParty{UserID: "emp"},
	})
	require.NoError(t, err)
	require.NoError(t, c.Handle(context.Background(), body))

	require.Len(t, s.got, 2)
	require.Equal(t, "cust", s.got[0].Recipient)
	require.Equal(t, "emp", s.got[1].Recipient)
	require.Equal(t, model.NotifyReceiptDelivered, s.got[0].Kind)

	data, err := os.ReadFile(s.got[0].Attachment)
	require.NoError(t, err)
	require.Equal(t, "%PDF-fake", string(data))
}

func TestHandleRejectsBadMessages(t *testing.T) {
	c := &ReceiptConsumer{Dir: t.TempDir(), Renderer: fakeRenderer{err: errors.New("boom")}}
	require.Error(t, c.Handle(context.Background(), []byte("{")))
	require.Error(t, c.Handle(context.Background(), []byte(`{"cell_id":1}`)))
}

// acks records how deliveries were settled.
type acks struct {
	acked    int
	requeued int
	dropped  int
}

func (a *acks) Ack(uint64, bool) error { a.acked++; return nil }

func (a *acks) Nack(_ uint64, _ bool, requeue bool) error {
	if requeue {
		a.requeued++
	} else {
		a.dropped++
	}
	return nil
}

func (a *acks) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func TestProcessRequeuesFailuresOnce(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()
	a := &acks{}
	failing := &ReceiptConsumer{Dir: t.TempDir(), Renderer: fakeRenderer{err: errors.New("disk full")}}

	failing.process(ctx, amqp.Delivery{Acknowledger: a, Body: []byte(`{"cell_id":1}`)}, log)
	require.Equal(t, 1, a.requeued)
	require.Zero(t, a.dropped)

	failing.process(ctx, amqp.Delivery{Acknowledger: a, Body: []byte(`{"cell_id":1}`), Redelivered: true}, log)
	require.Equal(t, 1, a.requeued)
	require.Equal(t, 1, a.dropped)

	ok := &ReceiptConsumer{Dir: t.TempDir(), Renderer: fakeRenderer{}}
	ok.process(ctx, amqp.Delivery{Acknowledger: a, Body: []byte(`{"id":"1","cell_id":1}`), Redelivered: true}, log)
	require.Equal(t, 1, a.acked)
}
