package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/iliyamo/tire-storage-bonus/internal/model"
)

// Renderer turns a receipt job into a document.
type Renderer interface {
	Render(job model.ReceiptJob) ([]byte, error)
}

// Notifier delivers chat messages.
type Notifier interface {
	Notify(ctx context.Context, n model.Notification) error
}

// ReceiptConsumer renders storage receipts queued on storage.receipts,
// writes them to Dir and notifies both parties with the file attached.
type ReceiptConsumer struct {
	URL      string
	Dir      string
	Renderer Renderer
	Notifier Notifier
	Log      *zap.Logger
}

// Run connects to the broker and consumes until ctx is cancelled.  Lost
// connections are retried with a capped exponential backoff.
func (c *ReceiptConsumer) Run(ctx context.Context) error {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("receipt consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("receipt consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *ReceiptConsumer) consume(ctx context.Context, conn *amqp.Connection, log *zap.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Warn("receipt consumer: set QoS failed", zap.Error(err))
	}
	if _, err := ch.QueueDeclare(ReceiptsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(ReceiptsQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.process(ctx, d, log)
		}
	}
}

// process handles one delivery and settles it.  A failed message is
// requeued once; on its second failure it is dropped so a poison
// message cannot loop.
func (c *ReceiptConsumer) process(ctx context.Context, d amqp.Delivery, log *zap.Logger) {
	err := c.Handle(ctx, d.Body)
	if err == nil {
		_ = d.Ack(false)
		return
	}
	requeue := !d.Redelivered
	log.Error("receipt consumer: handle failed",
		zap.Error(err), zap.Bool("redelivered", d.Redelivered), zap.Bool("requeue", requeue))
	_ = d.Nack(false, requeue)
}

// Handle processes one message body.
func (c *ReceiptConsumer) Handle(ctx context.Context, body []byte) error {
	var job model.ReceiptJob
	if err := json.Unmarshal(body, &job); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	pdf, err := c.Renderer.Render(job)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", c.Dir, err)
	}
	name := fmt.Sprintf("receipt-cell%d-%s.pdf", job.CellLabel, job.ID)
	path := filepath.Join(c.Dir, name)
	if err := os.WriteFile(path, pdf, 0o644); err != nil {
		return fmt.Errorf("write receipt: %w", err)
	}
	if c.Log != nil {
		c.Log.Info("receipt written", zap.String("path", path), zap.Int64("cell_id", job.CellID))
	}
	if c.Notifier == nil {
		return nil
	}
	for _, p := range []model.ReceiptParty{job.Customer, job.Employee} {
		err := c.Notifier.Notify(ctx, model.Notification{
			Recipient:  p.UserID,
			Kind:       model.NotifyReceiptDelivered,
			Text:       fmt.Sprintf("Storage receipt for cell %d.", job.CellLabel),
			CellID:     job.CellID,
			Attachment: path,
			CreatedAt:  time.Now().UTC(),
		})
		if err != nil && c.Log != nil {
			c.Log.Warn("receipt notification failed", zap.String("recipient", p.UserID), zap.Error(err))
		}
	}
	return nil
}
