package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"healthcare-rag/internal/logger"
	"healthcare-rag/internal/model"
	rabbitmqClient "healthcare-rag/internal/platform/rabbitmq"
)

// AuditStore persists decoded audit records.
type AuditStore interface {
	Create(ctx context.Context, audit *model.QueryAudit) error
}

// QueryAuditWorker drains the audit queue into the corpus store.
type QueryAuditWorker struct {
	conn      *amqp.Connection
	store     AuditStore
	queueName string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueryAuditWorker(conn *amqp.Connection, store AuditStore, queueName string, log *logger.Logger) *QueryAuditWorker {
	if log == nil {
		log = logger.Nop()
	}
	return &QueryAuditWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		log:       log.With("component", "query_audit_worker", "queue", queueName),
	}
}

func (w *QueryAuditWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	ch, err := w.conn.Channel()
	if err != nil {
		return fmt.Errorf("open worker channel failed: %w", err)
	}
	if err := rabbitmqClient.DeclareAuditQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		return err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *QueryAuditWorker) handle(ctx context.Context, d amqp.Delivery) {
	audit, err := decodeAudit(d.Body)
	if err != nil {
		w.log.Warn("decode audit failed", "error", err)
		_ = d.Nack(false, false)
		return
	}
	if err := w.store.Create(ctx, audit); err != nil {
		w.log.Error("persist audit failed", "audit_id", audit.ID, "error", err)
		_ = d.Nack(false, false)
		return
	}
	_ = d.Ack(false)
}

func (w *QueryAuditWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

func decodeAudit(body []byte) (*model.QueryAudit, error) {
	var audit model.QueryAudit
	if err := json.Unmarshal(body, &audit); err != nil {
		return nil, err
	}
	if audit.ID == "" || audit.Question == "" {
		return nil, fmt.Errorf("audit record missing id or question")
	}
	return &audit, nil
}
