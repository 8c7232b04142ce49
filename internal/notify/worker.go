package notify

import (
	"context"
	"time"

	"github.com/wazeportal/ingest/internal/logger"
	"github.com/wazeportal/ingest/internal/metrics"
	"github.com/wazeportal/ingest/internal/models"
	"github.com/wazeportal/ingest/internal/store"
)

// DeliveryWorker drains the delivery task queue in small batches, one
// dispatch attempt per task per batch. Failed tasks stay ERRO and are
// retried on the next pass.
type DeliveryWorker struct {
	store     store.Store
	senders   map[models.Channel]Sender
	batchSize int
	interval  time.Duration
}

func NewDeliveryWorker(st store.Store, senders []Sender, batchSize int, interval time.Duration) *DeliveryWorker {
	byChannel := make(map[models.Channel]Sender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &DeliveryWorker{
		store:     st,
		senders:   byChannel,
		batchSize: batchSize,
		interval:  interval,
	}
}

// Run executes ProcessBatch on a fixed interval until context cancellation.
func (w *DeliveryWorker) Run(ctx context.Context) error {
	logger.Info("Delivery worker starting",
		"interval", w.interval,
		"batch_size", w.batchSize,
		"channels", len(w.senders),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Delivery worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := w.ProcessBatch(ctx); err != nil {
				logger.Error("Delivery batch failed", "error", err)
			}
		}
	}
}

// ProcessBatch dispatches one batch of unsent tasks and rolls each outcome
// up into the parent queue entry.
func (w *DeliveryWorker) ProcessBatch(ctx context.Context) error {
	tasks, err := w.store.UnsentDeliveryTasks(ctx, w.batchSize)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		return nil
	}

	now := time.Now().UTC()
	type outcome struct {
		failed bool
		errMsg string
	}
	byQueue := make(map[int64]outcome)
	messages := make(map[string]string)

	for _, task := range tasks {
		msg, ok := messages[task.AlertUUID]
		if !ok {
			alert, err := w.store.GetAlert(ctx, task.AlertUUID)
			if err != nil {
				return err
			}
			msg = FormatAlertMessage(alert)
			messages[task.AlertUUID] = msg
		}

		status := models.SendSent
		detail := ""
		if sendErr := w.dispatch(ctx, task, msg); sendErr != nil {
			status = models.SendError
			detail = sendErr.Error()
			logger.Warn("Delivery failed",
				"task_id", task.ID,
				"channel", task.Channel,
				"user_id", task.UserID,
				"error", sendErr,
			)
		}
		metrics.RecordDelivery(string(task.Channel), status)

		if err := w.store.UpdateTaskStatus(ctx, task.ID, status, detail, now); err != nil {
			return err
		}

		o := byQueue[task.QueueID]
		if status == models.SendError {
			o.failed = true
			if o.errMsg == "" {
				o.errMsg = detail
			}
		}
		byQueue[task.QueueID] = o
	}

	for queueID, o := range byQueue {
		status := models.SendSent
		if o.failed {
			status = models.SendError
		}
		if err := w.store.UpdateQueueStatus(ctx, queueID, status, o.errMsg, true, now); err != nil {
			return err
		}
	}

	logger.Info("Delivery batch processed", "tasks", len(tasks))
	return nil
}

func (w *DeliveryWorker) dispatch(ctx context.Context, task models.DeliveryTask, message string) error {
	sender, ok := w.senders[task.Channel]
	if !ok {
		return unknownChannelError(task.Channel)
	}
	return sender.Send(ctx, task.Contact, message)
}

type unknownChannelError models.Channel

func (e unknownChannelError) Error() string {
	return "no sender registered for channel " + string(e)
}
