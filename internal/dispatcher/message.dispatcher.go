package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	gateway "github.com/calvora/sales-gateway/internal/gateways"
	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/queue"
	"github.com/calvora/sales-gateway/internal/services"
	"github.com/calvora/sales-gateway/pkg/logger"
	"github.com/calvora/sales-gateway/pkg/prom"
)

// MessageStore is the slice of the message repository the dispatcher
// needs to record provider outcomes.
type MessageStore interface {
	MarkDispatched(ctx context.Context, id int64, status model.MessageStatus, providerMessageID string) error
}

// MessageDispatcher sends queued outbound messages to the messaging or
// email provider and records the outcome, with idempotency guarantees
// across stream redeliveries.
type MessageDispatcher struct {
	messaging   gateway.MessagingGateway
	email       gateway.EmailGateway
	store       MessageStore
	idempotency *IdempotencyService
	fromNumber  string
	fromAddress string
}

func NewMessageDispatcher(
	messaging gateway.MessagingGateway,
	email gateway.EmailGateway,
	store MessageStore,
	idempotency *IdempotencyService,
	fromNumber, fromAddress string,
) *MessageDispatcher {
	return &MessageDispatcher{
		messaging:   messaging,
		email:       email,
		store:       store,
		idempotency: idempotency,
		fromNumber:  fromNumber,
		fromAddress: fromAddress,
	}
}

func (d *MessageDispatcher) GetType() string {
	return "message"
}

// Dispatch decodes one queued job, sends it through the channel's
// provider and records the resulting provider message id on the stored
// row. A nil return ACKs the queue message.
func (d *MessageDispatcher) Dispatch(ctx context.Context, queueMessage *queue.Message) error {
	var job services.DispatchJob
	if err := json.Unmarshal(queueMessage.Data, &job); err != nil {
		logger.Error("Failed to unmarshal dispatch job", "error", err)
		return err // malformed payload goes to the DLQ
	}

	messageID := strconv.FormatInt(job.MessageID, 10)

	dispCtx, err := d.idempotency.AcquireDispatchLock(ctx, messageID)
	if err != nil {
		if errors.Is(err, ErrAlreadyDispatched) {
			logger.Info("Job already dispatched, skipping", "message_id", messageID)
			return nil
		}
		if errors.Is(err, ErrMaxRetriesExceeded) {
			logger.Error("Max retries exceeded, marking message failed", "message_id", messageID)
			if markErr := d.store.MarkDispatched(ctx, job.MessageID, model.MessageStatusFailed, ""); markErr != nil {
				logger.Error("Failed to record terminal failure", "message_id", messageID, "error", markErr)
			}
			return nil // ACK so the DLQ keeps the payload
		}
		if errors.Is(err, ErrLockAcquireFailed) {
			logger.Info("Lock held by another consumer, will retry", "message_id", messageID)
			return errors.New("lock held by another consumer")
		}
		logger.Error("Failed to acquire lock", "message_id", messageID, "error", err)
		return err
	}

	defer func() {
		if dispCtx.lockAcquired {
			d.idempotency.ReleaseLock(ctx, dispCtx)
		}
	}()

	logger.Info("Dispatching message",
		"message_id", messageID,
		"channel", job.Channel,
		"retry_count", dispCtx.RetryCount,
		"is_retry", dispCtx.IsRetry)

	start := time.Now()
	providerID, err := d.send(ctx, &job)
	if err != nil {
		logger.Error("Failed to send message", "message_id", messageID, "channel", job.Channel, "error", err)
		if markErr := d.idempotency.MarkFailure(ctx, dispCtx, err); markErr != nil {
			logger.Error("Failed to mark failure", "message_id", messageID, "error", markErr)
		}
		return err // NACK to retry from queue
	}

	prom.AddMessageDispatchDuration(time.Since(start).Seconds(), string(job.Channel))

	if err := d.store.MarkDispatched(ctx, job.MessageID, model.MessageStatusSent, providerID); err != nil {
		// The provider accepted the message, so don't retry the send.
		logger.Error("Failed to record dispatch outcome", "message_id", messageID, "error", err)
	}

	if markErr := d.idempotency.MarkSuccess(ctx, dispCtx); markErr != nil {
		logger.Error("Failed to mark success", "message_id", messageID, "error", markErr)
	}

	logger.Info("Message dispatched",
		"message_id", messageID,
		"channel", job.Channel,
		"provider_message_id", providerID,
		"retry_count", dispCtx.RetryCount)

	return nil
}

func (d *MessageDispatcher) send(ctx context.Context, job *services.DispatchJob) (string, error) {
	if job.Channel == model.MessageChannelEmail {
		res, err := d.email.Send(ctx, &gateway.EmailSendRequest{
			From:    d.fromAddress,
			To:      job.ToEmail,
			Subject: job.Subject,
			Text:    job.Body,
		})
		if err != nil {
			return "", err
		}
		return res.EmailID, nil
	}

	res, err := d.messaging.Send(ctx, &gateway.MessageSendRequest{
		From:    d.fromNumber,
		To:      job.To,
		Body:    job.Body,
		Channel: job.Channel,
	})
	if err != nil {
		return "", err
	}
	return res.MessageSid, nil
}
