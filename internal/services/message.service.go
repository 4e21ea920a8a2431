package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/queue"
	"github.com/calvora/sales-gateway/internal/repository"
)

var ErrEmptyBody = errors.New("message body cannot be empty")

type MessageRepository interface {
	Create(ctx context.Context, m *model.Message) (*model.Message, error)
	GetByID(ctx context.Context, id int64) (*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

type MessageThreadRepository interface {
	FindOrCreate(ctx context.Context, contactID int64, label string) (*model.Thread, error)
	GetByContact(ctx context.Context, contactID int64) (*model.Thread, error)
}

// DispatchJob is the queue payload consumed by the dispatcher binary.
type DispatchJob struct {
	MessageID int64                `json:"message_id"`
	Channel   model.MessageChannel `json:"channel"`
	To        string               `json:"to"`
	ToEmail   string               `json:"to_email,omitempty"`
	Subject   string               `json:"subject,omitempty"`
	Body      string               `json:"body"`
}

// MessageService persists outbound messages and hands them to the
// dispatch queue; actual provider sends happen asynchronously in the
// dispatcher.
type MessageService struct {
	contactRepo ContactRepository
	threadRepo  MessageThreadRepository
	messageRepo MessageRepository
	queue       *queue.Queue
}

func NewMessageService(contactRepo ContactRepository, threadRepo MessageThreadRepository, messageRepo MessageRepository, q *queue.Queue) *MessageService {
	return &MessageService{
		contactRepo: contactRepo,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		queue:       q,
	}
}

// Send validates, persists and enqueues one outbound message. The row
// starts in pending_approval and moves to sent/failed when the
// dispatcher reports the provider outcome.
func (s *MessageService) Send(ctx context.Context, p model.MessageCreateRequest) (*model.Message, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	p.Body = strings.TrimSpace(p.Body)
	if p.Body == "" {
		return nil, ErrEmptyBody
	}

	contact, err := s.contactRepo.GetOwnedByUser(ctx, p.ContactID, p.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}

	thread, err := s.threadRepo.FindOrCreate(ctx, contact.ID, string(p.Channel))
	if err != nil {
		return nil, fmt.Errorf("find or create thread: %w", err)
	}

	metadata := map[string]string{
		model.MetaTo: contact.Phone,
	}
	if p.Channel == model.MessageChannelEmail {
		metadata[model.MetaTo] = contact.Email
		metadata[model.MetaSubject] = p.Subject
	}

	msg := &model.Message{
		ThreadID:  thread.ID,
		Channel:   p.Channel,
		Direction: model.MessageDirectionOutbound,
		Status:    model.MessageStatusPendingApproval,
		Body:      p.Body,
		Metadata:  metadata,
	}
	created, err := s.messageRepo.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}

	job := DispatchJob{
		MessageID: created.ID,
		Channel:   p.Channel,
		To:        model.NormalizePhone(contact.Phone),
		Subject:   p.Subject,
		Body:      p.Body,
	}
	if p.Channel == model.MessageChannelEmail {
		job.ToEmail = contact.Email
	}
	if _, err := s.queue.PublishJSON(ctx, job, map[string]string{"channel": string(p.Channel)}); err != nil {
		return nil, fmt.Errorf("enqueue dispatch job: %w", err)
	}

	return created, nil
}

// List returns the locally stored messages of one contact's thread.
func (s *MessageService) List(ctx context.Context, userID, contactID int64, f model.MessageFilter) ([]*model.Message, int64, error) {
	if _, err := s.contactRepo.GetOwnedByUser(ctx, contactID, userID); err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, 0, ErrContactNotFound
		}
		return nil, 0, err
	}

	thread, err := s.threadRepo.GetByContact(ctx, contactID)
	if err != nil {
		if errors.Is(err, repository.ErrThreadNotFound) {
			return nil, 0, nil
		}
		return nil, 0, err
	}

	f.ThreadID = &thread.ID
	return s.messageRepo.List(ctx, f)
}
