package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	gateway "github.com/calvora/sales-gateway/internal/gateways"
	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/repository"
	"github.com/calvora/sales-gateway/pkg/logger"
)

type HistoryThreadRepository interface {
	GetByContact(ctx context.Context, contactID int64) (*model.Thread, error)
}

type HistoryMessageRepository interface {
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

// HistoryEntry is one row of the merged local/provider message view.
type HistoryEntry struct {
	ID          string               `json:"id"`
	Channel     model.MessageChannel `json:"channel"`
	Direction   string               `json:"direction,omitempty"`
	Status      string               `json:"status"`
	Body        string               `json:"body"`
	DateCreated time.Time            `json:"date_created"`
	FromLocal   bool                 `json:"from_local"`
}

// HistoryService merges locally persisted messages with the provider's
// own message log into one deduplicated, time-ordered view.
type HistoryService struct {
	contactRepo ContactRepository
	threadRepo  HistoryThreadRepository
	messageRepo HistoryMessageRepository
	messaging   gateway.MessagingGateway
	// otpMarker filters one-time-password traffic out of the SMS view.
	otpMarker string
}

func NewHistoryService(
	contactRepo ContactRepository,
	threadRepo HistoryThreadRepository,
	messageRepo HistoryMessageRepository,
	messaging gateway.MessagingGateway,
	otpMarker string,
) *HistoryService {
	return &HistoryService{
		contactRepo: contactRepo,
		threadRepo:  threadRepo,
		messageRepo: messageRepo,
		messaging:   messaging,
		otpMarker:   strings.ToLower(otpMarker),
	}
}

// GetHistory returns the merged message history for one contact and
// channel. Local and provider entries are unioned keyed by provider
// message id (falling back to the local row id when a message was
// never cross-referenced), sorted ascending by creation time. Only
// sent, delivered and received messages are surfaced.
func (s *HistoryService) GetHistory(ctx context.Context, userID, contactID int64, channel model.MessageChannel) ([]HistoryEntry, error) {
	contact, err := s.contactRepo.GetOwnedByUser(ctx, contactID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}

	local, err := s.localMessages(ctx, contact.ID, channel)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(local))
	seen := make(map[string]struct{}, len(local))
	for _, m := range local {
		entry := HistoryEntry{
			ID:          strconv.FormatInt(m.ID, 10),
			Channel:     m.Channel,
			Direction:   string(m.Direction),
			Status:      string(m.Status),
			Body:        m.Body,
			DateCreated: m.CreatedAt,
			FromLocal:   true,
		}
		key := m.ProviderMessageID()
		if key == "" {
			key = entry.ID
		}
		seen[key] = struct{}{}
		entries = append(entries, entry)
	}

	// Email has no provider-side history source.
	if channel != model.MessageChannelEmail {
		provider, err := s.messaging.ListHistory(ctx, model.NormalizePhone(contact.Phone))
		if err != nil {
			// Degrade to the local view rather than failing the read.
			logger.Warn("provider history fetch failed", "contact_id", contact.ID, "error", err)
		} else {
			for _, pm := range provider {
				if !surfacedProviderStatus(pm.Status) {
					continue
				}
				if _, ok := seen[pm.Sid]; ok {
					continue
				}
				seen[pm.Sid] = struct{}{}
				entries = append(entries, HistoryEntry{
					ID:          pm.Sid,
					Channel:     channel,
					Status:      pm.Status,
					Body:        pm.Body,
					DateCreated: pm.DateCreated,
				})
			}
		}
	}

	if channel == model.MessageChannelSMS && s.otpMarker != "" {
		entries = s.filterOTP(entries)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].DateCreated.Before(entries[j].DateCreated)
	})
	return entries, nil
}

func (s *HistoryService) localMessages(ctx context.Context, contactID int64, channel model.MessageChannel) ([]*model.Message, error) {
	thread, err := s.threadRepo.GetByContact(ctx, contactID)
	if err != nil {
		if errors.Is(err, repository.ErrThreadNotFound) {
			return nil, nil
		}
		return nil, err
	}

	messages, _, err := s.messageRepo.List(ctx, model.MessageFilter{
		ThreadID: &thread.ID,
		Channel:  &channel,
		Statuses: []model.MessageStatus{
			model.MessageStatusSent,
			model.MessageStatusDelivered,
			model.MessageStatusReceived,
		},
		Limit: 1000,
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

func (s *HistoryService) filterOTP(entries []HistoryEntry) []HistoryEntry {
	filtered := entries[:0]
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Body), s.otpMarker) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

func surfacedProviderStatus(status string) bool {
	return status == "sent" || status == "delivered" || status == "received"
}
