package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gateway "github.com/calvora/sales-gateway/internal/gateways"
	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/repository"
	"github.com/calvora/sales-gateway/pkg/logger"
	"github.com/calvora/sales-gateway/pkg/prom"
)

var (
	ErrContactNotFound = errors.New("contact not found")
	ErrCallNotFound    = errors.New("call not found")
)

type ContactRepository interface {
	GetOwnedByUser(ctx context.Context, id, userID int64) (*model.Contact, error)
	List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error)
}

type CallRepository interface {
	Create(ctx context.Context, c *model.Call) (*model.Call, error)
	GetOwnedByUser(ctx context.Context, id, userID int64) (*model.Call, error)
	UpdateBySessionID(ctx context.Context, sessionID string, update model.CallUpdate) (*model.Call, error)
	List(ctx context.Context, f model.CallFilter) ([]*model.Call, int64, error)
}

type CallServiceConfig struct {
	AgentNumber string
	// BatchWorkers bounds the concurrent provider calls of one batch.
	BatchWorkers int
	// CallTimeout bounds each individual provider call so one slow
	// upstream request cannot stall the whole batch.
	CallTimeout time.Duration
}

type CallService struct {
	contactRepo ContactRepository
	callRepo    CallRepository
	voice       gateway.VoiceGateway
	config      CallServiceConfig
}

func NewCallService(contactRepo ContactRepository, callRepo CallRepository, voice gateway.VoiceGateway, config CallServiceConfig) *CallService {
	if config.BatchWorkers <= 0 {
		config.BatchWorkers = 8
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = 30 * time.Second
	}
	return &CallService{
		contactRepo: contactRepo,
		callRepo:    callRepo,
		voice:       voice,
		config:      config,
	}
}

// QualificationHint derives the call framing hint from the contact's
// category tag.
func QualificationHint(contact *model.Contact) string {
	if contact.Category != "" {
		return fmt.Sprintf("Interested in %s", contact.Category)
	}
	return "General inquiry"
}

// Initiate starts an outbound call to one contact owned by the caller.
func (s *CallService) Initiate(ctx context.Context, userID, contactID int64) (*model.Call, error) {
	contact, err := s.contactRepo.GetOwnedByUser(ctx, contactID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrContactNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, err
	}
	return s.initiateForContact(ctx, userID, contact)
}

func (s *CallService) initiateForContact(ctx context.Context, userID int64, contact *model.Contact) (*model.Call, error) {
	phone := model.NormalizePhone(contact.Phone)

	startTime := time.Now()
	resp, err := s.voice.CreateCall(ctx, &gateway.CreateCallRequest{
		FromNumber:    s.config.AgentNumber,
		ToNumber:      phone,
		Qualification: QualificationHint(contact),
		Metadata: map[string]string{
			"contact_name": contact.Name,
		},
	})
	prom.AddCallDialDuration(time.Since(startTime).Seconds(), string(model.CallDirectionOutbound))
	if err != nil {
		return nil, fmt.Errorf("create provider call: %w", err)
	}

	call := &model.Call{
		SessionID:      resp.SessionID,
		ProviderCallID: resp.CallID,
		UserID:         &userID,
		ContactID:      &contact.ID,
		Direction:      model.CallDirectionOutbound,
		Status:         model.CallStatusScheduled,
	}
	created, err := s.callRepo.Create(ctx, call)
	if err != nil {
		return nil, fmt.Errorf("create call row: %w", err)
	}

	logger.Info("call initiated", "session_id", resp.SessionID, "contact_id", contact.ID, "user_id", userID)
	return created, nil
}

// BatchItemResult is the per-contact outcome of a batch initiation.
// Provider failures are collected here, never raised to the batch.
type BatchItemResult struct {
	ContactID int64  `json:"contact_id"`
	SessionID string `json:"session_id,omitempty"`
	CallID    int64  `json:"call_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

type BatchResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Results   []BatchItemResult `json:"results"`
}

// batchPageSize is the page size used when collecting the contact book
// for a batch fan-out.
const batchPageSize = 500

// InitiateAll fans out calls to every contact of the user through a
// bounded worker pool. Each provider call gets its own timeout and
// failures do not abort the batch.
func (s *CallService) InitiateAll(ctx context.Context, userID int64) (*BatchResult, error) {
	var contacts []*model.Contact
	for offset := 0; ; offset += batchPageSize {
		page, _, err := s.contactRepo.List(ctx, model.ContactFilter{
			UserID: &userID,
			Limit:  batchPageSize,
			Offset: offset,
		})
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, page...)
		if len(page) < batchPageSize {
			break
		}
	}

	results := make([]BatchItemResult, len(contacts))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < s.config.BatchWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = s.batchItem(ctx, userID, contacts[i])
			}
		}()
	}
	for i := range contacts {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	batch := &BatchResult{Total: len(contacts), Results: results}
	for _, r := range results {
		if r.Error == "" {
			batch.Succeeded++
		} else {
			batch.Failed++
		}
	}

	logger.Info("batch call fan-out finished", "user_id", userID, "total", batch.Total, "succeeded", batch.Succeeded, "failed", batch.Failed)
	return batch, nil
}

func (s *CallService) batchItem(ctx context.Context, userID int64, contact *model.Contact) BatchItemResult {
	callCtx, cancel := context.WithTimeout(ctx, s.config.CallTimeout)
	defer cancel()

	created, err := s.initiateForContact(callCtx, userID, contact)
	if err != nil {
		logger.Warn("batch call item failed", "contact_id", contact.ID, "error", err)
		return BatchItemResult{ContactID: contact.ID, Error: err.Error()}
	}
	return BatchItemResult{ContactID: contact.ID, SessionID: created.SessionID, CallID: created.ID}
}

// Get returns one call owned by the caller.
func (s *CallService) Get(ctx context.Context, userID, callID int64) (*model.Call, error) {
	call, err := s.callRepo.GetOwnedByUser(ctx, callID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrCallNotFound) {
			return nil, ErrCallNotFound
		}
		return nil, err
	}
	return call, nil
}

// Detail returns one call, backfilled from the provider's own call log
// when the row is still missing post-call fields (a lost webhook leaves
// the row without recording, transcript and cost). The provider lookup
// is best effort: when it fails the stored row comes back unchanged.
func (s *CallService) Detail(ctx context.Context, userID, callID int64) (*model.Call, error) {
	call, err := s.Get(ctx, userID, callID)
	if err != nil {
		return nil, err
	}
	if call.RecordingURL != nil || call.SessionID == "" {
		return call, nil
	}

	entries, err := s.voice.ListCalls(ctx, s.config.AgentNumber)
	if err != nil {
		logger.Warn("provider call log unavailable", "call_id", call.ID, "error", err)
		return call, nil
	}

	for i := range entries {
		if entries[i].SessionID != call.SessionID {
			continue
		}
		merged, err := s.callRepo.UpdateBySessionID(ctx, call.SessionID, providerLogToUpdate(&entries[i]))
		if err != nil {
			return nil, err
		}
		logger.Info("call backfilled from provider log", "call_id", call.ID, "session_id", call.SessionID)
		return merged, nil
	}
	return call, nil
}

// providerLogToUpdate maps one provider log entry to a merge update.
// Zero values are treated as absent and retain the row's prior fields.
func providerLogToUpdate(pc *gateway.ProviderCall) model.CallUpdate {
	var update model.CallUpdate
	if pc.StartTimestamp > 0 {
		startedAt := time.UnixMilli(pc.StartTimestamp).UTC()
		update.StartedAt = &startedAt
	}
	if pc.EndTimestamp > 0 {
		endedAt := time.UnixMilli(pc.EndTimestamp).UTC()
		update.EndedAt = &endedAt
	}
	if pc.CallCost.TotalDurationSeconds > 0 {
		duration := pc.CallCost.TotalDurationSeconds
		update.Duration = &duration
	}
	if pc.CallCost.CombinedCost > 0 {
		cost := pc.CallCost.CombinedCost
		update.Cost = &cost
	}
	if pc.CallAnalysis.UserSentiment != "" {
		sentiment := pc.CallAnalysis.UserSentiment
		update.Sentiment = &sentiment
	}
	if pc.CallAnalysis.CallSummary != "" {
		summary := pc.CallAnalysis.CallSummary
		update.Summary = &summary
	}
	if len(pc.TranscriptObject) > 0 {
		transcript := flattenTranscript(pc.TranscriptObject)
		update.Transcript = &transcript
	}
	if pc.RecordingURL != "" {
		update.RecordingURL = &pc.RecordingURL
	}
	if pc.PublicLogURL != "" {
		update.LogURL = &pc.PublicLogURL
	}
	return update
}

func flattenTranscript(segments []gateway.TranscriptSegment) string {
	var b strings.Builder
	for i, seg := range segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(seg.Role)
		b.WriteString(": ")
		b.WriteString(seg.Content)
	}
	return b.String()
}

func (s *CallService) List(ctx context.Context, userID int64, f model.CallFilter) ([]*model.Call, int64, error) {
	f.UserID = &userID
	return s.callRepo.List(ctx, f)
}
