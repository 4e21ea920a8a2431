package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CreateCallRequest mirrors the voice provider's create-call API.
type CreateCallRequest struct {
	FromNumber  string            `json:"from_number" binding:"required"`
	ToNumber    string            `json:"to_number" binding:"required"`
	AgentNumber string            `json:"agent_number"`
	Metadata    map[string]string `json:"metadata"`
}

type CreateCallResponse struct {
	SessionID string `json:"session_id"`
	CallID    string `json:"call_id"`
}

// ProviderCall is one entry of the simulated call log.
type ProviderCall struct {
	SessionID        string              `json:"session_id"`
	CallID           string              `json:"call_id"`
	FromNumber       string              `json:"from_number"`
	ToNumber         string              `json:"to_number"`
	StartTimestamp   int64               `json:"start_timestamp"`
	EndTimestamp     int64               `json:"end_timestamp"`
	RecordingURL     string              `json:"recording_url"`
	PublicLogURL     string              `json:"public_log_url"`
	TranscriptObject []TranscriptSegment `json:"transcript_object"`
	CallAnalysis     CallAnalysis        `json:"call_analysis"`
	CallCost         CallCost            `json:"call_cost"`
}

type TranscriptSegment struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CallAnalysis struct {
	CallSummary    string `json:"call_summary"`
	CallSuccessful bool   `json:"call_successful"`
	UserSentiment  string `json:"user_sentiment"`
}

type CallCost struct {
	TotalDurationSeconds int     `json:"total_duration_seconds"`
	CombinedCost         float64 `json:"combined_cost"`
}

// VoiceEvent is the lifecycle callback posted to the gateway's voice
// webhook.
type VoiceEvent struct {
	SessionID     string   `json:"session_id"`
	EventType     string   `json:"event_type"`
	CallerNumber  string   `json:"caller_number"`
	Timestamp     string   `json:"timestamp"`
	Duration      *int     `json:"duration,omitempty"`
	Cost          *float64 `json:"cost,omitempty"`
	SessionStatus string   `json:"session_status,omitempty"`
	UserSentiment string   `json:"user_sentiment,omitempty"`
	EndStatus     string   `json:"end_status,omitempty"`
	Transcript    string   `json:"transcript,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	RecordingURL  string   `json:"recording_url,omitempty"`
	PublicLogURL  string   `json:"public_log_url,omitempty"`
}

// SendMessageRequest mirrors the messaging provider's send API.
type SendMessageRequest struct {
	From    string `json:"from" binding:"required"`
	To      string `json:"to" binding:"required"`
	Body    string `json:"body" binding:"required"`
	Channel string `json:"channel"`
}

type SendMessageResponse struct {
	MessageSid string `json:"message_sid"`
	Status     string `json:"status"`
}

// ProviderMessage is one entry of the simulated message log.
type ProviderMessage struct {
	Sid         string    `json:"sid"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Body        string    `json:"body"`
	Status      string    `json:"status"`
	DateCreated time.Time `json:"date_created"`
}

// SendEmailRequest mirrors the email provider's send API.
type SendEmailRequest struct {
	From    string `json:"from" binding:"required"`
	To      string `json:"to" binding:"required"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	HTML    string `json:"html"`
}

type SendEmailResponse struct {
	ID string `json:"id"`
}

type emailEvent struct {
	Type string `json:"type"`
	Data struct {
		From    string `json:"from"`
		To      string `json:"to"`
		Subject string `json:"subject"`
		EmailID string `json:"email_id"`
	} `json:"data"`
}

// Simulator fakes the voice, messaging and email providers and posts
// lifecycle webhooks back at the gateway after a randomized delay.
type Simulator struct {
	webhookBase  string
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	rng          *rand.Rand
	http         *http.Client

	mu       sync.Mutex
	calls    []ProviderCall
	messages []ProviderMessage
}

func NewSimulator(webhookBase string, deliveryRate float64, minDelay, maxDelay time.Duration) *Simulator {
	return &Simulator{
		webhookBase:  strings.TrimRight(webhookBase, "/"),
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
		http:         &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *Simulator) randomDelay() time.Duration {
	delta := s.maxDelay - s.minDelay
	if delta <= 0 {
		return s.minDelay
	}
	return s.minDelay + time.Duration(s.rng.Int63n(int64(delta)))
}

func (s *Simulator) shouldSucceed() bool {
	return s.rng.Float64() < s.deliveryRate
}

func (s *Simulator) postJSON(path string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to encode webhook payload")
		return
	}
	resp, err := s.http.Post(s.webhookBase+path, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	log.Info().Str("path", path).Int("status", resp.StatusCode).Msg("Webhook delivered")
}

func (s *Simulator) postForm(path string, values url.Values) {
	resp, err := s.http.PostForm(s.webhookBase+path, values)
	if err != nil {
		log.Error().Err(err).Str("path", path).Msg("Webhook delivery failed")
		return
	}
	defer resp.Body.Close()
	log.Info().Str("path", path).Int("status", resp.StatusCode).Msg("Webhook delivered")
}

// simulateCall plays out one outbound call: call_ended after the talk
// time, then call_analyzed once the fake analysis completes.
func (s *Simulator) simulateCall(sessionID, toNumber string) {
	time.Sleep(s.randomDelay())

	succeeded := s.shouldSucceed()
	duration := 30 + s.rng.Intn(270)
	cost := float64(duration) * 0.002
	status := "completed"
	endStatus := "agent_hangup"
	if !succeeded {
		status = "failed"
		endStatus = "dial_no_answer"
		duration = 0
		cost = 0
	}

	s.mu.Lock()
	for i := range s.calls {
		if s.calls[i].SessionID == sessionID {
			s.calls[i].EndTimestamp = time.Now().UnixMilli()
			s.calls[i].CallCost = CallCost{TotalDurationSeconds: duration, CombinedCost: cost}
			s.calls[i].CallAnalysis = CallAnalysis{CallSuccessful: succeeded}
		}
	}
	s.mu.Unlock()

	ended := VoiceEvent{
		SessionID:     sessionID,
		EventType:     "call_ended",
		CallerNumber:  toNumber,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Duration:      &duration,
		Cost:          &cost,
		SessionStatus: status,
		EndStatus:     endStatus,
	}
	s.postJSON("/webhooks/voice", ended)

	if !succeeded {
		return
	}

	time.Sleep(s.randomDelay())
	sentiments := []string{"positive", "neutral", "negative"}
	analyzed := VoiceEvent{
		SessionID:     sessionID,
		EventType:     "call_analyzed",
		CallerNumber:  toNumber,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		UserSentiment: sentiments[s.rng.Intn(len(sentiments))],
		Transcript:    "agent: hello\nuser: hi, tell me more",
		Summary:       "Prospect asked for pricing details and a follow-up email.",
		RecordingURL:  "https://recordings.example.com/" + sessionID + ".wav",
		PublicLogURL:  "https://logs.example.com/" + sessionID,
	}
	s.postJSON("/webhooks/voice", analyzed)
}

// simulateMessage posts a delivery receipt for an accepted message.
func (s *Simulator) simulateMessage(sid, from, to, channel string) {
	time.Sleep(s.randomDelay())

	status := "delivered"
	if !s.shouldSucceed() {
		status = "failed"
	}

	s.mu.Lock()
	for i := range s.messages {
		if s.messages[i].Sid == sid {
			s.messages[i].Status = status
		}
	}
	s.mu.Unlock()

	path := "/webhooks/sms"
	if channel == "whatsapp" {
		path = "/webhooks/whatsapp"
	}
	s.postForm(path, url.Values{
		"MessageSid":    {sid},
		"From":          {from},
		"To":            {to},
		"MessageStatus": {status},
	})
}

func (s *Simulator) simulateEmail(emailID, from, to, subject string) {
	time.Sleep(s.randomDelay())

	var ev emailEvent
	ev.Type = "email.delivered"
	if !s.shouldSucceed() {
		ev.Type = "email.sent"
	}
	ev.Data.From = from
	ev.Data.To = to
	ev.Data.Subject = subject
	ev.Data.EmailID = emailID
	s.postJSON("/webhooks/email", ev)
}

// Handler exposes the fake provider APIs.
type Handler struct {
	sim *Simulator
}

func NewHandler(sim *Simulator) *Handler {
	return &Handler{sim: sim}
}

// CreateCall handles the voice provider's create-phone-call endpoint.
func (h *Handler) CreateCall(c *gin.Context) {
	var req CreateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	sessionID := "sess_" + uuid.New().String()[:13]
	callID := "call_" + uuid.New().String()[:13]

	log.Info().
		Str("session_id", sessionID).
		Str("to", req.ToNumber).
		Msg("Received create-call request")

	now := time.Now()
	h.sim.mu.Lock()
	h.sim.calls = append(h.sim.calls, ProviderCall{
		SessionID:      sessionID,
		CallID:         callID,
		FromNumber:     req.FromNumber,
		ToNumber:       req.ToNumber,
		StartTimestamp: now.UnixMilli(),
	})
	h.sim.mu.Unlock()

	go h.sim.simulateCall(sessionID, req.ToNumber)

	c.JSON(http.StatusCreated, CreateCallResponse{
		SessionID: sessionID,
		CallID:    callID,
	})
}

// ListCalls handles the voice provider's call-log endpoint.
func (h *Handler) ListCalls(c *gin.Context) {
	h.sim.mu.Lock()
	calls := make([]ProviderCall, len(h.sim.calls))
	copy(calls, h.sim.calls)
	h.sim.mu.Unlock()

	c.JSON(http.StatusOK, calls)
}

// SendMessage handles the messaging provider's send endpoint.
func (h *Handler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	sid := "SM" + strings.ReplaceAll(uuid.New().String(), "-", "")[:30]

	log.Info().
		Str("sid", sid).
		Str("to", req.To).
		Str("channel", req.Channel).
		Msg("Received message send request")

	h.sim.mu.Lock()
	h.sim.messages = append(h.sim.messages, ProviderMessage{
		Sid:         sid,
		From:        req.From,
		To:          req.To,
		Body:        req.Body,
		Status:      "sent",
		DateCreated: time.Now().UTC(),
	})
	h.sim.mu.Unlock()

	go h.sim.simulateMessage(sid, req.From, req.To, req.Channel)

	c.JSON(http.StatusOK, SendMessageResponse{
		MessageSid: sid,
		Status:     "queued",
	})
}

// ListMessages handles the messaging provider's message-log endpoint.
func (h *Handler) ListMessages(c *gin.Context) {
	phone := c.Query("phone")

	h.sim.mu.Lock()
	out := make([]ProviderMessage, 0, len(h.sim.messages))
	for _, m := range h.sim.messages {
		if phone == "" || m.From == phone || m.To == phone {
			out = append(out, m)
		}
	}
	h.sim.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"messages": out})
}

// SendEmail handles the email provider's send endpoint.
func (h *Handler) SendEmail(c *gin.Context) {
	var req SendEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	id := "em_" + uuid.New().String()

	log.Info().
		Str("email_id", id).
		Str("to", req.To).
		Msg("Received email send request")

	go h.sim.simulateEmail(id, req.From, req.To, req.Subject)

	c.JSON(http.StatusOK, SendEmailResponse{ID: id})
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "healthy",
		"timestamp":     time.Now(),
		"delivery_rate": h.sim.deliveryRate,
	})
}

// UpdateConfig allows changing the delivery rate at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}

	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	if config.DeliveryRate != nil {
		if *config.DeliveryRate >= 0 && *config.DeliveryRate <= 1.0 {
			h.sim.deliveryRate = *config.DeliveryRate
			log.Info().Float64("rate", *config.DeliveryRate).Msg("Updated delivery rate")
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":        "Configuration updated",
		"delivery_rate": h.sim.deliveryRate,
	})
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	// Add request logging middleware
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	// Voice provider surface
	router.POST("/v2/create-phone-call", handler.CreateCall)
	router.POST("/v2/list-calls", handler.ListCalls)

	// Messaging provider surface
	router.POST("/v1/messages", handler.SendMessage)
	router.GET("/v1/messages", handler.ListMessages)

	// Email provider surface
	router.POST("/emails", handler.SendEmail)

	router.PUT("/config", handler.UpdateConfig)
	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	// Get configuration from environment
	port := getEnv("PORT", "8081")
	webhookBase := getEnv("WEBHOOK_BASE_URL", "http://localhost:8080/api/v1")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 1*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 5*time.Second)

	log.Info().
		Str("port", port).
		Str("webhook_base", webhookBase).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting provider simulator")

	sim := NewSimulator(webhookBase, deliveryRate, minDelay, maxDelay)
	handler := NewHandler(sim)
	router := SetupRouter(handler)

	// Setup HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
