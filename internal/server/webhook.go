package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/shanbot/shanbot/internal/biz/domain"
	"github.com/shanbot/shanbot/internal/service"
)

// webhookPayload is the raw ManyChat webhook shape. Only the fields the
// core needs are decoded; everything else is ignored at the boundary.
type webhookPayload struct {
	EventID    string `json:"event_id"`
	Subscriber struct {
		ID string `json:"id"`
	} `json:"subscriber"`
	Message struct {
		Text       string `json:"text"`
		Attachment *struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"attachment"`
	} `json:"message"`
	Timestamp int64 `json:"timestamp"` // unix seconds, 0 = use receipt time
}

// WebhookServer exposes the inbound webhook and the operator API
type WebhookServer struct {
	scheduler *service.DebounceScheduler
	gate      *service.ReviewGate
	policies  *service.PolicyStore
	secret    string
	seen      *gocache.Cache // event id dedup
	log       zerolog.Logger

	httpServer *http.Server
}

// NewWebhookServer creates a new webhook server
func NewWebhookServer(
	scheduler *service.DebounceScheduler,
	gate *service.ReviewGate,
	policies *service.PolicyStore,
	port int,
	secret string,
	log zerolog.Logger,
) *WebhookServer {
	s := &WebhookServer{
		scheduler: scheduler,
		gate:      gate,
		policies:  policies,
		secret:    secret,
		seen:      gocache.New(5*time.Minute, 10*time.Minute),
		log:       log.With().Str("component", "server").Logger(),
	}

	router := mux.NewRouter()
	router.HandleFunc("/webhook/manychat", s.handleWebhook).Methods(http.MethodPost)
	router.HandleFunc("/api/reviews", s.handleListReviews).Methods(http.MethodGet)
	router.HandleFunc("/api/reviews/{id}/approve", s.handleApprove).Methods(http.MethodPost)
	router.HandleFunc("/api/reviews/{id}/reject", s.handleReject).Methods(http.MethodPost)
	router.HandleFunc("/api/automode", s.handleGetAutoMode).Methods(http.MethodGet)
	router.HandleFunc("/api/automode", s.handleSetAutoMode).Methods(http.MethodPut)
	router.HandleFunc("/api/buffer/summary", s.handleBufferSummary).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Handler exposes the router for tests
func (s *WebhookServer) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start starts the HTTP server, blocking until shutdown
func (s *WebhookServer) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the HTTP server
func (s *WebhookServer) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = s.httpServer.Shutdown(ctx)
}

// handleWebhook accepts one chat-platform event, adapts it into a
// validated inbound message, and hands it to the debounce scheduler.
// Always answers quickly; processing happens after the response.
func (s *WebhookServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.log.Warn().Str("remote", r.RemoteAddr).Msg("webhook with bad secret")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var payload webhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}

	inbound, err := adaptPayload(&payload, time.Now())
	if err != nil {
		s.log.Warn().Err(err).Msg("rejected malformed webhook payload")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Platforms redeliver on slow responses; drop exact repeats.
	if inbound.EventID != "" {
		if _, dup := s.seen.Get(inbound.EventID); dup {
			s.log.Debug().Str("event", inbound.EventID).Msg("duplicate event ignored")
			w.WriteHeader(http.StatusOK)
			return
		}
		s.seen.SetDefault(inbound.EventID, struct{}{})
	}

	s.scheduler.OnMessageReceived(domain.FromInbound(inbound))
	w.WriteHeader(http.StatusOK)
}

// adaptPayload validates the raw payload into an InboundMessage
func adaptPayload(payload *webhookPayload, receivedAt time.Time) (*domain.InboundMessage, error) {
	if payload.Subscriber.ID == "" {
		return nil, fmt.Errorf("missing subscriber id")
	}

	msg := &domain.InboundMessage{
		EventID:    payload.EventID,
		Identity:   domain.Identity(payload.Subscriber.ID),
		Text:       payload.Message.Text,
		ReceivedAt: receivedAt,
	}
	if payload.Timestamp > 0 {
		msg.ReceivedAt = time.Unix(payload.Timestamp, 0)
	}
	if att := payload.Message.Attachment; att != nil {
		msg.AttachmentRef = att.URL
		msg.AttachmentKind = attachmentKind(att.Type)
	}
	return msg, nil
}

func attachmentKind(raw string) domain.AttachmentKind {
	switch raw {
	case "image":
		return domain.AttachmentImage
	case "audio":
		return domain.AttachmentAudio
	case "video":
		return domain.AttachmentVideo
	case "share", "story_mention":
		return domain.AttachmentShare
	default:
		return domain.AttachmentNone
	}
}

func (s *WebhookServer) authorized(r *http.Request) bool {
	if s.secret == "" {
		return true
	}
	got := r.Header.Get("X-Webhook-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) == 1
}

// ========== Operator API ==========

func (s *WebhookServer) handleListReviews(w http.ResponseWriter, r *http.Request) {
	pending, err := s.gate.ListPending(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"reviews": pending})
}

func (s *WebhookServer) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	status, err := s.gate.Approve(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"id": id, "status": status})
}

func (s *WebhookServer) handleReject(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&body)
	}

	status, err := s.gate.Reject(r.Context(), id, body.Reason)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"id": id, "status": status})
}

// autoModeBody is the wire form of the auto-mode policy
type autoModeBody struct {
	Enabled          bool `json:"enabled"`
	BaseDelaySeconds int  `json:"base_delay_seconds"`
}

func (s *WebhookServer) handleGetAutoMode(w http.ResponseWriter, r *http.Request) {
	policy := s.policies.Get()
	writeJSON(w, autoModeBody{
		Enabled:          policy.Enabled,
		BaseDelaySeconds: int(policy.BaseDelay.Seconds()),
	})
}

func (s *WebhookServer) handleSetAutoMode(w http.ResponseWriter, r *http.Request) {
	var body autoModeBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if body.BaseDelaySeconds < 0 {
		http.Error(w, "base_delay_seconds must be >= 0", http.StatusBadRequest)
		return
	}

	current := s.policies.Get()
	policy := domain.AutoModePolicy{
		Enabled:   body.Enabled,
		BaseDelay: time.Duration(body.BaseDelaySeconds) * time.Second,
	}
	if body.BaseDelaySeconds == 0 {
		policy.BaseDelay = current.BaseDelay // keep the configured floor
	}
	s.policies.Set(policy)

	s.log.Info().Bool("enabled", policy.Enabled).Dur("baseDelay", policy.BaseDelay).Msg("auto mode updated")
	writeJSON(w, autoModeBody{Enabled: policy.Enabled, BaseDelaySeconds: int(policy.BaseDelay.Seconds())})
}

func (s *WebhookServer) handleBufferSummary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"buffers": s.scheduler.Summary()})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
