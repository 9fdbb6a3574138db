package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/felixgeelhaar/talentreach/internal/ingestion/application/services"
	"github.com/felixgeelhaar/talentreach/internal/ingestion/domain"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/go-playground/validator/v10"
)

// MaxWebhookBodySize caps the accepted request body.
const MaxWebhookBodySize = 1 << 20

// Outcomes for requests rejected before dispatch.
const (
	outcomeUnauthorized = "unauthorized"
	outcomeInvalid      = "invalid"
)

// EventDispatcher processes decoded webhook events.
type EventDispatcher interface {
	HandleMessaging(ctx context.Context, ev services.MessagingEvent) domain.Result
	HandleCalendar(ctx context.Context, ev services.CalendarEvent) domain.Result
	HandleDelivery(ctx context.Context, ev services.DeliveryEvent) domain.Result
}

// WebhookSecrets are the shared secrets per source. An empty secret
// disables signature checks for that source.
type WebhookSecrets struct {
	Messaging string
	Calendar  string
	Delivery  string
}

// WebhookResponse is the body of every acknowledged webhook.
type WebhookResponse struct {
	Processed bool   `json:"processed"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason"`
}

// WebhookHandler authenticates, decodes and validates provider webhooks.
type WebhookHandler struct {
	dispatcher EventDispatcher
	secrets    WebhookSecrets
	validate   *validator.Validate
	metrics    observability.Metrics
	logger     *slog.Logger
}

// WebhookHandlerConfig holds dependencies for the webhook handler.
type WebhookHandlerConfig struct {
	Dispatcher EventDispatcher
	Secrets    WebhookSecrets
	Metrics    observability.Metrics
	Logger     *slog.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(cfg WebhookHandlerConfig) *WebhookHandler {
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NoopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &WebhookHandler{
		dispatcher: cfg.Dispatcher,
		secrets:    cfg.Secrets,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		metrics:    cfg.Metrics,
		logger:     cfg.Logger.With("component", "webhook_handler"),
	}
}

// Messaging handles POST /webhooks/messaging
func (h *WebhookHandler) Messaging(w http.ResponseWriter, r *http.Request) {
	var ev services.MessagingEvent
	if !h.decode(w, r, domain.SourceMessaging, h.secrets.Messaging, &ev) {
		return
	}
	writeResult(w, h.dispatcher.HandleMessaging(r.Context(), ev))
}

// Calendar handles POST /webhooks/calendar
func (h *WebhookHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	var ev services.CalendarEvent
	if !h.decode(w, r, domain.SourceCalendar, h.secrets.Calendar, &ev) {
		return
	}
	writeResult(w, h.dispatcher.HandleCalendar(r.Context(), ev))
}

// Delivery handles POST /webhooks/delivery
func (h *WebhookHandler) Delivery(w http.ResponseWriter, r *http.Request) {
	var ev services.DeliveryEvent
	if !h.decode(w, r, domain.SourceDelivery, h.secrets.Delivery, &ev) {
		return
	}
	writeResult(w, h.dispatcher.HandleDelivery(r.Context(), ev))
}

// decode reads the body, checks its signature and fills dst. It writes the
// error response itself and returns false when the request is rejected.
func (h *WebhookHandler) decode(w http.ResponseWriter, r *http.Request, source domain.Source, secret string, dst any) bool {
	ctx := r.Context()
	logger := h.logger.With("source", string(source))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxWebhookBodySize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reject(w, source, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		logger.WarnContext(ctx, "failed to read webhook body", "error", err)
		h.reject(w, source, http.StatusBadRequest, "error reading request body")
		return false
	}

	if !VerifySignature(secret, body, r.Header.Get(SignatureHeader)) {
		logger.WarnContext(ctx, "webhook signature mismatch", "remote_addr", r.RemoteAddr)
		h.metrics.Counter(observability.MetricWebhookEvents, 1,
			observability.T("source", string(source)), observability.T("outcome", outcomeUnauthorized))
		writeError(w, http.StatusUnauthorized, "invalid signature")
		return false
	}

	if err := json.Unmarshal(body, dst); err != nil {
		logger.WarnContext(ctx, "malformed webhook body", "error", err)
		h.reject(w, source, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	if err := h.validate.StructCtx(ctx, dst); err != nil {
		logger.WarnContext(ctx, "invalid webhook body", "error", err)
		h.reject(w, source, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func (h *WebhookHandler) reject(w http.ResponseWriter, source domain.Source, status int, message string) {
	h.metrics.Counter(observability.MetricWebhookEvents, 1,
		observability.T("source", string(source)), observability.T("outcome", outcomeInvalid))
	writeError(w, status, message)
}

func validationMessage(err error) string {
	var errs validator.ValidationErrors
	if errors.As(err, &errs) && len(errs) > 0 {
		return "invalid field " + errs[0].Field() + ": " + errs[0].Tag()
	}
	return "invalid body"
}

func writeResult(w http.ResponseWriter, res domain.Result) {
	writeJSON(w, http.StatusOK, WebhookResponse{
		Processed: res.Processed,
		Outcome:   res.Outcome,
		Reason:    res.Reason,
	})
}
