package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/external"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"golang.org/x/oauth2/clientcredentials"
)

// APIKeyHeader carries the provider API key when no OAuth client is configured.
const APIKeyHeader = "X-API-Key"

// Config configures the HTTP messaging client.
type Config struct {
	BaseURL      string
	APIKey       string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Timeout      time.Duration
	Retry        external.RetryPolicy
	Breaker      external.BreakerConfig
}

// HTTPClient implements Client against the provider's REST API. Every call
// runs through the circuit breaker, a per-call timeout and the retry policy.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	timeout time.Duration
	retry   external.RetryPolicy
	breaker *external.Breaker
	logger  *slog.Logger
}

// NewHTTPClient creates a provider client. With ClientID set, tokens come
// from the OAuth2 client credentials flow; otherwise APIKey is sent.
func NewHTTPClient(cfg Config, metrics observability.Metrics, logger *slog.Logger) (*HTTPClient, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("messaging provider base url is required")
	}
	if cfg.ClientID == "" && cfg.APIKey == "" {
		return nil, errors.New("messaging provider needs an api key or oauth client credentials")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = external.DefaultRetryPolicy()
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "messaging"
	}

	httpClient := &http.Client{}
	if cfg.ClientID != "" {
		oauth := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = oauth.Client(context.Background())
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpClient,
		timeout: cfg.Timeout,
		retry:   cfg.Retry,
		breaker: external.NewBreaker(cfg.Breaker, metrics, logger),
		logger:  logger.With("component", "messaging_client"),
	}, nil
}

// SendMessage posts text into an existing chat.
func (c *HTTPClient) SendMessage(ctx context.Context, channelID, text string) (SentMessage, error) {
	var out SentMessage
	err := c.call(ctx, external.Request{
		Op:     "send_message",
		Method: http.MethodPost,
		URL:    c.baseURL + "/chats/" + url.PathEscape(channelID) + "/messages",
		Body:   map[string]string{"text": text},
	}, &out)
	return out, err
}

// FetchProfile loads a target's profile.
func (c *HTTPClient) FetchProfile(ctx context.Context, targetID string) (Profile, error) {
	var out Profile
	err := c.call(ctx, external.Request{
		Op:     "fetch_profile",
		Method: http.MethodGet,
		URL:    c.baseURL + "/users/" + url.PathEscape(targetID),
	}, &out)
	return out, err
}

// CreateChat opens a chat with the targets and sends the first message.
func (c *HTTPClient) CreateChat(ctx context.Context, targetIDs []string, initialText string) (Chat, error) {
	var out Chat
	err := c.call(ctx, external.Request{
		Op:     "create_chat",
		Method: http.MethodPost,
		URL:    c.baseURL + "/chats",
		Body: map[string]any{
			"attendee_ids": targetIDs,
			"text":         initialText,
		},
	}, &out)
	if err == nil && out.ID == "" {
		err = external.New("create_chat", external.KindUnknown, errors.New("provider returned no chat id"))
	}
	return out, err
}

// SendInvite sends a connection invitation with an optional note.
func (c *HTTPClient) SendInvite(ctx context.Context, targetID, note string) (Invite, error) {
	body := map[string]string{"provider_id": targetID}
	if note != "" {
		body["message"] = note
	}
	var out Invite
	err := c.call(ctx, external.Request{
		Op:     "send_invite",
		Method: http.MethodPost,
		URL:    c.baseURL + "/invitations",
		Body:   body,
	}, &out)
	return out, err
}

func (c *HTTPClient) call(ctx context.Context, req external.Request, out any) error {
	if c.apiKey != "" {
		req.Header = http.Header{APIKeyHeader: []string{c.apiKey}}
	}
	err := external.Retry(ctx, c.retry, func(ctx context.Context) error {
		return c.breaker.Do(ctx, req.Op, func(ctx context.Context) error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return external.DoJSON(callCtx, c.http, req, out)
		})
	})
	if err != nil {
		if external.IsConfiguration(err) {
			c.logger.ErrorContext(ctx, "messaging provider rejected credentials", "op", req.Op, "error", err)
		}
		return fmt.Errorf("messaging %s: %w", req.Op, err)
	}
	return nil
}
