package composer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/external"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
)

// Config configures the HTTP composer.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Breaker external.BreakerConfig
}

// HTTPComposer calls a composer endpoint that accepts a DraftRequest and
// answers with a Draft. Drafts are not retried; a slow composer escalates.
type HTTPComposer struct {
	url     string
	apiKey  string
	http    *http.Client
	timeout time.Duration
	breaker *external.Breaker
	logger  *slog.Logger
}

// NewHTTPComposer creates an HTTP composer.
func NewHTTPComposer(cfg Config, metrics observability.Metrics, logger *slog.Logger) (*HTTPComposer, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("composer url is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.Breaker.Name == "" {
		cfg.Breaker.Name = "composer"
	}
	return &HTTPComposer{
		url:     cfg.URL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{},
		timeout: cfg.Timeout,
		breaker: external.NewBreaker(cfg.Breaker, metrics, logger),
		logger:  logger.With("component", "composer"),
	}, nil
}

// Draft asks the composer for text.
func (c *HTTPComposer) Draft(ctx context.Context, req DraftRequest) (Draft, error) {
	var out Draft
	call := external.Request{
		Op:     "draft",
		Method: http.MethodPost,
		URL:    c.url,
		Body:   req,
	}
	if c.apiKey != "" {
		call.Header = http.Header{"Authorization": []string{"Bearer " + c.apiKey}}
	}

	err := c.breaker.Do(ctx, call.Op, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		return external.DoJSON(callCtx, c.http, call, &out)
	})
	if err != nil {
		c.logger.WarnContext(ctx, "composer draft failed", "purpose", string(req.Purpose), "error", err)
		return Draft{}, fmt.Errorf("composer: %w", err)
	}
	out.Text = strings.TrimSpace(out.Text)
	return out, nil
}
