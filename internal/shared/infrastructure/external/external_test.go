package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		status    int
		kind      Kind
		transient bool
	}{
		{http.StatusTooManyRequests, KindRateLimited, true},
		{http.StatusNotFound, KindNotFound, false},
		{http.StatusUnauthorized, KindUnauthorized, false},
		{http.StatusForbidden, KindUnauthorized, false},
		{http.StatusGatewayTimeout, KindTimeout, true},
		{http.StatusBadGateway, KindUnknown, true},
		{http.StatusBadRequest, KindUnknown, false},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatus("send_message", tt.status, "body")
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Equal(t, tt.transient, IsTransient(err))
		})
	}

	assert.NoError(t, FromStatus("send_message", http.StatusCreated, ""))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindTimeout, KindOf(fmt.Errorf("wrapped: %w", context.DeadlineExceeded)))
	assert.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))

	assert.True(t, IsPermanent(New("fetch_profile", KindNotFound, errors.New("gone"))))
	assert.True(t, IsConfiguration(New("send_message", KindUnauthorized, errors.New("bad token"))))
	assert.False(t, IsTransient(New("draft", KindUnknown, gobreaker.ErrOpenState)))
}

func TestRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

	t.Run("retries transient failures until success", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			if calls < 3 {
				return New("send_message", KindRateLimited, errors.New("slow down"))
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on permanent failure", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			return New("send_message", KindNotFound, errors.New("no such chat"))
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			return New("send_message", KindTimeout, errors.New("timeout"))
		})
		assert.Equal(t, KindTimeout, KindOf(err))
		assert.Equal(t, 3, calls)
	})

	t.Run("cancellation during the wait returns the last failure", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}
		calls := 0
		err := Retry(ctx, slow, func(context.Context) error {
			calls++
			cancel()
			return New("send_message", KindTimeout, errors.New("timeout"))
		})
		assert.Equal(t, KindTimeout, KindOf(err))
		assert.Equal(t, 1, calls)
	})

	t.Run("single attempt policy does not retry", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), RetryPolicy{}, func(context.Context) error {
			calls++
			return New("send_message", KindRateLimited, errors.New("slow down"))
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
	})
}

func TestRetryPolicy_BackOffDoublesUpToMax(t *testing.T) {
	b := RetryPolicy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}.backOff()

	var delays []time.Duration
	for range 4 {
		delays = append(delays, b.NextBackOff())
	}
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second, 3 * time.Second}, delays)
}

func TestBreaker(t *testing.T) {
	metrics := observability.NewInMemoryMetrics()
	breaker := NewBreaker(BreakerConfig{Name: "composer", MaxFailures: 2, OpenTimeout: time.Minute}, metrics, nil)
	ctx := context.Background()

	notFound := func(context.Context) error { return New("draft", KindNotFound, errors.New("missing")) }
	timeout := func(context.Context) error { return New("draft", KindTimeout, errors.New("slow")) }

	// Permanent failures do not trip the breaker.
	for i := 0; i < 3; i++ {
		require.Error(t, breaker.Do(ctx, "draft", notFound))
	}
	assert.Equal(t, "closed", breaker.State())

	require.Error(t, breaker.Do(ctx, "draft", timeout))
	require.Error(t, breaker.Do(ctx, "draft", timeout))
	assert.Equal(t, "open", breaker.State())

	called := false
	err := breaker.Do(ctx, "draft", func(context.Context) error { called = true; return nil })
	require.Error(t, err)
	assert.False(t, called)
	assert.True(t, IsOpen(err))
	assert.Equal(t, KindUnknown, KindOf(err))
	assert.False(t, IsTransient(err))

	assert.Equal(t, int64(3), metrics.GetCounter(observability.MetricExternalCalls, observability.T("op", "draft"), observability.T("kind", "not_found")))
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricExternalCalls, observability.T("op", "draft"), observability.T("kind", "unknown")))
}

func TestDoJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"msg-1"}`))
		case "/limited":
			w.WriteHeader(http.StatusTooManyRequests)
		}
	}))
	defer server.Close()

	var out struct {
		ID string `json:"id"`
	}
	err := DoJSON(context.Background(), server.Client(), Request{
		Op:     "send_message",
		Method: http.MethodPost,
		URL:    server.URL + "/ok",
		Header: http.Header{"Authorization": []string{"Bearer token"}},
		Body:   map[string]string{"text": "hi"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", out.ID)

	err = DoJSON(context.Background(), server.Client(), Request{Op: "send_message", Method: http.MethodPost, URL: server.URL + "/limited"}, nil)
	assert.Equal(t, KindRateLimited, KindOf(err))
}
