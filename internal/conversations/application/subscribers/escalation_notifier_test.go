package subscribers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/felixgeelhaar/talentreach/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscalationNotifier(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	c, err := domain.Start(domain.StartParams{
		TenantID:            uuid.New(),
		ExternalChannelID:   "chat-1",
		CandidateExternalID: "cand-1",
		CandidateName:       "Jane Doe",
		FirstMessage:        "Hello",
	}, now)
	require.NoError(t, err)
	_, err = c.Escalate(domain.ReasonLegal, now)
	require.NoError(t, err)

	reporter := &observability.RecordingReporter{}
	registry := eventbus.NewConsumerRegistry(observability.DiscardLogger())
	registry.Register(NewEscalationNotifier(reporter, observability.DiscardLogger()))

	escalated, err := json.Marshal(domain.NewConversationEscalated(c))
	require.NoError(t, err)
	require.NoError(t, registry.Dispatch(ctx, &eventbus.Envelope{
		EventID:    uuid.New(),
		RoutingKey: domain.RoutingKeyEscalated,
		Payload:    escalated,
	}))

	reply := domain.NewPendingReply(c, "Sorry for the delay", "", "", assert.AnError, now)
	failed, err := json.Marshal(reply.PullDomainEvents()[0])
	require.NoError(t, err)
	require.NoError(t, registry.Dispatch(ctx, &eventbus.Envelope{
		EventID:    uuid.New(),
		RoutingKey: domain.RoutingKeyReplySendFailed,
		Payload:    failed,
	}))

	require.NoError(t, registry.Dispatch(ctx, &eventbus.Envelope{
		EventID:    uuid.New(),
		RoutingKey: domain.RoutingKeyEscalated,
		Payload:    json.RawMessage(`"not an object"`),
	}))

	reports := reporter.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, "escalation", reports[0].Kind)
	assert.Equal(t, domain.ReasonLegal, reports[0].Fields["reason"])
	assert.Equal(t, "chat-1", reports[0].Fields["channel_id"])
	assert.Equal(t, "pending_reply", reports[1].Kind)
	assert.Equal(t, reply.ID().String(), reports[1].Fields["pending_reply_id"])
}
