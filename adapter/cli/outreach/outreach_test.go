package outreach

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	internalApp "github.com/felixgeelhaar/talentreach/internal/app"
	"github.com/felixgeelhaar/talentreach/internal/app/apptest"
	"github.com/felixgeelhaar/talentreach/internal/messaging"
	"github.com/felixgeelhaar/talentreach/internal/outreach/application/commands"
	outreachServices "github.com/felixgeelhaar/talentreach/internal/outreach/application/services"
	"github.com/felixgeelhaar/talentreach/internal/outreach/domain"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubInviter struct {
	calls int
}

func (s *stubInviter) SendInvite(_ context.Context, _, _ string) (messaging.Invite, error) {
	s.calls++
	return messaging.Invite{ID: "inv-1"}, nil
}

func setupLocalModeTestApp(t *testing.T) (*cli.App, *internalApp.Container) {
	t.Helper()

	container, err := internalApp.NewContainer(context.Background(), apptest.LocalConfig(t), observability.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	app := cli.NewApp(container)
	cli.SetApp(app)
	t.Cleanup(func() { cli.SetApp(nil) })
	return app, container
}

func resetFlags() {
	candidateName = "Jane Doe"
	campaignRef = "backend-q3"
	jobRef = ""
	note = ""
}

func TestStartCmd_SendsInvite(t *testing.T) {
	app, container := setupLocalModeTestApp(t)
	ctx := context.Background()

	inviter := &stubInviter{}
	writer := outreachServices.EventWriter{
		Attempts:      container.AttemptRepo,
		Conversations: container.ConversationRepo,
		Outbox:        container.OutboxRepo,
	}
	app.StartOutreachHandler = commands.NewStartOutreachHandler(writer, container.UnitOfWork, inviter, container.Clock, observability.DiscardLogger())

	resetFlags()
	startCmd.SetContext(ctx)
	require.NoError(t, startCmd.RunE(startCmd, []string{"cand-1"}))
	assert.Equal(t, 1, inviter.calls)

	attempt, err := container.AttemptRepo.FindByCampaign(ctx, app.TenantID, "cand-1", "backend-q3")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConnectionRequested, attempt.Status())
	assert.Equal(t, "Jane Doe", attempt.CandidateName())

	// A second run leaves the progressed attempt alone
	require.NoError(t, startCmd.RunE(startCmd, []string{"cand-1"}))
	assert.Equal(t, 1, inviter.calls)
}

func TestStartCmd_RecordsAttemptWhenMessagingDisabled(t *testing.T) {
	app, container := setupLocalModeTestApp(t)
	ctx := context.Background()

	resetFlags()
	startCmd.SetContext(ctx)
	err := startCmd.RunE(startCmd, []string{"cand-2"})
	require.Error(t, err)
	assert.ErrorIs(t, err, messaging.ErrNotConfigured)

	attempt, err := container.AttemptRepo.FindByCampaign(ctx, app.TenantID, "cand-2", "backend-q3")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, attempt.Status())
}

func TestStartCmd_RequiresApp(t *testing.T) {
	cli.SetApp(nil)

	resetFlags()
	startCmd.SetContext(context.Background())
	err := startCmd.RunE(startCmd, []string{"cand-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application not initialized")
}
