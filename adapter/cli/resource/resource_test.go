package resource

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/talentreach/adapter/cli"
	internalApp "github.com/felixgeelhaar/talentreach/internal/app"
	"github.com/felixgeelhaar/talentreach/internal/app/apptest"
	"github.com/felixgeelhaar/talentreach/internal/resources/application/queries"
	"github.com/felixgeelhaar/talentreach/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocalModeTestApp(t *testing.T) *cli.App {
	t.Helper()

	container, err := internalApp.NewContainer(context.Background(), apptest.LocalConfig(t), observability.DiscardLogger())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	app := cli.NewApp(container)
	cli.SetApp(app)
	t.Cleanup(func() { cli.SetApp(nil) })
	return app
}

func listResources(t *testing.T, app *cli.App) []queries.ResourceDTO {
	t.Helper()
	resources, err := app.ListResourcesHandler.Handle(context.Background(), queries.ListResourcesQuery{TenantID: app.TenantID})
	require.NoError(t, err)
	return resources
}

func TestAddCmd_RegistersResource(t *testing.T) {
	app := setupLocalModeTestApp(t)

	ownerName = "Sam Recruiter"
	addCmd.SetContext(context.Background())

	err := addCmd.RunE(addCmd, []string{"https://cal.example.com/sam/intro"})
	require.NoError(t, err)

	resources := listResources(t, app)
	require.Len(t, resources, 1)
	assert.Equal(t, "Sam Recruiter", resources[0].OwnerName)
	assert.Equal(t, "https://cal.example.com/sam/intro", resources[0].ResourceURL)
	assert.True(t, resources[0].Active)
}

func TestAddCmd_RejectsInvalidURL(t *testing.T) {
	setupLocalModeTestApp(t)

	ownerName = "Sam Recruiter"
	addCmd.SetContext(context.Background())

	err := addCmd.RunE(addCmd, []string{"not a url"})
	assert.Error(t, err)
}

func TestDeactivateAndActivateCmd(t *testing.T) {
	app := setupLocalModeTestApp(t)
	ctx := context.Background()

	ownerName = "Sam Recruiter"
	addCmd.SetContext(ctx)
	require.NoError(t, addCmd.RunE(addCmd, []string{"https://cal.example.com/sam/intro"}))
	id := listResources(t, app)[0].ID.String()

	deactivateCmd.SetContext(ctx)
	require.NoError(t, deactivateCmd.RunE(deactivateCmd, []string{id}))
	assert.False(t, listResources(t, app)[0].Active)

	activateCmd.SetContext(ctx)
	require.NoError(t, activateCmd.RunE(activateCmd, []string{id}))
	assert.True(t, listResources(t, app)[0].Active)
}

func TestActivateCmd_InvalidID(t *testing.T) {
	setupLocalModeTestApp(t)

	activateCmd.SetContext(context.Background())
	err := activateCmd.RunE(activateCmd, []string{"not-a-uuid"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid resource ID")
}

func TestListCmd_EmptyList(t *testing.T) {
	setupLocalModeTestApp(t)

	listCmd.SetContext(context.Background())
	require.NoError(t, listCmd.RunE(listCmd, []string{}))
}

func TestCommands_RequireApp(t *testing.T) {
	cli.SetApp(nil)

	listCmd.SetContext(context.Background())
	err := listCmd.RunE(listCmd, []string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application not initialized")
}
