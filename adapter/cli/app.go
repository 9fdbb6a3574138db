package cli

import (
	appcontainer "github.com/felixgeelhaar/talentreach/internal/app"
	conversationCommands "github.com/felixgeelhaar/talentreach/internal/conversations/application/commands"
	conversationQueries "github.com/felixgeelhaar/talentreach/internal/conversations/application/queries"
	conversationServices "github.com/felixgeelhaar/talentreach/internal/conversations/application/services"
	outreachCommands "github.com/felixgeelhaar/talentreach/internal/outreach/application/commands"
	resourceCommands "github.com/felixgeelhaar/talentreach/internal/resources/application/commands"
	resourceQueries "github.com/felixgeelhaar/talentreach/internal/resources/application/queries"
	"github.com/google/uuid"
)

// App holds the CLI application dependencies.
type App struct {
	// Resource Handlers
	RegisterResourceHandler  *resourceCommands.RegisterResourceHandler
	SetResourceActiveHandler *resourceCommands.SetResourceActiveHandler
	ListResourcesHandler     *resourceQueries.ListResourcesHandler

	// Outreach Handlers
	StartOutreachHandler *outreachCommands.StartOutreachHandler

	// Conversation Command Handlers
	ResolveEscalationHandler *conversationCommands.ResolveEscalationHandler
	SendManualReplyHandler   *conversationCommands.SendManualReplyHandler

	// Conversation Query Handlers
	ListEscalationsHandler    *conversationQueries.ListEscalationsHandler
	GetConversationHandler    *conversationQueries.GetConversationHandler
	ListPendingRepliesHandler *conversationQueries.ListPendingRepliesHandler

	// Orchestrator resends parked replies.
	Orchestrator *conversationServices.Orchestrator

	// Container backs the long-running serve and worker commands.
	Container *appcontainer.Container

	TenantID uuid.UUID
}

// NewApp creates a CLI application backed by the container.
func NewApp(c *appcontainer.Container) *App {
	return &App{
		RegisterResourceHandler:   c.RegisterResourceHandler,
		SetResourceActiveHandler:  c.SetResourceActiveHandler,
		ListResourcesHandler:      c.ListResourcesHandler,
		StartOutreachHandler:      c.StartOutreachHandler,
		ResolveEscalationHandler:  c.ResolveEscalationHandler,
		SendManualReplyHandler:    c.SendManualReplyHandler,
		ListEscalationsHandler:    c.ListEscalationsHandler,
		GetConversationHandler:    c.GetConversationHandler,
		ListPendingRepliesHandler: c.ListPendingRepliesHandler,
		Orchestrator:              c.Orchestrator,
		Container:                 c,
		TenantID:                  c.Config.TenantID,
	}
}

var cliApp *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	cliApp = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return cliApp
}
