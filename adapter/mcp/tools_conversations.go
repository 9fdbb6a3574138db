package mcp

import (
	"context"
	"errors"
	"strings"

	"github.com/felixgeelhaar/mcp-go"
	"github.com/felixgeelhaar/talentreach/adapter/cli"
	"github.com/felixgeelhaar/talentreach/internal/conversations/application/commands"
	"github.com/felixgeelhaar/talentreach/internal/conversations/application/queries"
	"github.com/google/uuid"
)

type escalationListInput struct {
	Limit int `json:"limit,omitempty"`
}

type conversationGetInput struct {
	ConversationID string `json:"conversation_id,omitempty"`
	ChannelID      string `json:"channel_id,omitempty"`
}

type conversationIDInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"required"`
}

type replyRetryInput struct {
	PendingReplyID string `json:"pending_reply_id" jsonschema:"required"`
}

type replySendInput struct {
	ConversationID string `json:"conversation_id" jsonschema:"required"`
	Text           string `json:"text" jsonschema:"required"`
}

type replyRetryResult struct {
	Delivered      bool      `json:"delivered"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Stage          string    `json:"stage,omitempty"`
}

type conversationTools struct {
	app *cli.App
}

func registerConversationTools(srv *mcp.Server, deps ToolDependencies) error {
	tools := conversationTools{app: deps.App}

	srv.Tool("escalations.list").
		Description("List conversations waiting for a human, most recently updated first").
		Handler(tools.listEscalations)

	srv.Tool("conversation.get").
		Description("Get a conversation with its full transcript by conversation_id or channel_id").
		Handler(tools.getConversation)

	srv.Tool("escalation.resolve").
		Description("Hand an escalated conversation back to automation").
		Handler(tools.resolveEscalation)

	srv.Tool("replies.pending").
		Description("List replies that failed to send and wait for a retry").
		Handler(tools.listPendingReplies)

	srv.Tool("reply.retry").
		Description("Resend a reply that failed to send").
		Handler(tools.retryReply)

	srv.Tool("reply.send").
		Description("Send an operator-written reply; the conversation keeps its status").
		Handler(tools.sendReply)

	return nil
}

func (t conversationTools) listEscalations(ctx context.Context, input escalationListInput) ([]queries.ConversationDTO, error) {
	if t.app.ListEscalationsHandler == nil {
		return nil, needsDatabase("escalation listing")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	return t.app.ListEscalationsHandler.Handle(ctx, queries.ListEscalationsQuery{
		TenantID: t.app.TenantID,
		Limit:    limit,
	})
}

func (t conversationTools) getConversation(ctx context.Context, input conversationGetInput) (queries.ConversationDTO, error) {
	if t.app.GetConversationHandler == nil {
		return queries.ConversationDTO{}, needsDatabase("conversation lookup")
	}
	id, err := optionalID("conversation_id", input.ConversationID)
	if err != nil {
		return queries.ConversationDTO{}, err
	}
	channelID := strings.TrimSpace(input.ChannelID)
	if id == uuid.Nil && channelID == "" {
		return queries.ConversationDTO{}, errors.New("conversation_id or channel_id is required")
	}
	return t.app.GetConversationHandler.Handle(ctx, queries.GetConversationQuery{
		TenantID:          t.app.TenantID,
		ConversationID:    id,
		ExternalChannelID: channelID,
	})
}

func (t conversationTools) resolveEscalation(ctx context.Context, input conversationIDInput) (queries.ConversationDTO, error) {
	if t.app.ResolveEscalationHandler == nil {
		return queries.ConversationDTO{}, needsDatabase("escalation resolution")
	}
	id, err := requireID("conversation_id", input.ConversationID)
	if err != nil {
		return queries.ConversationDTO{}, err
	}
	conv, err := t.app.ResolveEscalationHandler.Handle(ctx, commands.ResolveEscalationCommand{
		TenantID:       t.app.TenantID,
		ConversationID: id,
	})
	if err != nil {
		return queries.ConversationDTO{}, err
	}
	return queries.ToConversationDTO(conv, false), nil
}

func (t conversationTools) listPendingReplies(ctx context.Context, input struct{}) ([]queries.PendingReplyDTO, error) {
	if t.app.ListPendingRepliesHandler == nil {
		return nil, needsDatabase("pending reply listing")
	}
	return t.app.ListPendingRepliesHandler.Handle(ctx, t.app.TenantID)
}

func (t conversationTools) retryReply(ctx context.Context, input replyRetryInput) (replyRetryResult, error) {
	if t.app.Orchestrator == nil {
		return replyRetryResult{}, needsDatabase("reply retry")
	}
	id, err := requireID("pending_reply_id", input.PendingReplyID)
	if err != nil {
		return replyRetryResult{}, err
	}
	outcome, err := t.app.Orchestrator.RetryPendingReply(ctx, t.app.TenantID, id)
	if err != nil {
		return replyRetryResult{}, err
	}
	return replyRetryResult{
		Delivered:      outcome.Delivered,
		ConversationID: outcome.ConversationID,
		Stage:          string(outcome.NewStage),
	}, nil
}

func (t conversationTools) sendReply(ctx context.Context, input replySendInput) (queries.ConversationDTO, error) {
	if t.app.SendManualReplyHandler == nil {
		return queries.ConversationDTO{}, needsDatabase("manual reply")
	}
	id, err := requireID("conversation_id", input.ConversationID)
	if err != nil {
		return queries.ConversationDTO{}, err
	}
	if strings.TrimSpace(input.Text) == "" {
		return queries.ConversationDTO{}, errors.New("text is required")
	}
	conv, err := t.app.SendManualReplyHandler.Handle(ctx, commands.SendManualReplyCommand{
		TenantID:       t.app.TenantID,
		ConversationID: id,
		Text:           input.Text,
	})
	if err != nil {
		return queries.ConversationDTO{}, err
	}
	return queries.ToConversationDTO(conv, false), nil
}
