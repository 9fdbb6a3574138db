package queries

import (
	"context"
	"time"

	"github.com/felixgeelhaar/talentreach/internal/conversations/domain"
	"github.com/google/uuid"
)

// MessageDTO is one transcript entry.
type MessageDTO struct {
	Seq               int64      `json:"seq"`
	Role              string     `json:"role"`
	Content           string     `json:"content"`
	ExternalMessageID string     `json:"external_message_id,omitempty"`
	ExternalCreatedAt *time.Time `json:"external_created_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// ConversationDTO is the read model of a conversation.
type ConversationDTO struct {
	ID                  uuid.UUID    `json:"id"`
	ExternalChannelID   string       `json:"external_channel_id"`
	CandidateExternalID string       `json:"candidate_external_id"`
	CandidateName       string       `json:"candidate_name,omitempty"`
	AttemptID           *uuid.UUID   `json:"attempt_id,omitempty"`
	Stage               string       `json:"stage"`
	Status              string       `json:"status"`
	EscalationReason    string       `json:"escalation_reason,omitempty"`
	LastMessageBy       string       `json:"last_message_by,omitempty"`
	LastMessageAt       *time.Time   `json:"last_message_at,omitempty"`
	UpdatedAt           time.Time    `json:"updated_at"`
	Messages            []MessageDTO `json:"messages,omitempty"`
}

// ToConversationDTO converts a conversation. The transcript is included
// only when withTranscript is set.
func ToConversationDTO(c *domain.Conversation, withTranscript bool) ConversationDTO {
	dto := ConversationDTO{
		ID:                  c.ID(),
		ExternalChannelID:   c.ExternalChannelID(),
		CandidateExternalID: c.CandidateExternalID(),
		CandidateName:       c.CandidateName(),
		AttemptID:           c.AttemptID(),
		Stage:               string(c.Stage()),
		Status:              string(c.Status()),
		EscalationReason:    c.EscalationReason(),
		LastMessageBy:       string(c.LastMessageBy()),
		LastMessageAt:       c.LastMessageAt(),
		UpdatedAt:           c.UpdatedAt(),
	}
	if withTranscript {
		for _, m := range c.Transcript() {
			dto.Messages = append(dto.Messages, MessageDTO{
				Seq:               m.Seq,
				Role:              string(m.Role),
				Content:           m.Content,
				ExternalMessageID: m.ExternalMessageID,
				ExternalCreatedAt: m.ExternalCreatedAt,
				CreatedAt:         m.CreatedAt,
			})
		}
	}
	return dto
}

// ListEscalationsQuery lists conversations waiting for a human.
type ListEscalationsQuery struct {
	TenantID uuid.UUID
	Limit    int
}

// ListEscalationsHandler handles ListEscalationsQuery.
type ListEscalationsHandler struct {
	repo domain.Repository
}

// NewListEscalationsHandler creates a new ListEscalationsHandler.
func NewListEscalationsHandler(repo domain.Repository) *ListEscalationsHandler {
	return &ListEscalationsHandler{repo: repo}
}

// Handle returns escalated conversations, most recently updated first.
func (h *ListEscalationsHandler) Handle(ctx context.Context, q ListEscalationsQuery) ([]ConversationDTO, error) {
	conversations, err := h.repo.ListByStatus(ctx, q.TenantID, domain.StatusEscalated, q.Limit)
	if err != nil {
		return nil, err
	}
	dtos := make([]ConversationDTO, 0, len(conversations))
	for _, c := range conversations {
		dtos = append(dtos, ToConversationDTO(c, false))
	}
	return dtos, nil
}

// GetConversationQuery loads one conversation by id or channel id.
type GetConversationQuery struct {
	TenantID          uuid.UUID
	ConversationID    uuid.UUID
	ExternalChannelID string
}

// GetConversationHandler handles GetConversationQuery.
type GetConversationHandler struct {
	repo domain.Repository
}

// NewGetConversationHandler creates a new GetConversationHandler.
func NewGetConversationHandler(repo domain.Repository) *GetConversationHandler {
	return &GetConversationHandler{repo: repo}
}

// Handle returns the conversation with its transcript.
func (h *GetConversationHandler) Handle(ctx context.Context, q GetConversationQuery) (ConversationDTO, error) {
	var (
		c   *domain.Conversation
		err error
	)
	if q.ConversationID != uuid.Nil {
		c, err = h.repo.FindByID(ctx, q.TenantID, q.ConversationID)
	} else {
		c, err = h.repo.FindByChannelID(ctx, q.TenantID, q.ExternalChannelID)
	}
	if err != nil {
		return ConversationDTO{}, err
	}
	return ToConversationDTO(c, true), nil
}

// PendingReplyDTO is the read model of a parked reply.
type PendingReplyDTO struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Content        string    `json:"content"`
	ResourceRef    string    `json:"resource_ref,omitempty"`
	TargetStage    string    `json:"target_stage"`
	LastError      string    `json:"last_error"`
	Attempts       int       `json:"attempts"`
	CreatedAt      time.Time `json:"created_at"`
}

// ListPendingRepliesHandler lists replies waiting for a manual retry.
type ListPendingRepliesHandler struct {
	repo domain.PendingReplyRepository
}

// NewListPendingRepliesHandler creates a new ListPendingRepliesHandler.
func NewListPendingRepliesHandler(repo domain.PendingReplyRepository) *ListPendingRepliesHandler {
	return &ListPendingRepliesHandler{repo: repo}
}

// Handle returns open pending replies, oldest first.
func (h *ListPendingRepliesHandler) Handle(ctx context.Context, tenantID uuid.UUID) ([]PendingReplyDTO, error) {
	replies, err := h.repo.ListOpen(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	dtos := make([]PendingReplyDTO, 0, len(replies))
	for _, r := range replies {
		dtos = append(dtos, PendingReplyDTO{
			ID:             r.ID(),
			ConversationID: r.ConversationID(),
			Content:        r.Content(),
			ResourceRef:    r.ResourceRef(),
			TargetStage:    string(r.TargetStage()),
			LastError:      r.LastError(),
			Attempts:       r.Attempts(),
			CreatedAt:      r.CreatedAt(),
		})
	}
	return dtos, nil
}
