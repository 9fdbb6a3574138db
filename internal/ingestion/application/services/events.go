package services

import "time"

// MessagingEvent is the body of a messaging webhook. ChannelID is the only
// key that ties a message to a conversation.
type MessagingEvent struct {
	EventID     string     `json:"event_id" validate:"max=255"`
	Type        string     `json:"type" validate:"required,max=64"`
	ChannelID   string     `json:"chat_id" validate:"max=255"`
	MessageID   string     `json:"message_id" validate:"max=255"`
	ContactID   string     `json:"contact_id" validate:"max=255"`
	ContactName string     `json:"contact_name" validate:"max=255"`
	FromSelf    bool       `json:"from_self"`
	Text        string     `json:"text" validate:"max=20000"`
	SentAt      *time.Time `json:"timestamp"`
}

// CalendarEvent is the body of a booking webhook. It carries no internal
// id, only what the invitee typed and the link they booked through.
type CalendarEvent struct {
	EventID     string     `json:"event_id" validate:"max=255"`
	Type        string     `json:"type" validate:"required,max=64"`
	InviteeName string     `json:"invitee_name" validate:"max=255"`
	ResourceURL string     `json:"resource_url" validate:"omitempty,url,max=2048"`
	ScheduledAt *time.Time `json:"scheduled_at"`
}

// DeliveryEvent is a delivery-status ping for an outbound message.
type DeliveryEvent struct {
	EventID     string `json:"event_id" validate:"max=255"`
	Type        string `json:"type" validate:"required,max=64"`
	ChannelID   string `json:"chat_id" validate:"max=255"`
	MessageID   string `json:"message_id" validate:"max=255"`
	RecipientID string `json:"recipient_id" validate:"max=255"`
	Permanent   bool   `json:"permanent"`
	Reason      string `json:"reason" validate:"max=1024"`
}
