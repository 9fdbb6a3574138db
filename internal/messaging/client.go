// Package messaging talks to the external messaging provider that carries
// candidate conversations.
package messaging

import (
	"context"
	"errors"
	"time"
)

// SentMessage is the provider's record of a message this system sent.
type SentMessage struct {
	ID        string     `json:"id"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Profile is the public profile of a messaging target.
type Profile struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Headline string `json:"headline,omitempty"`
}

// Chat is a newly created chat with its first message.
type Chat struct {
	ID        string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

// Invite is a connection invitation.
type Invite struct {
	ID string `json:"invitation_id"`
}

// Client is the messaging capability.
type Client interface {
	SendMessage(ctx context.Context, channelID, text string) (SentMessage, error)
	FetchProfile(ctx context.Context, targetID string) (Profile, error)
	CreateChat(ctx context.Context, targetIDs []string, initialText string) (Chat, error)
	SendInvite(ctx context.Context, targetID, note string) (Invite, error)
}

// ErrNotConfigured is returned by Disabled for every call.
var ErrNotConfigured = errors.New("messaging provider not configured")

// Disabled is the Client used when no provider is configured. Sends fail,
// so replies park as pending and pitches stay pending until a provider is set.
type Disabled struct{}

func (Disabled) SendMessage(context.Context, string, string) (SentMessage, error) {
	return SentMessage{}, ErrNotConfigured
}

func (Disabled) FetchProfile(context.Context, string) (Profile, error) {
	return Profile{}, ErrNotConfigured
}

func (Disabled) CreateChat(context.Context, []string, string) (Chat, error) {
	return Chat{}, ErrNotConfigured
}

func (Disabled) SendInvite(context.Context, string, string) (Invite, error) {
	return Invite{}, ErrNotConfigured
}
