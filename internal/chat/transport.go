// Package chat bridges the conversation engine to a chat platform.
package chat

import (
	"context"

	"traveladvisor/internal/types"
)

// InboundMessage is a platform event reduced to what the engine needs.
// Directed marks messages that mention the bot in a shared channel, as
// opposed to direct messages sent to the bot's own channel.
type InboundMessage struct {
	Text     string
	Channel  types.ID
	UserID   types.ID
	Directed bool
}

// Transport is the interface a platform adapter must satisfy.
type Transport interface {
	// Connect establishes the connection and identifies the bot user.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages. The channel is closed
	// when the context is cancelled. Listen must be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send posts text to the given channel or conversation.
	Send(ctx context.Context, channel types.ID, text string) error

	// DisplayName resolves a platform user id to a human-readable name.
	DisplayName(ctx context.Context, userID types.ID) (string, error)

	// Close shuts the connection down.
	Close() error
}
