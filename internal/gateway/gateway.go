// Package gateway defines the transport-neutral contracts between the
// messaging platform and the routing engine. The dispatcher consumes Events
// and talks back through a Sender; it never imports a concrete transport.
//
// The engine requires only three things of a gateway: stable external
// identifiers (chat ids, message ids), a reply-link primitive, and
// at-least-once inbound delivery.
package gateway

import "context"

// Event is one inbound text message delivered by the gateway.
type Event struct {
	// UpdateID is the gateway's delivery sequence number, used only for
	// long-poll offset bookkeeping.
	UpdateID int64

	// ChatID identifies the sender's private chat with the bot.
	ChatID int64

	// MessageID is the gateway-assigned id of this message.
	MessageID int64

	// Text is the message body. Non-text payloads are dropped upstream.
	Text string

	// Sender display identity as last reported by the gateway.
	Username  string
	FirstName string
	LastName  string

	// ReplyToID is the gateway id of the message this one replies to,
	// or zero when the message is not a reply.
	ReplyToID int64

	// ReplyToText is the body of the replied-to message when the gateway
	// carries it on the event. Used only by the marker-parse resolver tier.
	ReplyToText string
}

// IsReply reports whether the event references an earlier message.
func (e Event) IsReply() bool { return e.ReplyToID != 0 }

// SendRequest describes one outbound message.
type SendRequest struct {
	ChatID int64
	Text   string

	// ReplyTo, when non-zero, asks the gateway to link the outbound
	// message to an earlier one in the same chat.
	ReplyTo int64
}

// Sender delivers outbound messages. Send returns the gateway-assigned id of
// the sent message; that id is what mappings are recorded against.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (int64, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, req SendRequest) (int64, error)

// Send implements Sender.
func (f SenderFunc) Send(ctx context.Context, req SendRequest) (int64, error) { return f(ctx, req) }
