package telegram

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/councilbot/go-relay-backend/internal/gateway"
)

// Poller long-polls getUpdates and hands each private text message to a
// handler as a gateway.Event. Updates the relay cannot route (bots, channel
// posts, media without text) are skipped with their offset acknowledged.
type Poller struct {
	Client  *Client
	Timeout time.Duration
	Log     zerolog.Logger
}

// Run polls until ctx is cancelled. Transient transport errors back off and
// retry; the loop never returns them.
func (p *Poller) Run(ctx context.Context, handle func(context.Context, gateway.Event)) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var offset int64
	backoff := time.Second
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, next, err := p.Client.getUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !isPollTimeout(err) {
				p.Log.Warn().Err(err).Dur("backoff", backoff).Msg("getUpdates failed")
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return ctx.Err()
				}
				if backoff < 30*time.Second {
					backoff *= 2
				}
			}
			continue
		}
		backoff = time.Second
		offset = next

		for _, u := range updates {
			ev, ok := toEvent(u)
			if !ok {
				continue
			}
			handle(ctx, ev)
		}
	}
}

// toEvent converts one update into a routable event. Reports false for
// updates the relay ignores.
func toEvent(u update) (gateway.Event, bool) {
	m := u.Message
	if m == nil || m.Chat == nil || m.From == nil || m.From.IsBot {
		return gateway.Event{}, false
	}
	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if text == "" {
		return gateway.Event{}, false
	}

	ev := gateway.Event{
		UpdateID:  u.UpdateID,
		ChatID:    m.Chat.ID,
		MessageID: m.MessageID,
		Text:      text,
		Username:  m.From.Username,
		FirstName: m.From.FirstName,
		LastName:  m.From.LastName,
	}
	if m.ReplyTo != nil {
		ev.ReplyToID = m.ReplyTo.MessageID
		ev.ReplyToText = m.ReplyTo.Text
		if ev.ReplyToText == "" {
			ev.ReplyToText = m.ReplyTo.Caption
		}
	}
	return ev, true
}

// isPollTimeout reports whether err is the expected end of an empty long
// poll rather than a real failure.
func isPollTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "context deadline exceeded") ||
		strings.Contains(msg, "client.timeout exceeded")
}
