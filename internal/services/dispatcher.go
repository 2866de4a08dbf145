// Package services – Dispatcher
//
// The dispatcher is the single writer of the routing engine. It consumes one
// inbound gateway event at a time and runs it to completion:
//
//	classify → check → persist → forward → confirm
//
// Classification precedence: reply-to-existing-message first (a responder's
// reply must be routable even mid-unrelated-flow), then commands, then
// state-scoped plain text. Every rejection is user-visible and
// distinguishable; no recoverable failure leaves a message row without its
// thread or a mapping without its message. Nothing is retried automatically:
// a failed forward leaves the message persisted-but-undelivered and the
// sender is told to resend.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/councilbot/go-relay-backend/internal/directory"
	"github.com/councilbot/go-relay-backend/internal/domain"
	"github.com/councilbot/go-relay-backend/internal/gateway"
	"github.com/councilbot/go-relay-backend/internal/repo"
	"github.com/councilbot/go-relay-backend/internal/sysutil"
)

// historyLimit caps how many messages /history renders.
const historyLimit = 10

// Dispatcher routes inbound events between users and responders.
type Dispatcher struct {
	DB       *gorm.DB
	Threads  *ThreadService
	Blocks   *BlockService
	Limiter  *RateLimiter
	States   *StateStore
	Resolver *ReplyResolver
	Cache    *MappingCache
	Sender   gateway.Sender
	Dir      *directory.Directory
	Log      zerolog.Logger

	// AuditChatID, when non-zero, receives a copy of every forward notice.
	AuditChatID int64
}

// HandleEvent processes one inbound event to completion. The returned error
// is for logging only: every user-relevant failure has already been answered
// on the gateway by the time HandleEvent returns.
func (d *Dispatcher) HandleEvent(ctx context.Context, ev gateway.Event) error {
	tr := otel.Tracer("services/Dispatcher")
	ctx, span := tr.Start(ctx, "HandleEvent",
		trace.WithAttributes(
			attribute.Int64("event.chat_id", ev.ChatID),
			attribute.Int64("event.message_id", ev.MessageID),
			attribute.Bool("event.is_reply", ev.IsReply()),
		),
	)
	defer span.End()

	switch {
	case ev.IsReply():
		return d.handleReply(ctx, ev)
	case strings.HasPrefix(ev.Text, "/"):
		return d.handleCommand(ctx, ev)
	default:
		return d.handleText(ctx, ev)
	}
}

// ---- commands ----

func (d *Dispatcher) handleCommand(ctx context.Context, ev gateway.Event) error {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(ev.Text), " ")
	switch cmd {
	case "/start":
		return d.cmdStart(ctx, ev)
	case "/cancel":
		d.States.BeginChoosing(ev.ChatID)
		d.say(ctx, ev.ChatID, msgCancelled)
		return d.sendMenu(ctx, ev, 0)
	case "/help":
		return d.say(ctx, ev.ChatID, helpText)
	case "/myid":
		return d.say(ctx, ev.ChatID, myIDText(ev.ChatID, ev.Username, ev.FirstName))
	case "/history":
		return d.cmdHistory(ctx, ev)
	case "/compose":
		return d.beginCompose(ctx, ev)
	case "/threads":
		return d.cmdThreads(ctx, ev)
	case "/reply":
		return d.cmdReplyConsole(ctx, ev, rest)
	case "/blocks":
		return d.cmdBlocks(ctx, ev)
	default:
		return d.say(ctx, ev.ChatID, helpText)
	}
}

func (d *Dispatcher) cmdStart(ctx context.Context, ev gateway.Event) error {
	u, err := repo.UpsertUser(ctx, d.DB, ev.ChatID, ev.Username, ev.FirstName, ev.LastName)
	if err != nil {
		d.Log.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("upsert user")
		return err
	}
	d.States.BeginChoosing(ev.ChatID)
	unread, err := d.Threads.UnreadCount(ctx, u.ID)
	if err != nil {
		unread = 0
	}
	return d.sendMenu(ctx, ev, unread)
}

func (d *Dispatcher) sendMenu(ctx context.Context, ev gateway.Event, unread int64) error {
	return d.say(ctx, ev.ChatID, menuText(d.Dir.Entries(), unread))
}

func (d *Dispatcher) cmdHistory(ctx context.Context, ev gateway.Event) error {
	st := d.States.Get(ev.ChatID)
	if st.ThreadID == "" {
		return d.say(ctx, ev.ChatID, "❌ No active conversation. Pick a responder first with /start.")
	}
	msgs, err := d.Threads.History(ctx, st.ThreadID, historyLimit)
	if err != nil {
		d.Log.Error().Err(err).Str("thread_id", st.ThreadID).Msg("load history")
		return d.say(ctx, ev.ChatID, msgForwardFailed)
	}
	// Viewing history counts as reading the responder's side.
	if _, err := d.Threads.MarkRead(ctx, st.ThreadID, domain.SenderResponder); err != nil {
		d.Log.Warn().Err(err).Str("thread_id", st.ThreadID).Msg("mark read")
	}
	return d.say(ctx, ev.ChatID, historyText(st.ThreadID, msgs))
}

// cmdThreads is the responder console: recent threads with reply prefixes.
func (d *Dispatcher) cmdThreads(ctx context.Context, ev gateway.Event) error {
	if _, err := d.requireResponder(ctx, ev); err != nil {
		return d.say(ctx, ev.ChatID, "❌ This command is for responders only.")
	}
	threads, err := d.Threads.RecentThreads(ctx, historyLimit)
	if err != nil {
		return err
	}
	return d.say(ctx, ev.ChatID, threadsConsoleText(threads))
}

// cmdReplyConsole answers a thread addressed by short prefix:
// /reply <prefix> <text>.
func (d *Dispatcher) cmdReplyConsole(ctx context.Context, ev gateway.Event, rest string) error {
	resp, err := d.requireResponder(ctx, ev)
	if err != nil {
		return d.say(ctx, ev.ChatID, "❌ This command is for responders only.")
	}
	prefix, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
	text, verr := d.Threads.ValidateText(text)
	if verr != nil && errors.Is(verr, ErrTooLong) {
		return d.say(ctx, ev.ChatID, msgTooLong)
	}
	if prefix == "" || verr != nil {
		return d.say(ctx, ev.ChatID, "❌ Usage: /reply <conversation id> <text>")
	}
	t, err := d.Threads.ThreadByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, ErrThreadNotFound) {
			return d.say(ctx, ev.ChatID, "❌ Conversation #"+prefix+" not found.")
		}
		return err
	}
	return d.forwardResponderReply(ctx, ev, resp, t, text)
}

func (d *Dispatcher) cmdBlocks(ctx context.Context, ev gateway.Event) error {
	resp, err := d.requireResponder(ctx, ev)
	if err != nil {
		return d.say(ctx, ev.ChatID, "❌ This command is for responders only.")
	}
	blocks, err := d.Blocks.List(ctx, resp.ID)
	if err != nil {
		return err
	}
	return d.say(ctx, ev.ChatID, blocksConsoleText(blocks))
}

// ---- state-scoped plain text ----

func (d *Dispatcher) handleText(ctx context.Context, ev gateway.Event) error {
	st := d.States.Get(ev.ChatID)
	switch st.Stage {
	case StageChoosing:
		if ev.Text == TokenCompose {
			return d.beginCompose(ctx, ev)
		}
		return d.selectResponder(ctx, ev)
	case StageComposing:
		switch ev.Text {
		case TokenBack:
			d.States.BackToChoosing(ev.ChatID)
			st = d.States.Get(ev.ChatID)
			if st.Responder != nil {
				return d.say(ctx, ev.ChatID, selectedText(st.Responder.RoleName, st.ThreadID))
			}
			return d.sendMenu(ctx, ev, 0)
		case TokenMenu:
			d.States.BeginChoosing(ev.ChatID)
			return d.sendMenu(ctx, ev, 0)
		}
		return d.relayNewMessage(ctx, ev, st)
	default:
		return d.say(ctx, ev.ChatID, msgStartHint)
	}
}

// selectResponder matches typed text against the directory. Selection
// re-checks the block registry; a blocked pair stays in Choosing.
func (d *Dispatcher) selectResponder(ctx context.Context, ev gateway.Event) error {
	entry, ok := d.Dir.LookupName(ev.Text)
	if !ok {
		return d.say(ctx, ev.ChatID, unknownResponderText(ev.Text, d.Dir.Entries()))
	}
	resp, err := repo.GetResponderByChatID(ctx, d.DB, entry.ChatID)
	if err != nil {
		d.Log.Error().Err(err).Str("role", entry.RoleName).Msg("responder row missing")
		return d.say(ctx, ev.ChatID, unknownResponderText(ev.Text, d.Dir.Entries()))
	}
	u, err := repo.UpsertUser(ctx, d.DB, ev.ChatID, ev.Username, ev.FirstName, ev.LastName)
	if err != nil {
		return err
	}
	blocked, err := d.Blocks.IsBlocked(ctx, resp.ID, u.ID)
	if err != nil {
		return err
	}
	if blocked {
		rejectionsTotal.WithLabelValues(reasonBlocked).Inc()
		return d.say(ctx, ev.ChatID, blockedText(resp.RoleName))
	}
	threadID := ""
	if t, err := d.Threads.ActiveThread(ctx, u.ID, resp.ID); err == nil {
		threadID = t.ID
	}
	d.States.Select(ev.ChatID, resp, threadID)
	return d.say(ctx, ev.ChatID, selectedText(resp.RoleName, threadID))
}

func (d *Dispatcher) beginCompose(ctx context.Context, ev gateway.Event) error {
	st := d.States.Get(ev.ChatID)
	if st.Responder == nil {
		return d.say(ctx, ev.ChatID, msgStartHint)
	}
	d.States.BeginComposing(ev.ChatID)
	return d.say(ctx, ev.ChatID, msgComposePrompt)
}

// relayNewMessage is the user → responder pipeline:
// rate-limit → ensure thread → persist → block check → forward →
// persist forwarded copy with marker → persist mapping → confirm.
func (d *Dispatcher) relayNewMessage(ctx context.Context, ev gateway.Event, st UserState) error {
	text, err := d.Threads.ValidateText(ev.Text)
	if err != nil {
		if errors.Is(err, ErrTooLong) {
			return d.say(ctx, ev.ChatID, msgTooLong)
		}
		return d.say(ctx, ev.ChatID, msgEmpty)
	}

	if err := d.Limiter.Allow(ev.ChatID); err != nil {
		rejectionsTotal.WithLabelValues(reasonRateLimited).Inc()
		return d.say(ctx, ev.ChatID, msgRateLimited)
	}

	u, err := repo.UpsertUser(ctx, d.DB, ev.ChatID, ev.Username, ev.FirstName, ev.LastName)
	if err != nil {
		return err
	}
	resp := st.Responder

	t, err := d.Threads.EnsureThread(ctx, u.ID, resp.ID)
	if err != nil {
		return err
	}
	d.States.SetThread(ev.ChatID, t.ID)

	if _, err := d.Threads.Append(ctx, t.ID, ev.MessageID, domain.SenderUser, text); err != nil {
		return err
	}

	blocked, err := d.Blocks.IsBlocked(ctx, resp.ID, u.ID)
	if err != nil {
		return err
	}
	if blocked {
		// The user's own row is kept; the forwarded copy is not created.
		rejectionsTotal.WithLabelValues(reasonBlocked).Inc()
		return d.say(ctx, ev.ChatID, blockedText(resp.RoleName))
	}

	notice := forwardNoticeText(u, t.ID, text)
	sentID, err := d.Sender.Send(ctx, gateway.SendRequest{ChatID: resp.ChatID, Text: notice})
	if err != nil {
		rejectionsTotal.WithLabelValues(reasonTransport).Inc()
		d.Log.Error().Err(err).Str("thread_id", t.ID).Msg("forward to responder failed")
		d.say(ctx, ev.ChatID, msgForwardFailed)
		return ErrForwardFailed
	}

	if _, err := d.Threads.Append(ctx, t.ID, sentID, domain.SenderResponder, notice); err != nil {
		return err
	}
	if err := repo.SaveMapping(ctx, d.DB, sentID, t.ID); err != nil {
		return err
	}
	d.Cache.Put(sentID, t.ID)

	forwardedTotal.WithLabelValues(directionUserToResponder).Inc()
	d.Log.Debug().Str("thread_id", t.ID).Str("preview", sysutil.Truncate(text, 64)).Msg("message relayed")
	d.audit(ctx, "📨 "+ThreadMarker(t.ID)+" user → "+resp.RoleName)
	return d.say(ctx, ev.ChatID, sentConfirmText(resp.RoleName, t.ID))
}

// ---- replies ----

// handleReply routes a reply in either direction:
// resolve → infer direction → block check → persist → forward with
// reply-link → persist mapping → confirm.
func (d *Dispatcher) handleReply(ctx context.Context, ev gateway.Event) error {
	// A sender with a responder identity (role or admin) is always the
	// responder side, regardless of thread membership.
	senderResp, rerr := d.requireResponder(ctx, ev)
	isResponder := rerr == nil

	req := ResolveRequest{ExternalID: ev.ReplyToID, ReplyToText: ev.ReplyToText}
	var senderUser *domain.User
	if isResponder {
		req.SenderResponderID = senderResp.ID
	} else {
		u, err := repo.UpsertUser(ctx, d.DB, ev.ChatID, ev.Username, ev.FirstName, ev.LastName)
		if err != nil {
			return err
		}
		senderUser = u
		req.SenderUserID = u.ID
	}

	threadID, tier, err := d.Resolver.Resolve(ctx, req)
	if err != nil {
		if errors.Is(err, ErrReplyNotFound) {
			rejectionsTotal.WithLabelValues(reasonUnresolvedReply).Inc()
			return d.say(ctx, ev.ChatID, msgReplyNotFound)
		}
		return err
	}
	d.Log.Debug().Str("thread_id", threadID).Stringer("tier", tier).Msg("reply resolved")

	t, err := repo.GetThread(ctx, d.DB, threadID)
	if err != nil {
		return err
	}

	if isResponder {
		// Reply-scoped responder commands act on the resolved thread's user.
		if handled, err := d.replyScopedCommand(ctx, ev, senderResp, t); handled {
			return err
		}
		text, verr := d.Threads.ValidateText(ev.Text)
		if verr != nil {
			if errors.Is(verr, ErrTooLong) {
				return d.say(ctx, ev.ChatID, msgTooLong)
			}
			return d.say(ctx, ev.ChatID, msgEmpty)
		}
		return d.forwardResponderReply(ctx, ev, senderResp, t, text)
	}
	return d.forwardUserReply(ctx, ev, senderUser, t)
}

// replyScopedCommand handles /block, /unblock and /blocks issued as a reply.
// Block mutations act on the resolved thread's owner registry, so an admin
// reply manages the owning responder's blocks, not a registry of their own.
// It reports whether the event was consumed.
func (d *Dispatcher) replyScopedCommand(ctx context.Context, ev gateway.Event, resp *domain.Responder, t *domain.Thread) (bool, error) {
	cmd, rest, _ := strings.Cut(strings.TrimSpace(ev.Text), " ")
	switch cmd {
	case "/block":
		reason := strings.TrimSpace(rest)
		if err := d.Blocks.Block(ctx, t.ResponderID, t.UserID, reason); err != nil {
			return true, err
		}
		if reason == "" {
			reason = "no reason given"
		}
		return true, d.say(ctx, ev.ChatID, "✅ User blocked.\nReason: "+reason)
	case "/unblock":
		if err := d.Blocks.Unblock(ctx, t.ResponderID, t.UserID); err != nil {
			return true, err
		}
		return true, d.say(ctx, ev.ChatID, "✅ User unblocked.")
	case "/blocks":
		blocks, err := d.Blocks.List(ctx, resp.ID)
		if err != nil {
			return true, err
		}
		return true, d.say(ctx, ev.ChatID, blocksConsoleText(blocks))
	}
	return false, nil
}

// forwardResponderReply relays responder text into a thread, linking it to
// the user's latest message so the chain stays visually threaded.
func (d *Dispatcher) forwardResponderReply(ctx context.Context, ev gateway.Event, resp *domain.Responder, t *domain.Thread, text string) error {
	// Threads are private to their assigned responder; only the admin may
	// answer across assignments.
	if t.ResponderID != resp.ID && !d.Dir.IsAdmin(ev.ChatID) {
		return d.say(ctx, ev.ChatID, "❌ This conversation belongs to another responder.")
	}

	// The block scope is the thread owner's registry, not the sender's.
	blocked, err := d.Blocks.IsBlocked(ctx, t.ResponderID, t.UserID)
	if err != nil {
		return err
	}
	if blocked {
		rejectionsTotal.WithLabelValues(reasonBlocked).Inc()
		return d.say(ctx, ev.ChatID, "❌ This user is blocked in this conversation. Unblock them first with /unblock.")
	}

	u, err := repo.GetUser(ctx, d.DB, t.UserID)
	if err != nil {
		return err
	}

	if _, err := d.Threads.Append(ctx, t.ID, ev.MessageID, domain.SenderResponder, text); err != nil {
		return err
	}

	// Link to the user's latest message; send unlinked when there is none.
	var replyTo int64
	if last, err := repo.LatestMessageBySender(ctx, d.DB, t.ID, domain.SenderUser); err == nil {
		replyTo = last.ExternalID
	}

	body := responderReplyText(resp.RoleName, t.ID, text)
	sentID, err := d.Sender.Send(ctx, gateway.SendRequest{ChatID: u.ChatID, Text: body, ReplyTo: replyTo})
	if err != nil {
		rejectionsTotal.WithLabelValues(reasonTransport).Inc()
		d.Log.Error().Err(err).Str("thread_id", t.ID).Msg("forward to user failed")
		d.say(ctx, ev.ChatID, msgForwardFailed)
		return ErrForwardFailed
	}

	if err := repo.SaveMapping(ctx, d.DB, sentID, t.ID); err != nil {
		return err
	}
	d.Cache.Put(sentID, t.ID)

	forwardedTotal.WithLabelValues(directionResponderToUser).Inc()
	d.audit(ctx, "💬 "+ThreadMarker(t.ID)+" "+resp.RoleName+" → user")
	return d.say(ctx, ev.ChatID, "✅ Your reply was delivered ("+ThreadMarker(t.ID)+").")
}

// forwardUserReply relays a user's reply back to the thread's responder.
// User replies pass the same admission checks as new messages.
func (d *Dispatcher) forwardUserReply(ctx context.Context, ev gateway.Event, u *domain.User, t *domain.Thread) error {
	text, err := d.Threads.ValidateText(ev.Text)
	if err != nil {
		if errors.Is(err, ErrTooLong) {
			return d.say(ctx, ev.ChatID, msgTooLong)
		}
		return d.say(ctx, ev.ChatID, msgEmpty)
	}

	resp, err := repo.GetResponder(ctx, d.DB, t.ResponderID)
	if err != nil {
		return err
	}

	blocked, err := d.Blocks.IsBlocked(ctx, resp.ID, u.ID)
	if err != nil {
		return err
	}
	if blocked {
		rejectionsTotal.WithLabelValues(reasonBlocked).Inc()
		return d.say(ctx, ev.ChatID, blockedText(resp.RoleName))
	}

	if err := d.Limiter.Allow(ev.ChatID); err != nil {
		rejectionsTotal.WithLabelValues(reasonRateLimited).Inc()
		return d.say(ctx, ev.ChatID, msgRateLimited)
	}

	if _, err := d.Threads.Append(ctx, t.ID, ev.MessageID, domain.SenderUser, text); err != nil {
		return err
	}

	var replyTo int64
	if last, err := repo.LatestMessageBySender(ctx, d.DB, t.ID, domain.SenderResponder); err == nil {
		replyTo = last.ExternalID
	}

	body := userReplyText(u, t.ID, text)
	sentID, err := d.Sender.Send(ctx, gateway.SendRequest{ChatID: resp.ChatID, Text: body, ReplyTo: replyTo})
	if err != nil {
		rejectionsTotal.WithLabelValues(reasonTransport).Inc()
		d.Log.Error().Err(err).Str("thread_id", t.ID).Msg("forward to responder failed")
		d.say(ctx, ev.ChatID, msgForwardFailed)
		return ErrForwardFailed
	}

	if err := repo.SaveMapping(ctx, d.DB, sentID, t.ID); err != nil {
		return err
	}
	d.Cache.Put(sentID, t.ID)

	forwardedTotal.WithLabelValues(directionUserToResponder).Inc()
	return d.say(ctx, ev.ChatID, sentConfirmText(resp.RoleName, t.ID))
}

// ---- helpers ----

// operatorRole labels the administrator identity in outbound copies. The
// admin chat may use the responder console without occupying a role, so it
// has no row in the responders table.
const operatorRole = "Operator"

// requireResponder resolves the sender as a responder identity: a configured
// role, or the administrator chat acting without a role.
func (d *Dispatcher) requireResponder(ctx context.Context, ev gateway.Event) (*domain.Responder, error) {
	r, err := repo.GetResponderByChatID(ctx, d.DB, ev.ChatID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if d.Dir.IsAdmin(ev.ChatID) {
			return &domain.Responder{RoleName: operatorRole, ChatID: ev.ChatID}, nil
		}
		return nil, ErrNotResponder
	}
	return r, nil
}

// say sends a plain notification; delivery failures are logged, not fatal.
func (d *Dispatcher) say(ctx context.Context, chatID int64, text string) error {
	if _, err := d.Sender.Send(ctx, gateway.SendRequest{ChatID: chatID, Text: text}); err != nil {
		d.Log.Warn().Err(err).Int64("chat_id", chatID).Msg("notify failed")
	}
	return nil
}

// audit copies a short routing notice to the audit channel, best effort.
func (d *Dispatcher) audit(ctx context.Context, text string) {
	if d.AuditChatID == 0 {
		return
	}
	if _, err := d.Sender.Send(ctx, gateway.SendRequest{ChatID: d.AuditChatID, Text: text}); err != nil {
		d.Log.Warn().Err(err).Msg("audit notify failed")
	}
}
