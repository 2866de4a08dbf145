// Package services – user-visible texts
//
// All strings the dispatcher sends back to users and responders live here,
// so rejection messages stay distinguishable (a blocked send never reads
// like a transport failure) and templates are testable.
package services

import (
	"fmt"
	"strings"

	"github.com/councilbot/go-relay-backend/internal/directory"
	"github.com/councilbot/go-relay-backend/internal/domain"
)

// Reserved control tokens. They mirror the reply-keyboard buttons the
// gateway shows while composing and are matched verbatim.
const (
	TokenCompose = "📝 Send message"
	TokenBack    = "🔙 Back"
	TokenMenu    = "🏠 Main menu"
)

const (
	msgStartHint = "Please pick a responder first. Use /start."

	msgRateLimited = "⚠️ You are sending messages too quickly. Please wait a bit and try again."

	msgReplyNotFound = "❌ Original message not found. Please reply to the forwarded message itself."

	msgForwardFailed = "❌ Your message was saved but could not be delivered. Please send it again."

	msgEmpty   = "❌ The message is empty."
	msgTooLong = "❌ The message is too long."

	msgComposePrompt = "✍️ Type your message now.\n\nUse “" + TokenBack + "” to go back or “" + TokenMenu + "” for the main menu."

	msgCancelled = "🔙 Back to the main menu."
)

// menuText renders the responder selection menu.
func menuText(entries []directory.Entry, unread int64) string {
	var b strings.Builder
	b.WriteString("🤖 Council relay\n\nPick the responder you want to talk to by sending their role name:\n\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "• %s\n", e.RoleName)
	}
	b.WriteString("\nConversations are not anonymous: your name and id are shown to the responder.")
	if unread > 0 {
		fmt.Fprintf(&b, "\n\n📬 You have %d unread repl", unread)
		if unread == 1 {
			b.WriteString("y.")
		} else {
			b.WriteString("ies.")
		}
	}
	return b.String()
}

// selectedText confirms a responder selection, mentioning the existing
// thread when one is attached.
func selectedText(roleName, threadID string) string {
	if threadID != "" {
		return fmt.Sprintf("✅ Active conversation with %s (%s).\n\nSend “%s” to write a message.",
			roleName, ThreadMarker(threadID), TokenCompose)
	}
	return fmt.Sprintf("✅ Responder selected: %s.\n\nSend “%s” to write a message.", roleName, TokenCompose)
}

// unknownResponderText rejects a name that matches no configured role.
func unknownResponderText(name string, entries []directory.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "❌ No responder named %q. Available responders:\n\n", strings.TrimSpace(name))
	for _, e := range entries {
		fmt.Fprintf(&b, "• %s\n", e.RoleName)
	}
	return b.String()
}

// blockedText is the distinguishable rejection for a blocked pair.
func blockedText(roleName string) string {
	return fmt.Sprintf("❌ You have been blocked by %s and cannot contact them. Please pick another responder.", roleName)
}

// forwardNoticeText is the copy delivered to the responder for a new user
// message. It embeds the thread marker the resolver's tier 5 parses back.
func forwardNoticeText(u *domain.User, threadID, text string) string {
	username := "no username"
	if u.Username != "" {
		username = "@" + u.Username
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("📨 New message %s\n\n👤 %s (%s, id %d)\n\n%s\n\nReply to this message to answer.",
		ThreadMarker(threadID), name, username, u.ChatID, text)
}

// responderReplyText is the copy delivered to the user for a responder reply.
func responderReplyText(roleName, threadID, text string) string {
	return fmt.Sprintf("💬 Reply from %s %s\n\n%s\n\nSend a message or reply here to answer.",
		roleName, ThreadMarker(threadID), text)
}

// userReplyText is the copy delivered to the responder for a user reply.
func userReplyText(u *domain.User, threadID, text string) string {
	return fmt.Sprintf("💬 Reply %s from user id %d\n\n%s\n\nReply to this message to answer.",
		ThreadMarker(threadID), u.ChatID, text)
}

// sentConfirmText confirms a successful forward to its sender.
func sentConfirmText(roleName, threadID string) string {
	return fmt.Sprintf("✅ Your message was sent to %s (%s).", roleName, ThreadMarker(threadID))
}

// historyText renders the last messages of a thread for /history.
func historyText(threadID string, msgs []domain.Message) string {
	if len(msgs) == 0 {
		return "📋 No messages in this conversation yet."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Conversation %s:\n\n", ThreadMarker(threadID))
	for _, m := range msgs {
		who := "👤 You"
		if m.SenderType == domain.SenderResponder {
			who = "👨‍💼 Responder"
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", who, m.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// threadsConsoleText renders the responder /threads console.
func threadsConsoleText(threads []domain.Thread) string {
	if len(threads) == 0 {
		return "📋 No conversations yet."
	}
	var b strings.Builder
	b.WriteString("📋 Recent conversations:\n\n")
	for _, t := range threads {
		fmt.Fprintf(&b, "%s  last active %s\n    answer with: /reply %s <text>\n",
			ThreadMarker(t.ID), t.LastActivity.Format("2006-01-02 15:04"), strings.TrimPrefix(ThreadMarker(t.ID), "#"))
	}
	return strings.TrimRight(b.String(), "\n")
}

// blocksConsoleText renders a responder's block list.
func blocksConsoleText(blocks []domain.Block) string {
	if len(blocks) == 0 {
		return "📋 No blocked users."
	}
	var b strings.Builder
	b.WriteString("📋 Blocked users:\n\n")
	for i, bl := range blocks {
		fmt.Fprintf(&b, "%d. user %s\n   since %s\n", i+1, bl.UserID, bl.CreatedAt.Format("2006-01-02 15:04"))
		if bl.Reason != "" {
			fmt.Fprintf(&b, "   reason: %s\n", bl.Reason)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// myIDText echoes the sender's identity for configuration purposes.
func myIDText(chatID int64, username, firstName string) string {
	if username == "" {
		username = "no username"
	} else {
		username = "@" + username
	}
	if firstName == "" {
		firstName = "unnamed"
	}
	return fmt.Sprintf("👤 Your info:\n\n🆔 id: %d\n👤 name: %s\n📝 username: %s", chatID, firstName, username)
}

const helpText = `❓ How to use this bot

Commands:
• /start – show the responder menu
• /cancel – cancel and return to the menu
• /compose – start writing to the selected responder
• /history – show the current conversation
• /myid – show your id

Flow:
1. Send a responder's role name to select them
2. Send “` + TokenCompose + `” to start writing
3. Type your message

Messages are not anonymous; each conversation is kept in its own thread.`
