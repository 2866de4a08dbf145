// Package directory holds the statically configured responder directory:
// the small, fixed set of (role name → gateway chat id) pairs the relay
// routes to. It is parsed once at startup, seeds the responders table, and
// answers name lookups for the selection flow.
//
// Name lookup is exact after Unicode case folding and whitespace trimming.
// Near-miss names are NOT auto-corrected: a typo returns no match and the
// caller re-shows the menu, because silently redirecting a private message
// to a similarly-named responder is a misroute.
package directory

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
)

// Entry is one configured responder role.
type Entry struct {
	RoleName string
	ChatID   int64
}

// Directory is the immutable set of configured responders plus an optional
// administrator identity.
type Directory struct {
	entries []Entry
	folded  map[string]Entry
	byChat  map[int64]Entry

	// AdminChatID, when non-zero, identifies an operator who may use the
	// responder console commands without occupying a role.
	AdminChatID int64
}

// fold performs Unicode case folding for caseless name comparison.
var fold = cases.Fold()

// Parse builds a Directory from a spec string of the form
//
//	"Role Name=123456,Another Role=789012"
//
// Role names may contain any non-comma characters; chat ids must be
// integers. At least one entry is required.
func Parse(spec string) (*Directory, error) {
	d := &Directory{
		folded: make(map[string]Entry),
		byChat: make(map[int64]Entry),
	}
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.LastIndex(part, "=")
		if eq <= 0 || eq == len(part)-1 {
			return nil, fmt.Errorf("directory: malformed entry %q (want name=chat_id)", part)
		}
		name := strings.TrimSpace(part[:eq])
		id, err := strconv.ParseInt(strings.TrimSpace(part[eq+1:]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("directory: entry %q: chat id is not an integer", part)
		}
		key := fold.String(name)
		if _, dup := d.folded[key]; dup {
			return nil, fmt.Errorf("directory: duplicate role name %q", name)
		}
		e := Entry{RoleName: name, ChatID: id}
		d.entries = append(d.entries, e)
		d.folded[key] = e
		d.byChat[id] = e
	}
	if len(d.entries) == 0 {
		return nil, fmt.Errorf("directory: no responders configured")
	}
	return d, nil
}

// Entries returns the configured roles in configuration order.
func (d *Directory) Entries() []Entry { return d.entries }

// LookupName finds a role by name, ignoring case and surrounding whitespace.
func (d *Directory) LookupName(name string) (Entry, bool) {
	e, ok := d.folded[fold.String(strings.TrimSpace(name))]
	return e, ok
}

// IsResponder reports whether the chat id belongs to a configured role or
// the administrator.
func (d *Directory) IsResponder(chatID int64) bool {
	if chatID == 0 {
		return false
	}
	if _, ok := d.byChat[chatID]; ok {
		return true
	}
	return d.IsAdmin(chatID)
}

// IsAdmin reports whether the chat id is the configured administrator.
func (d *Directory) IsAdmin(chatID int64) bool {
	return d.AdminChatID != 0 && chatID == d.AdminChatID
}
