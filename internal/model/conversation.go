package model

import (
	"strconv"
	"strings"
	"time"
)

// Chat style codes used by the store.
const (
	StyleGroup  = 43
	StyleDirect = 45
)

// DraftPhase is the lifecycle phase of a conversation's reply draft.
type DraftPhase int

const (
	// PhaseEmpty means no user input has been entered yet.
	PhaseEmpty DraftPhase = iota

	// PhaseDraft means the user has typed text but not committed it.
	PhaseDraft

	// PhaseCommitted means the draft is marked ready for send-all.
	PhaseCommitted

	// PhaseLater means the conversation is explicitly deferred and is
	// excluded from progress counts and from send-all.
	PhaseLater
)

// String returns the lowercase phase name.
func (p DraftPhase) String() string {
	switch p {
	case PhaseDraft:
		return "draft"
	case PhaseCommitted:
		return "committed"
	case PhaseLater:
		return "later"
	default:
		return "empty"
	}
}

// DraftState is the per-conversation reply state. Text is only
// meaningful in the Draft and Committed phases.
type DraftState struct {
	Phase DraftPhase `json:"phase"`
	Text  string     `json:"text,omitempty"`
}

// Conversation is the addressable unit of reply work: one chat thread
// with unread messages. Conversations are value objects rebuilt on each
// ingestion pass; only the stable ID carries identity across passes.
type Conversation struct {
	// ID is the stable identifier, derived from the store's chat
	// identifier rather than a row number so it survives refreshes.
	ID string `json:"id"`

	// ChatRowID is the chat's row number in the store at snapshot time.
	ChatRowID int64 `json:"chat_rowid"`

	// DisplayName is the chat's own display name (usually only set for
	// named group chats).
	DisplayName string `json:"display_name,omitempty"`

	// ResolvedName is the contact-resolved name, empty when unresolved.
	ResolvedName string `json:"resolved_name,omitempty"`

	// Style is the store's chat style code (StyleGroup or StyleDirect).
	Style int `json:"style"`

	// Participants are the chat's member handles (group chats only).
	Participants []Handle `json:"participants,omitempty"`

	// UnreadCount is the number of qualifying unread inbound messages.
	UnreadCount int `json:"unread_count"`

	// OldestUnread is the timestamp of the oldest unread message.
	OldestUnread time.Time `json:"oldest_unread"`

	// LastMessage is the timestamp of the newest unread message.
	LastMessage time.Time `json:"last_message"`

	// Priority is the manual priority for this conversation, or the
	// default when no override exists. Lower means more urgent.
	Priority int `json:"priority"`

	// Messages is the bounded context window, ordered ascending by
	// normalized timestamp (most recent last).
	Messages []Message `json:"messages"`
}

// IsGroup reports whether this is a group conversation.
func (c Conversation) IsGroup() bool {
	return c.Style == StyleGroup
}

// Name returns the best available display name: the chat's own display
// name, then the resolved contact name, then for groups a participant
// summary, then the raw identifier.
func (c Conversation) Name() string {
	if c.DisplayName != "" {
		return c.DisplayName
	}
	if c.ResolvedName != "" {
		return c.ResolvedName
	}
	if c.IsGroup() && len(c.Participants) > 0 {
		return participantSummary(c.Participants)
	}
	return c.ID
}

// participantSummary renders up to three participant first names, with
// a "+N" suffix for the remainder.
func participantSummary(participants []Handle) string {
	names := make([]string, 0, 3)
	for _, p := range participants[:min(3, len(participants))] {
		name := p.Name()
		if first, _, ok := strings.Cut(name, " "); ok {
			name = first
		}
		names = append(names, name)
	}
	summary := strings.Join(names, ", ")
	if rest := len(participants) - 3; rest > 0 {
		summary += " +" + strconv.Itoa(rest)
	}
	return summary
}

// Less reports whether conversation a should be processed before b.
// Manual priority dominates; ties go to the conversation that has been
// waiting longer, then to the higher unread volume, then to the lexically
// smaller ID so that ordering is deterministic.
func Less(a, b Conversation) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.OldestUnread.Equal(b.OldestUnread) {
		return a.OldestUnread.Before(b.OldestUnread)
	}
	if a.UnreadCount != b.UnreadCount {
		return a.UnreadCount > b.UnreadCount
	}
	return a.ID < b.ID
}
