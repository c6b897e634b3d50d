package triage

import (
	"sort"
	"strings"

	"github.com/nhle/inbox-sweep/internal/chatdb"
	"github.com/nhle/inbox-sweep/internal/contacts"
	"github.com/nhle/inbox-sweep/internal/model"
)

// Aggregator turns raw chat snapshots into prioritized Conversations.
// It is a pure transform: the same snapshot and configuration always
// produce the same result.
type Aggregator struct {
	window    int
	overrides map[string]model.PersonOverride
	resolver  contacts.Resolver
}

// New creates an Aggregator with the given context window size, people
// overrides, and contact resolver. A nil resolver degrades to raw
// identifiers.
func New(window int, overrides map[string]model.PersonOverride, resolver contacts.Resolver) *Aggregator {
	if window <= 0 {
		window = 15
	}
	if resolver == nil {
		resolver = contacts.NopResolver{}
	}
	return &Aggregator{
		window:    window,
		overrides: overrides,
		resolver:  resolver,
	}
}

// Build aggregates raw chats into Conversations: ignored identifiers
// are filtered, reactions are attached to their target messages, the
// context window is bounded and ordered ascending by time, and the
// result is sorted by priority. Chats with no qualifying unread
// messages are dropped.
func (a *Aggregator) Build(chats []chatdb.Chat) []model.Conversation {
	conversations := make([]model.Conversation, 0, len(chats))
	for _, c := range chats {
		if c.UnreadCount <= 0 {
			continue
		}
		if o, ok := a.overrides[c.Identifier]; ok && o.Ignored {
			continue
		}
		conversations = append(conversations, a.buildConversation(c))
	}

	sort.SliceStable(conversations, func(i, j int) bool {
		return model.Less(conversations[i], conversations[j])
	})

	return conversations
}

func (a *Aggregator) buildConversation(c chatdb.Chat) model.Conversation {
	conv := model.Conversation{
		ID:           c.Identifier,
		ChatRowID:    c.RowID,
		DisplayName:  c.DisplayName,
		Style:        c.Style,
		UnreadCount:  c.UnreadCount,
		OldestUnread: chatdb.AppleTime(c.OldestUnread),
		LastMessage:  chatdb.AppleTime(c.LastMessage),
		Priority:     a.priorityFor(c.Identifier),
		Messages:     a.contextWindow(c.Messages),
	}

	conv.Participants = a.resolveParticipants(c.Participants)
	conv.ResolvedName = a.resolveName(conv)

	for i := range conv.Messages {
		m := &conv.Messages[i]
		if m.Sender != "" {
			if name, ok := a.resolveIdentifier(m.Sender); ok {
				m.SenderName = name
			}
		}
	}

	return conv
}

// contextWindow separates reactions from regular messages, attaches
// them to their targets, and returns the most recent window of regular
// messages ordered ascending by timestamp.
func (a *Aggregator) contextWindow(raw []model.Message) []model.Message {
	var regular []model.Message
	var reactions []model.Message
	for _, m := range raw {
		switch m.Kind {
		case model.KindReaction:
			reactions = append(reactions, m)
		case model.KindReactionRemoval:
			// Retractions carry no content worth showing.
		default:
			if m.DisplayText() != "" || len(m.Attachments) > 0 {
				regular = append(regular, m)
			}
		}
	}

	// Raw rows arrive newest first; keep the window then flip to
	// chronological order.
	if len(regular) > a.window {
		regular = regular[:a.window]
	}
	for i, j := 0, len(regular)-1; i < j; i, j = i+1, j-1 {
		regular[i], regular[j] = regular[j], regular[i]
	}

	if len(reactions) > 0 {
		byGUID := make(map[string]int, len(regular))
		for i, m := range regular {
			byGUID[m.GUID] = i
		}
		for _, r := range reactions {
			idx, ok := byGUID[r.AssociatedGUID]
			if !ok {
				continue
			}
			emoji, ok := model.ReactionEmoji(r.ReactionCode)
			if !ok {
				continue
			}
			sender := r.Sender
			if name, resolved := a.resolveIdentifier(sender); resolved {
				sender = name
			}
			regular[idx].Reactions = append(regular[idx].Reactions, model.Reaction{
				Emoji:  emoji,
				FromMe: r.FromMe,
				Sender: sender,
			})
		}
	}

	return regular
}

func (a *Aggregator) priorityFor(identifier string) int {
	if o, ok := a.overrides[identifier]; ok && o.Priority > 0 {
		return o.Priority
	}
	return model.DefaultPriority
}

func (a *Aggregator) resolveParticipants(participants []model.Handle) []model.Handle {
	if len(participants) == 0 {
		return nil
	}
	resolved := make([]model.Handle, len(participants))
	for i, p := range participants {
		if name, ok := a.resolveIdentifier(p.Identifier); ok {
			p.DisplayName = name
		}
		resolved[i] = p
	}
	return resolved
}

// resolveName produces the contact-resolved name for a conversation:
// the override display name wins, then the resolver for direct chats,
// then a first-name summary of resolved participants for groups.
func (a *Aggregator) resolveName(conv model.Conversation) string {
	if o, ok := a.overrides[conv.ID]; ok && o.DisplayName != "" {
		return o.DisplayName
	}

	if !conv.IsGroup() {
		if name, ok := a.resolver.Resolve(conv.ID); ok {
			return name
		}
		return ""
	}

	var names []string
	for _, p := range conv.Participants {
		if p.DisplayName == "" {
			continue
		}
		if first, _, ok := strings.Cut(p.DisplayName, " "); ok {
			names = append(names, first)
		} else {
			names = append(names, p.DisplayName)
		}
	}
	if len(names) == 0 {
		return ""
	}
	return strings.Join(names, ", ")
}

// resolveIdentifier consults the people overrides first, then the
// contact resolver.
func (a *Aggregator) resolveIdentifier(identifier string) (string, bool) {
	if o, ok := a.overrides[identifier]; ok && o.DisplayName != "" {
		return o.DisplayName, true
	}
	return a.resolver.Resolve(identifier)
}
