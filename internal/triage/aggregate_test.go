package triage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-sweep/internal/chatdb"
	"github.com/nhle/inbox-sweep/internal/model"
)

type stubResolver map[string]string

func (r stubResolver) Resolve(identifier string) (string, bool) {
	name, ok := r[identifier]
	return name, ok
}

func directChat(id string, unread int, oldest int64) chatdb.Chat {
	return chatdb.Chat{
		Identifier:   id,
		Style:        model.StyleDirect,
		UnreadCount:  unread,
		OldestUnread: oldest,
		LastMessage:  oldest,
	}
}

func TestBuild_PriorityOrdering(t *testing.T) {
	overrides := map[string]model.PersonOverride{
		"alice": {Identifier: "alice", Priority: 1},
		"bob":   {Identifier: "bob", Priority: 2},
	}
	agg := New(15, overrides, nil)

	got := agg.Build([]chatdb.Chat{
		directChat("carol", 1, 100),
		directChat("bob", 1, 100),
		directChat("alice", 1, 100),
	})

	require.Len(t, got, 3)
	assert.Equal(t, "alice", got[0].ID)
	assert.Equal(t, 1, got[0].Priority)
	assert.Equal(t, "bob", got[1].ID)
	assert.Equal(t, "carol", got[2].ID)
	assert.Equal(t, model.DefaultPriority, got[2].Priority)
}

func TestBuild_OldestUnreadBreaksPriorityTie(t *testing.T) {
	agg := New(15, nil, nil)

	got := agg.Build([]chatdb.Chat{
		directChat("newer", 1, 200),
		directChat("older", 1, 100),
	})

	require.Len(t, got, 2)
	assert.Equal(t, "older", got[0].ID)
}

func TestBuild_UnreadCountBreaksTimeTie(t *testing.T) {
	agg := New(15, nil, nil)

	got := agg.Build([]chatdb.Chat{
		directChat("quiet", 1, 100),
		directChat("busy", 7, 100),
	})

	require.Len(t, got, 2)
	assert.Equal(t, "busy", got[0].ID)
}

func TestBuild_IDBreaksFinalTie(t *testing.T) {
	agg := New(15, nil, nil)

	got := agg.Build([]chatdb.Chat{
		directChat("bbb", 1, 100),
		directChat("aaa", 1, 100),
	})

	require.Len(t, got, 2)
	assert.Equal(t, "aaa", got[0].ID)
}

func TestBuild_IgnoredAndEmptyFiltered(t *testing.T) {
	overrides := map[string]model.PersonOverride{
		"spam": {Identifier: "spam", Ignored: true},
	}
	agg := New(15, overrides, nil)

	got := agg.Build([]chatdb.Chat{
		directChat("spam", 3, 100),
		directChat("kept", 1, 100),
		directChat("read", 0, 100),
	})

	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0].ID)
}

func TestContextWindow_BoundsAndOrder(t *testing.T) {
	agg := New(2, nil, nil)

	// Raw rows arrive newest first.
	chat := directChat("c", 4, 100)
	chat.Messages = []model.Message{
		{GUID: "m4", Text: "four", Date: chatdb.AppleTime(400)},
		{GUID: "m3", Text: "three", Date: chatdb.AppleTime(300)},
		{GUID: "m2", Text: "two", Date: chatdb.AppleTime(200)},
		{GUID: "m1", Text: "one", Date: chatdb.AppleTime(100)},
	}

	got := agg.Build([]chatdb.Chat{chat})
	require.Len(t, got, 1)
	require.Len(t, got[0].Messages, 2)
	// Most recent two, ascending.
	assert.Equal(t, "three", got[0].Messages[0].Text)
	assert.Equal(t, "four", got[0].Messages[1].Text)
}

func TestContextWindow_DropsEmptyMessages(t *testing.T) {
	agg := New(15, nil, nil)

	chat := directChat("c", 2, 100)
	chat.Messages = []model.Message{
		{GUID: "m2", Text: "real", Date: chatdb.AppleTime(200)},
		{GUID: "m1", Text: "", Date: chatdb.AppleTime(100)},
	}

	got := agg.Build([]chatdb.Chat{chat})
	require.Len(t, got, 1)
	require.Len(t, got[0].Messages, 1)
	assert.Equal(t, "real", got[0].Messages[0].Text)
}

func TestContextWindow_KeepsAttachmentOnlyMessages(t *testing.T) {
	agg := New(15, nil, nil)

	chat := directChat("c", 1, 100)
	chat.Messages = []model.Message{
		{GUID: "m1", Text: "￼", Date: chatdb.AppleTime(100),
			Attachments: []model.Attachment{{Filename: "a.heic", MIMEType: "image/heic"}}},
	}

	got := agg.Build([]chatdb.Chat{chat})
	require.Len(t, got, 1)
	require.Len(t, got[0].Messages, 1)
	assert.True(t, got[0].Messages[0].IsImageOnly())
}

func TestContextWindow_AttachesReactions(t *testing.T) {
	resolver := stubResolver{"+15551230000": "Dana Hill"}
	agg := New(15, nil, resolver)

	chat := directChat("c", 2, 100)
	chat.Messages = []model.Message{
		{GUID: "r1", Kind: model.KindReaction, ReactionCode: 2001,
			AssociatedGUID: "m1", Sender: "+15551230000", Date: chatdb.AppleTime(300)},
		{GUID: "m2", Text: "and another", Date: chatdb.AppleTime(200)},
		{GUID: "m1", Text: "big news!", Date: chatdb.AppleTime(100)},
	}

	got := agg.Build([]chatdb.Chat{chat})
	require.Len(t, got, 1)
	require.Len(t, got[0].Messages, 2)

	target := got[0].Messages[0]
	assert.Equal(t, "big news!", target.Text)
	require.Len(t, target.Reactions, 1)
	assert.Equal(t, "👍", target.Reactions[0].Emoji)
	assert.Equal(t, "Dana Hill", target.Reactions[0].Sender)

	assert.Empty(t, got[0].Messages[1].Reactions)
}

func TestContextWindow_OrphanReactionDropped(t *testing.T) {
	agg := New(15, nil, nil)

	chat := directChat("c", 1, 100)
	chat.Messages = []model.Message{
		{GUID: "r1", Kind: model.KindReaction, ReactionCode: 2000,
			AssociatedGUID: "not-here", Date: chatdb.AppleTime(200)},
		{GUID: "m1", Text: "hello", Date: chatdb.AppleTime(100)},
	}

	got := agg.Build([]chatdb.Chat{chat})
	require.Len(t, got, 1)
	require.Len(t, got[0].Messages, 1)
	assert.Empty(t, got[0].Messages[0].Reactions)
}

func TestResolveName_OverrideWins(t *testing.T) {
	overrides := map[string]model.PersonOverride{
		"+15551234567": {Identifier: "+15551234567", DisplayName: "Mom"},
	}
	resolver := stubResolver{"+15551234567": "Jane Doe"}
	agg := New(15, overrides, resolver)

	got := agg.Build([]chatdb.Chat{directChat("+15551234567", 1, 100)})
	require.Len(t, got, 1)
	assert.Equal(t, "Mom", got[0].ResolvedName)
	assert.Equal(t, "Mom", got[0].Name())
}

func TestResolveName_DirectFallsBackToResolver(t *testing.T) {
	resolver := stubResolver{"+15551234567": "Jane Doe"}
	agg := New(15, nil, resolver)

	got := agg.Build([]chatdb.Chat{directChat("+15551234567", 1, 100)})
	require.Len(t, got, 1)
	assert.Equal(t, "Jane Doe", got[0].Name())
}

func TestResolveName_UnresolvedShowsIdentifier(t *testing.T) {
	agg := New(15, nil, nil)

	got := agg.Build([]chatdb.Chat{directChat("+15559998888", 1, 100)})
	require.Len(t, got, 1)
	assert.Equal(t, "+15559998888", got[0].Name())
}

func TestResolveName_GroupJoinsFirstNames(t *testing.T) {
	resolver := stubResolver{
		"+15551110000": "Alice Smith",
		"+15552220000": "Bob Jones",
	}
	agg := New(15, nil, resolver)

	chat := chatdb.Chat{
		Identifier:  "chat999",
		Style:       model.StyleGroup,
		UnreadCount: 1,
		Participants: []model.Handle{
			{Identifier: "+15551110000"},
			{Identifier: "+15552220000"},
			{Identifier: "+15553330000"},
		},
	}

	got := agg.Build([]chatdb.Chat{chat})
	require.Len(t, got, 1)
	assert.Equal(t, "Alice, Bob", got[0].ResolvedName)
}

func TestBuild_GroupDisplayNameWins(t *testing.T) {
	agg := New(15, nil, nil)

	chat := chatdb.Chat{
		Identifier:  "chat999",
		DisplayName: "Ski Trip",
		Style:       model.StyleGroup,
		UnreadCount: 1,
	}

	got := agg.Build([]chatdb.Chat{chat})
	require.Len(t, got, 1)
	assert.Equal(t, "Ski Trip", got[0].Name())
}

func TestBuildConversation_Full(t *testing.T) {
	resolver := stubResolver{"+15551110000": "Alice Smith"}
	agg := New(15, nil, resolver)

	chat := chatdb.Chat{
		RowID:        7,
		Identifier:   "+15551110000",
		Style:        model.StyleDirect,
		UnreadCount:  1,
		OldestUnread: 100,
		LastMessage:  100,
		Messages: []model.Message{
			{GUID: "m1", Text: "lunch?", Sender: "+15551110000",
				Unread: true, Date: chatdb.AppleTime(100)},
		},
	}

	want := model.Conversation{
		ID:           "+15551110000",
		ChatRowID:    7,
		ResolvedName: "Alice Smith",
		Style:        model.StyleDirect,
		UnreadCount:  1,
		OldestUnread: chatdb.AppleTime(100),
		LastMessage:  chatdb.AppleTime(100),
		Priority:     model.DefaultPriority,
		Messages: []model.Message{
			{GUID: "m1", Text: "lunch?", Sender: "+15551110000",
				SenderName: "Alice Smith", Unread: true, Date: chatdb.AppleTime(100)},
		},
	}

	got := agg.Build([]chatdb.Chat{chat})
	require.Len(t, got, 1)
	if diff := cmp.Diff(want, got[0]); diff != "" {
		t.Errorf("conversation mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_ResolvesMessageSenders(t *testing.T) {
	resolver := stubResolver{"+15551110000": "Alice Smith"}
	agg := New(15, nil, resolver)

	chat := directChat("+15551110000", 1, 100)
	chat.Messages = []model.Message{
		{GUID: "m1", Text: "hi", Sender: "+15551110000", Date: chatdb.AppleTime(100)},
	}

	got := agg.Build([]chatdb.Chat{chat})
	require.Len(t, got, 1)
	require.Len(t, got[0].Messages, 1)
	assert.Equal(t, "Alice Smith", got[0].Messages[0].SenderName)
}
