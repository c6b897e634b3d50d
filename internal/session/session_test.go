package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/inbox-sweep/internal/model"
)

func conv(id string, priority int, oldest time.Time) model.Conversation {
	return model.Conversation{
		ID:           id,
		Style:        model.StyleDirect,
		UnreadCount:  1,
		OldestUnread: oldest,
		Priority:     priority,
	}
}

func seed(t *testing.T, ids ...string) *Session {
	t.Helper()

	s := New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fresh := make([]model.Conversation, len(ids))
	for i, id := range ids {
		fresh[i] = conv(id, model.DefaultPriority, base.Add(time.Duration(i)*time.Minute))
	}
	s.Reconcile(fresh)
	return s
}

func TestReconcile_InsertUpdateRemove(t *testing.T) {
	s := New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	res := s.Reconcile([]model.Conversation{conv("a", 5, base), conv("b", 5, base)})
	assert.Equal(t, ReconcileResult{Inserted: 2}, res)

	res = s.Reconcile([]model.Conversation{conv("a", 5, base), conv("c", 5, base)})
	assert.Equal(t, ReconcileResult{Inserted: 1, Updated: 1, Removed: 1}, res)

	_, ok := s.Get("b")
	assert.False(t, ok)
}

func TestReconcile_PreservesDraftAcrossRefresh(t *testing.T) {
	s := seed(t, "a")
	_, err := s.SetDraft("a", "working on a reply")
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	updated := conv("a", 5, base)
	updated.UnreadCount = 4
	s.Reconcile([]model.Conversation{updated})

	entry, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, 4, entry.Conversation.UnreadCount)
	assert.Equal(t, model.PhaseDraft, entry.Draft.Phase)
	assert.Equal(t, "working on a reply", entry.Draft.Text)
}

func TestReconcile_PreservesLater(t *testing.T) {
	s := seed(t, "a")
	_, err := s.ToggleLater("a")
	require.NoError(t, err)

	s.Reconcile([]model.Conversation{conv("a", 5, time.Now())})

	entry, ok := s.Get("a")
	require.True(t, ok)
	assert.Equal(t, model.PhaseLater, entry.Draft.Phase)
}

func TestReconcile_DropsDraftWhenConversationVanishes(t *testing.T) {
	s := seed(t, "a", "b")
	_, err := s.Commit("b", "never sent")
	require.NoError(t, err)

	s.Reconcile([]model.Conversation{conv("a", 5, time.Now())})

	_, ok := s.Get("b")
	assert.False(t, ok)
}

func TestSetDraft_Transitions(t *testing.T) {
	s := seed(t, "a")

	draft, err := s.SetDraft("a", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDraft, draft.Phase)
	assert.Equal(t, "hello", draft.Text)

	// Clearing the text returns to Empty.
	draft, err = s.SetDraft("a", "   ")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseEmpty, draft.Phase)
	assert.Empty(t, draft.Text)
}

func TestSetDraft_DemotesCommitted(t *testing.T) {
	s := seed(t, "a")
	_, err := s.Commit("a", "ready to go")
	require.NoError(t, err)

	draft, err := s.SetDraft("a", "actually, this instead")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseDraft, draft.Phase)
}

func TestSetDraft_UnknownConversation(t *testing.T) {
	s := seed(t, "a")

	_, err := s.SetDraft("nope", "text")
	assert.ErrorIs(t, err, ErrUnknownConversation)
}

func TestCommit_RequiresText(t *testing.T) {
	s := seed(t, "a")

	_, err := s.Commit("a", "  ")
	assert.ErrorIs(t, err, ErrEmptyText)

	draft, err := s.Commit("a", "shipping it")
	require.NoError(t, err)
	assert.Equal(t, model.PhaseCommitted, draft.Phase)
	assert.Equal(t, "shipping it", draft.Text)
}

func TestToggleLater_RoundTrip(t *testing.T) {
	s := seed(t, "a")
	_, err := s.SetDraft("a", "half-typed")
	require.NoError(t, err)

	later, err := s.ToggleLater("a")
	require.NoError(t, err)
	assert.True(t, later)

	entry, _ := s.Get("a")
	assert.Equal(t, model.PhaseLater, entry.Draft.Phase)
	assert.Empty(t, entry.Draft.Text, "deferring discards draft text")

	later, err = s.ToggleLater("a")
	require.NoError(t, err)
	assert.False(t, later)

	entry, _ = s.Get("a")
	assert.Equal(t, model.PhaseEmpty, entry.Draft.Phase)
}

func TestClearDraft(t *testing.T) {
	s := seed(t, "a")
	_, err := s.Commit("a", "sent already")
	require.NoError(t, err)

	s.ClearDraft("a")

	entry, _ := s.Get("a")
	assert.Equal(t, model.PhaseEmpty, entry.Draft.Phase)
	assert.Empty(t, entry.Draft.Text)
}

func TestSnapshot_PriorityOrder(t *testing.T) {
	s := New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Reconcile([]model.Conversation{
		conv("low", 9, base),
		conv("high", 1, base),
		conv("mid", 5, base),
	})

	entries := s.Snapshot()
	require.Len(t, entries, 3)
	assert.Equal(t, "high", entries[0].Conversation.ID)
	assert.Equal(t, "mid", entries[1].Conversation.ID)
	assert.Equal(t, "low", entries[2].Conversation.ID)
}

func TestCommitted_FiltersAndOrders(t *testing.T) {
	s := New()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.Reconcile([]model.Conversation{
		conv("a", 2, base),
		conv("b", 1, base),
		conv("c", 5, base),
	})
	_, err := s.Commit("a", "reply a")
	require.NoError(t, err)
	_, err = s.Commit("b", "reply b")
	require.NoError(t, err)
	_, err = s.SetDraft("c", "not ready")
	require.NoError(t, err)

	committed := s.Committed()
	require.Len(t, committed, 2)
	assert.Equal(t, "b", committed[0].Conversation.ID)
	assert.Equal(t, "a", committed[1].Conversation.ID)
}

func TestStats_LaterExcludedFromRemaining(t *testing.T) {
	s := seed(t, "a", "b", "c", "d")
	_, err := s.SetDraft("a", "typing")
	require.NoError(t, err)
	_, err = s.Commit("b", "done")
	require.NoError(t, err)
	_, err = s.ToggleLater("c")
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, Stats{
		Total:     4,
		Drafts:    1,
		Ready:     1,
		Later:     1,
		Remaining: 3,
	}, stats)
}
