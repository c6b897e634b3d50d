package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nhle/inbox-sweep/internal/model"
)

// ErrUnknownConversation is returned by draft operations targeting a
// conversation that is not in the current session state.
var ErrUnknownConversation = errors.New("unknown conversation")

// ErrEmptyText is returned when committing a draft with no text.
var ErrEmptyText = errors.New("no text provided")

// Entry pairs a conversation snapshot with its reply state.
type Entry struct {
	Conversation model.Conversation
	Draft        model.DraftState
}

// Stats summarizes session progress. Later conversations are excluded
// from Remaining, the progress denominator.
type Stats struct {
	Total     int
	Drafts    int
	Ready     int
	Later     int
	Remaining int
}

// Session is the authoritative in-memory state mapping conversation
// identifiers to their latest snapshot and draft state. It is the only
// component holding state across ingestion passes. All mutation goes
// through its mutex; refresh and draft edits are mutually exclusive
// critical sections.
type Session struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// New creates an empty session.
func New() *Session {
	return &Session{entries: make(map[string]*Entry)}
}

// ReconcileResult reports what a reconciliation pass did.
type ReconcileResult struct {
	Inserted int
	Updated  int
	Removed  int
}

// Reconcile merges a freshly aggregated conversation list into the
// session. Surviving conversations get the new snapshot but keep their
// draft state unchanged; new ones are inserted empty; conversations
// absent from the fresh list are removed unconditionally, discarding
// any draft they held. The merge is total and deterministic: it never
// fails.
func (s *Session) Reconcile(fresh []model.Conversation) ReconcileResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ReconcileResult
	seen := make(map[string]bool, len(fresh))

	for _, conv := range fresh {
		seen[conv.ID] = true
		if entry, ok := s.entries[conv.ID]; ok {
			entry.Conversation = conv
			res.Updated++
			continue
		}
		s.entries[conv.ID] = &Entry{
			Conversation: conv,
			Draft:        model.DraftState{Phase: model.PhaseEmpty},
		}
		res.Inserted++
	}

	for id := range s.entries {
		if !seen[id] {
			// The conversation was resolved outside this tool; the
			// draft goes with it. This is the one deliberate
			// data-loss point of the merge.
			delete(s.entries, id)
			res.Removed++
		}
	}

	return res
}

// SetDraft stores user-typed text for a conversation. Empty text
// returns the conversation to Empty; editing a committed conversation
// demotes it back to Draft.
func (s *Session) SetDraft(id, text string) (model.DraftState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return model.DraftState{}, fmt.Errorf("setting draft for %s: %w", id, ErrUnknownConversation)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		entry.Draft = model.DraftState{Phase: model.PhaseEmpty}
	} else {
		entry.Draft = model.DraftState{Phase: model.PhaseDraft, Text: text}
	}
	return entry.Draft, nil
}

// Commit marks text as ready for send-all.
func (s *Session) Commit(id, text string) (model.DraftState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return model.DraftState{}, fmt.Errorf("committing %s: %w", id, ErrUnknownConversation)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return entry.Draft, fmt.Errorf("committing %s: %w", id, ErrEmptyText)
	}

	entry.Draft = model.DraftState{Phase: model.PhaseCommitted, Text: text}
	return entry.Draft, nil
}

// ToggleLater defers a conversation, clearing any draft text, or
// un-defers it back to Empty. Returns whether the conversation is now
// deferred.
func (s *Session) ToggleLater(id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return false, fmt.Errorf("toggling later for %s: %w", id, ErrUnknownConversation)
	}

	if entry.Draft.Phase == model.PhaseLater {
		entry.Draft = model.DraftState{Phase: model.PhaseEmpty}
		return false, nil
	}
	entry.Draft = model.DraftState{Phase: model.PhaseLater}
	return true, nil
}

// ClearDraft resets a conversation to Empty. The send orchestrator
// calls this after a successful send so a repeated send-all does not
// resend the same text.
func (s *Session) ClearDraft(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[id]; ok {
		entry.Draft = model.DraftState{Phase: model.PhaseEmpty}
	}
}

// Get returns a copy of the entry for id.
func (s *Session) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok {
		return Entry{}, false
	}
	return *entry, true
}

// Snapshot returns copies of all entries in priority order.
func (s *Session) Snapshot() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return model.Less(entries[i].Conversation, entries[j].Conversation)
	})
	return entries
}

// Committed returns copies of the entries ready for send-all, in
// priority order with the conversation ID as the deterministic
// tiebreak.
func (s *Session) Committed() []Entry {
	var committed []Entry
	for _, e := range s.Snapshot() {
		if e.Draft.Phase == model.PhaseCommitted {
			committed = append(committed, e)
		}
	}
	return committed
}

// Stats computes the current progress counts.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var st Stats
	st.Total = len(s.entries)
	for _, e := range s.entries {
		switch e.Draft.Phase {
		case model.PhaseDraft:
			st.Drafts++
		case model.PhaseCommitted:
			st.Ready++
		case model.PhaseLater:
			st.Later++
		}
	}
	st.Remaining = st.Total - st.Later
	return st
}
