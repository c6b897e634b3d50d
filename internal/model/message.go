package model

import (
	"strings"
	"time"
)

// Service identifies the transport a handle communicates over.
type Service string

const (
	ServiceIMessage Service = "iMessage"
	ServiceSMS      Service = "SMS"
	ServiceUnknown  Service = ""
)

// Handle is a sender or recipient identifier: a phone number, email
// address, or opaque chat id, plus an optional resolved display name.
type Handle struct {
	// Identifier is the raw identifier as stored (phone/email/chat id).
	Identifier string `json:"identifier"`

	// DisplayName is the resolved contact name, empty when unresolved.
	DisplayName string `json:"display_name,omitempty"`

	// Service is the transport tag for this handle.
	Service Service `json:"service"`
}

// Name returns the display name if resolved, otherwise the raw identifier.
func (h Handle) Name() string {
	if h.DisplayName != "" {
		return h.DisplayName
	}
	return h.Identifier
}

// MessageKind classifies a message row by its association marker.
type MessageKind int

const (
	// KindText is a regular message, including rows carrying an
	// association code we do not recognize.
	KindText MessageKind = iota

	// KindReaction is a tapback attached to another message.
	KindReaction

	// KindReactionRemoval is the retraction of a previous tapback.
	KindReactionRemoval
)

// Reaction is a tapback left on a message.
type Reaction struct {
	Emoji  string `json:"emoji"`
	FromMe bool   `json:"from_me"`
	Sender string `json:"sender,omitempty"`
}

// Attachment is a file attached to a message.
type Attachment struct {
	Filename     string `json:"filename"`
	MIMEType     string `json:"mime_type"`
	TransferName string `json:"transfer_name"`
}

// IsImage reports whether this attachment is an image.
func (a Attachment) IsImage() bool {
	return strings.HasPrefix(a.MIMEType, "image/")
}

// Message is one inbound or outbound unit within a conversation.
// Messages are value objects: they are regenerated wholesale on every
// ingestion pass and carry no identity beyond their GUID.
type Message struct {
	// RowID is the message's row number in the store. It is not stable
	// across store rebuilds; GUID is the durable identifier.
	RowID int64 `json:"rowid"`

	// GUID is the store's permanent identifier for this message.
	GUID string `json:"guid"`

	// Text is the extracted message text, possibly empty.
	Text string `json:"text"`

	// Date is the normalized origin timestamp.
	Date time.Time `json:"date"`

	// FromMe is true for outbound messages.
	FromMe bool `json:"from_me"`

	// Unread is true for inbound messages not yet marked read.
	Unread bool `json:"unread"`

	// Sender is the raw identifier of the sending handle, empty for
	// outbound messages.
	Sender string `json:"sender,omitempty"`

	// SenderName is the resolved display name of the sender, empty
	// when unresolved or outbound.
	SenderName string `json:"sender_name,omitempty"`

	// Kind classifies the row (regular, reaction, reaction removal).
	Kind MessageKind `json:"-"`

	// AssociatedGUID is the target message GUID for reactions, with
	// the store's "p:N/" or "bp:" prefix stripped.
	AssociatedGUID string `json:"-"`

	// ReactionCode is the raw association type code for reactions.
	ReactionCode int `json:"-"`

	Attachments []Attachment `json:"attachments,omitempty"`
	Reactions   []Reaction   `json:"reactions,omitempty"`
}

// DisplayText returns the message text with attachment placeholder
// characters (U+FFFC) removed and surrounding whitespace trimmed.
func (m Message) DisplayText() string {
	return strings.TrimSpace(strings.ReplaceAll(m.Text, "￼", ""))
}

// IsImageOnly reports whether the message carries images but no text.
func (m Message) IsImageOnly() bool {
	hasImage := false
	for _, a := range m.Attachments {
		if a.IsImage() {
			hasImage = true
			break
		}
	}
	return hasImage && m.DisplayText() == ""
}

// ReactionSummary returns the unique reaction emojis in order of first
// occurrence, joined into one string.
func (m Message) ReactionSummary() string {
	seen := make(map[string]bool, len(m.Reactions))
	var b strings.Builder
	for _, r := range m.Reactions {
		if seen[r.Emoji] {
			continue
		}
		seen[r.Emoji] = true
		b.WriteString(r.Emoji)
	}
	return b.String()
}

// reactionEmoji maps tapback association codes to their emoji.
var reactionEmoji = map[int]string{
	2000: "❤️",         // loved
	2001: "\U0001f44d", // liked
	2002: "\U0001f44e", // disliked
	2003: "\U0001f602", // laughed
	2004: "‼️",         // emphasized
	2005: "❓",          // questioned
	2006: "\U0001fac6", // heart hands
}

// ReactionEmoji returns the emoji for a tapback association code, or
// false for codes without a known mapping.
func ReactionEmoji(code int) (string, bool) {
	e, ok := reactionEmoji[code]
	return e, ok
}
