package chatdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/nhle/inbox-sweep/internal/model"
)

// Chat is the raw per-conversation snapshot produced by one read pass,
// before aggregation. Messages are ordered newest first and include
// reaction rows; the aggregator windows and attaches them.
type Chat struct {
	RowID        int64
	Identifier   string
	DisplayName  string
	Style        int
	UnreadCount  int
	OldestUnread int64
	LastMessage  int64
	Participants []model.Handle
	Messages     []model.Message
}

// unreadChatsQuery selects every chat holding at least one finished,
// unread, inbound message, with its unread count and date bounds.
const unreadChatsQuery = `
	SELECT
		c.ROWID,
		COALESCE(c.display_name, ''),
		COALESCE(c.chat_identifier, ''),
		COALESCE(c.style, 0),
		COUNT(*),
		MIN(m.date),
		MAX(m.date)
	FROM chat c
	JOIN chat_message_join cmj ON c.ROWID = cmj.chat_id
	JOIN message m ON cmj.message_id = m.ROWID
	WHERE m.is_read = 0
	  AND m.is_from_me = 0
	  AND m.item_type = 0
	  AND m.is_finished = 1
	  AND c.is_filtered != 2
	GROUP BY c.ROWID
	ORDER BY MAX(m.date) DESC`

// participantsQuery lists the member handles of a chat.
const participantsQuery = `
	SELECT h.id, COALESCE(h.service, '')
	FROM handle h
	JOIN chat_handle_join chj ON h.ROWID = chj.handle_id
	WHERE chj.chat_id = ?`

// messagesQuery pulls the most recent rows of a chat, including rows
// carrying association markers so the mapper can classify them.
const messagesQuery = `
	SELECT
		m.ROWID,
		m.guid,
		COALESCE(m.text, ''),
		m.attributedBody,
		m.date,
		m.is_from_me,
		m.is_read,
		m.cache_has_attachments,
		COALESCE(m.associated_message_type, 0),
		COALESCE(m.associated_message_guid, ''),
		COALESCE(h.id, '')
	FROM message m
	JOIN chat_message_join cmj ON cmj.message_id = m.ROWID
	LEFT JOIN handle h ON m.handle_id = h.ROWID
	WHERE cmj.chat_id = ?
	  AND m.item_type = 0
	ORDER BY m.date DESC
	LIMIT ?`

// attachmentsQuery lists the attachments joined to a message.
const attachmentsQuery = `
	SELECT
		COALESCE(a.filename, ''),
		COALESCE(a.mime_type, ''),
		COALESCE(a.transfer_name, '')
	FROM attachment a
	JOIN message_attachment_join maj ON a.ROWID = maj.attachment_id
	WHERE maj.message_id = ?`

// UnreadChats performs one logical read pass and returns the raw
// snapshot of every conversation with unread messages. The store may be
// locked by a concurrent writer; the pass is retried with bounded
// backoff and ultimately surfaces a BusyError. An empty result is a
// valid outcome, distinct from any error.
func (d *DB) UnreadChats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	err := d.withRetry(ctx, func() error {
		var err error
		chats, err = d.readSnapshot(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chats, nil
}

func (d *DB) readSnapshot(ctx context.Context) ([]Chat, error) {
	rows, err := d.db.QueryxContext(ctx, unreadChatsQuery)
	if err != nil {
		return nil, fmt.Errorf("querying unread chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var (
			c            Chat
			oldest, last int64
		)
		if err := rows.Scan(
			&c.RowID, &c.DisplayName, &c.Identifier, &c.Style,
			&c.UnreadCount, &oldest, &last,
		); err != nil {
			return nil, fmt.Errorf("scanning chat row: %w", err)
		}
		c.OldestUnread = oldest
		c.LastMessage = last
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat rows: %w", err)
	}

	for i := range chats {
		if err := d.loadParticipants(ctx, &chats[i]); err != nil {
			return nil, err
		}
		if err := d.loadMessages(ctx, &chats[i]); err != nil {
			return nil, err
		}
	}

	return chats, nil
}

func (d *DB) loadParticipants(ctx context.Context, c *Chat) error {
	if c.Style != model.StyleGroup {
		return nil
	}

	rows, err := d.db.QueryxContext(ctx, participantsQuery, c.RowID)
	if err != nil {
		return fmt.Errorf("querying participants for chat %d: %w", c.RowID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, service string
		if err := rows.Scan(&id, &service); err != nil {
			return fmt.Errorf("scanning participant row: %w", err)
		}
		c.Participants = append(c.Participants, model.Handle{
			Identifier: id,
			Service:    model.Service(service),
		})
	}
	return rows.Err()
}

func (d *DB) loadMessages(ctx context.Context, c *Chat) error {
	// Fetch beyond the context window so reaction rows interleaved
	// with regular messages do not starve it.
	limit := d.window * 3

	rows, err := d.db.QueryxContext(ctx, messagesQuery, c.RowID, limit)
	if err != nil {
		return fmt.Errorf("querying messages for chat %d: %w", c.RowID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			msg            model.Message
			body           []byte
			rawDate        int64
			fromMe, isRead bool
			hasAttachments bool
			assocType      int
			assocGUID      string
		)
		if err := rows.Scan(
			&msg.RowID, &msg.GUID, &msg.Text, &body, &rawDate,
			&fromMe, &isRead, &hasAttachments,
			&assocType, &assocGUID, &msg.Sender,
		); err != nil {
			return fmt.Errorf("scanning message row: %w", err)
		}

		// Prefer the plain text column; fall back to decoding the
		// attributedBody blob, which may legitimately be absent.
		if msg.Text == "" {
			msg.Text = DecodeAttributedBody(body)
		}

		msg.Date = AppleTime(rawDate)
		msg.FromMe = fromMe
		msg.Unread = !fromMe && !isRead
		if fromMe {
			msg.Sender = ""
		}
		msg.Kind, msg.ReactionCode = classifyAssociation(assocType)
		if msg.Kind != model.KindText {
			msg.AssociatedGUID = targetGUID(assocGUID)
		}

		if hasAttachments {
			attachments, err := d.loadAttachments(ctx, msg.RowID)
			if err != nil {
				return err
			}
			msg.Attachments = attachments
		}

		c.Messages = append(c.Messages, msg)
	}
	return rows.Err()
}

func (d *DB) loadAttachments(ctx context.Context, messageRowID int64) ([]model.Attachment, error) {
	rows, err := d.db.QueryxContext(ctx, attachmentsQuery, messageRowID)
	if err != nil {
		return nil, fmt.Errorf("querying attachments for message %d: %w", messageRowID, err)
	}
	defer rows.Close()

	var attachments []model.Attachment
	for rows.Next() {
		var a model.Attachment
		if err := rows.Scan(&a.Filename, &a.MIMEType, &a.TransferName); err != nil {
			return nil, fmt.Errorf("scanning attachment row: %w", err)
		}
		if a.Filename != "" {
			attachments = append(attachments, a)
		}
	}
	return attachments, rows.Err()
}

// classifyAssociation maps an association type code to a message kind.
// The 2000 series are tapbacks, the 3000 series their removals; any
// unrecognized code is treated as a regular message rather than
// rejected.
func classifyAssociation(code int) (model.MessageKind, int) {
	switch {
	case code >= 2000 && code <= 2006:
		return model.KindReaction, code
	case code >= 3000 && code <= 3006:
		return model.KindReactionRemoval, code
	default:
		return model.KindText, 0
	}
}

// targetGUID strips the store's association prefixes ("p:0/GUID",
// "p:1/GUID", "bp:GUID") and returns the bare target message GUID.
func targetGUID(assoc string) string {
	if rest, ok := strings.CutPrefix(assoc, "bp:"); ok {
		return rest
	}
	if strings.HasPrefix(assoc, "p:") {
		if _, rest, ok := strings.Cut(assoc, "/"); ok {
			return rest
		}
	}
	return assoc
}
