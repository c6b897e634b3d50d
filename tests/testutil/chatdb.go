package testutil

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// fixtureSchema mirrors the subset of the Messages database schema the
// engine reads.
const fixtureSchema = `
CREATE TABLE chat (
	ROWID INTEGER PRIMARY KEY,
	guid TEXT,
	chat_identifier TEXT,
	display_name TEXT,
	style INTEGER,
	is_filtered INTEGER DEFAULT 0
);
CREATE TABLE handle (
	ROWID INTEGER PRIMARY KEY,
	id TEXT,
	service TEXT
);
CREATE TABLE message (
	ROWID INTEGER PRIMARY KEY,
	guid TEXT,
	text TEXT,
	attributedBody BLOB,
	handle_id INTEGER,
	date INTEGER,
	is_from_me INTEGER DEFAULT 0,
	is_read INTEGER DEFAULT 0,
	item_type INTEGER DEFAULT 0,
	is_finished INTEGER DEFAULT 1,
	cache_has_attachments INTEGER DEFAULT 0,
	associated_message_type INTEGER DEFAULT 0,
	associated_message_guid TEXT
);
CREATE TABLE chat_message_join (
	chat_id INTEGER,
	message_id INTEGER
);
CREATE TABLE chat_handle_join (
	chat_id INTEGER,
	handle_id INTEGER
);
CREATE TABLE attachment (
	ROWID INTEGER PRIMARY KEY,
	filename TEXT,
	mime_type TEXT,
	transfer_name TEXT
);
CREATE TABLE message_attachment_join (
	message_id INTEGER,
	attachment_id INTEGER
);
`

// Fixture is a writable scratch copy of the Messages schema for tests.
type Fixture struct {
	DB   *sqlx.DB
	Path string

	nextHandle  int64
	nextMessage int64
	nextChat    int64
}

// NewFixture creates an empty Messages-shaped database in a temp
// directory and closes it when the test completes.
func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chat.db")
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("creating fixture database: %v", err)
	}
	if _, err := db.Exec(fixtureSchema); err != nil {
		t.Fatalf("applying fixture schema: %v", err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("closing fixture database: %v", err)
		}
	})

	return &Fixture{DB: db, Path: path}
}

// AddChat inserts a chat row and returns its ROWID. Style 45 is a
// direct conversation, 43 a group.
func (f *Fixture) AddChat(t *testing.T, identifier, displayName string, style int) int64 {
	t.Helper()

	f.nextChat++
	_, err := f.DB.Exec(
		`INSERT INTO chat (ROWID, guid, chat_identifier, display_name, style) VALUES (?, ?, ?, ?, ?)`,
		f.nextChat, "guid-"+identifier, identifier, displayName, style,
	)
	if err != nil {
		t.Fatalf("inserting chat: %v", err)
	}
	return f.nextChat
}

// AddHandle inserts a handle row, joins it to the chat, and returns
// its ROWID.
func (f *Fixture) AddHandle(t *testing.T, chatID int64, identifier, service string) int64 {
	t.Helper()

	f.nextHandle++
	_, err := f.DB.Exec(
		`INSERT INTO handle (ROWID, id, service) VALUES (?, ?, ?)`,
		f.nextHandle, identifier, service,
	)
	if err != nil {
		t.Fatalf("inserting handle: %v", err)
	}
	_, err = f.DB.Exec(
		`INSERT INTO chat_handle_join (chat_id, handle_id) VALUES (?, ?)`,
		chatID, f.nextHandle,
	)
	if err != nil {
		t.Fatalf("joining handle to chat: %v", err)
	}
	return f.nextHandle
}

// MessageRow describes one message to insert into the fixture.
type MessageRow struct {
	GUID           string
	Text           string
	AttributedBody []byte
	HandleID       int64
	Date           int64
	FromMe         bool
	Read           bool
	ItemType       int
	AssociatedType int
	AssociatedGUID string
}

// AddMessage inserts a message row joined to the chat and returns its
// ROWID.
func (f *Fixture) AddMessage(t *testing.T, chatID int64, row MessageRow) int64 {
	t.Helper()

	f.nextMessage++
	if row.GUID == "" {
		row.GUID = "msg-" + strconv.FormatInt(f.nextMessage, 10)
	}
	_, err := f.DB.Exec(
		`INSERT INTO message
			(ROWID, guid, text, attributedBody, handle_id, date,
			 is_from_me, is_read, item_type, associated_message_type, associated_message_guid)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.nextMessage, row.GUID, row.Text, row.AttributedBody, row.HandleID, row.Date,
		row.FromMe, row.Read, row.ItemType, row.AssociatedType, row.AssociatedGUID,
	)
	if err != nil {
		t.Fatalf("inserting message: %v", err)
	}
	_, err = f.DB.Exec(
		`INSERT INTO chat_message_join (chat_id, message_id) VALUES (?, ?)`,
		chatID, f.nextMessage,
	)
	if err != nil {
		t.Fatalf("joining message to chat: %v", err)
	}
	return f.nextMessage
}

// AddAttachment inserts an attachment row joined to a message.
func (f *Fixture) AddAttachment(t *testing.T, messageID int64, filename, mimeType string) {
	t.Helper()

	res, err := f.DB.Exec(
		`INSERT INTO attachment (filename, mime_type, transfer_name) VALUES (?, ?, ?)`,
		filename, mimeType, filepath.Base(filename),
	)
	if err != nil {
		t.Fatalf("inserting attachment: %v", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		t.Fatalf("attachment id: %v", err)
	}
	if _, err := f.DB.Exec(
		`INSERT INTO message_attachment_join (message_id, attachment_id) VALUES (?, ?)`,
		messageID, id,
	); err != nil {
		t.Fatalf("joining attachment to message: %v", err)
	}
	if _, err := f.DB.Exec(
		`UPDATE message SET cache_has_attachments = 1 WHERE ROWID = ?`,
		messageID,
	); err != nil {
		t.Fatalf("flagging attachments on message: %v", err)
	}
}
