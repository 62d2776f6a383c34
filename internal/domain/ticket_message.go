package domain

import "time"

// MessageAuthorType indicates who authored a message.
type MessageAuthorType string

const (
	AuthorTypeRequester MessageAuthorType = "REQUESTER"
	AuthorTypeAgent     MessageAuthorType = "AGENT"
	AuthorTypeSystem    MessageAuthorType = "SYSTEM"
)

// TicketMessage captures communications in a ticket thread.
type TicketMessage struct {
	ID          string
	TicketID    string
	AuthorType  MessageAuthorType
	AuthorID    *string
	Internal    bool
	Body        string
	Attachments []AttachmentReference
	CreatedAt   time.Time
}

// AttachmentReference stores metadata for files kept by the external file store.
type AttachmentReference struct {
	ID         string
	TicketID   string
	MessageID  *string
	StorageKey string
	FileName   string
	MimeType   string
	SizeBytes  int64
	CreatedAt  time.Time
}
