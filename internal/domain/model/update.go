package model

import "strings"

// AttachmentKind distinguishes inbound file types.
type AttachmentKind string

const (
	AttachmentPhoto    AttachmentKind = "photo"
	AttachmentDocument AttachmentKind = "document"
)

// Attachment references a file sent by a chat user.
type Attachment struct {
	FileID   string
	Kind     AttachmentKind
	MimeType string
}

// IsImage reports whether the attachment can serve as payment evidence.
func (a *Attachment) IsImage() bool {
	if a == nil || a.FileID == "" {
		return false
	}
	if a.Kind == AttachmentPhoto {
		return true
	}
	return strings.HasPrefix(a.MimeType, "image/")
}

// Update is a transport-neutral inbound event.
type Update struct {
	ID           int64
	ChatID       int64
	UserID       int64
	Username     string
	MessageID    int64
	Text         string
	CallbackID   string
	CallbackData string
	Attachment   *Attachment
}

// IsCallback reports whether the update carries a callback token.
func (u Update) IsCallback() bool {
	return u.CallbackID != ""
}

// Button is a single inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Keyboard is an inline keyboard laid out in rows.
type Keyboard [][]Button
