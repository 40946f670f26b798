// Messages are immutable once persisted: no edit or delete is modeled here.
package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Payload is the client-supplied part of a message: either text or an opaque
// image reference already validated by the upload collaborator.
type Payload struct {
	Text     string
	ImageRef string
}

func (p Payload) IsImage() bool {
	return p.ImageRef != ""
}

// TrimmedText returns the text with surrounding whitespace removed,
// the form in which it is validated and persisted.
func (p Payload) TrimmedText() string {
	return strings.TrimSpace(p.Text)
}

// Message is a persisted chat event. ID and CreatedAt are assigned by the
// server at persistence time, never by the client.
type Message struct {
	ID        uuid.UUID
	ChannelID ChannelID
	SenderID  string
	Text      string
	ImageRef  string
	CreatedAt time.Time
}
