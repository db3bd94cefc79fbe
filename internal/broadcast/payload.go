package broadcast

import (
	"strings"

	"github.com/mymmrac/telego"
)

// MessageRef points at an existing message in the admin chat, used with the
// transport's copy primitive.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// Payload is one broadcastable message. It carries the reference to the
// original message and, where the message type supports it, a self-contained
// extracted form (exactly one of PhotoID/VideoID/DocumentID/Text is set).
// The extracted form survives deletion of the original and is the only form
// a watermark can be applied to.
type Payload struct {
	Ref *MessageRef `json:"ref,omitempty"`

	Text       string `json:"text,omitempty"`
	Caption    string `json:"caption,omitempty"`
	PhotoID    string `json:"photo_id,omitempty"`
	VideoID    string `json:"video_id,omitempty"`
	DocumentID string `json:"document_id,omitempty"`
}

// FromMessage captures a Telegram message as a Payload. Unsupported message
// types (stickers, polls, audio, ...) yield a reference-only payload that can
// still be copied.
func FromMessage(msg telego.Message) Payload {
	p := Payload{Ref: &MessageRef{ChatID: msg.Chat.ID, MessageID: msg.MessageID}}

	switch {
	case len(msg.Photo) > 0:
		// Telegram lists photo sizes smallest first; take the largest.
		p.PhotoID = msg.Photo[len(msg.Photo)-1].FileID
		p.Caption = msg.Caption
	case msg.Video != nil:
		p.VideoID = msg.Video.FileID
		p.Caption = msg.Caption
	case msg.Document != nil:
		p.DocumentID = msg.Document.FileID
		p.Caption = msg.Caption
	case msg.Text != "":
		p.Text = msg.Text
	}
	return p
}

// HasValue reports whether the payload carries a self-contained form.
func (p Payload) HasValue() bool {
	return p.Text != "" || p.PhotoID != "" || p.VideoID != "" || p.DocumentID != ""
}

// Preview returns a short human-readable description for list views.
func (p Payload) Preview() string {
	switch {
	case p.PhotoID != "":
		return previewText("photo", p.Caption)
	case p.VideoID != "":
		return previewText("video", p.Caption)
	case p.DocumentID != "":
		return previewText("document", p.Caption)
	case p.Text != "":
		return truncate(p.Text, 40)
	default:
		return "message"
	}
}

func previewText(kind, caption string) string {
	if caption == "" {
		return kind
	}
	return kind + ": " + truncate(caption, 30)
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
