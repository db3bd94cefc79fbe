package broadcast

import (
	"strings"
	"testing"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMessageText(t *testing.T) {
	p := FromMessage(telego.Message{
		MessageID: 11,
		Chat:      telego.Chat{ID: 42},
		Text:      "hello",
	})

	require.NotNil(t, p.Ref)
	assert.Equal(t, int64(42), p.Ref.ChatID)
	assert.Equal(t, 11, p.Ref.MessageID)
	assert.Equal(t, "hello", p.Text)
	assert.True(t, p.HasValue())
}

func TestFromMessagePicksLargestPhoto(t *testing.T) {
	p := FromMessage(telego.Message{
		MessageID: 12,
		Chat:      telego.Chat{ID: 42},
		Photo: []telego.PhotoSize{
			{FileID: "small"},
			{FileID: "medium"},
			{FileID: "large"},
		},
		Caption: "sunset",
	})

	assert.Equal(t, "large", p.PhotoID)
	assert.Equal(t, "sunset", p.Caption)
	assert.Empty(t, p.Text)
	assert.True(t, p.HasValue())
}

func TestFromMessageVideoAndDocument(t *testing.T) {
	video := FromMessage(telego.Message{
		MessageID: 13,
		Chat:      telego.Chat{ID: 42},
		Video:     &telego.Video{FileID: "vid"},
		Caption:   "clip",
	})
	assert.Equal(t, "vid", video.VideoID)
	assert.Equal(t, "clip", video.Caption)

	doc := FromMessage(telego.Message{
		MessageID: 14,
		Chat:      telego.Chat{ID: 42},
		Document:  &telego.Document{FileID: "doc"},
	})
	assert.Equal(t, "doc", doc.DocumentID)
	assert.True(t, doc.HasValue())
}

func TestFromMessageUnsupportedTypeIsReferenceOnly(t *testing.T) {
	p := FromMessage(telego.Message{
		MessageID: 15,
		Chat:      telego.Chat{ID: 42},
		Sticker:   &telego.Sticker{FileID: "stk"},
	})

	require.NotNil(t, p.Ref)
	assert.False(t, p.HasValue())
	assert.Equal(t, "message", p.Preview())
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "short text", Payload{Text: "short text"}.Preview())
	assert.Equal(t, "photo", Payload{PhotoID: "x"}.Preview())
	assert.Equal(t, "photo: look", Payload{PhotoID: "x", Caption: "look"}.Preview())
	assert.Equal(t, "video", Payload{VideoID: "x"}.Preview())
	assert.Equal(t, "document: readme", Payload{DocumentID: "x", Caption: "readme"}.Preview())

	long := strings.Repeat("a", 60)
	got := Payload{Text: long}.Preview()
	assert.Equal(t, strings.Repeat("a", 40)+"…", got)

	multiline := Payload{Text: "line one\nline two"}.Preview()
	assert.Equal(t, "line one line two", multiline)
}
