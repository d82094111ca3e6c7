package bot

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestParseUpdate(t *testing.T) {
	chat := &tgbotapi.Chat{ID: 42}

	cases := []struct {
		name string
		upd  tgbotapi.Update
		want CapturedMessage
		ok   bool
	}{
		{
			name: "text message",
			upd: tgbotapi.Update{Message: &tgbotapi.Message{
				MessageID: 7, Chat: chat, Text: "fix the login timeout",
			}},
			want: CapturedMessage{Type: TypeText, Content: "fix the login timeout", MessageID: 7, ChatID: 42},
			ok:   true,
		},
		{
			name: "caption falls back as text",
			upd: tgbotapi.Update{Message: &tgbotapi.Message{
				MessageID: 8, Chat: chat, Caption: "screenshot of the bug",
			}},
			want: CapturedMessage{Type: TypeText, Content: "screenshot of the bug", MessageID: 8, ChatID: 42},
			ok:   true,
		},
		{
			name: "voice note carries the file id",
			upd: tgbotapi.Update{Message: &tgbotapi.Message{
				MessageID: 9, Chat: chat, Voice: &tgbotapi.Voice{FileID: "file-123"},
			}},
			want: CapturedMessage{Type: TypeVoice, Content: "file-123", MessageID: 9, ChatID: 42},
			ok:   true,
		},
		{
			name: "no message",
			upd:  tgbotapi.Update{},
			ok:   false,
		},
		{
			name: "empty content",
			upd:  tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 10, Chat: chat}},
			ok:   false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, ok := ParseUpdate(c.upd)
			if ok != c.ok {
				t.Fatalf("ok = %v, want %v", ok, c.ok)
			}
			if ok && got != c.want {
				t.Fatalf("ParseUpdate = %+v, want %+v", got, c.want)
			}
		})
	}
}
