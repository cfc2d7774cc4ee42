package telegram

import (
	"encoding/json"
	"fmt"

	"github.com/polkiloo/vendbot/internal/domain/model"
)

type wireUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type wireChat struct {
	ID int64 `json:"id"`
}

type wirePhotoSize struct {
	FileID   string `json:"file_id"`
	FileSize int    `json:"file_size"`
}

type wireDocument struct {
	FileID   string `json:"file_id"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
}

type wireMessage struct {
	MessageID int64           `json:"message_id"`
	From      *wireUser       `json:"from"`
	Chat      wireChat        `json:"chat"`
	Text      string          `json:"text"`
	Caption   string          `json:"caption"`
	Photo     []wirePhotoSize `json:"photo"`
	Document  *wireDocument   `json:"document"`
}

type wireCallbackQuery struct {
	ID      string       `json:"id"`
	From    wireUser     `json:"from"`
	Message *wireMessage `json:"message"`
	Data    string       `json:"data"`
}

type wireUpdate struct {
	UpdateID      int64              `json:"update_id"`
	Message       *wireMessage       `json:"message"`
	CallbackQuery *wireCallbackQuery `json:"callback_query"`
}

type wireButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type wireMarkup struct {
	InlineKeyboard [][]wireButton `json:"inline_keyboard"`
}

func markup(kb model.Keyboard) *wireMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]wireButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]wireButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, wireButton{Text: b.Text, CallbackData: b.Data})
		}
		rows = append(rows, buttons)
	}
	return &wireMarkup{InlineKeyboard: rows}
}

func displayName(u *wireUser) string {
	if u == nil {
		return ""
	}
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// toModel converts a wire update. Kinds other than messages and callbacks
// keep only the id so the poll offset can still advance.
func (w wireUpdate) toModel() model.Update {
	u := model.Update{ID: w.UpdateID}
	switch {
	case w.CallbackQuery != nil:
		cq := w.CallbackQuery
		u.UserID = cq.From.ID
		u.Username = displayName(&cq.From)
		u.CallbackID = cq.ID
		u.CallbackData = cq.Data
		u.ChatID = cq.From.ID
		if cq.Message != nil {
			u.ChatID = cq.Message.Chat.ID
			u.MessageID = cq.Message.MessageID
		}
	case w.Message != nil:
		m := w.Message
		u.ChatID = m.Chat.ID
		u.MessageID = m.MessageID
		if m.From != nil {
			u.UserID = m.From.ID
		}
		u.Username = displayName(m.From)
		u.Text = m.Text
		if u.Text == "" {
			u.Text = m.Caption
		}
		switch {
		case len(m.Photo) > 0:
			largest := m.Photo[len(m.Photo)-1]
			u.Attachment = &model.Attachment{FileID: largest.FileID, Kind: model.AttachmentPhoto, MimeType: "image/jpeg"}
		case m.Document != nil:
			u.Attachment = &model.Attachment{FileID: m.Document.FileID, Kind: model.AttachmentDocument, MimeType: m.Document.MimeType}
		}
	}
	return u
}

// DecodeUpdate parses one webhook body.
func DecodeUpdate(body []byte) (model.Update, error) {
	var w wireUpdate
	if err := json.Unmarshal(body, &w); err != nil {
		return model.Update{}, fmt.Errorf("decode update: %w", err)
	}
	if w.UpdateID == 0 {
		return model.Update{}, fmt.Errorf("decode update: missing update_id")
	}
	return w.toModel(), nil
}
