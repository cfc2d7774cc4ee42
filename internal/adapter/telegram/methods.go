package telegram

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/domain/model"
)

type sentMessage struct {
	MessageID int64 `json:"message_id"`
}

// GetUpdates long-polls for updates starting at offset.
func (c *HTTPClient) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]model.Update, error) {
	payload := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout / time.Second),
		"allowed_updates": []string{"message", "callback_query"},
	}
	var wire []wireUpdate
	if err := c.call(ctx, 0, "getUpdates", payload, &wire); err != nil {
		return nil, err
	}
	updates := make([]model.Update, 0, len(wire))
	for _, w := range wire {
		updates = append(updates, w.toModel())
	}
	return updates, nil
}

// SendMessage sends plain text with an optional inline keyboard.
func (c *HTTPClient) SendMessage(ctx context.Context, chatID int64, text string, keyboard model.Keyboard) (int64, error) {
	payload := map[string]any{"chat_id": chatID, "text": text}
	if kb := markup(keyboard); kb != nil {
		payload["reply_markup"] = kb
	}
	var msg sentMessage
	if err := c.call(ctx, chatID, "sendMessage", payload, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// EditMessageText replaces the text and keyboard of a sent message.
func (c *HTTPClient) EditMessageText(ctx context.Context, chatID, messageID int64, text string, keyboard model.Keyboard) error {
	payload := map[string]any{"chat_id": chatID, "message_id": messageID, "text": text}
	if kb := markup(keyboard); kb != nil {
		payload["reply_markup"] = kb
	}
	return c.call(ctx, chatID, "editMessageText", payload, nil)
}

// AnswerCallback acknowledges a button press, optionally with a toast.
func (c *HTTPClient) AnswerCallback(ctx context.Context, callbackID, text string) error {
	payload := map[string]any{"callback_query_id": callbackID}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, 0, "answerCallbackQuery", payload, nil)
}

// ForwardMessage copies a message, such as a payment proof, to another chat.
func (c *HTTPClient) ForwardMessage(ctx context.Context, toChatID, fromChatID, messageID int64) error {
	payload := map[string]any{"chat_id": toChatID, "from_chat_id": fromChatID, "message_id": messageID}
	return c.call(ctx, toChatID, "forwardMessage", payload, nil)
}

// SendPhoto re-sends an already uploaded photo by file id.
func (c *HTTPClient) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, keyboard model.Keyboard) (int64, error) {
	payload := map[string]any{"chat_id": chatID, "photo": fileID, "caption": caption}
	if kb := markup(keyboard); kb != nil {
		payload["reply_markup"] = kb
	}
	var msg sentMessage
	if err := c.call(ctx, chatID, "sendPhoto", payload, &msg); err != nil {
		return 0, err
	}
	return msg.MessageID, nil
}

// SendDocument uploads content as a file.
func (c *HTTPClient) SendDocument(ctx context.Context, chatID int64, filename string, content []byte, caption string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return err
	}
	if caption != "" {
		if err := w.WriteField("caption", caption); err != nil {
			return err
		}
	}
	part, err := w.CreateFormFile("document", filename)
	if err != nil {
		return err
	}
	if _, err := part.Write(content); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("sendDocument"), &body)
	if err != nil {
		return &domainErrors.TransportError{ChatID: chatID, Err: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, chatID, "sendDocument", nil)
}
