package handlers

import (
	"crypto/subtle"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/vendbot/internal/adapter/telegram"
)

const maxUpdateBody = 1 << 20

// WebhookHandler receives chat updates pushed by the Bot API.
type WebhookHandler struct {
	queue  UpdateQueue
	secret string
	logger *slog.Logger
}

// NewWebhookHandler constructs WebhookHandler. An empty secret disables the endpoint.
func NewWebhookHandler(queue UpdateQueue, secret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{queue: queue, secret: secret, logger: logger}
}

// Receive handles POST /telegram/webhook/:secret. Malformed updates are
// acknowledged so the Bot API does not redeliver them; updates the queue
// refuses get 503 so it does.
func (h *WebhookHandler) Receive(c *gin.Context) {
	if h.secret == "" || subtle.ConstantTimeCompare([]byte(c.Param("secret")), []byte(h.secret)) != 1 {
		c.Status(http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxUpdateBody))
	if err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	u, err := telegram.DecodeUpdate(body)
	if err != nil {
		h.logger.Warn("webhook update dropped", slog.String("error", err.Error()))
		c.Status(http.StatusOK)
		return
	}

	if err := h.queue.Enqueue(c.Request.Context(), u); err != nil {
		h.logger.Warn("webhook update not queued", slog.Int64("update_id", u.ID), slog.String("error", err.Error()))
		c.Status(http.StatusServiceUnavailable)
		return
	}
	c.Status(http.StatusOK)
}

