package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/server/http/dto"
)

const defaultPendingLimit = 50

// OrderHandler manages order review endpoints.
type OrderHandler struct {
	facade OrderFacade
	logger *slog.Logger
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade OrderFacade, logger *slog.Logger) *OrderHandler {
	return &OrderHandler{facade: facade, logger: logger}
}

// Pending handles GET /api/operator/orders/pending, oldest first.
func (h *OrderHandler) Pending(c *gin.Context) {
	limit := defaultPendingLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	orders, err := h.facade.Pending(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(orders) == 0 {
		c.Status(http.StatusNoContent)
		return
	}

	response := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		response = append(response, toOrderResponse(o))
	}
	c.JSON(http.StatusOK, response)
}

// Get handles GET /api/operator/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.facade.Order(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

// Approve handles POST /api/operator/orders/:id/approve.
func (h *OrderHandler) Approve(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	res, err := h.facade.Approve(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	h.logger.Info("order approved via api",
		slog.Int64("order_id", id),
		slog.Int64("operator_id", CurrentOperatorID(c)),
		slog.Bool("delivered", res.Delivered),
	)
	resp := dto.FulfillmentResponse{
		Order:     toOrderResponse(res.Allocation.Order),
		ItemID:    res.Allocation.Item.ID,
		Delivered: res.Delivered,
	}
	if res.DeliveryErr != nil {
		resp.DeliveryError = res.DeliveryErr.Error()
	}
	c.JSON(http.StatusOK, resp)
}

// Reject handles POST /api/operator/orders/:id/reject. The body is optional.
func (h *OrderHandler) Reject(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.RejectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
	}

	order, err := h.facade.Reject(c.Request.Context(), id, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	h.logger.Info("order rejected via api", slog.Int64("order_id", id), slog.Int64("operator_id", CurrentOperatorID(c)))
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

// Assign handles POST /api/operator/orders/:id/assign.
func (h *OrderHandler) Assign(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req dto.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ItemID <= 0 {
		c.Status(http.StatusBadRequest)
		return
	}

	order, err := h.facade.Assign(c.Request.Context(), id, req.ItemID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

func toOrderResponse(order model.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:           order.ID,
		CustomerID:   order.CustomerID,
		CustomerName: order.CustomerName,
		Amount:       order.Amount,
		Status:       string(order.Status),
		ItemID:       order.ItemID,
		CreatedAt:    order.CreatedAt,
		CompletedAt:  order.CompletedAt,
		Notes:        order.Notes,
	}
}
