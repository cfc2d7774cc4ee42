package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/polkiloo/vendbot/internal/domain/model"
	"github.com/polkiloo/vendbot/internal/server/http/dto"
)

const defaultItemLimit = 100

// ItemHandler manages inventory endpoints.
type ItemHandler struct {
	facade InventoryFacade
}

// NewItemHandler constructs ItemHandler.
func NewItemHandler(facade InventoryFacade) *ItemHandler {
	return &ItemHandler{facade: facade}
}

// List handles GET /api/operator/items.
func (h *ItemHandler) List(c *gin.Context) {
	items, err := h.facade.AvailableItems(c.Request.Context(), defaultItemLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	if len(items) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	response := make([]dto.ItemResponse, 0, len(items))
	for _, it := range items {
		response = append(response, toItemResponse(it))
	}
	c.JSON(http.StatusOK, response)
}

// Add handles POST /api/operator/items.
func (h *ItemHandler) Add(c *gin.Context) {
	var req dto.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	line := req.Login + "|" + req.Secret
	if notes := strings.TrimSpace(req.Notes); notes != "" {
		line += "|" + notes
	}

	item, err := h.facade.AddItem(c.Request.Context(), line)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toItemResponse(*item))
}

// Delete handles DELETE /api/operator/items/:id. Items tied to completed
// orders need ?force=true.
func (h *ItemHandler) Delete(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(c.Query("force"))
	if err := h.facade.DeleteItem(c.Request.Context(), id, force); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Stats handles GET /api/operator/stats.
func (h *ItemHandler) Stats(c *gin.Context) {
	st, err := h.facade.Stats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.StatsResponse{
		Customers:      st.Customers,
		ItemsTotal:     st.ItemsTotal,
		ItemsAvailable: st.ItemsAvailable,
		PendingOrders:  st.PendingOrders,
		CompletedTotal: st.CompletedTotal,
		RevenueTotal:   st.RevenueTotal,
		CompletedToday: st.CompletedToday,
		RevenueToday:   st.RevenueToday,
	})
}

func toItemResponse(it model.Item) dto.ItemResponse {
	return dto.ItemResponse{ID: it.ID, Login: it.Login, Notes: it.Notes, Sold: it.Sold, AddedAt: it.AddedAt}
}
