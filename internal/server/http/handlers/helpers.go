package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/vendbot/internal/domain/errors"
	"github.com/polkiloo/vendbot/internal/server/http/dto"
	"github.com/polkiloo/vendbot/internal/server/http/middleware"
)

// CurrentOperatorID extracts the authenticated operator identifier from context.
func CurrentOperatorID(c *gin.Context) int64 {
	val, ok := c.Get(middleware.OperatorIDContextKey)
	if !ok {
		return 0
	}
	id, _ := val.(int64)
	return id
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid id"})
		return 0, false
	}
	return id, true
}

// writeError maps domain failures onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	var finalized *domainErrors.AlreadyFinalizedError
	var invalid *domainErrors.ValidationError
	switch {
	case errors.As(err, &finalized):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Status: finalized.Status})
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: invalid.Error()})
	case errors.Is(err, domainErrors.ErrNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domainErrors.ErrAllocationConflict),
		errors.Is(err, domainErrors.ErrForeignKeyConflict),
		errors.Is(err, domainErrors.ErrAlreadyExists):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domainErrors.ErrStockExhausted):
		c.JSON(http.StatusUnprocessableEntity, dto.ErrorResponse{Error: err.Error(), Status: "pending"})
	case errors.Is(err, domainErrors.ErrValidation):
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}
