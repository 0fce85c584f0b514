// README: Shared handler utilities (JSON helpers, error mapping).
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wasil/internal/modules/coupon"
	"wasil/internal/modules/inventory"
	"wasil/internal/modules/order"
	"wasil/internal/modules/pricing"
	"wasil/internal/modules/worker"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeOrderError(c *gin.Context, err error) {
	switch err {
	case order.ErrBadRequest:
		writeError(c, http.StatusBadRequest, err.Error())
	case order.ErrNotFound, order.ErrMerchantNotFound,
		inventory.ErrProductNotFound, coupon.ErrNotFound, worker.ErrNotFound:
		writeError(c, http.StatusNotFound, err.Error())
	case inventory.ErrOutOfStock, inventory.ErrUnavailable,
		coupon.ErrExhausted, coupon.ErrAlreadyUsed,
		order.ErrInvalidTransition, order.ErrConflict, order.ErrWorkerNotEligible:
		writeError(c, http.StatusConflict, err.Error())
	case pricing.ErrNoCoverage:
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}
