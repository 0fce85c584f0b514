// README: Restaurant endpoints: accept into kitchen, mark ready, cancel.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wasil/internal/http/middleware"
	"wasil/internal/modules/order"
	"wasil/internal/types"
)

type StoreHandler struct {
	orders *order.Service
}

func NewStoreHandler(orders *order.Service) *StoreHandler {
	return &StoreHandler{orders: orders}
}

func (h *StoreHandler) Accept(c *gin.Context) {
	err := h.orders.Prepare(c.Request.Context(), order.PrepareCommand{
		OrderID: types.ID(c.Param("id")),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusPreparing})
}

func (h *StoreHandler) Ready(c *gin.Context) {
	err := h.orders.Ready(c.Request.Context(), order.ReadyCommand{
		OrderID: types.ID(c.Param("id")),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusReadyForPickup})
}

func (h *StoreHandler) Cancel(c *gin.Context) {
	err := h.orders.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID: types.ID(c.Param("id")),
		Actor:   order.ActorRestaurant,
		ActorID: types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCancelled})
}
