// README: Worker endpoints: presence, offer accept/reject, pickup, deliver, level.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"wasil/internal/http/middleware"
	"wasil/internal/modules/order"
	"wasil/internal/modules/worker"
	"wasil/internal/types"
)

type WorkerHandler struct {
	orders  *order.Service
	workers *worker.Service
}

func NewWorkerHandler(orders *order.Service, workers *worker.Service) *WorkerHandler {
	return &WorkerHandler{orders: orders, workers: workers}
}

// callerWorkerID keys workers by the phone number from Firebase phone auth.
func callerWorkerID(c *gin.Context) (types.ID, bool) {
	phone := middleware.CallerPhone(c)
	if phone == "" {
		writeError(c, http.StatusUnauthorized, "phone-auth token required")
		return "", false
	}
	return types.ID(phone), true
}

type presenceReq struct {
	Online bool `json:"online"`
}

func (h *WorkerHandler) SetPresence(c *gin.Context) {
	workerID, ok := callerWorkerID(c)
	if !ok {
		return
	}
	var req presenceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.workers.SetOnline(c.Request.Context(), workerID, req.Online); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"online": req.Online})
}

func (h *WorkerHandler) Level(c *gin.Context) {
	workerID, ok := callerWorkerID(c)
	if !ok {
		return
	}
	level, err := h.workers.LevelStatus(c.Request.Context(), workerID, time.Now())
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, level)
}

func (h *WorkerHandler) Accept(c *gin.Context) {
	workerID, ok := callerWorkerID(c)
	if !ok {
		return
	}
	err := h.orders.Confirm(c.Request.Context(), order.ConfirmCommand{
		OrderID:  types.ID(c.Param("id")),
		WorkerID: workerID,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusConfirmed})
}

func (h *WorkerHandler) Reject(c *gin.Context) {
	workerID, ok := callerWorkerID(c)
	if !ok {
		return
	}
	err := h.orders.Reject(c.Request.Context(), order.RejectCommand{
		OrderID:  types.ID(c.Param("id")),
		WorkerID: workerID,
		Reason:   "worker_reject",
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusUnassigned})
}

func (h *WorkerHandler) Pickup(c *gin.Context) {
	workerID, ok := callerWorkerID(c)
	if !ok {
		return
	}
	err := h.orders.Pickup(c.Request.Context(), order.PickupCommand{
		OrderID:  types.ID(c.Param("id")),
		WorkerID: workerID,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusOnTheWay})
}

func (h *WorkerHandler) Deliver(c *gin.Context) {
	workerID, ok := callerWorkerID(c)
	if !ok {
		return
	}
	err := h.orders.Deliver(c.Request.Context(), order.DeliverCommand{
		OrderID:  types.ID(c.Param("id")),
		WorkerID: workerID,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusDelivered})
}
