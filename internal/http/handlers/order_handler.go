// README: Customer order endpoints: place, get, cancel.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wasil/internal/http/middleware"
	"wasil/internal/modules/order"
	"wasil/internal/types"
)

type OrderHandler struct {
	orders *order.Service
}

func NewOrderHandler(svc *order.Service) *OrderHandler {
	return &OrderHandler{orders: svc}
}

type orderLineReq struct {
	ProductID string `json:"product_id"`
	SizeName  string `json:"size_name"`
	Quantity  int    `json:"quantity"`
}

type addressReq struct {
	Name    string  `json:"name"`
	Phone   string  `json:"phone"`
	Zone    string  `json:"zone"`
	Details string  `json:"details"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

type placeOrderReq struct {
	StoreID    string         `json:"store_id"`
	Lines      []orderLineReq `json:"lines"`
	Address    addressReq     `json:"address"`
	CouponCode string         `json:"coupon_code"`
}

func (h *OrderHandler) Place(c *gin.Context) {
	var req placeOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	lines := make([]order.Line, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, order.Line{
			ProductID: types.ID(l.ProductID),
			SizeName:  l.SizeName,
			Quantity:  l.Quantity,
		})
	}

	id, err := h.orders.Place(c.Request.Context(), order.PlaceCommand{
		UserID:  types.ID(middleware.CallerUID(c)),
		StoreID: types.ID(req.StoreID),
		Lines:   lines,
		Address: order.AddressInput{
			Name:     req.Address.Name,
			Phone:    req.Address.Phone,
			Zone:     req.Address.Zone,
			Details:  req.Address.Details,
			Location: types.Point{Lat: req.Address.Lat, Lng: req.Address.Lng},
		},
		CouponCode: req.CouponCode,
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"order_id": id, "status": order.StatusUnassigned})
}

func (h *OrderHandler) Get(c *gin.Context) {
	id := types.ID(c.Param("id"))
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	events, err := h.orders.Events(c.Request.Context(), id)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order": o, "events": events})
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	err := h.orders.Cancel(c.Request.Context(), order.CancelCommand{
		OrderID: types.ID(c.Param("id")),
		Actor:   order.ActorCustomer,
		ActorID: types.ID(middleware.CallerUID(c)),
	})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCancelled})
}
