// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"wasil/internal/http/handlers"
	"wasil/internal/http/middleware"
	"wasil/internal/infra"
	"wasil/internal/modules/assignment"
	"wasil/internal/modules/order"
	"wasil/internal/modules/worker"
)

type RouterDeps struct {
	Order    *order.Service
	Workers  *worker.Service
	Engine   *assignment.Engine
	Verifier infra.TokenVerifier
}

func NewRouter(deps RouterDeps) http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(), middleware.Logging())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	orderHandler := handlers.NewOrderHandler(deps.Order)
	api.POST("/orders", orderHandler.Place)
	api.GET("/orders/:id", orderHandler.Get)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)

	workerHandler := handlers.NewWorkerHandler(deps.Order, deps.Workers)
	wk := api.Group("/worker")
	wk.POST("/presence", workerHandler.SetPresence)
	wk.GET("/level", workerHandler.Level)
	wk.POST("/orders/:id/accept", workerHandler.Accept)
	wk.POST("/orders/:id/reject", workerHandler.Reject)
	wk.POST("/orders/:id/pickup", workerHandler.Pickup)
	wk.POST("/orders/:id/deliver", workerHandler.Deliver)

	storeHandler := handlers.NewStoreHandler(deps.Order)
	st := api.Group("/store")
	st.POST("/orders/:id/accept", storeHandler.Accept)
	st.POST("/orders/:id/ready", storeHandler.Ready)
	st.POST("/orders/:id/cancel", storeHandler.Cancel)

	adminHandler := handlers.NewAdminHandler(deps.Engine)
	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.POST("/orders/:id/assign", adminHandler.Assign)

	return r
}
