package router

import (
	"github.com/gin-gonic/gin"

	"github.com/printhub/fulfillment/internal/interfaces/http/handler"
)

// Handlers bundles the HTTP handlers of the fulfillment API
type Handlers struct {
	Routing     *handler.RoutingHandler
	Reservation *handler.ReservationHandler
	Version     *handler.VersionHandler
	Credit      *handler.CreditHandler
	Supply      *handler.SupplyHandler
	System      *handler.SystemHandler
}

// FulfillmentRoutes builds the route groups served under /api/{version}.
// webhookLimit, when set, guards the supplier webhook endpoint with its own
// per-supplier budget.
func FulfillmentRoutes(h Handlers, webhookLimit gin.HandlerFunc) []RouteRegistrar {
	var groups []RouteRegistrar

	if h.Routing != nil {
		routing := NewDomainGroup("routing", "/routing")
		routing.POST("/plan", h.Routing.RouteOrder)
		routing.GET("/select", h.Routing.SelectSupplier)
		routing.GET("/inventory/:sku", h.Routing.CheckInventory)
		routing.GET("/statistics", h.Routing.GetStatistics)
		groups = append(groups, routing)
	}

	if h.Reservation != nil {
		reservations := NewDomainGroup("reservations", "/reservations")
		reservations.POST("", h.Reservation.Reserve)
		reservations.POST("/check", h.Reservation.Check)
		reservations.GET("/outstanding", h.Reservation.Outstanding)
		reservations.GET("/:id", h.Reservation.Get)
		reservations.POST("/:id/release", h.Reservation.Release)

		sequences := NewDomainGroup("sequences", "/sequences")
		sequences.POST("", h.Reservation.AssignSequence)
		groups = append(groups, reservations, sequences)
	}

	if h.Version != nil {
		assets := NewDomainGroup("assets", "/assets")
		assets.POST("/:assetId/versions", h.Version.Next)
		groups = append(groups, assets)
	}

	if h.Credit != nil {
		credit := NewDomainGroup("credit", "/credit")
		customers := credit.Group("customers", "/customers")
		customers.PUT("/:customerId", h.Credit.Update)
		customers.GET("/:customerId", h.Credit.Get)
		customers.POST("/:customerId/check", h.Credit.Check)
		customers.POST("/:customerId/reserve", h.Credit.Reserve)
		customers.GET("/:customerId/history", h.Credit.History)
		credit.POST("/payments/:recordId", h.Credit.RecordPayment)
		groups = append(groups, credit)
	}

	if h.Supply != nil {
		offers := NewDomainGroup("offers", "/offers")
		offers.POST("", h.Supply.RegisterOffer)

		sync := NewDomainGroup("sync", "/sync")
		sync.GET("/jobs", h.Supply.ListJobs)
		sync.GET("/jobs/:id", h.Supply.GetJob)
		sync.POST("/:kind", h.Supply.ScheduleSync)

		webhooks := NewDomainGroup("webhooks", "/webhooks")
		if webhookLimit != nil {
			webhooks.Use(webhookLimit)
		}
		webhooks.POST("/suppliers/:supplierId", h.Supply.Webhook)
		groups = append(groups, offers, sync, webhooks)
	}

	if h.System != nil {
		system := NewDomainGroup("system", "/system")
		system.GET("/info", h.System.GetSystemInfo)
		system.GET("/ping", h.System.Ping)
		groups = append(groups, system)
	}

	return groups
}

// RegisterHealth mounts the unversioned liveness endpoint used by probes
func RegisterHealth(engine *gin.Engine, h *handler.SystemHandler) {
	engine.GET("/health", h.Health)
}
