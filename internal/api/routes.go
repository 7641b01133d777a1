package api

import (
	"github.com/gin-gonic/gin"

	"github.com/Sravyalaharimallidi/tenantflow-backend/internal/models"
)

func SetupRoutes(router *gin.Engine, handler *Handler) {
	api := router.Group("/api/v1")
	{
		api.GET("/rooms/search", handler.SearchRooms)
	}

	authed := api.Group("", Identity())
	{
		authed.GET("/bookings", handler.ListBookings)
		authed.GET("/notifications", handler.ListNotifications)
		authed.POST("/notifications/:id/read", handler.MarkNotificationRead)
	}

	tenant := authed.Group("", RequireRole(models.RoleTenant))
	{
		tenant.POST("/bookings", handler.CreateBooking)
		tenant.POST("/bookings/:id/cancel", handler.CancelBooking)
	}

	owner := authed.Group("", RequireRole(models.RoleOwner))
	{
		owner.POST("/bookings/:id/decision", handler.DecideBooking)
	}

	admin := authed.Group("/admin", RequireRole(models.RoleAdmin))
	{
		admin.POST("/geocode", handler.TriggerGeocode)
	}
}
