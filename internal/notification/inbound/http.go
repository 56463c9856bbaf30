package inbound

import (
	"github.com/shandysiswandi/gonotify/internal/pkg/router"
)

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	r.GET("/api/v1/notification/preferences/:user_id", end.GetPreference)
	r.PUT("/api/v1/notification/preferences/:user_id", end.UpsertPreference)

	r.POST("/api/v1/notification/notifications", end.CreateNotification)
	r.GET("/api/v1/notification/notifications/:id", end.GetNotification)
	r.GET("/api/v1/notification/users/:user_id/notifications", end.ListNotifications)

	r.POST("/api/v1/notification/alerts", end.TriggerAlert)
}
