package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yoockh/prepdeck/internal/api/handlers"
	"github.com/yoockh/prepdeck/internal/api/middleware"
)

type Deps struct {
	Session   *handlers.SessionHandler
	Analytics *handlers.AnalyticsHandler
	Retention *handlers.RetentionHandler
	Export    *handlers.ExportHandler
	WS        *handlers.WSHandler

	// Auth authenticates every route except /ping and /metrics.
	Auth     gin.HandlerFunc
	Gatherer prometheus.Gatherer
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	auth := r.Group("/")
	auth.Use(d.Auth)

	auth.POST("/sessions", d.Session.Start)
	auth.GET("/sessions", d.Session.Query)
	auth.GET("/sessions/:session_id", d.Session.Get)
	auth.POST("/sessions/:session_id/responses", d.Session.AppendResponse)
	auth.POST("/sessions/:session_id/complete", d.Session.Complete)
	auth.POST("/sessions/:session_id/abandon", d.Session.Abandon)
	auth.DELETE("/sessions/:session_id", d.Session.Delete)
	auth.GET("/sessions/:session_id/events", d.Session.Events)

	auth.GET("/analytics", d.Analytics.Me)

	auth.GET("/retention/policy", d.Retention.GetPolicy)
	auth.PUT("/retention/policy", d.Retention.SetPolicy)
	auth.POST("/retention/apply", d.Retention.Apply)
	auth.POST("/retention/sweep", d.Retention.Sweep)
	auth.POST("/retention/restore", d.Retention.Restore)
	auth.POST("/retention/delete", d.Retention.DeleteArchived)
	auth.GET("/retention/stats", d.Retention.MyStats)

	auth.GET("/export", d.Export.Export)

	if d.WS != nil {
		auth.GET("/ws/sessions/:session_id", d.WS.SessionWS)
	}

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/retention/stats", d.Retention.GlobalStats)
}
