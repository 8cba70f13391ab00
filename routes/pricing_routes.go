package routes

import (
	"staypricing/internal/handlers"
	"staypricing/pkg/websocket"

	"github.com/gin-gonic/gin"
)

// SetupPricingRoutes sets up the rule, calendar and bulk price API
func SetupPricingRoutes(r *gin.RouterGroup, ruleHandler *handlers.RuleHandler, calendarHandler *handlers.CalendarHandler) {
	rules := r.Group("/rules")
	{
		rules.GET("", ruleHandler.ListRules)
		rules.POST("", ruleHandler.CreateRule)
		rules.GET("/:id", ruleHandler.GetRule)
		rules.PUT("/:id", ruleHandler.UpdateRule)
		rules.PATCH("/:id/enabled", ruleHandler.SetRuleEnabled)
		rules.DELETE("/:id", ruleHandler.DeleteRule)
	}

	properties := r.Group("/properties/:id")
	{
		properties.GET("/calendar", calendarHandler.GetCalendar)
		properties.POST("/bulk-price", calendarHandler.ApplyBulkPrice)
	}

	r.POST("/calendar", calendarHandler.GetPortfolioCalendar)
}

// SetupWebSocketRoutes exposes calendar selection sessions
func SetupWebSocketRoutes(r *gin.Engine, path string, wsHandler *websocket.Handler) {
	r.GET(path, wsHandler.HandleWebSocket)
}

func SetupHealthRoutes(r *gin.Engine, healthHandler *handlers.HealthHandler) {
	r.GET("/health", healthHandler.Health)
}
