package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/address-lookup/app/controllers"
	"github.com/address-lookup/helpers/utils"
)

// Controllers gom tất cả controllers cần cho routing
type Controllers struct {
	Address *controllers.AddressController
	Session *controllers.SessionController
	Admin   *controllers.AdminController
}

// SetupAPIRoutes thiết lập tất cả API routes
func SetupAPIRoutes(router *gin.Engine, ctrl Controllers) {
	v1 := router.Group("/v1")
	{
		addresses := v1.Group("/addresses")
		{
			addresses.GET("/nl/:postcode/:houseNumber", ctrl.Address.Lookup)
			addresses.GET("/search", ctrl.Address.Search)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.POST("", ctrl.Session.Create)
			sessions.GET("/:id", ctrl.Session.Get)
			sessions.PUT("/:id/input", ctrl.Session.Input)
			sessions.PUT("/:id/addition", ctrl.Session.SelectAddition)
			sessions.DELETE("/:id", ctrl.Session.Delete)
		}

		admin := v1.Group("/admin")
		{
			admin.GET("/field-mapping/:profile", ctrl.Admin.GetFieldMapping)
			admin.PUT("/field-mapping/:profile", ctrl.Admin.UpdateFieldMapping)
			admin.POST("/field-mapping/:profile/refresh", ctrl.Admin.RefreshFieldMapping)
			admin.GET("/address-parts", ctrl.Admin.AddressParts)
			admin.POST("/cache/invalidate", ctrl.Admin.InvalidateCache)
			admin.POST("/search/seed", ctrl.Admin.SeedAddresses)
			admin.GET("/stats", ctrl.Admin.GetStats)
		}

		v1.GET("/health", ctrl.Address.HealthCheck)
	}
}

// SetupHealthRoutes thiết lập health check routes
func SetupHealthRoutes(router *gin.Engine, addressController *controllers.AddressController) {
	router.GET("/health", addressController.HealthCheck)
	router.GET("/ready", addressController.HealthCheck)
	router.GET("/live", func(c *gin.Context) { c.Status(http.StatusNoContent) })
}

// SetupAllRoutes thiết lập tất cả routes
func SetupAllRoutes(router *gin.Engine, ctrl Controllers) {
	setupMiddleware(router)

	SetupWebRoutes(router)
	SetupHealthRoutes(router, ctrl.Address)
	SetupAPIRoutes(router, ctrl)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error":  "Route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})
}

// setupMiddleware thiết lập middleware cho router
func setupMiddleware(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(requestID())
	if gin.Mode() != gin.TestMode {
		router.Use(gin.Logger())
	}
}

// requestID gắn X-Request-ID cho mỗi request, giữ nguyên giá trị client gửi lên
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = utils.GenerateShortID()
		}
		c.Header("X-Request-ID", id)
		c.Next()
	}
}
