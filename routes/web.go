package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/address-lookup/app/controllers"
)

// SetupWebRoutes thiết lập web routes
func SetupWebRoutes(router *gin.Engine) {
	web := router.Group("/")
	{
		web.GET("/", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"message": "Address Lookup Service",
				"version": controllers.Version,
				"docs":    "/docs",
			})
		})

		web.GET("/docs", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"api": "Address Lookup API v1",
				"endpoints": map[string]string{
					"lookup":         "GET /v1/addresses/nl/:postcode/:houseNumber",
					"search":         "GET /v1/addresses/search?q=",
					"session_create": "POST /v1/sessions",
					"session_input":  "PUT /v1/sessions/:id/input",
					"session_pick":   "PUT /v1/sessions/:id/addition",
					"session_get":    "GET /v1/sessions/:id",
					"session_close":  "DELETE /v1/sessions/:id",
					"field_mapping":  "GET|PUT /v1/admin/field-mapping/:profile",
					"address_parts":  "GET /v1/admin/address-parts",
					"health":         "GET /v1/health",
				},
			})
		})
	}
}
