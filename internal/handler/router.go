package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 在 /api/v1 路由组下注册所有业务路由。
func RegisterRoutes(api *gin.RouterGroup, assets *AssetHandler, profiles *ProfileHandler, templates *TemplateHandler) {
	api.GET("/health", Health)

	models := api.Group("/models")
	{
		models.POST("/upload", assets.Upload)
		models.GET("", assets.List)
		models.GET("/search", assets.Search)
		models.GET("/stats", assets.Stats)
		models.GET("/:id", assets.Get)
		models.GET("/:id/download", assets.Download)
		models.PUT("/:id", assets.Update)
		models.DELETE("/:id", assets.Delete)
	}

	settings := api.Group("/settings")
	{
		settings.POST("", profiles.Save)
		settings.GET("/latest", profiles.Latest)
		settings.GET("/session/all", profiles.ListSession)
		settings.GET("/templates", templates.List)
		settings.POST("/templates/:templateName", templates.Instantiate)
		settings.GET("/export", profiles.Export)
		settings.POST("/import", profiles.Import)
		settings.GET("/:id", profiles.Get)
		settings.PUT("/:id", profiles.Update)
		settings.DELETE("/:id", profiles.Delete)
	}
}

// Health 返回服务存活状态。
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "ok"})
}
