package router

import (
	"momo/access"
	"momo/api"
	"momo/config"
	_ "momo/docs"
	"momo/middleware"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, svc *access.Service, log zerolog.Logger) *gin.Engine {
	// 设置运行模式
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log))

	// CORS 中间件
	r.Use(CORSMiddleware())

	// Swagger 文档
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// 健康检查
	r.GET("/health", api.Health)

	h := api.NewHandler(svc)
	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(cfg.RateLimit.Max, cfg.RateLimit.Window), middleware.BearerToken())
	{
		transactions := v1.Group("/transactions")
		{
			transactions.GET("", h.ListTransactions)
			transactions.POST("", h.CreateTransaction)
			transactions.GET("/ref/:ref", h.GetTransactionByRef)
			transactions.GET("/:id", h.GetTransaction)
			transactions.PUT("/:id", h.UpdateTransaction)
			transactions.DELETE("/:id", h.DeleteTransaction)
			transactions.GET("/:id/labels", h.ListTransactionLabels)
			transactions.POST("/:id/labels", h.AttachLabel)
			transactions.DELETE("/:id/labels/:label_id", h.DetachLabel)
		}

		// 用户、类别、标签
		for path, entity := range map[string]access.Entity{
			"/users":      access.EntityUser,
			"/categories": access.EntityCategory,
			"/labels":     access.EntityLabel,
		} {
			g := v1.Group(path)
			g.GET("", h.List(entity))
			g.POST("", h.Create(entity))
			g.GET("/:id", h.Get(entity))
			g.PUT("/:id", h.Update(entity))
			g.DELETE("/:id", h.Delete(entity))
		}

		v1.GET("/audit", h.ListAudit)
		v1.GET("/audit/:id", h.GetAudit)
		v1.POST("/ingest", h.Ingest)
		v1.GET("/export/csv", h.ExportCSV)
	}

	return r
}

// CORSMiddleware CORS 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
