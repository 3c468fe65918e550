package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/doc-transition/api/handler"
	"github.com/fyerfyer/doc-transition/api/middleware"
)

// SetupRouter 设置API路由
func SetupRouter(
	transitionHandler *handler.TransitionHandler,
	runHandler *handler.RunHandler,
) *gin.Engine {
	if err := middleware.RegisterValidators(); err != nil {
		middleware.GetLogger().WithError(err).Error("Failed to register validators")
	}

	router := gin.New()
	router.MaxMultipartMemory = handler.DefaultMaxUpload

	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	router.Use(middleware.ErrorMiddleware())
	router.Use(Cors())

	// 在调试模式下记录请求体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestBodyLog())
	}

	api := router.Group("/api")
	{
		tGroup := api.Group("/transitions")
		{
			// 同步生成 - POST /api/transitions
			tGroup.POST("", transitionHandler.Weave)

			// 异步生成 - POST /api/transitions/async
			tGroup.POST("/async", transitionHandler.Submit)

			// 查询任务 - GET /api/transitions/tasks/:id
			tGroup.GET("/tasks/:id", transitionHandler.GetTask)
		}

		runGroup := api.Group("/runs")
		{
			runGroup.GET("", runHandler.ListRuns)
			runGroup.GET("/:id", runHandler.GetRun)
			runGroup.GET("/:id/pdf", runHandler.ExportPDF)
			runGroup.DELETE("/:id", runHandler.DeleteRun)
		}

		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
	}

	router.NoRoute(func(c *gin.Context) {
		middleware.HandleError(c, middleware.NewNotFoundError("route not found"))
	})

	return router
}

// Cors 跨域资源共享中间件
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Trace-ID, Content-Disposition")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
