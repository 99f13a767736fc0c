package routes

import (
	"github.com/gin-gonic/gin"

	"formflow/backend/internal/api/handlers"
	"formflow/backend/internal/api/middleware"
	"formflow/backend/internal/config"
)

func SetupRoutes(cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	router := gin.Default()

	router.Use(middleware.CORSMiddleware())
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/login", handlers.Login)
			auth.POST("/register", handlers.Register)
		}

		v1.GET("/health", handlers.HealthCheck)

		// WebSocket endpoint; the session id is the implicit grant.
		v1.GET("/ws/recording", handlers.RecordingWebSocket)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware())
		{
			users := protected.Group("/users")
			{
				users.GET("/me", handlers.GetAccount)
				users.PUT("/me", handlers.UpdateAccount)
			}

			macros := protected.Group("/macros")
			{
				macros.GET("", handlers.GetMacros)
				macros.POST("", handlers.SaveMacro)
				macros.GET("/export", handlers.ExportMacros)
				macros.POST("/import", handlers.ImportMacros)
				macros.POST("/run", handlers.RunMacro)
				macros.GET("/:name", handlers.GetMacro)
				macros.DELETE("/:name", handlers.DeleteMacro)
			}

			runs := protected.Group("/runs")
			{
				runs.GET("", handlers.GetRuns)
				runs.POST("/:id/stop", handlers.StopRun)
			}
			protected.GET("/status/:id", handlers.GetRunStatus)

			recording := protected.Group("/recording")
			{
				recording.POST("/start", handlers.StartRecording)
				recording.POST("/stop", handlers.StopRecording)
				recording.GET("/status", handlers.GetRecordingStatus)
				recording.POST("/save", handlers.SaveRecording)
			}

			sessions := protected.Group("/sessions")
			{
				sessions.POST("", handlers.OpenSession)
				sessions.DELETE("/:id", handlers.CloseSession)
			}

			protected.POST("/fill", handlers.Fill)

			trainer := protected.Group("/trainer")
			{
				trainer.GET("/queue", handlers.GetTrainingQueue)
				trainer.POST("/run", handlers.RunTrainer)
				trainer.POST("/commit", handlers.CommitTraining)
			}

			protected.GET("/profile", handlers.GetProfile)
			protected.PUT("/profile", handlers.PutProfile)

			mappings := protected.Group("/mappings")
			{
				mappings.GET("", handlers.GetMappings)
				mappings.PUT("", handlers.PutMapping)
				mappings.DELETE("", handlers.DeleteMapping)
			}

			schedule := protected.Group("/schedule")
			{
				schedule.GET("", handlers.GetSchedules)
				schedule.POST("", handlers.CreateSchedule)
				schedule.GET("/:id", handlers.GetSchedule)
				schedule.DELETE("/:id", handlers.DeleteSchedule)
			}

			protected.GET("/settings", handlers.GetSettings)
			protected.PUT("/settings", handlers.UpdateSettings)
			protected.GET("/whitelist", handlers.GetWhitelist)
			protected.PUT("/whitelist", handlers.PutWhitelist)
			protected.GET("/debug/log", handlers.GetDebugLog)
			protected.DELETE("/debug/log", handlers.ClearDebugLog)
		}
	}

	return router
}
