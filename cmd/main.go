package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"formflow/backend/internal/api/handlers"
	"formflow/backend/internal/api/routes"
	"formflow/backend/internal/config"
	"formflow/backend/internal/engine"
	"formflow/backend/internal/models"
	"formflow/backend/internal/services"
	"formflow/backend/internal/store"
	"formflow/backend/pkg/auth"
	"formflow/backend/pkg/database"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	auth.InitJWT(cfg.JWT.Secret)

	if err := database.InitDatabase(cfg); err != nil {
		log.Fatal("Failed to initialize database:", err)
	}

	eng, err := engine.New(context.Background(), store.NewGormStore(database.DB), engine.Options{
		Settings: models.Settings{
			LearningMode:        cfg.Engine.LearningMode,
			CoordinateFallback:  cfg.Engine.CoordinateFallback,
			RecordMouseMoves:    cfg.Engine.RecordMouseMoves,
			MouseMoveIntervalMs: cfg.Engine.MouseMoveIntervalMs,
			SimilarityThreshold: cfg.Engine.SimilarityThreshold,
		},
		DebugLogCapacity: cfg.Engine.DebugLogCapacity,
	})
	if err != nil {
		log.Fatal("Failed to initialize engine:", err)
	}
	handlers.Init(eng)

	services.InitRunner(eng, cfg.Chrome.HeadlessReplay, cfg.Chrome.MaxSessions)
	services.InitSessions(cfg.Chrome.MaxSessions)
	if err := services.InitScheduler(); err != nil {
		log.Fatal("Failed to initialize scheduler:", err)
	}

	router := routes.SetupRoutes(cfg)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Shutting down server...")

		if services.GlobalScheduler != nil {
			services.GlobalScheduler.Stop()
		}
		if services.GlobalRunner != nil {
			services.GlobalRunner.Shutdown()
		}
		if services.GlobalSessions != nil {
			services.GlobalSessions.Shutdown()
		}

		log.Println("Server shutdown complete")
		os.Exit(0)
	}()

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)

	if err := router.Run(addr); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
