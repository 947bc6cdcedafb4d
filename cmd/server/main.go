package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/commhub/backend/api/handlers"
	"github.com/commhub/backend/internal/config"
	"github.com/commhub/backend/internal/db"
	"github.com/commhub/backend/internal/repository"
	"github.com/commhub/backend/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Ensure data directory exists
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	// Initialize database
	database, err := db.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.CloseDB()

	// Initialize activity repository
	activityRepo := repository.NewActivityRepository(database)

	// Initialize the hub. The collaborator is the seam for the business
	// modules (AI, calendar, providers); out of the box the hub
	// acknowledges chat and status traffic and records it.
	collaborator := newAckCollaborator(activityRepo)
	hub := ws.NewService(ws.Config{
		SweepInterval: cfg.SweepInterval,
		DedupWindow:   cfg.DedupWindow,
		DedupCapacity: cfg.DedupCapacity,
	}, collaborator, activityRepo)
	hub.Start()
	defer hub.Close()

	// Initialize handlers
	wsHandler := handlers.NewWebSocketHandler(hub)
	hubHandler := handlers.NewHubHandler(hub, activityRepo)

	// Initialize Gin router
	r := gin.Default()

	// Enable CORS for development
	r.Use(corsMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// API routes
	api := r.Group("/api")
	{
		wsHandler.RegisterRoutes(api)
		hubHandler.RegisterRoutes(api)
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down server...")
		hub.Close()
		db.CloseDB()
		os.Exit(0)
	}()

	// Start server
	log.Printf("Starting server on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// newAckCollaborator returns the default message handler: chat messages get
// an acknowledgement reply, status updates are recorded, everything else
// passes without a reply.
func newAckCollaborator(recorder ws.ActivityRecorder) ws.Collaborator {
	return ws.CollaboratorFunc(func(ctx context.Context, sessionID string, msg *ws.Message) (*ws.Message, error) {
		switch msg.Type {
		case ws.MessageTypeChat:
			recorder.RecordActivity(ctx, "chat", "message_received", "ok", msg.Message)
			return &ws.Message{
				Type:      ws.MessageTypeChat,
				SessionID: sessionID,
				Message:   "received",
				Timestamp: time.Now().UnixMilli(),
			}, nil
		case ws.MessageTypeStatus, ws.MessageTypeModuleStatus:
			recorder.RecordActivity(ctx, msg.ModuleID, "status_update", msg.Status, msg.Message)
			return nil, nil
		}
		return nil, nil
	})
}

// corsMiddleware returns a CORS middleware for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
