package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/taskmaster/taskmaster-api/internal/ai"
	"github.com/taskmaster/taskmaster-api/internal/api/handlers"
	"github.com/taskmaster/taskmaster-api/internal/api/middleware"
	"github.com/taskmaster/taskmaster-api/internal/config"
	"github.com/taskmaster/taskmaster-api/internal/cron"
	"github.com/taskmaster/taskmaster-api/internal/db"
	"github.com/taskmaster/taskmaster-api/internal/email"
	"github.com/taskmaster/taskmaster-api/internal/notification"
	"github.com/taskmaster/taskmaster-api/internal/repository"
	"github.com/taskmaster/taskmaster-api/internal/service"
	"github.com/taskmaster/taskmaster-api/internal/socket"
	"github.com/taskmaster/taskmaster-api/internal/storage"
)

func main() {
	// ============================================
	// Load environment variables
	// ============================================
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// ============================================
	// Load configuration
	// ============================================
	cfg := config.Load()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ============================================
	// Run database migrations
	// ============================================
	log.Println("Running database migrations...")
	if err := db.RunMigrations(cfg.DatabaseURL, "./internal/db/migrations"); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Println("Database migrations completed")

	// ============================================
	// Initialize PostgreSQL
	// ============================================
	pg, err := db.NewPostgresDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	defer pg.Close()
	log.Println("Connected to PostgreSQL")

	repos := repository.NewRepositories(pg.Pool)

	// ============================================
	// Initialize Redis (optional)
	// ============================================
	var redisDB *db.RedisDB
	if cfg.RedisURL != "" {
		redisDB, err = db.NewRedisDB(cfg.RedisURL)
		if err != nil {
			log.Printf("Failed to connect to Redis: %v (continuing without cache)", err)
			redisDB = nil
		} else {
			defer redisDB.Close()
			log.Println("Redis cache enabled")
		}
	}

	// ============================================
	// Initialize Email Service + Queue
	// ============================================
	emailSvc := email.NewService(&email.Config{
		Host:        cfg.SMTPHost,
		Port:        cfg.SMTPPort,
		User:        cfg.SMTPUser,
		Password:    cfg.SMTPPassword,
		From:        cfg.SMTPFrom,
		FromName:    cfg.SMTPFromName,
		UseTLS:      cfg.SMTPUseTLS,
		FrontendURL: cfg.FrontendURL,
	})
	emailQueue := email.NewQueue(emailSvc, 2)
	defer emailQueue.Stop()
	if cfg.SMTPHost == "" {
		log.Println("Email not configured (SMTP_HOST not set), emails will be skipped")
	}

	// ============================================
	// Initialize Attachment Storage
	// ============================================
	store, err := storage.NewLocalStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("Failed to initialize upload storage: %v", err)
	}

	// ============================================
	// Initialize AI Service (optional)
	// ============================================
	aiSvc := ai.NewService(cfg.OpenAIAPIKey)
	if aiSvc.Enabled() {
		log.Println("AI task suggestions enabled")
	}

	// ============================================
	// Initialize WebSocket Hub
	// ============================================
	hub := socket.NewHub()
	go hub.Run()
	broadcaster := socket.NewBroadcaster(hub)
	wsHandler := socket.NewHandler(hub, cfg.JWTSecret)
	log.Println("WebSocket hub initialized")

	// ============================================
	// Initialize Notification Service
	// ============================================
	notificationSvc := notification.NewService(repos.Notifications, redisDB)
	notificationSvc.SetBroadcaster(broadcaster)

	// ============================================
	// Initialize All Services
	// ============================================
	services := service.NewServices(&service.ServiceDeps{
		Config:      cfg,
		Repos:       repos,
		NotifSvc:    notificationSvc,
		EmailQueue:  emailQueue,
		Storage:     store,
		AISvc:       aiSvc,
		Broadcaster: broadcaster,
	})

	h := handlers.NewHandlers(services)
	h.Attachment.SetMaxUploadSize(cfg.MaxUploadSize)

	// ============================================
	// Initialize Cron Scheduler
	// ============================================
	cronScheduler := cron.NewScheduler(notificationSvc, emailQueue, repos)
	cronScheduler.Start()
	defer cronScheduler.Stop()

	// ============================================
	// Create Gin Router
	// ============================================
	r := gin.Default()
	r.Use(middleware.RequestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL, "http://localhost:5173"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "healthy",
			"timestamp":  time.Now(),
			"database":   "connected",
			"cache":      cacheStatus(redisDB),
			"websocket":  "active",
			"ws_clients": hub.GetConnectedClientsCount(),
		})
	})

	api := r.Group("/api")
	{
		// ============================================
		// Public routes
		// ============================================
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
			auth.POST("/refresh", h.Auth.Refresh)
			auth.POST("/logout", h.Auth.Logout)
		}

		// WebSocket route (self-authenticating via token query param)
		api.GET("/ws", wsHandler.HandleWebSocket)

		// ============================================
		// Protected routes
		// ============================================
		protected := api.Group("")
		protected.Use(middleware.AuthMiddleware(services.Auth))
		{
			users := protected.Group("/users")
			{
				users.GET("/me", h.User.GetCurrentUser)
				users.PUT("/me", h.User.UpdateCurrentUser)
				users.PUT("/me/password", h.User.ChangePassword)
				users.DELETE("/me", h.User.DeactivateCurrentUser)
				users.GET("/search", h.User.Search)
				users.GET("/:id", h.User.Get)
			}

			teams := protected.Group("/teams")
			{
				teams.GET("", h.Team.List)
				teams.POST("", h.Team.Create)
				teams.GET("/:id", h.Team.Get)
				teams.PUT("/:id", h.Team.Update)
				teams.DELETE("/:id", h.Team.Delete)

				teams.POST("/:id/invite", h.Team.Invite)
				teams.GET("/:id/invitations", h.Team.PendingInvitations)
				teams.POST("/join/:token", h.Team.Join)

				teams.GET("/:id/members", h.Team.Members)
				teams.DELETE("/:id/members/:memberId", h.Team.RemoveMember)
				teams.POST("/:id/leave", h.Team.Leave)
			}

			tasks := protected.Group("/tasks")
			{
				tasks.GET("", h.Task.List)
				tasks.POST("", h.Task.Create)
				tasks.POST("/suggest", h.Task.Suggest)
				tasks.GET("/:id", h.Task.Get)
				tasks.PUT("/:id", h.Task.Update)
				tasks.PATCH("/:id/complete", h.Task.Complete)
				tasks.POST("/:id/summarize", h.Task.Summarize)
				tasks.DELETE("/:id", h.Task.Delete)

				tasks.GET("/:id/comments", h.Comment.ListByTask)
				tasks.POST("/:id/comments", h.Comment.Create)

				tasks.GET("/:id/attachments", h.Attachment.ListByTask)
				tasks.POST("/:id/attachments", h.Attachment.Upload)
			}

			comments := protected.Group("/comments")
			{
				comments.PUT("/:id", h.Comment.Update)
				comments.DELETE("/:id", h.Comment.Delete)
			}

			attachments := protected.Group("/attachments")
			{
				attachments.GET("/:id", h.Attachment.Download)
				attachments.DELETE("/:id", h.Attachment.Delete)
			}

			notifications := protected.Group("/notifications")
			{
				notifications.GET("", h.Notification.List)
				notifications.GET("/count", h.Notification.UnreadCount)
				notifications.PUT("/:id/read", h.Notification.MarkRead)
				notifications.PUT("/read-all", h.Notification.MarkAllRead)
				notifications.DELETE("/:id", h.Notification.Delete)
			}
		}
	}

	// ============================================
	// Start server with graceful shutdown
	// ============================================
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}

func cacheStatus(redisDB *db.RedisDB) string {
	if redisDB != nil {
		return "connected"
	}
	return "disabled"
}
