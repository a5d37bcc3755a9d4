package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flchat/internal/api"
	"flchat/internal/auth"
	"flchat/internal/chat"
	"flchat/internal/config"
	"flchat/internal/contact"
	"flchat/internal/db"
	myMiddleware "flchat/internal/middleware"
	"flchat/internal/user"

	"github.com/redis/go-redis/v9"
)

func main() {
	// 1. Config & Flags
	addr := flag.String("addr", ":8080", "http service address")
	flag.Parse()

	cfg, err := config.Load(*addr)
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	// 2. Connect to Database
	database, err := db.NewDatabase(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("❌ Failed to connect to DB: %v", err)
	}
	defer database.Close()
	log.Println("✅ Connected to PostgreSQL")

	if err := database.Migrate(context.Background()); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	log.Println("✅ Database Schema Initialized")

	// 3. Connect to Redis (refresh token revocations)
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer redisClient.Close()
	if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("❌ Failed to connect to Redis: %v", err)
	}
	log.Println("✅ Connected to Redis")

	tokens := auth.NewTokens(auth.TokenConfig{
		AccessSecret:  cfg.JWTSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	}, auth.NewRedisRevocations(redisClient))

	// 4. Features
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, tokens, cfg.MinPasswordEntropy)
	chatService := chat.NewService(chat.NewRepository(database.Conn), userRepo)
	contactService := contact.NewService(contact.NewRepository(database.Conn), userRepo)

	server := api.NewServer(userService)
	api.RegisterOperations(server, userService, chatService, contactService)

	authMiddleware := myMiddleware.NewAuthMiddleware(tokens)

	// 5. Serve
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      api.NewRouter(server, authMiddleware, cfg.RateLimitRPS, database),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 20 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("🚀 Server starting on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("🛑 Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("❌ Shutdown error: %v", err)
	}
}
