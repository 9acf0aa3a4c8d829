package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/avukic/skolar/internal/config"
	"github.com/avukic/skolar/internal/database"
	"github.com/avukic/skolar/internal/identity"
	postgresrepo "github.com/avukic/skolar/internal/repository/postgres"
	"github.com/avukic/skolar/internal/search"
	"github.com/avukic/skolar/internal/service"
	"github.com/avukic/skolar/internal/transport/http/handlers"
	"github.com/avukic/skolar/internal/transport/http/middleware"
	"github.com/avukic/skolar/internal/transport/ws"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	pool, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer pool.Close()
	log.Println("Connected to database")

	// Repositories
	channelRepo := postgresrepo.NewChannelRepo(pool)
	messageRepo := postgresrepo.NewMessageRepo(pool)

	// Services
	verifier := identity.NewTokenVerifier(cfg.JWTSecret)
	channelService := service.NewChannelService(channelRepo)
	directoryService := service.NewDirectoryService(channelRepo)
	messageService := service.NewMessageService(messageRepo, channelRepo)

	// Search: meilisearch when configured, postgres full-text otherwise
	var meili *search.Meili
	if cfg.MeiliURL != "" {
		meili = search.NewMeili(cfg.MeiliURL, cfg.MeiliKey)
		log.Printf("Search index enabled at %s", cfg.MeiliURL)
	}
	searchService := search.NewService(meili, search.NewPG(pool))
	messageService.SetIndexer(searchService)

	// Event router
	hub := ws.NewHub()
	messageService.SetNotifier(ws.NewHubNotifier(hub))

	// Cross-instance bridge
	var bridge *ws.Bridge
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("unable to ping redis: %v", err)
		}
		bridge = ws.NewBridge(rdb, hub)
		hub.SetRemote(bridge)
		log.Println("Connected to redis, cross-instance bridge enabled")
	}

	// Handlers
	channelHandler := handlers.NewChannelHandler(channelService, directoryService)
	messageHandler := handlers.NewMessageHandler(messageService)
	searchHandler := handlers.NewSearchHandler(searchService, messageService)

	// Auth middleware
	auth := middleware.Auth(verifier)

	// Routes
	mux := http.NewServeMux()

	// Public
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	})
	mux.HandleFunc("GET /ws", ws.ServeWS(hub, verifier, messageService))

	// Protected - Channels
	mux.Handle("POST /api/v1/channels", auth(http.HandlerFunc(channelHandler.Create)))
	mux.Handle("GET /api/v1/channels", auth(http.HandlerFunc(channelHandler.List)))
	mux.Handle("GET /api/v1/channels/{id}", auth(http.HandlerFunc(channelHandler.Get)))
	mux.Handle("POST /api/v1/channels/{id}/invite", auth(http.HandlerFunc(channelHandler.Invite)))

	// Protected - Messages
	mux.Handle("POST /api/v1/scopes/{scope}/messages", auth(http.HandlerFunc(messageHandler.Send)))
	mux.Handle("GET /api/v1/scopes/{scope}/messages", auth(http.HandlerFunc(messageHandler.History)))
	mux.Handle("PATCH /api/v1/messages/{id}", auth(http.HandlerFunc(messageHandler.Edit)))
	mux.Handle("DELETE /api/v1/messages/{id}", auth(http.HandlerFunc(messageHandler.Delete)))
	mux.Handle("POST /api/v1/messages/{id}/reactions", auth(http.HandlerFunc(messageHandler.React)))

	// Protected - Search
	mux.Handle("GET /api/v1/search", auth(http.HandlerFunc(searchHandler.Search)))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: middleware.CORS(mux),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hub.Run(gctx.Done())
		return nil
	})

	if bridge != nil {
		g.Go(func() error {
			if err := bridge.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		log.Printf("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
