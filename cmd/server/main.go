package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tariel-x/gopresence/internal/auth"
	"github.com/tariel-x/gopresence/internal/config"
	"github.com/tariel-x/gopresence/internal/conversations"
	"github.com/tariel-x/gopresence/internal/handlers"
	"github.com/tariel-x/gopresence/internal/metrics"
	"github.com/tariel-x/gopresence/internal/records"
)

const AppVersion = "1.0.0"

// Build timestamp - set at compile time or use current time
var buildTimestamp = time.Now().Unix()

func main() {
	configPath := flag.String("config", "", "Path to config.yaml (default: next to the executable)")
	httpOnly := flag.Bool("http-only", false, "Serve plain HTTP (disable SSL/LE)")
	selfSigned := flag.Bool("self-signed", false, "Enable HTTPS using a generated self-signed certificate")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *httpOnly {
		cfg.HTTPOnly = true
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	logger.Info(fmt.Sprintf("Presence Server v%s (build: %d)", AppVersion, buildTimestamp))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := records.OpenDatabase(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		return
	}
	logger.Info("database opened", "path", cfg.DBPath)

	m := metrics.New()
	storeOpts := []records.StoreOption{
		records.WithDefaultAvailability(cfg.DefaultAvailable),
		records.WithStoreLogger(logger),
	}

	var relay *records.RedisRelay
	if cfg.RedisURL != "" {
		client, err := records.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			return
		}
		defer client.Close()

		relay = records.NewRedisRelay(client, uuid.NewString(), logger)
		storeOpts = append(storeOpts, records.WithRelay(relay))
		logger.Info("cross-instance relay enabled")
	}

	store := records.NewStore(records.NewRepository(db), records.NewBroker(), storeOpts...)
	if relay != nil {
		go func() {
			if err := relay.Run(ctx, store.ApplyRemote); err != nil {
				logger.Error("relay stopped", "error", err)
			}
		}()
	}

	tracker := conversations.NewTracker(store,
		conversations.WithTTL(cfg.ConversationTTL),
		conversations.WithLogger(logger),
		conversations.WithMetrics(m),
	)
	go tracker.Start(ctx)

	h := handlers.New(
		cfg,
		store,
		tracker,
		auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL),
		m,
		handlers.NewWSHub(),
		websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	)

	router := setupRouter(h, cfg, m, logger)

	if err := serve(router, cfg, *selfSigned, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func setupRouter(h *handlers.Handlers, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *gin.Engine {
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), m.GinMiddleware())

	// CORS middleware (for web app)
	router.Use(func(c *gin.Context) {
		origin := "*"
		if cfg.HTTPOnly && cfg.FrontendURI != "" {
			origin = cfg.FrontendURI
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h.RegisterRoutes(router.Group("/api"))

	return router
}
