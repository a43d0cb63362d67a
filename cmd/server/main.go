package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/loqui/chat-server-go/internal/config"
	"github.com/loqui/chat-server-go/internal/handler"
	"github.com/loqui/chat-server-go/internal/jobs"
	"github.com/loqui/chat-server-go/internal/middleware"
	"github.com/loqui/chat-server-go/internal/ratelimit"
	"github.com/loqui/chat-server-go/internal/redis"
	"github.com/loqui/chat-server-go/internal/service"
	"github.com/loqui/chat-server-go/internal/sse"
	"github.com/loqui/chat-server-go/internal/store"
	"github.com/loqui/chat-server-go/internal/store/postgres"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	setLogLevel(cfg.LogLevel)

	db, err := postgres.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), config.DBPingTimeout)
	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to ping database")
	}
	cancel()
	log.Info().Msg("database connected")

	mgr := store.NewManager(postgres.NewStore(db))

	// Redis is optional: without it events stay node-local and rate limits
	// fall back to the in-process limiter.
	var broker *sse.Broker
	var limiter ratelimit.Limiter
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		log.Info().Msg("redis connected")

		broker = sse.NewBroker(redisClient)
		defer broker.Close()
		limiter = ratelimit.NewRedis(redisClient.Client, cfg.RateLimitPerSecond, config.RateLimitWindow)
	} else {
		log.Warn().Msg("no redis configured, using local rate limiter and disabling live events")
		limiter = ratelimit.NewLocal(cfg.RateLimitPerSecond, config.RateLimitWindow)
	}

	authService := service.NewAuthService(mgr, cfg)
	imInvitationService := service.NewImInvitationService(mgr)
	channelService := service.NewChannelService(mgr)
	invitationService := service.NewChannelInvitationService(mgr)
	messageService := service.NewMessageService(mgr, broker)

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(limiter)
	bodyLimitMiddleware := middleware.NewBodyLimitMiddleware(0)
	securityHeadersMiddleware := middleware.NewSecurityHeadersMiddleware(os.Getenv("FLY_APP_NAME") != "")

	var eventsHandler http.Handler
	if broker != nil {
		eventsHandler = handler.NewEventsHandler(broker, channelService)
	}

	authHandler := handler.NewAuthHandler(authService, imInvitationService)
	channelHandler := handler.NewChannelHandler(channelService, messageService, eventsHandler)
	invitationHandler := handler.NewInvitationHandler(invitationService)
	messageHandler := handler.NewMessageHandler(messageService)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(config.ServerRequestTimeout))
	r.Use(bodyLimitMiddleware.Handler)
	r.Use(securityHeadersMiddleware.Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"timestamp": time.Now().UnixMilli(),
		})
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(rateLimitMiddleware.Handler("auth:register")).Post("/register", authHandler.Register)
		r.With(rateLimitMiddleware.Handler("auth:login")).Post("/login", authHandler.Login)
		r.With(rateLimitMiddleware.Handler("auth:refresh")).Post("/refresh", authHandler.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handler)
			r.With(rateLimitMiddleware.Handler("auth:logout")).Post("/logout", authHandler.Logout)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handler)

		r.With(rateLimitMiddleware.Handler("invitations:create")).
			Post("/invitations", authHandler.CreateImInvitation)

		r.Route("/channels", func(r chi.Router) {
			r.Use(rateLimitMiddleware.Handler("channels"))
			r.Mount("/", channelHandler.Routes())
		})

		r.Route("/channel-invitations", func(r chi.Router) {
			r.Use(rateLimitMiddleware.Handler("channel-invitations"))
			r.Mount("/", invitationHandler.Routes())
		})

		r.Route("/messages", func(r chi.Router) {
			r.Use(rateLimitMiddleware.Handler("messages"))
			r.Mount("/", messageHandler.Routes())
		})
	})

	sweeper := jobs.NewSweeper(mgr, cfg.SweepInterval())
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      r,
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: 0,
		IdleTimeout:  config.ServerIdleTimeout,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr()).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ServerShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}

func setLogLevel(level string) {
	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
