package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	_ "github.com/lib/pq"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mckays/warroom/internal/auth"
	"github.com/mckays/warroom/internal/catalog"
	"github.com/mckays/warroom/internal/chat"
	"github.com/mckays/warroom/internal/config"
	"github.com/mckays/warroom/internal/dbconfig"
	"github.com/mckays/warroom/internal/gateway"
	"github.com/mckays/warroom/internal/registry"
	"github.com/mckays/warroom/internal/team"
	"github.com/mckays/warroom/internal/worklink"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(getEnv("CONFIG_FILE", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := dbconfig.NewConfigFromEnv().Open()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	log.Info().
		Str("http_addr", cfg.HTTPAddr).
		Str("nats_url", cfg.NATSURL).
		Msg("starting warroom backend")

	// Storage and domain apps.
	teamApp := team.NewApp(team.NewRepository(db))
	catalogApp := catalog.NewApp(catalog.NewRepository(db), teamApp)
	messageRepo := chat.NewRepository(db)

	// Work channel to the game-logic process.
	linkConfig := worklink.DefaultConfig()
	linkConfig.URL = cfg.NATSURL
	link, err := worklink.NewLink(linkConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect work channel")
	}
	defer link.Close()

	// Pending action registry.
	registryApp := registry.NewApp(registry.NewRepository(db), catalogApp, link, clockwork.NewRealClock())

	// Client gateway.
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)
	gatewayService := gateway.NewService(gateway.DefaultConnectionConfig(), verifier, teamApp, registryApp, messageRepo)

	link.Bind(registryApp, gatewayService.Manager())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go gatewayService.Start(ctx)
	go func() {
		if err := link.Start(ctx); err != nil {
			log.Error().Err(err).Msg("work channel consumer failed")
		}
	}()

	if cfg.SweepEvery > 0 {
		sweeper := registry.NewSweeper(registryApp, gatewayService.Manager(), cfg.SweepEvery)
		go sweeper.Run(ctx)
	}

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	}).Handler(mux)

	server := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: corsHandler,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("warroom backend stopped")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
