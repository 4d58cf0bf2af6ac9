package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"cratefm/cache"
	"cratefm/config"
	"cratefm/core/llm"
	"cratefm/core/planner"
	"cratefm/core/search"
	"cratefm/core/spotify"
	"cratefm/db"
	"cratefm/logger"
	"cratefm/repository"
	"cratefm/storage"
)

// Start wires the application together and runs the HTTP server until
// an interrupt arrives.
func Start() {
	cfg := config.Load()

	server := &http.Server{
		Addr:         cfg.ServerAddr,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	defer db.DB.Close()

	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database schema", logger.ErrorField(err))
	}

	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect GORM", logger.ErrorField(err))
	}
	defer db.CloseGormDB()

	if err := repository.MigratePlanSchema(); err != nil {
		logger.Fatal("Failed to migrate plan schema", logger.ErrorField(err))
	}

	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Fatal("Failed to connect to Redis", logger.ErrorField(err))
	}
	defer cache.CloseRedis()

	trackRepo := repository.NewMySQLTrackRepository()
	planRepo := repository.NewGormPlanRepository()

	// The metadata source is optional: without credentials the planner
	// still works against the local catalog.
	var source search.ExternalSource
	var importer *spotify.Importer
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		client, err := spotify.NewClient(spotify.ClientConfig{
			APIURL:       cfg.SpotifyAPIURL,
			AuthURL:      cfg.SpotifyAuthURL,
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RateLimit:    cfg.SpotifyRateLimit,
			MaxRetries:   cfg.SpotifyMaxRetries,
			RetryDelay:   cfg.SpotifyRetryDelay,
		})
		if err != nil {
			logger.Fatal("Failed to create metadata source client", logger.ErrorField(err))
		}
		importer = spotify.NewImporter(client, trackRepo)
		source = importer
	} else {
		logger.Warn("No metadata source credentials configured, planning from local catalog only")
	}

	var completer llm.Completer
	if cfg.LLMAPIKey != "" {
		completer = llm.NewClient(llm.ClientConfig{
			APIBaseURL:  cfg.LLMAPIBaseURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
		})
	} else {
		logger.Warn("No model API key configured, planner runs deterministic stages only")
	}

	snapshots, err := storage.NewSnapshotStore(cfg)
	if err != nil {
		logger.Fatal("Failed to initialize snapshot store", logger.ErrorField(err))
	}

	orchestrator := search.NewOrchestrator(source, trackRepo)
	crtPlanner := planner.NewPlanner(trackRepo, planRepo, completer, orchestrator, cfg.Planner)

	apiHandler := NewAPIHandler(trackRepo, planRepo, crtPlanner, importer, snapshots, cfg)

	router := mux.NewRouter()
	router.Use(corsMiddleware)

	router.HandleFunc("/api/plans", apiHandler.CreatePlanHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/plans", apiHandler.ListPlansHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/plans/{id}", apiHandler.GetPlanHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/plans/{id}/revise", apiHandler.RevisePlanHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/plans/{id}/finalize", apiHandler.FinalizePlanHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/tracks", apiHandler.GetTracksHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/tracks/{id}", apiHandler.GetTrackHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/import/search", apiHandler.ImportSearchHandler).Methods(http.MethodPost)

	router.HandleFunc("/api/snapshots", apiHandler.CreateSnapshotHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/snapshots", apiHandler.ListSnapshotsHandler).Methods(http.MethodGet)

	router.HandleFunc("/api/health", apiHandler.HealthHandler).Methods(http.MethodGet)

	server.Handler = router

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Server starting", logger.String("addr", cfg.ServerAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", logger.ErrorField(err))
		}
	}()

	<-stop
	logger.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
