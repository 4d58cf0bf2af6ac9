package cmd

import (
	"cratefm/cache"
	"cratefm/config"
	"cratefm/core/llm"
	"cratefm/core/planner"
	"cratefm/core/search"
	"cratefm/core/spotify"
	"cratefm/db"
	"cratefm/logger"
	"cratefm/repository"
)

// connectCatalog opens the MySQL connections the CLI commands need and
// returns the track repository. Callers are expected to run to process
// exit, so nothing is closed here.
func connectCatalog(cfg *config.Config) repository.TrackRepository {
	if err := db.ConnectDB(cfg); err != nil {
		logger.Fatal("Failed to connect to database", logger.ErrorField(err))
	}
	if err := db.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database schema", logger.ErrorField(err))
	}
	return repository.NewMySQLTrackRepository()
}

// connectPlans additionally opens the GORM connection backing plan
// persistence.
func connectPlans(cfg *config.Config) repository.PlanRepository {
	if err := db.ConnectGormDB(cfg); err != nil {
		logger.Fatal("Failed to connect GORM", logger.ErrorField(err))
	}
	if err := repository.MigratePlanSchema(); err != nil {
		logger.Fatal("Failed to migrate plan schema", logger.ErrorField(err))
	}
	return repository.NewGormPlanRepository()
}

// newImporter builds the metadata-source importer, nil when no
// credentials are configured.
func newImporter(cfg *config.Config, trackRepo repository.TrackRepository) *spotify.Importer {
	if cfg.SpotifyClientID == "" || cfg.SpotifyClientSecret == "" {
		return nil
	}
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
	return spotify.NewImporter(client, trackRepo)
}

// newPlanner assembles the full planning stack for CLI use.
func newPlanner(cfg *config.Config, trackRepo repository.TrackRepository, planRepo repository.PlanRepository, useLLM bool) *planner.Planner {
	if err := cache.ConnectRedis(cfg); err != nil {
		logger.Warn("Redis unavailable, candidate pools are not cached", logger.ErrorField(err))
	}

	var source search.ExternalSource
	if importer := newImporter(cfg, trackRepo); importer != nil {
		source = importer
	}

	var completer llm.Completer
	if useLLM && cfg.LLMAPIKey != "" {
		completer = llm.NewClient(llm.ClientConfig{
			APIBaseURL:  cfg.LLMAPIBaseURL,
			APIKey:      cfg.LLMAPIKey,
			Model:       cfg.LLMModel,
			MaxTokens:   cfg.LLMMaxTokens,
			Temperature: cfg.LLMTemperature,
			Timeout:     cfg.LLMTimeout,
		})
	}

	plannerCfg := cfg.Planner
	plannerCfg.UseLLM = plannerCfg.UseLLM && useLLM

	orchestrator := search.NewOrchestrator(source, trackRepo)
	return planner.NewPlanner(trackRepo, planRepo, completer, orchestrator, plannerCfg)
}
