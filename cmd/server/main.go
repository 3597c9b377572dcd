package main

import (
	"fmt"
	"log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cellmate-ai/cellmate/chat"
	"github.com/cellmate-ai/cellmate/config"
	"github.com/cellmate-ai/cellmate/prompts"
	"github.com/cellmate-ai/cellmate/provider"
	"github.com/cellmate-ai/cellmate/server"
	"github.com/cellmate-ai/cellmate/stores"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := newLogger(cfg.DebugMode)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	library, err := prompts.Load(cfg.PromptDir)
	if err != nil {
		sugar.Fatalf("failed to load instruction templates: %v", err)
	}

	prov, err := newProvider(cfg, sugar)
	if err != nil {
		sugar.Fatalf("failed to build provider: %v", err)
	}

	store, err := stores.NewStore(stores.NewStoreConfig(cfg.StoreType, cfg.StoreDSN))
	if err != nil {
		sugar.Fatalf("failed to connect interaction store: %v", err)
	}
	defer store.Close()

	pseudonymizer, err := stores.NewPseudonymizer(cfg.HashSecret)
	if err != nil {
		sugar.Fatalf("failed to build pseudonymizer: %v", err)
	}

	if maxAge := cfg.RetentionMaxAge(); maxAge > 0 {
		sweeper := stores.NewRetentionSweeper(store, maxAge, cfg.RetentionSchedule, sugar)
		if err := sweeper.Start(); err != nil {
			sugar.Fatalf("failed to start retention sweeper: %v", err)
		}
		defer sweeper.Stop()
	}

	session := &chat.Session{
		Provider:      prov,
		Prompts:       library,
		Model:         cfg.Model,
		Interactions:  store,
		Pseudonymizer: pseudonymizer,
		Logger:        sugar,
	}

	router := server.NewRouter(server.Deps{
		Session:       session,
		Store:         store,
		Pseudonymizer: pseudonymizer,
		Logger:        sugar,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	sugar.Infof("listening on %s (provider=%s model=%s store=%s)", addr, cfg.Provider, cfg.Model, cfg.StoreType)
	if err := router.Run(addr); err != nil {
		sugar.Fatalf("server exited: %v", err)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newProvider(cfg *config.Config, logger *zap.SugaredLogger) (provider.Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return provider.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, logger), nil
	case "gemini":
		return provider.NewGeminiProvider(cfg.Model, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
