package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"repoknow/internal/cache"
	"repoknow/internal/checkpoint"
	"repoknow/internal/config"
	"repoknow/internal/credentials"
	"repoknow/internal/insights"
	"repoknow/internal/knowledge"
	"repoknow/internal/logging"
	"repoknow/internal/pipeline"
)

// app holds what the subcommands share. Config and stores are loaded on
// first use so that commands like auth work without a valid config.
type app struct {
	configPath string
	noColor    bool

	logger *logging.AppLogger
	cfg    *config.Config
	store  *checkpoint.Store
	cache  *cache.Cache
}

func newRootCmd(logger *logging.AppLogger) *cobra.Command {
	a := &app{logger: logger}

	root := &cobra.Command{
		Use:   "repoknow",
		Short: "Resumable repository analysis for a knowledge base",
		Long: `repoknow reads a local git repository, derives documentation, diagrams, coding
standards and code snippets from it, and saves them to a knowledge base API.

Every run is checkpointed. An interrupted or partially failed run continues
with --resume and never saves the same artifact twice.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if a.noColor {
				lipgloss.SetColorProfile(termenv.Ascii)
			}
		},
	}
	root.SetVersionTemplate("repoknow version {{.Version}}\n")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default $XDG_CONFIG_HOME/repoknow/config.yaml)")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newAnalyzeCmd(a),
		newMCPCmd(a),
		newCheckpointsCmd(a),
		newCacheCmd(a),
		newAuthCmd(a),
		newConfigCmd(a),
	)
	return root
}

func (a *app) config() (*config.Config, error) {
	if a.cfg != nil {
		return a.cfg, nil
	}
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFrom(a.configPath)
	} else {
		if config.IsFirstRun() {
			a.logger.Debug("No config file found, using defaults")
		}
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	a.logger.Debug("Configuration loaded", "api", cfg.API.BaseURL, "checkpoints", cfg.Storage.CheckpointDir)
	a.cfg = cfg
	return cfg, nil
}

func (a *app) checkpoints() (*checkpoint.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	store, err := checkpoint.NewStore(cfg.Storage.CheckpointDir, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

func (a *app) analysisCache() (*cache.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	c, err := cache.New(cfg.Storage.CacheDir, a.logger)
	if err != nil {
		return nil, err
	}
	a.cache = c
	return c, nil
}

// pipeline wires the knowledge client, stores and optional insights
// generator from the config.
func (a *app) pipeline() (*pipeline.Pipeline, error) {
	cfg, err := a.config()
	if err != nil {
		return nil, err
	}
	store, err := a.checkpoints()
	if err != nil {
		return nil, err
	}
	c, err := a.analysisCache()
	if err != nil {
		return nil, err
	}

	token, source, err := credentials.NewCredentialManager(config.APITokenEnv).Token()
	switch {
	case errors.Is(err, credentials.ErrNoToken):
		a.logger.Warn("No knowledge API token configured, sending unauthenticated requests")
	case err != nil:
		a.logger.Warn("Cannot read knowledge API token, sending unauthenticated requests", "error", err)
	default:
		a.logger.Debug("Knowledge API token resolved", "source", source)
	}

	client, err := knowledge.NewClient(knowledge.Options{
		BaseURL:    cfg.API.BaseURL,
		Token:      token,
		Timeout:    cfg.API.Timeout,
		MaxRetries: cfg.API.MaxRetries,
		BaseDelay:  cfg.API.RetryBaseDelay,
		Logger:     a.logger,
	})
	if err != nil {
		return nil, err
	}

	return pipeline.New(pipeline.Dependencies{
		API:         client,
		Checkpoints: store,
		Cache:       c,
		Insights:    a.insights(cfg.Insights),
		Analysis:    cfg.Analysis,
		Logger:      a.logger,
	})
}

// insights returns nil when insights are disabled or unusable. A nil
// interface keeps the pipeline from calling a typed nil pointer.
func (a *app) insights(cfg config.InsightsConfig) insights.Generator {
	if !cfg.Enabled {
		return nil
	}
	apiKey := os.Getenv(cfg.APIKeyEnv)
	if apiKey == "" {
		a.logger.Warn("Insights enabled but no API key found", "env", cfg.APIKeyEnv)
		return nil
	}
	gen, err := insights.NewOpenAIGenerator(apiKey, cfg.BaseURL, cfg.Model, a.logger)
	if err != nil {
		a.logger.Warn("Insights disabled", "error", err)
		return nil
	}
	return gen
}
