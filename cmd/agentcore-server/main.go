// Package main is the composition root for the agentcore runtime server.
// Grounded on cmd/opencode-server/main.go's wiring (storage, tool registry,
// providers, server, signal-driven graceful shutdown), wrapped in a
// spf13/cobra root command the way cmd/opencode/commands does.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/bus"
	"github.com/agentcore/runtime/internal/httpapi"
	"github.com/agentcore/runtime/internal/logging"
	"github.com/agentcore/runtime/internal/modeladapter"
	"github.com/agentcore/runtime/internal/permission"
	"github.com/agentcore/runtime/internal/question"
	"github.com/agentcore/runtime/internal/storage"
	"github.com/agentcore/runtime/internal/tool"
	"github.com/agentcore/runtime/internal/turn"
)

const (
	version   = "0.1.0"
	buildTime = "dev"
)

var (
	port         int
	directory    string
	dataDir      string
	anthropicKey string
	logPretty    bool
	logLevel     string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		logging.Fatal().Err(err).Msg("agentcore-server: exiting")
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "agentcore-server",
		Short:   "Run the agentcore coding-agent runtime",
		Version: version,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&logPretty, "log-pretty", false, "write human-readable console logs instead of JSON")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP/SSE server",
		RunE:  runServe,
	}
	serve.Flags().IntVar(&port, "port", 4096, "server port")
	serve.Flags().StringVar(&directory, "directory", "", "working directory (defaults to cwd)")
	serve.Flags().StringVar(&dataDir, "data-dir", "", "storage directory (defaults to <directory>/.agentcore/storage)")
	serve.Flags().StringVar(&anthropicKey, "anthropic-api-key", "", "Anthropic API key (defaults to $ANTHROPIC_API_KEY)")

	root.AddCommand(serve)
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())
	return root
}

func initLogging() {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(logLevel)
	cfg.Pretty = logPretty
	logging.Init(cfg)
}

func runServe(cmd *cobra.Command, args []string) error {
	initLogging()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logging.Warn().Err(err).Msg("agentcore-server: could not load .env")
	}

	workDir := directory
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("agentcore-server: working directory: %w", err)
		}
		workDir = wd
	}

	storagePath := dataDir
	if storagePath == "" {
		storagePath = workDir + "/.agentcore/storage"
	}
	if err := os.MkdirAll(storagePath, 0o755); err != nil {
		return fmt.Errorf("agentcore-server: creating storage dir: %w", err)
	}

	logging.Info().Str("version", version).Str("directory", workDir).Str("storage", storagePath).Msg("agentcore-server: starting")

	store := storage.New(storagePath)
	toolReg := tool.DefaultRegistry(workDir, store)
	agentReg := agent.NewRegistry()

	b := bus.New()
	perms := permission.NewChecker(b)
	questions := question.NewBroker(b)

	ctx := context.Background()
	modelReg, err := buildModelRegistry(ctx)
	if err != nil {
		logging.Warn().Err(err).Msg("agentcore-server: no model provider configured, turns will fail model resolution")
	}

	engine := turn.New(modelReg, toolReg, agentReg, store, perms, b)

	cfg := httpapi.DefaultConfig()
	cfg.Port = port
	cfg.Directory = workDir

	srv := httpapi.New(cfg, store, engine, agentReg, toolReg, modelReg, perms, questions, b)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Int("port", cfg.Port).Msg("agentcore-server: listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("agentcore-server: server error: %w", err)
	case <-quit:
	}

	logging.Info().Msg("agentcore-server: shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("agentcore-server: shutdown error")
	}
	logging.Info().Msg("agentcore-server: stopped")
	return nil
}

// buildModelRegistry registers the Anthropic-backed eino provider as the
// default model when an API key is available; otherwise the registry is
// left empty and every turn fails with a model-not-found error until one
// is configured (spec §4.5 has no offline fallback model).
func buildModelRegistry(ctx context.Context) (*modeladapter.Registry, error) {
	reg := modeladapter.NewRegistry()

	key := anthropicKey
	if key == "" {
		key = os.Getenv("ANTHROPIC_API_KEY")
	}
	if key == "" {
		return reg, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	modelID := "claude-sonnet-4-5"
	provider, err := modeladapter.NewEinoProvider(ctx, modeladapter.EinoConfig{
		ProviderID: "anthropic",
		APIKey:     key,
		Model:      modelID,
		MaxTokens:  8192,
	})
	if err != nil {
		return reg, err
	}

	model := modeladapter.Model{
		ProviderID: "anthropic",
		ModelID:    modelID,
		Name:       "Claude Sonnet 4.5",
		Rates:      modeladapter.Rates{Input: 3, Output: 15},
	}
	reg.Register(provider, []modeladapter.Model{model})
	reg.SetDefault(model)
	return reg, nil
}
