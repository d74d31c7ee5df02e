package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/contextwizard/wizardd/internal/adapter/cli"
	githubadapter "github.com/contextwizard/wizardd/internal/adapter/github"
	"github.com/contextwizard/wizardd/internal/adapter/llm/gemini"
	llmhttp "github.com/contextwizard/wizardd/internal/adapter/llm/http"
	"github.com/contextwizard/wizardd/internal/adapter/observability"
	"github.com/contextwizard/wizardd/internal/adapter/store/sqlite"
	"github.com/contextwizard/wizardd/internal/config"
	"github.com/contextwizard/wizardd/internal/gateway"
	"github.com/contextwizard/wizardd/internal/usecase/analyze"
	"github.com/contextwizard/wizardd/internal/usecase/botguard"
	"github.com/contextwizard/wizardd/internal/usecase/registry"
	"github.com/contextwizard/wizardd/internal/version"
)

func main() {
	if err := run(); err != nil {
		// Redact API keys from URLs in error messages before logging
		log.Println(llmhttp.RedactURLSecrets(err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root := cli.NewRootCommand(cli.Dependencies{
		Serve:   serve,
		Version: version.Value(),
	})

	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, cli.ErrVersionRequested) {
			return nil
		}
		return fmt.Errorf("command failed: %w", err)
	}
	return nil
}

func serve(ctx context.Context, opts cli.ServeOptions) error {
	cfg, err := config.Load(config.LoaderOptions{
		ConfigPaths: configPaths(opts.ConfigPath),
		FileName:    "wizardd",
		EnvPrefix:   "WIZARD",
	})
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	if opts.Addr != "" {
		cfg.Server.Addr = opts.Addr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config invalid: %w", err)
	}

	logger, err := observability.NewLogger(cfg.Observability.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ttl, err := cfg.Registry.TTLDuration()
	if err != nil {
		return err
	}
	sweepInterval, err := cfg.Registry.SweepIntervalDuration()
	if err != nil {
		return err
	}
	shutdownTimeout, err := cfg.Server.ShutdownTimeoutDuration()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	pendingStore, err := sqlite.NewStore(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = pendingStore.Close() }()

	privateKey, err := loadPrivateKey(cfg.GitHub)
	if err != nil {
		return err
	}
	appAuth, err := githubadapter.NewAppAuth(cfg.GitHub.AppID, privateKey)
	if err != nil {
		return fmt.Errorf("initialize app auth: %w", err)
	}

	ghClient := githubadapter.NewClient()
	timeout := llmhttp.ParseTimeout(cfg.HTTP.Timeout, 60*time.Second)
	ghClient.SetTimeout(timeout)
	ghClient.SetMaxRetries(cfg.HTTP.MaxRetries)
	if cfg.GitHub.APIBaseURL != "" {
		ghClient.SetBaseURL(cfg.GitHub.APIBaseURL)
		appAuth.SetBaseURL(cfg.GitHub.APIBaseURL)
	}

	retryConf := llmhttp.BuildRetryConfig(cfg.HTTP)
	chatClient := gemini.NewHTTPClient(cfg.Gemini.APIKey, cfg.Gemini.Model, retryConf)
	chatClient.SetTimeout(timeout)
	codeModel := cfg.Gemini.CodeModel
	if codeModel == "" {
		codeModel = cfg.Gemini.Model
	}
	codeClient := gemini.NewHTTPClient(cfg.Gemini.APIKey, codeModel, retryConf)
	codeClient.SetTimeout(timeout)
	if cfg.Gemini.BaseURL != "" {
		chatClient.SetBaseURL(cfg.Gemini.BaseURL)
		codeClient.SetBaseURL(cfg.Gemini.BaseURL)
	}
	assistant := gemini.NewAssistant(chatClient, codeClient)

	reg := registry.New(pendingStore, ghClient, appAuth, logger,
		registry.WithTTL(ttl),
		registry.WithCodeAttempts(cfg.Registry.CodeAttempts),
	)
	sweeper := registry.NewSweeper(pendingStore, reg, logger,
		registry.WithInterval(sweepInterval),
	)

	pipeline := analyze.NewPipeline(assistant, ghClient, reg, appAuth, logger)
	guard := botguard.New(append(botguard.DefaultSuffixes, cfg.GitHub.BotSuffixes...))
	dispatcher := gateway.NewDispatcher(guard, reg, pipeline, logger)
	server := gateway.NewServer(cfg.Server.WebhookSecret, dispatcher, logger)

	go sweeper.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("version", version.Value()),
			zap.Duration("ttl", ttl),
			zap.Duration("sweep_interval", sweepInterval))
		serveErr <- server.Listen(cfg.Server.Addr)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", zap.Duration("timeout", shutdownTimeout))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()
	done := make(chan struct{})
	go func() {
		_ = server.Shutdown()
		dispatcher.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, exiting with work still in flight")
	}
	return nil
}

func loadPrivateKey(cfg config.GitHubConfig) ([]byte, error) {
	if cfg.PrivateKey != "" {
		return []byte(cfg.PrivateKey), nil
	}
	pem, err := os.ReadFile(cfg.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read github private key: %w", err)
	}
	return pem, nil
}

func configPaths(explicit string) []string {
	paths := []string{}
	if explicit != "" {
		paths = append(paths, explicit)
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "wizardd"))
	}
	return paths
}
