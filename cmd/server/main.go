// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/podbox/internal/api/connect"
	"github.com/osa030/podbox/internal/api/playerapi"
	"github.com/osa030/podbox/internal/api/rest"
	"github.com/osa030/podbox/internal/app/catalog"
	"github.com/osa030/podbox/internal/app/library"
	"github.com/osa030/podbox/internal/app/notification"
	"github.com/osa030/podbox/internal/app/player"
	audioinfra "github.com/osa030/podbox/internal/infra/audio"
	"github.com/osa030/podbox/internal/infra/config"
	"github.com/osa030/podbox/internal/infra/kvstore"
	"github.com/osa030/podbox/internal/infra/logger"
	"github.com/osa030/podbox/internal/infra/spotify"
)

var (
	app        = kingpin.New("podbox-server", "podbox podcast player server")
	configPath = app.Flag("config", "Path to config file (.yaml or .toml)").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	checkConfigCmd = app.Command("check-config", "Validate the config file and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	loggerConfig := logger.Config{Output: "stdout", Level: "info"}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	logCloser, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logCloser.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if command == checkConfigCmd.FullCommand() {
		printConfig(os.Stdout, cfg)
		return
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		logCloser.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	store, err := kvstore.New(ctx, cfg.StoreSettings())
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Storage.Backend, err)
	}
	defer store.Close()
	lib := library.New(store)

	cat, err := newCatalog(ctx, cfg)
	if err != nil {
		return err
	}

	backend, err := audioinfra.NewBackendFromConfig(cfg.Audio)
	if err != nil {
		return fmt.Errorf("failed to create %s audio backend: %w", cfg.Audio.Backend, err)
	}
	defer backend.Close()

	ctrl := player.NewController(backend, cfg.PlayerSettings())
	defer ctrl.Close()

	notifier := notification.NewManager()
	stopForward := notification.Forward(ctrl, notifier)
	defer stopForward()

	mux := http.NewServeMux()

	playerService := apiconnect.NewPlayerService(ctrl, cat, notifier)
	playerPath, playerHandler := playerapi.NewPlayerServiceHandler(
		playerService,
		connect.WithInterceptors(apiconnect.NewControlAuthInterceptor(cfg.Server.ControlToken)),
	)
	mux.Handle(playerPath, playerHandler)
	mux.Handle("/api/", rest.NewServer(ctrl, cat, lib, notifier).Router())

	corsHandler := cors.New(cors.Options{
		AllowedOrigins: cfg.Server.CorsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Grpc-Status", "Grpc-Message", "Connect-Protocol-Version"},
	})

	serverAddr := cfg.Server.Addr
	server := &http.Server{
		Addr:              serverAddr,
		Handler:           h2c.NewHandler(corsHandler.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	serverStartedCh := make(chan struct{})

	go func() {
		zlog.Info().Msgf("Starting server: addr=%s audio=%s storage=%s", serverAddr, cfg.Audio.Backend, cfg.Storage.Backend)
		close(serverStartedCh)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- err
		}
	}()

	<-serverStartedCh
	// Give the server a moment to fully initialize
	time.Sleep(100 * time.Millisecond)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Release watchers first so streaming handlers return before Shutdown waits on them
	notifier.Close()
	ctrl.StopPlayback(shutdownCtx)

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return nil
}

// newCatalog returns the Spotify catalog, or a disabled one when Spotify is
// not configured.
func newCatalog(ctx context.Context, cfg *config.Config) (catalog.Catalog, error) {
	if !cfg.Spotify.Enabled {
		zlog.Info().Msg("Spotify catalog disabled, episodes must be given inline")
		return catalog.Disabled{}, nil
	}
	client, err := spotify.New(ctx, spotify.Config{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		RefreshToken: cfg.Spotify.RefreshToken,
		Market:       cfg.Spotify.Market,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Spotify client: %w", err)
	}
	return client, nil
}

// printConfig prints the effective configuration summary.
func printConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Config OK")
	fmt.Fprintf(w, "  %-14s %s\n", "addr:", cfg.Server.Addr)
	fmt.Fprintf(w, "  %-14s %t\n", "control token:", cfg.Server.ControlToken != "")
	fmt.Fprintf(w, "  %-14s %s\n", "audio:", cfg.Audio.Backend)
	fmt.Fprintf(w, "  %-14s %s\n", "storage:", cfg.Storage.Backend)
	fmt.Fprintf(w, "  %-14s %.2f (%.2f-%.2f)\n", "rate:", cfg.Player.DefaultRate, cfg.Player.MinRate, cfg.Player.MaxRate)
	fmt.Fprintf(w, "  %-14s %t\n", "spotify:", cfg.Spotify.Enabled)
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// Use sh -c to allow shell features like redirection or pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
