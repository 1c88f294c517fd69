package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/term"

	"findash/internal/config"
	"findash/internal/handlers/auth"
	"findash/internal/handlers/backup"
	"findash/internal/handlers/dashboard"
	"findash/internal/handlers/explorer"
	"findash/internal/logger"
	"findash/internal/services/assistant"
	"findash/internal/services/dataloader"
	"findash/internal/services/metrics"
	"findash/internal/services/storage"
	"findash/internal/version"
)

var (
	cfg     *config.Config
	log     zerolog.Logger
	store   *storage.Storage
	cache   *dataloader.Cache
	loader  *dataloader.DataLoader
	authMgr *auth.Manager
)

func main() {
	encrypt := flag.Bool("encrypt", false, "Seal every spreadsheet in the data directory and exit")
	decrypt := flag.Bool("decrypt", false, "Remove encryption from the data directory and exit")
	flag.Parse()

	if err := run(*encrypt, *decrypt); err != nil {
		fmt.Fprintf(os.Stderr, "findash: %v\n", err)
		os.Exit(1)
	}
}

func run(encrypt, decrypt bool) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log = logger.New(cfg.Debug)
	info := version.Get()
	log.Info().Str("version", info.String()).Msg("starting findash")
	if warning := info.Warning(); warning != "" {
		log.Warn().Msg(warning)
	}

	store, err = storage.New(cfg.DataDirectory, log)
	if err != nil {
		return fmt.Errorf("open data directory: %w", err)
	}

	switch {
	case encrypt:
		return enableEncryption()
	case decrypt:
		return disableEncryption()
	}

	if err := unlockStorage(); err != nil {
		return err
	}

	if err := SetupDependencies(cfg); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           SetupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.ListenAddr).
			Str("data_dir", cfg.DataDirectory).
			Str("source", cfg.SourceFile).
			Bool("password_gate", authMgr.Enabled()).
			Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	store.Lock()
	return nil
}

// SetupDependencies builds the services and hands them to the handler
// packages. It opens the data directory when store has not been set.
func SetupDependencies(c *config.Config) error {
	cfg = c
	if store == nil {
		var err error
		store, err = storage.New(cfg.DataDirectory, log)
		if err != nil {
			return fmt.Errorf("open data directory: %w", err)
		}
	}

	cache = dataloader.NewCache()
	loader = dataloader.New(cfg.SourceFile, store, cache, log)

	var gen assistant.Generator
	if cfg.AssistantEnabled() {
		g, err := assistant.NewGemini(context.Background(), cfg.GeminiAPIKey, cfg.Model)
		if err != nil {
			log.Warn().Err(err).Msg("assistant disabled")
		} else {
			gen = g
		}
	}
	ai := assistant.New(gen, log)

	authMgr = auth.NewManager(cfg.Password, cfg.SessionTTL, log)

	dashboard.Initialize(loader, metrics.New(), ai, cfg)
	explorer.Initialize(loader, cache, cfg, store)
	backup.Initialize(cfg, store)

	if _, err := loader.LoadData(); err != nil {
		// The server still starts so the source can be uploaded or unlocked
		log.Warn().Err(err).Str("source", cfg.SourceFile).Msg("initial load failed")
	}
	return nil
}

// SetupRouter wires middleware and routes
func SetupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/dashboard/summary", http.StatusTemporaryRedirect)
	})

	r.Get("/api/health", backup.HandleHealth)
	r.Get("/api/version", backup.HandleVersion)
	authMgr.RegisterRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(authMgr.Middleware)

		dashboard.RegisterRoutes(r)
		explorer.RegisterRoutes(r)
		r.Get("/api/backup", backup.HandleBackup)
	})

	return r
}

// unlockStorage opens an encrypted data directory with the configured
// password, or prompts on an interactive terminal.
func unlockStorage() error {
	if !store.IsEncrypted() {
		return nil
	}

	password := cfg.UnlockPassword
	if password == "" {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			log.Warn().Msg("data directory is encrypted and no unlock password is set; requests will return 423")
			return nil
		}
		var err error
		password, err = readPassword("Data directory password: ")
		if err != nil {
			return err
		}
	}

	if err := store.Unlock(password); err != nil {
		return fmt.Errorf("unlock data directory: %w", err)
	}
	return nil
}

func enableEncryption() error {
	password, err := readPassword("New password: ")
	if err != nil {
		return err
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errors.New("passwords do not match")
	}
	if err := store.EnableEncryption(password); err != nil {
		return fmt.Errorf("enable encryption: %w", err)
	}
	log.Info().Str("data_dir", store.BaseDir()).Msg("encryption enabled")
	return nil
}

func disableEncryption() error {
	password, err := readPassword("Password: ")
	if err != nil {
		return err
	}
	if err := store.DisableEncryption(password); err != nil {
		return fmt.Errorf("disable encryption: %w", err)
	}
	log.Info().Str("data_dir", store.BaseDir()).Msg("encryption disabled")
	return nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}
