/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cashback simulation server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (defaults, YAML file, flags, environment)
  2. Open the store for the configured driver
  3. Seed the default program and the -program file, if any
  4. Configure HTTP router
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config        YAML config file
  -port          HTTP server port (default: 8080)
  -db-driver     sqlite, postgres or memory (default: sqlite)
  -db            SQLite database path (default: cashback.db)
                 Use ":memory:" for an in-memory database
  -database-url  PostgreSQL DSN (db-driver=postgres)
  -workers       Simulation workers per run (default: one per CPU)
  -program       JSON or YAML program file to save on startup
  -log-level     debug, info, warn, error
  -log-format    text or json

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close the store
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/cashback.db"

  # Run against PostgreSQL with JSON logs
  DATABASE_URL=postgres://localhost/cashback ./server -db-driver=postgres -log-format=json

ENVIRONMENT:
  CASHBACK_* variables and DATABASE_URL override flags. See config/config.go.

SEE ALSO:
  - config/config.go: Configuration sources
  - api/server.go: Router configuration
  - store/store.go: Store contract
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/warp/cashback-engine/api"
	"github.com/warp/cashback-engine/config"
	"github.com/warp/cashback-engine/factory"
	"github.com/warp/cashback-engine/generic"
	"github.com/warp/cashback-engine/store"
	"github.com/warp/cashback-engine/store/memory"
	"github.com/warp/cashback-engine/store/postgres"
	"github.com/warp/cashback-engine/store/sqlite"
)

// DefaultProgramID is the id the built-in program is seeded under.
const DefaultProgramID = "default"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	logger := cfg.Logger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	handler := api.NewHandler(s, cfg.Workers, logger)
	if err := seedPrograms(ctx, cfg, handler); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", server.Addr, "driver", cfg.DBDriver, "workers", cfg.Workers)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		return postgres.New(ctx, cfg.DatabaseURL)
	case config.DriverMemory:
		return memory.New(), nil
	default:
		return sqlite.New(cfg.DBPath)
	}
}

// seedPrograms saves the default program when it is missing, then the
// configured program file under its base name.
func seedPrograms(ctx context.Context, cfg *config.Config, h *api.Handler) error {
	if cfg.SeedDefault {
		_, err := h.Store.GetProgram(ctx, DefaultProgramID)
		switch {
		case errors.Is(err, generic.ErrProgramNotFound):
			pj := factory.DefaultProgramJSON()
			pj.ID = DefaultProgramID
			if _, _, err := h.SaveProgram(ctx, pj); err != nil {
				return fmt.Errorf("seed default program: %w", err)
			}
			h.Logger.Info("seeded default program", "program_id", DefaultProgramID)
		case err != nil:
			return fmt.Errorf("look up default program: %w", err)
		}
	}

	if cfg.ProgramFile == "" {
		return nil
	}
	program, err := h.ProgramFactory.LoadProgramFile(cfg.ProgramFile)
	if err != nil {
		return err
	}
	pj := h.ProgramFactory.ToJSON(program)
	pj.ID = strings.TrimSuffix(filepath.Base(cfg.ProgramFile), filepath.Ext(cfg.ProgramFile))
	rec, _, err := h.SaveProgram(ctx, pj)
	if err != nil {
		return fmt.Errorf("save program file: %w", err)
	}
	h.Logger.Info("loaded program file", "program_id", rec.ID, "version", rec.Version)
	return nil
}
