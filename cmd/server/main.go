/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the treasury server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags (environment variables as fallback)
  2. Configure structured logging
  3. Initialize SQLite store
  4. Create API handler and token verifier
  5. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port        HTTP server port (default: 8080, env PORT)
  -db          SQLite database path (default: treasury.db, env DB_PATH)
               Use ":memory:" for an in-memory database
  -auth        Require bearer tokens on /api routes (default: false)
  -jwt-secret  HMAC secret for token validation (env JWT_SECRET)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

EXAMPLES:
  # Run with file database, no auth (dev)
  ./server -db="./data/treasury.db"

  # Run with auth enabled
  JWT_SECRET=... ./server -auth

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/stewardly/treasury/api"
	"github.com/stewardly/treasury/auth"
	"github.com/stewardly/treasury/logging"
	"github.com/stewardly/treasury/store/sqlite"
)

func main() {
	port := flag.Int("port", envInt("PORT", 8080), "HTTP server port")
	dbPath := flag.String("db", envStr("DB_PATH", "treasury.db"), "SQLite database path")
	requireAuth := flag.Bool("auth", false, "require bearer tokens on /api routes")
	jwtSecret := flag.String("jwt-secret", envStr("JWT_SECRET", ""), "HMAC secret for token validation")
	flag.Parse()

	logging.Setup()
	log := slog.Default()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Error("failed to initialize database", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var verifier *auth.Verifier
	if *requireAuth {
		if *jwtSecret == "" {
			log.Error("auth enabled but no JWT secret configured")
			os.Exit(1)
		}
		verifier = auth.NewVerifier(*jwtSecret)
	}

	handler := api.NewHandler(store, log)
	router := api.NewRouter(handler, verifier)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting",
			"addr", fmt.Sprintf("http://localhost:%d", *port),
			"db", *dbPath,
			"auth", *requireAuth,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
