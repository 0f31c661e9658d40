package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/npezzotti/go-whiteboard/internal/api"
	"github.com/npezzotti/go-whiteboard/internal/config"
	"github.com/npezzotti/go-whiteboard/internal/database"
	"github.com/npezzotti/go-whiteboard/internal/server"
	"github.com/npezzotti/go-whiteboard/internal/stats"
)

const (
	defaultAddr           = "localhost:5000"
	defaultAllowedOrigins = "http://localhost:5173,http://localhost:3000"
	shutdownTimeout       = 10 * time.Second
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// defaultAddress maps a bare PORT to a listen address on all interfaces.
func defaultAddress() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + strings.TrimPrefix(port, ":")
	}
	return defaultAddr
}

var (
	addr           string
	dsn            string
	allowedOrigins stringSliceFlag
)

func main() {
	logger := log.New(os.Stderr, "[whiteboard] ", log.LstdFlags)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Println("load .env:", err)
	}

	flag.StringVar(&addr, "addr", defaultAddress(), "server address")
	flag.StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "database connection string, empty disables scheduled sessions")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	if len(allowedOrigins) == 0 {
		allowedOrigins.Set(envOr("ALLOWED_ORIGINS", defaultAllowedOrigins))
	}

	cfg, err := config.NewConfig(addr, allowedOrigins, dsn)
	if err != nil {
		logger.Fatal("config:", err)
	}

	var repo database.SessionRepository
	if cfg.PersistenceEnabled() {
		dbConn, err := database.NewPgSessionRepository(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("db open:", err)
		}
		defer func() {
			if err := dbConn.Close(); err != nil {
				logger.Println("db close:", err)
			}
		}()

		if err := database.Migrate(dbConn.DB()); err != nil {
			logger.Fatal("db migrate:", err)
		}
		repo = dbConn
	} else {
		logger.Println("no database configured, scheduled sessions disabled")
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	hub := server.NewHub(logger, server.NewRoomStore(), statsUpdater)

	srv := api.NewWhiteboardApp(mux, logger, hub, repo, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go hub.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		shutdownTimeout,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Println("HTTP server shutdown:", err)
	}

	logger.Println("shutting down relay hub...")
	if err := hub.Shutdown(shutDownCtx); err != nil {
		logger.Println("hub shutdown:", err)
	}

	logger.Println("shutdown complete")
}
