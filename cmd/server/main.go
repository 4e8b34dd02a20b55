// Package main is the entry point for the runbox server.
//
// main() reads configuration from the environment, builds the two
// execution engines and the runner manager, and hands everything to the
// server package. All actual logic lives in internal/.
package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/codename-co/runbox/internal/engine/jsvm"
	"github.com/codename-co/runbox/internal/engine/pyworker"
	"github.com/codename-co/runbox/internal/runner"
	"github.com/codename-co/runbox/internal/server"
)

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))

	port := 8080
	if portStr := os.Getenv("PORT"); portStr != "" {
		var err error
		port, err = strconv.Atoi(portStr)
		if err != nil {
			logger.Error("invalid PORT value", slog.String("value", portStr))
			os.Exit(1)
		}
	}

	// Run history database. DB_PATH= (empty) disables history entirely.
	dbPath := "data/runbox.db"
	if envDB, ok := os.LookupEnv("DB_PATH"); ok {
		dbPath = envDB
	}
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			logger.Error("failed to create database directory",
				slog.String("dir", filepath.Dir(dbPath)),
				slog.String("error", err.Error()),
			)
			os.Exit(1)
		}
	}

	// JavaScript engine: in-process interpreter with a pre-warmed runtime
	// pool, ready immediately.
	jsEngine := jsvm.New(jsvm.DefaultConfig(), logger)

	// Python engine: persistent worker. The transport decides the
	// isolation boundary; the container transport needs a Docker daemon,
	// the process transport only needs a python3 binary.
	pyCfg := pyworker.DefaultConfig()
	if os.Getenv("PY_TRANSPORT") == "container" {
		pyCfg.Transport = pyworker.TransportContainer
	}
	if bin := os.Getenv("PY_BIN"); bin != "" {
		pyCfg.PythonBin = bin
	}
	if image := os.Getenv("PY_IMAGE"); image != "" {
		pyCfg.Image = image
	}
	pyEngine := pyworker.New(pyCfg, logger)

	manager := runner.New(runner.DefaultConfig(), jsEngine, pyEngine, logger)

	// Auth configuration. JWT_SECRET must be long random data:
	//   JWT_SECRET=$(openssl rand -hex 32)
	// API_KEY_HASH is a bcrypt hash of the accepted key. With neither set
	// the API is open, which is only sensible for local development.
	cfg := server.Config{
		Port:       port,
		DBPath:     dbPath,
		JWTSecret:  os.Getenv("JWT_SECRET"),
		APIKeyHash: os.Getenv("API_KEY_HASH"),
	}

	srv, err := server.New(cfg, logger, manager)
	if err != nil {
		logger.Error("failed to create server", slog.String("error", err.Error()))
		manager.Close()
		os.Exit(1)
	}

	// Start blocks until SIGINT/SIGTERM and closes the manager on the way
	// out.
	if err := srv.Start(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
