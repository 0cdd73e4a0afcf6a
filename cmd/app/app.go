package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/eventpass/eventpass-api/internal/api"
	"github.com/eventpass/eventpass-api/internal/config"
	"github.com/eventpass/eventpass-api/internal/db"
	"github.com/eventpass/eventpass-api/internal/logger"
)

func Start() error {
	conf, err := config.Load("./cmd/app/config.yml")
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}
	defer func() { _ = zap.L().Sync() }()

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database -> %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := api.NewServer(conf, postgresDB)
	s.StartBackground(ctx)

	addr := ":" + s.Config.API.Port
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s -> %w", addr, err)
	}

	zap.L().Info(fmt.Sprintf("starting server at %v", addr))
	if err = s.Serve(ctx, ln); err != nil {
		return fmt.Errorf("failed to run the server -> %w", err)
	}
	zap.L().Info("server stopped")

	return nil
}
