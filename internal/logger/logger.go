package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Init builds a zap logger for env and installs it as the global logger.
func Init(env string) error {
	var (
		l   *zap.Logger
		err error
	)

	switch env {
	case "production":
		l, err = zap.NewProduction()
	default:
		l, err = zap.NewDevelopment()
	}
	if err != nil {
		return fmt.Errorf("zap.New -> %w", err)
	}

	zap.ReplaceGlobals(l)

	return nil
}
