package main

import (
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/animalabs/ragpipe/config"
	"github.com/animalabs/ragpipe/pipeline"
	"github.com/animalabs/ragpipe/server"
)

func main() {
	logger, err := newLogger()
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	valves, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if err := valves.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	pipe, err := pipeline.FromValves(valves, logger)
	if err != nil {
		logger.Fatal("build pipeline", zap.Error(err))
	}

	srv, err := server.New(server.Config{
		Pipeline:    pipe,
		DatabaseDSN: valves.DatabaseDSN,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("build server", zap.Error(err))
	}
	defer srv.Close()

	logger.Info("starting",
		zap.String("name", valves.Name),
		zap.String("variant", valves.Variant),
		zap.String("addr", valves.Addr))
	if err := srv.ListenAndServe(valves.Addr); err != nil {
		logger.Fatal("serve", zap.Error(err))
	}
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("DEV") != "" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
