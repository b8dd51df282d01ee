package main

import (
	"fmt"
	"os"

	"gocause/internal"
	"gocause/internal/api"
	"gocause/internal/config"
	"gocause/internal/modelstore"
	"gocause/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := internal.NewDefaultLogger()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	svc := service.New(store, logger, cfg.Queries.Seed, cfg.Queries.BootstrapRepetitions)
	app := api.NewApp(svc, logger)
	return app.Start(cfg.Server.Port)
}

func openStore(cfg *config.Config) (modelstore.Store, error) {
	switch cfg.Models.Store {
	case "postgres":
		return modelstore.NewPostgresStore(cfg.Database.URL)
	default:
		return modelstore.NewFileStore(cfg.Models.Dir)
	}
}
