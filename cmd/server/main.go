package main

import (
	"log/slog"
	"os"

	"configurator/internal/api"
	"configurator/internal/config"
	"configurator/internal/reviver"
	"configurator/internal/workspace"

	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.Load(config.DefaultPath, os.Args[1:])
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(2)
	}
	log := cfg.Logger()
	slog.SetDefault(log)

	// 1. Схема и справочники
	reg, catalog, err := workspace.LoadRegistry(cfg.SchemaFile, cfg.EnumsDir)
	if err != nil {
		log.Error("schema load failed", "schema", cfg.SchemaFile, "enums", cfg.EnumsDir, "err", err)
		os.Exit(1)
	}
	log.Info("schema loaded", "entities", len(reg.Entities()), "catalogs", len(catalog))

	// 2. Хранилище снимков
	store := workspace.NewStore(workspace.Options{
		Registry: reg,
		Revival: reviver.Options{
			EnforceTypes:              cfg.EnforceTypes,
			PreserveUnknownProperties: cfg.PreserveUnknown,
			Debug:                     cfg.DebugRevival,
			Logger:                    log,
		},
		Logger: log,
	})

	// 3. Конфигурации, импортируемые при старте
	if cfg.ConfigsDir != "" {
		snaps, err := store.ImportDir(cfg.ConfigsDir)
		if err != nil {
			log.Error("import failed", "dir", cfg.ConfigsDir, "err", err)
			os.Exit(1)
		}
		log.Info("configurations imported", "dir", cfg.ConfigsDir, "count", len(snaps))
	}

	// 4. REST API
	if cfg.SlogLevel() > slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	addr := ":" + cfg.Port
	log.Info("starting server", "addr", addr)
	if err := api.RunServer(addr, api.NewRouter(store, catalog, log)); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
