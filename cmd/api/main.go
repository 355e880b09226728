package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vahri/branchguard/internal/config"
	"github.com/vahri/branchguard/internal/db"
	"github.com/vahri/branchguard/internal/httpserver"
	"github.com/vahri/branchguard/internal/log"
	"github.com/vahri/branchguard/internal/seed"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	gdb, err := db.Connect(cfg.DSN)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	if err := gdb.Use(db.RowSecurity{Log: logger}); err != nil {
		logger.Fatal("row security registration failed", zap.Error(err))
	}
	if err := db.AutoMigrate(gdb); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	if err := seed.Apply(context.Background(), gdb, seed.Default(), logger); err != nil {
		logger.Fatal("policy baseline failed", zap.Error(err))
	}

	r := httpserver.New(gdb, cfg, logger)
	logger.Info("server listening", zap.String("port", cfg.AppPort))
	if err := r.Run(fmt.Sprintf(":%s", cfg.AppPort)); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
