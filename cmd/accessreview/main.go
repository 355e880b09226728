// accessreview generates the periodic access review report and exits
// non-zero when the stale-override threshold is violated, so it can
// gate a release pipeline.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/vahri/branchguard/internal/config"
	"github.com/vahri/branchguard/internal/db"
	"github.com/vahri/branchguard/internal/log"
	"github.com/vahri/branchguard/internal/requestctx"
	"github.com/vahri/branchguard/internal/review"
)

func main() {
	days := pflag.Int("days", 90, "review window in days")
	output := pflag.String("output", "", "write the Markdown report to this path (default stdout)")
	failOnStale := pflag.Bool("fail-on-stale", false, "exit non-zero when stale overrides exceed --max-stale")
	maxStale := pflag.Int("max-stale", 0, "maximum stale overrides allowed before failing")
	pflag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
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

	ctx := requestctx.WithSystem(context.Background(), "access-review")
	rep, runErr := review.Run(ctx, gdb, review.Params{
		ReviewWindowDays: *days,
		FailOnStale:      *failOnStale,
		MaxStaleAllowed:  *maxStale,
	})
	if rep == nil {
		logger.Fatal("report failed", zap.Error(runErr))
	}

	markdown := rep.Markdown()
	if *output != "" {
		if err := os.WriteFile(*output, []byte(markdown), 0o644); err != nil {
			logger.Fatal("report write failed", zap.Error(err))
		}
		logger.Info("report written", zap.String("path", *output))
	} else {
		fmt.Print(markdown)
	}

	var stale review.ErrStaleThreshold
	if errors.As(runErr, &stale) {
		fmt.Fprintln(os.Stderr, stale.Error())
		os.Exit(1)
	}
	if runErr != nil {
		logger.Fatal("report failed", zap.Error(runErr))
	}
}
