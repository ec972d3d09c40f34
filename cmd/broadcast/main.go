// Command broadcast pushes the current time-of-day message to every active
// user once and exits. Run it from cron at the top of each hour.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"
	_ "time/tzdata"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yuilabs/minami/internal"
	"github.com/yuilabs/minami/internal/line"
	"github.com/yuilabs/minami/internal/service"
	"github.com/yuilabs/minami/internal/store"
)

func run() error {
	timeout := flag.Duration("timeout", 10*time.Minute, "maximum run time")
	flag.Parse()

	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel).With("cmd", "broadcast")

	loc, err := time.LoadLocation(cfg.BroadcastTimezone)
	if err != nil {
		return fmt.Errorf("load BROADCAST_TIMEZONE %q: %w", cfg.BroadcastTimezone, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	lineClient, err := line.NewClient(line.ClientConfig{
		ChannelAccessToken: cfg.LineChannelAccessToken,
		Timeout:            cfg.LineRequestTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("line client initialization failed: %w", err)
	}

	st := store.New(db, cfg.Quota)
	report, err := service.NewBroadcastService(st, lineClient, loc, logger).Run(ctx)
	if err != nil {
		return fmt.Errorf("broadcast failed after %d of %d pushes: %w", report.Sent, report.Targets, err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
