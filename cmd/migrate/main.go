package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"bankledger/internal/config"
	"bankledger/internal/database"
	"bankledger/internal/logger"
	"bankledger/internal/repositories"
	"bankledger/internal/services"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	var (
		direction = flag.String("direction", "up", "migration direction: up or down")
		steps     = flag.Int("steps", 1, "number of migrations to roll back with -direction=down")
		seed      = flag.Bool("seed", false, "load seed files after migrating up")
		verify    = flag.Bool("verify", false, "replay every account's ledger and report balance mismatches")
		wait      = flag.Duration("wait", time.Minute, "how long to wait for the database to accept connections")
	)
	flag.Parse()

	conf := config.Load()
	l := logger.New(os.Stdout, conf.IsDevelopment())

	if err := run(conf, l, *direction, *steps, *seed, *verify, *wait); err != nil {
		l.Error("migrate failed", "error", err)
		os.Exit(1)
	}
}

func run(conf *config.Config, l *slog.Logger, direction string, steps int, seed, verify bool, wait time.Duration) error {
	if conf.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations require the %s driver, got %q", config.DriverPostgres, conf.Database.Driver)
	}

	sqlDB, err := sql.Open("postgres", conf.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer sqlDB.Close()

	opts := []database.MigrationOption{database.WithLogger(l)}
	if seed {
		opts = append(opts, database.WithSeeds())
	}
	runner := database.NewMigrationRunner(sqlDB, opts...)

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	if err := runner.WaitForDatabase(ctx); err != nil {
		return err
	}

	switch direction {
	case "up":
		if err := runner.RunMigrations(); err != nil {
			return err
		}
		if seed {
			if err := runner.LoadSeeds(); err != nil {
				return err
			}
		}
	case "down":
		if err := runner.RollbackMigrations(steps); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown direction %q", direction)
	}

	version, dirty, err := runner.GetMigrationStatus()
	if err != nil {
		l.Warn("could not read migration status", "error", err)
	} else {
		l.Info("migration status", "version", version, "dirty", dirty)
	}

	if !verify {
		return nil
	}
	return verifyLedger(conf, l)
}

// verifyLedger replays every account and fails if any stored balance disagrees with its history
func verifyLedger(conf *config.Config, l *slog.Logger) error {
	db, err := database.New(&conf.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	uow := repositories.NewUnitOfWork(db.DB, db.TxOptions())
	metrics := services.NewPrometheusMetrics(prometheus.NewRegistry())
	ledger := services.NewLedgerService(uow, conf.Ledger, services.NewAuditLogger(l), metrics, l)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	reports, err := ledger.ReconcileAll(ctx)
	if err != nil {
		return err
	}

	inconsistent := 0
	for _, report := range reports {
		if report.Consistent {
			continue
		}
		inconsistent++
		l.Error("ledger mismatch",
			"account_number", report.AccountNumber,
			"stored_balance", report.StoredBalance.StringFixed(2),
			"replayed_balance", report.ReplayedBalance.StringFixed(2),
			"entry_count", report.EntryCount,
		)
	}

	l.Info("ledger verification finished", "accounts", len(reports), "inconsistent", inconsistent)
	if inconsistent > 0 {
		return fmt.Errorf("%d of %d accounts failed reconciliation", inconsistent, len(reports))
	}
	return nil
}
