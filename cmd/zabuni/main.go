package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/zabuni/zabuni/internal/adapter/cache"
	"github.com/zabuni/zabuni/internal/adapter/persistence"
	"github.com/zabuni/zabuni/internal/config"
	"github.com/zabuni/zabuni/internal/domain"
	"github.com/zabuni/zabuni/internal/engine"
	"github.com/zabuni/zabuni/internal/ports"
)

// Version and build information
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	var (
		version     = flag.Bool("version", false, "Show version information")
		migrate     = flag.Bool("migrate", false, "Run database migrations and exit")
		archiveDays = flag.Int("archive-days", 0, "Archive audit entries older than N days and exit")
	)
	flag.Parse()

	if *version {
		fmt.Printf("Zabuni Procurement Governance Core\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := setupLogging(cfg)

	logger.WithFields(logrus.Fields{
		"version":     Version,
		"environment": cfg.Environment,
	}).Info("Starting Zabuni governance core")

	ctx := context.Background()

	db, err := initDatabase(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	if *migrate {
		if err := persistence.Migrate(ctx, db); err != nil {
			logger.WithError(err).Fatal("Failed to run migrations")
		}
		logger.Info("Migrations completed successfully")
		return
	}

	var rateCache ports.RateCache
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.GetRedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		rateCache, err = cache.NewRedisRateCache(client, cfg.Currency.CacheTTL, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize rate cache")
		}
	}

	// Wire the engines; callers embed this package, so construction doubles
	// as a startup validation of the transition tables and cash bands.
	ledger := engine.NewAuditLedger(persistence.NewPostgresAuditRepository(db), cfg.Audit, logger)

	workflows, err := engine.NewWorkflowEngine(persistence.NewPostgresDocumentStore(db), ledger, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid workflow definitions")
	}

	currency := engine.NewCurrencyEngine(
		persistence.NewPostgresRateRepository(db),
		persistence.NewPostgresLockedRateRepository(db),
		rateCache,
		ledger,
		cfg.Currency,
		logger,
	)

	taxes := engine.NewTaxEngine(cfg.Tax)

	governance, err := engine.NewGovernanceEngine(ledger, persistence.NewPostgresBudgetReader(db), cfg.Governance, logger)
	if err != nil {
		logger.WithError(err).Fatal("Invalid governance configuration")
	}

	if *archiveDays > 0 {
		cutoff := time.Now().UTC().AddDate(0, 0, -*archiveDays)
		moved, err := ledger.ArchiveOlderThan(ctx, cutoff)
		if err != nil {
			logger.WithError(err).Fatal("Audit archival failed")
		}
		logger.WithField("moved", moved).Info("Audit archival completed")
		return
	}

	// Smoke-check the ledger path so a misconfigured deployment fails here
	// rather than on the first real document.
	if _, err := ledger.Record(ctx, domain.SystemActor, domain.AuditActionComplianceEvent, "system", "startup", engine.RecordParams{
		Metadata: map[string]interface{}{"event": "core_started", "version": Version},
	}); err != nil {
		logger.WithError(err).Fatal("Audit ledger is not writable")
	}

	for _, wf := range []domain.Workflow{
		domain.WorkflowRequisition,
		domain.WorkflowPurchaseOrder,
		domain.WorkflowGRN,
		domain.WorkflowPayment,
		domain.WorkflowProcurementProcess,
	} {
		initial, err := workflows.InitialState(wf)
		if err != nil {
			logger.WithError(err).Fatal("Workflow lookup failed")
		}
		logger.WithFields(logrus.Fields{
			"workflow": string(wf),
			"initial":  string(initial),
		}).Debug("Workflow registered")
	}

	identity, err := currency.GetExchangeRate(ctx, cfg.Currency.BaseCurrency, cfg.Currency.BaseCurrency, time.Now().UTC())
	if err != nil {
		logger.WithError(err).Fatal("Currency engine failed its identity check")
	}

	sample := decimal.RequireFromString("100000")
	logger.WithFields(logrus.Fields{
		"base_currency": cfg.Currency.BaseCurrency,
		"identity_rate": identity.String(),
		"cache_enabled": rateCache != nil,
		"sample_band":   governance.DetermineCashBand(sample).Key,
		"sample_vat":    taxes.CalculateVAT(sample, nil, domain.VATTypeVatable).VATAmount.String(),
	}).Info("Governance core ready")
}

func setupLogging(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339Nano, FullTimestamp: true})
	}

	logger.SetOutput(os.Stdout)
	return logger
}

func initDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.GetDatabaseURL())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetConnMaxIdleTime(cfg.Database.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
