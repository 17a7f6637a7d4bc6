package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"

	"github.com/zabuni/zabuni/internal/adapter/persistence"
	"github.com/zabuni/zabuni/internal/config"
	"github.com/zabuni/zabuni/internal/domain"
	"github.com/zabuni/zabuni/internal/engine"
)

// Seeds demo reference data for a fresh installation: a set of exchange
// rates against the base currency and a handful of budget lines for the
// current fiscal year. Rates go through the currency engine so the seeding
// itself lands on the audit trail.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	db, err := sql.Open("postgres", cfg.GetDatabaseURL())
	if err != nil {
		log.Fatalf("failed to connect db: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		log.Fatalf("failed to ping db: %v", err)
	}

	if err := persistence.Migrate(ctx, db); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	ledger := engine.NewAuditLedger(persistence.NewPostgresAuditRepository(db), cfg.Audit, logger)
	currency := engine.NewCurrencyEngine(
		persistence.NewPostgresRateRepository(db),
		persistence.NewPostgresLockedRateRepository(db),
		nil,
		ledger,
		cfg.Currency,
		logger,
	)

	effective := time.Now().UTC()
	rates := map[string]string{
		"USD": "129.50",
		"EUR": "140.20",
		"GBP": "163.75",
	}

	for foreign, raw := range rates {
		if !cfg.Currency.IsSupported(foreign) {
			continue
		}
		rate := &domain.ExchangeRate{
			FromCurrency:  foreign,
			ToCurrency:    cfg.Currency.BaseCurrency,
			Rate:          decimal.RequireFromString(raw),
			EffectiveDate: effective,
			Source:        "seed",
		}
		if err := currency.StoreExchangeRate(ctx, domain.SystemActor, rate); err != nil {
			log.Fatalf("failed to seed rate %s->%s: %v", foreign, cfg.Currency.BaseCurrency, err)
		}
		fmt.Printf("Seeded rate: %s -> %s = %s\n", foreign, cfg.Currency.BaseCurrency, raw)
	}

	fiscalYear := getenvDefault("SEED_FISCAL_YEAR", fmt.Sprintf("%d", effective.Year()))
	budgets := map[string]string{
		"ADMIN-001": "5000000",
		"ICT-001":   "12000000",
		"OPS-001":   "25000000",
	}

	query := `
	INSERT INTO budget_lines (budget_code, fiscal_year, allocated)
	VALUES ($1, $2, $3)
	ON CONFLICT (budget_code, fiscal_year) DO UPDATE SET
	  allocated = EXCLUDED.allocated,
	  version = budget_lines.version + 1
	`

	for code, allocated := range budgets {
		if _, err := db.ExecContext(ctx, query, code, fiscalYear, allocated); err != nil {
			log.Fatalf("failed to seed budget line %s: %v", code, err)
		}
		if _, err := ledger.RecordUpdate(ctx, domain.SystemActor, "budget_line", code, nil, map[string]interface{}{
			"fiscal_year": fiscalYear,
			"allocated":   allocated,
		}); err != nil {
			log.Fatalf("failed to audit budget line %s: %v", code, err)
		}
		fmt.Printf("Seeded budget line: %s/%s allocated=%s\n", code, fiscalYear, allocated)
	}
}

func getenvDefault(k, d string) string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	return v
}
