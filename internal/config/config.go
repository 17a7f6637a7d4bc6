package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zabuni/zabuni/internal/domain"
)

// Config represents application configuration
type Config struct {
	Environment string           `json:"environment"`
	Database    DatabaseConfig   `json:"database"`
	Redis       RedisConfig      `json:"redis"`
	Logging     LoggingConfig    `json:"logging"`
	Currency    CurrencyConfig   `json:"currency"`
	Tax         TaxConfig        `json:"tax"`
	Governance  GovernanceConfig `json:"governance"`
	Audit       AuditConfig      `json:"audit"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Host           string        `json:"host"`
	Port           int           `json:"port"`
	User           string        `json:"user"`
	Password       string        `json:"password"`
	DBName         string        `json:"dbname"`
	SSLMode        string        `json:"sslmode"`
	MaxConnections int           `json:"max_connections"`
	MaxIdleTime    time.Duration `json:"max_idle_time"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// RedisConfig represents Redis configuration for the rate cache
type RedisConfig struct {
	Enabled  bool          `json:"enabled"`
	Host     string        `json:"host"`
	Port     int           `json:"port"`
	Password string        `json:"password"`
	DB       int           `json:"db"`
	PoolSize int           `json:"pool_size"`
	Timeout  time.Duration `json:"timeout"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// CurrencyConfig represents currency engine configuration
type CurrencyConfig struct {
	BaseCurrency        string        `json:"base_currency"`
	SupportedCurrencies []string      `json:"supported_currencies"`
	CacheTTL            time.Duration `json:"cache_ttl"`
	MaxResolutionDepth  int           `json:"max_resolution_depth"`
}

// IsSupported reports whether a currency code is in the supported set
func (c CurrencyConfig) IsSupported(currency string) bool {
	for _, code := range c.SupportedCurrencies {
		if code == currency {
			return true
		}
	}
	return false
}

// TaxConfig represents VAT/WHT rate configuration
type TaxConfig struct {
	DefaultVATRate decimal.Decimal            `json:"default_vat_rate"`
	DefaultWHTRate decimal.Decimal            `json:"default_wht_rate"`
	WHTRates       map[domain.WHTType]decimal.Decimal `json:"wht_rates"`
}

// GovernanceConfig represents compliance-rule configuration
type GovernanceConfig struct {
	ThreeWayMatchEnabled   bool            `json:"three_way_match_enabled"`
	MatchTolerancePercent  decimal.Decimal `json:"match_tolerance_percent"`
	PrincipalThreshold     decimal.Decimal `json:"principal_threshold"`
	BoardThreshold         decimal.Decimal `json:"board_threshold"`
	TenderThreshold        decimal.Decimal `json:"tender_threshold"`
	SingleSourceThreshold  decimal.Decimal `json:"single_source_threshold"`
	DefaultQuoteCount      int             `json:"default_quote_count"`
	EmergencyLimit         decimal.Decimal `json:"emergency_limit"`
	AllowSegregationOverride bool          `json:"allow_segregation_override"`
	AllowBudgetOverrun     bool            `json:"allow_budget_overrun"`
	AllowBackdating        bool            `json:"allow_backdating"`
	MaxBackdateDays        int             `json:"max_backdate_days"`
	CashBands              []domain.CashBand `json:"cash_bands"`
}

// AuditConfig represents audit ledger configuration
type AuditConfig struct {
	ArchiveEnabled    bool `json:"archive_enabled"`
	DefaultTrailLimit int  `json:"default_trail_limit"`
}

// Load loads configuration from environment variables and defaults
func Load() (*Config, error) {
	config := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnvInt("DB_PORT", 5432),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", ""),
			DBName:         getEnv("DB_NAME", "zabuni"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxConnections: getEnvInt("DB_MAX_CONNECTIONS", 20),
			MaxIdleTime:    getEnvDuration("DB_MAX_IDLE_TIME", 30*time.Minute),
			ConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 10),
			Timeout:  getEnvDuration("REDIS_TIMEOUT", 5*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Currency: CurrencyConfig{
			BaseCurrency:        getEnv("BASE_CURRENCY", "KES"),
			SupportedCurrencies: getEnvSlice("SUPPORTED_CURRENCIES", []string{"KES", "USD", "EUR", "GBP", "UGX", "TZS"}),
			CacheTTL:            getEnvDuration("RATE_CACHE_TTL", time.Hour),
			MaxResolutionDepth:  getEnvInt("RATE_MAX_RESOLUTION_DEPTH", 2),
		},
		Tax: TaxConfig{
			DefaultVATRate: getEnvDecimal("TAX_DEFAULT_VAT_RATE", "16"),
			DefaultWHTRate: getEnvDecimal("TAX_DEFAULT_WHT_RATE", "5"),
			WHTRates: map[domain.WHTType]decimal.Decimal{
				domain.WHTTypeServices:     getEnvDecimal("TAX_WHT_SERVICES", "5"),
				domain.WHTTypeGoods:        getEnvDecimal("TAX_WHT_GOODS", "3"),
				domain.WHTTypeRent:         getEnvDecimal("TAX_WHT_RENT", "10"),
				domain.WHTTypeConsultancy:  getEnvDecimal("TAX_WHT_CONSULTANCY", "5"),
				domain.WHTTypeContractual:  getEnvDecimal("TAX_WHT_CONTRACTUAL", "3"),
			},
		},
		Governance: GovernanceConfig{
			ThreeWayMatchEnabled:     getEnvBool("GOV_THREE_WAY_MATCH_ENABLED", true),
			MatchTolerancePercent:    getEnvDecimal("GOV_MATCH_TOLERANCE_PERCENT", "2"),
			PrincipalThreshold:       getEnvDecimal("GOV_PRINCIPAL_THRESHOLD", "500000"),
			BoardThreshold:           getEnvDecimal("GOV_BOARD_THRESHOLD", "5000000"),
			TenderThreshold:          getEnvDecimal("GOV_TENDER_THRESHOLD", "5000000"),
			SingleSourceThreshold:    getEnvDecimal("GOV_SINGLE_SOURCE_THRESHOLD", "500000"),
			DefaultQuoteCount:        getEnvInt("GOV_DEFAULT_QUOTE_COUNT", 3),
			EmergencyLimit:           getEnvDecimal("GOV_EMERGENCY_LIMIT", "2000000"),
			AllowSegregationOverride: getEnvBool("GOV_ALLOW_SEGREGATION_OVERRIDE", false),
			AllowBudgetOverrun:       getEnvBool("GOV_ALLOW_BUDGET_OVERRUN", false),
			AllowBackdating:          getEnvBool("GOV_ALLOW_BACKDATING", false),
			MaxBackdateDays:          getEnvInt("GOV_MAX_BACKDATE_DAYS", 30),
			CashBands:                defaultCashBands(),
		},
		Audit: AuditConfig{
			ArchiveEnabled:    getEnvBool("AUDIT_ARCHIVE_ENABLED", false),
			DefaultTrailLimit: getEnvInt("AUDIT_DEFAULT_TRAIL_LIMIT", 50),
		},
	}

	if raw := os.Getenv("GOV_CASH_BANDS_JSON"); raw != "" {
		var bands []domain.CashBand
		if err := json.Unmarshal([]byte(raw), &bands); err != nil {
			return nil, fmt.Errorf("failed to parse GOV_CASH_BANDS_JSON: %w", err)
		}
		config.Governance.CashBands = bands
	}

	return config, nil
}

// defaultCashBands returns the built-in tiered sourcing policy (KES amounts)
func defaultCashBands() []domain.CashBand {
	return []domain.CashBand{
		{
			Key:       "petty_cash",
			Min:       decimal.Zero,
			Max:       decimalPtr("50000"),
			Method:    domain.SourcingPettyCash,
			MinQuotes: 1,
			Approvers: []domain.ApprovalLevel{domain.ApprovalHOD},
		},
		{
			Key:       "direct_purchase",
			Min:       decimal.RequireFromString("50000"),
			Max:       decimalPtr("500000"),
			Method:    domain.SourcingDirectPurchase,
			MinQuotes: 3,
			Approvers: []domain.ApprovalLevel{domain.ApprovalHOD},
		},
		{
			Key:       "quotation",
			Min:       decimal.RequireFromString("500000"),
			Max:       decimalPtr("5000000"),
			Method:    domain.SourcingQuotation,
			MinQuotes: 3,
			Approvers: []domain.ApprovalLevel{domain.ApprovalHOD, domain.ApprovalPrincipal},
		},
		{
			Key:       "open_tender",
			Min:       decimal.RequireFromString("5000000"),
			Max:       decimalPtr("50000000"),
			Method:    domain.SourcingOpenTender,
			MinQuotes: 0,
			Approvers: []domain.ApprovalLevel{domain.ApprovalHOD, domain.ApprovalPrincipal, domain.ApprovalBoard},
		},
		{
			Key:       "strategic",
			Min:       decimal.RequireFromString("50000000"),
			Max:       nil,
			Method:    domain.SourcingStrategicTender,
			MinQuotes: 0,
			Approvers: []domain.ApprovalLevel{domain.ApprovalHOD, domain.ApprovalPrincipal, domain.ApprovalBoard},
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}

	if c.Database.User == "" {
		return fmt.Errorf("database user is required")
	}

	if c.Database.DBName == "" {
		return fmt.Errorf("database name is required")
	}

	if c.Currency.BaseCurrency == "" {
		return fmt.Errorf("base currency is required")
	}

	if !c.Currency.IsSupported(c.Currency.BaseCurrency) {
		return fmt.Errorf("base currency %s must be in the supported set", c.Currency.BaseCurrency)
	}

	if c.Currency.MaxResolutionDepth < 1 {
		return fmt.Errorf("rate resolution depth must be at least 1")
	}

	if c.Tax.DefaultVATRate.IsNegative() || c.Tax.DefaultWHTRate.IsNegative() {
		return fmt.Errorf("default tax rates cannot be negative")
	}

	return c.Governance.ValidateCashBands()
}

// ValidateCashBands checks the tiers are ordered, contiguous and exhaustive
// over [0, inf): the first tier starts at zero, each tier starts where the
// previous one ends, and only the last tier is open-ended. The governance
// engine re-runs this at construction for callers that build the config
// directly.
func (c GovernanceConfig) ValidateCashBands() error {
	bands := c.CashBands
	if len(bands) == 0 {
		return fmt.Errorf("at least one cash band is required")
	}

	if !bands[0].Min.IsZero() {
		return fmt.Errorf("first cash band must start at zero, got %s", bands[0].Min)
	}

	for i, band := range bands {
		last := i == len(bands)-1
		if last {
			if band.Max != nil {
				return fmt.Errorf("last cash band %q must be open-ended", band.Key)
			}
			continue
		}
		if band.Max == nil {
			return fmt.Errorf("cash band %q is open-ended but not last", band.Key)
		}
		if band.Max.LessThanOrEqual(band.Min) {
			return fmt.Errorf("cash band %q has max <= min", band.Key)
		}
		if !bands[i+1].Min.Equal(*band.Max) {
			return fmt.Errorf("cash band %q does not start where %q ends", bands[i+1].Key, band.Key)
		}
	}

	return nil
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// GetDatabaseURL returns the database connection URL
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRedisAddr returns the Redis host:port address
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// Helper functions for environment variables

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func getEnvDecimal(key string, defaultValue string) decimal.Decimal {
	if value := os.Getenv(key); value != "" {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(defaultValue)
}

func decimalPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
