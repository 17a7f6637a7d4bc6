package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/zabuni/zabuni/internal/config"
	"github.com/zabuni/zabuni/internal/domain"
	"github.com/zabuni/zabuni/internal/ports"
)

// CurrencyEngine resolves exchange rates, converts monetary amounts and
// locks rates against specific transactions
type CurrencyEngine struct {
	rates  ports.RateRepository
	locks  ports.LockedRateRepository
	cache  ports.RateCache
	ledger *AuditLedger
	cfg    config.CurrencyConfig
	logger *logrus.Logger
}

// NewCurrencyEngine creates a new currency engine. The cache is optional;
// pass nil to resolve every rate from the repository.
func NewCurrencyEngine(rates ports.RateRepository, locks ports.LockedRateRepository, cache ports.RateCache, ledger *AuditLedger, cfg config.CurrencyConfig, logger *logrus.Logger) *CurrencyEngine {
	return &CurrencyEngine{
		rates:  rates,
		locks:  locks,
		cache:  cache,
		ledger: ledger,
		cfg:    cfg,
		logger: logger,
	}
}

// Convert converts an amount from one currency to another at the rate
// effective on asOf, rounded to 2 decimal places. Identical currencies are
// returned unchanged without validating currency support.
func (e *CurrencyEngine) Convert(ctx context.Context, amount decimal.Decimal, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}

	if !e.cfg.IsSupported(from) {
		return decimal.Zero, domain.ErrUnsupportedCurrency(from)
	}
	if !e.cfg.IsSupported(to) {
		return decimal.Zero, domain.ErrUnsupportedCurrency(to)
	}

	rate, err := e.ResolveRate(ctx, from, to, asOf)
	if err != nil {
		return decimal.Zero, err
	}

	return amount.Mul(rate).Round(2), nil
}

// ToBase converts an amount into the configured base currency
func (e *CurrencyEngine) ToBase(ctx context.Context, amount decimal.Decimal, from string, asOf time.Time) (decimal.Decimal, error) {
	return e.Convert(ctx, amount, from, e.cfg.BaseCurrency, asOf)
}

// FromBase converts a base-currency amount into another currency
func (e *CurrencyEngine) FromBase(ctx context.Context, amount decimal.Decimal, to string, asOf time.Time) (decimal.Decimal, error) {
	return e.Convert(ctx, amount, e.cfg.BaseCurrency, to, asOf)
}

// ResolveRate finds the rate for (from, to) effective on asOf. Resolution
// order: direct rate, reverse rate inverted, cross-rate through the base
// currency. Resolved rates are cached for the configured duration; the
// cache is advisory and bypassed on any miss.
func (e *CurrencyEngine) ResolveRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if e.cache != nil {
		if rate, ok := e.cache.Get(ctx, from, to, asOf); ok {
			return rate, nil
		}
	}

	rate, err := e.resolve(ctx, from, to, asOf, e.cfg.MaxResolutionDepth)
	if err != nil {
		return decimal.Zero, err
	}

	if e.cache != nil {
		e.cache.Put(ctx, from, to, asOf, rate)
	}

	return rate, nil
}

// resolve is the recursive resolver. depth bounds the cross-rate recursion
// so a misconfigured base currency cannot recurse indefinitely.
func (e *CurrencyEngine) resolve(ctx context.Context, from, to string, asOf time.Time, depth int) (decimal.Decimal, error) {
	if depth <= 0 {
		return decimal.Zero, domain.ErrRateNotFound(from, to, "resolution depth exhausted")
	}

	direct, err := e.rates.Latest(ctx, from, to, asOf)
	if err != nil {
		return decimal.Zero, domain.ErrStorageFailure("rate lookup", err)
	}
	if direct != nil {
		return direct.Rate, nil
	}

	reverse, err := e.rates.Latest(ctx, to, from, asOf)
	if err != nil {
		return decimal.Zero, domain.ErrStorageFailure("rate lookup", err)
	}
	if reverse != nil {
		return decimal.NewFromInt(1).DivRound(reverse.Rate, 6), nil
	}

	// Cross-rate through the base currency, only when neither side already
	// is the base. A missing leg is RateNotFound, never a silent default.
	base := e.cfg.BaseCurrency
	if from != base && to != base {
		fromBase, err := e.resolve(ctx, from, base, asOf, depth-1)
		if err != nil {
			return decimal.Zero, domain.ErrRateNotFound(from, to, "no rate for leg "+from+" -> "+base)
		}
		baseTo, err := e.resolve(ctx, base, to, asOf, depth-1)
		if err != nil {
			return decimal.Zero, domain.ErrRateNotFound(from, to, "no rate for leg "+base+" -> "+to)
		}
		return fromBase.Mul(baseTo).Round(6), nil
	}

	return decimal.Zero, domain.ErrRateNotFound(from, to, "no direct, reverse or cross rate")
}

// GetExchangeRate returns the resolved rate for (from, to) on asOf
func (e *CurrencyEngine) GetExchangeRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if !e.cfg.IsSupported(from) {
		return decimal.Zero, domain.ErrUnsupportedCurrency(from)
	}
	if !e.cfg.IsSupported(to) {
		return decimal.Zero, domain.ErrUnsupportedCurrency(to)
	}

	return e.ResolveRate(ctx, from, to, asOf)
}

// StoreExchangeRate saves new reference-rate data and audits the change
func (e *CurrencyEngine) StoreExchangeRate(ctx context.Context, actor domain.ActorContext, rate *domain.ExchangeRate) error {
	if rate.Rate.LessThanOrEqual(decimal.Zero) {
		return domain.ErrInvalidRate(rate.FromCurrency + " -> " + rate.ToCurrency + ": " + rate.Rate.String())
	}
	if !e.cfg.IsSupported(rate.FromCurrency) {
		return domain.ErrUnsupportedCurrency(rate.FromCurrency)
	}
	if !e.cfg.IsSupported(rate.ToCurrency) {
		return domain.ErrUnsupportedCurrency(rate.ToCurrency)
	}

	if rate.ID == "" {
		rate.ID = uuid.NewString()
	}
	if rate.EffectiveDate.IsZero() {
		rate.EffectiveDate = time.Now().UTC()
	}

	if err := e.rates.Store(ctx, rate); err != nil {
		return domain.ErrStorageFailure("rate store", err)
	}

	_, err := e.ledger.RecordUpdate(ctx, actor, "exchange_rate", rate.ID, nil, map[string]interface{}{
		"from":           rate.FromCurrency,
		"to":             rate.ToCurrency,
		"rate":           rate.Rate.String(),
		"effective_date": rate.EffectiveDate.Format("2006-01-02"),
		"source":         rate.Source,
	})
	return err
}

// LockRate freezes a rate against a transaction so later reference-rate
// changes do not alter that transaction's computed amounts. Locks are
// write-once; a second lock for the same key fails.
func (e *CurrencyEngine) LockRate(ctx context.Context, actor domain.ActorContext, transactionType, transactionID, from, to string, rate decimal.Decimal) (*domain.LockedRate, error) {
	if rate.LessThanOrEqual(decimal.Zero) {
		return nil, domain.ErrInvalidRate(rate.String())
	}

	existing, err := e.locks.Find(ctx, transactionType, transactionID, from, to)
	if err != nil {
		return nil, domain.ErrStorageFailure("locked rate lookup", err)
	}
	if existing != nil {
		return nil, domain.ErrRateAlreadyLocked(transactionType, transactionID)
	}

	lock := &domain.LockedRate{
		ID:              uuid.NewString(),
		TransactionType: transactionType,
		TransactionID:   transactionID,
		FromCurrency:    from,
		ToCurrency:      to,
		Rate:            rate,
		LockedAt:        time.Now().UTC(),
	}

	if err := e.locks.Create(ctx, lock); err != nil {
		return nil, domain.ErrStorageFailure("rate lock", err)
	}

	if _, err := e.ledger.RecordComplianceEvent(ctx, actor, transactionType, transactionID, "rate_locked", map[string]interface{}{
		"from": from,
		"to":   to,
		"rate": rate.String(),
	}); err != nil {
		return nil, err
	}

	e.logger.WithFields(logrus.Fields{
		"transaction_type": transactionType,
		"transaction_id":   transactionID,
		"from":             from,
		"to":               to,
		"rate":             rate.String(),
	}).Info("Exchange rate locked")

	return lock, nil
}

// GetLockedRate returns the rate previously locked for a transaction, or
// nil when none was locked
func (e *CurrencyEngine) GetLockedRate(ctx context.Context, transactionType, transactionID, from, to string) (*domain.LockedRate, error) {
	lock, err := e.locks.Find(ctx, transactionType, transactionID, from, to)
	if err != nil {
		return nil, domain.ErrStorageFailure("locked rate lookup", err)
	}
	return lock, nil
}

// FXVariance computes the base-currency impact of a rate movement on a
// foreign-currency amount, rounded to 2 decimal places
func (e *CurrencyEngine) FXVariance(amount decimal.Decimal, currency string, originalRate, currentRate decimal.Decimal) domain.FXVariance {
	originalBase := amount.Mul(originalRate).Round(2)
	currentBase := amount.Mul(currentRate).Round(2)
	variance := currentBase.Sub(originalBase)

	pct := decimal.Zero
	if !originalBase.IsZero() {
		pct = variance.Div(originalBase).Mul(decimal.NewFromInt(100)).Round(2)
	}

	direction := domain.VarianceGain
	if variance.IsNegative() {
		direction = domain.VarianceLoss
	}

	return domain.FXVariance{
		Amount:             amount,
		Currency:           currency,
		OriginalRate:       originalRate,
		CurrentRate:        currentRate,
		OriginalBase:       originalBase,
		CurrentBase:        currentBase,
		Variance:           variance,
		VariancePercentage: pct,
		Direction:          direction,
	}
}
