package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExchangeRate stores the conversion rate between two currencies effective
// from a specific date. The latest rate with EffectiveDate <= the query date
// is authoritative.
type ExchangeRate struct {
	ID            string          `json:"id"`
	FromCurrency  string          `json:"from_currency"`
	ToCurrency    string          `json:"to_currency"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate time.Time       `json:"effective_date"`
	Source        string          `json:"source,omitempty"`
}

// LockedRate freezes an exchange rate against a specific transaction so later
// rate changes do not retroactively alter that transaction's amounts.
// Keyed uniquely by (TransactionType, TransactionID, FromCurrency, ToCurrency);
// written once, never mutated.
type LockedRate struct {
	ID              string          `json:"id"`
	TransactionType string          `json:"transaction_type"`
	TransactionID   string          `json:"transaction_id"`
	FromCurrency    string          `json:"from_currency"`
	ToCurrency      string          `json:"to_currency"`
	Rate            decimal.Decimal `json:"rate"`
	LockedAt        time.Time       `json:"locked_at"`
}

// VarianceDirection indicates whether an FX movement is a gain or a loss
type VarianceDirection string

const (
	VarianceGain VarianceDirection = "gain"
	VarianceLoss VarianceDirection = "loss"
)

// FXVariance describes the base-currency impact of a rate movement on a
// foreign-currency amount
type FXVariance struct {
	Amount             decimal.Decimal   `json:"amount"`
	Currency           string            `json:"currency"`
	OriginalRate       decimal.Decimal   `json:"original_rate"`
	CurrentRate        decimal.Decimal   `json:"current_rate"`
	OriginalBase       decimal.Decimal   `json:"original_base"`
	CurrentBase        decimal.Decimal   `json:"current_base"`
	Variance           decimal.Decimal   `json:"variance"`
	VariancePercentage decimal.Decimal   `json:"variance_percentage"`
	Direction          VarianceDirection `json:"direction"`
}
