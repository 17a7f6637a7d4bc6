package engine

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/zabuni/zabuni/internal/config"
	"github.com/zabuni/zabuni/internal/domain"
)

var kraPinPattern = regexp.MustCompile(`^[A-Z][0-9]{9}[A-Z]$`)

var hundred = decimal.NewFromInt(100)

// TaxEngine is the stateless VAT/WHT calculator. It operates on amounts
// and the configured rate tables only.
type TaxEngine struct {
	cfg config.TaxConfig
}

// NewTaxEngine creates a new tax engine
func NewTaxEngine(cfg config.TaxConfig) *TaxEngine {
	return &TaxEngine{cfg: cfg}
}

// CalculateVAT computes VAT on an exclusive amount. Exempt and zero-rated
// types short-circuit to zero tax regardless of the rate argument. A nil
// rate uses the configured default.
func (e *TaxEngine) CalculateVAT(amount decimal.Decimal, rate *decimal.Decimal, vatType domain.VATType) domain.VATResult {
	if vatType == domain.VATTypeExempt || vatType == domain.VATTypeZeroRated {
		return domain.VATResult{
			Amount:    amount,
			VATType:   vatType,
			Rate:      decimal.Zero,
			VATAmount: decimal.Zero,
			Total:     amount,
		}
	}

	r := e.cfg.DefaultVATRate
	if rate != nil {
		r = *rate
	}

	vatAmount := amount.Mul(r).Div(hundred).Round(2)

	return domain.VATResult{
		Amount:    amount,
		VATType:   vatType,
		Rate:      r,
		VATAmount: vatAmount,
		Total:     amount.Add(vatAmount),
	}
}

// ExtractVAT splits a VAT-inclusive amount into base and VAT portions
func (e *TaxEngine) ExtractVAT(inclusiveAmount decimal.Decimal, rate *decimal.Decimal) domain.VATExtraction {
	r := e.cfg.DefaultVATRate
	if rate != nil {
		r = *rate
	}

	divisor := decimal.NewFromInt(1).Add(r.Div(hundred))
	base := inclusiveAmount.DivRound(divisor, 2)

	return domain.VATExtraction{
		InclusiveAmount: inclusiveAmount,
		Rate:            r,
		BaseAmount:      base,
		VATAmount:       inclusiveAmount.Sub(base),
	}
}

// CalculateWHT computes withholding tax on a gross payment. The rate is
// resolved by type from the configured table, falling back to the default;
// an explicit rate overrides both.
func (e *TaxEngine) CalculateWHT(grossAmount decimal.Decimal, whtType domain.WHTType, rate *decimal.Decimal) domain.WHTResult {
	r := e.whtRateFor(whtType)
	if rate != nil {
		r = *rate
	}

	whtAmount := grossAmount.Mul(r).Div(hundred).Round(2)

	return domain.WHTResult{
		GrossAmount: grossAmount,
		WHTType:     whtType,
		Rate:        r,
		WHTAmount:   whtAmount,
		NetAmount:   grossAmount.Sub(whtAmount),
	}
}

// CalculateComprehensive combines VAT and WHT for one payment. VAT is
// applied to the base amount first, producing the gross; WHT is then
// applied to that gross amount, not to the original base. The ordering is
// load-bearing: withholding applies to the invoiced (VAT-inclusive) value.
func (e *TaxEngine) CalculateComprehensive(baseAmount decimal.Decimal, includeVAT bool, vatType domain.VATType, includeWHT bool, whtType domain.WHTType) domain.TaxBreakdown {
	breakdown := domain.TaxBreakdown{
		BaseAmount:  baseAmount,
		VATRate:     decimal.Zero,
		VATAmount:   decimal.Zero,
		GrossAmount: baseAmount,
		WHTRate:     decimal.Zero,
		WHTAmount:   decimal.Zero,
	}

	if includeVAT {
		vat := e.CalculateVAT(baseAmount, nil, vatType)
		breakdown.VATApplied = true
		breakdown.VATType = vatType
		breakdown.VATRate = vat.Rate
		breakdown.VATAmount = vat.VATAmount
		breakdown.GrossAmount = vat.Total
	}

	if includeWHT {
		wht := e.CalculateWHT(breakdown.GrossAmount, whtType, nil)
		breakdown.WHTApplied = true
		breakdown.WHTType = whtType
		breakdown.WHTRate = wht.Rate
		breakdown.WHTAmount = wht.WHTAmount
	}

	breakdown.NetPayable = breakdown.GrossAmount.Sub(breakdown.WHTAmount)

	return breakdown
}

// CalculateLineItemsTax applies the comprehensive calculation per line and
// aggregates the totals, each rounded to 2 decimal places
func (e *TaxEngine) CalculateLineItemsTax(items []domain.TaxLineItem) domain.LineItemsTaxResult {
	result := domain.LineItemsTaxResult{
		Lines:      make([]domain.TaxBreakdown, 0, len(items)),
		TotalBase:  decimal.Zero,
		TotalVAT:   decimal.Zero,
		TotalGross: decimal.Zero,
		TotalWHT:   decimal.Zero,
		TotalNet:   decimal.Zero,
	}

	for _, item := range items {
		line := e.CalculateComprehensive(item.Amount, item.IncludeVAT, item.VATType, item.IncludeWHT, item.WHTType)
		result.Lines = append(result.Lines, line)

		result.TotalBase = result.TotalBase.Add(line.BaseAmount)
		result.TotalVAT = result.TotalVAT.Add(line.VATAmount)
		result.TotalGross = result.TotalGross.Add(line.GrossAmount)
		result.TotalWHT = result.TotalWHT.Add(line.WHTAmount)
		result.TotalNet = result.TotalNet.Add(line.NetPayable)
	}

	result.TotalBase = result.TotalBase.Round(2)
	result.TotalVAT = result.TotalVAT.Round(2)
	result.TotalGross = result.TotalGross.Round(2)
	result.TotalWHT = result.TotalWHT.Round(2)
	result.TotalNet = result.TotalNet.Round(2)

	return result
}

// ValidateKRAPin checks a KRA PIN against the expected format: one letter,
// nine digits, one letter
func (e *TaxEngine) ValidateKRAPin(pin string) bool {
	return kraPinPattern.MatchString(strings.ToUpper(strings.TrimSpace(pin)))
}

// FormatKRAPin inserts separators into an 11-character PIN for display;
// any other input is returned unchanged
func (e *TaxEngine) FormatKRAPin(pin string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(pin))
	if len(cleaned) != 11 {
		return pin
	}
	return cleaned[:1] + "-" + cleaned[1:10] + "-" + cleaned[10:]
}

// whtRateFor resolves the configured rate for a withholding tax type
func (e *TaxEngine) whtRateFor(whtType domain.WHTType) decimal.Decimal {
	if rate, ok := e.cfg.WHTRates[whtType]; ok {
		return rate
	}
	return e.cfg.DefaultWHTRate
}
