package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/zabuni/zabuni/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestTaxEngine_CalculateVAT(t *testing.T) {
	engine := NewTaxEngine(testTaxConfig())

	tests := []struct {
		name          string
		amount        string
		rate          *decimal.Decimal
		vatType       domain.VATType
		wantVATAmount string
		wantTotal     string
	}{
		{
			name:          "default rate on vatable amount",
			amount:        "1000",
			vatType:       domain.VATTypeVatable,
			wantVATAmount: "160",
			wantTotal:     "1160",
		},
		{
			name:          "explicit rate overrides default",
			amount:        "200",
			rate:          decPtr("8"),
			vatType:       domain.VATTypeVatable,
			wantVATAmount: "16",
			wantTotal:     "216",
		},
		{
			name:          "exempt short-circuits regardless of rate",
			amount:        "100",
			rate:          decPtr("16"),
			vatType:       domain.VATTypeExempt,
			wantVATAmount: "0",
			wantTotal:     "100",
		},
		{
			name:          "zero-rated short-circuits",
			amount:        "5000",
			vatType:       domain.VATTypeZeroRated,
			wantVATAmount: "0",
			wantTotal:     "5000",
		},
		{
			name:          "rounding to two decimals",
			amount:        "33.33",
			vatType:       domain.VATTypeVatable,
			wantVATAmount: "5.33",
			wantTotal:     "38.66",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.CalculateVAT(dec(tt.amount), tt.rate, tt.vatType)

			assert.True(t, result.VATAmount.Equal(dec(tt.wantVATAmount)), "vat amount: got %s, want %s", result.VATAmount, tt.wantVATAmount)
			assert.True(t, result.Total.Equal(dec(tt.wantTotal)), "total: got %s, want %s", result.Total, tt.wantTotal)
		})
	}
}

func TestTaxEngine_ExtractVAT(t *testing.T) {
	engine := NewTaxEngine(testTaxConfig())

	result := engine.ExtractVAT(dec("1160"), nil)

	assert.True(t, result.BaseAmount.Equal(dec("1000")), "base: got %s", result.BaseAmount)
	assert.True(t, result.VATAmount.Equal(dec("160")), "vat: got %s", result.VATAmount)

	// extraction inverts calculation within rounding
	calc := engine.CalculateVAT(result.BaseAmount, nil, domain.VATTypeVatable)
	assert.True(t, calc.Total.Equal(dec("1160")))
}

func TestTaxEngine_CalculateWHT(t *testing.T) {
	engine := NewTaxEngine(testTaxConfig())

	tests := []struct {
		name          string
		gross         string
		whtType       domain.WHTType
		rate          *decimal.Decimal
		wantWHTAmount string
		wantNet       string
	}{
		{
			name:          "services rate from table",
			gross:         "1000",
			whtType:       domain.WHTTypeServices,
			wantWHTAmount: "50",
			wantNet:       "950",
		},
		{
			name:          "rent rate from table",
			gross:         "1000",
			whtType:       domain.WHTTypeRent,
			wantWHTAmount: "100",
			wantNet:       "900",
		},
		{
			name:          "unknown type falls back to default",
			gross:         "1000",
			whtType:       domain.WHTType("royalties"),
			wantWHTAmount: "50",
			wantNet:       "950",
		},
		{
			name:          "explicit rate wins",
			gross:         "1000",
			whtType:       domain.WHTTypeServices,
			rate:          decPtr("10"),
			wantWHTAmount: "100",
			wantNet:       "900",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := engine.CalculateWHT(dec(tt.gross), tt.whtType, tt.rate)

			assert.True(t, result.WHTAmount.Equal(dec(tt.wantWHTAmount)), "wht: got %s", result.WHTAmount)
			assert.True(t, result.NetAmount.Equal(dec(tt.wantNet)), "net: got %s", result.NetAmount)
		})
	}
}

func TestTaxEngine_CalculateComprehensive(t *testing.T) {
	engine := NewTaxEngine(testTaxConfig())

	t.Run("VAT then WHT on gross", func(t *testing.T) {
		b := engine.CalculateComprehensive(dec("1000"), true, domain.VATTypeVatable, true, domain.WHTTypeServices)

		assert.True(t, b.VATAmount.Equal(dec("160")), "vat: got %s", b.VATAmount)
		assert.True(t, b.GrossAmount.Equal(dec("1160")), "gross: got %s", b.GrossAmount)
		// WHT applies to the gross 1160, not the base 1000
		assert.True(t, b.WHTAmount.Equal(dec("58")), "wht: got %s", b.WHTAmount)
		assert.True(t, b.NetPayable.Equal(dec("1102")), "net: got %s", b.NetPayable)
	})

	t.Run("VAT only", func(t *testing.T) {
		b := engine.CalculateComprehensive(dec("1000"), true, domain.VATTypeVatable, false, "")

		assert.True(t, b.GrossAmount.Equal(dec("1160")))
		assert.True(t, b.WHTAmount.IsZero())
		assert.True(t, b.NetPayable.Equal(dec("1160")))
	})

	t.Run("WHT only applies to base", func(t *testing.T) {
		b := engine.CalculateComprehensive(dec("1000"), false, "", true, domain.WHTTypeServices)

		assert.True(t, b.GrossAmount.Equal(dec("1000")))
		assert.True(t, b.WHTAmount.Equal(dec("50")))
		assert.True(t, b.NetPayable.Equal(dec("950")))
	})

	t.Run("exempt VAT leaves gross at base", func(t *testing.T) {
		b := engine.CalculateComprehensive(dec("1000"), true, domain.VATTypeExempt, true, domain.WHTTypeServices)

		assert.True(t, b.GrossAmount.Equal(dec("1000")))
		assert.True(t, b.WHTAmount.Equal(dec("50")))
		assert.True(t, b.NetPayable.Equal(dec("950")))
	})
}

func TestTaxEngine_CalculateLineItemsTax(t *testing.T) {
	engine := NewTaxEngine(testTaxConfig())

	items := []domain.TaxLineItem{
		{Amount: dec("1000"), IncludeVAT: true, VATType: domain.VATTypeVatable, IncludeWHT: true, WHTType: domain.WHTTypeServices},
		{Amount: dec("500"), IncludeVAT: true, VATType: domain.VATTypeExempt},
		{Amount: dec("250"), IncludeWHT: true, WHTType: domain.WHTTypeGoods},
	}

	result := engine.CalculateLineItemsTax(items)

	assert.Len(t, result.Lines, 3)
	assert.True(t, result.TotalBase.Equal(dec("1750")), "base: got %s", result.TotalBase)
	assert.True(t, result.TotalVAT.Equal(dec("160")), "vat: got %s", result.TotalVAT)
	assert.True(t, result.TotalGross.Equal(dec("1910")), "gross: got %s", result.TotalGross)
	// 58 on line one, 7.50 on line three
	assert.True(t, result.TotalWHT.Equal(dec("65.50")), "wht: got %s", result.TotalWHT)
	assert.True(t, result.TotalNet.Equal(dec("1844.50")), "net: got %s", result.TotalNet)
}

func TestTaxEngine_KRAPin(t *testing.T) {
	engine := NewTaxEngine(testTaxConfig())

	tests := []struct {
		pin   string
		valid bool
	}{
		{"A123456789B", true},
		{"a123456789b", true},
		{" P051234567Q ", true},
		{"A12345678B", false},
		{"1123456789B", false},
		{"A123456789", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.valid, engine.ValidateKRAPin(tt.pin), "pin %q", tt.pin)
	}

	assert.Equal(t, "A-123456789-B", engine.FormatKRAPin("A123456789B"))
	assert.Equal(t, "A-123456789-B", engine.FormatKRAPin("a123456789b"))
	assert.Equal(t, "too-short", engine.FormatKRAPin("too-short"))
}
