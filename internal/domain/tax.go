package domain

import "github.com/shopspring/decimal"

// VATType classifies how an amount is treated for value-added tax
type VATType string

const (
	VATTypeVatable   VATType = "vatable"
	VATTypeExempt    VATType = "exempt"
	VATTypeZeroRated VATType = "zero-rated"
)

// WHTType identifies the withholding tax category of a payment; each type
// carries its own configured rate
type WHTType string

const (
	WHTTypeServices    WHTType = "services"
	WHTTypeGoods       WHTType = "goods"
	WHTTypeRent        WHTType = "rent"
	WHTTypeConsultancy WHTType = "consultancy"
	WHTTypeContractual WHTType = "contractual"
)

// VATResult is the outcome of a VAT calculation
type VATResult struct {
	Amount    decimal.Decimal `json:"amount"`
	VATType   VATType         `json:"vat_type"`
	Rate      decimal.Decimal `json:"rate"`
	VATAmount decimal.Decimal `json:"vat_amount"`
	Total     decimal.Decimal `json:"total"`
}

// VATExtraction is the outcome of splitting a VAT-inclusive amount
type VATExtraction struct {
	InclusiveAmount decimal.Decimal `json:"inclusive_amount"`
	Rate            decimal.Decimal `json:"rate"`
	BaseAmount      decimal.Decimal `json:"base_amount"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
}

// WHTResult is the outcome of a withholding tax calculation
type WHTResult struct {
	GrossAmount decimal.Decimal `json:"gross_amount"`
	WHTType     WHTType         `json:"wht_type"`
	Rate        decimal.Decimal `json:"rate"`
	WHTAmount   decimal.Decimal `json:"wht_amount"`
	NetAmount   decimal.Decimal `json:"net_amount"`
}

// TaxBreakdown is the combined VAT + WHT calculation for a payment.
// VAT is applied to the base amount first; WHT is applied to the resulting
// gross amount, not to the original base.
type TaxBreakdown struct {
	BaseAmount  decimal.Decimal `json:"base_amount"`
	VATApplied  bool            `json:"vat_applied"`
	VATType     VATType         `json:"vat_type,omitempty"`
	VATRate     decimal.Decimal `json:"vat_rate"`
	VATAmount   decimal.Decimal `json:"vat_amount"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	WHTApplied  bool            `json:"wht_applied"`
	WHTType     WHTType         `json:"wht_type,omitempty"`
	WHTRate     decimal.Decimal `json:"wht_rate"`
	WHTAmount   decimal.Decimal `json:"wht_amount"`
	NetPayable  decimal.Decimal `json:"net_payable"`
}

// TaxLineItem is one line of a document for per-line tax calculation
type TaxLineItem struct {
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	IncludeVAT  bool            `json:"include_vat"`
	VATType     VATType         `json:"vat_type"`
	IncludeWHT  bool            `json:"include_wht"`
	WHTType     WHTType         `json:"wht_type"`
}

// LineItemsTaxResult aggregates per-line tax breakdowns for a document
type LineItemsTaxResult struct {
	Lines      []TaxBreakdown  `json:"lines"`
	TotalBase  decimal.Decimal `json:"total_base"`
	TotalVAT   decimal.Decimal `json:"total_vat"`
	TotalGross decimal.Decimal `json:"total_gross"`
	TotalWHT   decimal.Decimal `json:"total_wht"`
	TotalNet   decimal.Decimal `json:"total_net"`
}
