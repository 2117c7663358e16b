package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CalculationResult is the outcome of one premium calculation. A refused
// result carries no Premium block, so it has no amounts to misread.
type CalculationResult struct {
	Refus       bool   `json:"refus"`
	RefusReason string `json:"refusReason,omitempty"`
	*Premium

	TariffVersion string `json:"tariffVersion"`
	TariffHash    string `json:"tariffHash"`
	Fingerprint   string `json:"fingerprint"`
}

// Premium is the monetary breakdown of an accepted calculation.
type Premium struct {
	CACalculee  decimal.Decimal     `json:"caCalculee"`
	PrimeRCD    decimal.Decimal     `json:"primeRCD"`
	PrimeTotal  decimal.Decimal     `json:"primeTotal"`
	TotalTTC    decimal.Decimal     `json:"totalTTC"`
	Autres      Autres              `json:"autres"`
	Activites   []ActivityPremium   `json:"activites"`
	Majorations []AppliedAdjustment `json:"majorations"`
	Echeancier  *Echeancier         `json:"echeancier,omitempty"`
}

// Autres splits the total into its components. Frais is FraisGestion plus
// FraisFractionnement; TaxeAssurance is the sum of the per component taxes.
type Autres struct {
	RCD                 decimal.Decimal `json:"rcd"`
	PJ                  decimal.Decimal `json:"pj"`
	FraisGestion        decimal.Decimal `json:"fraisGestion"`
	FraisFractionnement decimal.Decimal `json:"fraisFractionnement"`
	Frais               decimal.Decimal `json:"frais"`
	Reprise             decimal.Decimal `json:"reprise"`
	TaxeRCD             decimal.Decimal `json:"taxeRCD"`
	TaxePJ              decimal.Decimal `json:"taxePJ"`
	TaxeFrais           decimal.Decimal `json:"taxeFrais"`
	TaxeReprise         decimal.Decimal `json:"taxeReprise"`
	TaxeAssurance       decimal.Decimal `json:"taxeAssurance"`
}

// ActivityPremium is the premium attributed to one declared activity.
type ActivityPremium struct {
	Code           string          `json:"code"`
	Label          string          `json:"label"`
	Category       string          `json:"category"`
	CASharePercent decimal.Decimal `json:"caSharePercent"`
	Basis          decimal.Decimal `json:"basis"`
	Rate           decimal.Decimal `json:"rate"`
	Premium        decimal.Decimal `json:"premium"`
}

// AdjustmentMode tells how a majoration or reduction combines with the premium.
type AdjustmentMode string

const (
	AdjustmentAdditive       AdjustmentMode = "additive"
	AdjustmentMultiplicative AdjustmentMode = "multiplicative"
)

// AppliedAdjustment records a majoration (positive rate) or reduction (negative rate).
type AppliedAdjustment struct {
	Name   string          `json:"name"`
	Label  string          `json:"label"`
	Mode   AdjustmentMode  `json:"mode"`
	Rate   decimal.Decimal `json:"rate"`
	Amount decimal.Decimal `json:"amount"`
}

// Echeancier is the per installment view of a premium.
type Echeancier struct {
	Periodicite Periodicity `json:"periodicite"`
	Echeances   []Echeance  `json:"echeances"`
}

// Echeance is one installment of an echeancier. TotalHT is the sum of its
// components and TotalTTC adds the tax.
type Echeance struct {
	Numero       int             `json:"numero"`
	Date         time.Time       `json:"date"`
	DebutPeriode time.Time       `json:"debutPeriode"`
	FinPeriode   time.Time       `json:"finPeriode"`
	TotalHT      decimal.Decimal `json:"totalHT"`
	Taxe         decimal.Decimal `json:"taxe"`
	TotalTTC     decimal.Decimal `json:"totalTTC"`
	RCD          decimal.Decimal `json:"rcd"`
	PJ           decimal.Decimal `json:"pj"`
	Frais        decimal.Decimal `json:"frais"`
	Reprise      decimal.Decimal `json:"reprise"`
}

// Refused builds a refusal result.
func Refused(reason string) *CalculationResult {
	return &CalculationResult{Refus: true, RefusReason: reason}
}
