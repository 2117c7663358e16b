package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Canonical calculation parameter names. Products map these names onto their
// own form field keys through MappingFields.
const (
	ParamCADeclared               = "caDeclared"
	ParamHeadcount                = "etp"
	ParamActivities               = "activites"
	ParamTerritory                = "territoire"
	ParamExperienceYears          = "anneesExperience"
	ParamContinuousInsuranceYears = "anneesAssuranceContinue"
	ParamQualification            = "qualification"
	ParamDefaultingInsurer        = "assureurDefaillant"
	ParamNoBalanceSheet           = "nonFournitureBilan"
	ParamInactivityPeriod         = "tempsSansActivite"
	ParamPriorClaims              = "sinistresPrecedents"
	ParamRepriseYears             = "anneesReprisePasse"
	ParamManagementFeeRate        = "tauxFraisGestion"
	ParamLegalProtectionAmount    = "montantProtectionJuridique"
	ParamInsuranceTaxRate         = "tauxTaxeAssurance"
	ParamPeriodicity              = "periodicite"
	ParamInstallmentFee           = "fraisFractionnement"
	ParamEffectiveDate            = "dateEffet"
)

// Periodicity is the payment frequency chosen for a contract.
type Periodicity string

const (
	PeriodicityAnnual     Periodicity = "annuel"
	PeriodicitySemiAnnual Periodicity = "semestriel"
	PeriodicityQuarterly  Periodicity = "trimestriel"
	PeriodicityMonthly    Periodicity = "mensuel"
)

// Installments returns how many installments a year is split into, 0 when unknown.
func (p Periodicity) Installments() int {
	switch p {
	case PeriodicityAnnual:
		return 1
	case PeriodicitySemiAnnual:
		return 2
	case PeriodicityQuarterly:
		return 4
	case PeriodicityMonthly:
		return 12
	default:
		return 0
	}
}

// MonthsPerInstallment is the length of one installment period.
func (p Periodicity) MonthsPerInstallment() int {
	n := p.Installments()
	if n == 0 {
		return 0
	}
	return 12 / n
}

func (p Periodicity) IsValid() bool {
	return p.Installments() > 0
}

// ParsePeriodicity accepts the French labels, their English equivalents and the installment count.
func ParsePeriodicity(s string) (Periodicity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "annuel", "annuelle", "annual", "1":
		return PeriodicityAnnual, nil
	case "semestriel", "semestrielle", "semi-annual", "2":
		return PeriodicitySemiAnnual, nil
	case "trimestriel", "trimestrielle", "quarterly", "4":
		return PeriodicityQuarterly, nil
	case "mensuel", "mensuelle", "monthly", "12":
		return PeriodicityMonthly, nil
	}
	return "", fmt.Errorf("unknown periodicity %q", s)
}

// ActivityShare is one line of the declared activity breakdown.
type ActivityShare struct {
	Code           string          `json:"code"`
	CASharePercent decimal.Decimal `json:"caSharePercent"`
}

// CodeNumber returns the numeric value of the activity code, false when the code is not numeric.
func (a ActivityShare) CodeNumber() (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(a.Code))
	if err != nil {
		return 0, false
	}
	return n, true
}

// LossRecord is one year of declared claims history.
type LossRecord struct {
	Year   int             `json:"year"`
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// Parameters is the canonical parameter bag consumed by the premium calculator.
type Parameters struct {
	CADeclared               decimal.Decimal `json:"caDeclared"`
	Headcount                int             `json:"etp"`
	Activities               []ActivityShare `json:"activites"`
	Territory                string          `json:"territoire"`
	ExperienceYears          int             `json:"anneesExperience"`
	ContinuousInsuranceYears int             `json:"anneesAssuranceContinue"`
	Qualification            bool            `json:"qualification"`
	DefaultingInsurer        bool            `json:"assureurDefaillant"`
	NoBalanceSheet           bool            `json:"nonFournitureBilan"`
	InactivityPeriod         bool            `json:"tempsSansActivite"`
	PriorClaims              []LossRecord    `json:"sinistresPrecedents"`
	RepriseYears             int             `json:"anneesReprisePasse"`
	ManagementFeeRate        decimal.Decimal `json:"tauxFraisGestion"`
	LegalProtectionAmount    decimal.Decimal `json:"montantProtectionJuridique"`
	InsuranceTaxRate         decimal.Decimal `json:"tauxTaxeAssurance"`
	Periodicity              Periodicity     `json:"periodicite"`
	InstallmentFee           decimal.Decimal `json:"fraisFractionnement"`
	EffectiveDate            *time.Time      `json:"dateEffet,omitempty"`

	// Requester identifies who submitted the quote; territory whitelists match on it.
	Requester string `json:"requester,omitempty"`
}

// ClaimsWithin counts declared claims in the lookback window: the
// lookbackYears calendar years ending with the effective date year, so a
// five year lookback in 2025 covers 2021 to 2025. Without an effective date
// every record counts.
func (p Parameters) ClaimsWithin(lookbackYears int) (int, decimal.Decimal) {
	count := 0
	amount := decimal.Zero
	for _, r := range p.PriorClaims {
		if p.EffectiveDate != nil && lookbackYears > 0 && r.Year <= p.EffectiveDate.Year()-lookbackYears {
			continue
		}
		count += r.Count
		amount = amount.Add(r.Amount)
	}
	return count, amount
}

// SortedActivities returns the breakdown ordered by code so that results do
// not depend on the order answers were entered in.
func (p Parameters) SortedActivities() []ActivityShare {
	out := make([]ActivityShare, len(p.Activities))
	copy(out, p.Activities)
	sort.SliceStable(out, func(i, j int) bool {
		ni, okI := out[i].CodeNumber()
		nj, okJ := out[j].CodeNumber()
		if okI && okJ && ni != nj {
			return ni < nj
		}
		return out[i].Code < out[j].Code
	})
	return out
}

// Variables exposes the parameters to rule expressions.
func (p Parameters) Variables() map[string]interface{} {
	claims, claimsAmount := p.ClaimsWithin(0)
	return map[string]interface{}{
		ParamCADeclared:               p.CADeclared.InexactFloat64(),
		ParamHeadcount:                float64(p.Headcount),
		ParamTerritory:                p.Territory,
		ParamExperienceYears:          float64(p.ExperienceYears),
		ParamContinuousInsuranceYears: float64(p.ContinuousInsuranceYears),
		ParamQualification:            p.Qualification,
		ParamDefaultingInsurer:        p.DefaultingInsurer,
		ParamNoBalanceSheet:           p.NoBalanceSheet,
		ParamInactivityPeriod:         p.InactivityPeriod,
		ParamRepriseYears:             float64(p.RepriseYears),
		ParamPeriodicity:              string(p.Periodicity),
		"nombreEcheances":             float64(p.Periodicity.Installments()),
		"nombreActivites":             float64(len(p.Activities)),
		"nombreSinistres":             float64(claims),
		"montantSinistres":            claimsAmount.InexactFloat64(),
	}
}
