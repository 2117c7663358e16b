package schedule

import (
	"strconv"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// NarrowToEcheance returns a copy of result whose amounts are those of
// echeance numero alone, as printed on that installment's premium call.
// result is not modified.
func NarrowToEcheance(result *domain.CalculationResult, numero int) (*domain.CalculationResult, error) {
	if result == nil || result.Refus || result.Premium == nil {
		return nil, customError.WrapCalculationRefused(refusalReason(result))
	}
	if result.Echeancier == nil {
		return nil, customError.WrapInstallmentNotFound(strconv.Itoa(numero))
	}
	for _, e := range result.Echeancier.Echeances {
		if e.Numero == numero {
			return narrow(result, e), nil
		}
	}
	return nil, customError.WrapInstallmentNotFound(strconv.Itoa(numero))
}

// NarrowToInstallment is NarrowToEcheance for a persisted installment, so
// manual edits to its dates and amounts show on the premium call.
func NarrowToInstallment(result *domain.CalculationResult, inst *domain.PaymentInstallment) (*domain.CalculationResult, error) {
	if result == nil || result.Refus || result.Premium == nil {
		return nil, customError.WrapCalculationRefused(refusalReason(result))
	}
	return narrow(result, EcheanceOf(inst)), nil
}

// EcheanceOf converts a persisted installment back to its echeance view.
func EcheanceOf(inst *domain.PaymentInstallment) domain.Echeance {
	return domain.Echeance{
		Numero:       inst.InstallmentNumber,
		Date:         inst.DueDate,
		DebutPeriode: inst.PeriodStart,
		FinPeriode:   inst.PeriodEnd,
		TotalHT:      inst.AmountHT,
		Taxe:         inst.TaxAmount,
		TotalTTC:     inst.AmountTTC,
		RCD:          inst.RCDAmount,
		PJ:           inst.PJAmount,
		Frais:        inst.FeesAmount,
		Reprise:      inst.ResumeAmount,
	}
}

// narrow reduces every premium amount to the installment. The activity and
// majoration breakdowns are annual and not split per installment, so they are
// dropped, as are the per component fees and taxes. CACalculee is the rating
// basis rather than an amount due and keeps its annual value.
func narrow(result *domain.CalculationResult, e domain.Echeance) *domain.CalculationResult {
	out := *result
	premium := *result.Premium

	premium.PrimeRCD = e.RCD
	premium.PrimeTotal = e.TotalHT
	premium.TotalTTC = e.TotalTTC
	premium.Autres = domain.Autres{
		RCD:                 e.RCD,
		PJ:                  e.PJ,
		FraisGestion:        decimal.Zero,
		FraisFractionnement: decimal.Zero,
		Frais:               e.Frais,
		Reprise:             e.Reprise,
		TaxeAssurance:       e.Taxe,
	}
	premium.Activites = nil
	premium.Majorations = nil

	periodicity := domain.Periodicity("")
	if result.Echeancier != nil {
		periodicity = result.Echeancier.Periodicite
	}
	premium.Echeancier = &domain.Echeancier{Periodicite: periodicity, Echeances: []domain.Echeance{e}}

	out.Premium = &premium
	return &out
}

func refusalReason(result *domain.CalculationResult) string {
	if result != nil && result.RefusReason != "" {
		return result.RefusReason
	}
	return "no premium available"
}
