// Package schedule splits an annual premium into dated installments and
// governs the life of the persisted installments: manual edits, emission of
// premium calls in installment order, payments and cancellations.
//
// Every function here works in memory on values it is given. Persistence and
// concurrency control belong to the repository, which applies the same
// transitions as row level compare-and-set updates.
package schedule

import (
	"fmt"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"
	"github.com/segyhp/premium-engine/pkg/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BuildEcheancier splits an accepted result into installments. Each component
// is divided evenly and truncated to the cent; the last installment takes the
// residue, so every column sums exactly to the result's total.
//
// Installment i covers [effectiveDate + (i-1)/N year, effectiveDate + i/N year),
// and is due DueOffsetDays after its period starts.
func BuildEcheancier(result *domain.CalculationResult, periodicity domain.Periodicity, effectiveDate time.Time, opts domain.ScheduleOptions) (*domain.Echeancier, error) {
	if result == nil || result.Refus || result.Premium == nil {
		return nil, customError.WrapCalculationRefused(refusalReason(result))
	}
	n := periodicity.Installments()
	if n == 0 {
		return nil, customError.WrapValidation(customError.NewValidationError([]customError.FieldViolation{{
			Field: domain.ParamPeriodicity, Code: domain.ViolationOption, Message: fmt.Sprintf("unknown periodicity %q", periodicity),
		}}))
	}
	if effectiveDate.IsZero() {
		return nil, customError.WrapValidation(customError.NewValidationError([]customError.FieldViolation{{
			Field: domain.ParamEffectiveDate, Code: domain.ViolationRequired, Message: "an effective date is required to build a schedule",
		}}))
	}

	a := result.Autres
	rcd := utils.SplitEven(a.RCD, n)
	pj := utils.SplitEven(a.PJ, n)
	frais := utils.SplitEven(a.Frais, n)
	reprise := utils.SplitEven(a.Reprise, n)
	taxe := utils.SplitEven(a.TaxeAssurance, n)

	start := utils.TruncateDay(effectiveDate)
	months := periodicity.MonthsPerInstallment()
	echeances := make([]domain.Echeance, 0, n)
	for i := 0; i < n; i++ {
		periodStart := utils.AddMonths(start, i*months)
		periodEnd := utils.AddMonths(start, (i+1)*months)
		totalHT := utils.SumDecimals(rcd[i], pj[i], frais[i], reprise[i])
		echeances = append(echeances, domain.Echeance{
			Numero:       i + 1,
			Date:         periodStart.AddDate(0, 0, opts.DueOffsetDays),
			DebutPeriode: periodStart,
			FinPeriode:   periodEnd,
			TotalHT:      totalHT,
			Taxe:         taxe[i],
			TotalTTC:     totalHT.Add(taxe[i]),
			RCD:          rcd[i],
			PJ:           pj[i],
			Frais:        frais[i],
			Reprise:      reprise[i],
		})
	}

	return &domain.Echeancier{Periodicite: periodicity, Echeances: echeances}, nil
}

// GenerateSchedule turns an echeancier into new pending installments of quoteID.
func GenerateSchedule(quoteID uuid.UUID, echeancier *domain.Echeancier, now time.Time) []*domain.PaymentInstallment {
	installments := make([]*domain.PaymentInstallment, 0, len(echeancier.Echeances))
	for _, e := range echeancier.Echeances {
		installments = append(installments, &domain.PaymentInstallment{
			ID:                uuid.New(),
			QuoteID:           quoteID,
			InstallmentNumber: e.Numero,
			DueDate:           e.Date,
			PeriodStart:       e.DebutPeriode,
			PeriodEnd:         e.FinPeriode,
			AmountHT:          e.TotalHT,
			TaxAmount:         e.Taxe,
			AmountTTC:         e.TotalTTC,
			RCDAmount:         e.RCD,
			PJAmount:          e.PJ,
			FeesAmount:        e.Frais,
			ResumeAmount:      e.Reprise,
			Status:            domain.InstallmentStatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	return installments
}

// CanRegenerate reports whether a schedule may be replaced wholesale: only
// while no premium call was emitted and nothing was paid.
func CanRegenerate(installments []*domain.PaymentInstallment) bool {
	for _, i := range installments {
		if i.IsEmitted() || i.Status == domain.InstallmentStatusPaid {
			return false
		}
	}
	return true
}

// Totals sums the echeancier columns.
func Totals(e *domain.Echeancier) (ht, taxe, ttc decimal.Decimal) {
	for _, ech := range e.Echeances {
		ht = ht.Add(ech.TotalHT)
		taxe = taxe.Add(ech.Taxe)
		ttc = ttc.Add(ech.TotalTTC)
	}
	return ht, taxe, ttc
}
