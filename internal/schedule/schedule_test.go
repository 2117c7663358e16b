package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func acceptedResult() *domain.CalculationResult {
	return &domain.CalculationResult{
		Premium: &domain.Premium{
			CACalculee: d("200000"),
			PrimeRCD:   d("2640"),
			PrimeTotal: d("3490"),
			TotalTTC:   d("3808.76"),
			Autres: domain.Autres{
				RCD:                 d("2640"),
				PJ:                  d("106"),
				FraisGestion:        d("264"),
				FraisFractionnement: d("480"),
				Frais:               d("744"),
				Reprise:             d("0"),
				TaxeRCD:             d("237.60"),
				TaxePJ:              d("14.20"),
				TaxeFrais:           d("66.96"),
				TaxeAssurance:       d("318.76"),
			},
		},
		TariffVersion: "2024.2",
	}
}

func TestBuildEcheancierMonthly(t *testing.T) {
	ech, err := BuildEcheancier(acceptedResult(), domain.PeriodicityMonthly, date(2024, 1, 31), domain.ScheduleOptions{})
	require.NoError(t, err)
	require.Len(t, ech.Echeances, 12)

	first := ech.Echeances[0]
	assert.True(t, first.RCD.Equal(d("220")))
	assert.True(t, first.PJ.Equal(d("8.83")))
	assert.True(t, first.TotalHT.Equal(d("290.83")))
	assert.True(t, first.Taxe.Equal(d("26.56")))
	assert.True(t, first.TotalTTC.Equal(d("317.39")))

	last := ech.Echeances[11]
	assert.True(t, last.PJ.Equal(d("8.87")))
	assert.True(t, last.Taxe.Equal(d("26.60")))
	assert.True(t, last.TotalTTC.Equal(d("317.47")))

	ht, taxe, ttc := Totals(ech)
	assert.True(t, ht.Equal(d("3490")), "ht %s", ht)
	assert.True(t, taxe.Equal(d("318.76")), "taxe %s", taxe)
	assert.True(t, ttc.Equal(d("3808.76")), "ttc %s", ttc)

	for i, e := range ech.Echeances {
		assert.Equal(t, i+1, e.Numero)
		assert.True(t, e.TotalHT.Equal(e.RCD.Add(e.PJ).Add(e.Frais).Add(e.Reprise)))
		assert.True(t, e.TotalTTC.Equal(e.TotalHT.Add(e.Taxe)))
		if i > 0 {
			assert.Equal(t, ech.Echeances[i-1].FinPeriode, e.DebutPeriode)
		}
	}
	assert.Equal(t, date(2024, 2, 29), ech.Echeances[1].DebutPeriode)
	assert.Equal(t, date(2024, 3, 31), ech.Echeances[2].DebutPeriode)
	assert.Equal(t, date(2025, 1, 31), last.FinPeriode)
}

func TestBuildEcheancierPeriodicities(t *testing.T) {
	tests := []struct {
		periodicity domain.Periodicity
		count       int
		secondStart time.Time
	}{
		{domain.PeriodicityAnnual, 1, time.Time{}},
		{domain.PeriodicitySemiAnnual, 2, date(2024, 9, 1)},
		{domain.PeriodicityQuarterly, 4, date(2024, 6, 1)},
		{domain.PeriodicityMonthly, 12, date(2024, 4, 1)},
	}

	for _, tt := range tests {
		t.Run(string(tt.periodicity), func(t *testing.T) {
			ech, err := BuildEcheancier(acceptedResult(), tt.periodicity, date(2024, 3, 1), domain.ScheduleOptions{DueOffsetDays: 5})
			require.NoError(t, err)
			require.Len(t, ech.Echeances, tt.count)
			assert.Equal(t, date(2024, 3, 6), ech.Echeances[0].Date)
			assert.Equal(t, date(2025, 3, 1), ech.Echeances[tt.count-1].FinPeriode)
			if tt.count > 1 {
				assert.Equal(t, tt.secondStart, ech.Echeances[1].DebutPeriode)
			}
			_, _, ttc := Totals(ech)
			assert.True(t, ttc.Equal(d("3808.76")))
		})
	}
}

func TestBuildEcheancierRejects(t *testing.T) {
	_, err := BuildEcheancier(domain.Refused("Territoire non couvert"), domain.PeriodicityAnnual, date(2024, 1, 1), domain.ScheduleOptions{})
	assert.True(t, errors.Is(err, customError.ErrCalculationRefused))

	_, err = BuildEcheancier(acceptedResult(), "hebdomadaire", date(2024, 1, 1), domain.ScheduleOptions{})
	assert.True(t, errors.Is(err, customError.ErrValidation))

	_, err = BuildEcheancier(acceptedResult(), domain.PeriodicityAnnual, time.Time{}, domain.ScheduleOptions{})
	assert.True(t, errors.Is(err, customError.ErrValidation))
}

func quarterlySchedule(t *testing.T) []*domain.PaymentInstallment {
	t.Helper()
	ech, err := BuildEcheancier(acceptedResult(), domain.PeriodicityQuarterly, date(2024, 1, 1), domain.ScheduleOptions{})
	require.NoError(t, err)
	return GenerateSchedule(uuid.New(), ech, date(2023, 12, 15))
}

func TestGenerateSchedule(t *testing.T) {
	installments := quarterlySchedule(t)
	require.Len(t, installments, 4)

	quoteID := installments[0].QuoteID
	for i, inst := range installments {
		assert.Equal(t, i+1, inst.InstallmentNumber)
		assert.Equal(t, quoteID, inst.QuoteID)
		assert.Equal(t, domain.InstallmentStatusPending, inst.Status)
		assert.Nil(t, inst.EmissionDate)
		assert.NotEqual(t, uuid.Nil, inst.ID)
	}
	totals := domain.TotalsOf(installments)
	assert.True(t, totals.AmountTTC.Equal(d("3808.76")))
	assert.True(t, CanRegenerate(installments))
}

func TestEmitFollowsInstallmentOrder(t *testing.T) {
	installments := quarterlySchedule(t)

	// the third installment cannot go before the first
	_, err := Emit(installments, installments[2].ID, date(2024, 1, 2))
	require.Error(t, err)
	assert.True(t, errors.Is(err, customError.ErrInstallmentOutOfOrder))
	assert.Nil(t, installments[2].EmissionDate)

	emitted, err := Emit(installments, installments[0].ID, date(2024, 1, 2))
	require.NoError(t, err)
	require.NotNil(t, emitted.EmissionDate)
	assert.Equal(t, date(2024, 1, 2), *emitted.EmissionDate)
	assert.False(t, CanRegenerate(installments))

	_, err = Emit(installments, installments[0].ID, date(2024, 1, 3))
	assert.True(t, errors.Is(err, customError.ErrInstallmentEmitted))

	assert.Equal(t, installments[1].ID, NextUnvalidated(installments).ID)

	// a cancelled installment is skipped by the ordering
	require.NoError(t, Cancel(installments[1], date(2024, 3, 1)))
	assert.Equal(t, installments[2].ID, NextUnvalidated(installments).ID)
	_, err = Emit(installments, installments[2].ID, date(2024, 4, 1))
	assert.NoError(t, err)
}

func TestPayRequiresEmission(t *testing.T) {
	installments := quarterlySchedule(t)
	first := installments[0]

	err := Pay(first, "virement", date(2024, 1, 10))
	assert.True(t, errors.Is(err, customError.ErrInstallmentNotEmitted))

	_, err = Emit(installments, first.ID, date(2024, 1, 2))
	require.NoError(t, err)

	err = Pay(first, "  ", date(2024, 1, 10))
	assert.True(t, errors.Is(err, customError.ErrValidation))

	require.NoError(t, Pay(first, " virement ", date(2024, 1, 10)))
	assert.Equal(t, domain.InstallmentStatusPaid, first.Status)
	require.NotNil(t, first.PaymentMethod)
	assert.Equal(t, "virement", *first.PaymentMethod)

	err = Pay(first, "cheque", date(2024, 1, 11))
	assert.True(t, errors.Is(err, customError.ErrInstallmentSettled))
	assert.True(t, errors.Is(Cancel(first, date(2024, 1, 12)), customError.ErrInstallmentSettled))
}

func TestMarkOverdue(t *testing.T) {
	installments := quarterlySchedule(t)
	_, err := Emit(installments, installments[0].ID, date(2023, 12, 20))
	require.NoError(t, err)

	// due on the day itself is not overdue yet
	assert.Empty(t, MarkOverdue(installments, time.Date(2024, 1, 1, 18, 0, 0, 0, time.UTC)))

	changed := MarkOverdue(installments, date(2024, 1, 2))
	require.Len(t, changed, 1)
	assert.Equal(t, installments[0].ID, changed[0].ID)
	assert.Equal(t, domain.InstallmentStatusOverdue, installments[0].Status)
	// still pending emission
	assert.Equal(t, domain.InstallmentStatusPending, installments[1].Status)

	// an overdue installment can still be paid
	assert.NoError(t, Pay(installments[0], "prelevement", date(2024, 1, 15)))
}

func TestApplyPatch(t *testing.T) {
	installments := quarterlySchedule(t)
	inst := installments[1]

	newDue := date(2024, 4, 10)
	amount := d("1000")
	require.NoError(t, ApplyPatch(inst, domain.InstallmentPatch{DueDate: &newDue, AmountTTC: &amount}, date(2024, 2, 1)))
	assert.Equal(t, newDue, inst.DueDate)
	assert.True(t, inst.AmountTTC.Equal(amount))
	assert.Equal(t, date(2024, 2, 1), inst.UpdatedAt)

	badEnd := date(2024, 1, 1)
	before := *inst
	err := ApplyPatch(inst, domain.InstallmentPatch{PeriodEnd: &badEnd, AmountHT: &amount}, date(2024, 2, 2))
	assert.True(t, errors.Is(err, customError.ErrValidation))
	assert.Equal(t, before, *inst)

	inst.Status = domain.InstallmentStatusCancelled
	err = ApplyPatch(inst, domain.InstallmentPatch{DueDate: &newDue}, date(2024, 2, 3))
	assert.True(t, errors.Is(err, customError.ErrInstallmentSettled))
}

func TestApplyBulkPatchIsAllOrNothing(t *testing.T) {
	installments := quarterlySchedule(t)
	amount := d("500")
	originalFirst := installments[0].AmountHT

	_, err := ApplyBulkPatch(installments, []domain.InstallmentEdit{
		{ID: installments[0].ID, Patch: domain.InstallmentPatch{AmountHT: &amount}},
		{ID: uuid.New(), Patch: domain.InstallmentPatch{AmountHT: &amount}},
	}, date(2024, 2, 1))
	assert.True(t, errors.Is(err, customError.ErrInstallmentNotFound))
	assert.True(t, installments[0].AmountHT.Equal(originalFirst))

	_, err = ApplyBulkPatch(installments, []domain.InstallmentEdit{
		{ID: installments[0].ID, Patch: domain.InstallmentPatch{AmountHT: &amount}},
		{ID: installments[0].ID, Patch: domain.InstallmentPatch{AmountHT: &amount}},
	}, date(2024, 2, 1))
	assert.True(t, errors.Is(err, customError.ErrValidation))

	changed, err := ApplyBulkPatch(installments, []domain.InstallmentEdit{
		{ID: installments[0].ID, Patch: domain.InstallmentPatch{AmountHT: &amount}},
		{ID: installments[3].ID, Patch: domain.InstallmentPatch{AmountHT: &amount}},
	}, date(2024, 2, 1))
	require.NoError(t, err)
	assert.Len(t, changed, 2)
	assert.True(t, installments[0].AmountHT.Equal(amount))
	assert.True(t, installments[3].AmountHT.Equal(amount))
}

func TestAddInstallmentRenumbers(t *testing.T) {
	installments := quarterlySchedule(t)
	quoteID := installments[0].QuoteID

	all, added, err := AddInstallment(installments, quoteID, domain.NewInstallment{
		DueDate:     date(2024, 2, 15),
		PeriodStart: date(2024, 2, 15),
		PeriodEnd:   date(2024, 4, 1),
		AmountHT:    d("50"),
		AmountTTC:   d("54.50"),
		TaxAmount:   d("4.50"),
	}, date(2024, 1, 20))
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, 2, added.InstallmentNumber)
	for i, inst := range all {
		assert.Equal(t, i+1, inst.InstallmentNumber)
	}
	assert.Equal(t, date(2024, 4, 1), all[2].PeriodStart)

	// cannot slot an installment ahead of an emitted one
	_, err = Emit(all, all[0].ID, date(2024, 1, 2))
	require.NoError(t, err)
	_, _, err = AddInstallment(all, quoteID, domain.NewInstallment{
		DueDate: date(2023, 12, 1), PeriodStart: date(2023, 12, 1), PeriodEnd: date(2024, 1, 1),
	}, date(2024, 1, 20))
	assert.True(t, errors.Is(err, customError.ErrValidation))
}

func TestRemoveInstallments(t *testing.T) {
	installments := quarterlySchedule(t)

	remaining, removed, err := RemoveInstallments(installments, []uuid.UUID{installments[1].ID}, date(2024, 1, 20))
	require.NoError(t, err)
	require.Len(t, remaining, 3)
	require.Len(t, removed, 1)
	for i, inst := range remaining {
		assert.Equal(t, i+1, inst.InstallmentNumber)
	}

	ids := make([]uuid.UUID, 0, len(remaining))
	for _, inst := range remaining {
		ids = append(ids, inst.ID)
	}
	_, _, err = RemoveInstallments(remaining, ids, date(2024, 1, 21))
	assert.True(t, errors.Is(err, customError.ErrLastInstallment))

	_, err = Emit(remaining, remaining[0].ID, date(2024, 1, 2))
	require.NoError(t, err)
	_, _, err = RemoveInstallments(remaining, []uuid.UUID{remaining[0].ID}, date(2024, 1, 21))
	assert.True(t, errors.Is(err, customError.ErrInstallmentEmitted))

	_, _, err = RemoveInstallments(remaining, []uuid.UUID{uuid.New()}, date(2024, 1, 21))
	assert.True(t, errors.Is(err, customError.ErrInstallmentNotFound))
}

func TestNarrowToEcheance(t *testing.T) {
	result := acceptedResult()
	ech, err := BuildEcheancier(result, domain.PeriodicityMonthly, date(2024, 1, 1), domain.ScheduleOptions{})
	require.NoError(t, err)
	result.Echeancier = ech

	narrowed, err := NarrowToEcheance(result, 12)
	require.NoError(t, err)
	assert.True(t, narrowed.PrimeTotal.Equal(d("290.87")))
	assert.True(t, narrowed.TotalTTC.Equal(d("317.47")))
	assert.True(t, narrowed.Autres.TaxeAssurance.Equal(d("26.60")))
	require.Len(t, narrowed.Echeancier.Echeances, 1)
	assert.Equal(t, 12, narrowed.Echeancier.Echeances[0].Numero)

	// the source result is untouched
	assert.True(t, result.TotalTTC.Equal(d("3808.76")))
	assert.Len(t, result.Echeancier.Echeances, 12)

	_, err = NarrowToEcheance(result, 13)
	assert.True(t, errors.Is(err, customError.ErrInstallmentNotFound))
	_, err = NarrowToEcheance(domain.Refused("x"), 1)
	assert.True(t, errors.Is(err, customError.ErrCalculationRefused))
}

func TestNarrowToEcheance_DropsAnnualBreakdowns(t *testing.T) {
	result := acceptedResult()
	result.Activites = []domain.ActivityPremium{{Code: "1", CASharePercent: d("100"), Premium: d("2640")}}
	result.Majorations = []domain.AppliedAdjustment{{Name: "defaillant", Amount: d("120")}}
	ech, err := BuildEcheancier(result, domain.PeriodicityMonthly, date(2024, 1, 1), domain.ScheduleOptions{})
	require.NoError(t, err)
	result.Echeancier = ech

	narrowed, err := NarrowToEcheance(result, 3)
	require.NoError(t, err)

	assert.True(t, narrowed.PrimeRCD.Equal(d("220")))
	assert.True(t, narrowed.TotalTTC.Equal(d("317.39")))
	assert.Empty(t, narrowed.Activites)
	assert.Empty(t, narrowed.Majorations)
	assert.True(t, narrowed.Autres.FraisGestion.IsZero())
	assert.True(t, narrowed.Autres.TaxeRCD.IsZero())
	assert.True(t, narrowed.Autres.Frais.Equal(narrowed.Echeancier.Echeances[0].Frais))
	assert.True(t, narrowed.CACalculee.Equal(d("200000")))

	// the annual result keeps its breakdowns
	assert.Len(t, result.Activites, 1)
	assert.True(t, result.Majorations[0].Amount.Equal(d("120")))
}

func TestNarrowToInstallmentUsesEditedValues(t *testing.T) {
	installments := quarterlySchedule(t)
	amount := d("999.99")
	require.NoError(t, ApplyPatch(installments[0], domain.InstallmentPatch{AmountTTC: &amount}, date(2024, 1, 1)))

	narrowed, err := NarrowToInstallment(acceptedResult(), installments[0])
	require.NoError(t, err)
	assert.True(t, narrowed.TotalTTC.Equal(amount))
	assert.Equal(t, 1, narrowed.Echeancier.Echeances[0].Numero)
}
