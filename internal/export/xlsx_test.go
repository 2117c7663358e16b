package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/schedule"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func quarterly(t *testing.T) []*domain.PaymentInstallment {
	t.Helper()
	result := &domain.CalculationResult{Premium: &domain.Premium{
		PrimeTotal: decimal.RequireFromString("3490"),
		TotalTTC:   decimal.RequireFromString("3808.76"),
		Autres: domain.Autres{
			RCD:           decimal.RequireFromString("2640"),
			PJ:            decimal.RequireFromString("106"),
			Frais:         decimal.RequireFromString("744"),
			TaxeAssurance: decimal.RequireFromString("318.76"),
		},
	}}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ech, err := schedule.BuildEcheancier(result, domain.PeriodicityQuarterly, start, domain.ScheduleOptions{})
	require.NoError(t, err)
	return schedule.GenerateSchedule(uuid.New(), ech, start)
}

func TestWriteSchedule(t *testing.T) {
	installments := quarterly(t)
	emitted := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	method := "virement"
	installments[0].EmissionDate = &emitted
	installments[0].PaidAt = &emitted
	installments[0].PaymentMethod = &method
	installments[0].Status = domain.InstallmentStatusPaid

	var buf bytes.Buffer
	require.NoError(t, WriteSchedule(&buf, installments))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 6)

	assert.Equal(t, headers, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "01/01/2024", rows[1][1])
	assert.Equal(t, "PAID", rows[1][11])
	assert.Equal(t, "02/01/2024", rows[1][12])
	assert.Equal(t, "virement", rows[1][14])
	assert.Equal(t, "01/10/2024", rows[4][2])

	assert.Equal(t, "Total", rows[5][0])
	ttc, err := f.GetCellValue(SheetName, "K6", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "3808.76", ttc)
	ht, err := f.GetCellValue(SheetName, "I6", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "3490", ht)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "echeancier_DEV-2024-0001.xlsx", FileName("DEV-2024-0001"))
	assert.Equal(t, "echeancier_devis.xlsx", FileName(""))
}
