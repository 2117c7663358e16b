// Package export renders a payment schedule as an XLSX workbook for
// back-office reconciliation.
package export

import (
	"fmt"
	"io"

	"github.com/segyhp/premium-engine/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName   = "Echeancier"
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	dateLayout  = "02/01/2006"
)

var headers = []string{
	"N°", "Échéance", "Début période", "Fin période",
	"RCD", "PJ", "Frais", "Reprise", "Total HT", "Taxe", "Total TTC",
	"Statut", "Émission", "Paiement", "Moyen de paiement",
}

// FileName returns the attachment name used for a quote's schedule.
func FileName(reference string) string {
	if reference == "" {
		reference = "devis"
	}
	return fmt.Sprintf("echeancier_%s.xlsx", reference)
}

// Schedule builds the workbook: one row per installment followed by a totals row.
func Schedule(installments []*domain.PaymentInstallment) (*excelize.File, error) {
	f := excelize.NewFile()
	index, err := f.NewSheet(SheetName)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}

	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(SheetName, cell, header); err != nil {
			return nil, err
		}
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return nil, err
	}

	for i, inst := range installments {
		row := i + 2
		values := []interface{}{
			inst.InstallmentNumber,
			inst.DueDate.Format(dateLayout),
			inst.PeriodStart.Format(dateLayout),
			inst.PeriodEnd.Format(dateLayout),
			amount(inst.RCDAmount),
			amount(inst.PJAmount),
			amount(inst.FeesAmount),
			amount(inst.ResumeAmount),
			amount(inst.AmountHT),
			amount(inst.TaxAmount),
			amount(inst.AmountTTC),
			string(inst.Status),
			emittedDate(inst),
			paidDate(inst),
			paymentMethod(inst),
		}
		if err := setRow(f, row, values); err != nil {
			return nil, err
		}
	}

	totals := domain.TotalsOf(installments)
	last := len(installments) + 2
	if err := setRow(f, last, []interface{}{
		"Total", "", "", "",
		sum(installments, func(i *domain.PaymentInstallment) decimal.Decimal { return i.RCDAmount }),
		sum(installments, func(i *domain.PaymentInstallment) decimal.Decimal { return i.PJAmount }),
		sum(installments, func(i *domain.PaymentInstallment) decimal.Decimal { return i.FeesAmount }),
		sum(installments, func(i *domain.PaymentInstallment) decimal.Decimal { return i.ResumeAmount }),
		amount(totals.AmountHT),
		amount(totals.TaxAmount),
		amount(totals.AmountTTC),
	}); err != nil {
		return nil, err
	}
	if err := f.SetRowStyle(SheetName, last, last, bold); err != nil {
		return nil, err
	}

	// E..K hold amounts
	if err := f.SetCellStyle(SheetName, "E2", fmt.Sprintf("K%d", last), money); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(SheetName, "B", "D", 14); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteSchedule writes the schedule workbook to w.
func WriteSchedule(w io.Writer, installments []*domain.PaymentInstallment) error {
	f, err := Schedule(installments)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(SheetName, cell, &values)
}

func amount(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func sum(installments []*domain.PaymentInstallment, field func(*domain.PaymentInstallment) decimal.Decimal) float64 {
	total := decimal.Zero
	for _, i := range installments {
		total = total.Add(field(i))
	}
	return amount(total)
}

func emittedDate(inst *domain.PaymentInstallment) string {
	if inst.EmissionDate == nil {
		return ""
	}
	return inst.EmissionDate.Format(dateLayout)
}

func paidDate(inst *domain.PaymentInstallment) string {
	if inst.PaidAt == nil {
		return ""
	}
	return inst.PaidAt.Format(dateLayout)
}

func paymentMethod(inst *domain.PaymentInstallment) string {
	if inst.PaymentMethod == nil {
		return ""
	}
	return *inst.PaymentMethod
}
