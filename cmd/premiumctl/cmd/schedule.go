package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/export"
	"github.com/segyhp/premium-engine/internal/schedule"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var outputFile string

// scheduleCmd prints the installments a quote would produce
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Build the installment schedule of a quote",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		response, _, err := buildSchedule()
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), response)
	},
}

// exportCmd writes the schedule as a spreadsheet
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the installment schedule of a quote to XLSX",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		response, quote, err := buildSchedule()
		if err != nil {
			return err
		}

		path := outputFile
		if path == "" {
			path = export.FileName(quote.Reference)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create %s: %w", path, err)
		}
		defer f.Close()

		if err := export.WriteSchedule(f, response.Installments); err != nil {
			return err
		}
		logger.Info("schedule exported", zap.String("path", path), zap.Int("installments", len(response.Installments)))
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&outputFile, "out", "o", "", "output file (default echeancier_<reference>.xlsx)")
}

func buildSchedule() (*domain.ScheduleResponse, *domain.Quote, error) {
	overrides, err := parseOverrides(overridePairs)
	if err != nil {
		return nil, nil, err
	}
	result, quote, err := price(overrides)
	if err != nil {
		return nil, nil, err
	}
	if result.Refus {
		return nil, nil, fmt.Errorf("calculation refused: %s", result.RefusReason)
	}
	if result.Echeancier == nil {
		return nil, nil, fmt.Errorf("the quote has no effective date, pass --set %s=YYYY-MM-DD", domain.ParamEffectiveDate)
	}

	installments := schedule.GenerateSchedule(quote.ID, result.Echeancier, time.Now())
	return &domain.ScheduleResponse{
		QuoteID:      quote.ID,
		Installments: installments,
		Totals:       domain.TotalsOf(installments),
	}, quote, nil
}
