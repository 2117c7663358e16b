package cmd

import (
	"fmt"

	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var overridePairs []string

// calculateCmd prices a quote as stored
var calculateCmd = &cobra.Command{
	Use:   "calculate",
	Short: "Compute the premium of a quote",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, _, err := price(nil)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

// recalculateCmd previews a quote with overridden parameters
var recalculateCmd = &cobra.Command{
	Use:   "recalculate",
	Short: "Preview the premium of a quote with overridden parameters",
	Long: `Overrides are keyed by canonical parameter name (chiffreAffaires, periodicite,
dateEffet, ...). The quote file is not modified.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(overridePairs) == 0 {
			return fmt.Errorf("at least one --set key=value is required")
		}
		overrides, err := parseOverrides(overridePairs)
		if err != nil {
			return err
		}
		result, _, err := price(overrides)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	for _, c := range []*cobra.Command{calculateCmd, recalculateCmd, scheduleCmd, exportCmd} {
		addInputFlags(c)
		c.Flags().StringArrayVar(&overridePairs, "set", nil, "override a canonical parameter (key=value), repeatable")
	}
}

// price runs the engine on the input files, applying overrides when given.
func price(overrides map[string]interface{}) (*domain.CalculationResult, *domain.Quote, error) {
	eng, _, err := loadEngine()
	if err != nil {
		return nil, nil, err
	}
	product, quote, err := loadInputs()
	if err != nil {
		return nil, nil, err
	}

	var result *domain.CalculationResult
	if len(overrides) == 0 {
		result, err = eng.Calculate(quote, product)
	} else {
		result, err = eng.Recalculate(quote, overrides, product)
	}
	if err != nil {
		return nil, nil, err
	}

	logger.Debug("quote priced",
		logging.QuoteID(quote.ID),
		logging.Fingerprint(result.Fingerprint),
		zap.Bool("refused", result.Refus),
	)
	return result, quote, nil
}
