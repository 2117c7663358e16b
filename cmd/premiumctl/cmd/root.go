// Package cmd provides the premiumctl commands. They price quotes read from
// JSON files against a tariff table without touching the database.
package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/segyhp/premium-engine/internal/app"
	"github.com/segyhp/premium-engine/internal/config"
	"github.com/segyhp/premium-engine/internal/domain"
	"github.com/segyhp/premium-engine/internal/engine"
	"github.com/segyhp/premium-engine/internal/logging"
	"github.com/segyhp/premium-engine/internal/tariff"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	productFile string
	quoteFile   string
	tariffFile  string
	verbose     bool

	cfg    *config.Config
	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "premiumctl",
	Short: "Price insurance quotes and build their installment schedules",
	Long: `premiumctl runs the premium engine on a product and a quote stored as JSON.

Business defaults come from the same environment variables as the server.

Examples:
  premiumctl calculate --product product.json --quote quote.json
  premiumctl recalculate --product product.json --quote quote.json --set periodicite=mensuel
  premiumctl schedule --product product.json --quote quote.json --set dateEffet=2024-04-01
  premiumctl export --product product.json --quote quote.json --out echeancier.xlsx
  premiumctl tariff lookup 12 --tariff tariff.hcl`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if tariffFile != "" {
			loaded.Business.TariffFile = tariffFile
		}
		cfg = loaded

		logCfg := cfg.Logging
		logCfg.Output = "stderr"
		logCfg.Format = "console"
		if verbose {
			logCfg.Level = "debug"
		}
		if logger, err = logging.New(logCfg, false); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		return nil
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&tariffFile, "tariff", "", "HCL tariff table (default is the embedded table or BUSINESS_TARIFF_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(calculateCmd)
	rootCmd.AddCommand(recalculateCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(tariffCmd)
}

// addInputFlags registers the product and quote files on commands that price a quote.
func addInputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&productFile, "product", "p", "", "product configuration JSON file")
	cmd.Flags().StringVarP(&quoteFile, "quote", "q", "", "quote JSON file")
	_ = cmd.MarkFlagRequired("product")
	_ = cmd.MarkFlagRequired("quote")
}

func loadEngine() (*engine.Engine, *tariff.Table, error) {
	eng, table, err := app.NewEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("tariff loaded", logging.TariffVersion(table.Version()), zap.String("hash", table.Hash()))
	return eng, table, nil
}

func loadInputs() (*domain.Product, *domain.Quote, error) {
	var product domain.Product
	if err := decodeFile(productFile, &product); err != nil {
		return nil, nil, fmt.Errorf("failed to read product: %w", err)
	}
	var quote domain.Quote
	if err := decodeFile(quoteFile, &quote); err != nil {
		return nil, nil, fmt.Errorf("failed to read quote: %w", err)
	}
	if quote.ProductID == uuid.Nil {
		quote.ProductID = product.ID
	}
	return &product, &quote, nil
}

// decodeFile keeps numbers as json.Number so amounts are never rounded through float64.
func decodeFile(path string, dst interface{}) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	decoder := json.NewDecoder(bytes.NewReader(src))
	decoder.UseNumber()
	return decoder.Decode(dst)
}

// parseOverrides turns key=value pairs into overrides. Values that parse as
// JSON keep their JSON type; anything else is a plain string.
func parseOverrides(pairs []string) (map[string]interface{}, error) {
	overrides := make(map[string]interface{}, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("override %q must be key=value", pair)
		}

		var value interface{}
		decoder := json.NewDecoder(strings.NewReader(raw))
		decoder.UseNumber()
		// "2024-04-01" starts with a valid number, so trailing input means a string
		if err := decoder.Decode(&value); err != nil || decoder.Decode(new(interface{})) != io.EOF {
			value = raw
		}
		overrides[key] = value
	}
	return overrides, nil
}

func printJSON(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
