package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/segyhp/premium-engine/internal/tariff"
	customError "github.com/segyhp/premium-engine/pkg/errors"

	"github.com/spf13/cobra"
)

// tariffCmd groups tariff table commands
var tariffCmd = &cobra.Command{
	Use:   "tariff",
	Short: "Inspect tariff tables",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var tariffLookupCmd = &cobra.Command{
	Use:   "lookup <code>",
	Short: "Show the rate and insurability of an activity code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := tariff.Load(cfg.Business.TariffFile)
		if err != nil {
			return err
		}
		activity, ok := table.Lookup(args[0])
		if !ok {
			return customError.WrapActivityNotFound(args[0])
		}
		return printJSON(cmd.OutOrStdout(), activity)
	},
}

var tariffListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every activity of the tariff table",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		table, err := tariff.Load(cfg.Business.TariffFile)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintf(w, "CODE\tRATE\tINSURABLE\tLABEL\n")
		for _, a := range table.Activities() {
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\n", a.Code, a.Rate.String(), a.Insurable, a.Label)
		}
		return w.Flush()
	},
}

// tariffValidateCmd parses a table and reports its version and content hash
var tariffValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Parse a tariff table and print its version and hash",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Business.TariffFile
		if len(args) > 0 {
			path = args[0]
		}
		table, err := tariff.Load(path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "version %s (%s), %d activities, sha256 %s\n",
			table.Version(), table.Currency(), len(table.Activities()), table.Hash())
		return nil
	},
}

func init() {
	tariffCmd.AddCommand(tariffLookupCmd)
	tariffCmd.AddCommand(tariffListCmd)
	tariffCmd.AddCommand(tariffValidateCmd)
}
