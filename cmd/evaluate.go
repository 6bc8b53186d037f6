package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/risk-alerts/internal/evaluate"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Evaluate transactions one at a time as a detail view would",
	Long:  "Runs each selected transaction through the view evaluator: normalize, score, and reconcile with the local tier. Failures fall back to the local tier.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, _ := cmd.Flags().GetString("file")
		ids, _ := cmd.Flags().GetStringSlice("id")
		viewID, _ := cmd.Flags().GetString("view")
		asJSON, _ := cmd.Flags().GetBool("json")

		txs, err := loadTransactions(cmd.Context(), file, ids)
		if err != nil {
			return err
		}
		if len(txs) == 0 {
			fmt.Fprintln(os.Stderr, "No transactions selected.")
			return nil
		}

		env, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		views := evaluate.NewRegistry()
		v := views.Open(viewID)
		defer views.Close(viewID)

		snaps := make([]evaluate.Snapshot, 0, len(txs))
		for _, tx := range txs {
			env.Evaluator.Evaluate(cmd.Context(), v, tx)
			snaps = append(snaps, v.Snapshot())
		}

		if asJSON {
			return writeIndentedJSON(os.Stdout, snaps)
		}
		formatSnapshots(os.Stdout, snaps)
		return nil
	},
}

func init() {
	addSourceFlags(evaluateCmd)
	evaluateCmd.Flags().String("view", "cli", "view id recorded with each evaluation")
	evaluateCmd.Flags().Bool("json", false, "print view snapshots as JSON")
	rootCmd.AddCommand(evaluateCmd)
}

// formatSnapshots writes one line per evaluated transaction to out.
func formatSnapshots(out io.Writer, snaps []evaluate.Snapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATE\tLEVEL\tLABEL\tTIER\tREASONS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t-----\t-----\t-----\t----\t-------\t-----")

	for _, s := range snaps {
		var level, label, tier, reasons string
		if p := s.Presentation; p != nil {
			level = string(p.Level)
			label = p.Label
			tier = string(p.TierSource)
			reasons = fmt.Sprintf("%d (%s)", len(p.Reasons), p.ReasonSource)
		}
		errMsg := s.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.TransactionID, s.State, level, label, tier, reasons, errMsg)
	}
	_ = w.Flush()
}
