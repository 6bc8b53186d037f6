package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/risk-alerts/internal/store"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded view evaluations",
}

// -- history list --

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded evaluations, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		view, _ := cmd.Flags().GetString("view")
		tx, _ := cmd.Flags().GetString("transaction")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		evals, err := st.ListEvaluations(ctx, store.ListFilter{
			ViewID:        view,
			TransactionID: tx,
			Limit:         limit,
			Offset:        offset,
		})
		if err != nil {
			return eris.Wrap(err, "history list")
		}

		if len(evals) == 0 {
			fmt.Fprintln(os.Stderr, "No evaluations found.")
			return nil
		}

		formatEvaluations(os.Stdout, evals)
		return nil
	},
}

// -- history show --

var historyShowCmd = &cobra.Command{
	Use:   "show <evaluation-id>",
	Short: "Show one recorded evaluation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := requireStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		ev, err := st.GetEvaluation(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "history show")
		}
		return writeIndentedJSON(os.Stdout, ev)
	},
}

func init() {
	historyListCmd.Flags().String("view", "", "filter by view id")
	historyListCmd.Flags().String("transaction", "", "filter by transaction id")
	historyListCmd.Flags().Int("limit", 50, "max number of evaluations to display")
	historyListCmd.Flags().Int("offset", 0, "number of evaluations to skip")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

// formatEvaluations writes a tabular list of evaluations to out.
func formatEvaluations(out io.Writer, evals []store.Evaluation) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tVIEW\tTX\tMERCHANT_ID\tLEVEL\tLABEL\tTIER\tRISK\tCREATED")
	_, _ = fmt.Fprintln(w, "--\t----\t--\t-----------\t-----\t-----\t----\t----\t-------")

	for _, e := range evals {
		risk := "-"
		if e.Result != nil {
			risk = fmt.Sprintf("%.2f", e.Result.RiskScore)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(e.ID),
			e.ViewID,
			e.TransactionID,
			e.Request.MerchantID,
			e.Level,
			e.Label,
			e.TierSource,
			risk,
			e.CreatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
