package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/risk-alerts/internal/interpret"
	"github.com/sells-group/risk-alerts/internal/model"
	"github.com/sells-group/risk-alerts/internal/normalize"
	"github.com/sells-group/risk-alerts/internal/resilience"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score transactions in a single batch call",
	Long:  "Normalizes the selected transactions, sends them to the scoring service in one batch, and prints the gauge reading for each result.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, _ := cmd.Flags().GetString("file")
		ids, _ := cmd.Flags().GetStringSlice("id")
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

		rows, err := scoreTransactions(cmd.Context(), env.Client, env.Normalizer, env.Interpreter, retryPolicy(cfg.Scoring.Retries), txs)
		if err != nil {
			return err
		}

		if asJSON {
			return writeIndentedJSON(os.Stdout, rows)
		}
		formatScoreRows(os.Stdout, rows)
		return nil
	},
}

func init() {
	addSourceFlags(scoreCmd)
	scoreCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(scoreCmd)
}

// scoreRow pairs a transaction with its batch result. Result is nil when the
// service returned no slot for the transaction.
type scoreRow struct {
	TransactionID string                 `json:"transaction_id"`
	Merchant      string                 `json:"merchant"`
	Request       scoring.Request        `json:"request"`
	Result        *scoring.Result        `json:"result,omitempty"`
	Gauge         interpret.GaugeReading `json:"gauge"`
}

func scoreTransactions(ctx context.Context, client scoring.Client, n *normalize.Normalizer, in *interpret.Interpreter, retry resilience.RetryConfig, txs []model.RawTransaction) ([]scoreRow, error) {
	reqs, err := n.NormalizeBatch(txs)
	if err != nil {
		return nil, err
	}

	results, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]*scoring.Result, error) {
		return client.Score(ctx, reqs)
	})
	if err != nil {
		return nil, eris.Wrap(err, "score")
	}

	rows := make([]scoreRow, len(txs))
	missing := 0
	for i, tx := range txs {
		var res *scoring.Result
		if i < len(results) {
			res = results[i]
		}
		if res == nil {
			missing++
		}
		rows[i] = scoreRow{
			TransactionID: tx.ID,
			Merchant:      tx.Merchant,
			Request:       reqs[i],
			Result:        res,
			Gauge:         in.Gauge(res),
		}
	}
	if missing > 0 {
		zap.L().Warn("scoring service returned no result for some transactions", zap.Int("missing", missing))
	}
	return rows, nil
}

// formatScoreRows writes a tabular view of rows to out.
func formatScoreRows(out io.Writer, rows []scoreRow) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMERCHANT_ID\tCHANNEL\tRISK\tCOLOR\tGAUGE\tREASONS")
	_, _ = fmt.Fprintln(w, "--\t-----------\t-------\t----\t-----\t-----\t-------")

	for _, r := range rows {
		risk := "-"
		if r.Result != nil {
			risk = fmt.Sprintf("%.2f", r.Result.RiskScore)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.TransactionID,
			r.Request.MerchantID,
			r.Request.Channel,
			risk,
			r.Gauge.Color,
			r.Gauge.Label,
			strings.Join(r.Gauge.Reasons, "; "),
		)
	}
	_ = w.Flush()
}
