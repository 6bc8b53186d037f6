package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/risk-alerts/internal/fetcher"
	"github.com/sells-group/risk-alerts/internal/model"
	"github.com/sells-group/risk-alerts/internal/txsource"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Print the scoring requests built from raw transactions",
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, _ := cmd.Flags().GetString("file")
		ids, _ := cmd.Flags().GetStringSlice("id")

		txs, err := loadTransactions(cmd.Context(), file, ids)
		if err != nil {
			return err
		}

		env, err := initEnv(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		reqs, err := env.Normalizer.NormalizeBatch(txs)
		if err != nil {
			return err
		}

		zap.L().Debug("normalized transactions", zap.Int("count", len(reqs)))
		return writeIndentedJSON(os.Stdout, reqs)
	},
}

func init() {
	addSourceFlags(normalizeCmd)
	rootCmd.AddCommand(normalizeCmd)
}

// addSourceFlags registers the flags that select input transactions.
func addSourceFlags(cmd *cobra.Command) {
	cmd.Flags().String("file", txsource.SampleName, `transactions file or http(s)/ftp URL (.yaml, .json, .csv, .xlsx), or "sample"`)
	cmd.Flags().StringSlice("id", nil, "only use transactions with these ids")
}

// loadTransactions reads path, a local file or an http(s)/ftp URL, and keeps
// the transactions named in ids in file order. An empty ids keeps everything.
func loadTransactions(ctx context.Context, path string, ids []string) ([]model.RawTransaction, error) {
	txs, err := txsource.LoadContext(ctx, path, fetcher.Options{})
	if err != nil {
		return nil, err
	}
	return filterByID(txs, ids), nil
}

func filterByID(txs []model.RawTransaction, ids []string) []model.RawTransaction {
	if len(ids) == 0 {
		return txs
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []model.RawTransaction
	for _, tx := range txs {
		if want[tx.ID] {
			out = append(out, tx)
		}
	}
	return out
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
