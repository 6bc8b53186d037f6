// Package txsource loads raw dashboard transactions from files or the
// embedded demo dataset.
package txsource

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/csv"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx/v2"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/risk-alerts/internal/fetcher"
	"github.com/sells-group/risk-alerts/internal/model"
)

//go:embed sample.yaml
var sampleYAML []byte

// SampleName selects the embedded dataset in Load.
const SampleName = "sample"

// Sample returns the ten embedded dashboard transactions.
func Sample() ([]model.RawTransaction, error) {
	return decodeYAML(bytes.NewReader(sampleYAML))
}

// Load reads transactions from path, choosing the format by extension:
// .yaml, .yml and .json are decoded as documents; .csv and .xlsx are tables
// whose first row names the columns. Passing SampleName returns Sample().
func Load(path string) ([]model.RawTransaction, error) {
	if path == SampleName {
		return Sample()
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "txsource: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		txs, err := decodeYAML(f)
		return txs, eris.Wrapf(err, "txsource: decode %s", path)
	case ".csv":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "txsource: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		rows, err := readCSV(f)
		if err != nil {
			return nil, eris.Wrapf(err, "txsource: read %s", path)
		}
		txs, err := fromRows(rows)
		return txs, eris.Wrapf(err, "txsource: parse %s", path)
	case ".xlsx":
		rows, err := readXLSX(path)
		if err != nil {
			return nil, err
		}
		txs, err := fromRows(rows)
		return txs, eris.Wrapf(err, "txsource: parse %s", path)
	default:
		return nil, eris.Errorf("txsource: unsupported file type %q", ext)
	}
}

// LoadContext is Load that also accepts http(s):// and ftp:// URLs. Remote
// files are downloaded to a temporary file and parsed by the URL path's
// extension.
func LoadContext(ctx context.Context, src string, opts fetcher.Options) ([]model.RawTransaction, error) {
	if !fetcher.IsRemote(src) {
		return Load(src)
	}

	u, err := url.Parse(src)
	if err != nil {
		return nil, eris.Wrap(err, "txsource: parse url")
	}
	ext := strings.ToLower(filepath.Ext(u.Path))
	switch ext {
	case ".yaml", ".yml", ".json", ".csv", ".xlsx":
	default:
		return nil, eris.Errorf("txsource: unsupported file type %q", ext)
	}

	f, err := fetcher.ForURL(src, opts)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "risk-alerts-tx-")
	if err != nil {
		return nil, eris.Wrap(err, "txsource: temp dir")
	}
	defer os.RemoveAll(dir) //nolint:errcheck

	path := filepath.Join(dir, "transactions"+ext)
	if _, err := fetcher.DownloadToFile(ctx, f, src, path); err != nil {
		return nil, eris.Wrap(err, "txsource")
	}
	return Load(path)
}

// decodeYAML accepts a list of transactions or a {transactions: [...]}
// document. JSON is a subset of YAML, so the same decoder serves both.
func decodeYAML(r io.Reader) ([]model.RawTransaction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var list []model.RawTransaction
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}

	var doc struct {
		Transactions []model.RawTransaction `yaml:"transactions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Transactions, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	return reader.ReadAll()
}

func readXLSX(path string) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "txsource: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("txsource: %s has no sheets", path)
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

var requiredColumns = []string{"id", "merchant", "amount", "date", "time"}

// fromRows maps a header row plus data rows to transactions. Reasons are
// written as "title|description|severity" entries separated by ";".
func fromRows(rows [][]string) ([]model.RawTransaction, error) {
	if len(rows) == 0 {
		return nil, eris.New("missing header row")
	}

	cols := make(map[string]int, len(rows[0]))
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, eris.Errorf("missing column %q", c)
		}
	}

	var out []model.RawTransaction
	for n, row := range rows[1:] {
		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if isBlank(row) {
			continue
		}
		line := n + 2

		amount, err := decimal.NewFromString(get("amount"))
		if err != nil {
			return nil, eris.Wrapf(err, "row %d: amount", line)
		}

		tx := model.RawTransaction{
			ID:        get("id"),
			Merchant:  get("merchant"),
			Amount:    amount,
			Currency:  get("currency"),
			Date:      get("date"),
			Time:      get("time"),
			Category:  get("category"),
			Location:  get("location"),
			AccountID: get("account_id"),
			RiskLevel: model.RiskLevel(strings.ToLower(get("risk_level"))),
		}

		tx.Coordinates, err = parseCoordinates(get("lat"), get("lng"))
		if err != nil {
			return nil, eris.Wrapf(err, "row %d", line)
		}

		if s := get("is_recurring"); s != "" {
			rec, err := strconv.ParseBool(s)
			if err != nil {
				return nil, eris.Wrapf(err, "row %d: is_recurring", line)
			}
			tx.IsRecurring = rec
		}

		tx.RiskReasons = parseReasons(get("risk_reasons"))
		out = append(out, tx)
	}
	return out, nil
}

func parseCoordinates(lat, lng string) (*model.Coordinates, error) {
	if lat == "" && lng == "" {
		return nil, nil
	}
	c := &model.Coordinates{}
	if lat != "" {
		v, err := strconv.ParseFloat(lat, 64)
		if err != nil {
			return nil, eris.Wrap(err, "lat")
		}
		c.Lat = &v
	}
	if lng != "" {
		v, err := strconv.ParseFloat(lng, 64)
		if err != nil {
			return nil, eris.Wrap(err, "lng")
		}
		c.Lng = &v
	}
	return c, nil
}

func parseReasons(s string) []model.RiskReason {
	if s == "" {
		return nil
	}
	var out []model.RiskReason
	for _, entry := range strings.Split(s, ";") {
		parts := strings.Split(entry, "|")
		title := strings.TrimSpace(parts[0])
		if title == "" {
			continue
		}
		r := model.RiskReason{Title: title, Severity: model.SeverityMedium}
		if len(parts) > 1 {
			r.Description = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			if sev := model.Severity(strings.ToLower(strings.TrimSpace(parts[2]))); sev != "" {
				r.Severity = sev
			}
		}
		out = append(out, r)
	}
	return out
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
