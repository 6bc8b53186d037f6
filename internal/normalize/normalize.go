// Package normalize derives canonical scoring requests from raw dashboard
// transactions.
package normalize

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/sells-group/risk-alerts/internal/model"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

// Defaults fills request fields the raw record does not carry.
type Defaults struct {
	CustomerID string  `yaml:"customer_id" mapstructure:"customer_id"`
	AccountID  string  `yaml:"account_id" mapstructure:"account_id"`
	Currency   string  `yaml:"currency" mapstructure:"currency"`
	Lat        float64 `yaml:"lat" mapstructure:"lat"`
	Lon        float64 `yaml:"lon" mapstructure:"lon"`
}

// DefaultDefaults mirrors the demo profile the dashboard ships with.
func DefaultDefaults() Defaults {
	return Defaults{
		CustomerID: "cust_demo_1",
		AccountID:  "acc_001",
		Currency:   "USD",
		Lat:        DefaultLat,
		Lon:        DefaultLon,
	}
}

// Normalizer turns RawTransactions into scoring requests.
type Normalizer struct {
	defaults      Defaults
	reference     *geom.Point
	merchantRules []MerchantRule
	channelRules  []ChannelRule
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithMerchantRules replaces DefaultMerchantRules.
func WithMerchantRules(rules []MerchantRule) Option {
	return func(n *Normalizer) { n.merchantRules = rules }
}

// WithChannelRules replaces DefaultChannelRules.
func WithChannelRules(rules []ChannelRule) Option {
	return func(n *Normalizer) { n.channelRules = rules }
}

// WithReferencePoint sets the coordinates used when a transaction has none,
// overriding Defaults.Lat and Defaults.Lon. Unlike Defaults, (0,0) is taken
// as given.
func WithReferencePoint(lat, lon float64) Option {
	return func(n *Normalizer) {
		n.defaults.Lat, n.defaults.Lon = lat, lon
		n.reference = NewPoint(lat, lon)
	}
}

// New creates a Normalizer. Empty default fields fall back to DefaultDefaults;
// a (0,0) reference point counts as unset, so pass WithReferencePoint to use
// it literally.
func New(d Defaults, opts ...Option) *Normalizer {
	base := DefaultDefaults()
	if d.CustomerID == "" {
		d.CustomerID = base.CustomerID
	}
	if d.AccountID == "" {
		d.AccountID = base.AccountID
	}
	if d.Currency == "" {
		d.Currency = base.Currency
	}
	if d.Lat == 0 && d.Lon == 0 {
		d.Lat, d.Lon = base.Lat, base.Lon
	}

	n := &Normalizer{
		defaults:      d,
		reference:     NewPoint(d.Lat, d.Lon),
		merchantRules: DefaultMerchantRules,
		channelRules:  DefaultChannelRules,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Defaults returns the effective defaults.
func (n *Normalizer) Defaults() Defaults {
	return n.defaults
}

// Normalize builds a scoring request for tx. Only a malformed date or time
// fails it, with a *NormalizationError.
func (n *Normalizer) Normalize(tx model.RawTransaction) (scoring.Request, error) {
	ts, err := ParseLocalDateTime(tx.Date, tx.Time)
	if err != nil {
		return scoring.Request{}, err
	}

	p := ResolveCoordinates(tx, n.reference)

	accountID := strings.TrimSpace(tx.AccountID)
	if accountID == "" {
		accountID = n.defaults.AccountID
	}
	currency := strings.ToUpper(strings.TrimSpace(tx.Currency))
	if currency == "" {
		currency = n.defaults.Currency
	}

	return scoring.Request{
		CustomerID: n.defaults.CustomerID,
		AccountID:  accountID,
		Amount:     tx.Amount.InexactFloat64(),
		Currency:   currency,
		MerchantID: MerchantIDWithRules(tx.Merchant, n.merchantRules),
		Lat:        p.Y(),
		Lon:        p.X(),
		Timestamp:  ts,
		Channel:    ChannelWithRules(tx, n.channelRules),
	}, nil
}

// NormalizeBatch normalizes txs in order and stops at the first failure.
func (n *Normalizer) NormalizeBatch(txs []model.RawTransaction) ([]scoring.Request, error) {
	out := make([]scoring.Request, 0, len(txs))
	for i, tx := range txs {
		req, err := n.Normalize(tx)
		if err != nil {
			return nil, eris.Wrapf(err, "normalize: transaction %d (%s)", i, tx.ID)
		}
		out = append(out, req)
	}
	return out, nil
}
