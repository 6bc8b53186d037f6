package normalize

import (
	"strings"

	"github.com/sells-group/risk-alerts/internal/model"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

// ChannelRule classifies a transaction by its lower-cased merchant and
// category text.
type ChannelRule struct {
	Name    string
	Match   func(merchant, category string) bool
	Channel scoring.Channel
}

// DefaultChannelRules is evaluated in order; the first match wins. Merchant
// based online detection must stay ahead of the category rules.
var DefaultChannelRules = []ChannelRule{
	{
		Name:    "online_merchant",
		Match:   onMerchant(containsAny("aliexpress", "amazon", "netflix", "spotify")),
		Channel: scoring.ChannelOnline,
	},
	{
		Name:    "atm_category",
		Match:   onCategory(containsAny("atm")),
		Channel: scoring.ChannelATM,
	},
	{
		Name:    "present_category",
		Match:   onCategory(containsAny("alimentos", "transporte", "conveniencia", "compras")),
		Channel: scoring.ChannelPresent,
	},
}

// InferChannel classifies tx using DefaultChannelRules.
func InferChannel(tx model.RawTransaction) scoring.Channel {
	return ChannelWithRules(tx, DefaultChannelRules)
}

// ChannelWithRules applies rules in order; no match yields ChannelUnknown.
func ChannelWithRules(tx model.RawTransaction, rules []ChannelRule) scoring.Channel {
	m := strings.ToLower(tx.Merchant)
	c := strings.ToLower(tx.Category)
	for _, r := range rules {
		if r.Match(m, c) {
			return r.Channel
		}
	}
	return scoring.ChannelUnknown
}

func onMerchant(f func(string) bool) func(string, string) bool {
	return func(merchant, _ string) bool { return f(merchant) }
}

func onCategory(f func(string) bool) func(string, string) bool {
	return func(_, category string) bool { return f(category) }
}
