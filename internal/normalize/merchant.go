package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// UnknownMerchantID is used when the merchant name carries no usable text.
const UnknownMerchantID = "merchant_unknown"

// MerchantRule maps a family of merchant names to a canonical id.
// Match receives the lower-cased name.
type MerchantRule struct {
	Name  string
	Match func(lower string) bool
	ID    string
}

// DefaultMerchantRules is evaluated in order; the first match wins.
var DefaultMerchantRules = []MerchantRule{
	{Name: "far_city", Match: containsAll("far", "city"), ID: "m_far_city"},
	{Name: "streaming", Match: containsAny("stream"), ID: "m_stream_1"},
	{Name: "coffee", Match: containsAny("café", "cafe", "coffee"), ID: "m_coffee_1"},
	{Name: "grocery", Match: containsAny("tiend"), ID: "m_grocery_1"},
	{Name: "atm", Match: containsAny("atm", "banco"), ID: "m_atm_1"},
}

// DeriveMerchantID returns the canonical merchant id for name using
// DefaultMerchantRules.
func DeriveMerchantID(name string) string {
	return MerchantIDWithRules(name, DefaultMerchantRules)
}

// MerchantIDWithRules applies rules in order and falls back to Slug.
func MerchantIDWithRules(name string, rules []MerchantRule) string {
	lower := norm.NFC.String(strings.ToLower(name))
	for _, r := range rules {
		if r.Match(lower) {
			return r.ID
		}
	}
	if s := Slug(name); s != "" {
		return s
	}
	return UnknownMerchantID
}

// Slug lower-cases s, joins whitespace runs with "_" and drops every rune
// outside [a-z0-9_-], accented letters included. Input is composed to NFC
// first so "é" is dropped whole whether it arrived as one rune or two.
// The result may be empty.
func Slug(s string) string {
	lower := norm.NFC.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(lower))
	inSpace := false
	for _, r := range lower {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	out := b.String()
	if strings.Trim(out, "_") == "" {
		return ""
	}
	return out
}

func containsAny(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if strings.Contains(s, sub) {
				return true
			}
		}
		return false
	}
}

func containsAll(subs ...string) func(string) bool {
	return func(s string) bool {
		for _, sub := range subs {
			if !strings.Contains(s, sub) {
				return false
			}
		}
		return true
	}
}
