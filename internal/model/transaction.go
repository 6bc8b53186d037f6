package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// RiskLevel is the locally pre-authored tier attached to a transaction.
type RiskLevel string

const (
	RiskLevelRed    RiskLevel = "red"
	RiskLevelYellow RiskLevel = "yellow"
	RiskLevelGreen  RiskLevel = "green"
)

// Severity grades a single risk reason.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// RiskReason is a human-readable explanation shown with an alert.
type RiskReason struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Severity    Severity `json:"severity" yaml:"severity"`
}

// Coordinates is an optional lat/lng pair. Either side may be absent.
type Coordinates struct {
	Lat *float64 `json:"lat,omitempty" yaml:"lat,omitempty"`
	Lng *float64 `json:"lng,omitempty" yaml:"lng,omitempty"`
}

// Complete reports whether both sides are present and finite.
func (c *Coordinates) Complete() bool {
	if c == nil || c.Lat == nil || c.Lng == nil {
		return false
	}
	return isFinite(*c.Lat) && isFinite(*c.Lng)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// RawTransaction is a transaction as the dashboard receives it: free-text
// merchant, locale-formatted date and time, optional location data.
type RawTransaction struct {
	ID          string          `json:"id" yaml:"id"`
	Merchant    string          `json:"merchant" yaml:"merchant"`
	Amount      decimal.Decimal `json:"amount" yaml:"amount"`
	Currency    string          `json:"currency,omitempty" yaml:"currency,omitempty"`
	Date        string          `json:"date" yaml:"date"` // "25 Oct 2025"
	Time        string          `json:"time" yaml:"time"` // "03:42 AM"
	Category    string          `json:"category" yaml:"category"`
	Location    string          `json:"location,omitempty" yaml:"location,omitempty"`
	Coordinates *Coordinates    `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	AccountID   string          `json:"account_id,omitempty" yaml:"account_id,omitempty"`
	RiskLevel   RiskLevel       `json:"risk_level" yaml:"risk_level"`
	RiskReasons []RiskReason    `json:"risk_reasons,omitempty" yaml:"risk_reasons,omitempty"`
	IsRecurring bool            `json:"is_recurring,omitempty" yaml:"is_recurring,omitempty"`
}

// Float64 is a convenience for building coordinates in literals.
func Float64(f float64) *float64 {
	return &f
}
