// Package interpret turns scoring results and local pre-authored tiers into
// presentation state.
package interpret

import (
	"github.com/sells-group/risk-alerts/internal/model"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

// Level is the presentation tier.
type Level string

const (
	LevelHigh   Level = "high"
	LevelMedium Level = "medium"
	LevelLow    Level = "low"
)

// Style names the badge styling the presentation layer applies.
type Style string

const (
	StyleHighAlert       Style = "high_alert"
	StyleReviewSuggested Style = "review_suggested"
	StyleNormal          Style = "normal"
)

// Source records where a piece of presentation state came from.
type Source string

const (
	SourceService Source = "service"
	SourceLocal   Source = "local"
)

const serviceReasonDescription = "Evaluación automática comparando tu patrón y reglas de seguridad."

// LocalFallback is the tier and reasons already attached to a transaction.
type LocalFallback struct {
	RiskLevel model.RiskLevel    `json:"risk_level"`
	Reasons   []model.RiskReason `json:"reasons,omitempty"`
}

// FallbackFor extracts the local fallback from a raw transaction.
func FallbackFor(tx model.RawTransaction) LocalFallback {
	return LocalFallback{RiskLevel: tx.RiskLevel, Reasons: tx.RiskReasons}
}

// Scores are the numeric components shown next to the badge.
type Scores struct {
	Risk float64 `json:"risk"`
	ML   float64 `json:"ml"`
	Rule float64 `json:"rule"`
}

// Presentation is what a detail view renders.
type Presentation struct {
	Level        Level              `json:"level"`
	Style        Style              `json:"style"`
	Label        string             `json:"label"`
	TierSource   Source             `json:"tier_source"`
	Color        scoring.Color      `json:"color,omitempty"`
	Reasons      []model.RiskReason `json:"reasons"`
	ReasonSource Source             `json:"reason_source"`
	Scores       *Scores            `json:"scores,omitempty"`
}

// GaugeReading is the state of the generic risk gauge.
type GaugeReading struct {
	Value       float64       `json:"value"`
	Color       scoring.Color `json:"color"`
	Level       Level         `json:"level"`
	Label       string        `json:"label"`
	Description string        `json:"description"`
	Reasons     []string      `json:"reasons,omitempty"`
}

// Interpreter classifies results with a validated set of thresholds.
type Interpreter struct {
	thresholds Thresholds
}

// New creates an Interpreter. The thresholds must already be valid.
func New(th Thresholds) (*Interpreter, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return &Interpreter{thresholds: th}, nil
}

// Thresholds returns the configured thresholds.
func (in *Interpreter) Thresholds() Thresholds {
	return in.thresholds
}

// Interpret reconciles an optional scoring result with the local fallback.
// Tier and reasons fall back independently.
func (in *Interpreter) Interpret(result *scoring.Result, local LocalFallback) Presentation {
	var p Presentation

	if result == nil {
		p.Level = levelFromLocal(local.RiskLevel)
		p.Style = styleFor(p.Level)
		p.Label = localLabel(p.Level)
		p.TierSource = SourceLocal
	} else {
		color := result.Color
		if !color.Valid() {
			color = colorFor(in.thresholds.Classify(result.RiskScore * 100))
		}
		p.Color = color
		p.Level = levelFromColor(color)
		p.Style = styleFor(p.Level)
		p.Label = serviceLabel(p.Level)
		p.TierSource = SourceService
		p.Scores = &Scores{Risk: result.RiskScore, ML: result.MLScore, Rule: result.RuleScore}
	}

	if result != nil && len(result.Reasons) > 0 {
		sev := severityFor(p.Level)
		p.Reasons = make([]model.RiskReason, len(result.Reasons))
		for i, r := range result.Reasons {
			p.Reasons[i] = model.RiskReason{Title: r, Description: serviceReasonDescription, Severity: sev}
		}
		p.ReasonSource = SourceService
	} else {
		p.Reasons = append([]model.RiskReason{}, local.Reasons...)
		p.ReasonSource = SourceLocal
	}

	return p
}

// Gauge computes the gauge reading for an optional result. Without a service
// color the configured thresholds decide the tier.
func (in *Interpreter) Gauge(result *scoring.Result) GaugeReading {
	var g GaugeReading
	if result != nil {
		g.Value = result.RiskScore * 100
		g.Reasons = result.Reasons
	}

	if result != nil && result.Color.Valid() {
		g.Color = result.Color
		g.Level = levelFromColor(result.Color)
	} else {
		g.Level = in.thresholds.Classify(g.Value)
		g.Color = colorFor(g.Level)
	}

	switch g.Level {
	case LevelHigh:
		g.Label, g.Description = "ROJO", "Actividad fuera de tu patrón. Revisemos esta transacción."
	case LevelMedium:
		g.Label, g.Description = "AMARILLO", "Actividad que requiere atención."
	default:
		g.Label, g.Description = "VERDE", "Todo en orden."
	}
	return g
}

func levelFromLocal(l model.RiskLevel) Level {
	switch l {
	case model.RiskLevelRed:
		return LevelHigh
	case model.RiskLevelYellow:
		return LevelMedium
	default:
		return LevelLow
	}
}

func levelFromColor(c scoring.Color) Level {
	switch c {
	case scoring.ColorRed:
		return LevelHigh
	case scoring.ColorYellow:
		return LevelMedium
	default:
		return LevelLow
	}
}

func colorFor(l Level) scoring.Color {
	switch l {
	case LevelHigh:
		return scoring.ColorRed
	case LevelMedium:
		return scoring.ColorYellow
	default:
		return scoring.ColorGreen
	}
}

func styleFor(l Level) Style {
	switch l {
	case LevelHigh:
		return StyleHighAlert
	case LevelMedium:
		return StyleReviewSuggested
	default:
		return StyleNormal
	}
}

func severityFor(l Level) model.Severity {
	switch l {
	case LevelHigh:
		return model.SeverityHigh
	case LevelMedium:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

func serviceLabel(l Level) string {
	switch l {
	case LevelHigh:
		return "ALERTA DE RIESGO"
	case LevelMedium:
		return "REVISIÓN SUGERIDA"
	default:
		return "COMPRA NORMAL"
	}
}

func localLabel(l Level) string {
	switch l {
	case LevelHigh:
		return "COMPRA SOSPECHOSA"
	case LevelMedium:
		return "GASTO HORMIGA"
	default:
		return "COMPRA NORMAL"
	}
}
