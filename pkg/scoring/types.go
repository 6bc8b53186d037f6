// Package scoring is a client for the external risk-scoring service.
package scoring

// Channel is the transaction modality sent to the scoring service.
type Channel string

const (
	ChannelATM     Channel = "atm"
	ChannelBranch  Channel = "branch"
	ChannelOnline  Channel = "online"
	ChannelPresent Channel = "present"
	ChannelUnknown Channel = "unknown"
)

// Valid reports whether c is one of the channels the service accepts.
func (c Channel) Valid() bool {
	switch c {
	case ChannelATM, ChannelBranch, ChannelOnline, ChannelPresent, ChannelUnknown:
		return true
	}
	return false
}

// Color is the categorical tier returned by the scoring service.
type Color string

const (
	ColorGreen  Color = "verde"
	ColorYellow Color = "amarillo"
	ColorRed    Color = "rojo"
)

// Valid reports whether c is a known tier. The empty color is not valid.
func (c Color) Valid() bool {
	switch c {
	case ColorGreen, ColorYellow, ColorRed:
		return true
	}
	return false
}

// Request is one canonical transaction in a POST /score batch.
type Request struct {
	CustomerID string  `json:"customer_id"`
	AccountID  string  `json:"account_id"`
	Amount     float64 `json:"amount"`
	Currency   string  `json:"currency"`
	MerchantID string  `json:"merchant_id"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Timestamp  string  `json:"timestamp"`
	Channel    Channel `json:"channel"`
}

// Result is the service's assessment of one request.
type Result struct {
	TransactionIdx int            `json:"transaction_idx"`
	RiskScore      float64        `json:"risk_score"`
	MLScore        float64        `json:"ml_score"`
	RuleScore      float64        `json:"rule_score"`
	Color          Color          `json:"color,omitempty"`
	Reasons        []string       `json:"reasons"`
	Debug          map[string]any `json:"debug,omitempty"`
}

type scoreRequest struct {
	Transactions []Request `json:"transactions"`
}

type scoreResponse struct {
	Results []Result `json:"results"`
}
