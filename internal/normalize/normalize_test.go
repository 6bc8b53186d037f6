package normalize

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/risk-alerts/internal/model"
	"github.com/sells-group/risk-alerts/pkg/scoring"
)

func TestParseLocalDateTime(t *testing.T) {
	tests := []struct {
		name string
		date string
		time string
		want string
	}{
		{name: "early morning", date: "25 Oct 2025", time: "03:42 AM", want: "2025-10-25T03:42:00.000Z"},
		{name: "midnight", date: "01 Jan 2025", time: "12:00 AM", want: "2025-01-01T00:00:00.000Z"},
		{name: "noon", date: "01 Jan 2025", time: "12:00 PM", want: "2025-01-01T12:00:00.000Z"},
		{name: "evening", date: "23 Oct 2025", time: "11:45 PM", want: "2025-10-23T23:45:00.000Z"},
		{name: "afternoon", date: "23 Oct 2025", time: "02:30 PM", want: "2025-10-23T14:30:00.000Z"},
		{name: "leap day", date: "29 Feb 2024", time: "09:05 am", want: "2024-02-29T09:05:00.000Z"},
		{name: "lowercase month", date: "5 dec 2025", time: "1:00 PM", want: "2025-12-05T13:00:00.000Z"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLocalDateTime(tt.date, tt.time)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLocalDateTime_RoundTrip(t *testing.T) {
	names := []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}
	for m, name := range names {
		for _, day := range []int{1, 15, 28} {
			for _, hour12 := range []int{1, 6, 11, 12} {
				for _, ampm := range []string{"AM", "PM"} {
					date := formatDate(day, name, 2025)
					clock := formatClock(hour12, 7, ampm)
					got, err := ParseLocalDateTime(date, clock)
					require.NoError(t, err, "%s %s", date, clock)

					ts, err := time.Parse(TimestampLayout, got)
					require.NoError(t, err)
					assert.Equal(t, 2025, ts.Year())
					assert.Equal(t, time.Month(m+1), ts.Month())
					assert.Equal(t, day, ts.Day())
					assert.Equal(t, to24(hour12, ampm), ts.Hour())
					assert.Equal(t, 7, ts.Minute())
					assert.Equal(t, 0, ts.Second())
				}
			}
		}
	}
}

func TestParseLocalDateTime_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		date  string
		time  string
		field string
	}{
		{name: "unknown month", date: "25 Okt 2025", time: "03:42 AM", field: "date"},
		{name: "spanish month", date: "24 Ago 2025", time: "03:42 AM", field: "date"},
		{name: "two tokens", date: "Oct 2025", time: "03:42 AM", field: "date"},
		{name: "day zero", date: "0 Oct 2025", time: "03:42 AM", field: "date"},
		{name: "february 30", date: "30 Feb 2025", time: "03:42 AM", field: "date"},
		{name: "non leap 29 feb", date: "29 Feb 2025", time: "03:42 AM", field: "date"},
		{name: "day text", date: "xx Oct 2025", time: "03:42 AM", field: "date"},
		{name: "hour 13", date: "25 Oct 2025", time: "13:00 PM", field: "time"},
		{name: "hour 0", date: "25 Oct 2025", time: "00:30 AM", field: "time"},
		{name: "minute 60", date: "25 Oct 2025", time: "03:60 AM", field: "time"},
		{name: "no suffix", date: "25 Oct 2025", time: "03:42", field: "time"},
		{name: "bad suffix", date: "25 Oct 2025", time: "03:42 XM", field: "time"},
		{name: "no colon", date: "25 Oct 2025", time: "0342 AM", field: "time"},
		{name: "empty", date: "", time: "", field: "date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLocalDateTime(tt.date, tt.time)
			require.Error(t, err)
			var nerr *NormalizationError
			require.True(t, errors.As(err, &nerr))
			assert.Equal(t, tt.field, nerr.Field)
		})
	}
}

func TestDeriveMerchantID(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "far city rule", in: "Far City Electronics", want: "m_far_city"},
		{name: "stream rule", in: "StreamMax", want: "m_stream_1"},
		{name: "cafe accented", in: "Café Punta del Cielo", want: "m_coffee_1"},
		{name: "coffee", in: "Blue Bottle Coffee", want: "m_coffee_1"},
		{name: "tienda", in: "Tienda La Esquina", want: "m_grocery_1"},
		{name: "atm", in: "ATM Reforma", want: "m_atm_1"},
		{name: "banco", in: "Banco Azteca", want: "m_atm_1"},
		{name: "rule order far city over coffee", in: "Far City Coffee", want: "m_far_city"},
		{name: "slug fallback", in: "AliExpress", want: "aliexpress"},
		{name: "whitespace runs", in: "Starbucks   Polanco", want: "starbucks_polanco"},
		{name: "punctuation stripped", in: "Oxxo #4521", want: "oxxo_4521"},
		{name: "accented letters stripped", in: "Amazon México", want: "amazon_mxico"},
		{name: "decomposed accent stripped", in: "Amazon Me\u0301xico", want: "amazon_mxico"},
		{name: "accent mid word", in: "Farmacia Pérez", want: "farmacia_prez"},
		{name: "umlaut stripped", in: "Liverpool Günther", want: "liverpool_gnther"},
		{name: "decomposed cafe rule", in: "Cafe\u0301 Azul", want: "m_coffee_1"},
		{name: "emoji stripped", in: "Disney+ Premium 🏰", want: "disney_premium_"},
		{name: "hyphen kept", in: "7-Eleven", want: "7-eleven"},
		{name: "empty", in: "", want: UnknownMerchantID},
		{name: "whitespace only", in: "   ", want: UnknownMerchantID},
		{name: "emoji only", in: "🎬", want: UnknownMerchantID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveMerchantID(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, DeriveMerchantID(tt.in), "must be deterministic")
			assert.Regexp(t, `^[A-Za-z0-9_-]+$`, got)
		})
	}
}

func TestDeriveMerchantID_Idempotent(t *testing.T) {
	for _, in := range []string{"AliExpress", "Uber 4 viajes", "Café Punta", "Liverpool Insurgentes", ""} {
		id := DeriveMerchantID(in)
		assert.Equal(t, id, DeriveMerchantID(id), in)
	}
}

func TestInferChannel(t *testing.T) {
	tests := []struct {
		name     string
		merchant string
		category string
		want     scoring.Channel
	}{
		{name: "online merchant", merchant: "AliExpress", category: "Compras", want: scoring.ChannelOnline},
		{name: "online beats present", merchant: "Amazon México", category: "Compras", want: scoring.ChannelOnline},
		{name: "online beats atm", merchant: "Netflix Premium", category: "ATM", want: scoring.ChannelOnline},
		{name: "spotify", merchant: "Spotify Premium", category: "Entretenimiento", want: scoring.ChannelOnline},
		{name: "atm category", merchant: "Banco Azteca", category: "Retiro ATM", want: scoring.ChannelATM},
		{name: "atm beats present", merchant: "Cajero", category: "ATM compras", want: scoring.ChannelATM},
		{name: "alimentos", merchant: "Starbucks Polanco", category: "Alimentos", want: scoring.ChannelPresent},
		{name: "transporte", merchant: "Uber 4 viajes", category: "Transporte", want: scoring.ChannelPresent},
		{name: "conveniencia", merchant: "Oxxo #4521", category: "Conveniencia", want: scoring.ChannelPresent},
		{name: "unknown", merchant: "CFE Pago de luz", category: "Servicios", want: scoring.ChannelUnknown},
		{name: "empty", want: scoring.ChannelUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := InferChannel(model.RawTransaction{Merchant: tt.merchant, Category: tt.category})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestChannelWithRules_CustomOrder(t *testing.T) {
	rules := []ChannelRule{
		{Name: "branch", Match: onCategory(containsAny("sucursal")), Channel: scoring.ChannelBranch},
	}
	tx := model.RawTransaction{Merchant: "Amazon", Category: "Sucursal Centro"}
	assert.Equal(t, scoring.ChannelBranch, ChannelWithRules(tx, rules))
	assert.Equal(t, scoring.ChannelOnline, InferChannel(tx))
}

func TestResolveCoordinates(t *testing.T) {
	fallback := NewPoint(DefaultLat, DefaultLon)

	tests := []struct {
		name    string
		coords  *model.Coordinates
		wantLat float64
		wantLon float64
	}{
		{name: "present", coords: &model.Coordinates{Lat: model.Float64(31.2304), Lng: model.Float64(121.4737)}, wantLat: 31.2304, wantLon: 121.4737},
		{name: "zero is a real coordinate", coords: &model.Coordinates{Lat: model.Float64(0), Lng: model.Float64(0)}, wantLat: 0, wantLon: 0},
		{name: "nil", coords: nil, wantLat: DefaultLat, wantLon: DefaultLon},
		{name: "lat missing", coords: &model.Coordinates{Lng: model.Float64(121.4737)}, wantLat: DefaultLat, wantLon: DefaultLon},
		{name: "lng missing", coords: &model.Coordinates{Lat: model.Float64(31.2304)}, wantLat: DefaultLat, wantLon: DefaultLon},
		{name: "nan", coords: &model.Coordinates{Lat: model.Float64(math.NaN()), Lng: model.Float64(1)}, wantLat: DefaultLat, wantLon: DefaultLon},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ResolveCoordinates(model.RawTransaction{Coordinates: tt.coords}, fallback)
			assert.Equal(t, tt.wantLat, p.Y())
			assert.Equal(t, tt.wantLon, p.X())
			assert.Equal(t, SRIDWGS84, p.SRID())
		})
	}
}

func TestNew_ReferencePoint(t *testing.T) {
	unset := New(Defaults{})
	assert.Equal(t, DefaultLat, unset.Defaults().Lat)
	assert.Equal(t, DefaultLon, unset.Defaults().Lon)

	n := New(Defaults{}, WithReferencePoint(0, 0))
	assert.Zero(t, n.Defaults().Lat)
	assert.Zero(t, n.Defaults().Lon)

	req, err := n.Normalize(model.RawTransaction{
		ID:       "1",
		Merchant: "AliExpress",
		Amount:   decimal.RequireFromString("10.00"),
		Date:     "25 Oct 2025",
		Time:     "03:42 AM",
	})
	require.NoError(t, err)
	assert.Zero(t, req.Lat)
	assert.Zero(t, req.Lon)
}

func TestNormalize_AliExpress(t *testing.T) {
	n := New(Defaults{})
	req, err := n.Normalize(model.RawTransaction{
		ID:       "1",
		Merchant: "AliExpress",
		Amount:   decimal.RequireFromString("4250.00"),
		Date:     "25 Oct 2025",
		Time:     "03:42 AM",
		Category: "Compras",
	})
	require.NoError(t, err)

	assert.Equal(t, "aliexpress", req.MerchantID)
	assert.Equal(t, scoring.ChannelOnline, req.Channel)
	assert.Equal(t, DefaultLat, req.Lat)
	assert.Equal(t, DefaultLon, req.Lon)
	assert.Equal(t, "2025-10-25T03:42:00.000Z", req.Timestamp)
	assert.Equal(t, 4250.00, req.Amount)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, "cust_demo_1", req.CustomerID)
	assert.Equal(t, "acc_001", req.AccountID)
}

func TestNormalize_RecordOverridesDefaults(t *testing.T) {
	n := New(Defaults{CustomerID: "cust_9", Currency: "MXN", Lat: 20.6597, Lon: -103.3496})
	req, err := n.Normalize(model.RawTransaction{
		Merchant:  "Tienda 3B",
		Amount:    decimal.RequireFromString("67.10"),
		Currency:  "usd",
		AccountID: "acc_777",
		Date:      "23 Oct 2025",
		Time:      "09:15 AM",
		Category:  "Conveniencia",
	})
	require.NoError(t, err)

	assert.Equal(t, "cust_9", req.CustomerID)
	assert.Equal(t, "acc_777", req.AccountID)
	assert.Equal(t, "USD", req.Currency)
	assert.Equal(t, "m_grocery_1", req.MerchantID)
	assert.Equal(t, scoring.ChannelPresent, req.Channel)
	assert.Equal(t, 20.6597, req.Lat)
	assert.Equal(t, -103.3496, req.Lon)
	assert.Equal(t, 67.10, req.Amount)
}

func TestNormalize_BadDate(t *testing.T) {
	n := New(DefaultDefaults())
	_, err := n.Normalize(model.RawTransaction{Merchant: "x", Date: "24 Ago 2025", Time: "08:00 AM"})
	var nerr *NormalizationError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "date", nerr.Field)
}

func TestNormalizeBatch(t *testing.T) {
	n := New(DefaultDefaults())
	txs := []model.RawTransaction{
		{ID: "a", Merchant: "Netflix", Date: "24 Oct 2025", Time: "08:15 AM"},
		{ID: "b", Merchant: "Oxxo", Date: "23 Oct 2025", Time: "09:15 AM", Category: "Conveniencia"},
	}
	reqs, err := n.NormalizeBatch(txs)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, scoring.ChannelOnline, reqs[0].Channel)
	assert.Equal(t, scoring.ChannelPresent, reqs[1].Channel)

	txs = append(txs, model.RawTransaction{ID: "c", Date: "bad", Time: "08:00 AM"})
	_, err = n.NormalizeBatch(txs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "transaction 2")
	var nerr *NormalizationError
	assert.ErrorAs(t, err, &nerr)
}

func formatDate(day int, month string, year int) string {
	return time.Date(year, 1, day, 0, 0, 0, 0, time.UTC).Format("02") + " " + month + " " + time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).Format("2006")
}

func formatClock(hour, minute int, ampm string) string {
	return time.Date(2000, 1, 1, hour, minute, 0, 0, time.UTC).Format("03:04") + " " + ampm
}

func to24(hour12 int, ampm string) int {
	switch {
	case ampm == "AM" && hour12 == 12:
		return 0
	case ampm == "PM" && hour12 != 12:
		return hour12 + 12
	}
	return hour12
}
