package domain

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number decodes from a JSON number or a numeric string. Anything else
// (null, empty, non-numeric, NaN, Inf) decodes as absent without error.
type Number struct {
	Value float64
	Valid bool
}

// Num returns a present Number.
func Num(v float64) Number {
	return Number{Value: v, Valid: true}
}

// Float returns the value, or 0 when absent.
func (n Number) Float() float64 {
	if !n.Valid {
		return 0
	}
	return n.Value
}

func (n *Number) UnmarshalJSON(data []byte) error {
	*n = Number{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var raw string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil
		}
	} else {
		raw = string(data)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	*n = Number{Value: f, Valid: true}
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(n.Value)
}

// Flag decodes from a JSON bool or a "true"/"false" string. Anything else is
// false.
type Flag bool

func (f *Flag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = Flag(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = Flag(strings.EqualFold(strings.TrimSpace(s), "true"))
		return nil
	}
	*f = false
	return nil
}

// Position is a holding reported by the market data source for an external
// account.
type Position struct {
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	Outcome      string `json:"outcome"`
	Size         Number `json:"size"`
	AvgPrice     Number `json:"avgPrice"`
	CurPrice     Number `json:"curPrice"`
	CashPnl      Number `json:"cashPnl"`
	PercentPnl   Number `json:"percentPnl"`
	RealizedPnl  Number `json:"realizedPnl"`
	CurrentValue Number `json:"currentValue"`
	InitialValue Number `json:"initialValue"`
	Redeemable   Flag   `json:"redeemable"`
}

// Activity is one event in an external account's history. Timestamp is in
// seconds since the epoch.
type Activity struct {
	Timestamp Number `json:"timestamp"`
	Type      string `json:"type"`
	Side      string `json:"side"`
	Cash      Number `json:"cash"`
	UsdcSize  Number `json:"usdcSize"`
	Title     string `json:"title"`
	Outcome   string `json:"outcome"`
	Price     Number `json:"price"`
	Size      Number `json:"size"`
}
