package domain

import "time"

// Market is a prediction market as shown in the trading terminal.
type Market struct {
	ID        string
	Question  string
	Slug      string
	Category  string
	YesPrice  float64
	NoPrice   float64
	Outcomes  []string
	Volume    float64
	Liquidity float64
	EndDate   string
	Image     string
	Active    bool
	Closed    bool
}

// MarketEvent groups related markets under one title.
type MarketEvent struct {
	ID      string
	Title   string
	Slug    string
	Active  bool
	Closed  bool
	Markets []Market
}

// Profile is the public profile of a market account.
type Profile struct {
	Address   string
	Name      string
	Pseudonym string
	Bio       string
	Image     string
	CreatedAt *time.Time
}
