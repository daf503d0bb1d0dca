package polymarket

import (
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// APIMarket is a market as returned by the Gamma API. Most fields arrive
// with inconsistent types across endpoints, so they decode leniently.
type APIMarket struct {
	ID             looseString   `json:"id"`
	ConditionID    string        `json:"conditionId"`
	Question       string        `json:"question"`
	Title          string        `json:"title"`
	Slug           string        `json:"slug"`
	Category       string        `json:"category"`
	GroupItemTitle string        `json:"groupItemTitle"`
	OutcomePrices  textList      `json:"outcomePrices"`
	Outcomes       textList      `json:"outcomes"`
	Volume         domain.Number `json:"volume"`
	VolumeNum      domain.Number `json:"volumeNum"`
	Liquidity      domain.Number `json:"liquidity"`
	LiquidityNum   domain.Number `json:"liquidityNum"`
	EndDate        string        `json:"endDate"`
	EndDateISO     string        `json:"end_date_iso"`
	Image          string        `json:"image"`
	Active         *domain.Flag  `json:"active"`
	Closed         domain.Flag   `json:"closed"`
}

// APIEvent groups related markets.
type APIEvent struct {
	ID      looseString  `json:"id"`
	Title   string       `json:"title"`
	Slug    string       `json:"slug"`
	Active  *domain.Flag `json:"active"`
	Closed  domain.Flag  `json:"closed"`
	Markets []APIMarket  `json:"markets"`
}

// APIProfile is a public Gamma profile.
type APIProfile struct {
	ProxyWallet  string `json:"proxyWallet"`
	Name         string `json:"name"`
	Pseudonym    string `json:"pseudonym"`
	Bio          string `json:"bio"`
	ProfileImage string `json:"profileImage"`
	CreatedAt    string `json:"createdAt"`
}

const unknownMarket = "Unknown Market"

// ParseMarket normalizes a Gamma market. Missing fields fall back to a
// Yes/No market priced at 0.5/0.5 titled "Unknown Market"; a market is
// active unless it says otherwise.
func ParseMarket(m APIMarket) domain.Market {
	out := domain.Market{
		ID:        firstNonEmpty(string(m.ID), m.ConditionID),
		Question:  firstNonEmpty(m.Question, m.Title, unknownMarket),
		Slug:      m.Slug,
		Category:  firstNonEmpty(m.Category, m.GroupItemTitle),
		YesPrice:  priceAt(m.OutcomePrices, 0),
		NoPrice:   priceAt(m.OutcomePrices, 1),
		Outcomes:  []string(m.Outcomes),
		Volume:    firstNumber(m.Volume, m.VolumeNum),
		Liquidity: firstNumber(m.Liquidity, m.LiquidityNum),
		EndDate:   firstNonEmpty(m.EndDate, m.EndDateISO),
		Image:     m.Image,
		Active:    m.Active == nil || bool(*m.Active),
		Closed:    bool(m.Closed),
	}
	if len(out.Outcomes) == 0 {
		out.Outcomes = []string{"Yes", "No"}
	}
	return out
}

// ParseEvent normalizes a Gamma event and its markets.
func ParseEvent(e APIEvent) domain.MarketEvent {
	out := domain.MarketEvent{
		ID:      string(e.ID),
		Title:   e.Title,
		Slug:    e.Slug,
		Active:  e.Active == nil || bool(*e.Active),
		Closed:  bool(e.Closed),
		Markets: make([]domain.Market, 0, len(e.Markets)),
	}
	for _, m := range e.Markets {
		out.Markets = append(out.Markets, ParseMarket(m))
	}
	return out
}

// ToDomain converts the profile; address is the wallet it was looked up by.
func (p APIProfile) ToDomain(address string) domain.Profile {
	out := domain.Profile{
		Address:   firstNonEmpty(p.ProxyWallet, address),
		Name:      p.Name,
		Pseudonym: p.Pseudonym,
		Bio:       p.Bio,
		Image:     p.ProfileImage,
	}
	if t, err := time.Parse(time.RFC3339, p.CreatedAt); err == nil {
		out.CreatedAt = &t
	}
	return out
}

// priceAt returns the i-th outcome price, or 0.5 when it is missing or
// unparseable.
func priceAt(prices textList, i int) float64 {
	if i >= len(prices) {
		return 0.5
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(prices[i]), 64)
	if err != nil {
		return 0.5
	}
	return f
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNumber(vals ...domain.Number) float64 {
	for _, v := range vals {
		if v.Valid && v.Value != 0 {
			return v.Value
		}
	}
	return 0
}
