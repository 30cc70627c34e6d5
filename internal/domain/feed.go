package domain

import "time"

// FeedCategory groups catalog entries for display.
type FeedCategory string

const (
	FeedCommodity FeedCategory = "Commodities"
	FeedFiat      FeedCategory = "Fiat"
	FeedETF       FeedCategory = "ETF"
)

// OracleFeed is a catalog entry describing an external HTTP price endpoint.
type OracleFeed struct {
	ID        int          `json:"id"`
	Name      string       `json:"name"`
	Ticker    string       `json:"ticker"`
	Endpoint  string       `json:"endpoint"`
	Icon      string       `json:"icon"`
	Category  FeedCategory `json:"type"`
	SeedPrice float64      `json:"price"`
}

// Observation is a price read from a feed at a point in time.
type Observation struct {
	SourceID   int       `json:"id"`
	Value      float64   `json:"value"`
	ObservedAt time.Time `json:"observedAt"`
}
