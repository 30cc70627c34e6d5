package oracle

import (
	"sort"

	"github.com/preyanshu/verdict/internal/domain"
)

const (
	diaRWABase = "https://api.diadata.org/v1/rwa/"
	iconBase   = "https://cms3.diadata.org/wp-content/uploads/2025/08/"
)

// seedFeeds is the registered feed catalog. Price is the reference value
// used when a condition carries no snapshot of its own.
var seedFeeds = []struct {
	id       int
	name     string
	ticker   string
	path     string
	icon     string
	price    float64
	category domain.FeedCategory
}{
	{12292, "Natural Gas", "NG", "Commodities/NG-USD", "Natural-gas-Commodity-logo-1.png", 3.169, domain.FeedCommodity},
	{12288, "Crude Oil", "WTI", "Commodities/WTI-USD", "Crude-Oil-WTI-Spot-Commodity-logo-1.png", 58.78, domain.FeedCommodity},
	{12286, "Brent Oil", "XBR", "Commodities/XBR-USD", "Brent-Spot-Commodity-logo-1.png", 63.029999, domain.FeedCommodity},
	{12283, "Canadian Dollar", "CAD", "Fiat/CAD-USD", "Canadian-Dollar-FX-Rate-logo.png", 0.71857664338478, domain.FeedFiat},
	{12281, "Australian Dollar", "AUD", "Fiat/AUD-USD", "Australian-Dollar-logo-FX-rate.png", 0.66838664830831, domain.FeedFiat},
	{12279, "Chinese Yuan", "CNY", "Fiat/CNY-USD", "Chinese-Yuan-logo-FX.png", 0.14322974480756, domain.FeedFiat},
	{12276, "20+ Year Treasury Bond ETF iShares", "TLT", "ETF/TLT", "20-Year-Treasury-Bond-ETF-iShares-ETF-logo.png", 87.92, domain.FeedETF},
	{12274, "1-3 Year Treasury Bond ETF iShares", "SHY", "ETF/SHY", "1-3-Year-Treasury-Bond-ETF-iShares-logo.png", 82.835, domain.FeedETF},
	{12272, "Short-Term Treasury Fund Vanguard", "VGSH", "ETF/VGSH", "Vanguard-Short-Term-Treasury-Fund-ETF-logo-1.png", 58.74, domain.FeedETF},
	{12270, "U.S. Treasury Bond ETF iShares", "GOVT", "ETF/GOVT", "iShares-U.S.-Treasury-Bond-ETF-logo.png", 23.055, domain.FeedETF},
	{12268, "Bitcoin & Ether Market Cap Weight ETF ProShares", "BETH", "ETF/BETH", "ProShares-Bitcoin-Ether-Market-Cap-Weight-ETF-logo.png", 52.66, domain.FeedETF},
	{12266, "Ethereum Trust ETHA iShares", "ETHA", "ETF/ETHA", "iShares-Ethereum-Trust-ETHA-ETF-logo.png", 23.19, domain.FeedETF},
	{12264, "Bitcoin Strategy ETF ProShares", "BITO", "ETF/BITO", "ProShares-Bitcoin-Strategy-ETF-logo.png", 12.515, domain.FeedETF},
	{12262, "Bitcoin Trust (BTC) Grayscale", "GBTC", "ETF/GBTC", "Grayscale-Bitcoin-Trust-BTC-ETF-LOGO.png", 70.475, domain.FeedETF},
	{12260, "Bitcoin ETF VanEck", "HODL", "ETF/HODL", "VanEck-Bitcoin-ETF-LOGO.png", 25.52, domain.FeedETF},
	{12258, "Bitcoin ETF Ark 21Shares", "ARKB", "ETF/ARKB", "Ark-21Shares-Bitcoin-ETF-logo.png", 29.95, domain.FeedETF},
	{12255, "Bitcoin Index Fund Fidelity Wise Origin", "FBTC", "ETF/FBTC", "Fidelity-Wise-Origin-Bitcoin-Index-Fund-ETF-logo.png", 78.6, domain.FeedETF},
	{12251, "Bitcoin Trust iShares", "IBIT", "ETF/IBIT", "iShares-Bitcoin-Trust-ETF-logo.png", 51.17, domain.FeedETF},
	{12249, "QQQ Trust Invesco", "QQQ", "ETF/QQQ", "Invesco-QQQ-Trust-ETF-logo.png", 626.65997, domain.FeedETF},
	{12247, "Total Stock Market ETF Vanguard", "VTI", "ETF/VTI", "Vanguard-Total-Stock-Market-ETF-logo-1.png", 342.36499, domain.FeedETF},
	{12245, "S&P 500 ETF Trust SPDR", "SPY", "ETF/SPY", "spdr-sp-500-etf-trust-logo.png", 693.98999, domain.FeedETF},
	{12243, "S&P 500 ETF Vanguard", "VOO", "ETF/VOO", "Vanguard-SP-500-ETF-Vanguard.png", 638.25, domain.FeedETF},
}

// Catalog is an immutable id-indexed set of oracle feeds.
type Catalog struct {
	byID  map[int]domain.OracleFeed
	order []int
}

// NewCatalog builds a Catalog from feeds, keeping the given order.
func NewCatalog(feeds []domain.OracleFeed) *Catalog {
	c := &Catalog{byID: make(map[int]domain.OracleFeed, len(feeds))}
	for _, f := range feeds {
		if _, dup := c.byID[f.ID]; dup {
			continue
		}
		c.byID[f.ID] = f
		c.order = append(c.order, f.ID)
	}
	return c
}

// DefaultCatalog returns the registered DIA real-world-asset feeds.
func DefaultCatalog() *Catalog {
	feeds := make([]domain.OracleFeed, 0, len(seedFeeds))
	for _, s := range seedFeeds {
		feeds = append(feeds, domain.OracleFeed{
			ID:        s.id,
			Name:      s.name,
			Ticker:    s.ticker,
			Endpoint:  diaRWABase + s.path,
			Icon:      iconBase + s.icon,
			Category:  s.category,
			SeedPrice: s.price,
		})
	}
	return NewCatalog(feeds)
}

// Lookup returns the feed registered under id.
func (c *Catalog) Lookup(id int) (domain.OracleFeed, bool) {
	f, ok := c.byID[id]
	return f, ok
}

// Has reports whether id is a registered feed.
func (c *Catalog) Has(id int) bool {
	_, ok := c.byID[id]
	return ok
}

// All returns every feed in catalog order.
func (c *Catalog) All() []domain.OracleFeed {
	out := make([]domain.OracleFeed, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// IDs returns registered ids in ascending order.
func (c *Catalog) IDs() []int {
	ids := append([]int(nil), c.order...)
	sort.Ints(ids)
	return ids
}
