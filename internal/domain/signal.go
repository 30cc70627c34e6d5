package domain

import "time"

// Signal bus channels.
const (
	ChannelRedemptions = "redemptions"
	ChannelAudits      = "audits"
)

// HistoryStream names the stream holding the recent events of channel.
func HistoryStream(channel string) string { return "events:" + channel }

// Event is the envelope published on the signal bus and relayed to
// websocket clients.
type Event struct {
	Type      string    `json:"type"`
	MarketID  string    `json:"marketId"`
	Wallet    string    `json:"wallet,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// ServiceStatus summarises the running service.
type ServiceStatus struct {
	Mode          string `json:"mode"`
	ChainID       int64  `json:"chainId"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	InFlight      int    `json:"redemptionsInFlight"`
	WSClients     int    `json:"wsClients"`
}
