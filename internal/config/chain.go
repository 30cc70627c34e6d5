package config

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"
)

var gweiScale = decimal.New(1, 9)

// GasPriceWei converts the configured gas_price_gwei (which may be fractional,
// e.g. "1.5") into wei.
func (c ChainConfig) GasPriceWei() (*big.Int, error) {
	d, err := decimal.NewFromString(c.GasPriceGwei)
	if err != nil {
		return nil, fmt.Errorf("gas_price_gwei %q: %w", c.GasPriceGwei, err)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("gas_price_gwei must be > 0, got %s", c.GasPriceGwei)
	}
	wei := d.Mul(gweiScale)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("gas_price_gwei %s has sub-wei precision", c.GasPriceGwei)
	}
	return wei.BigInt(), nil
}

// RPCFor returns the RPC endpoint configured for chainID. The primary
// rpc_url serves chain_id; any other id must be listed in alt_rpc_urls.
func (c ChainConfig) RPCFor(chainID int64) (string, bool) {
	if chainID == c.ChainID {
		return c.RPCURL, c.RPCURL != ""
	}
	u, ok := c.AltRPCURLs[strconv.FormatInt(chainID, 10)]
	return u, ok && u != ""
}
