package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// routerABIJSON covers the subset of the market router the service calls.
// getNoTokenAddress is assumed to mirror getYesTokenAddress on the deployed
// router; only the YES getter and getYESBalance are known to exist. If it is
// absent, NO-side redemptions fail at OutcomeToken with the method named.
const routerABIJSON = `[
  {"type":"function","name":"getYesTokenAddress","stateMutability":"view",
   "inputs":[{"name":"proposalId","type":"string"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getNoTokenAddress","stateMutability":"view",
   "inputs":[{"name":"proposalId","type":"string"}],
   "outputs":[{"name":"","type":"address"}]},
  {"type":"function","name":"getYESBalance","stateMutability":"view",
   "inputs":[{"name":"proposalId","type":"string"},{"name":"user","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"swap","stateMutability":"nonpayable",
   "inputs":[{"name":"proposalId","type":"string"},{"name":"tokenIn","type":"address"},{"name":"amountIn","type":"uint256"},{"name":"minAmountOut","type":"uint256"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

const erc20ABIJSON = `[
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]}
]`

var (
	RouterABI = mustParseABI(routerABIJSON)
	ERC20ABI  = mustParseABI(erc20ABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: parse abi: " + err.Error())
	}
	return parsed
}
