package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer signs ledger transactions with a single secp256k1 key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner wraps an already-resolved key.
func NewSigner(key *ecdsa.PrivateKey) *Signer {
	return &Signer{key: key, address: ethcrypto.PubkeyToAddress(key.PublicKey)}
}

// Address returns the address derived from the key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignTx signs tx for chainID using the latest signer rules for that chain.
func (s *Signer) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("crypto/signer: sign tx: %w", err)
	}
	return signed, nil
}
