package crypto

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known throwaway key (hardhat account #0).
const testKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestParseKey(t *testing.T) {
	pk, err := ParseKey(testKey)
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", ethcrypto.PubkeyToAddress(pk.PublicKey).Hex())

	_, err = ParseKey("zz")
	assert.Error(t, err)
}

func TestEncryptDecryptKeyFile(t *testing.T) {
	blob, err := EncryptKey(testKey, "hunter2")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	pk, err := LoadKey(KeySource{EncryptedKeyPath: path, KeyPassword: "hunter2"})
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", ethcrypto.PubkeyToAddress(pk.PublicKey).Hex())

	_, err = DecryptKey(blob, "wrong")
	assert.ErrorContains(t, err, "wrong password")
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeySource{})
	assert.Error(t, err)
}

func TestSignerSignTx(t *testing.T) {
	pk, err := ParseKey(testKey)
	require.NoError(t, err)
	s := NewSigner(pk)

	chainID := big.NewInt(16602)
	to := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	tx := types.NewTx(&types.LegacyTx{Nonce: 3, To: &to, Gas: 21000, GasPrice: big.NewInt(1e9), Value: big.NewInt(0)})

	signed, err := s.SignTx(tx, chainID)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), from)
	assert.Equal(t, int64(16602), signed.ChainId().Int64())
}
