package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preyanshu/verdict/internal/crypto"
	"github.com/preyanshu/verdict/internal/domain"
)

const hardhatKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func testSigner(t *testing.T) *crypto.Signer {
	t.Helper()
	pk, err := crypto.ParseKey(hardhatKey)
	require.NoError(t, err)
	return crypto.NewSigner(pk)
}

func TestKeyWalletSendTransaction(t *testing.T) {
	b := newFakeBackend(16602)
	b.nonce = 4
	w := NewKeyWallet(testSigner(t), b, nil, nil, discardLogger())

	hash, err := w.SendTransaction(context.Background(), TxRequest{
		To:       routerAddr,
		Data:     []byte{0xde, 0xad},
		GasPrice: big.NewInt(3_000_000_000),
	})
	require.NoError(t, err)
	require.Len(t, b.sent, 1)

	tx := b.sent[0]
	assert.Equal(t, hash, tx.Hash())
	assert.Equal(t, uint64(4), tx.Nonce())
	assert.Equal(t, uint64(90_000), tx.Gas())
	assert.Equal(t, int64(3_000_000_000), tx.GasPrice().Int64())
	assert.Equal(t, uint8(types.LegacyTxType), tx.Type())

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(16602)), tx)
	require.NoError(t, err)
	assert.Equal(t, w.Address(), from)
}

func TestKeyWalletSwitchChain(t *testing.T) {
	start := newFakeBackend(1)
	target := newFakeBackend(16602)
	resolve := func(id int64) (string, bool) { return "http://rpc", id == 16602 }
	dial := func(context.Context, string) (Backend, error) { return target, nil }
	w := NewKeyWallet(testSigner(t), start, resolve, dial, discardLogger())

	require.NoError(t, w.SwitchChain(context.Background(), 16602))
	id, err := w.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(16602), id)

	assert.Error(t, w.SwitchChain(context.Background(), 137))
}

func TestKeyWalletSwitchWrongRPC(t *testing.T) {
	resolve := func(int64) (string, bool) { return "http://rpc", true }
	dial := func(context.Context, string) (Backend, error) { return newFakeBackend(5), nil }
	w := NewKeyWallet(testSigner(t), newFakeBackend(1), resolve, dial, discardLogger())

	assert.ErrorContains(t, w.SwitchChain(context.Background(), 16602), "reports chain 5")
}

func TestKeyring(t *testing.T) {
	k := NewKeyring()
	w := &recordingWallet{addr: holder}
	k.Add(w)

	got, err := k.Get("0x4000000000000000000000000000000000000004")
	require.NoError(t, err)
	assert.Equal(t, holder, got.Address())

	_, err = k.Get("0x5000000000000000000000000000000000000005")
	assert.True(t, errors.Is(err, domain.ErrWalletNotConnected))
	_, err = k.Get("nope")
	assert.ErrorIs(t, err, domain.ErrWalletNotConnected)
	assert.Equal(t, []string{holder.Hex()}, k.Addresses())
}
