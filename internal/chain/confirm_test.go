package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preyanshu/verdict/internal/domain"
)

type dataError struct{ data string }

func (e dataError) Error() string          { return "execution reverted" }
func (e dataError) ErrorData() interface{} { return e.data }

func revertData(t *testing.T, reason string) string {
	t.Helper()
	strType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: strType}}.Pack(reason)
	require.NoError(t, err)
	return hexutil.Encode(append([]byte{0x08, 0xc3, 0x79, 0xa0}, packed...))
}

func pending(hash common.Hash) PendingTx {
	to := routerAddr
	return PendingTx{Hash: hash, Call: ethereum.CallMsg{From: holder, To: &to, Data: []byte{1, 2, 3, 4}}}
}

func TestConfirmerWaitsForReceipt(t *testing.T) {
	b := newFakeBackend(1)
	h := common.HexToHash("0xaa")
	b.receipts[h] = &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(9)}
	b.pendingPolls = 2

	c := NewConfirmer(b, time.Millisecond, 0, discardLogger())
	r, err := c.Wait(context.Background(), pending(h))
	require.NoError(t, err)
	assert.Equal(t, int64(9), r.BlockNumber.Int64())
}

func TestConfirmerRevertReason(t *testing.T) {
	b := newFakeBackend(1)
	h := common.HexToHash("0xbb")
	b.receipts[h] = &types.Receipt{Status: types.ReceiptStatusFailed, BlockNumber: big.NewInt(10)}
	b.replayErr = dataError{data: revertData(t, "slippage")}

	c := NewConfirmer(b, time.Millisecond, 0, discardLogger())
	_, err := c.Wait(context.Background(), pending(h))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTxReverted)

	var re *RevertError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "slippage", re.Reason)
}

func TestConfirmerTimeout(t *testing.T) {
	b := newFakeBackend(1)
	c := NewConfirmer(b, time.Millisecond, 10*time.Millisecond, discardLogger())

	_, err := c.Wait(context.Background(), pending(common.HexToHash("0xcc")))
	assert.ErrorIs(t, err, domain.ErrConfirmTimeout)
}

func TestConfirmerCallerCancel(t *testing.T) {
	b := newFakeBackend(1)
	c := NewConfirmer(b, time.Millisecond, 0, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.Wait(ctx, pending(common.HexToHash("0xdd")))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, domain.ErrConfirmTimeout)
}
