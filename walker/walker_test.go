package walker

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roninchain/indexer/progress"
	"github.com/roninchain/indexer/registry"
	"github.com/roninchain/indexer/storage"
)

// fakeChain serves a single fixed block/receipt pair, enough to exercise one
// walker step end to end without a live RPC endpoint.
type fakeChain struct {
	block    *types.Block
	receipts map[common.Hash]*types.Receipt
}

func (f *fakeChain) BlockByNumber(_ context.Context, _ uint64) (*types.Block, error) {
	return f.block, nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	return f.receipts[hash], nil
}

func TestWalkerEmptyBlockChecksPointWithoutCommits(t *testing.T) {
	header := &types.Header{Number: big.NewInt(100)}
	block := types.NewBlockWithHeader(header)

	chain := &fakeChain{block: block, receipts: map[common.Hash]*types.Receipt{}}

	backend := storage.NewMemoryBackend()
	gateway := storage.NewGateway(backend, zap.NewNop())
	require.NoError(t, gateway.Bootstrap(context.Background()))
	cp := progress.New(gateway, zap.NewNop())
	reg := registry.New()

	w := New(chain, gateway, cp, reg, Features{Transactions: true}, false, big.NewInt(2020), nil, zap.NewNop())
	require.NoError(t, w.Run(context.Background(), 100, 100, true))

	last, err := gateway.LastBlock()
	require.NoError(t, err)
	assert.EqualValues(t, 100, last)
	assert.Equal(t, 0, gateway.Transactions.Count())
}

func TestWalkerDryRunSkipsCheckpoint(t *testing.T) {
	header := &types.Header{Number: big.NewInt(200)}
	block := types.NewBlockWithHeader(header)
	chain := &fakeChain{block: block, receipts: map[common.Hash]*types.Receipt{}}

	backend := storage.NewMemoryBackend()
	gateway := storage.NewGateway(backend, zap.NewNop())
	require.NoError(t, gateway.Bootstrap(context.Background()))
	cp := progress.New(gateway, zap.NewNop())
	reg := registry.New()

	w := New(chain, gateway, cp, reg, Features{Transactions: true}, true, big.NewInt(2020), nil, zap.NewNop())
	require.NoError(t, w.Run(context.Background(), 200, 200, true))

	last, err := gateway.LastBlock()
	require.NoError(t, err)
	assert.EqualValues(t, 0, last)
}

// TestWalkerRunTwiceOverSameRangeProducesNoDuplicates exercises the
// replay-safety invariant end to end: a block carrying a real ERC-20
// transfer log runs through decode -> pool -> commit twice over the same
// range, and both the transactions and erc_transfers collections must come
// out with exactly one record, not two, on the second pass.
func TestWalkerRunTwiceOverSameRangeProducesNoDuplicates(t *testing.T) {
	chainID := big.NewInt(2020)
	signer := types.LatestSignerForChainID(chainID)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	to := crypto.PubkeyToAddress(key.PublicKey)

	tx := types.NewTransaction(0, to, big.NewInt(0), 21000, big.NewInt(1), nil)
	signedTx, err := types.SignTx(tx, signer, key)
	require.NoError(t, err)

	weth := "0xc99a6a985ed2cac1ef41640596c5a5f9f4e19ef5"
	log := &types.Log{
		Address: common.HexToAddress(weth),
		Topics: []common.Hash{
			common.HexToHash(registry.TopicERCTransfer),
			common.BytesToHash(common.HexToAddress("0x0000000000000000000000000000000000000001").Bytes()),
			common.BytesToHash(common.HexToAddress("0x0000000000000000000000000000000000000002").Bytes()),
		},
		Data:   common.LeftPadBytes(big.NewInt(10).Bytes(), 32),
		TxHash: signedTx.Hash(),
		Index:  0,
	}
	receipt := &types.Receipt{Logs: []*types.Log{log}}

	header := &types.Header{Number: big.NewInt(20_000_000)}
	block := types.NewBlockWithHeader(header).WithBody(types.Body{Transactions: types.Transactions{signedTx}})

	chain := &fakeChain{
		block:    block,
		receipts: map[common.Hash]*types.Receipt{signedTx.Hash(): receipt},
	}

	backend := storage.NewMemoryBackend()
	gateway := storage.NewGateway(backend, zap.NewNop())
	require.NoError(t, gateway.Bootstrap(context.Background()))
	cp := progress.New(gateway, zap.NewNop())
	reg := registry.New()

	w := New(chain, gateway, cp, reg, Features{ERCTransfers: true, Transactions: true}, false, chainID, nil, zap.NewNop())

	require.NoError(t, w.Run(context.Background(), 20_000_000, 20_000_000, true))
	require.NoError(t, w.Run(context.Background(), 20_000_000, 20_000_000, true))

	assert.Equal(t, 1, gateway.Transactions.Count())
	assert.Equal(t, 1, gateway.ERCTransfers.Count())
}
