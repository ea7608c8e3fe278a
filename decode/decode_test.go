package decode

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roninchain/indexer/model"
	"github.com/roninchain/indexer/registry"
)

func addressTopic(addr string) common.Hash {
	return common.BytesToHash(common.HexToAddress(addr).Bytes())
}

func uintTopic(v int64) common.Hash {
	return common.BigToHash(big.NewInt(v))
}

func uintWord(v int64) []byte {
	return common.LeftPadBytes(big.NewInt(v).Bytes(), 32)
}

func TestLogID(t *testing.T) {
	// Property 2: deterministic log_id.
	id := LogID("0xabc", "0x0")
	assert.Len(t, id, 64)
	assert.Equal(t, LogID("0xabc", "0x0"), id)
	assert.NotEqual(t, LogID("0xabc", "0x1"), id)
}

func TestTransferE1ERC20(t *testing.T) {
	reg := registry.New()
	weth := "0xc99a6a985ed2cac1ef41640596c5a5f9f4e19ef5"

	log := &types.Log{
		Address: common.HexToAddress(weth),
		Topics: []common.Hash{
			common.HexToHash(registry.TopicERCTransfer),
			addressTopic("0x0000000000000000000000000000000000000001"),
			addressTopic("0x0000000000000000000000000000000000000002"),
		},
		Data:   uintWord(10),
		TxHash: common.HexToHash("0xabc"),
		Index:  0,
	}

	transfer, transfer1155, err := Transfer(reg, log, 20_000_000)
	require.NoError(t, err)
	require.Nil(t, transfer1155)
	require.NotNil(t, transfer)

	assert.Equal(t, "0x0000000000000000000000000000000000000001", transfer.From)
	assert.Equal(t, "0x0000000000000000000000000000000000000002", transfer.To)
	assert.Equal(t, weth, transfer.Token)
	assert.Equal(t, "10", transfer.ValueOrTokenID)
	assert.Equal(t, model.StandardERC20, transfer.ERC)
}

func TestTransferE2ERC721AXIE(t *testing.T) {
	reg := registry.New()
	axie := "0x32950db2a7164ae833121501c797d79e7b79d74c"

	log := &types.Log{
		Address: common.HexToAddress(axie),
		Topics: []common.Hash{
			common.HexToHash(registry.TopicERCTransfer),
			addressTopic("0x0000000000000000000000000000000000000001"),
			addressTopic("0x0000000000000000000000000000000000000002"),
			uintTopic(42),
		},
		TxHash: common.HexToHash("0xdef"),
		Index:  0,
	}

	transfer, transfer1155, err := Transfer(reg, log, 17_000_000)
	require.NoError(t, err)
	require.Nil(t, transfer1155)
	require.NotNil(t, transfer)

	assert.Equal(t, model.StandardERC721, transfer.ERC)
	assert.Equal(t, "42", transfer.ValueOrTokenID)
}

func TestTransferE3ERC1155Charm(t *testing.T) {
	reg := registry.New()
	charm := "0x707bbb6ee62a5b8bf5358bb9737e0b1a3bcef9d1"

	data := append(append([]byte{}, uintWord(7)...), uintWord(3)...)
	log := &types.Log{
		Address: common.HexToAddress(charm),
		Topics: []common.Hash{
			common.HexToHash(registry.TopicERC1155TransferSingle),
			addressTopic("0x0000000000000000000000000000000000000009"),
			addressTopic("0x0000000000000000000000000000000000000001"),
			addressTopic("0x0000000000000000000000000000000000000002"),
		},
		Data:   data,
		TxHash: common.HexToHash("0x111"),
		Index:  1,
	}

	transfer, transfer1155, err := Transfer(reg, log, 17_000_000)
	require.NoError(t, err)
	require.Nil(t, transfer)
	require.NotNil(t, transfer1155)

	assert.Equal(t, "7", transfer1155.TokenID)
	assert.Equal(t, "3", transfer1155.Value)
}

func TestERC1155GatedBelowActivationHeight(t *testing.T) {
	// Property 7: height-gated dispatch.
	reg := registry.New()
	charm := "0x707bbb6ee62a5b8bf5358bb9737e0b1a3bcef9d1"

	log := &types.Log{
		Address: common.HexToAddress(charm),
		Topics: []common.Hash{
			common.HexToHash(registry.TopicERC1155TransferSingle),
			addressTopic("0x0000000000000000000000000000000000000009"),
			addressTopic("0x0000000000000000000000000000000000000001"),
			addressTopic("0x0000000000000000000000000000000000000002"),
		},
		Data:   append(append([]byte{}, uintWord(7)...), uintWord(3)...),
		TxHash: common.HexToHash("0x111"),
	}

	transfer, transfer1155, err := Transfer(reg, log, registry.ERC1155DeployBlock)
	require.NoError(t, err)
	assert.Nil(t, transfer)
	assert.Nil(t, transfer1155)
}

func TestSaleE4MarketplaceV2(t *testing.T) {
	reg := registry.New()
	axie := "0x32950db2a7164ae833121501c797d79e7b79d74c"
	seller := "0x00000000000000000000000000000000000000aa"
	buyer := "0x00000000000000000000000000000000000000bb"

	orderLog := &types.Log{
		Topics: []common.Hash{common.HexToHash(registry.TopicMarketplaceV2OrderMatched)},
		Data: concatWords(
			uintWord(0), addressWord(seller), addressWord(buyer),
			uintWord(0), uintWord(0), uintWord(0), uintWord(0),
			uintWord(1000), uintWord(950),
		),
		TxHash: common.HexToHash("0x222"),
	}
	transferLog := &types.Log{
		Address: common.HexToAddress(axie),
		Topics: []common.Hash{
			common.HexToHash(registry.TopicERCTransfer),
			addressTopic(seller),
			addressTopic(buyer),
			uintTopic(99),
		},
		TxHash: common.HexToHash("0x222"),
	}

	sale, err := Sale(reg, []*types.Log{orderLog, transferLog}, 17_000_000, 1234)
	require.NoError(t, err)
	require.NotNil(t, sale)

	assert.Equal(t, seller, sale.Seller)
	assert.Equal(t, buyer, sale.Buyer)
	assert.Equal(t, "1000", sale.Price)
	assert.Equal(t, "950", sale.SellerReceived)
	assert.Equal(t, axie, sale.Token)
	assert.Equal(t, "99", sale.TokenID)
}

func TestSaleE5Legacy(t *testing.T) {
	reg := registry.New()
	axie := "0x32950db2a7164ae833121501c797d79e7b79d74c"
	seller := "0x000000000000000000000000000000000000aa"
	buyer := "0x000000000000000000000000000000000000bb"

	auctionLog := &types.Log{
		Topics: []common.Hash{common.HexToHash(registry.TopicLegacyAuctionSuccessful)},
		Data: concatWords(
			addressWord(seller), addressWord(buyer), uintWord(0), uintWord(0), uintWord(500),
		),
		TxHash: common.HexToHash("0x333"),
	}
	transferLog := &types.Log{
		Address: common.HexToAddress(axie),
		Topics: []common.Hash{
			common.HexToHash(registry.TopicERCTransfer),
			addressTopic(seller),
			addressTopic(buyer),
			uintTopic(7),
		},
		TxHash: common.HexToHash("0x333"),
	}

	sale, err := Sale(reg, []*types.Log{auctionLog, transferLog}, 15_000_000, 999)
	require.NoError(t, err)
	require.NotNil(t, sale)
	assert.Equal(t, sale.Price, sale.SellerReceived)
	assert.Equal(t, "500", sale.Price)
}

func concatWords(words ...[]byte) []byte {
	var out []byte
	for _, w := range words {
		out = append(out, w...)
	}
	return out
}

func addressWord(addr string) []byte {
	return common.LeftPadBytes(common.HexToAddress(addr).Bytes(), 32)
}
