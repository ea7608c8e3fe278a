// Package decode turns raw event logs and transaction receipts into typed
// transfer/sale records, dispatching purely on topic0, registry membership,
// and block height. It performs no I/O.
package decode

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"

	"github.com/roninchain/indexer/model"
	"github.com/roninchain/indexer/registry"
)

// LogID derives the deterministic, replay-stable primary key for a decoded
// transfer: sha256_hex(transaction_id + "-" + log_index).
func LogID(txHash model.TxHash, logIndex string) string {
	sum := sha256.Sum256([]byte(txHash + "-" + logIndex))
	return hex.EncodeToString(sum[:])
}

// topicAddress renders a 32-byte topic's address payload as a lowercase
// "0x"-prefixed 40-hex-digit string.
func topicAddress(topic [32]byte) model.Address {
	return "0x" + strings.ToLower(hex.EncodeToString(topic[12:]))
}

// topicUint renders a 32-byte topic's integer payload as a decimal string
// with no leading zeros ("0" for zero).
func topicUint(topic [32]byte) string {
	return new(big.Int).SetBytes(topic[:]).String()
}

// dataUint renders the 32-byte word at index `word` of a log's non-indexed
// data payload as a decimal string. It errors rather than coercing on truncated data:
// decode errors must surface, not silently produce a plausible-looking "0".
func dataUint(data []byte, word int) (string, error) {
	start := word * 32
	if start+32 > len(data) {
		return "", fmt.Errorf("decode: data has %d bytes, word %d needs %d", len(data), word, start+32)
	}
	return new(big.Int).SetBytes(data[start : start+32]).String(), nil
}

// dataAddress renders the address occupying word `word` of a log's
// non-indexed data payload. Like dataUint, truncated data is an error.
func dataAddress(data []byte, word int) (model.Address, error) {
	start := word * 32
	if start+32 > len(data) {
		return "", fmt.Errorf("decode: data has %d bytes, word %d needs %d", len(data), word, start+32)
	}
	var buf [32]byte
	copy(buf[:], data[start:start+32])
	return topicAddress(buf), nil
}

// logIndexHex renders a log index the way the rest of the system does:
// "0x" + lowercase hex, no leading zeros (0 renders as "0x0").
func logIndexHex(index uint) string {
	return fmt.Sprintf("0x%x", index)
}

// Transfer dispatches a single log against the registry and current block
// height, returning a decoded ERCTransfer or ERC1155Transfer. Both return
// values are nil when the log does not match any known schema.
func Transfer(reg *registry.Registry, log *types.Log, currentBlock model.Block) (*model.ERCTransfer, *model.ERC1155Transfer, error) {
	if log == nil || len(log.Topics) == 0 {
		return nil, nil, nil
	}
	topic0 := strings.ToLower(log.Topics[0].Hex())
	address := strings.ToLower(log.Address.Hex())

	switch {
	case topic0 == registry.TopicERCTransfer:
		entry, ok := reg.Lookup(address)
		if !ok {
			return nil, nil, nil
		}
		switch entry.Standard {
		case model.StandardERC20, model.StandardERC721:
			t, err := decodeERCTransfer(log, address, entry.Standard, currentBlock)
			return t, nil, err
		default:
			return nil, nil, nil
		}

	case currentBlock > registry.ERC1155DeployBlock && topic0 == registry.TopicERC1155TransferSingle:
		if !reg.IsStandard(address, model.StandardERC1155) {
			return nil, nil, nil
		}
		t, err := decodeERC1155Transfer(log, address, currentBlock)
		return nil, t, err
	}

	return nil, nil, nil
}

func decodeERCTransfer(log *types.Log, token model.Address, standard model.TokenStandard, block model.Block) (*model.ERCTransfer, error) {
	if len(log.Topics) < 3 {
		return nil, fmt.Errorf("decode: ERC transfer log has %d topics, want 3", len(log.Topics))
	}
	from := topicAddress(log.Topics[1])
	to := topicAddress(log.Topics[2])

	var valueOrTokenID string
	switch standard {
	case model.StandardERC721:
		// ERC-721's third topic is an indexed tokenId, not data.
		if len(log.Topics) < 4 {
			return nil, fmt.Errorf("decode: ERC-721 transfer log has %d topics, want 4", len(log.Topics))
		}
		valueOrTokenID = topicUint(log.Topics[3])
	case model.StandardERC20:
		v, err := dataUint(log.Data, 0)
		if err != nil {
			return nil, fmt.Errorf("decode: ERC-20 transfer value: %w", err)
		}
		valueOrTokenID = v
	}

	logIndex := logIndexHex(log.Index)
	txHash := strings.ToLower(log.TxHash.Hex())

	return &model.ERCTransfer{
		From:           from,
		To:             to,
		Token:          token,
		ValueOrTokenID: valueOrTokenID,
		Block:          block,
		TransactionID:  txHash,
		ERC:            standard,
		LogIndex:       logIndex,
		LogID:          LogID(txHash, logIndex),
	}, nil
}

func decodeERC1155Transfer(log *types.Log, token model.Address, block model.Block) (*model.ERC1155Transfer, error) {
	if len(log.Topics) < 4 {
		return nil, fmt.Errorf("decode: ERC-1155 TransferSingle log has %d topics, want 4", len(log.Topics))
	}
	operator := topicAddress(log.Topics[1])
	from := topicAddress(log.Topics[2])
	to := topicAddress(log.Topics[3])
	tokenID, err := dataUint(log.Data, 0)
	if err != nil {
		return nil, fmt.Errorf("decode: ERC-1155 token id: %w", err)
	}
	value, err := dataUint(log.Data, 1)
	if err != nil {
		return nil, fmt.Errorf("decode: ERC-1155 value: %w", err)
	}

	logIndex := logIndexHex(log.Index)
	txHash := strings.ToLower(log.TxHash.Hex())

	return &model.ERC1155Transfer{
		Token:         token,
		Operator:      operator,
		From:          from,
		To:            to,
		TokenID:       tokenID,
		Value:         value,
		Block:         block,
		TransactionID: txHash,
		LogIndex:      logIndex,
		LogID:         LogID(txHash, logIndex),
	}, nil
}

// Sale decodes the at-most-one marketplace sale for a transaction's receipt
// logs, choosing the Marketplace V2 or Legacy schema by block height.
func Sale(reg *registry.Registry, receiptLogs []*types.Log, currentBlock model.Block, createdAt model.Timestamp) (*model.Sale, error) {
	if currentBlock > registry.MarketplaceV2DeployBlock {
		return saleMarketplaceV2(reg, receiptLogs, currentBlock, createdAt)
	}
	return saleLegacy(reg, receiptLogs, currentBlock, createdAt)
}

func saleMarketplaceV2(reg *registry.Registry, receiptLogs []*types.Log, currentBlock model.Block, createdAt model.Timestamp) (*model.Sale, error) {
	var orderLog *types.Log
	for _, l := range receiptLogs {
		if l != nil && len(l.Topics) > 0 && strings.ToLower(l.Topics[0].Hex()) == registry.TopicMarketplaceV2OrderMatched {
			orderLog = l
			break
		}
	}
	if orderLog == nil {
		return nil, nil
	}

	seller, err := dataAddress(orderLog.Data, 1)
	if err != nil {
		return nil, fmt.Errorf("decode: marketplace v2 seller: %w", err)
	}
	buyer, err := dataAddress(orderLog.Data, 2)
	if err != nil {
		return nil, fmt.Errorf("decode: marketplace v2 buyer: %w", err)
	}
	price, err := dataUint(orderLog.Data, 7)
	if err != nil {
		return nil, fmt.Errorf("decode: marketplace v2 price: %w", err)
	}
	sellerReceived, err := dataUint(orderLog.Data, 8)
	if err != nil {
		return nil, fmt.Errorf("decode: marketplace v2 seller received: %w", err)
	}

	var transferLog *types.Log
	for _, l := range receiptLogs {
		if l == nil || len(l.Topics) == 0 {
			continue
		}
		if strings.ToLower(l.Topics[0].Hex()) != registry.TopicERCTransfer {
			continue
		}
		if reg.IsStandard(strings.ToLower(l.Address.Hex()), model.StandardERC721) {
			transferLog = l
			break
		}
	}
	if transferLog == nil {
		return nil, nil
	}
	if len(transferLog.Topics) < 4 {
		return nil, fmt.Errorf("decode: sale transfer log has %d topics, want 4", len(transferLog.Topics))
	}

	return &model.Sale{
		Seller:         seller,
		Buyer:          buyer,
		Price:          price,
		SellerReceived: sellerReceived,
		Token:          strings.ToLower(transferLog.Address.Hex()),
		TokenID:        topicUint(transferLog.Topics[3]),
		TransactionID:  strings.ToLower(transferLog.TxHash.Hex()),
		CreatedAt:      createdAt,
		Block:          currentBlock,
	}, nil
}

func saleLegacy(reg *registry.Registry, receiptLogs []*types.Log, currentBlock model.Block, createdAt model.Timestamp) (*model.Sale, error) {
	var auctionLog *types.Log
	for _, l := range receiptLogs {
		if l != nil && len(l.Topics) > 0 && strings.ToLower(l.Topics[0].Hex()) == registry.TopicLegacyAuctionSuccessful {
			auctionLog = l
			break
		}
	}
	if auctionLog == nil {
		return nil, nil
	}

	var transferLog *types.Log
	for _, l := range receiptLogs {
		if l == nil || len(l.Topics) == 0 {
			continue
		}
		if strings.ToLower(l.Topics[0].Hex()) != registry.TopicERCTransfer {
			continue
		}
		addr := strings.ToLower(l.Address.Hex())
		if addr == registry.WETHAddress {
			continue
		}
		if reg.IsStandard(addr, model.StandardERC721) {
			transferLog = l
			break
		}
	}
	if transferLog == nil {
		return nil, nil
	}
	if len(transferLog.Topics) < 4 {
		return nil, fmt.Errorf("decode: legacy sale transfer log has %d topics, want 4", len(transferLog.Topics))
	}

	seller, err := dataAddress(auctionLog.Data, 0)
	if err != nil {
		return nil, fmt.Errorf("decode: legacy sale seller: %w", err)
	}
	buyer, err := dataAddress(auctionLog.Data, 1)
	if err != nil {
		return nil, fmt.Errorf("decode: legacy sale buyer: %w", err)
	}
	price, err := dataUint(auctionLog.Data, 4)
	if err != nil {
		return nil, fmt.Errorf("decode: legacy sale price: %w", err)
	}

	return &model.Sale{
		Seller:         seller,
		Buyer:          buyer,
		Price:          price,
		SellerReceived: price,
		Token:          strings.ToLower(transferLog.Address.Hex()),
		TokenID:        topicUint(transferLog.Topics[3]),
		TransactionID:  strings.ToLower(transferLog.TxHash.Hex()),
		CreatedAt:      createdAt,
		Block:          currentBlock,
	}, nil
}
