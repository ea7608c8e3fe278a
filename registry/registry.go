// Package registry holds the static, process-wide allow-list of token
// contracts and event schemas the decoder is permitted to act on.
package registry

import (
	"strings"

	"github.com/roninchain/indexer/model"
)

// Activation heights gating dispatch by block height.
const (
	MarketplaceV2DeployBlock model.Block = 16_027_461
	ERC1155DeployBlock       model.Block = 16_171_588
)

// WETHAddress is the wrapped-ether (WETH) contract excluded from legacy sale
// transfer-log matching (see decode.Sale).
const WETHAddress = "0xc99a6a985ed2cac1ef41640596c5a5f9f4e19ef5"

// Canonical topic0 hashes the decoder dispatches on.
const (
	TopicERCTransfer          = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"
	TopicERC1155TransferSingle = "0xc3d58168c5ae7397731d063d5bbf3d657854427343f4c083240f7aacaa2d0f62"
	TopicMarketplaceV2OrderMatched = "0xafa0d706792fa5d4e9aaf5e456e08e2a833b1e64a201710b782f29172f6d7a3a"
	TopicLegacyAuctionSuccessful   = "0x0c0258cd7f0d9474f62106c6981c027ea54bee0b323ea1991f4caa7e288a5725"
)

// Entry describes one allow-listed contract.
type Entry struct {
	Name     string
	Decimals int
	Standard model.TokenStandard
}

// Registry is an immutable, lowercase-address-keyed allow-list.
type Registry struct {
	contracts map[model.Address]Entry
}

// entries is the fixed allow-list. Addresses are Ronin mainnet contracts;
// decimals follow each token's own contract metadata.
var entries = map[model.Address]Entry{
	"0xc99a6a985ed2cac1ef41640596c5a5f9f4e19ef5": {Name: "WETH", Decimals: 18, Standard: model.StandardERC20},
	"0xed4a9f48a62fb6fdcfb45bb00c9f61d1a436e58c": {Name: "AXS", Decimals: 18, Standard: model.StandardERC20},
	"0xa8754b9fa15fc18bb59458815510e40a12cd2014": {Name: "SLP", Decimals: 0, Standard: model.StandardERC20},
	"0x173a2d4fa585a63acd02c107d57f932be0a71bcc": {Name: "AEC", Decimals: 0, Standard: model.StandardERC20},
	"0x0b7007c13325c48911f73a2dad5fa5dcbf808adc": {Name: "USDC", Decimals: 18, Standard: model.StandardERC20},
	"0xe514d9deb7966c8be0ca922de8a064264ea6bcd4": {Name: "WRON", Decimals: 18, Standard: model.StandardERC20},
	"0x32950db2a7164ae833121501c797d79e7b79d74c": {Name: "AXIE", Decimals: 0, Standard: model.StandardERC721},
	"0x8c811e3c958e190f5ec15fb376533a3398620500": {Name: "LAND", Decimals: 0, Standard: model.StandardERC721},
	"0xa96660f0e4a3e9bc7388925d245a6d4d79e21259": {Name: "ITEM", Decimals: 0, Standard: model.StandardERC721},
	// CHARM is an ERC-1155 collectible active from ERC1155DeployBlock.
	"0x707bbb6ee62a5b8bf5358bb9737e0b1a3bcef9d1": {Name: "CHARM", Decimals: 0, Standard: model.StandardERC1155},
}

// New returns the process-wide registry.
func New() *Registry {
	r := &Registry{contracts: make(map[model.Address]Entry, len(entries))}
	for addr, e := range entries {
		r.contracts[strings.ToLower(addr)] = e
	}
	return r
}

// Lookup returns the entry for a lowercase contract address.
func (r *Registry) Lookup(address model.Address) (Entry, bool) {
	e, ok := r.contracts[strings.ToLower(address)]
	return e, ok
}

// IsStandard reports whether address is registered under the given standard.
func (r *Registry) IsStandard(address model.Address, standard model.TokenStandard) bool {
	e, ok := r.Lookup(address)
	return ok && e.Standard == standard
}

// Contains reports whether address is on the allow-list at all.
func (r *Registry) Contains(address model.Address) bool {
	_, ok := r.Lookup(address)
	return ok
}
