// Package model defines the normalized entities persisted by the indexer.
package model

// Address is a lowercase hex string with a "0x" prefix.
type Address = string

// TxHash is a hex string with a "0x" prefix.
type TxHash = string

// Block is a chain height.
type Block = uint64

// Timestamp is a millisecond epoch value.
type Timestamp = int64

// TokenStandard categorizes a registered contract.
type TokenStandard string

const (
	StandardERC20   TokenStandard = "ERC20"
	StandardERC721  TokenStandard = "ERC721"
	StandardERC1155 TokenStandard = "ERC1155"
)

// Transaction is a raw chain transaction. Unique by Hash, never mutated.
type Transaction struct {
	From      Address   `json:"from"`
	To        Address   `json:"to"`
	Hash      TxHash    `json:"hash"`
	Block     Block     `json:"block"`
	Timestamp Timestamp `json:"timestamp"`
}

// WalletSeen is the last block/transaction at which a wallet was observed.
type WalletSeen struct {
	Block       Block  `json:"block"`
	Transaction TxHash `json:"transaction"`
}

// Wallet is a unique address with its last-seen activity. Unique by Address.
type Wallet struct {
	Address  Address    `json:"address"`
	LastSeen WalletSeen `json:"last_seen"`
}

// ERCTransfer unifies ERC-20 and ERC-721 transfers. Unique by LogID.
type ERCTransfer struct {
	From            Address       `json:"from"`
	To              Address       `json:"to"`
	Token           Address       `json:"token"`
	ValueOrTokenID  string        `json:"value_or_token_id"`
	Block           Block         `json:"block"`
	TransactionID   TxHash        `json:"transaction_id"`
	ERC             TokenStandard `json:"erc"`
	LogIndex        string        `json:"log_index"`
	LogID           string        `json:"log_id"`
}

// ERC1155Transfer is a decoded TransferSingle event. Unique by LogID.
type ERC1155Transfer struct {
	Token         Address `json:"token"`
	Operator      Address `json:"operator"`
	From          Address `json:"from"`
	To            Address `json:"to"`
	TokenID       string  `json:"token_id"`
	Value         string  `json:"value"`
	Block         Block   `json:"block"`
	TransactionID TxHash  `json:"transaction_id"`
	LogIndex      string  `json:"log_index"`
	LogID         string  `json:"log_id"`
}

// Sale is a decoded marketplace sale. Unique by TransactionID (at most one
// per transaction).
type Sale struct {
	Seller         Address   `json:"seller"`
	Buyer          Address   `json:"buyer"`
	Price          string    `json:"price"`
	SellerReceived string    `json:"seller_received"`
	Token          Address   `json:"token"`
	TokenID        string    `json:"token_id"`
	TransactionID  TxHash    `json:"transaction_id"`
	CreatedAt      Timestamp `json:"created_at"`
	Block          Block     `json:"block"`
}

// Setting is an opaque key/value record. Unique by Key.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// LargestBlockByTxNum is the JSON-encoded value of the
// largest_block_by_tx_num setting.
type LargestBlockByTxNum struct {
	Number Block `json:"number"`
	TxNum  int   `json:"tx_num"`
}

// Reserved setting keys.
const (
	SettingLastBlock       = "last_block"
	SettingLargestByTxNum  = "largest_block_by_tx_num"
	SettingSetupPrefix     = "setup."
)
