package domain

import (
	"strings"
	"time"
)

// Attribute is a single key/value trait of an NFT.
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Metadata is the JSON document pinned to IPFS and referenced by the token URI.
// Field order is the serialization order.
type Metadata struct {
	Name        string      `json:"name"`
	Image       string      `json:"image"`
	Description string      `json:"description"`
	Attributes  []Attribute `json:"attributes"`
}

// MintForm is the raw form input of the minter screen.
type MintForm struct {
	URL         string      `json:"url"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Attributes  []Attribute `json:"attributes"`
}

// CompleteAttributes returns the attribute pairs whose key and value are
// both non-blank, in their original order.
func CompleteAttributes(attrs []Attribute) []Attribute {
	out := make([]Attribute, 0, len(attrs))
	for _, a := range attrs {
		if strings.TrimSpace(a.Key) == "" || strings.TrimSpace(a.Value) == "" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// MintState is a state of the mint pipeline.
type MintState string

const (
	MintStateIdle       MintState = "IDLE"
	MintStateValidating MintState = "VALIDATING"
	MintStatePinning    MintState = "PINNING"
	MintStateSigning    MintState = "SIGNING"
	MintStateConfirming MintState = "CONFIRMING"
	MintStateSuccess    MintState = "SUCCESS"
	MintStateFailed     MintState = "FAILED"
	MintStatePending    MintState = "PENDING"
)

// MintResult is the outcome of one mint pipeline run.
type MintResult struct {
	Success         bool      `json:"success"`
	State           MintState `json:"state"`
	Status          Status    `json:"status"`
	TransactionHash string    `json:"transaction_hash,omitempty"`
	TokenID         *uint64   `json:"token_id,omitempty"`
	TokenURI        string    `json:"token_uri,omitempty"`
	ExplorerURL     string    `json:"explorer_url,omitempty"`
}

// WalletSession is the account and chain currently authorized by the
// wallet provider. It is rebuilt from the provider, never stored.
type WalletSession struct {
	Address string `json:"address,omitempty"`
	ChainID *int64 `json:"chain_id,omitempty"`
}

// Connected reports whether an account is authorized.
func (s WalletSession) Connected() bool {
	return s.Address != ""
}

// GalleryItem is the display model of an owned NFT.
type GalleryItem struct {
	Image           string      `json:"image"`
	Name            string      `json:"name"`
	Description     string      `json:"description"`
	ContractAddress string      `json:"contract_address"`
	TokenID         string      `json:"token_id"`
	Attributes      []Attribute `json:"attributes"`
}

// OwnedNFT is one entry of an indexer ownership response, before
// normalization.
type OwnedNFT struct {
	ContractAddress string
	TokenID         string
	Title           string
	Description     string
	MediaGateway    string
	Metadata        *OwnedMetadata
}

// OwnedMetadata is the indexer's copy of the token's off-chain metadata.
type OwnedMetadata struct {
	Name        string
	Description string
	Image       string
	Attributes  []Attribute
}

// PendingMint is a submitted mint transaction whose receipt has not been
// seen yet.
type PendingMint struct {
	TxHash      string    `json:"tx_hash"`
	Signer      string    `json:"signer"`
	Contract    string    `json:"contract"`
	TokenURI    string    `json:"token_uri"`
	ExplorerURL string    `json:"explorer_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
