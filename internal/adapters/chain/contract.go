package chain

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

var _ domain.MintCallBuilder = (*MintContract)(nil)

// DefaultMintMethod is the mint entry point of the default contract ABI.
const DefaultMintMethod = "mintNFT"

// defaultABI covers the entry points consumed here: the mint call and the
// ERC-721 Transfer event used to recover the minted token id.
const defaultABI = `[
	{
		"name": "mintNFT",
		"type": "function",
		"inputs": [
			{"name": "recipient", "type": "address"},
			{"name": "tokenURI", "type": "string"}
		],
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "nonpayable"
	},
	{
		"name": "mint",
		"type": "function",
		"inputs": [
			{"name": "to", "type": "address"},
			{"name": "tokenURI", "type": "string"}
		],
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "nonpayable"
	},
	{
		"name": "tokenURI",
		"type": "function",
		"inputs": [{"name": "tokenId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view"
	},
	{
		"anonymous": false,
		"name": "Transfer",
		"type": "event",
		"inputs": [
			{"indexed": true, "name": "from", "type": "address"},
			{"indexed": true, "name": "to", "type": "address"},
			{"indexed": true, "name": "tokenId", "type": "uint256"}
		]
	}
]`

// MintContract packs calls against the deployed NFT contract.
type MintContract struct {
	address common.Address
	abi     abi.ABI
	method  string
}

// ParseABI parses a contract ABI. An empty string yields the default ABI.
func ParseABI(abiJSON string) (abi.ABI, error) {
	if strings.TrimSpace(abiJSON) == "" {
		abiJSON = defaultABI
	}
	return abi.JSON(strings.NewReader(abiJSON))
}

// LoadABI reads an ABI file. Both a bare ABI array and a compiler artifact
// with an "abi" field are accepted.
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return ParseABI("")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to read contract ABI: %w", err)
	}
	if artifact, ok := abiFromArtifact(data); ok {
		data = artifact
	}
	parsed, err := ParseABI(string(data))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse contract ABI %s: %w", path, err)
	}
	return parsed, nil
}

// NewMintContract binds the mint method of contractABI at address. The
// method must take (address, string).
func NewMintContract(address string, contractABI abi.ABI, method string) (*MintContract, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid contract address: %q", address)
	}
	if method == "" {
		method = DefaultMintMethod
	}
	m, ok := contractABI.Methods[method]
	if !ok {
		return nil, fmt.Errorf("contract ABI has no method %q", method)
	}
	if len(m.Inputs) != 2 || m.Inputs[0].Type.T != abi.AddressTy || m.Inputs[1].Type.T != abi.StringTy {
		return nil, fmt.Errorf("method %s must take (address, string), has %s", method, m.Sig)
	}
	return &MintContract{
		address: common.HexToAddress(address),
		abi:     contractABI,
		method:  method,
	}, nil
}

// Contract returns the contract address.
func (c *MintContract) Contract() common.Address {
	return c.address
}

// Method returns the bound mint method name.
func (c *MintContract) Method() string {
	return c.method
}

// PackMint packs the call data minting tokenURI to recipient.
func (c *MintContract) PackMint(to common.Address, tokenURI string) ([]byte, error) {
	data, err := c.abi.Pack(c.method, to, tokenURI)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", c.method, err)
	}
	return data, nil
}

// TokenID reads the minted token id from the Transfer log of receipt.
func (c *MintContract) TokenID(receipt *types.Receipt) (uint64, bool) {
	return TokenIDFromReceipt(receipt, c.address)
}

func abiFromArtifact(data []byte) ([]byte, bool) {
	var artifact struct {
		ABI json.RawMessage `json:"abi"`
	}
	if err := json.Unmarshal(data, &artifact); err != nil || len(artifact.ABI) == 0 {
		return nil, false
	}
	return artifact.ABI, true
}
