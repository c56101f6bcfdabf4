package chain

import (
	"fmt"
	"strings"
)

type network struct {
	name     string
	explorer string
}

// DefaultChainID is Sepolia.
const DefaultChainID int64 = 11155111

var networks = map[int64]network{
	1:        {"Ethereum Mainnet", "https://etherscan.io"},
	11155111: {"Sepolia Testnet", "https://sepolia.etherscan.io"},
	17000:    {"Holesky Testnet", "https://holesky.etherscan.io"},
	137:      {"Polygon Mainnet", "https://polygonscan.com"},
	80002:    {"Polygon Amoy Testnet", "https://amoy.polygonscan.com"},
}

// ExplorerBase returns the block explorer for chainID, or override when set.
// Unknown chains fall back to the Sepolia explorer.
func ExplorerBase(chainID int64, override string) string {
	if override != "" {
		return strings.TrimRight(override, "/")
	}
	if n, ok := networks[chainID]; ok {
		return n.explorer
	}
	return networks[DefaultChainID].explorer
}

// NetworkName returns a display name for chainID.
func NetworkName(chainID int64) string {
	if n, ok := networks[chainID]; ok {
		return n.name
	}
	return fmt.Sprintf("chain %d", chainID)
}
