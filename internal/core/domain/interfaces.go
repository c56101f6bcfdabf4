package domain

import (
	"context"
	"io"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Pinner uploads content to a pinning service and returns a gateway URL
// for it.
type Pinner interface {
	PinJSON(ctx context.Context, v interface{}) (string, error)
	PinFile(ctx context.Context, name string, r io.Reader) (string, error)
}

// TxRequest is an unsigned contract call handed to the wallet for signing.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

// Wallet is the wallet provider surface the mint pipeline needs.
type Wallet interface {
	// Available reports whether a provider is configured and reachable.
	Available(ctx context.Context) bool
	// Accounts lists the authorized accounts without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	// SendTransaction asks the provider to sign and broadcast tx.
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
}

// ReceiptSource looks up transaction receipts. *ethclient.Client satisfies it.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// ReceiptWaiter blocks until a submitted transaction is mined. It returns
// ErrConfirmationTimeout when the confirmation window elapses first.
type ReceiptWaiter interface {
	Wait(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// MintCallBuilder packs the contract call that mints tokenURI to recipient
// and reads the minted token id back from the receipt.
type MintCallBuilder interface {
	Contract() common.Address
	PackMint(to common.Address, tokenURI string) ([]byte, error)
	TokenID(receipt *types.Receipt) (uint64, bool)
}

// OwnershipIndexer lists the NFTs owned by an address.
type OwnershipIndexer interface {
	OwnedNFTs(ctx context.Context, owner string) ([]OwnedNFT, error)
}

// MintGuard prevents overlapping mints for the same key.
type MintGuard interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// MintJournal remembers submitted mints until their receipt is known, so a
// crash or a closed confirmation window does not lose track of them.
type MintJournal interface {
	Record(p PendingMint) error
	Resolve(txHash string) error
}
