package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

var transferEventSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

var _ domain.ReceiptWaiter = (*ReceiptWaiter)(nil)

// ReceiptWaiter polls a receipt source until a transaction is mined.
type ReceiptWaiter struct {
	source   domain.ReceiptSource
	interval time.Duration
	timeout  time.Duration
}

// NewReceiptWaiter creates a waiter. A zero timeout waits until ctx is done.
func NewReceiptWaiter(source domain.ReceiptSource, interval, timeout time.Duration) *ReceiptWaiter {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &ReceiptWaiter{source: source, interval: interval, timeout: timeout}
}

// Wait blocks until the receipt of txHash is available. It returns
// domain.ErrConfirmationTimeout when the waiter's own window elapses, and ctx.Err()
// when the caller cancels.
func (w *ReceiptWaiter) Wait(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	waitCtx := ctx
	if w.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		receipt, err := w.source.TransactionReceipt(waitCtx, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && !isContextErr(err) {
			return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, domain.ErrConfirmationTimeout
		case <-ticker.C:
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// TokenIDFromReceipt returns the token id of the first ERC-721 Transfer log
// emitted by contract.
func TokenIDFromReceipt(receipt *types.Receipt, contract common.Address) (uint64, bool) {
	if receipt == nil {
		return 0, false
	}
	for _, log := range receipt.Logs {
		if log.Address != contract || len(log.Topics) < 4 || log.Topics[0] != transferEventSig {
			continue
		}
		tokenID := new(big.Int).SetBytes(log.Topics[3].Bytes())
		if !tokenID.IsUint64() {
			return 0, false
		}
		return tokenID.Uint64(), true
	}
	return 0, false
}
