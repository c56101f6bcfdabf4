package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

// codeUserRejected is the EIP-1193 error code for a declined request.
const codeUserRejected = 4001

const insufficientFundsMsg = "Insufficient funds for transaction. Please check your wallet balance."

// Provider is an EIP-1193 style wallet. It authorizes accounts and signs
// on the user's behalf; private keys never leave it.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (int64, error)
	SendTransaction(ctx context.Context, tx domain.TxRequest) (common.Hash, error)
}

// RPCProvider talks to an external wallet (Frame, Clef, a browser bridge)
// over Ethereum JSON-RPC.
type RPCProvider struct {
	client *rpc.Client
	logger *zap.Logger
}

// DialProvider connects to the wallet at rawurl. HTTP endpoints are dialed
// lazily, so an unreachable wallet surfaces on the first call.
func DialProvider(ctx context.Context, rawurl string, logger *zap.Logger) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("failed to dial wallet provider: %w", err)
	}
	return NewRPCProvider(client, logger), nil
}

// NewRPCProvider wraps an existing RPC client.
func NewRPCProvider(client *rpc.Client, logger *zap.Logger) *RPCProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RPCProvider{client: client, logger: logger.Named("wallet")}
}

// Client exposes the underlying RPC client, e.g. for an ethclient reading
// receipts through the same endpoint.
func (p *RPCProvider) Client() *rpc.Client {
	return p.client
}

// Close releases the connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}

func (p *RPCProvider) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.client.CallContext(ctx, &accounts, "eth_requestAccounts"); err != nil {
		return nil, classify("request accounts", err, "User rejected the request.")
	}
	return accounts, nil
}

func (p *RPCProvider) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := p.client.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, classify("accounts", err, "User rejected the request.")
	}
	return accounts, nil
}

func (p *RPCProvider) ChainID(ctx context.Context) (int64, error) {
	var id hexutil.Big
	if err := p.client.CallContext(ctx, &id, "eth_chainId"); err != nil {
		return 0, classify("chain id", err, "User rejected the request.")
	}
	return (*big.Int)(&id).Int64(), nil
}

// SendTransaction asks the wallet to sign and broadcast tx.
func (p *RPCProvider) SendTransaction(ctx context.Context, tx domain.TxRequest) (common.Hash, error) {
	args := map[string]interface{}{
		"from": tx.From,
		"to":   tx.To,
		"data": hexutil.Bytes(tx.Data),
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		args["value"] = (*hexutil.Big)(tx.Value)
	}

	var hash common.Hash
	if err := p.client.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		p.logger.Warn("send transaction failed", zap.String("from", tx.From.Hex()), zap.Error(err))
		return common.Hash{}, classify("send transaction", err, "Transaction rejected by user.")
	}
	p.logger.Info("transaction submitted", zap.String("from", tx.From.Hex()), zap.String("hash", hash.Hex()))
	return hash, nil
}

// classify maps a JSON-RPC failure onto the domain error kinds.
func classify(op string, err error, rejectedMsg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.NewError(domain.KindNetwork, op, "wallet request timed out", err)
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		msg := rpcErr.Error()
		switch {
		case rpcErr.ErrorCode() == codeUserRejected:
			return domain.NewError(domain.KindUserRejected, op, rejectedMsg, err)
		case strings.Contains(strings.ToLower(msg), "insufficient funds"):
			return domain.NewError(domain.KindInsufficientFunds, op, insufficientFundsMsg, err)
		default:
			return domain.NewError(domain.KindAPI, op, msg, err)
		}
	}

	var httpErr rpc.HTTPError
	if errors.As(err, &httpErr) {
		return domain.NewError(domain.KindAPI, op,
			fmt.Sprintf("wallet provider returned %s", httpErr.Status), err)
	}

	return domain.NewError(domain.KindProviderUnavailable, op,
		"🦊 Wallet provider is unreachable. Please click here to install MetaMask.", err)
}
