package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/adapters/chain"
	"github.com/nftstudio/nft-minter/internal/adapters/indexer"
	"github.com/nftstudio/nft-minter/internal/adapters/journal"
	"github.com/nftstudio/nft-minter/internal/adapters/lock"
	"github.com/nftstudio/nft-minter/internal/adapters/pinning"
	"github.com/nftstudio/nft-minter/internal/adapters/wallet"
	"github.com/nftstudio/nft-minter/internal/config"
	"github.com/nftstudio/nft-minter/internal/core/domain"
	"github.com/nftstudio/nft-minter/internal/core/service"
	"github.com/nftstudio/nft-minter/internal/metrics"
)

const msgContractMissing = "Contract address is not configured. Set CONTRACT_ADDRESS."

// app holds the adapters built from the configuration. Everything that
// dials out is created on first use so commands only pay for what they
// touch.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	provider  *wallet.RPCProvider
	connector *wallet.Connector
	receipts  *ethclient.Client
	pinata    *pinning.PinataClient
	closers   []func()
}

func newApp(cfg *config.Config, logger *zap.Logger) *app {
	return &app{cfg: cfg, logger: logger, metrics: metrics.New()}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// wallet returns the connector. Without WALLET_RPC_URL it has no provider
// and reports a missing wallet.
func (a *app) wallet(ctx context.Context) *wallet.Connector {
	if a.connector != nil {
		return a.connector
	}
	var provider wallet.Provider
	if a.cfg.WalletRPCURL != "" {
		p, err := wallet.DialProvider(ctx, a.cfg.WalletRPCURL, a.logger)
		if err != nil {
			a.logger.Warn("wallet provider unreachable", zap.String("url", a.cfg.WalletRPCURL), zap.Error(err))
		} else {
			a.provider = p
			a.closers = append(a.closers, p.Close)
			provider = p
		}
	}
	a.connector = wallet.NewConnector(provider, a.cfg.WalletPollInterval, a.logger)
	return a.connector
}

func (a *app) pinner() *pinning.PinataClient {
	if a.pinata == nil {
		a.pinata = pinning.NewPinataClient(pinning.Config{
			APIURL:     a.cfg.PinataAPIURL,
			GatewayURL: a.cfg.PinataGatewayURL,
			Credentials: pinning.Credentials{
				APIKey:    a.cfg.PinataKey,
				APISecret: a.cfg.PinataSecret,
				JWT:       a.cfg.PinataJWT,
			},
		}, a.logger)
	}
	return a.pinata
}

func (a *app) gallery() *service.GalleryService {
	idx := indexer.NewAlchemyClient(indexer.Config{
		APIKey:  a.cfg.AlchemyAPIKey,
		Network: a.cfg.AlchemyNetwork,
		BaseURL: a.cfg.IndexerBaseURL,
	}, a.logger)
	return service.NewGalleryService(idx, a.cfg.IPFSGatewayURL, a.metrics, a.logger)
}

// receiptSource reuses the wallet's RPC connection unless RPC_ENDPOINT
// names a different node.
func (a *app) receiptSource(ctx context.Context) (domain.ReceiptSource, error) {
	if a.receipts != nil {
		return a.receipts, nil
	}
	a.wallet(ctx)
	switch {
	case a.cfg.RPCEndpoint != "" && a.cfg.RPCEndpoint != a.cfg.WalletRPCURL:
		client, err := ethclient.DialContext(ctx, a.cfg.RPCEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to dial RPC endpoint: %w", err)
		}
		a.receipts = client
		a.closers = append(a.closers, client.Close)
	case a.provider != nil:
		a.receipts = ethclient.NewClient(a.provider.Client())
	default:
		return nil, domain.NewError(domain.KindProviderUnavailable, "receipts", "no RPC endpoint configured for receipts", nil)
	}
	return a.receipts, nil
}

func (a *app) contract() (*chain.MintContract, error) {
	if a.cfg.ContractAddress == "" {
		return nil, domain.NewError(domain.KindValidation, "contract", msgContractMissing, nil)
	}
	contractABI, err := chain.LoadABI(a.cfg.ContractABIPath)
	if err != nil {
		return nil, err
	}
	return chain.NewMintContract(a.cfg.ContractAddress, contractABI, a.cfg.ContractMintMethod)
}

// guard prefers Redis so several processes sharing a wallet refuse
// overlapping mints; without REDIS_URL the guard is process local.
func (a *app) guard(ctx context.Context) (domain.MintGuard, error) {
	if a.cfg.RedisURL == "" {
		return lock.NewMemoryGuard(), nil
	}
	g, err := lock.NewRedisGuard(ctx, a.cfg.RedisURL, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = g.Close() })
	return g, nil
}

func (a *app) journal() *journal.Journal {
	return journal.New(a.cfg.JournalDir)
}

// minter builds the mint pipeline.
func (a *app) minter(ctx context.Context) (*service.MintService, error) {
	contract, err := a.contract()
	if err != nil {
		return nil, err
	}
	w := a.wallet(ctx)
	source, err := a.receiptSource(ctx)
	if err != nil {
		return nil, err
	}
	guard, err := a.guard(ctx)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("mint pipeline ready",
		zap.String("contract", contract.Contract().Hex()),
		zap.String("method", contract.Method()))
	return service.NewMintService(service.MintDeps{
		Pinner:       a.pinner(),
		Wallet:       w,
		Contract:     contract,
		Waiter:       chain.NewReceiptWaiter(source, 0, a.cfg.ConfirmTimeout),
		Guard:        guard,
		GuardTTL:     a.cfg.ConfirmTimeout + 2*time.Minute,
		ExplorerBase: chain.ExplorerBase(a.cfg.ChainID, a.cfg.ExplorerURL),
		Journal:      a.journal(),
		Observer:     a.metrics,
		Logger:       a.logger,
	}), nil
}

// unavailableMinter stands in for the pipeline when it cannot be built,
// so the UI still opens and reports why minting is impossible.
type unavailableMinter struct {
	err error
}

// Mint still validates form first, so a blank form reports the missing
// fields rather than the missing pipeline.
func (u unavailableMinter) Mint(_ context.Context, form domain.MintForm, progress func(domain.MintState)) domain.MintResult {
	if progress == nil {
		progress = func(domain.MintState) {}
	}
	progress(domain.MintStateValidating)
	err := u.err
	if _, verr := service.BuildMetadata(form); verr != nil {
		err = verr
	}
	progress(domain.MintStateFailed)
	return domain.MintResult{State: domain.MintStateFailed, Status: domain.StatusFor(err)}
}
