package wallet

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/event"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

// Status messages shown by the wallet flows.
const (
	MsgConnected        = "Wallet connected. You can now mint your NFT!"
	MsgReadyToMint      = "Wallet connected. Ready to mint!"
	MsgConnectPrompt    = "Connect your wallet using the 'Connect Wallet' button."
	MsgNoAccounts       = "No accounts found. Please connect an account in your wallet."
	msgProviderNotFound = "🦊 No wallet provider found. Please click here to install MetaMask."
)

// InstallPrompt is the status returned whenever no wallet provider can be
// reached.
func InstallPrompt() domain.Status {
	return domain.ActionPrompt(msgProviderNotFound, domain.WalletInstallURL)
}

// AccountsChanged is published when the authorized account set changes.
// An empty slice means the wallet disconnected.
type AccountsChanged struct {
	Accounts []string
}

// Primary returns the active account, or "" when there is none.
func (e AccountsChanged) Primary() string {
	if len(e.Accounts) == 0 {
		return ""
	}
	return e.Accounts[0]
}

// ChainChanged is published when the wallet switches networks.
type ChainChanged struct {
	ChainID int64
}

// Connector is the wallet-facing side of the application. A nil provider
// is valid and behaves as a missing wallet.
type Connector struct {
	provider     Provider
	pollInterval time.Duration
	logger       *zap.Logger

	accountsFeed event.Feed
	chainFeed    event.Feed

	mu       sync.Mutex
	accounts []string
	chainID  int64
	primed   bool
}

// NewConnector creates a connector over provider.
func NewConnector(provider Provider, pollInterval time.Duration, logger *zap.Logger) *Connector {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{
		provider:     provider,
		pollInterval: pollInterval,
		logger:       logger.Named("connector"),
	}
}

// Available reports whether a provider is configured and answering.
func (c *Connector) Available(ctx context.Context) bool {
	if c.provider == nil {
		return false
	}
	_, err := c.provider.ChainID(ctx)
	return err == nil
}

// Connect prompts the wallet for account access. Failures are reported in
// the returned status, never as an error.
func (c *Connector) Connect(ctx context.Context) (string, domain.Status) {
	if c.provider == nil {
		return "", InstallPrompt()
	}
	accounts, err := c.provider.RequestAccounts(ctx)
	if err != nil {
		c.logger.Warn("connect failed", zap.Error(err))
		if domain.KindOf(err) == domain.KindProviderUnavailable {
			return "", InstallPrompt()
		}
		return "", domain.Text("😥 Connection failed: " + domain.MessageOf(err))
	}
	if len(accounts) == 0 {
		return "", domain.Text("😥 Connection failed: " + MsgNoAccounts)
	}
	return accounts[0].Hex(), domain.Text(MsgConnected)
}

// CurrentAccount reads the authorized account without prompting.
func (c *Connector) CurrentAccount(ctx context.Context) (string, domain.Status) {
	if c.provider == nil {
		return "", InstallPrompt()
	}
	accounts, err := c.provider.Accounts(ctx)
	if err != nil {
		if domain.KindOf(err) == domain.KindProviderUnavailable {
			return "", InstallPrompt()
		}
		return "", domain.Text("😥 Failed to get wallet status: " + domain.MessageOf(err))
	}
	if len(accounts) == 0 {
		return "", domain.Text(MsgConnectPrompt)
	}
	return accounts[0].Hex(), domain.Text(MsgReadyToMint)
}

// Accounts lists the authorized accounts.
func (c *Connector) Accounts(ctx context.Context) ([]common.Address, error) {
	if c.provider == nil {
		return nil, providerMissing("accounts")
	}
	return c.provider.Accounts(ctx)
}

// ChainID returns the chain the wallet is connected to.
func (c *Connector) ChainID(ctx context.Context) (int64, error) {
	if c.provider == nil {
		return 0, providerMissing("chain id")
	}
	return c.provider.ChainID(ctx)
}

// Session rebuilds the wallet session from the provider.
func (c *Connector) Session(ctx context.Context) domain.WalletSession {
	var s domain.WalletSession
	if c.provider == nil {
		return s
	}
	if accounts, err := c.provider.Accounts(ctx); err == nil && len(accounts) > 0 {
		s.Address = accounts[0].Hex()
	}
	if id, err := c.provider.ChainID(ctx); err == nil {
		s.ChainID = &id
	}
	return s
}

// SendTransaction forwards tx to the wallet for signing.
func (c *Connector) SendTransaction(ctx context.Context, tx domain.TxRequest) (common.Hash, error) {
	if c.provider == nil {
		return common.Hash{}, providerMissing("send transaction")
	}
	return c.provider.SendTransaction(ctx, tx)
}

// SubscribeAccounts delivers AccountsChanged events to ch until the
// subscription is unsubscribed.
func (c *Connector) SubscribeAccounts(ch chan<- AccountsChanged) event.Subscription {
	return c.accountsFeed.Subscribe(ch)
}

// SubscribeChain delivers ChainChanged events to ch until the subscription
// is unsubscribed.
func (c *Connector) SubscribeChain(ch chan<- ChainChanged) event.Subscription {
	return c.chainFeed.Subscribe(ch)
}

// Watch polls the provider and publishes account and chain changes until
// ctx is done. The first poll only records the baseline.
func (c *Connector) Watch(ctx context.Context) error {
	if c.provider == nil {
		return providerMissing("watch")
	}
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		c.poll(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Connector) poll(ctx context.Context) {
	addrs, err := c.provider.Accounts(ctx)
	if err != nil {
		c.logger.Debug("accounts poll failed", zap.Error(err))
		return
	}
	chainID, err := c.provider.ChainID(ctx)
	if err != nil {
		c.logger.Debug("chain poll failed", zap.Error(err))
		return
	}
	accounts := make([]string, len(addrs))
	for i, a := range addrs {
		accounts[i] = a.Hex()
	}

	c.mu.Lock()
	primed := c.primed
	accountsMoved := primed && !equalAccounts(c.accounts, accounts)
	chainMoved := primed && c.chainID != chainID
	c.accounts, c.chainID, c.primed = accounts, chainID, true
	c.mu.Unlock()

	if chainMoved {
		c.logger.Info("chain changed", zap.Int64("chain_id", chainID))
		c.chainFeed.Send(ChainChanged{ChainID: chainID})
	}
	if accountsMoved {
		c.logger.Info("accounts changed", zap.Strings("accounts", accounts))
		c.accountsFeed.Send(AccountsChanged{Accounts: accounts})
	}
}

func equalAccounts(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func providerMissing(op string) error {
	return domain.NewError(domain.KindProviderUnavailable, op, msgProviderNotFound, nil)
}
