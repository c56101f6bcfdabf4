package view

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/event"

	"github.com/nftstudio/nft-minter/internal/adapters/chain"
	"github.com/nftstudio/nft-minter/internal/adapters/wallet"
	"github.com/nftstudio/nft-minter/internal/core/domain"
	"github.com/nftstudio/nft-minter/internal/core/service"
)

const msgWalletInitFailed = "Failed to initialize wallet connection. Please ensure your wallet is installed and enabled."

// OwnershipFetcher lists the gallery items of an address.
type OwnershipFetcher interface {
	FetchOwned(ctx context.Context, address string) ([]domain.GalleryItem, error)
}

// GalleryState is a snapshot of the gallery screen.
type GalleryState struct {
	Address string               `json:"address"`
	Items   []domain.GalleryItem `json:"items"`
	Loading bool                 `json:"loading"`
	Error   string               `json:"error,omitempty"`
	// Notice reports an empty but successful query.
	Notice       string         `json:"notice,omitempty"`
	NetworkError *domain.Status `json:"network_error,omitempty"`
	ChainID      *int64         `json:"chain_id,omitempty"`
}

// GalleryView holds the gallery screen. Every fetch takes a sequence
// number; a response older than the latest started fetch is dropped.
type GalleryView struct {
	wallet          WalletSource
	fetcher         OwnershipFetcher
	expectedChainID int64
	notifier        *Notifier

	mu    sync.Mutex
	state GalleryState
	// chainErr is a ChainMismatch error while the wallet is on the wrong
	// network; it blocks fetching.
	chainErr error
	seq      uint64

	subs   []event.Subscription
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewGalleryView creates a closed gallery view.
func NewGalleryView(w WalletSource, f OwnershipFetcher, expectedChainID int64, n *Notifier) *GalleryView {
	return &GalleryView{
		wallet:          w,
		fetcher:         f,
		expectedChainID: expectedChainID,
		notifier:        n,
		state:           GalleryState{Items: []domain.GalleryItem{}},
	}
}

// Open checks the wallet network, loads the connected account (fetching its
// NFTs) and subscribes to account and chain changes until Close.
func (g *GalleryView) Open(ctx context.Context) {
	g.Close()

	bg, cancel := context.WithCancel(context.Background())
	accCh := make(chan wallet.AccountsChanged, 8)
	chainCh := make(chan wallet.ChainChanged, 8)
	accSub := g.wallet.SubscribeAccounts(accCh)
	chainSub := g.wallet.SubscribeChain(chainCh)

	g.mu.Lock()
	g.subs = []event.Subscription{accSub, chainSub}
	g.cancel = cancel
	g.mu.Unlock()

	g.wg.Add(1)
	go g.listen(bg, accCh, chainCh, accSub, chainSub)

	g.reload(ctx, bg)
}

// Close releases the subscriptions and waits for background fetches.
func (g *GalleryView) Close() {
	g.mu.Lock()
	subs, cancel := g.subs, g.cancel
	g.subs, g.cancel = nil, nil
	g.mu.Unlock()

	for _, s := range subs {
		s.Unsubscribe()
	}
	if cancel != nil {
		cancel()
	}
	g.wg.Wait()
}

func (g *GalleryView) listen(bg context.Context, accCh <-chan wallet.AccountsChanged, chainCh <-chan wallet.ChainChanged, accSub, chainSub event.Subscription) {
	defer g.wg.Done()
	for {
		select {
		case ev := <-accCh:
			g.accountsChanged(bg, ev)
		case <-chainCh:
			g.background(bg, func() { g.reload(bg, bg) })
		case <-accSub.Err():
			return
		case <-chainSub.Err():
			return
		}
	}
}

// reload resets the screen and rebuilds it from the wallet, the way a page
// reload would.
func (g *GalleryView) reload(ctx, bg context.Context) {
	g.mu.Lock()
	g.seq++
	g.state = GalleryState{Items: []domain.GalleryItem{}}
	g.chainErr = nil
	g.mu.Unlock()

	chainID, err := g.wallet.ChainID(ctx)
	if err != nil {
		status := domain.Text(msgWalletInitFailed)
		if domain.KindOf(err) == domain.KindProviderUnavailable {
			status = wallet.InstallPrompt()
		}
		g.update(func(s *GalleryState) { s.NetworkError = &status })
		return
	}

	if chainID != g.expectedChainID {
		mismatch := domain.NewError(domain.KindChainMismatch, "gallery",
			fmt.Sprintf("Please connect to %s (Chain ID: %d). Current Chain ID: %d",
				chain.NetworkName(g.expectedChainID), g.expectedChainID, chainID), nil)
		status := domain.StatusFor(mismatch)
		g.mu.Lock()
		g.chainErr = mismatch
		g.state.NetworkError = &status
		g.state.ChainID = &chainID
		g.mu.Unlock()
		g.notifier.Notify()
		return
	}

	addr, _ := g.wallet.CurrentAccount(ctx)
	g.update(func(s *GalleryState) {
		s.ChainID = &chainID
		s.Address = addr
	})
	if addr != "" {
		g.background(bg, func() { g.Fetch(bg) })
	}
}

func (g *GalleryView) accountsChanged(bg context.Context, ev wallet.AccountsChanged) {
	addr := ev.Primary()
	if addr == "" {
		g.mu.Lock()
		g.seq++
		g.state.Address = ""
		g.state.Items = []domain.GalleryItem{}
		g.state.Error = ""
		g.state.Notice = ""
		g.state.Loading = false
		g.mu.Unlock()
		g.notifier.Notify()
		return
	}
	g.update(func(s *GalleryState) { s.Address = addr })
	g.background(bg, func() { g.Fetch(bg) })
}

// ConnectWallet prompts the wallet and, on success, loads the account's
// NFTs.
func (g *GalleryView) ConnectWallet(ctx context.Context) {
	addr, status := g.wallet.Connect(ctx)
	if addr == "" {
		g.update(func(s *GalleryState) { s.Error = status.Message })
		return
	}
	g.update(func(s *GalleryState) {
		s.Address = addr
		s.Error = ""
	})
	g.Fetch(ctx)
}

// SetAddress sets the address to query without fetching.
func (g *GalleryView) SetAddress(addr string) {
	g.update(func(s *GalleryState) { s.Address = strings.TrimSpace(addr) })
}

// Fetch queries the current address. It is a no-op while the wallet is on
// the wrong chain.
func (g *GalleryView) Fetch(ctx context.Context) {
	g.mu.Lock()
	if g.chainErr != nil {
		g.state.Error = domain.MessageOf(g.chainErr)
		g.mu.Unlock()
		g.notifier.Notify()
		return
	}
	addr := g.state.Address
	if err := service.ValidateAddress(addr); err != nil {
		g.state.Error = domain.MessageOf(err)
		g.state.Notice = ""
		g.state.Items = []domain.GalleryItem{}
		g.mu.Unlock()
		g.notifier.Notify()
		return
	}
	g.seq++
	seq := g.seq
	g.state.Loading = true
	g.state.Error = ""
	g.state.Notice = ""
	g.state.Items = []domain.GalleryItem{}
	g.mu.Unlock()
	g.notifier.Notify()

	items, err := g.fetcher.FetchOwned(ctx, addr)

	g.mu.Lock()
	if seq != g.seq {
		g.mu.Unlock()
		return
	}
	g.state.Loading = false
	switch {
	case err != nil:
		g.state.Error = domain.MessageOf(err)
	case len(items) == 0:
		g.state.Notice = service.MsgNoItems
	default:
		g.state.Items = items
	}
	g.mu.Unlock()
	g.notifier.Notify()
}

// Snapshot returns a copy of the screen state.
func (g *GalleryView) Snapshot() GalleryState {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.state
	s.Items = append([]domain.GalleryItem{}, g.state.Items...)
	return s
}

func (g *GalleryView) background(ctx context.Context, fn func()) {
	if ctx.Err() != nil {
		return
	}
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		fn()
	}()
}

func (g *GalleryView) update(fn func(*GalleryState)) {
	g.mu.Lock()
	fn(&g.state)
	g.mu.Unlock()
	g.notifier.Notify()
}
