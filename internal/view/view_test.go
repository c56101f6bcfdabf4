package view

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nftstudio/nft-minter/internal/adapters/wallet"
	"github.com/nftstudio/nft-minter/internal/core/domain"
	"github.com/nftstudio/nft-minter/internal/core/service"
)

const (
	alice   = "0x1111111111111111111111111111111111111111"
	bob     = "0x2222222222222222222222222222222222222222"
	sepolia = int64(11155111)
)

type fakeWallet struct {
	mu       sync.Mutex
	account  string
	chainID  int64
	chainErr error

	accounts event.Feed
	chains   event.Feed
}

func (w *fakeWallet) Connect(context.Context) (string, domain.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.account == "" {
		return "", domain.Text("😥 Connection failed: rejected")
	}
	return w.account, domain.Text(wallet.MsgConnected)
}

func (w *fakeWallet) CurrentAccount(context.Context) (string, domain.Status) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.account == "" {
		return "", domain.Text(wallet.MsgConnectPrompt)
	}
	return w.account, domain.Text(wallet.MsgReadyToMint)
}

func (w *fakeWallet) ChainID(context.Context) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.chainID, w.chainErr
}

func (w *fakeWallet) SubscribeAccounts(ch chan<- wallet.AccountsChanged) event.Subscription {
	return w.accounts.Subscribe(ch)
}

func (w *fakeWallet) SubscribeChain(ch chan<- wallet.ChainChanged) event.Subscription {
	return w.chains.Subscribe(ch)
}

func (w *fakeWallet) switchAccount(addr string) {
	w.mu.Lock()
	w.account = addr
	w.mu.Unlock()
	var accounts []string
	if addr != "" {
		accounts = []string{addr}
	}
	w.accounts.Send(wallet.AccountsChanged{Accounts: accounts})
}

func (w *fakeWallet) switchChain(id int64) {
	w.mu.Lock()
	w.chainID = id
	w.mu.Unlock()
	w.chains.Send(wallet.ChainChanged{ChainID: id})
}

type fakeRunner struct {
	release chan struct{}
	forms   chan domain.MintForm
}

func (r *fakeRunner) Mint(_ context.Context, form domain.MintForm, progress func(domain.MintState)) domain.MintResult {
	r.forms <- form
	progress(domain.MintStatePinning)
	<-r.release
	progress(domain.MintStateSuccess)
	return domain.MintResult{State: domain.MintStateSuccess, Status: domain.Text("✅ done"), TransactionHash: "0xabc"}
}

type fakeFetcher struct {
	mu      sync.Mutex
	items   map[string][]domain.GalleryItem
	errs    map[string]error
	gates   map[string]chan struct{}
	started chan string
	calls   int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		items:   map[string][]domain.GalleryItem{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		started: make(chan string, 16),
	}
}

func (f *fakeFetcher) FetchOwned(_ context.Context, addr string) ([]domain.GalleryItem, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gates[addr]
	items, err := f.items[addr], f.errs[addr]
	f.mu.Unlock()

	f.started <- addr
	if gate != nil {
		<-gate
	}
	return items, err
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestNotifierCoalesces(t *testing.T) {
	n := NewNotifier()
	ch, cancel := n.Subscribe()

	n.Notify()
	n.Notify()
	n.Notify()

	<-ch
	select {
	case <-ch:
		t.Fatal("expected a single pending signal")
	default:
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
	n.Notify()
}

func TestMinterOpenRehydratesAccount(t *testing.T) {
	w := &fakeWallet{account: alice, chainID: sepolia}
	v := NewMinterView(w, &fakeRunner{}, NewNotifier())

	v.Open(context.Background())
	defer v.Close()

	s := v.Snapshot()
	assert.Equal(t, alice, s.Address)
	assert.Equal(t, wallet.MsgReadyToMint, s.Status.Message)
	assert.Equal(t, domain.MintStateIdle, s.Phase)
	assert.Len(t, s.Form.Attributes, 1)
}

func TestMinterFollowsAccountChanges(t *testing.T) {
	w := &fakeWallet{account: alice}
	v := NewMinterView(w, &fakeRunner{}, NewNotifier())
	v.Open(context.Background())
	defer v.Close()

	w.switchAccount(bob)
	assert.Eventually(t, func() bool {
		s := v.Snapshot()
		return s.Address == bob && s.Status.Message == MsgReadyToMint
	}, time.Second, 5*time.Millisecond)

	w.switchAccount("")
	assert.Eventually(t, func() bool {
		s := v.Snapshot()
		return s.Address == "" && s.Status.Message == wallet.MsgConnectPrompt
	}, time.Second, 5*time.Millisecond)
}

func TestMinterCloseStopsListening(t *testing.T) {
	w := &fakeWallet{account: alice}
	v := NewMinterView(w, &fakeRunner{}, NewNotifier())
	v.Open(context.Background())
	v.Close()
	v.Close()

	assert.Equal(t, 0, w.accounts.Send(wallet.AccountsChanged{Accounts: []string{bob}}))
	assert.Equal(t, alice, v.Snapshot().Address)
}

func TestMinterReopenResetsForm(t *testing.T) {
	w := &fakeWallet{account: alice}
	v := NewMinterView(w, &fakeRunner{}, NewNotifier())
	v.Open(context.Background())
	require.NoError(t, v.SetField(FieldName, "Sunset"))
	v.AddAttribute()

	v.Open(context.Background())
	defer v.Close()

	s := v.Snapshot()
	assert.Empty(t, s.Form.Name)
	assert.Len(t, s.Form.Attributes, 1)
}

func TestMinterReopenKeepsInFlightMint(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), forms: make(chan domain.MintForm, 2)}
	v := NewMinterView(&fakeWallet{account: alice}, runner, NewNotifier())
	v.Open(context.Background())
	require.NoError(t, v.SetField(FieldName, "Sunset"))

	done := make(chan domain.MintResult, 1)
	go func() { done <- v.Mint(context.Background()) }()
	<-runner.forms
	require.Eventually(t, func() bool {
		return v.Snapshot().Phase == domain.MintStatePinning
	}, time.Second, 5*time.Millisecond)

	v.Close()
	v.Open(context.Background())
	defer v.Close()

	s := v.Snapshot()
	assert.Empty(t, s.Form.Name)
	assert.True(t, s.Minting)
	assert.Equal(t, domain.MintStatePinning, s.Phase)

	second := v.Mint(context.Background())
	assert.Equal(t, MsgMintInProgress, second.Status.Message)
	assert.Empty(t, runner.forms, "the second mint never reached the pipeline")

	close(runner.release)
	assert.Equal(t, domain.MintStateSuccess, (<-done).State)
	s = v.Snapshot()
	assert.False(t, s.Minting)
	require.NotNil(t, s.LastResult)
	assert.Equal(t, "0xabc", s.LastResult.TransactionHash)
}

func TestMinterTryStartMint(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), forms: make(chan domain.MintForm, 1)}
	v := NewMinterView(&fakeWallet{account: alice}, runner, NewNotifier())
	require.NoError(t, v.SetField(FieldName, "Sunset"))

	form, ok := v.TryStartMint()
	require.True(t, ok)
	assert.Equal(t, "Sunset", form.Name)
	assert.True(t, v.Snapshot().Minting)

	_, ok = v.TryStartMint()
	assert.False(t, ok)

	close(runner.release)
	result := v.RunMint(context.Background(), form)
	assert.Equal(t, domain.MintStateSuccess, result.State)
	assert.False(t, v.Snapshot().Minting)

	_, ok = v.TryStartMint()
	assert.True(t, ok)
}

func TestMinterFormEditing(t *testing.T) {
	v := NewMinterView(&fakeWallet{}, &fakeRunner{}, NewNotifier())

	require.NoError(t, v.SetField(FieldURL, "https://example.com/a.png"))
	require.NoError(t, v.SetField(FieldName, "Sunset"))
	require.NoError(t, v.SetField(FieldDescription, "Orange"))
	assert.Error(t, v.SetField("price", "1"))

	require.NoError(t, v.SetAttribute(0, "key", "Color"))
	require.NoError(t, v.SetAttribute(0, "value", "Red"))
	v.AddAttribute()
	require.NoError(t, v.SetAttribute(1, "key", "Size"))
	assert.Error(t, v.SetAttribute(5, "key", "x"))
	assert.Error(t, v.SetAttribute(0, "weight", "x"))

	s := v.Snapshot()
	assert.Equal(t, "Sunset", s.Form.Name)
	assert.Equal(t, []domain.Attribute{{Key: "Color", Value: "Red"}, {Key: "Size"}}, s.Form.Attributes)

	require.NoError(t, v.RemoveAttribute(0))
	assert.Equal(t, []domain.Attribute{{Key: "Size"}}, v.Snapshot().Form.Attributes)
	assert.Error(t, v.RemoveAttribute(0))
	assert.Error(t, v.RemoveAttribute(3))

	v.SetForm(domain.MintForm{Name: "Other"})
	assert.Len(t, v.Snapshot().Form.Attributes, 1)
}

func TestMinterConnectWallet(t *testing.T) {
	v := NewMinterView(&fakeWallet{account: alice}, &fakeRunner{}, NewNotifier())
	v.ConnectWallet(context.Background())

	s := v.Snapshot()
	assert.Equal(t, alice, s.Address)
	assert.Equal(t, wallet.MsgConnected, s.Status.Message)
}

func TestMinterMintRunsOnceAtATime(t *testing.T) {
	runner := &fakeRunner{release: make(chan struct{}), forms: make(chan domain.MintForm, 1)}
	v := NewMinterView(&fakeWallet{account: alice}, runner, NewNotifier())
	require.NoError(t, v.SetField(FieldName, "Sunset"))

	done := make(chan domain.MintResult, 1)
	go func() { done <- v.Mint(context.Background()) }()

	form := <-runner.forms
	assert.Equal(t, "Sunset", form.Name)
	assert.True(t, v.Snapshot().Minting)

	second := v.Mint(context.Background())
	assert.Equal(t, domain.MintStateFailed, second.State)

	close(runner.release)
	result := <-done
	assert.Equal(t, domain.MintStateSuccess, result.State)

	s := v.Snapshot()
	assert.False(t, s.Minting)
	assert.Equal(t, domain.MintStateSuccess, s.Phase)
	assert.Equal(t, "✅ done", s.Status.Message)
	require.NotNil(t, s.LastResult)
	assert.Equal(t, "0xabc", s.LastResult.TransactionHash)
}

func TestGalleryOpenFetchesConnectedAccount(t *testing.T) {
	w := &fakeWallet{account: alice, chainID: sepolia}
	f := newFakeFetcher()
	f.items[alice] = []domain.GalleryItem{{Name: "One"}}
	g := NewGalleryView(w, f, sepolia, NewNotifier())

	g.Open(context.Background())
	defer g.Close()

	assert.Eventually(t, func() bool {
		s := g.Snapshot()
		return !s.Loading && len(s.Items) == 1
	}, time.Second, 5*time.Millisecond)
	s := g.Snapshot()
	assert.Equal(t, alice, s.Address)
	require.NotNil(t, s.ChainID)
	assert.Equal(t, sepolia, *s.ChainID)
	assert.Nil(t, s.NetworkError)
}

func TestGalleryWrongChainBlocksFetch(t *testing.T) {
	w := &fakeWallet{account: alice, chainID: 1}
	f := newFakeFetcher()
	g := NewGalleryView(w, f, sepolia, NewNotifier())

	g.Open(context.Background())
	defer g.Close()

	s := g.Snapshot()
	require.NotNil(t, s.NetworkError)
	assert.Equal(t, "Please connect to Sepolia Testnet (Chain ID: 11155111). Current Chain ID: 1", s.NetworkError.Message)

	g.SetAddress(bob)
	g.Fetch(context.Background())
	assert.Equal(t, 0, f.callCount())
	assert.Equal(t, s.NetworkError.Message, g.Snapshot().Error)

	g.mu.Lock()
	chainErr := g.chainErr
	g.mu.Unlock()
	assert.ErrorIs(t, chainErr, domain.ErrChainMismatch)
	assert.Equal(t, domain.KindChainMismatch, domain.KindOf(chainErr))
}

func TestGalleryChainChangeReloads(t *testing.T) {
	w := &fakeWallet{account: alice, chainID: 1}
	f := newFakeFetcher()
	f.items[alice] = []domain.GalleryItem{{Name: "One"}}
	g := NewGalleryView(w, f, sepolia, NewNotifier())
	g.Open(context.Background())
	defer g.Close()
	require.NotNil(t, g.Snapshot().NetworkError)

	w.switchChain(sepolia)

	assert.Eventually(t, func() bool {
		s := g.Snapshot()
		return s.NetworkError == nil && len(s.Items) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestGalleryWithoutProvider(t *testing.T) {
	w := &fakeWallet{chainErr: domain.NewError(domain.KindProviderUnavailable, "chain id", "no provider", nil)}
	g := NewGalleryView(w, newFakeFetcher(), sepolia, NewNotifier())
	g.Open(context.Background())
	defer g.Close()

	s := g.Snapshot()
	require.NotNil(t, s.NetworkError)
	assert.Equal(t, wallet.InstallPrompt(), *s.NetworkError)
}

func TestGalleryAccountEvents(t *testing.T) {
	w := &fakeWallet{chainID: sepolia}
	f := newFakeFetcher()
	f.items[bob] = []domain.GalleryItem{{Name: "Bob's"}}
	g := NewGalleryView(w, f, sepolia, NewNotifier())
	g.Open(context.Background())
	defer g.Close()
	assert.Empty(t, g.Snapshot().Address)

	w.switchAccount(bob)
	assert.Eventually(t, func() bool {
		s := g.Snapshot()
		return s.Address == bob && len(s.Items) == 1
	}, time.Second, 5*time.Millisecond)

	w.switchAccount("")
	assert.Eventually(t, func() bool {
		s := g.Snapshot()
		return s.Address == "" && len(s.Items) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestGalleryFetchOutcomes(t *testing.T) {
	f := newFakeFetcher()
	f.errs[bob] = domain.NewError(domain.KindAPI, "owned nfts", "API Error: 500 - boom", nil)
	g := NewGalleryView(&fakeWallet{chainID: sepolia}, f, sepolia, NewNotifier())

	g.SetAddress("not-an-address")
	g.Fetch(context.Background())
	assert.Equal(t, service.MsgInvalidAddress, g.Snapshot().Error)
	assert.Equal(t, 0, f.callCount())

	g.SetAddress("  " + alice + " ")
	g.Fetch(context.Background())
	s := g.Snapshot()
	assert.Empty(t, s.Error)
	assert.Equal(t, service.MsgNoItems, s.Notice)
	assert.Empty(t, s.Items)

	g.SetAddress(bob)
	g.Fetch(context.Background())
	s = g.Snapshot()
	assert.Equal(t, "API Error: 500 - boom", s.Error)
	assert.Empty(t, s.Notice)
	assert.False(t, s.Loading)
}

func TestGalleryDropsStaleResponses(t *testing.T) {
	f := newFakeFetcher()
	gate := make(chan struct{})
	f.gates[alice] = gate
	f.items[alice] = []domain.GalleryItem{{Name: "stale"}}
	f.items[bob] = []domain.GalleryItem{{Name: "fresh"}}
	g := NewGalleryView(&fakeWallet{chainID: sepolia}, f, sepolia, NewNotifier())

	g.SetAddress(alice)
	slow := make(chan struct{})
	go func() {
		defer close(slow)
		g.Fetch(context.Background())
	}()
	require.Equal(t, alice, <-f.started)

	g.SetAddress(bob)
	g.Fetch(context.Background())
	close(gate)
	<-slow

	s := g.Snapshot()
	require.Len(t, s.Items, 1)
	assert.Equal(t, "fresh", s.Items[0].Name)
}

func TestGalleryConnectWallet(t *testing.T) {
	f := newFakeFetcher()
	f.items[alice] = []domain.GalleryItem{{Name: "One"}}
	g := NewGalleryView(&fakeWallet{account: alice, chainID: sepolia}, f, sepolia, NewNotifier())

	g.ConnectWallet(context.Background())
	s := g.Snapshot()
	assert.Equal(t, alice, s.Address)
	assert.Len(t, s.Items, 1)

	failing := NewGalleryView(&fakeWallet{chainID: sepolia}, f, sepolia, NewNotifier())
	failing.ConnectWallet(context.Background())
	assert.Contains(t, failing.Snapshot().Error, "Connection failed")
}

func TestShellSwitchesTabs(t *testing.T) {
	w := &fakeWallet{account: alice, chainID: sepolia}
	f := newFakeFetcher()
	n := NewNotifier()
	sh := NewShell(NewMinterView(w, &fakeRunner{}, n), NewGalleryView(w, f, sepolia, n), n)
	sh.Open(context.Background())
	defer sh.Close()

	snap := sh.Snapshot()
	assert.Equal(t, TabMinter, snap.Tab)
	require.NotNil(t, snap.Minter)
	assert.Nil(t, snap.Gallery)

	sh.SetTab(context.Background(), TabGallery)
	snap = sh.Snapshot()
	assert.Equal(t, TabGallery, snap.Tab)
	require.NotNil(t, snap.Gallery)
	assert.Nil(t, snap.Minter)
	assert.Eventually(t, func() bool { return f.callCount() == 1 }, time.Second, 5*time.Millisecond)

	// Only the gallery listens now.
	assert.Eventually(t, func() bool {
		return !sh.Gallery.Snapshot().Loading
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, w.accounts.Send(wallet.AccountsChanged{Accounts: []string{alice}}))
}

func TestParseTab(t *testing.T) {
	tab, err := ParseTab("gallery")
	require.NoError(t, err)
	assert.Equal(t, TabGallery, tab)

	_, err = ParseTab("settings")
	assert.EqualError(t, err, `unknown tab "settings"`)
}
