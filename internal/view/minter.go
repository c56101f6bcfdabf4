package view

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/event"

	"github.com/nftstudio/nft-minter/internal/adapters/wallet"
	"github.com/nftstudio/nft-minter/internal/core/domain"
)

const (
	// MsgReadyToMint is shown when the wallet switches to a new account.
	MsgReadyToMint    = "Ready to mint your NFT!"
	MsgMintInProgress = "A mint is already in progress."
)

// WalletSource is the wallet surface the screens consume.
type WalletSource interface {
	Connect(ctx context.Context) (string, domain.Status)
	CurrentAccount(ctx context.Context) (string, domain.Status)
	ChainID(ctx context.Context) (int64, error)
	SubscribeAccounts(ch chan<- wallet.AccountsChanged) event.Subscription
	SubscribeChain(ch chan<- wallet.ChainChanged) event.Subscription
}

// MintRunner runs the mint pipeline.
type MintRunner interface {
	Mint(ctx context.Context, form domain.MintForm, progress func(domain.MintState)) domain.MintResult
}

// Form fields editable through SetField.
const (
	FieldURL         = "url"
	FieldName        = "name"
	FieldDescription = "description"
)

// MinterState is a snapshot of the minter screen.
type MinterState struct {
	Form       domain.MintForm    `json:"form"`
	Address    string             `json:"address"`
	Status     domain.Status      `json:"status"`
	Phase      domain.MintState   `json:"phase"`
	Minting    bool               `json:"minting"`
	LastResult *domain.MintResult `json:"last_result,omitempty"`
}

// MinterView holds the minter screen: the form, the connected account and
// the last status. It listens to account changes while open.
type MinterView struct {
	wallet   WalletSource
	minter   MintRunner
	notifier *Notifier

	mu    sync.Mutex
	state MinterState
	sub   event.Subscription
	done  chan struct{}
}

// NewMinterView creates a closed minter view.
func NewMinterView(w WalletSource, m MintRunner, n *Notifier) *MinterView {
	v := &MinterView{wallet: w, minter: m, notifier: n}
	v.state = freshMinterState()
	return v
}

func freshMinterState() MinterState {
	return MinterState{
		Form:  domain.MintForm{Attributes: []domain.Attribute{{}}},
		Phase: domain.MintStateIdle,
	}
}

// Open resets the screen, rehydrates the account from the wallet and
// subscribes to account changes until Close.
func (v *MinterView) Open(ctx context.Context) {
	v.Close()

	addr, status := v.wallet.CurrentAccount(ctx)

	ch := make(chan wallet.AccountsChanged, 8)
	sub := v.wallet.SubscribeAccounts(ch)
	done := make(chan struct{})

	v.mu.Lock()
	fresh := freshMinterState()
	if v.state.Minting {
		// the in-flight pipeline still owns the phase and will report back
		fresh.Minting = true
		fresh.Phase = v.state.Phase
	}
	v.state = fresh
	v.state.Address = addr
	v.state.Status = status
	v.sub, v.done = sub, done
	v.mu.Unlock()
	v.notifier.Notify()

	go v.listen(ch, sub, done)
}

// Close releases the wallet subscription. Closing a closed view is a no-op.
func (v *MinterView) Close() {
	v.mu.Lock()
	sub, done := v.sub, v.done
	v.sub, v.done = nil, nil
	v.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
		<-done
	}
}

func (v *MinterView) listen(ch <-chan wallet.AccountsChanged, sub event.Subscription, done chan struct{}) {
	defer close(done)
	for {
		select {
		case ev := <-ch:
			v.accountsChanged(ev)
		case <-sub.Err():
			return
		}
	}
}

func (v *MinterView) accountsChanged(ev wallet.AccountsChanged) {
	v.mu.Lock()
	if addr := ev.Primary(); addr != "" {
		v.state.Address = addr
		v.state.Status = domain.Text(MsgReadyToMint)
	} else {
		v.state.Address = ""
		v.state.Status = domain.Text(wallet.MsgConnectPrompt)
	}
	v.mu.Unlock()
	v.notifier.Notify()
}

// ConnectWallet prompts the wallet for access.
func (v *MinterView) ConnectWallet(ctx context.Context) {
	addr, status := v.wallet.Connect(ctx)
	v.update(func(s *MinterState) {
		s.Address = addr
		s.Status = status
	})
}

// SetField edits one of the text fields.
func (v *MinterView) SetField(field, value string) error {
	var err error
	v.update(func(s *MinterState) {
		switch field {
		case FieldURL:
			s.Form.URL = value
		case FieldName:
			s.Form.Name = value
		case FieldDescription:
			s.Form.Description = value
		default:
			err = fmt.Errorf("unknown form field %q", field)
		}
	})
	return err
}

// SetForm replaces the whole form. An empty attribute list keeps one blank
// row.
func (v *MinterView) SetForm(form domain.MintForm) {
	form.Attributes = append([]domain.Attribute(nil), form.Attributes...)
	if len(form.Attributes) == 0 {
		form.Attributes = []domain.Attribute{{}}
	}
	v.update(func(s *MinterState) { s.Form = form })
}

// AddAttribute appends a blank attribute row.
func (v *MinterView) AddAttribute() {
	v.update(func(s *MinterState) {
		s.Form.Attributes = append(s.Form.Attributes, domain.Attribute{})
	})
}

// RemoveAttribute deletes row i. The last remaining row cannot be removed.
func (v *MinterView) RemoveAttribute(i int) error {
	var err error
	v.update(func(s *MinterState) {
		switch {
		case i < 0 || i >= len(s.Form.Attributes):
			err = fmt.Errorf("attribute row %d out of range", i)
		case len(s.Form.Attributes) == 1:
			err = fmt.Errorf("cannot remove the only attribute row")
		default:
			s.Form.Attributes = append(s.Form.Attributes[:i:i], s.Form.Attributes[i+1:]...)
		}
	})
	return err
}

// SetAttribute edits the key or value of row i.
func (v *MinterView) SetAttribute(i int, field, value string) error {
	var err error
	v.update(func(s *MinterState) {
		if i < 0 || i >= len(s.Form.Attributes) {
			err = fmt.Errorf("attribute row %d out of range", i)
			return
		}
		switch field {
		case "key":
			s.Form.Attributes[i].Key = value
		case "value":
			s.Form.Attributes[i].Value = value
		default:
			err = fmt.Errorf("unknown attribute field %q", field)
		}
	})
	return err
}

// Mint submits the current form. Only one mint runs per view at a time.
func (v *MinterView) Mint(ctx context.Context) domain.MintResult {
	form, ok := v.TryStartMint()
	if !ok {
		return domain.MintResult{
			State:  domain.MintStateFailed,
			Status: domain.Text(MsgMintInProgress),
		}
	}
	return v.RunMint(ctx, form)
}

// TryStartMint marks the view as minting and returns the form to submit.
// It reports false when a mint is already in flight. A successful call must
// be followed by RunMint.
func (v *MinterView) TryStartMint() (domain.MintForm, bool) {
	v.mu.Lock()
	if v.state.Minting {
		v.mu.Unlock()
		return domain.MintForm{}, false
	}
	v.state.Minting = true
	form := v.state.Form
	form.Attributes = append([]domain.Attribute(nil), form.Attributes...)
	v.mu.Unlock()
	v.notifier.Notify()
	return form, true
}

// RunMint runs the pipeline for a mint started with TryStartMint and
// records its result.
func (v *MinterView) RunMint(ctx context.Context, form domain.MintForm) domain.MintResult {
	result := v.minter.Mint(ctx, form, func(phase domain.MintState) {
		v.update(func(s *MinterState) { s.Phase = phase })
	})

	v.update(func(s *MinterState) {
		s.Minting = false
		s.Phase = result.State
		s.Status = result.Status
		r := result
		s.LastResult = &r
	})
	return result
}

// Snapshot returns a copy of the screen state.
func (v *MinterView) Snapshot() MinterState {
	v.mu.Lock()
	defer v.mu.Unlock()
	s := v.state
	s.Form.Attributes = append([]domain.Attribute(nil), v.state.Form.Attributes...)
	if v.state.LastResult != nil {
		r := *v.state.LastResult
		s.LastResult = &r
	}
	return s
}

func (v *MinterView) update(fn func(*MinterState)) {
	v.mu.Lock()
	fn(&v.state)
	v.mu.Unlock()
	v.notifier.Notify()
}
