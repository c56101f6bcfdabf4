package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

// User-facing mint messages.
const (
	MsgMissingFields    = "❗Please ensure all required fields (Asset URL, Name, Description) are filled."
	MsgConnectToMint    = "Please connect your wallet before minting."
	msgPinFallback      = "Something went wrong while uploading your tokenURI."
	msgMintFallback     = "An unexpected error occurred during minting."
	msgProviderForMint  = "🦊 No wallet provider found. Please install MetaMask to mint NFTs."
	defaultGuardPadding = 2 * time.Minute
)

// MintObserver receives pipeline measurements.
type MintObserver interface {
	PinFinished(err error, took time.Duration)
	MintFinished(state domain.MintState, took time.Duration)
}

// MintDeps wires a MintService.
type MintDeps struct {
	Pinner   domain.Pinner
	Wallet   domain.Wallet
	Contract domain.MintCallBuilder
	Waiter   domain.ReceiptWaiter
	// Guard is optional; without it overlapping mints are not refused.
	Guard domain.MintGuard
	// GuardTTL bounds how long a crashed mint can hold the guard.
	GuardTTL     time.Duration
	ExplorerBase string
	// Journal is optional; it remembers submitted mints until their
	// receipt arrives.
	Journal  domain.MintJournal
	Observer MintObserver
	Logger   *zap.Logger
}

// MintService runs the mint pipeline: validate, pin the metadata, have the
// wallet sign the mint call, wait for the receipt.
type MintService struct {
	pinner       domain.Pinner
	wallet       domain.Wallet
	contract     domain.MintCallBuilder
	waiter       domain.ReceiptWaiter
	guard        domain.MintGuard
	guardTTL     time.Duration
	explorerBase string
	journal      domain.MintJournal
	observer     MintObserver
	logger       *zap.Logger
}

func NewMintService(deps MintDeps) *MintService {
	if deps.GuardTTL <= 0 {
		deps.GuardTTL = 5*time.Minute + defaultGuardPadding
	}
	if deps.Observer == nil {
		deps.Observer = nopObserver{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &MintService{
		pinner:       deps.Pinner,
		wallet:       deps.Wallet,
		contract:     deps.Contract,
		waiter:       deps.Waiter,
		guard:        deps.Guard,
		guardTTL:     deps.GuardTTL,
		explorerBase: strings.TrimRight(deps.ExplorerBase, "/"),
		journal:      deps.Journal,
		observer:     deps.Observer,
		logger:       deps.Logger.Named("mint"),
	}
}

// BuildMetadata validates form and assembles the metadata document. Blank
// attribute pairs are dropped.
func BuildMetadata(form domain.MintForm) (domain.Metadata, error) {
	url := strings.TrimSpace(form.URL)
	name := strings.TrimSpace(form.Name)
	description := strings.TrimSpace(form.Description)
	if url == "" || name == "" || description == "" {
		return domain.Metadata{}, domain.NewError(domain.KindValidation, "validate", MsgMissingFields, nil)
	}
	return domain.Metadata{
		Name:        name,
		Image:       url,
		Description: description,
		Attributes:  domain.CompleteAttributes(form.Attributes),
	}, nil
}

// Mint runs the pipeline for form. progress, when non-nil, is called on
// every state transition. Failures are reported in the result, never as a
// panic or error.
func (s *MintService) Mint(ctx context.Context, form domain.MintForm, progress func(domain.MintState)) domain.MintResult {
	start := time.Now()
	step := func(state domain.MintState) {
		if progress != nil {
			progress(state)
		}
	}
	finish := func(r domain.MintResult) domain.MintResult {
		step(r.State)
		s.observer.MintFinished(r.State, time.Since(start))
		s.logger.Info("mint finished",
			zap.String("state", string(r.State)),
			zap.String("tx", r.TransactionHash),
			zap.Duration("took", time.Since(start)))
		return r
	}

	step(domain.MintStateValidating)
	metadata, err := BuildMetadata(form)
	if err != nil {
		return finish(failed(domain.StatusFor(err)))
	}

	signer, err := s.signer(ctx)
	if err != nil {
		return finish(failed(domain.StatusFor(err)))
	}

	if s.guard != nil {
		release, err := s.guard.Acquire(ctx, signer.Hex(), s.guardTTL)
		if err != nil {
			return finish(failed(domain.StatusFor(err)))
		}
		defer release()
	}

	step(domain.MintStatePinning)
	pinStart := time.Now()
	tokenURI, err := s.pinner.PinJSON(ctx, metadata)
	s.observer.PinFinished(err, time.Since(pinStart))
	if err != nil {
		s.logger.Warn("pinning failed", zap.Error(err))
		return finish(failed(domain.Text("❌ IPFS upload failed: " + messageOr(err, msgPinFallback))))
	}

	step(domain.MintStateSigning)
	data, err := s.contract.PackMint(signer, tokenURI)
	if err != nil {
		return finish(failed(domain.Text("😥 Minting failed: " + messageOr(err, msgMintFallback))))
	}
	txHash, err := s.wallet.SendTransaction(ctx, domain.TxRequest{
		From: signer,
		To:   s.contract.Contract(),
		Data: data,
	})
	if err != nil {
		s.logger.Warn("transaction not submitted", zap.String("signer", signer.Hex()), zap.Error(err))
		return finish(failedWithURI(mintFailureStatus(err), tokenURI))
	}

	step(domain.MintStateConfirming)
	explorerURL := s.txURL(txHash)
	s.record(domain.PendingMint{
		TxHash:      txHash.Hex(),
		Signer:      signer.Hex(),
		Contract:    s.contract.Contract().Hex(),
		TokenURI:    tokenURI,
		ExplorerURL: explorerURL,
	})
	receipt, err := s.waiter.Wait(ctx, txHash)
	if err != nil {
		return finish(s.pending(txHash, tokenURI, explorerURL, err))
	}
	s.resolve(txHash)
	if receipt.Status != types.ReceiptStatusSuccessful {
		return finish(domain.MintResult{
			State:           domain.MintStateFailed,
			Status:          domain.ActionPrompt("😥 Minting failed: Transaction reverted on-chain.", explorerURL),
			TransactionHash: txHash.Hex(),
			TokenURI:        tokenURI,
			ExplorerURL:     explorerURL,
		})
	}

	result := domain.MintResult{
		Success:         true,
		State:           domain.MintStateSuccess,
		Status:          domain.Text("✅ NFT minted successfully! View transaction on Etherscan: " + explorerURL),
		TransactionHash: txHash.Hex(),
		TokenURI:        tokenURI,
		ExplorerURL:     explorerURL,
	}
	if id, ok := s.contract.TokenID(receipt); ok {
		result.TokenID = &id
	}
	return finish(result)
}

// signer resolves the account that signs and receives the mint.
func (s *MintService) signer(ctx context.Context) (common.Address, error) {
	if s.wallet == nil || !s.wallet.Available(ctx) {
		return common.Address{}, domain.NewError(domain.KindProviderUnavailable, "mint", msgProviderForMint, nil)
	}
	accounts, err := s.wallet.Accounts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, domain.NewError(domain.KindValidation, "mint", MsgConnectToMint, nil)
	}
	return accounts[0], nil
}

func (s *MintService) pending(txHash common.Hash, tokenURI, explorerURL string, err error) domain.MintResult {
	msg := "⏳ Transaction submitted but not confirmed yet. Check its status on the explorer."
	if !errors.Is(err, domain.ErrConfirmationTimeout) {
		msg = "⏳ Transaction submitted, but its confirmation could not be tracked (" + err.Error() + "). Check its status on the explorer."
	}
	s.logger.Warn("mint pending", zap.String("tx", txHash.Hex()), zap.Error(err))
	return domain.MintResult{
		State:           domain.MintStatePending,
		Status:          domain.ActionPrompt(msg, explorerURL),
		TransactionHash: txHash.Hex(),
		TokenURI:        tokenURI,
		ExplorerURL:     explorerURL,
	}
}

func (s *MintService) record(p domain.PendingMint) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Record(p); err != nil {
		s.logger.Warn("failed to journal pending mint", zap.String("tx", p.TxHash), zap.Error(err))
	}
}

func (s *MintService) resolve(txHash common.Hash) {
	if s.journal == nil {
		return
	}
	if err := s.journal.Resolve(txHash.Hex()); err != nil {
		s.logger.Warn("failed to clear journal entry", zap.String("tx", txHash.Hex()), zap.Error(err))
	}
}

func (s *MintService) txURL(hash common.Hash) string {
	return s.explorerBase + "/tx/" + hash.Hex()
}

func mintFailureStatus(err error) domain.Status {
	if domain.KindOf(err) == domain.KindProviderUnavailable {
		return domain.StatusFor(err)
	}
	return domain.Text("😥 Minting failed: " + messageOr(err, msgMintFallback))
}

func failed(status domain.Status) domain.MintResult {
	return domain.MintResult{State: domain.MintStateFailed, Status: status}
}

func failedWithURI(status domain.Status, tokenURI string) domain.MintResult {
	r := failed(status)
	r.TokenURI = tokenURI
	return r
}

func messageOr(err error, fallback string) string {
	if msg := domain.MessageOf(err); msg != "" {
		return msg
	}
	return fallback
}

type nopObserver struct{}

func (nopObserver) PinFinished(error, time.Duration) {}
func (nopObserver) MintFinished(domain.MintState, time.Duration) {}
func (nopObserver) GalleryFetched(error, int, time.Duration) {}
