package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/adapters/journal"
	"github.com/nftstudio/nft-minter/internal/core/domain"
)

type pendingOptions struct {
	check   bool
	cleanup time.Duration
	jsonOut bool
}

func newPendingCommand(root *rootOptions) *cobra.Command {
	opts := &pendingOptions{}
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List submitted mints whose receipt has not been seen",
		Long: `pending lists the mint transactions that were submitted but not confirmed
before the confirmation timeout. With --check each one is looked up again and
forgotten once it is mined or reverted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPending(cmd.Context(), cmd.OutOrStdout(), root.app, opts)
		},
	}
	cmd.Flags().BoolVar(&opts.check, "check", false, "look up receipts and forget mined or reverted entries")
	cmd.Flags().DurationVar(&opts.cleanup, "cleanup", 0, "forget entries not updated within this duration")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the remaining entries as JSON")
	return cmd
}

func runPending(ctx context.Context, out io.Writer, a *app, opts *pendingOptions) error {
	j := a.journal()

	if opts.cleanup > 0 {
		n, err := j.CleanupOld(opts.cleanup)
		if err != nil {
			return err
		}
		if n > 0 && !opts.jsonOut {
			pterm.Info.WithWriter(out).Printfln("Forgot %d entries older than %s.", n, opts.cleanup)
		}
	}

	if opts.check {
		if err := checkPending(ctx, out, a, j, opts.jsonOut); err != nil {
			return err
		}
	}

	entries, err := j.List()
	if err != nil {
		return err
	}
	if opts.jsonOut {
		if entries == nil {
			entries = []domain.PendingMint{}
		}
		return writeJSON(out, entries)
	}
	if len(entries) == 0 {
		pterm.Info.WithWriter(out).Printfln("No pending mints in %s.", j.Dir())
		return nil
	}
	return pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(pendingTable(entries, time.Now())).Render()
}

func checkPending(ctx context.Context, out io.Writer, a *app, j *journal.Journal, quiet bool) error {
	entries, err := j.List()
	if err != nil || len(entries) == 0 {
		return err
	}
	source, err := a.receiptSource(ctx)
	if err != nil {
		return errors.New(domain.MessageOf(err))
	}

	for _, e := range entries {
		receipt, err := source.TransactionReceipt(ctx, common.HexToHash(e.TxHash))
		switch {
		case errors.Is(err, ethereum.NotFound):
			continue
		case err != nil:
			a.logger.Warn("receipt lookup failed", zap.String("tx", e.TxHash), zap.Error(err))
			continue
		}
		if err := j.Resolve(e.TxHash); err != nil {
			return err
		}
		if quiet {
			continue
		}
		if receipt.Status == types.ReceiptStatusSuccessful {
			pterm.Success.WithWriter(out).Printfln("%s mined.", e.TxHash)
		} else {
			pterm.Error.WithWriter(out).Printfln("%s reverted on-chain.", e.TxHash)
		}
	}
	return nil
}

func pendingTable(entries []domain.PendingMint, now time.Time) [][]string {
	data := [][]string{{"Transaction", "Signer", "Token URI", "Age", "Explorer"}}
	for _, e := range entries {
		age := now.Sub(e.CreatedAt).Truncate(time.Second)
		data = append(data, []string{e.TxHash, e.Signer, e.TokenURI, fmt.Sprint(age), e.ExplorerURL})
	}
	return data
}
