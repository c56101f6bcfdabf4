package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nftstudio/nft-minter/internal/core/domain"
	"github.com/nftstudio/nft-minter/internal/shell"
	"github.com/nftstudio/nft-minter/internal/view"
	"github.com/nftstudio/nft-minter/pkg/version"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the minter and gallery screens over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = root.app.cfg.ListenAddr
			}
			return runServe(cmd.Context(), root.app, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default LISTEN_ADDR)")
	return cmd
}

func runServe(ctx context.Context, a *app, addr string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)

	connector := a.wallet(ctx)
	var runner view.MintRunner
	minter, err := a.minter(ctx)
	if err != nil {
		a.logger.Warn("minting disabled", zap.Error(err))
		runner = unavailableMinter{err: err}
	} else {
		runner = minter
	}

	notifier := view.NewNotifier()
	sh := view.NewShell(
		view.NewMinterView(connector, runner, notifier),
		view.NewGalleryView(connector, a.gallery(), a.cfg.ChainID, notifier),
		notifier,
	)
	sh.Open(ctx)
	defer sh.Close()

	pterm.DefaultHeader.Println(version.GetFullVersionString())
	pterm.Info.Printfln("UI shell on %s", addr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := connector.Watch(gctx)
		switch {
		case errors.Is(err, context.Canceled):
			return nil
		case domain.KindOf(err) == domain.KindProviderUnavailable:
			a.logger.Warn("no wallet provider, account and chain changes will not be followed")
			return nil
		}
		return err
	})
	g.Go(func() error {
		return shell.NewServer(sh, a.metrics, a.logger).Run(gctx, addr)
	})
	return g.Wait()
}
