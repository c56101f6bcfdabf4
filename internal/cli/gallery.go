package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nftstudio/nft-minter/internal/core/domain"
	"github.com/nftstudio/nft-minter/internal/core/service"
)

func newGalleryCommand(root *rootOptions) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "gallery [address]",
		Short: "List the NFTs an address owns",
		Long: `List the NFTs an address owns on the configured network. Without an
address the connected wallet account is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			address := ""
			if len(args) == 1 {
				address = args[0]
			}
			return runGallery(cmd.Context(), root.app, address, jsonOut, cmd.OutOrStdout())
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the items as JSON")
	return cmd
}

func runGallery(ctx context.Context, a *app, address string, jsonOut bool, out io.Writer) error {
	if address == "" {
		addr, status := a.wallet(ctx).CurrentAccount(ctx)
		if addr == "" {
			printStatus(out, status)
			return fmt.Errorf("%s", service.MsgInvalidAddress)
		}
		address = addr
	}

	items, err := a.gallery().FetchOwned(ctx, address)
	if err != nil {
		return fmt.Errorf("%s", domain.MessageOf(err))
	}

	if jsonOut {
		return writeJSON(out, items)
	}
	if len(items) == 0 {
		pterm.Info.WithWriter(out).Println(service.MsgNoItems)
		return nil
	}
	pterm.DefaultSection.WithWriter(out).Printf("%d NFTs owned by %s", len(items), address)
	return pterm.DefaultTable.WithWriter(out).WithHasHeader().WithData(galleryTable(items)).Render()
}
