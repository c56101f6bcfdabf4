package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/nftstudio/nft-minter/internal/adapters/chain"
)

func newWalletCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Connect to the wallet provider and inspect its session",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "connect",
		Short: "Ask the wallet for account access",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			addr, status := root.app.wallet(cmd.Context()).Connect(cmd.Context())
			if addr == "" {
				printStatus(out, status)
				return fmt.Errorf("wallet not connected")
			}
			pterm.Success.WithWriter(out).Println(status.String())
			pterm.Info.WithWriter(out).Println("Account: " + addr)
			return nil
		},
	})

	var jsonOut bool
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the authorized account and network without prompting",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			w := root.app.wallet(cmd.Context())
			session := w.Session(cmd.Context())
			if jsonOut {
				return writeJSON(out, session)
			}

			if !session.Connected() {
				_, st := w.CurrentAccount(cmd.Context())
				printStatus(out, st)
				return nil
			}
			rows := [][]string{{"Account", session.Address}}
			if session.ChainID != nil {
				id := *session.ChainID
				rows = append(rows, []string{"Network", fmt.Sprintf("%s (%d)", chain.NetworkName(id), id)})
				if id != root.app.cfg.ChainID {
					pterm.Warning.WithWriter(out).Printfln("Wallet is on chain %d, expected %d.", id, root.app.cfg.ChainID)
				}
			}
			return pterm.DefaultTable.WithWriter(out).WithData(rows).Render()
		},
	}
	status.Flags().BoolVar(&jsonOut, "json", false, "print the session as JSON")
	cmd.AddCommand(status)

	return cmd
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
