package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nftstudio/nft-minter/internal/core/domain"
	"github.com/nftstudio/nft-minter/internal/core/service"
)

type mintOptions struct {
	url         string
	file        string
	name        string
	description string
	attrs       []string
	verify      bool
}

var phaseText = map[domain.MintState]string{
	domain.MintStateValidating: "Validating the form...",
	domain.MintStatePinning:    "Pinning metadata to IPFS...",
	domain.MintStateSigning:    "Waiting for the wallet to sign the mint transaction...",
	domain.MintStateConfirming: "Waiting for the transaction to be mined...",
}

func newMintCommand(root *rootOptions) *cobra.Command {
	opts := &mintOptions{}
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Pin NFT metadata and mint it from the connected wallet",
		Example: `  nftminter mint --url https://example.com/sunset.png --name Sunset \
    --description "Orange sky" --attr Color=Orange --attr Mood=Calm
  nftminter mint --file ./sunset.png --name Sunset --description "Orange sky" --verify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMint(cmd.Context(), root.app, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "URL of the asset the NFT represents")
	cmd.Flags().StringVar(&opts.file, "file", "", "pin this local file and use its gateway URL as the asset URL")
	cmd.Flags().StringVar(&opts.name, "name", "", "NFT name")
	cmd.Flags().StringVar(&opts.description, "description", "", "NFT description")
	cmd.Flags().StringArrayVar(&opts.attrs, "attr", nil, "attribute as key=value, repeatable")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "read the pinned metadata back and compare it with what was minted")
	cmd.MarkFlagsMutuallyExclusive("url", "file")
	return cmd
}

func runMint(ctx context.Context, a *app, opts *mintOptions, out io.Writer) error {
	attrs, err := parseAttributes(opts.attrs)
	if err != nil {
		return err
	}
	form := domain.MintForm{
		URL:         opts.url,
		Name:        opts.name,
		Description: opts.description,
		Attributes:  attrs,
	}

	// The asset is pinned only once the rest of the form is known to be valid.
	check := form
	if opts.file != "" {
		check.URL = opts.file
	}
	if _, err := service.BuildMetadata(check); err != nil {
		printStatus(out, domain.StatusFor(err))
		return fmt.Errorf("mint failed")
	}

	if opts.file != "" {
		url, err := pinAsset(ctx, a, opts.file)
		if err != nil {
			return err
		}
		pterm.Success.WithWriter(out).Println("Asset pinned: " + url)
		form.URL = url
	}

	minter, err := a.minter(ctx)
	if err != nil {
		printStatus(out, domain.StatusFor(err))
		return fmt.Errorf("mint pipeline unavailable")
	}

	result := minter.Mint(ctx, form, func(state domain.MintState) {
		if text, ok := phaseText[state]; ok {
			pterm.Info.WithWriter(out).Println(text)
		}
	})
	printMintResult(out, result)

	if opts.verify && result.TokenURI != "" {
		if err := verifyMetadata(ctx, a, form, result.TokenURI); err != nil {
			pterm.Error.WithWriter(out).Println(err.Error())
			return err
		}
		pterm.Success.WithWriter(out).Println("Pinned metadata matches the minted form.")
	}

	if result.State == domain.MintStateFailed {
		return fmt.Errorf("mint failed")
	}
	return nil
}

func pinAsset(ctx context.Context, a *app, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open asset: %w", err)
	}
	defer f.Close()

	url, err := a.pinner().PinFile(ctx, filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("failed to pin asset: %s", domain.MessageOf(err))
	}
	a.logger.Info("asset pinned", zap.String("file", path), zap.String("url", url))
	return url, nil
}

// verifyMetadata fetches the token URI and checks it decodes to the
// metadata built from form.
func verifyMetadata(ctx context.Context, a *app, form domain.MintForm, tokenURI string) error {
	want, err := service.BuildMetadata(form)
	if err != nil {
		return err
	}
	body, err := a.pinner().Fetch(ctx, tokenURI)
	if err != nil {
		return fmt.Errorf("failed to read back metadata: %s", domain.MessageOf(err))
	}
	var got domain.Metadata
	if err := json.Unmarshal(body, &got); err != nil {
		return fmt.Errorf("pinned metadata is not valid JSON: %w", err)
	}
	if !reflect.DeepEqual(normalizeMetadata(want), normalizeMetadata(got)) {
		return fmt.Errorf("pinned metadata differs from the minted form")
	}
	return nil
}

func normalizeMetadata(m domain.Metadata) domain.Metadata {
	if len(m.Attributes) == 0 {
		m.Attributes = nil
	}
	return m
}

// parseAttributes turns key=value flags into attribute rows. Both halves
// are kept verbatim; blank pairs are dropped later by the pipeline.
func parseAttributes(raw []string) ([]domain.Attribute, error) {
	attrs := make([]domain.Attribute, 0, len(raw))
	for _, kv := range raw {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			return nil, fmt.Errorf("attribute %q must be key=value", kv)
		}
		attrs = append(attrs, domain.Attribute{Key: key, Value: value})
	}
	return attrs, nil
}
