package cli

import (
	"io"
	"strconv"
	"strings"

	"github.com/pterm/pterm"

	"github.com/nftstudio/nft-minter/internal/core/domain"
)

func printStatus(out io.Writer, s domain.Status) {
	if s.IsZero() {
		return
	}
	pterm.Warning.WithWriter(out).Println(s.String())
}

func printMintResult(out io.Writer, r domain.MintResult) {
	var printer *pterm.PrefixPrinter
	switch r.State {
	case domain.MintStateSuccess:
		printer = pterm.Success.WithWriter(out)
	case domain.MintStatePending:
		printer = pterm.Warning.WithWriter(out)
	default:
		printer = pterm.Error.WithWriter(out)
	}
	printer.Println(r.Status.String())

	rows := [][]string{}
	if r.TransactionHash != "" {
		rows = append(rows, []string{"Transaction", r.TransactionHash})
	}
	if r.TokenID != nil {
		rows = append(rows, []string{"Token ID", strconv.FormatUint(*r.TokenID, 10)})
	}
	if r.TokenURI != "" {
		rows = append(rows, []string{"Token URI", r.TokenURI})
	}
	if len(rows) > 0 {
		_ = pterm.DefaultTable.WithWriter(out).WithData(rows).Render()
	}
}

func galleryTable(items []domain.GalleryItem) [][]string {
	data := [][]string{{"Name", "Token ID", "Contract", "Attributes", "Image"}}
	for _, it := range items {
		attrs := make([]string, 0, len(it.Attributes))
		for _, a := range it.Attributes {
			attrs = append(attrs, a.Key+": "+a.Value)
		}
		data = append(data, []string{it.Name, it.TokenID, it.ContractAddress, strings.Join(attrs, ", "), it.Image})
	}
	return data
}
