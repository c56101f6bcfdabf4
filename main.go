package main

import "github.com/nftstudio/nft-minter/internal/cli"

func main() {
	cli.Execute()
}
