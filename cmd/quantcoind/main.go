// Command quantcoind runs a QuantCoin node: the peer server, the
// optional miner, and a handful of wallet and network utilities,
// stitched together as a small cobra command tree.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"quantcoin/internal/chainlog"
)

func main() {
	rootCmd := &cobra.Command{Use: "quantcoind"}
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(keygenCmd())
	rootCmd.AddCommand(configCmd())
	if err := rootCmd.Execute(); err != nil {
		chainlog.For("cli").WithError(err).Error("command failed")
		os.Exit(1)
	}
}
