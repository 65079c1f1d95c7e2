package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quantcoin/internal/wallet"
)

// keygenCmd creates a fresh wallet file and prints its recovery phrase
// and address, a minimal frontend around the wallet package.
func keygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen <path>",
		Short: "generate a new wallet and save it to path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			w, mnemonic, err := wallet.New()
			if err != nil {
				return err
			}
			if err := w.Save(path); err != nil {
				return err
			}
			fmt.Printf("address:  %s\n", w.Address())
			fmt.Printf("mnemonic: %s\n", mnemonic)
			fmt.Printf("saved to: %s\n", path)
			return nil
		},
	}
	return cmd
}
