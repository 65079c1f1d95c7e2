package main

import (
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"quantcoin/internal/gossip"
	"quantcoin/internal/store"
)

// registerCmd announces a local address to a single seed peer, a
// one-shot version of what serve does automatically against its
// configured bootstrap peers.
func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register <seed-host:port> <self-host:port>",
		Short: "register this node's address with a seed peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			seedHost, seedPortStr, err := net.SplitHostPort(args[0])
			if err != nil {
				return fmt.Errorf("seed address: %w", err)
			}
			seedPort, err := strconv.Atoi(seedPortStr)
			if err != nil {
				return fmt.Errorf("seed port: %w", err)
			}
			selfHost, selfPortStr, err := net.SplitHostPort(args[1])
			if err != nil {
				return fmt.Errorf("self address: %w", err)
			}
			selfPort, err := strconv.Atoi(selfPortStr)
			if err != nil {
				return fmt.Errorf("self port: %w", err)
			}

			s := store.NewMemory()
			s.StoreNode(store.Peer{IP: seedHost, Port: seedPort})
			network := gossip.New(s)
			network.Register(selfHost, selfPort)

			fmt.Printf("registered %s:%d with seed %s:%d\n", selfHost, selfPort, seedHost, seedPort)
			return nil
		},
	}
	return cmd
}
