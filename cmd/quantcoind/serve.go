package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quantcoin/internal/chain"
	"quantcoin/internal/chainlog"
	"quantcoin/internal/gossip"
	"quantcoin/internal/miner"
	"quantcoin/internal/nodeconfig"
	"quantcoin/internal/peerserver"
	"quantcoin/internal/protocol"
	"quantcoin/internal/store"
	"quantcoin/internal/validator"
	"quantcoin/internal/wallet"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the peer server, and optionally the miner",
		RunE:  runServe,
	}
	cmd.Flags().String("config", "", "path to a node YAML config file")
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := nodeconfig.Load(configPath)
	if err != nil {
		return err
	}
	chainlog.SetLevel(cfg.LogLevel)
	log := chainlog.For("serve")

	w, err := loadOrCreateWallet(cfg.WalletFile)
	if err != nil {
		return fmt.Errorf("load wallet: %w", err)
	}
	log.WithField("address", w.Address()).Info("node identity")

	s := store.NewMemory()
	v := validator.New(s)
	network := gossip.New(s)
	m := miner.New(w.Address(), cfg.MinTxCount, cfg.MinCommission, v, network)

	srv := peerserver.New(cfg.ListenAddr)
	registerHandlers(srv, s, v, network, m)

	selfRegister(s, network, cfg.ListenAddr, cfg.BootstrapPeers, log)

	if cfg.Mine {
		m.Start()
		log.Info("miner started")
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-shutdown
		log.Info("shutting down")
		if cfg.Mine {
			m.Stop()
		}
		srv.Stop()
	}()

	return srv.Serve()
}

// registerHandlers wires the fixed command set to this node's store,
// validator, network client, and miner.
func registerHandlers(srv *peerserver.Server, s store.Store, v *validator.Validator, network *gossip.Client, m *miner.Miner) {
	log := chainlog.For("peerserver")

	srv.Handle(protocol.CmdGetNodes, func(cmd *protocol.Command) ([]byte, error) {
		nodes := s.AllNodes()
		wire := make([]protocol.NodeAddr, len(nodes))
		for i, n := range nodes {
			wire[i] = protocol.NodeAddr{IP: n.IP, Port: n.Port}
		}
		return protocol.EncodeNodesResponse(wire)
	})

	srv.Handle(protocol.CmdGetBlocks, func(cmd *protocol.Command) ([]byte, error) {
		var blocks []*chain.Block
		if cmd.Range != nil {
			blocks = s.BlockRange(cmd.Range[0], cmd.Range[1])
		} else {
			blocks = s.Blocks()
		}
		return protocol.EncodeBlocksResponse(blocks)
	})

	srv.Handle(protocol.CmdRegister, func(cmd *protocol.Command) ([]byte, error) {
		if err := s.StoreNode(store.Peer{IP: cmd.Address, Port: cmd.Port}); err != nil {
			return nil, err
		}
		log.WithField("peer", fmt.Sprintf("%s:%d", cmd.Address, cmd.Port)).Debug("registered peer")
		return nil, nil
	})

	srv.Handle(protocol.CmdNewBlock, func(cmd *protocol.Command) ([]byte, error) {
		block, err := cmd.DecodedBlock()
		if err != nil {
			return nil, err
		}
		accepted, reason, err := v.AdmitBlock(block)
		if err != nil {
			return nil, err
		}
		if !accepted {
			log.WithField("reason", reason).Debug("rejected inbound block")
			return nil, nil
		}
		network.NewBlock(block)
		return nil, nil
	})

	srv.Handle(protocol.CmdSend, func(cmd *protocol.Command) ([]byte, error) {
		tx, err := cmd.DecodedTransaction()
		if err != nil {
			return nil, err
		}
		accepted, err := m.Send(tx)
		if err != nil {
			return nil, err
		}
		if accepted {
			network.Send(tx)
		}
		return nil, nil
	})
}

// selfRegister records every bootstrap peer locally and then announces
// this node's own address to the network. A fresh node otherwise has
// no way to enter an existing peer set.
func selfRegister(s store.Store, network *gossip.Client, listenAddr string, bootstrap []string, log *logrus.Entry) {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return
	}
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}

	for _, addr := range bootstrap {
		peerHost, peerPortStr, err := net.SplitHostPort(addr)
		if err != nil {
			log.Warnf("skipping malformed bootstrap peer %q: %v", addr, err)
			continue
		}
		peerPort, err := strconv.Atoi(peerPortStr)
		if err != nil {
			log.Warnf("skipping malformed bootstrap peer %q: %v", addr, err)
			continue
		}
		s.StoreNode(store.Peer{IP: peerHost, Port: peerPort})
	}
	if len(bootstrap) > 0 {
		network.Register(host, port)
	}
}

func loadOrCreateWallet(path string) (*wallet.Wallet, error) {
	if _, err := os.Stat(path); err == nil {
		return wallet.Load(path)
	}
	w, mnemonic, err := wallet.New()
	if err != nil {
		return nil, err
	}
	if err := w.Save(path); err != nil {
		return nil, err
	}
	chainlog.For("serve").WithField("mnemonic", mnemonic).Warn("generated a new wallet; record this mnemonic")
	return w, nil
}
