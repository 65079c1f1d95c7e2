package gossip

import (
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"quantcoin/internal/peerserver"
	"quantcoin/internal/protocol"
	"quantcoin/internal/store"
)

func startEchoServer(t *testing.T, cmd string, handler peerserver.HandlerFunc) store.Peer {
	t.Helper()
	s := peerserver.New("127.0.0.1:0")
	s.Handle(cmd, handler)
	done := make(chan error, 1)
	go func() { done <- s.Serve() }()

	deadline := time.Now().Add(time.Second)
	for s.Addr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for server to start")
		}
		time.Sleep(time.Millisecond)
	}
	t.Cleanup(func() {
		s.Stop()
		<-done
	})

	host, portStr, err := net.SplitHostPort(s.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("Atoi: %v", err)
	}
	return store.Peer{IP: host, Port: port}
}

func TestForwardNoOpWithoutPeers(t *testing.T) {
	c := New(store.NewMemory())
	c.Forward(protocol.NewGetNodesCommand(), func(store.Peer, []byte) {
		t.Fatal("expected no response callback with zero known peers")
	})
}

func TestForwardDeliversToKnownPeer(t *testing.T) {
	var received protocol.Command
	var mu sync.Mutex
	gotCh := make(chan struct{}, 1)
	peer := startEchoServer(t, protocol.CmdGetNodes, func(cmd *protocol.Command) ([]byte, error) {
		mu.Lock()
		received = *cmd
		mu.Unlock()
		gotCh <- struct{}{}
		return protocol.EncodeNodesResponse([]protocol.NodeAddr{{IP: "10.0.0.1", Port: 1}})
	})

	s := store.NewMemory()
	s.StoreNode(peer)
	c := New(s)

	responses := make(chan []protocol.NodeAddr, 1)
	c.GetNodes(func(_ store.Peer, nodes []protocol.NodeAddr) {
		responses <- nodes
	})

	select {
	case <-gotCh:
	case <-time.After(time.Second):
		t.Fatal("peer never received the command")
	}
	mu.Lock()
	if received.Cmd != protocol.CmdGetNodes {
		t.Fatalf("unexpected command received: %+v", received)
	}
	mu.Unlock()

	select {
	case nodes := <-responses:
		if len(nodes) != 1 || nodes[0].Port != 1 {
			t.Fatalf("unexpected response: %+v", nodes)
		}
	case <-time.After(time.Second):
		t.Fatal("response callback never fired")
	}
}

func TestForwardSwallowsUnreachablePeer(t *testing.T) {
	s := store.NewMemory()
	s.StoreNode(store.Peer{IP: "127.0.0.1", Port: 1})
	c := New(s)
	c.timeout = 200 * time.Millisecond

	done := make(chan struct{})
	go func() {
		c.Forward(protocol.NewRegisterCommand("1.2.3.4", 9), nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Forward to return promptly despite an unreachable peer")
	}
}
