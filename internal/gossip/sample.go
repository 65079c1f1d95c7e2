package gossip

import (
	crand "crypto/rand"
	"math/big"

	"quantcoin/internal/store"
)

// maxFanOut bounds how many peers a single forward() call reaches.
const maxFanOut = 100

// sample returns up to n peers drawn uniformly at random from all,
// using a Fisher-Yates shuffle over crypto/rand.
func sample(all []store.Peer, n int) []store.Peer {
	peers := make([]store.Peer, len(all))
	copy(peers, all)
	for i := len(peers) - 1; i > 0; i-- {
		j, err := crand.Int(crand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			break
		}
		peers[i], peers[int(j.Int64())] = peers[int(j.Int64())], peers[i]
	}
	if n > len(peers) {
		n = len(peers)
	}
	return peers[:n]
}
