package protocol

import (
	"encoding/json"
	"fmt"

	"quantcoin/internal/chain"
)

// NodeAddr is a peer address as carried on the wire: a two-element
// [ip, port] JSON array.
type NodeAddr struct {
	IP   string
	Port int
}

func (n NodeAddr) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{n.IP, n.Port})
}

func (n *NodeAddr) UnmarshalJSON(data []byte) error {
	var tuple [2]any
	if err := json.Unmarshal(data, &tuple); err != nil {
		return err
	}
	ip, ok := tuple[0].(string)
	if !ok {
		return fmt.Errorf("node address: expected ip string")
	}
	port, ok := tuple[1].(float64)
	if !ok {
		return fmt.Errorf("node address: expected numeric port")
	}
	n.IP = ip
	n.Port = int(port)
	return nil
}

// EncodeNodesResponse encodes the get_nodes response payload.
func EncodeNodesResponse(nodes []NodeAddr) ([]byte, error) {
	return json.Marshal(nodes)
}

// DecodeNodesResponse decodes a get_nodes response payload.
func DecodeNodesResponse(payload []byte) ([]NodeAddr, error) {
	var nodes []NodeAddr
	if err := json.Unmarshal(payload, &nodes); err != nil {
		return nil, fmt.Errorf("decode nodes response: %w", err)
	}
	return nodes, nil
}

// EncodeBlocksResponse encodes the get_blocks response payload.
func EncodeBlocksResponse(blocks []*chain.Block) ([]byte, error) {
	wire := make([]json.RawMessage, len(blocks))
	for i, b := range blocks {
		data, err := b.CanonicalJSON()
		if err != nil {
			return nil, fmt.Errorf("encode blocks response: %w", err)
		}
		wire[i] = data
	}
	return json.Marshal(wire)
}

// DecodeBlocksResponse decodes a get_blocks response payload.
func DecodeBlocksResponse(payload []byte) ([]*chain.Block, error) {
	var wire []json.RawMessage
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("decode blocks response: %w", err)
	}
	blocks := make([]*chain.Block, len(wire))
	for i, raw := range wire {
		b, err := chain.BlockFromJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("decode blocks response block %d: %w", i, err)
		}
		blocks[i] = b
	}
	return blocks, nil
}
