package protocol

import (
	"encoding/json"
	"fmt"

	"quantcoin/internal/chain"
	"quantcoin/internal/errs"
)

// Command names, the fixed set the dispatch table recognizes.
const (
	CmdGetNodes       = "get_nodes"
	CmdGetBlocks      = "get_blocks"
	CmdRegister       = "register"
	CmdNewBlock       = "new_block"
	CmdSend           = "send"
	CmdGetRangeBlocks = "get_range_blocks"
)

// knownCommands is the fixed set of commands the wire protocol accepts.
// get_range_blocks is a client-side convenience only: it is always
// sent as get_blocks with a range field, so it never appears here.
var knownCommands = map[string]bool{
	CmdGetNodes:  true,
	CmdGetBlocks: true,
	CmdRegister:  true,
	CmdNewBlock:  true,
	CmdSend:      true,
}

// Command is the envelope every frame payload carries: a mandatory cmd
// field plus whichever of the optional fields that command uses.
type Command struct {
	Cmd         string          `json:"cmd"`
	Address     string          `json:"address,omitempty"`
	Port        int             `json:"port,omitempty"`
	Range       *[2]int         `json:"range,omitempty"`
	Block       json.RawMessage `json:"block,omitempty"`
	Transaction json.RawMessage `json:"transaction,omitempty"`
}

// DecodeCommand parses a frame payload into a Command and checks that
// its cmd field is one of the fixed set.
func DecodeCommand(payload []byte) (*Command, error) {
	var c Command
	if err := json.Unmarshal(payload, &c); err != nil {
		return nil, fmt.Errorf("decode command: %w: %v", errs.ErrMalformedFrame, err)
	}
	if !knownCommands[c.Cmd] {
		return nil, fmt.Errorf("%w: %q", errs.ErrUnknownCommand, c.Cmd)
	}
	return &c, nil
}

// Encode serializes c back to its JSON payload form.
func (c *Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}

// DecodedBlock decodes the command's block field as a chain.Block.
func (c *Command) DecodedBlock() (*chain.Block, error) {
	if len(c.Block) == 0 {
		return nil, fmt.Errorf("command %q carries no block field", c.Cmd)
	}
	return chain.BlockFromJSON(c.Block)
}

// DecodedTransaction decodes the command's transaction field as a
// chain.Transaction.
func (c *Command) DecodedTransaction() (*chain.Transaction, error) {
	if len(c.Transaction) == 0 {
		return nil, fmt.Errorf("command %q carries no transaction field", c.Cmd)
	}
	return chain.TransactionFromJSON(c.Transaction)
}

// NewGetNodesCommand builds a get_nodes command.
func NewGetNodesCommand() *Command {
	return &Command{Cmd: CmdGetNodes}
}

// NewGetBlocksCommand builds a get_blocks command, optionally scoped
// to the half-open range [lo, hi).
func NewGetBlocksCommand(rng *[2]int) *Command {
	return &Command{Cmd: CmdGetBlocks, Range: rng}
}

// NewRegisterCommand builds a register command announcing a peer.
func NewRegisterCommand(address string, port int) *Command {
	return &Command{Cmd: CmdRegister, Address: address, Port: port}
}

// NewNewBlockCommand builds a new_block command carrying b's wire encoding.
func NewNewBlockCommand(b *chain.Block) (*Command, error) {
	data, err := b.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	return &Command{Cmd: CmdNewBlock, Block: data}, nil
}

// NewSendCommand builds a send command carrying tx's wire encoding.
func NewSendCommand(tx *chain.Transaction) (*Command, error) {
	data, err := tx.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	return &Command{Cmd: CmdSend, Transaction: data}, nil
}
