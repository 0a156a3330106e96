package vmtrace

import (
	"fmt"
	"math/big"

	"github.com/xianny/hardhat/solidity"
	"github.com/xianny/hardhat/types"
)

// MessageStep is one entry in a trace's step list: either a single
// executed instruction (EvmStep) or a nested message trace. The
// interface is sealed so that consumers can type switch exhaustively.
type MessageStep interface {
	messageStep()
}

// EvmStep is one executed instruction occurrence. The instruction
// itself is looked up by pc in the enclosing trace's bytecode.
type EvmStep struct {
	PC int
}

func (EvmStep) messageStep() {}

// MessageTrace describes one EVM call, create or precompile
// invocation, including every nested invocation it made
type MessageTrace interface {
	MessageStep

	Base() *BaseMessageTrace
}

// BaseMessageTrace carries the fields common to every trace kind
type BaseMessageTrace struct {
	// Steps is the ordered list of executed instructions and
	// nested invocations
	Steps []MessageStep

	// NumberOfSubtraces is the count of Steps entries that are
	// themselves message traces
	NumberOfSubtraces int

	// ReturnData is the data returned or reverted with
	ReturnData []byte

	// Err is the execution error, nil on success
	Err error

	// Value is the wei sent along with the message
	Value *big.Int

	// GasUsed is the gas consumed by the whole invocation
	GasUsed uint64

	// Depth is the call nesting depth, 0 for the root message
	Depth int
}

func (t *BaseMessageTrace) messageStep() {}

func (t *BaseMessageTrace) Base() *BaseMessageTrace { return t }

// PrecompileMessageTrace is a call into one of the precompiled contracts
type PrecompileMessageTrace struct {
	BaseMessageTrace

	// Precompile is the number of the called precompile
	Precompile int
}

// CallMessageTrace is a message call into a contract account
type CallMessageTrace struct {
	BaseMessageTrace

	// Address is the account the message was sent to
	Address types.Address

	// CodeAddress is the account whose code ran. Differs from Address
	// for DELEGATECALL and CALLCODE.
	CodeAddress types.Address

	// Code is the executed runtime bytecode
	Code []byte

	CallData []byte

	// Bytecode is set when the executed code was recognized as a
	// known compiled contract. Nil otherwise.
	Bytecode *solidity.Bytecode
}

// CreateMessageTrace is a contract creation message
type CreateMessageTrace struct {
	BaseMessageTrace

	// Code is the executed init bytecode
	Code []byte

	// DeployedContract is the runtime code returned by the
	// constructor. Nil when the deployment did not complete.
	DeployedContract []byte

	// Bytecode is set when the init code was recognized as a known
	// compiled contract. Nil otherwise.
	Bytecode *solidity.Bytecode
}

// DecodedBytecode returns the recognized bytecode of a call or create
// trace, or nil for precompile and unrecognized traces
func DecodedBytecode(trace MessageTrace) *solidity.Bytecode {
	switch t := trace.(type) {
	case *CallMessageTrace:
		return t.Bytecode
	case *CreateMessageTrace:
		return t.Bytecode
	case *PrecompileMessageTrace:
		return nil
	default:
		panic("BUG: message trace kind not found")
	}
}

// Validate checks the structural invariants of a trace tree: the
// declared subtrace count of every trace must match its step list.
// A violation means the upstream trace producer is broken.
func Validate(trace MessageTrace) error {
	base := trace.Base()

	subtraces := 0

	for _, step := range base.Steps {
		subtrace, ok := step.(MessageTrace)
		if !ok {
			continue
		}

		subtraces++

		if err := Validate(subtrace); err != nil {
			return err
		}
	}

	if subtraces != base.NumberOfSubtraces {
		return fmt.Errorf(
			"trace declares %d subtraces but its steps contain %d",
			base.NumberOfSubtraces,
			subtraces,
		)
	}

	return nil
}
