package vmtrace

import (
	"github.com/xianny/hardhat/solidity"
)

// DecodeTrace stamps recognized bytecode onto every call and create
// trace of the tree whose code the identifier knows. Unrecognized and
// precompile traces are left untouched; the tracer degrades to its
// coarser heuristics for them.
func DecodeTrace(trace MessageTrace, identifier *solidity.ContractsIdentifier) {
	switch t := trace.(type) {
	case *PrecompileMessageTrace:
		// nothing to decode
	case *CallMessageTrace:
		if t.Bytecode == nil {
			t.Bytecode = identifier.BytecodeFor(t.Code, false)
		}
	case *CreateMessageTrace:
		if t.Bytecode == nil {
			t.Bytecode = identifier.BytecodeFor(t.Code, true)
		}
	default:
		panic("BUG: message trace kind not found")
	}

	for _, step := range trace.Base().Steps {
		if subtrace, ok := step.(MessageTrace); ok {
			DecodeTrace(subtrace, identifier)
		}
	}
}
