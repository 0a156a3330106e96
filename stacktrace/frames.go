package stacktrace

import (
	"github.com/xianny/hardhat/solidity"
	"github.com/xianny/hardhat/vmtrace"
)

// decodedTrace is a call or create trace with recognized bytecode,
// viewed uniformly by the walker and the error inferrer
type decodedTrace struct {
	trace    vmtrace.MessageTrace
	bytecode *solidity.Bytecode
	isCall   bool
}

func newDecodedCallTrace(trace *vmtrace.CallMessageTrace) decodedTrace {
	return decodedTrace{
		trace:    trace,
		bytecode: trace.Bytecode,
		isCall:   true,
	}
}

func newDecodedCreateTrace(trace *vmtrace.CreateMessageTrace) decodedTrace {
	return decodedTrace{
		trace:    trace,
		bytecode: trace.Bytecode,
	}
}

func (d decodedTrace) base() *vmtrace.BaseMessageTrace {
	return d.trace.Base()
}

// callTrace returns the underlying call trace, or nil for creates
func (d decodedTrace) callTrace() *vmtrace.CallMessageTrace {
	if !d.isCall {
		return nil
	}

	return d.trace.(*vmtrace.CallMessageTrace)
}

func functionKind(fnType solidity.FunctionType) FunctionKind {
	switch fnType {
	case solidity.FunctionTypeConstructor:
		return FunctionKindConstructor
	case solidity.FunctionTypeFallback:
		return FunctionKindFallback
	case solidity.FunctionTypeReceive:
		return FunctionKindReceive
	case solidity.FunctionTypeModifier:
		return FunctionKindModifier
	default:
		return FunctionKindFunction
	}
}

// functionDisplayName returns the name a frame shows for a function,
// substituting the synthetic names for unnamed declarations
func functionDisplayName(fn *solidity.ContractFunc) string {
	switch fn.Type {
	case solidity.FunctionTypeConstructor:
		return ConstructorFunctionName
	case solidity.FunctionTypeFallback:
		return FallbackFunctionName
	case solidity.FunctionTypeReceive:
		return ReceiveFunctionName
	default:
		return fn.Name
	}
}

func sourceReferenceFromLocation(
	bytecode *solidity.Bytecode,
	location *solidity.SourceLocation,
) *SourceReference {
	if location == nil || location.File == nil {
		return nil
	}

	ref := &SourceReference{
		SourceName:    location.File.Name,
		SourceContent: location.File.Content,
		ContractName:  bytecode.Contract.Name,
		Line:          location.StartingLine(),
		Range:         [2]int{location.Offset, location.Offset + location.Length},
	}

	if fn := location.ContainingFunction(); fn != nil {
		ref.FunctionName = functionDisplayName(fn)
	}

	return ref
}

// sourceReferenceFromFunction points at the whole declaration of a
// function rather than a single instruction's range
func sourceReferenceFromFunction(
	bytecode *solidity.Bytecode,
	fn *solidity.ContractFunc,
) *SourceReference {
	ref := sourceReferenceFromLocation(bytecode, fn.Location)
	if ref == nil {
		return contractSourceReference(bytecode)
	}

	ref.FunctionName = functionDisplayName(fn)

	return ref
}

// contractSourceReference points at the contract declaration itself,
// used when nothing finer grained is known
func contractSourceReference(bytecode *solidity.Bytecode) *SourceReference {
	location := bytecode.Contract.Location
	if location == nil || location.File == nil {
		return nil
	}

	return &SourceReference{
		SourceName:    location.File.Name,
		SourceContent: location.File.Content,
		ContractName:  bytecode.Contract.Name,
		Line:          location.StartingLine(),
		Range:         [2]int{location.Offset, location.Offset + location.Length},
	}
}

// instructionToCallstackEntry builds the frame for a function entry
// jump or a call site. Jumps made from compiler-generated code have
// no source mapping and produce a synthetic internal frame instead.
func instructionToCallstackEntry(
	bytecode *solidity.Bytecode,
	inst *solidity.Instruction,
) StackTraceEntry {
	if inst.Location == nil {
		return &InternalFunctionCallstackEntry{
			PC:              inst.PC,
			SourceReference: contractSourceReference(bytecode),
		}
	}

	if fn := inst.Location.ContainingFunction(); fn != nil {
		return &CallstackEntry{
			SourceReference: sourceReferenceFromLocation(bytecode, inst.Location),
			FunctionType:    functionKind(fn.Type),
		}
	}

	return &CallstackEntry{
		SourceReference: sourceReferenceFromLocation(bytecode, inst.Location),
		FunctionType:    FunctionKindFunction,
	}
}
