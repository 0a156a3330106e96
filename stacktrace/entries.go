package stacktrace

import (
	"math/big"

	"github.com/xianny/hardhat/types"
)

// Synthetic function names used in source references for functions
// that have no identifier in the source
const (
	FallbackFunctionName    = "<fallback>"
	ReceiveFunctionName     = "<receive>"
	ConstructorFunctionName = "constructor"
)

// EntryType discriminates the stack trace entry variants
type EntryType int

const (
	EntryTypeCallstack EntryType = iota
	EntryTypeUnrecognizedCreateCallstack
	EntryTypeUnrecognizedContractCallstack
	EntryTypeInternalFunctionCallstack
	EntryTypeRevertError
	EntryTypePanicError
	EntryTypeCustomError
	EntryTypeFunctionNotPayableError
	EntryTypeInvalidParamsError
	EntryTypeFallbackNotPayableError
	EntryTypeMissingFallbackOrReceiveError
	EntryTypeReturndataSizeError
	EntryTypeNoncontractAccountCalledError
	EntryTypeCallFailedError
	EntryTypeDirectLibraryCallError
	EntryTypeUnrecognizedCreateError
	EntryTypeUnrecognizedContractError
	EntryTypeOtherExecutionError
	EntryTypeUnmappedSolc063RevertError
	EntryTypeContractTooLargeError
	EntryTypePrecompileError
	EntryTypeContractCallRunOutOfGasError
)

func (e EntryType) String() string {
	switch e {
	case EntryTypeCallstack:
		return "CallstackEntry"
	case EntryTypeUnrecognizedCreateCallstack:
		return "UnrecognizedCreateCallstackEntry"
	case EntryTypeUnrecognizedContractCallstack:
		return "UnrecognizedContractCallstackEntry"
	case EntryTypeInternalFunctionCallstack:
		return "InternalFunctionCallstackEntry"
	case EntryTypeRevertError:
		return "RevertError"
	case EntryTypePanicError:
		return "PanicError"
	case EntryTypeCustomError:
		return "CustomError"
	case EntryTypeFunctionNotPayableError:
		return "FunctionNotPayableError"
	case EntryTypeInvalidParamsError:
		return "InvalidParamsError"
	case EntryTypeFallbackNotPayableError:
		return "FallbackNotPayableError"
	case EntryTypeMissingFallbackOrReceiveError:
		return "MissingFallbackOrReceiveError"
	case EntryTypeReturndataSizeError:
		return "ReturndataSizeError"
	case EntryTypeNoncontractAccountCalledError:
		return "NoncontractAccountCalledError"
	case EntryTypeCallFailedError:
		return "CallFailedError"
	case EntryTypeDirectLibraryCallError:
		return "DirectLibraryCallError"
	case EntryTypeUnrecognizedCreateError:
		return "UnrecognizedCreateError"
	case EntryTypeUnrecognizedContractError:
		return "UnrecognizedContractError"
	case EntryTypeOtherExecutionError:
		return "OtherExecutionError"
	case EntryTypeUnmappedSolc063RevertError:
		return "UnmappedSolc063RevertError"
	case EntryTypeContractTooLargeError:
		return "ContractTooLargeError"
	case EntryTypePrecompileError:
		return "PrecompileError"
	case EntryTypeContractCallRunOutOfGasError:
		return "ContractCallRunOutOfGasError"
	default:
		panic("BUG: entry type not found")
	}
}

// SourceReference points a stack trace entry at a source range
type SourceReference struct {
	SourceName    string
	SourceContent string
	ContractName  string

	// FunctionName is empty when no enclosing function is known
	FunctionName string

	Line  int
	Range [2]int
}

// StackTraceEntry is one frame of a reconstructed Solidity stack
// trace. The interface is sealed; consumers are expected to type
// switch over the concrete variants.
type StackTraceEntry interface {
	EntryType() EntryType

	// SourceRef returns the source range the frame points at,
	// or nil when the entry carries none
	SourceRef() *SourceReference
}

// SolidityStackTrace is an ordered sequence of frames, outermost
// call first
type SolidityStackTrace []StackTraceEntry

// CallstackEntry is a frame for an entered function
type CallstackEntry struct {
	SourceReference *SourceReference
	FunctionType    FunctionKind
}

// FunctionKind mirrors the declaration kind of the function a
// callstack frame refers to
type FunctionKind int

const (
	FunctionKindFunction FunctionKind = iota
	FunctionKindConstructor
	FunctionKindFallback
	FunctionKindReceive
	FunctionKindModifier
)

func (e *CallstackEntry) EntryType() EntryType        { return EntryTypeCallstack }
func (e *CallstackEntry) SourceRef() *SourceReference { return e.SourceReference }

// UnrecognizedCreateCallstackEntry is a frame for a creation of a
// contract whose bytecode was not recognized
type UnrecognizedCreateCallstackEntry struct{}

func (e *UnrecognizedCreateCallstackEntry) EntryType() EntryType        { return EntryTypeUnrecognizedCreateCallstack }
func (e *UnrecognizedCreateCallstackEntry) SourceRef() *SourceReference { return nil }

// UnrecognizedContractCallstackEntry is a frame for a call into a
// contract whose bytecode was not recognized
type UnrecognizedContractCallstackEntry struct {
	Address types.Address
}

func (e *UnrecognizedContractCallstackEntry) EntryType() EntryType {
	return EntryTypeUnrecognizedContractCallstack
}
func (e *UnrecognizedContractCallstackEntry) SourceRef() *SourceReference { return nil }

// InternalFunctionCallstackEntry is a frame for a jump made from
// compiler-generated code with no Solidity function mapping
type InternalFunctionCallstackEntry struct {
	PC              int
	SourceReference *SourceReference
}

func (e *InternalFunctionCallstackEntry) EntryType() EntryType        { return EntryTypeInternalFunctionCallstack }
func (e *InternalFunctionCallstackEntry) SourceRef() *SourceReference { return e.SourceReference }

// RevertError is the terminal frame of an execution ended by REVERT
// or by the designated invalid opcode
type RevertError struct {
	ReturnData      ReturnData
	SourceReference *SourceReference
	IsInvalidOpcode bool
}

func (e *RevertError) EntryType() EntryType        { return EntryTypeRevertError }
func (e *RevertError) SourceRef() *SourceReference { return e.SourceReference }

// PanicError is the terminal frame of an execution ended by a
// compiler-generated Panic(uint256)
type PanicError struct {
	Code            *big.Int
	SourceReference *SourceReference
}

func (e *PanicError) EntryType() EntryType        { return EntryTypePanicError }
func (e *PanicError) SourceRef() *SourceReference { return e.SourceReference }

// CustomError is the terminal frame of an execution reverted with a
// user-defined error
type CustomError struct {
	Message         string
	SourceReference *SourceReference
}

func (e *CustomError) EntryType() EntryType        { return EntryTypeCustomError }
func (e *CustomError) SourceRef() *SourceReference { return e.SourceReference }

// FunctionNotPayableError reports value sent to a non-payable
// function or constructor
type FunctionNotPayableError struct {
	Value           *big.Int
	SourceReference *SourceReference
}

func (e *FunctionNotPayableError) EntryType() EntryType        { return EntryTypeFunctionNotPayableError }
func (e *FunctionNotPayableError) SourceRef() *SourceReference { return e.SourceReference }

// InvalidParamsError reports arguments that could not be decoded for
// the called function or constructor
type InvalidParamsError struct {
	SourceReference *SourceReference
}

func (e *InvalidParamsError) EntryType() EntryType        { return EntryTypeInvalidParamsError }
func (e *InvalidParamsError) SourceRef() *SourceReference { return e.SourceReference }

// FallbackNotPayableError reports value sent to a contract whose
// fallback function is not payable
type FallbackNotPayableError struct {
	Value           *big.Int
	SourceReference *SourceReference
}

func (e *FallbackNotPayableError) EntryType() EntryType        { return EntryTypeFallbackNotPayableError }
func (e *FallbackNotPayableError) SourceRef() *SourceReference { return e.SourceReference }

// MissingFallbackOrReceiveError reports a call that matched no
// function selector on a contract without fallback or receive
type MissingFallbackOrReceiveError struct {
	SourceReference *SourceReference
}

func (e *MissingFallbackOrReceiveError) EntryType() EntryType {
	return EntryTypeMissingFallbackOrReceiveError
}
func (e *MissingFallbackOrReceiveError) SourceRef() *SourceReference { return e.SourceReference }

// ReturndataSizeError reports a revert caused by the caller's check
// of the returned data size after an otherwise successful call
type ReturndataSizeError struct {
	SourceReference *SourceReference
}

func (e *ReturndataSizeError) EntryType() EntryType        { return EntryTypeReturndataSizeError }
func (e *ReturndataSizeError) SourceRef() *SourceReference { return e.SourceReference }

// NoncontractAccountCalledError reports a call into an account with
// no code where the calling contract required one
type NoncontractAccountCalledError struct {
	SourceReference *SourceReference
}

func (e *NoncontractAccountCalledError) EntryType() EntryType {
	return EntryTypeNoncontractAccountCalledError
}
func (e *NoncontractAccountCalledError) SourceRef() *SourceReference { return e.SourceReference }

// CallFailedError is the terminal frame for a call that could not
// even start executing
type CallFailedError struct {
	SourceReference *SourceReference
}

func (e *CallFailedError) EntryType() EntryType        { return EntryTypeCallFailedError }
func (e *CallFailedError) SourceRef() *SourceReference { return e.SourceReference }

// DirectLibraryCallError reports a transaction sent directly to a
// library, which always fails
type DirectLibraryCallError struct {
	SourceReference *SourceReference
}

func (e *DirectLibraryCallError) EntryType() EntryType        { return EntryTypeDirectLibraryCallError }
func (e *DirectLibraryCallError) SourceRef() *SourceReference { return e.SourceReference }

// UnrecognizedCreateError is the terminal frame for a failing
// creation of unrecognized bytecode
type UnrecognizedCreateError struct {
	Message         ReturnData
	IsInvalidOpcode bool
}

func (e *UnrecognizedCreateError) EntryType() EntryType        { return EntryTypeUnrecognizedCreateError }
func (e *UnrecognizedCreateError) SourceRef() *SourceReference { return nil }

// UnrecognizedContractError is the terminal frame for a failing call
// into unrecognized bytecode
type UnrecognizedContractError struct {
	Address         types.Address
	Message         ReturnData
	IsInvalidOpcode bool
}

func (e *UnrecognizedContractError) EntryType() EntryType        { return EntryTypeUnrecognizedContractError }
func (e *UnrecognizedContractError) SourceRef() *SourceReference { return nil }

// OtherExecutionError is the terminal frame when no more specific
// classification applied
type OtherExecutionError struct {
	SourceReference *SourceReference
}

func (e *OtherExecutionError) EntryType() EntryType        { return EntryTypeOtherExecutionError }
func (e *OtherExecutionError) SourceRef() *SourceReference { return e.SourceReference }

// UnmappedSolc063RevertError is the terminal frame for the reverts
// solc 0.6.x emits without a source mapping
type UnmappedSolc063RevertError struct {
	SourceReference *SourceReference
}

func (e *UnmappedSolc063RevertError) EntryType() EntryType        { return EntryTypeUnmappedSolc063RevertError }
func (e *UnmappedSolc063RevertError) SourceRef() *SourceReference { return e.SourceReference }

// ContractTooLargeError reports a deployment whose runtime code could
// not be stored
type ContractTooLargeError struct {
	SourceReference *SourceReference
}

func (e *ContractTooLargeError) EntryType() EntryType        { return EntryTypeContractTooLargeError }
func (e *ContractTooLargeError) SourceRef() *SourceReference { return e.SourceReference }

// PrecompileError is the single frame produced for a failing
// precompile call
type PrecompileError struct {
	Precompile int
}

func (e *PrecompileError) EntryType() EntryType        { return EntryTypePrecompileError }
func (e *PrecompileError) SourceRef() *SourceReference { return nil }

// ContractCallRunOutOfGasError reports a caller that ran out of gas
// while forwarding to a sub-call
type ContractCallRunOutOfGasError struct {
	SourceReference *SourceReference
}

func (e *ContractCallRunOutOfGasError) EntryType() EntryType {
	return EntryTypeContractCallRunOutOfGasError
}
func (e *ContractCallRunOutOfGasError) SourceRef() *SourceReference { return e.SourceReference }
