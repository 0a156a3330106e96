package stacktrace

import (
	"math/big"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xianny/hardhat/evm"
	"github.com/xianny/hardhat/solidity"
	"github.com/xianny/hardhat/vmtrace"
)

func TestInferFunctionNotPayable(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	inferrer := newErrorInferrer(hclog.NewNullLogger())

	trace := &vmtrace.CallMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Err:   vmtrace.ErrExecutionReverted,
			Value: big.NewInt(1),
		},
		CallData: transferCallData(),
		Bytecode: f.runtimeBytecode(nil),
	}

	stackTrace := inferrer.inferBeforeTracingCallMessage(trace)
	require.Len(t, stackTrace, 1)

	entry, ok := stackTrace[0].(*FunctionNotPayableError)
	require.True(t, ok)
	assert.Equal(t, "transfer", entry.SourceReference.FunctionName)
	assert.EqualValues(t, 1, entry.Value.Int64())
}

func TestInferMissingFallback(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	inferrer := newErrorInferrer(hclog.NewNullLogger())

	trace := &vmtrace.CallMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Err: vmtrace.ErrExecutionReverted,
		},
		CallData: []byte{0x01, 0x02, 0x03, 0x04},
		Bytecode: f.runtimeBytecode(nil),
	}

	stackTrace := inferrer.inferBeforeTracingCallMessage(trace)
	require.Len(t, stackTrace, 1)

	entry, ok := stackTrace[0].(*MissingFallbackOrReceiveError)
	require.True(t, ok)
	assert.Equal(t, "Token", entry.SourceReference.ContractName)
}

func TestInferFallbackNotPayable(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	inferrer := newErrorInferrer(hclog.NewNullLogger())

	fallback := &solidity.ContractFunc{
		Name:     FallbackFunctionName,
		Type:     solidity.FunctionTypeFallback,
		Location: f.transfer.Location,
	}
	f.contract.AddLocalFunction(fallback)

	trace := &vmtrace.CallMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Err:   vmtrace.ErrExecutionReverted,
			Value: big.NewInt(5),
		},
		CallData: []byte{0x01, 0x02, 0x03, 0x04},
		Bytecode: f.runtimeBytecode(nil),
	}

	stackTrace := inferrer.inferBeforeTracingCallMessage(trace)
	require.Len(t, stackTrace, 1)

	entry, ok := stackTrace[0].(*FallbackNotPayableError)
	require.True(t, ok)
	assert.Equal(t, FallbackFunctionName, entry.SourceReference.FunctionName)
}

func TestInferDirectLibraryCall(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	inferrer := newErrorInferrer(hclog.NewNullLogger())

	library := solidity.NewContract("SafeMath", solidity.KindLibrary, f.contract.Location)
	bytecode := solidity.NewBytecode(
		library, false, []byte{0x60, 0x80}, nil, nil, nil, testCompilerVersion,
	)

	trace := &vmtrace.CallMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Err: vmtrace.ErrExecutionReverted,
		},
		Bytecode: bytecode,
	}

	stackTrace := inferrer.inferBeforeTracingCallMessage(trace)
	require.Len(t, stackTrace, 1)

	_, ok := stackTrace[0].(*DirectLibraryCallError)
	require.True(t, ok)
}

func TestInferDirectLibraryCallOnlyAtDepthZero(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	inferrer := newErrorInferrer(hclog.NewNullLogger())

	library := solidity.NewContract("SafeMath", solidity.KindLibrary, f.contract.Location)
	bytecode := solidity.NewBytecode(
		library, false, []byte{0x60, 0x80}, nil, nil, nil, testCompilerVersion,
	)

	trace := &vmtrace.CallMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Err:   vmtrace.ErrExecutionReverted,
			Depth: 1,
		},
		Bytecode: bytecode,
	}

	assert.Nil(t, inferrer.inferBeforeTracingCallMessage(trace))
}

func TestInferConstructorNotPayable(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	inferrer := newErrorInferrer(hclog.NewNullLogger())

	trace := &vmtrace.CreateMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Err:   vmtrace.ErrExecutionReverted,
			Value: big.NewInt(7),
		},
		Code:     append([]byte{0x60, 0x80}, make([]byte, 32)...),
		Bytecode: f.deploymentBytecode([]byte{0x60, 0x80}, nil),
	}

	stackTrace := inferrer.inferBeforeTracingCreateMessage(trace)
	require.Len(t, stackTrace, 1)

	entry, ok := stackTrace[0].(*FunctionNotPayableError)
	require.True(t, ok)
	assert.Equal(t, ConstructorFunctionName, entry.SourceReference.FunctionName)
}

func TestInferConstructorInvalidParams(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	inferrer := newErrorInferrer(hclog.NewNullLogger())

	// the constructor expects a uint256 but nothing was appended
	// after the init code
	trace := &vmtrace.CreateMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Err: vmtrace.ErrExecutionReverted,
		},
		Code:     []byte{0x60, 0x80},
		Bytecode: f.deploymentBytecode([]byte{0x60, 0x80}, nil),
	}

	stackTrace := inferrer.inferBeforeTracingCreateMessage(trace)
	require.Len(t, stackTrace, 1)

	entry, ok := stackTrace[0].(*InvalidParamsError)
	require.True(t, ok)
	assert.Equal(t, ConstructorFunctionName, entry.SourceReference.FunctionName)
}

func TestInferNonContractAccountCalled(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	tracer := NewSolidityTracer(nil, nil)

	bytecode := f.runtimeBytecode([]*solidity.Instruction{
		inst(0, evm.EXTCODESIZE, solidity.NotJump, f.callSiteLoc),
		inst(1, evm.ISZERO, solidity.NotJump, f.callSiteLoc),
	})

	trace := &vmtrace.CallMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Steps: evmSteps(0, 1),
			Err:   vmtrace.ErrExecutionReverted,
		},
		CallData: transferCallData(),
		Bytecode: bytecode,
	}

	stackTrace, err := tracer.GetStackTrace(trace)
	require.NoError(t, err)

	require.Len(t, stackTrace, 1)

	entry, ok := stackTrace[0].(*NoncontractAccountCalledError)
	require.True(t, ok)
	assert.Equal(t, "transfer", entry.SourceReference.FunctionName)
}

func TestInferContractTooLarge(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	tracer := NewSolidityTracer(nil, nil)

	bytecode := f.deploymentBytecode([]byte{0x60, 0x80}, []*solidity.Instruction{
		inst(0, evm.PUSH1, solidity.NotJump, f.constructor.Location),
	})

	trace := &vmtrace.CreateMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Steps: evmSteps(0),
			Err:   vmtrace.ErrCodeStoreOutOfGas,
		},
		Code:     append([]byte{0x60, 0x80}, make([]byte, 32)...),
		Bytecode: bytecode,
	}

	stackTrace, err := tracer.GetStackTrace(trace)
	require.NoError(t, err)

	require.Len(t, stackTrace, 1)

	entry, ok := stackTrace[0].(*ContractTooLargeError)
	require.True(t, ok)
	assert.Equal(t, "Token", entry.SourceReference.ContractName)
}

func TestInferCallFailedToExecute(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	tracer := NewSolidityTracer(nil, nil)

	// the CALL at pc 0 never spawned a subtrace: it could not start
	bytecode := f.runtimeBytecode([]*solidity.Instruction{
		inst(0, evm.CALL, solidity.NotJump, f.callSiteLoc),
		inst(1, evm.PUSH1, solidity.NotJump, f.callSiteLoc),
	})

	trace := &vmtrace.CallMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Steps: evmSteps(0, 1),
			Err:   vmtrace.ErrOutOfGas,
		},
		CallData: transferCallData(),
		Bytecode: bytecode,
	}

	stackTrace, err := tracer.GetStackTrace(trace)
	require.NoError(t, err)

	require.Len(t, stackTrace, 1)

	entry, ok := stackTrace[0].(*CallFailedError)
	require.True(t, ok)
	assert.Equal(t, f.callSiteLoc.StartingLine(), entry.SourceReference.Line)
}

func TestInferSolidity063UnmappedRevert(t *testing.T) {
	t.Parallel()

	f := newTokenFixture(t)
	tracer := NewSolidityTracer(nil, nil)

	bytecode := solidity.NewBytecode(
		f.contract,
		false,
		[]byte{0x60, 0x80},
		[]*solidity.Instruction{
			inst(0, evm.PUSH1, solidity.NotJump, f.revertLoc),
			inst(2, evm.REVERT, solidity.NotJump, nil),
		},
		nil,
		nil,
		"0.6.3",
	)

	trace := &vmtrace.CallMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Steps: evmSteps(0, 2),
			Err:   vmtrace.ErrExecutionReverted,
		},
		CallData: transferCallData(),
		Bytecode: bytecode,
	}

	stackTrace, err := tracer.GetStackTrace(trace)
	require.NoError(t, err)

	require.Len(t, stackTrace, 1)

	entry, ok := stackTrace[0].(*UnmappedSolc063RevertError)
	require.True(t, ok)
	assert.Equal(t, f.revertLoc.StartingLine(), entry.SourceReference.Line)
}
