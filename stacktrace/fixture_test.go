package stacktrace

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xianny/hardhat/evm"
	"github.com/xianny/hardhat/solidity"
	"github.com/xianny/hardhat/vmtrace"
)

const testCompilerVersion = "0.8.4"

const testSource = `pragma solidity ^0.8.4;

contract Token {
    constructor(uint256 supply) {}

    function transfer(address to, uint256 amount) external {
        checkBalance(amount);
    }

    function checkBalance(uint256 amount) internal pure {
        revert("insufficient balance");
    }
}
`

// selector of transfer(address,uint256)
var transferSelector = []byte{0xa9, 0x05, 0x9c, 0xbb}

// tokenFixture is a hand-compiled stand-in for the Token contract
// above, with just enough of a source map to drive the tracer
type tokenFixture struct {
	file     *solidity.SourceFile
	contract *solidity.Contract

	constructor  *solidity.ContractFunc
	transfer     *solidity.ContractFunc
	checkBalance *solidity.ContractFunc

	// statement-level locations
	callSiteLoc *solidity.SourceLocation
	revertLoc   *solidity.SourceLocation
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()

	file := solidity.NewSourceFile(0, "contracts/Token.sol", testSource)

	contract := solidity.NewContract(
		"Token",
		solidity.KindContract,
		locOf(t, file, "contract Token", len(testSource)-strings.Index(testSource, "contract Token")-1),
	)

	f := &tokenFixture{
		file:     file,
		contract: contract,
	}

	f.constructor = &solidity.ContractFunc{
		Name:       "constructor",
		Type:       solidity.FunctionTypeConstructor,
		Location:   locOf(t, file, "constructor(uint256 supply) {}", 0),
		ParamTypes: []string{"uint256"},
	}

	f.transfer = &solidity.ContractFunc{
		Name:       "transfer",
		Type:       solidity.FunctionTypeFunction,
		Visibility: solidity.VisibilityExternal,
		Selector:   transferSelector,
		Location: locOf(t, file,
			"function transfer(address to, uint256 amount) external {\n        checkBalance(amount);\n    }", 0),
	}

	f.checkBalance = &solidity.ContractFunc{
		Name:       "checkBalance",
		Type:       solidity.FunctionTypeFunction,
		Visibility: solidity.VisibilityInternal,
		Location: locOf(t, file,
			"function checkBalance(uint256 amount) internal pure {\n        revert(\"insufficient balance\");\n    }", 0),
	}

	contract.AddLocalFunction(f.constructor)
	contract.AddLocalFunction(f.transfer)
	contract.AddLocalFunction(f.checkBalance)

	f.callSiteLoc = locOf(t, file, "checkBalance(amount);", 0)
	f.revertLoc = locOf(t, file, `revert("insufficient balance");`, 0)

	return f
}

// locOf builds a location from a unique substring of the file. A zero
// length means the substring's own length.
func locOf(t *testing.T, file *solidity.SourceFile, substr string, length int) *solidity.SourceLocation {
	t.Helper()

	offset := strings.Index(file.Content, substr)
	require.GreaterOrEqual(t, offset, 0, "fixture substring not found: %s", substr)

	if length == 0 {
		length = len(substr)
	}

	return solidity.NewSourceLocation(file, offset, length)
}

func (f *tokenFixture) runtimeBytecode(instructions []*solidity.Instruction) *solidity.Bytecode {
	return solidity.NewBytecode(
		f.contract, false, []byte{0x60, 0x80}, instructions, nil, nil, testCompilerVersion,
	)
}

func (f *tokenFixture) deploymentBytecode(
	code []byte,
	instructions []*solidity.Instruction,
) *solidity.Bytecode {
	return solidity.NewBytecode(
		f.contract, true, code, instructions, nil, nil, testCompilerVersion,
	)
}

func inst(
	pc int,
	op evm.OpCode,
	jump solidity.JumpType,
	loc *solidity.SourceLocation,
) *solidity.Instruction {
	return &solidity.Instruction{
		PC:       pc,
		Opcode:   op,
		JumpType: jump,
		Location: loc,
	}
}

func evmSteps(pcs ...int) []vmtrace.MessageStep {
	steps := make([]vmtrace.MessageStep, len(pcs))
	for i, pc := range pcs {
		steps[i] = vmtrace.EvmStep{PC: pc}
	}

	return steps
}

// revertingTransferTrace is the canonical failing call: the dispatcher
// jumps into transfer, transfer calls checkBalance, checkBalance
// reverts with a reason string
func revertingTransferTrace(t *testing.T, f *tokenFixture) *vmtrace.CallMessageTrace {
	t.Helper()

	bytecode := f.runtimeBytecode([]*solidity.Instruction{
		inst(0, evm.PUSH1, solidity.NotJump, nil),
		inst(2, evm.JUMP, solidity.IntoFunction, nil),
		inst(3, evm.JUMPDEST, solidity.NotJump, f.transfer.Location),
		inst(4, evm.JUMP, solidity.IntoFunction, f.callSiteLoc),
		inst(5, evm.JUMPDEST, solidity.NotJump, f.checkBalance.Location),
		inst(6, evm.REVERT, solidity.NotJump, f.revertLoc),
	})

	return &vmtrace.CallMessageTrace{
		BaseMessageTrace: vmtrace.BaseMessageTrace{
			Steps:      evmSteps(0, 2, 3, 4, 5, 6),
			ReturnData: errorReturnData(t, "insufficient balance"),
			Err:        vmtrace.ErrExecutionReverted,
		},
		CallData: transferCallData(),
		Bytecode: bytecode,
	}
}

func transferCallData() []byte {
	return append(append([]byte{}, transferSelector...), make([]byte, 64)...)
}

const proxySource = `pragma solidity ^0.8.4;

contract Proxy {
    fallback() external payable {
        assembly {
            let ok := delegatecall(gas(), sload(0), 0, calldatasize(), 0, 0)
            revert(0, returndatasize())
        }
    }
}
`

// proxyFixture is a transparent proxy whose fallback forwards every
// call via DELEGATECALL and reverts with the returned data verbatim
type proxyFixture struct {
	file     *solidity.SourceFile
	contract *solidity.Contract
	fallback *solidity.ContractFunc

	delegateLoc *solidity.SourceLocation
	forwardLoc  *solidity.SourceLocation
}

func newProxyFixture(t *testing.T) *proxyFixture {
	t.Helper()

	file := solidity.NewSourceFile(1, "contracts/Proxy.sol", proxySource)

	contract := solidity.NewContract(
		"Proxy",
		solidity.KindContract,
		locOf(t, file, "contract Proxy", len(proxySource)-strings.Index(proxySource, "contract Proxy")-1),
	)

	f := &proxyFixture{
		file:     file,
		contract: contract,
	}

	f.fallback = &solidity.ContractFunc{
		Name: FallbackFunctionName,
		Type: solidity.FunctionTypeFallback,
		Location: locOf(t, file,
			"fallback() external payable {", strings.Index(proxySource, "    }\n}")+5-strings.Index(proxySource, "fallback()")),
		IsPayable: true,
	}
	contract.AddLocalFunction(f.fallback)

	f.delegateLoc = locOf(t, file, "delegatecall(gas(), sload(0), 0, calldatasize(), 0, 0)", 0)
	f.forwardLoc = locOf(t, file, "revert(0, returndatasize())", 0)

	return f
}

func (f *proxyFixture) bytecode(instructions []*solidity.Instruction) *solidity.Bytecode {
	return solidity.NewBytecode(
		f.contract, false, []byte{0x60, 0x40}, instructions, nil, nil, testCompilerVersion,
	)
}

func errorReturnData(t *testing.T, reason string) []byte {
	t.Helper()

	encoded, err := errorReturnDataType.Encode(map[string]interface{}{"reason": reason})
	require.NoError(t, err)

	return append(append([]byte{}, errorSelector...), encoded...)
}

func panicReturnData(t *testing.T, code uint64) []byte {
	t.Helper()

	encoded, err := panicReturnDataType.Encode(map[string]interface{}{
		"code": new(big.Int).SetUint64(code),
	})
	require.NoError(t, err)

	return append(append([]byte{}, panicSelector...), encoded...)
}
