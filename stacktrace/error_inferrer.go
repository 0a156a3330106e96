package stacktrace

import (
	"bytes"
	"errors"

	"github.com/hashicorp/go-hclog"
	"github.com/xianny/hardhat/evm"
	"github.com/xianny/hardhat/solidity"
	"github.com/xianny/hardhat/vmtrace"
)

// errorInferrer classifies why a traced execution failed. Its checks
// are heuristic and intentionally approximate; they run in a fixed
// most-specific-first order and the first one that produces a result
// wins.
type errorInferrer struct {
	logger hclog.Logger
}

func newErrorInferrer(logger hclog.Logger) *errorInferrer {
	return &errorInferrer{
		logger: logger,
	}
}

// inferBeforeTracingCallMessage short-circuits the raw walk when the
// failure of a call is unambiguous from the trace-level data alone
func (e *errorInferrer) inferBeforeTracingCallMessage(
	trace *vmtrace.CallMessageTrace,
) SolidityStackTrace {
	contract := trace.Bytecode.Contract

	if e.isDirectLibraryCall(trace) {
		return e.directLibraryCallStackTrace(trace)
	}

	var calledFunction *solidity.ContractFunc
	if len(trace.CallData) >= 4 {
		calledFunction = contract.FunctionFromSelector(trace.CallData[:4])
	}

	if e.isFunctionNotPayableError(trace, calledFunction) {
		return SolidityStackTrace{
			&FunctionNotPayableError{
				Value:           trace.Value,
				SourceReference: sourceReferenceFromFunction(trace.Bytecode, calledFunction),
			},
		}
	}

	if e.isMissingFunctionAndFallbackError(trace, calledFunction) {
		return SolidityStackTrace{
			&MissingFallbackOrReceiveError{
				SourceReference: contractSourceReference(trace.Bytecode),
			},
		}
	}

	if e.isFallbackNotPayableError(trace, calledFunction) {
		return SolidityStackTrace{
			&FallbackNotPayableError{
				Value:           trace.Value,
				SourceReference: sourceReferenceFromFunction(trace.Bytecode, contract.Fallback()),
			},
		}
	}

	return nil
}

// inferBeforeTracingCreateMessage is the create counterpart of
// inferBeforeTracingCallMessage
func (e *errorInferrer) inferBeforeTracingCreateMessage(
	trace *vmtrace.CreateMessageTrace,
) SolidityStackTrace {
	if e.isConstructorNotPayableError(trace) {
		constructor := trace.Bytecode.Contract.Constructor()

		return SolidityStackTrace{
			&FunctionNotPayableError{
				Value:           trace.Value,
				SourceReference: sourceReferenceFromFunction(trace.Bytecode, constructor),
			},
		}
	}

	if e.isConstructorInvalidArgumentsError(trace) {
		constructor := trace.Bytecode.Contract.Constructor()

		return SolidityStackTrace{
			&InvalidParamsError{
				SourceReference: sourceReferenceFromFunction(trace.Bytecode, constructor),
			},
		}
	}

	return nil
}

// inferAfterTracing turns the raw walk's intermediate state into the
// final stack trace, deciding how the terminal error frame looks
func (e *errorInferrer) inferAfterTracing(
	dt decodedTrace,
	state *rawWalkState,
) (SolidityStackTrace, error) {
	if result := e.checkLastSubmessage(dt, state); result != nil {
		e.logger.Debug("heuristic matched", "heuristic", "last-submessage")

		return result, nil
	}

	// the speculative call site frame did not explain the failure
	working := state.stackTrace
	if state.lastSubmessage != nil && len(working) > 0 {
		working = working[:len(working)-1]
	}

	checks := []struct {
		name string
		run  func() SolidityStackTrace
	}{
		{"failed-last-call", func() SolidityStackTrace {
			return e.checkFailedLastCall(dt, working)
		}},
		{"last-instruction", func() SolidityStackTrace {
			return e.checkLastInstruction(dt, state, working)
		}},
		{"noncontract-called", func() SolidityStackTrace {
			return e.checkNonContractCalled(dt, working)
		}},
		{"solc-0.6.3-unmapped-revert", func() SolidityStackTrace {
			return e.checkSolidity063UnmappedRevert(dt, working)
		}},
		{"contract-too-large", func() SolidityStackTrace {
			return e.checkContractTooLarge(dt)
		}},
	}

	for _, check := range checks {
		if result := check.run(); result != nil {
			e.logger.Debug("heuristic matched", "heuristic", check.name)

			return result, nil
		}
	}

	return e.otherExecutionErrorStackTrace(dt, working), nil
}

//
// before-tracing checks
//

func (e *errorInferrer) isDirectLibraryCall(trace *vmtrace.CallMessageTrace) bool {
	return trace.Depth == 0 && trace.Bytecode.Contract.Kind == solidity.KindLibrary
}

func (e *errorInferrer) directLibraryCallStackTrace(
	trace *vmtrace.CallMessageTrace,
) SolidityStackTrace {
	ref := contractSourceReference(trace.Bytecode)

	if len(trace.CallData) >= 4 {
		if fn := trace.Bytecode.Contract.FunctionFromSelector(trace.CallData[:4]); fn != nil {
			ref = sourceReferenceFromFunction(trace.Bytecode, fn)
		}
	}

	return SolidityStackTrace{
		&DirectLibraryCallError{SourceReference: ref},
	}
}

func (e *errorInferrer) isFunctionNotPayableError(
	trace *vmtrace.CallMessageTrace,
	calledFunction *solidity.ContractFunc,
) bool {
	if calledFunction == nil {
		return false
	}

	if trace.Value == nil || trace.Value.Sign() <= 0 {
		return false
	}

	// libraries have no payability check
	if trace.Bytecode.Contract.Kind == solidity.KindLibrary {
		return false
	}

	return !calledFunction.IsPayable
}

func (e *errorInferrer) isMissingFunctionAndFallbackError(
	trace *vmtrace.CallMessageTrace,
	calledFunction *solidity.ContractFunc,
) bool {
	// this failure mode returns no data
	if len(trace.ReturnData) > 0 {
		return false
	}

	if calledFunction != nil {
		return false
	}

	contract := trace.Bytecode.Contract

	// a plain transfer is accepted by a receive function
	if len(trace.CallData) == 0 && contract.Receive() != nil {
		return false
	}

	return contract.Fallback() == nil
}

func (e *errorInferrer) isFallbackNotPayableError(
	trace *vmtrace.CallMessageTrace,
	calledFunction *solidity.ContractFunc,
) bool {
	if calledFunction != nil {
		return false
	}

	if trace.Value == nil || trace.Value.Sign() <= 0 {
		return false
	}

	if len(trace.ReturnData) > 0 {
		return false
	}

	fallback := trace.Bytecode.Contract.Fallback()
	if fallback == nil {
		return false
	}

	return !fallback.IsPayable
}

func (e *errorInferrer) isConstructorNotPayableError(trace *vmtrace.CreateMessageTrace) bool {
	constructor := trace.Bytecode.Contract.Constructor()
	if constructor == nil {
		return false
	}

	if len(trace.ReturnData) > 0 {
		return false
	}

	if trace.Value == nil || trace.Value.Sign() <= 0 {
		return false
	}

	return !constructor.IsPayable
}

// isConstructorInvalidArgumentsError detects deployments that fail
// while ABI-decoding constructor arguments: the constructor expects
// arguments but nothing was appended after the init code
func (e *errorInferrer) isConstructorInvalidArgumentsError(
	trace *vmtrace.CreateMessageTrace,
) bool {
	constructor := trace.Bytecode.Contract.Constructor()
	if constructor == nil || len(constructor.ParamTypes) == 0 {
		return false
	}

	if len(trace.ReturnData) > 0 {
		return false
	}

	return len(trace.Code) <= len(trace.Bytecode.NormalizedCode)
}

//
// after-tracing checks
//

// checkLastSubmessage decides whether the last subtrace explains the
// failure, either because the parent propagated its error or because
// the parent reverted right after a successful call
func (e *errorInferrer) checkLastSubmessage(
	dt decodedTrace,
	state *rawWalkState,
) SolidityStackTrace {
	sub := state.lastSubmessage
	if sub == nil {
		return nil
	}

	// the walker left the frame for the call site at the top
	inferred := make(SolidityStackTrace, len(state.stackTrace))
	copy(inferred, state.stackTrace)

	if sub.trace.Base().Err != nil {
		if e.isSubtraceErrorPropagated(dt, sub.stepIndex) || e.isProxyErrorPropagated(dt, sub.stepIndex) {
			inferred = append(inferred, sub.stackTrace...)

			if e.isContractCallRunOutOfGasError(dt, sub.stepIndex) {
				last := inferred[len(inferred)-1]
				inferred[len(inferred)-1] = &ContractCallRunOutOfGasError{
					SourceReference: last.SourceRef(),
				}
			}

			return e.fixInitialModifier(dt, inferred)
		}

		return nil
	}

	// the call succeeded, but the caller reverted right at the call
	// site: the returned data did not have the size the caller required
	if e.failsRightAfterCall(dt, sub.stepIndex) {
		var callRef *SourceReference
		if len(inferred) > 0 {
			callRef = inferred[len(inferred)-1].SourceRef()
			inferred = inferred[:len(inferred)-1]
		}

		inferred = append(inferred, &ReturndataSizeError{SourceReference: callRef})

		return e.fixInitialModifier(dt, inferred)
	}

	return nil
}

func (e *errorInferrer) isSubtraceErrorPropagated(dt decodedTrace, callStepIndex int) bool {
	base := dt.base()

	sub, ok := base.Steps[callStepIndex].(vmtrace.MessageTrace)
	if !ok {
		return false
	}

	subBase := sub.Base()

	if !bytes.Equal(base.ReturnData, subBase.ReturnData) {
		return false
	}

	if vmtrace.IsOutOfGas(base.Err) && vmtrace.IsOutOfGas(subBase.Err) {
		return true
	}

	// non-empty identical return data is being passed along
	if len(base.ReturnData) > 0 {
		return true
	}

	return e.failsRightAfterCall(dt, callStepIndex)
}

// isProxyErrorPropagated recognizes the transparent proxy pattern: a
// DELEGATECALL into recognized non-library code whose revert data the
// proxy forwards verbatim from inline assembly
func (e *errorInferrer) isProxyErrorPropagated(dt decodedTrace, callStepIndex int) bool {
	if !dt.isCall {
		return false
	}

	base := dt.base()

	if callStepIndex == 0 {
		return false
	}

	callStep, ok := base.Steps[callStepIndex-1].(vmtrace.EvmStep)
	if !ok {
		return false
	}

	callInst := dt.bytecode.InstructionAt(callStep.PC)
	if callInst.Opcode != evm.DELEGATECALL {
		return false
	}

	sub, ok := base.Steps[callStepIndex].(*vmtrace.CallMessageTrace)
	if !ok {
		return false
	}

	// an unrecognized implementation is better not treated as a proxy
	if sub.Bytecode == nil {
		return false
	}

	if sub.Bytecode.Contract.Kind == solidity.KindLibrary {
		return false
	}

	if !bytes.Equal(base.ReturnData, sub.ReturnData) {
		return false
	}

	// everything after the call must be the forwarding assembly: mapped
	// source, no function boundary jumps, ending in REVERT
	for i := callStepIndex + 1; i < len(base.Steps); i++ {
		step, ok := base.Steps[i].(vmtrace.EvmStep)
		if !ok {
			return false
		}

		inst := dt.bytecode.InstructionAt(step.PC)

		if inst.Location == nil {
			return false
		}

		if inst.JumpType == solidity.IntoFunction || inst.JumpType == solidity.OutofFunction {
			return false
		}
	}

	lastStep, ok := base.Steps[len(base.Steps)-1].(vmtrace.EvmStep)
	if !ok {
		return false
	}

	return dt.bytecode.InstructionAt(lastStep.PC).Opcode == evm.REVERT
}

func (e *errorInferrer) isContractCallRunOutOfGasError(dt decodedTrace, callStepIndex int) bool {
	base := dt.base()

	if len(base.ReturnData) > 0 {
		return false
	}

	if !vmtrace.IsRevert(base.Err) {
		return false
	}

	sub, ok := base.Steps[callStepIndex].(vmtrace.MessageTrace)
	if !ok {
		return false
	}

	if !vmtrace.IsOutOfGas(sub.Base().Err) {
		return false
	}

	return e.failsRightAfterCall(dt, callStepIndex)
}

// failsRightAfterCall returns true when the last thing the trace did
// was revert on the instructions immediately following the given call
func (e *errorInferrer) failsRightAfterCall(dt decodedTrace, callStepIndex int) bool {
	base := dt.base()

	lastStep, ok := base.Steps[len(base.Steps)-1].(vmtrace.EvmStep)
	if !ok {
		return false
	}

	if dt.bytecode.InstructionAt(lastStep.PC).Opcode != evm.REVERT {
		return false
	}

	if callStepIndex == 0 {
		return false
	}

	callStep, ok := base.Steps[callStepIndex-1].(vmtrace.EvmStep)
	if !ok {
		return false
	}

	callInst := dt.bytecode.InstructionAt(callStep.PC)
	if callInst.Location == nil {
		return false
	}

	return e.isLastLocation(dt, callStepIndex+1, callInst.Location)
}

// isLastLocation returns true when every mapped instruction from the
// given step on shares one source location
func (e *errorInferrer) isLastLocation(
	dt decodedTrace,
	fromStep int,
	location *solidity.SourceLocation,
) bool {
	base := dt.base()

	for i := fromStep; i < len(base.Steps); i++ {
		step, ok := base.Steps[i].(vmtrace.EvmStep)
		if !ok {
			return false
		}

		inst := dt.bytecode.InstructionAt(step.PC)
		if inst.Location == nil {
			continue
		}

		if !location.Equals(inst.Location) {
			return false
		}
	}

	return true
}

// checkFailedLastCall finds a trailing call or create instruction
// that never spawned a subtrace: the call could not even start, e.g.
// because there was no gas left to enter it
func (e *errorInferrer) checkFailedLastCall(
	dt decodedTrace,
	working SolidityStackTrace,
) SolidityStackTrace {
	base := dt.base()

	for stepIndex := len(base.Steps) - 2; stepIndex >= 0; stepIndex-- {
		step, ok := base.Steps[stepIndex].(vmtrace.EvmStep)
		if !ok {
			return nil
		}

		nextStep := base.Steps[stepIndex+1]

		inst := dt.bytecode.InstructionAt(step.PC)

		if !inst.Opcode.IsCall() && !inst.Opcode.IsCreate() {
			continue
		}

		if _, nextIsStep := nextStep.(vmtrace.EvmStep); !nextIsStep {
			continue
		}

		if inst.Location == nil || !e.isLastLocation(dt, stepIndex, inst.Location) {
			continue
		}

		inferred := append(cloneStackTrace(working), &CallFailedError{
			SourceReference: sourceReferenceFromLocation(dt.bytecode, inst.Location),
		})

		return e.fixInitialModifier(dt, inferred)
	}

	return nil
}

// checkLastInstruction classifies executions that terminated in
// REVERT or in the designated invalid opcode
func (e *errorInferrer) checkLastInstruction(
	dt decodedTrace,
	state *rawWalkState,
	working SolidityStackTrace,
) SolidityStackTrace {
	base := dt.base()

	if len(base.Steps) == 0 {
		return nil
	}

	lastStep, ok := base.Steps[len(base.Steps)-1].(vmtrace.EvmStep)
	if !ok {
		return nil
	}

	lastInst := dt.bytecode.InstructionAt(lastStep.PC)

	if lastInst.Opcode != evm.REVERT && lastInst.Opcode != evm.INVALID {
		return nil
	}

	// the unmapped reverts of solc 0.6.x have their own classification
	if lastInst.Location == nil && e.solidity063MaybeUnmappedRevert(dt) {
		return nil
	}

	returnData := NewReturnData(base.ReturnData)

	ref := e.revertSourceReference(dt, state, lastInst)

	if dt.isCall && !state.jumpedIntoFunction && ref == nil {
		// the dispatcher failed before entering any function; if a
		// function was selected its argument decoding is what reverted
		call := dt.callTrace()
		if len(call.CallData) >= 4 && returnData.IsEmpty() {
			if fn := dt.bytecode.Contract.FunctionFromSelector(call.CallData[:4]); fn != nil {
				return SolidityStackTrace{
					&InvalidParamsError{
						SourceReference: sourceReferenceFromFunction(dt.bytecode, fn),
					},
				}
			}
		}
	}

	inferred := cloneStackTrace(working)

	switch {
	case returnData.IsPanicReturnData():
		code, err := returnData.DecodePanic()
		if err == nil {
			inferred = append(inferred, &PanicError{Code: code, SourceReference: ref})

			break
		}

		fallthrough
	case returnData.IsErrorReturnData() || returnData.IsEmpty():
		inferred = append(inferred, &RevertError{
			ReturnData:      returnData,
			SourceReference: ref,
			IsInvalidOpcode: lastInst.Opcode == evm.INVALID,
		})
	default:
		// a 4-byte selector we don't recognize: a user-defined error
		inferred = append(inferred, &CustomError{
			Message:         "reverted with an unrecognized custom error",
			SourceReference: ref,
		})
	}

	return e.fixInitialModifier(dt, inferred)
}

// revertSourceReference picks the source range the terminal error
// frame points at, falling back to the innermost open function's
// entry when the reverting instruction itself is unmapped
func (e *errorInferrer) revertSourceReference(
	dt decodedTrace,
	state *rawWalkState,
	lastInst *solidity.Instruction,
) *SourceReference {
	if lastInst.Location != nil && (!dt.isCall || state.jumpedIntoFunction) {
		return sourceReferenceFromLocation(dt.bytecode, lastInst.Location)
	}

	if lastInst.Location != nil && lastInst.Location.ContainingFunction() != nil {
		// optimized call traces sometimes revert inside a function the
		// walker never saw a jump into
		return sourceReferenceFromLocation(dt.bytecode, lastInst.Location)
	}

	if len(state.functionJumpdests) > 0 {
		top := state.functionJumpdests[len(state.functionJumpdests)-1]
		if top.Location != nil {
			return sourceReferenceFromLocation(dt.bytecode, top.Location)
		}
	}

	return nil
}

// checkNonContractCalled recognizes the extcodesize guard solidity
// emits before high-level calls failing on a codeless account
func (e *errorInferrer) checkNonContractCalled(
	dt decodedTrace,
	working SolidityStackTrace,
) SolidityStackTrace {
	base := dt.base()

	if len(base.Steps) < 2 {
		return nil
	}

	lastStep, ok := base.Steps[len(base.Steps)-1].(vmtrace.EvmStep)
	if !ok {
		return nil
	}

	if dt.bytecode.InstructionAt(lastStep.PC).Opcode != evm.ISZERO {
		return nil
	}

	prevStep, ok := base.Steps[len(base.Steps)-2].(vmtrace.EvmStep)
	if !ok {
		return nil
	}

	if dt.bytecode.InstructionAt(prevStep.PC).Opcode != evm.EXTCODESIZE {
		return nil
	}

	ref := e.lastSourceReference(dt)
	if ref == nil {
		ref = contractSourceReference(dt.bytecode)
	}

	return append(cloneStackTrace(working), &NoncontractAccountCalledError{
		SourceReference: ref,
	})
}

func (e *errorInferrer) checkSolidity063UnmappedRevert(
	dt decodedTrace,
	working SolidityStackTrace,
) SolidityStackTrace {
	if !e.solidity063MaybeUnmappedRevert(dt) {
		return nil
	}

	base := dt.base()

	lastStep, ok := base.Steps[len(base.Steps)-1].(vmtrace.EvmStep)
	if !ok {
		return nil
	}

	if dt.bytecode.InstructionAt(lastStep.PC).Location != nil {
		return nil
	}

	ref := e.lastSourceReference(dt)
	if ref == nil {
		return nil
	}

	return append(cloneStackTrace(working), &UnmappedSolc063RevertError{
		SourceReference: ref,
	})
}

func (e *errorInferrer) solidity063MaybeUnmappedRevert(dt decodedTrace) bool {
	base := dt.base()

	if len(base.Steps) == 0 {
		return false
	}

	lastStep, ok := base.Steps[len(base.Steps)-1].(vmtrace.EvmStep)
	if !ok {
		return false
	}

	lastInst := dt.bytecode.InstructionAt(lastStep.PC)

	return lastInst.Opcode == evm.REVERT &&
		lastInst.Location == nil &&
		compilerVersionMatches(dt.bytecode.CompilerVersion, solc063UnmappedRevertVersions)
}

func (e *errorInferrer) checkContractTooLarge(dt decodedTrace) SolidityStackTrace {
	if dt.isCall {
		return nil
	}

	if !errors.Is(dt.base().Err, vmtrace.ErrCodeStoreOutOfGas) &&
		!errors.Is(dt.base().Err, vmtrace.ErrMaxCodeSizeExceeded) {
		return nil
	}

	return SolidityStackTrace{
		&ContractTooLargeError{
			SourceReference: contractSourceReference(dt.bytecode),
		},
	}
}

func (e *errorInferrer) otherExecutionErrorStackTrace(
	dt decodedTrace,
	working SolidityStackTrace,
) SolidityStackTrace {
	ref := e.lastSourceReference(dt)
	if ref == nil {
		ref = contractSourceReference(dt.bytecode)
	}

	return append(cloneStackTrace(working), &OtherExecutionError{
		SourceReference: ref,
	})
}

// lastSourceReference scans the steps backwards for the most recent
// instruction with a source mapping
func (e *errorInferrer) lastSourceReference(dt decodedTrace) *SourceReference {
	base := dt.base()

	for i := len(base.Steps) - 1; i >= 0; i-- {
		step, ok := base.Steps[i].(vmtrace.EvmStep)
		if !ok {
			continue
		}

		inst := dt.bytecode.InstructionAt(step.PC)
		if inst.Location != nil {
			return sourceReferenceFromLocation(dt.bytecode, inst.Location)
		}
	}

	return nil
}

// fixInitialModifier prepends the entered function's own frame when
// the stack otherwise starts inside one of its modifiers
func (e *errorInferrer) fixInitialModifier(
	dt decodedTrace,
	stackTrace SolidityStackTrace,
) SolidityStackTrace {
	if len(stackTrace) == 0 {
		return stackTrace
	}

	first, ok := stackTrace[0].(*CallstackEntry)
	if !ok || first.FunctionType != FunctionKindModifier {
		return stackTrace
	}

	return append(SolidityStackTrace{e.entryPointEntry(dt)}, stackTrace...)
}

// entryPointEntry builds the frame for the function the message
// entered through: the constructor for creates, the selected
// function or the fallback for calls
func (e *errorInferrer) entryPointEntry(dt decodedTrace) StackTraceEntry {
	contract := dt.bytecode.Contract

	if !dt.isCall {
		if constructor := contract.Constructor(); constructor != nil {
			return &CallstackEntry{
				SourceReference: sourceReferenceFromFunction(dt.bytecode, constructor),
				FunctionType:    FunctionKindConstructor,
			}
		}

		return &CallstackEntry{
			SourceReference: contractSourceReference(dt.bytecode),
			FunctionType:    FunctionKindConstructor,
		}
	}

	call := dt.callTrace()

	if len(call.CallData) >= 4 {
		if fn := contract.FunctionFromSelector(call.CallData[:4]); fn != nil {
			return &CallstackEntry{
				SourceReference: sourceReferenceFromFunction(dt.bytecode, fn),
				FunctionType:    functionKind(fn.Type),
			}
		}
	}

	if fallback := contract.Fallback(); fallback != nil {
		return &CallstackEntry{
			SourceReference: sourceReferenceFromFunction(dt.bytecode, fallback),
			FunctionType:    FunctionKindFallback,
		}
	}

	return &CallstackEntry{
		SourceReference: contractSourceReference(dt.bytecode),
		FunctionType:    FunctionKindFunction,
	}
}

func cloneStackTrace(stackTrace SolidityStackTrace) SolidityStackTrace {
	cloned := make(SolidityStackTrace, len(stackTrace))
	copy(cloned, stackTrace)

	return cloned
}
