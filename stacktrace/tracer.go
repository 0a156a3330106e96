package stacktrace

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"github.com/xianny/hardhat/evm"
	"github.com/xianny/hardhat/solidity"
	"github.com/xianny/hardhat/vmtrace"
)

var (
	// ErrInvalidTrace is returned when a trace violates the structural
	// invariants the upstream producer must guarantee
	ErrInvalidTrace = errors.New("invalid message trace")

	// ErrTraceDepthExceeded is returned for trace trees nested beyond
	// the configured ceiling
	ErrTraceDepthExceeded = errors.New("message trace nesting exceeds the supported depth")
)

// DefaultMaxTraceDepth is the EVM's own call depth limit, so any
// trace produced by a legal execution fits under it
const DefaultMaxTraceDepth = 1024

// DefaultConfig is the default config for the Solidity tracer
var DefaultConfig = &Config{
	MaxTraceDepth: DefaultMaxTraceDepth,
}

// Config is a struct that holds configuration of SolidityTracer
type Config struct {
	// MaxTraceDepth bounds the call/create nesting the tracer follows
	MaxTraceDepth int
}

// SolidityTracer reconstructs a source-level stack trace out of a
// bytecode-level message trace. Stateless; one tracer can serve
// concurrent traces.
type SolidityTracer struct {
	logger   hclog.Logger
	config   *Config
	inferrer *errorInferrer
}

func NewSolidityTracer(logger hclog.Logger, config *Config) *SolidityTracer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	if config == nil {
		config = DefaultConfig
	}

	logger = logger.Named("solidity-tracer")

	return &SolidityTracer{
		logger:   logger,
		config:   config,
		inferrer: newErrorInferrer(logger),
	}
}

// GetStackTrace explains the failure of a message trace as an ordered
// sequence of Solidity stack frames, outermost call first. Successful
// traces need no explanation and produce an empty sequence.
func (t *SolidityTracer) GetStackTrace(trace vmtrace.MessageTrace) (SolidityStackTrace, error) {
	if err := vmtrace.Validate(trace); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTrace, err)
	}

	return t.getStackTrace(trace, 0)
}

func (t *SolidityTracer) getStackTrace(trace vmtrace.MessageTrace, depth int) (SolidityStackTrace, error) {
	if depth > t.config.MaxTraceDepth {
		return nil, ErrTraceDepthExceeded
	}

	if trace.Base().Err == nil {
		return SolidityStackTrace{}, nil
	}

	switch tr := trace.(type) {
	case *vmtrace.PrecompileMessageTrace:
		return t.getPrecompileMessageStackTrace(tr), nil
	case *vmtrace.CreateMessageTrace:
		if tr.Bytecode != nil {
			return t.getCreateMessageStackTrace(tr, depth)
		}

		return t.getUnrecognizedMessageStackTrace(trace, depth)
	case *vmtrace.CallMessageTrace:
		if tr.Bytecode != nil {
			return t.getCallMessageStackTrace(tr, depth)
		}

		return t.getUnrecognizedMessageStackTrace(trace, depth)
	default:
		panic("BUG: message trace kind not found")
	}
}

func (t *SolidityTracer) getPrecompileMessageStackTrace(
	trace *vmtrace.PrecompileMessageTrace,
) SolidityStackTrace {
	return SolidityStackTrace{
		&PrecompileError{Precompile: trace.Precompile},
	}
}

// getUnrecognizedMessageStackTrace handles traces whose bytecode was
// not recognized. If the last subtrace failed and the parent returned
// its data unchanged, the parent most likely just propagated the
// child's revert; that is not exact, but solidity contracts revert
// when their calls fail, so most of the time it is right.
func (t *SolidityTracer) getUnrecognizedMessageStackTrace(
	trace vmtrace.MessageTrace,
	depth int,
) (SolidityStackTrace, error) {
	base := trace.Base()

	_, isCreate := trace.(*vmtrace.CreateMessageTrace)

	if subtrace := lastSubtrace(base); subtrace != nil {
		subBase := subtrace.Base()

		if subBase.Err != nil && bytes.Equal(base.ReturnData, subBase.ReturnData) {
			var entry StackTraceEntry
			if isCreate {
				entry = &UnrecognizedCreateCallstackEntry{}
			} else {
				entry = &UnrecognizedContractCallstackEntry{
					Address: trace.(*vmtrace.CallMessageTrace).Address,
				}
			}

			rest, err := t.getStackTrace(subtrace, depth+1)
			if err != nil {
				return nil, err
			}

			return append(SolidityStackTrace{entry}, rest...), nil
		}
	}

	isInvalidOpcode := errors.Is(base.Err, vmtrace.ErrInvalidInstruction)

	if isCreate {
		return SolidityStackTrace{
			&UnrecognizedCreateError{
				Message:         NewReturnData(base.ReturnData),
				IsInvalidOpcode: isInvalidOpcode,
			},
		}, nil
	}

	return SolidityStackTrace{
		&UnrecognizedContractError{
			Address:         trace.(*vmtrace.CallMessageTrace).Address,
			Message:         NewReturnData(base.ReturnData),
			IsInvalidOpcode: isInvalidOpcode,
		},
	}, nil
}

func (t *SolidityTracer) getCreateMessageStackTrace(
	trace *vmtrace.CreateMessageTrace,
	depth int,
) (SolidityStackTrace, error) {
	if inferred := t.inferrer.inferBeforeTracingCreateMessage(trace); inferred != nil {
		return inferred, nil
	}

	return t.traceEvmExecution(newDecodedCreateTrace(trace), depth)
}

func (t *SolidityTracer) getCallMessageStackTrace(
	trace *vmtrace.CallMessageTrace,
	depth int,
) (SolidityStackTrace, error) {
	if inferred := t.inferrer.inferBeforeTracingCallMessage(trace); inferred != nil {
		return inferred, nil
	}

	return t.traceEvmExecution(newDecodedCallTrace(trace), depth)
}

func (t *SolidityTracer) traceEvmExecution(
	dt decodedTrace,
	depth int,
) (SolidityStackTrace, error) {
	stackTrace, err := t.rawTraceEvmExecution(dt, depth)
	if err != nil {
		return nil, err
	}

	if stackTraceMayRequireAdjustments(stackTrace, dt) {
		t.logger.Debug("adjusting stack trace for inlined internal functions")

		return adjustStackTrace(stackTrace, dt), nil
	}

	return stackTrace, nil
}

// submessageData is the record of the last subtrace seen during the
// raw walk, whose stack trace has already been computed but whose
// place in the final result is decided by the error inferrer
type submessageData struct {
	trace      vmtrace.MessageTrace
	stepIndex  int
	stackTrace SolidityStackTrace
}

// rawWalkState is the call-stack-reconstruction state accumulated
// while walking one decoded trace's steps. It is scoped to a single
// walk so concurrent traces never share it.
type rawWalkState struct {
	stackTrace         SolidityStackTrace
	jumpedIntoFunction bool
	functionJumpdests  []*solidity.Instruction
	subtracesSeen      int
	lastSubmessage     *submessageData
}

func (s *rawWalkState) pushFrame(entry StackTraceEntry) {
	s.stackTrace = append(s.stackTrace, entry)
}

func (s *rawWalkState) popFrame() {
	if len(s.stackTrace) > 0 {
		s.stackTrace = s.stackTrace[:len(s.stackTrace)-1]
	}
}

func (t *SolidityTracer) rawTraceEvmExecution(
	dt decodedTrace,
	depth int,
) (SolidityStackTrace, error) {
	base := dt.base()
	state := &rawWalkState{}

	for stepIndex := 0; stepIndex < len(base.Steps); stepIndex++ {
		step := base.Steps[stepIndex]

		var nextStep vmtrace.MessageStep
		if stepIndex+1 < len(base.Steps) {
			nextStep = base.Steps[stepIndex+1]
		}

		evmStep, isEvmStep := step.(vmtrace.EvmStep)
		if !isEvmStep {
			subtrace, ok := step.(vmtrace.MessageTrace)
			if !ok {
				panic("BUG: message step kind not found")
			}

			state.subtracesSeen++

			// a subtrace that is not the last one did not terminate the
			// execution; the speculative frame pushed for its call site
			// comes off again
			if state.subtracesSeen < base.NumberOfSubtraces {
				state.popFrame()

				continue
			}

			subStackTrace, err := t.getStackTrace(subtrace, depth+1)
			if err != nil {
				return nil, err
			}

			state.lastSubmessage = &submessageData{
				trace:      subtrace,
				stepIndex:  stepIndex,
				stackTrace: subStackTrace,
			}

			continue
		}

		inst := dt.bytecode.InstructionAt(evmStep.PC)

		switch {
		case inst.JumpType == solidity.IntoFunction && nextStep != nil:
			nextEvmStep, ok := nextStep.(vmtrace.EvmStep)
			if !ok {
				// a jump cannot spawn a subtrace
				return nil, fmt.Errorf("%w: jump followed by a subtrace", ErrInvalidTrace)
			}

			nextInst := dt.bytecode.InstructionAt(nextEvmStep.PC)

			if nextInst.Opcode == evm.JUMPDEST {
				// the very first jump of a call trace enters the function
				// selected by the dispatcher; that entry is not a frame of
				// its own yet
				if state.jumpedIntoFunction || !dt.isCall {
					state.pushFrame(instructionToCallstackEntry(dt.bytecode, inst))
				}

				state.jumpedIntoFunction = true
				state.functionJumpdests = append(state.functionJumpdests, nextInst)
			}
		case inst.JumpType == solidity.OutofFunction:
			if len(state.functionJumpdests) == 0 {
				return nil, fmt.Errorf(
					"%w: function return with no open function frame", ErrInvalidTrace,
				)
			}

			// the matching entry frame may have been suppressed for the
			// trace's first jump, so the frame pop is lenient
			state.popFrame()
			state.functionJumpdests = state.functionJumpdests[:len(state.functionJumpdests)-1]
		case inst.Opcode.IsCall() || inst.Opcode.IsCreate():
			if _, followedByStep := nextStep.(vmtrace.EvmStep); !followedByStep {
				// a subtrace (or nothing at all) follows; keep a frame for
				// the call site until we know whether it terminated us
				state.pushFrame(instructionToCallstackEntry(dt.bytecode, inst))
			}
		}
	}

	return t.inferrer.inferAfterTracing(dt, state)
}

// lastSubtrace returns the last step that is itself a message trace,
// skipping any trailing raw steps, or nil when there is none
func lastSubtrace(base *vmtrace.BaseMessageTrace) vmtrace.MessageTrace {
	for i := len(base.Steps) - 1; i >= 0; i-- {
		if subtrace, ok := base.Steps[i].(vmtrace.MessageTrace); ok {
			return subtrace
		}
	}

	return nil
}
