package stacktrace

import (
	"github.com/Masterminds/semver/v3"
	"github.com/xianny/hardhat/solidity"
	"github.com/xianny/hardhat/vmtrace"
)

var (
	// solc 0.6.3 emits reverts with no source mapping at all
	solc063UnmappedRevertVersions = semver.MustParse("0.6.3")

	// starting with 0.6.9 the optimizer inlines internal functions,
	// so a revert can surface under the callee's mapping while the
	// call stack never recorded the internal call
	firstSolcWithInlinedInternalFunctions = semver.MustParse("0.6.9")
)

func compilerVersionMatches(version string, target *semver.Version) bool {
	parsed, err := semver.NewVersion(version)
	if err != nil {
		return false
	}

	return parsed.Equal(target)
}

func compilerVersionAtLeast(version string, floor *semver.Version) bool {
	parsed, err := semver.NewVersion(version)
	if err != nil {
		return false
	}

	return !parsed.LessThan(floor)
}

// stackTraceMayRequireAdjustments reports whether the final revert
// frame may actually belong to an inlined internal function, in which
// case a synthetic frame for it has to be inserted
func stackTraceMayRequireAdjustments(stackTrace SolidityStackTrace, dt decodedTrace) bool {
	if len(stackTrace) == 0 {
		return false
	}

	revert, ok := stackTrace[len(stackTrace)-1].(*RevertError)
	if !ok {
		return false
	}

	if revert.IsInvalidOpcode || !revert.ReturnData.IsEmpty() {
		return false
	}

	return compilerVersionAtLeast(
		dt.bytecode.CompilerVersion,
		firstSolcWithInlinedInternalFunctions,
	)
}

// adjustStackTrace walks the executed steps backwards from the revert
// looking for the point where execution crossed from the enclosing
// function into the inlined one. When it finds that point it splits
// the final frame in two: a synthetic internal call frame at the
// callee plus the revert relocated to the caller's source range.
func adjustStackTrace(stackTrace SolidityStackTrace, dt decodedTrace) SolidityStackTrace {
	base := dt.base()

	if len(base.Steps) == 0 {
		return stackTrace
	}

	lastStep, ok := base.Steps[len(base.Steps)-1].(vmtrace.EvmStep)
	if !ok {
		return stackTrace
	}

	revertInst := dt.bytecode.InstructionAt(lastStep.PC)
	if revertInst.Location == nil {
		return stackTrace
	}

	revertFunction := revertInst.Location.ContainingFunction()
	if revertFunction == nil {
		return stackTrace
	}

	for i := len(base.Steps) - 2; i >= 0; i-- {
		step, ok := base.Steps[i].(vmtrace.EvmStep)
		if !ok {
			// a subtrace means we are no longer inside inlined code
			return stackTrace
		}

		inst := dt.bytecode.InstructionAt(step.PC)

		// a real function boundary jump means the call stack already
		// accounts for this transition
		if inst.JumpType == solidity.IntoFunction || inst.JumpType == solidity.OutofFunction {
			return stackTrace
		}

		if inst.Location == nil {
			continue
		}

		callerFunction := inst.Location.ContainingFunction()
		if callerFunction == nil || callerFunction == revertFunction {
			continue
		}

		revert, ok := stackTrace[len(stackTrace)-1].(*RevertError)
		if !ok {
			return stackTrace
		}

		adjusted := cloneStackTrace(stackTrace[:len(stackTrace)-1])

		adjusted = append(adjusted,
			&InternalFunctionCallstackEntry{
				PC:              lastStep.PC,
				SourceReference: sourceReferenceFromLocation(dt.bytecode, revertInst.Location),
			},
			&RevertError{
				ReturnData:      revert.ReturnData,
				SourceReference: sourceReferenceFromLocation(dt.bytecode, inst.Location),
				IsInvalidOpcode: revert.IsInvalidOpcode,
			},
		)

		return adjusted
	}

	return stackTrace
}
