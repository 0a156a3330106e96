package vmtrace

import "errors"

// Errors reported by the EVM execution that produced a trace. They are
// data to this library, not failures of it.
var (
	ErrOutOfGas                 = errors.New("out of gas")
	ErrStackOverflow            = errors.New("stack overflow")
	ErrStackUnderflow           = errors.New("stack underflow")
	ErrNotEnoughFunds           = errors.New("not enough funds")
	ErrInsufficientBalance      = errors.New("insufficient balance for transfer")
	ErrMaxCodeSizeExceeded      = errors.New("evm: max code size exceeded")
	ErrContractAddressCollision = errors.New("contract address collision")
	ErrDepth                    = errors.New("max call depth exceeded")
	ErrExecutionReverted        = errors.New("execution was reverted")
	ErrCodeStoreOutOfGas        = errors.New("contract creation code storage out of gas")
	ErrInvalidInstruction       = errors.New("invalid instruction")
)

// IsOutOfGas returns true for the error variants where execution
// stopped because gas ran out
func IsOutOfGas(err error) bool {
	return errors.Is(err, ErrOutOfGas) || errors.Is(err, ErrCodeStoreOutOfGas)
}

// IsRevert returns true when the error is an explicit REVERT
func IsRevert(err error) bool {
	return errors.Is(err, ErrExecutionReverted)
}
