package solidity

import (
	"fmt"

	"github.com/xianny/hardhat/evm"
)

// JumpType classifies what a JUMP instruction does with the
// source-level call stack, according to the compiler's source map
type JumpType int

const (
	// NotJump marks instructions that are not jumps
	NotJump JumpType = iota
	// IntoFunction marks a jump used to enter a function
	IntoFunction
	// OutofFunction marks a jump used to return from a function
	OutofFunction
	// InternalJump marks a jump within the same function
	InternalJump
)

func (j JumpType) String() string {
	switch j {
	case NotJump:
		return "not-jump"
	case IntoFunction:
		return "jump-into-function"
	case OutofFunction:
		return "jump-out-of-function"
	case InternalJump:
		return "internal-jump"
	default:
		panic("BUG: jump type not found")
	}
}

// Instruction is one decoded instruction of a contract's bytecode
type Instruction struct {
	PC       int
	Opcode   evm.OpCode
	JumpType JumpType

	// Location is the source range the instruction was compiled from.
	// Nil when the source map has no entry for the instruction.
	Location *SourceLocation
}

// Bytecode is the immutable decoded view of one compiled contract's
// code, shared read-only by every trace that executes the contract
type Bytecode struct {
	Contract         *Contract
	IsDeployment     bool
	NormalizedCode   []byte
	LibraryOffsets   []int
	ImmutableOffsets []int
	CompilerVersion  string

	pcToInstruction map[int]*Instruction
}

func NewBytecode(
	contract *Contract,
	isDeployment bool,
	normalizedCode []byte,
	instructions []*Instruction,
	libraryOffsets []int,
	immutableOffsets []int,
	compilerVersion string,
) *Bytecode {
	pcToInstruction := make(map[int]*Instruction, len(instructions))
	for _, inst := range instructions {
		pcToInstruction[inst.PC] = inst
	}

	return &Bytecode{
		Contract:         contract,
		IsDeployment:     isDeployment,
		NormalizedCode:   normalizedCode,
		LibraryOffsets:   libraryOffsets,
		ImmutableOffsets: immutableOffsets,
		CompilerVersion:  compilerVersion,
		pcToInstruction:  pcToInstruction,
	}
}

// HasInstruction returns true if pc is the offset of a decoded instruction
func (b *Bytecode) HasInstruction(pc int) bool {
	_, ok := b.pcToInstruction[pc]

	return ok
}

// InstructionAt returns the instruction starting at the given program
// counter. Executed traces only ever reference decoded offsets, so a
// miss means the trace and the bytecode do not belong together.
func (b *Bytecode) InstructionAt(pc int) *Instruction {
	inst, ok := b.pcToInstruction[pc]
	if !ok {
		panic(fmt.Sprintf("BUG: there should be an instruction at pc %d", pc))
	}

	return inst
}
