package evm

// OpCode is a single byte EVM instruction
type OpCode byte

const (
	// STOP halts execution of the contract
	STOP OpCode = 0x0

	// ADD performs (u)int256 addition modulo 2**256
	ADD OpCode = 0x1

	// MUL performs (u)int256 multiplication modulo 2**256
	MUL OpCode = 0x2

	// SUB performs (u)int256 subtraction modulo 2**256
	SUB OpCode = 0x3

	// DIV performs uint256 division
	DIV OpCode = 0x4

	// SDIV performs int256 division
	SDIV OpCode = 0x5

	// MOD performs uint256 modulo
	MOD OpCode = 0x6

	// SMOD performs int256 modulo
	SMOD OpCode = 0x7

	// ADDMOD performs (u)int256 addition modulo N
	ADDMOD OpCode = 0x8

	// MULMOD performs (u)int256 multiplication modulo N
	MULMOD OpCode = 0x9

	// EXP performs uint256 exponentiation modulo 2**256
	EXP OpCode = 0xA

	// SIGNEXTEND performs sign extends x from (b + 1) * 8 bits to 256 bits.
	SIGNEXTEND OpCode = 0xB

	// LT performs int256 comparison
	LT OpCode = 0x10

	// GT performs int256 comparison
	GT OpCode = 0x11

	// SLT performs int256 comparison
	SLT OpCode = 0x12

	// SGT performs int256 comparison
	SGT OpCode = 0x13

	// EQ performs (u)int256 equality
	EQ OpCode = 0x14

	// ISZERO checks if (u)int256 is zero
	ISZERO OpCode = 0x15

	// AND performs 256-bit bitwise and
	AND OpCode = 0x16

	// OR performs 256-bit bitwise or
	OR OpCode = 0x17

	// XOR performs 256-bit bitwise xor
	XOR OpCode = 0x18

	// NOT performs 256-bit bitwise not
	NOT OpCode = 0x19

	// BYTE returns the ith byte of (u)int256 x counting from most significant byte
	BYTE OpCode = 0x1A

	// SHL performs a shift left
	SHL OpCode = 0x1B

	// SHR performs a logical shift right
	SHR OpCode = 0x1C

	// SAR performs an arithmetic shift right
	SAR OpCode = 0x1D

	// SHA3 performs the keccak256 hash function
	SHA3 OpCode = 0x20

	// ADDRESS returns the address of the executing contract
	ADDRESS OpCode = 0x30

	// BALANCE returns the address balance in wei
	BALANCE OpCode = 0x31

	// ORIGIN returns the transaction origin address
	ORIGIN OpCode = 0x32

	// CALLER returns the message caller address
	CALLER OpCode = 0x33

	// CALLVALUE returns the message funds in wei
	CALLVALUE OpCode = 0x34

	// CALLDATALOAD reads a (u)int256 from message data
	CALLDATALOAD OpCode = 0x35

	// CALLDATASIZE returns the message data length in bytes
	CALLDATASIZE OpCode = 0x36

	// CALLDATACOPY copies the message data
	CALLDATACOPY OpCode = 0x37

	// CODESIZE returns the length of the executing contract's code in bytes
	CODESIZE OpCode = 0x38

	// CODECOPY copies the executing contract's bytecode
	CODECOPY OpCode = 0x39

	// GASPRICE returns the gas price of the executing transaction, in wei per unit of gas
	GASPRICE OpCode = 0x3A

	// EXTCODESIZE returns the length of the contract bytecode at addr
	EXTCODESIZE OpCode = 0x3B

	// EXTCODECOPY copies the contract bytecode
	EXTCODECOPY OpCode = 0x3C

	// RETURNDATASIZE returns the size of the returned data from the last external call in bytes
	RETURNDATASIZE OpCode = 0x3D

	// RETURNDATACOPY copies the returned data
	RETURNDATACOPY OpCode = 0x3E

	// EXTCODEHASH returns the hash of the specified contract bytecode
	EXTCODEHASH OpCode = 0x3F

	// BLOCKHASH returns the hash of the specific block. Only valid for the last 256 most recent blocks
	BLOCKHASH OpCode = 0x40

	// COINBASE returns the address of the current block's miner
	COINBASE OpCode = 0x41

	// TIMESTAMP returns the current block's Unix timestamp in seconds
	TIMESTAMP OpCode = 0x42

	// NUMBER returns the current block's number
	NUMBER OpCode = 0x43

	// DIFFICULTY returns the current block's difficulty
	DIFFICULTY OpCode = 0x44

	// GASLIMIT returns the current block's gas limit
	GASLIMIT OpCode = 0x45

	// CHAINID returns the id of the chain
	CHAINID OpCode = 0x46

	// SELFBALANCE returns the balance of the executing contract in wei
	SELFBALANCE OpCode = 0x47

	// BASEFEE returns the current base fee value
	BASEFEE OpCode = 0x48

	// POP pops a (u)int256 off the stack and discards it
	POP OpCode = 0x50

	// MLOAD reads a (u)int256 from memory
	MLOAD OpCode = 0x51

	// MSTORE writes a (u)int256 to memory
	MSTORE OpCode = 0x52

	// MSTORE8 writes a uint8 to memory
	MSTORE8 OpCode = 0x53

	// SLOAD reads a (u)int256 from storage
	SLOAD OpCode = 0x54

	// SSTORE writes a (u)int256 to storage
	SSTORE OpCode = 0x55

	// JUMP performs an unconditional jump
	JUMP OpCode = 0x56

	// JUMPI performs a conditional jump if condition is truthy
	JUMPI OpCode = 0x57

	// PC returns the program counter
	PC OpCode = 0x58

	// MSIZE returns the size of memory for this contract execution, in bytes
	MSIZE OpCode = 0x59

	// GAS returns the remaining gas
	GAS OpCode = 0x5A

	// JUMPDEST corresponds to a possible jump destination
	JUMPDEST OpCode = 0x5B

	// PUSH0 pushes the constant value 0 onto the stack
	PUSH0 OpCode = 0x5F

	// PUSH1 pushes a 1-byte value onto the stack
	PUSH1 OpCode = 0x60

	// PUSH32 pushes a 32-byte value onto the stack
	PUSH32 OpCode = 0x7F

	// DUP1 clones the last value on the stack
	DUP1 OpCode = 0x80

	// DUP16 clones the 16th last value on the stack
	DUP16 OpCode = 0x8F

	// SWAP1 swaps the last two values on the stack
	SWAP1 OpCode = 0x90

	// SWAP16 swaps the top of the stack with the 17th last element
	SWAP16 OpCode = 0x9F

	// LOG0 fires an event without topics
	LOG0 OpCode = 0xA0

	// LOG4 fires an event with four topics
	LOG4 OpCode = 0xA4

	// CREATE creates a child contract
	CREATE OpCode = 0xF0

	// CALL calls a method in another contract
	CALL OpCode = 0xF1

	// CALLCODE calls a method in another contract using the executing contract's storage
	CALLCODE OpCode = 0xF2

	// RETURN returns from this contract call
	RETURN OpCode = 0xF3

	// DELEGATECALL calls a method in another contract, keeping the executing contract's context
	DELEGATECALL OpCode = 0xF4

	// CREATE2 creates a child contract with a deterministic address
	CREATE2 OpCode = 0xF5

	// STATICCALL calls a method in another contract with state changes disallowed
	STATICCALL OpCode = 0xFA

	// REVERT reverts with return data
	REVERT OpCode = 0xFD

	// INVALID is the designated invalid instruction
	INVALID OpCode = 0xFE

	// SELFDESTRUCT destroys the contract and sends all funds to addr
	SELFDESTRUCT OpCode = 0xFF
)

// IsPush returns true if the opcode is one of PUSH1..PUSH32
func (op OpCode) IsPush() bool {
	return op >= PUSH1 && op <= PUSH32
}

// PushedBytes returns the number of immediate bytes a PUSH
// instruction carries, or 0 for any other opcode
func (op OpCode) PushedBytes() int {
	if !op.IsPush() {
		return 0
	}

	return int(op-PUSH1) + 1
}

// IsCall returns true for the opcodes that run another
// contract's code within the current transaction
func (op OpCode) IsCall() bool {
	switch op {
	case CALL, CALLCODE, DELEGATECALL, STATICCALL:
		return true
	default:
		return false
	}
}

// IsCreate returns true for the contract creation opcodes
func (op OpCode) IsCreate() bool {
	return op == CREATE || op == CREATE2
}
