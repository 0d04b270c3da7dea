// Package vm implements the mono bytecode compiler, virtual machine and
// garbage collector.
package vm

// Opcode is a single VM instruction.
type Opcode byte

const (
	// Constants and literals
	OP_CONST Opcode = iota // u16 constant-pool index
	OP_NIL
	OP_TRUE
	OP_FALSE

	// Stack manipulation
	OP_POP

	// Variables
	OP_GET_LOCAL     // u8 slot
	OP_SET_LOCAL     // u8 slot
	OP_DEFINE_GLOBAL // u16 name-constant index
	OP_GET_GLOBAL    // u16 name-constant index
	OP_SET_GLOBAL    // u16 name-constant index
	OP_GET_UPVALUE   // u8 upvalue index
	OP_SET_UPVALUE   // u8 upvalue index

	// Comparison
	OP_EQ
	OP_NE
	OP_LT
	OP_LE
	OP_GT
	OP_GE

	// Arithmetic
	OP_ADD // numbers, or two strings (concatenation)
	OP_SUB
	OP_MUL
	OP_DIV

	// Logic
	OP_NOT
	OP_NEG

	OP_PRINT

	// Control flow
	OP_JUMP          // u16 forward offset
	OP_JUMP_IF_FALSE // u16 forward offset
	OP_LOOP          // u16 backward offset

	// Functions and closures
	OP_CALL          // u8 argument count
	OP_CLOSURE       // u16 function constant, then (u8 isLocal, u8 index) per upvalue
	OP_CLOSE_UPVALUE // close the upvalue for the top stack slot, then pop
	OP_RETURN

	// Collections
	OP_MAKE_ARRAY // u8 element count
	OP_MAKE_TABLE // u8 entry count (key/value pairs on stack)
	OP_GET_INDEX
	OP_SET_INDEX
)

// OpcodeNames maps opcodes to their mnemonic, for the disassembler and
// debug logging.
var OpcodeNames = map[Opcode]string{
	OP_CONST: "CONST",
	OP_NIL:   "NIL",
	OP_TRUE:  "TRUE",
	OP_FALSE: "FALSE",

	OP_POP: "POP",

	OP_GET_LOCAL:     "GET_LOCAL",
	OP_SET_LOCAL:     "SET_LOCAL",
	OP_DEFINE_GLOBAL: "DEFINE_GLOBAL",
	OP_GET_GLOBAL:    "GET_GLOBAL",
	OP_SET_GLOBAL:    "SET_GLOBAL",
	OP_GET_UPVALUE:   "GET_UPVALUE",
	OP_SET_UPVALUE:   "SET_UPVALUE",

	OP_EQ: "EQ",
	OP_NE: "NE",
	OP_LT: "LT",
	OP_LE: "LE",
	OP_GT: "GT",
	OP_GE: "GE",

	OP_ADD: "ADD",
	OP_SUB: "SUB",
	OP_MUL: "MUL",
	OP_DIV: "DIV",

	OP_NOT: "NOT",
	OP_NEG: "NEG",

	OP_PRINT: "PRINT",

	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_LOOP:          "LOOP",

	OP_CALL:          "CALL",
	OP_CLOSURE:       "CLOSURE",
	OP_CLOSE_UPVALUE: "CLOSE_UPVALUE",
	OP_RETURN:        "RETURN",

	OP_MAKE_ARRAY: "MAKE_ARRAY",
	OP_MAKE_TABLE: "MAKE_TABLE",
	OP_GET_INDEX:  "GET_INDEX",
	OP_SET_INDEX:  "SET_INDEX",
}

func (op Opcode) String() string {
	if name, ok := OpcodeNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}
