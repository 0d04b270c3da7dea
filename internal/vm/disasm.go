package vm

import (
	"fmt"
	"io"
)

// DisassembleChunk writes a human-readable listing of every instruction
// in the chunk.
func DisassembleChunk(w io.Writer, chunk *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < chunk.Len(); {
		offset = DisassembleInstruction(w, chunk, offset)
	}
}

// DisassembleInstruction prints the instruction at offset and returns the
// offset of the next one.
func DisassembleInstruction(w io.Writer, chunk *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", chunk.Lines[offset])
	}

	op := Opcode(chunk.Code[offset])
	switch op {
	case OP_CONST, OP_DEFINE_GLOBAL, OP_GET_GLOBAL, OP_SET_GLOBAL:
		return constantInstruction(w, chunk, op, offset)

	case OP_GET_LOCAL, OP_SET_LOCAL, OP_GET_UPVALUE, OP_SET_UPVALUE,
		OP_CALL, OP_MAKE_ARRAY, OP_MAKE_TABLE:
		return byteInstruction(w, chunk, op, offset)

	case OP_JUMP, OP_JUMP_IF_FALSE:
		return jumpInstruction(w, chunk, op, 1, offset)
	case OP_LOOP:
		return jumpInstruction(w, chunk, op, -1, offset)

	case OP_CLOSURE:
		return closureInstruction(w, chunk, offset)

	case OP_NIL, OP_TRUE, OP_FALSE, OP_POP,
		OP_EQ, OP_NE, OP_LT, OP_LE, OP_GT, OP_GE,
		OP_ADD, OP_SUB, OP_MUL, OP_DIV, OP_NOT, OP_NEG,
		OP_PRINT, OP_CLOSE_UPVALUE, OP_RETURN,
		OP_GET_INDEX, OP_SET_INDEX:
		fmt.Fprintf(w, "%s\n", op)
		return offset + 1

	default:
		fmt.Fprintf(w, "UNKNOWN %d\n", chunk.Code[offset])
		return offset + 1
	}
}

func constantInstruction(w io.Writer, chunk *Chunk, op Opcode, offset int) int {
	idx := chunk.ReadU16(offset + 1)
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, chunk.Constants[idx].Inspect())
	return offset + 3
}

func byteInstruction(w io.Writer, chunk *Chunk, op Opcode, offset int) int {
	arg := chunk.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d\n", op, arg)
	return offset + 2
}

func jumpInstruction(w io.Writer, chunk *Chunk, op Opcode, sign int, offset int) int {
	jump := chunk.ReadU16(offset + 1)
	fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}

// closureInstruction prints the function constant plus one line per
// captured variable, matching the operand layout the VM decodes.
func closureInstruction(w io.Writer, chunk *Chunk, offset int) int {
	idx := chunk.ReadU16(offset + 1)
	fn := chunk.Constants[idx].Obj.(*ObjFunction)
	fmt.Fprintf(w, "%-16s %4d %s\n", OP_CLOSURE, idx, fn.Inspect())
	offset += 3

	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.Code[offset]
		index := chunk.Code[offset+1]
		kind := "upvalue"
		if isLocal == 1 {
			kind = "local"
		}
		fmt.Fprintf(w, "%04d      |                     %s %d\n", offset, kind, index)
		offset += 2
	}
	return offset
}
