package vm

// Chunk is a compiled instruction stream with its constant pool and a
// line-number table parallel to Code. A chunk is owned by exactly one
// ObjFunction and is immutable once that function's compilation ends.
type Chunk struct {
	Code      []byte
	Constants []Value
	Lines     []int
}

func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]Value, 0, 8),
		Lines:     make([]int, 0, 64),
	}
}

// Write appends one byte with its source line.
func (c *Chunk) Write(b byte, line int) {
	c.Code = append(c.Code, b)
	c.Lines = append(c.Lines, line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op Opcode, line int) {
	c.Write(byte(op), line)
}

// WriteU16 appends a big-endian 16-bit operand.
func (c *Chunk) WriteU16(v uint16, line int) {
	c.Write(byte(v>>8), line)
	c.Write(byte(v), line)
}

// AddConstant adds a value to the pool and returns its index. Number
// constants are deduplicated by value and object constants by identity;
// string identity equals content identity because strings are interned.
func (c *Chunk) AddConstant(v Value) int {
	for i, existing := range c.Constants {
		if existing.Type != v.Type {
			continue
		}
		switch v.Type {
		case ValNumber:
			if existing.Data == v.Data {
				return i
			}
		case ValObj:
			if existing.Obj == v.Obj {
				return i
			}
		}
	}
	c.Constants = append(c.Constants, v)
	return len(c.Constants) - 1
}

// ReadU16 reads a big-endian 16-bit operand at offset.
func (c *Chunk) ReadU16(offset int) int {
	return int(c.Code[offset])<<8 | int(c.Code[offset+1])
}

// Len returns the number of bytes written so far.
func (c *Chunk) Len() int {
	return len(c.Code)
}
