package main

import "github.com/jcorbin/golox/internal/mem"

// OpCode is a single bytecode instruction, per the table in spec section 4.5.
type OpCode byte

const (
	OpConstant OpCode = iota
	OpNil
	OpTrue
	OpFalse
	OpPop
	OpGetLocal
	OpSetLocal
	OpGetGlobal
	OpDefineGlobal
	OpSetGlobal
	OpGetUpvalue
	OpSetUpvalue
	OpEqual
	OpGreater
	OpLess
	OpAdd
	OpSubtract
	OpMultiply
	OpDivide
	OpNot
	OpNegate
	OpPrint
	OpJump
	OpJumpIfFalse
	OpLoop
	OpCall
	OpClosure
	OpCloseUpvalue
	OpReturn
	OpClass
)

var opCodeNames = [...]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpSetUpvalue:   "OP_SET_UPVALUE",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSubtract:     "OP_SUBTRACT",
	OpMultiply:     "OP_MULTIPLY",
	OpDivide:       "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpClosure:      "OP_CLOSURE",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpReturn:       "OP_RETURN",
	OpClass:        "OP_CLASS",
}

func (op OpCode) String() string {
	if int(op) < len(opCodeNames) && opCodeNames[op] != "" {
		return opCodeNames[op]
	}
	return "OP_UNKNOWN"
}

// Chunk is a growable byte array, a parallel line-number array, and a
// constants pool (spec section 4.3), grounded on original_source/chunk.c's
// writeChunk/addConstant. Code and lines are backed by the paged integer
// memory adapted from the teacher's own addressable memory model
// (internal/mem), since both are append-indexed byte streams read back by
// absolute offset exactly the way the teacher's VM reads its dictionary.
type Chunk struct {
	code      mem.Paged[byte]
	lines     mem.Paged[int]
	constants []Value
}

// Len returns the number of bytes written so far.
func (c *Chunk) Len() int { return int(c.code.Size()) }

// WriteByte appends a single byte, recording the source line it came from.
func (c *Chunk) WriteByte(b byte, line int) {
	c.code.Push(b)
	c.lines.Push(line)
}

// WriteOp appends an opcode byte.
func (c *Chunk) WriteOp(op OpCode, line int) { c.WriteByte(byte(op), line) }

// At returns the byte at offset.
func (c *Chunk) At(offset int) byte {
	b, _ := c.code.Load(uint(offset))
	return b
}

// SetAt overwrites the byte at offset, used by patchJump.
func (c *Chunk) SetAt(offset int, b byte) {
	_ = c.code.Stor(uint(offset), b)
}

// LineAt returns the source line recorded for the instruction at offset.
func (c *Chunk) LineAt(offset int) int {
	line, _ := c.lines.Load(uint(offset))
	return line
}

// AddConstant appends v to the constants pool and returns its index.
// The compiler's makeConstant reports an error once the index exceeds 255,
// since OP_CONSTANT's operand is one byte (spec section 4.3).
func (c *Chunk) AddConstant(v Value) int {
	c.constants = append(c.constants, v)
	return len(c.constants) - 1
}

// Constant returns the constant at idx.
func (c *Chunk) Constant(idx int) Value { return c.constants[idx] }
