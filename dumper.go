package main

import "fmt"

// disassembleChunk renders every instruction in chunk through logf,
// grounded on original_source/debug.c's disassembleChunk /
// disassembleInstruction, used by main.go's -dump flag and by vm.go's
// -trace logging (spec section 1 lists disassembly/debug printing as an
// out-of-scope external collaborator; this is the minimal implementation
// nothing else supplies it).
func disassembleChunk(logf func(mess string, args ...interface{}), chunk *Chunk, name string) {
	logf("== %s ==", name)
	for offset := 0; offset < chunk.Len(); {
		line, next := disassembleAt(chunk, offset)
		logf("%s", line)
		offset = next
	}
}

// disassembleInstruction renders the single instruction starting at
// offset, used by vm.go's -trace logging to print one line per executed
// instruction.
func disassembleInstruction(chunk *Chunk, offset int) string {
	line, _ := disassembleAt(chunk, offset)
	return line
}

func disassembleAt(chunk *Chunk, offset int) (string, int) {
	prefix := fmt.Sprintf("%04d ", offset)
	if offset > 0 && chunk.LineAt(offset) == chunk.LineAt(offset-1) {
		prefix += "   | "
	} else {
		prefix += fmt.Sprintf("%4d ", chunk.LineAt(offset))
	}

	op := OpCode(chunk.At(offset))
	switch op {
	case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal, OpClass:
		return constantInstruction(prefix, op, chunk, offset)
	case OpGetLocal, OpSetLocal, OpGetUpvalue, OpSetUpvalue, OpCall:
		return byteInstruction(prefix, op, chunk, offset)
	case OpJump, OpJumpIfFalse:
		return jumpInstruction(prefix, op, chunk, offset, 1)
	case OpLoop:
		return jumpInstruction(prefix, op, chunk, offset, -1)
	case OpClosure:
		return closureInstruction(prefix, chunk, offset)
	default:
		return prefix + op.String(), offset + 1
	}
}

func constantInstruction(prefix string, op OpCode, chunk *Chunk, offset int) (string, int) {
	idx := chunk.At(offset + 1)
	return fmt.Sprintf("%s%-16s %4d '%s'", prefix, op, idx, chunk.Constant(int(idx))), offset + 2
}

func byteInstruction(prefix string, op OpCode, chunk *Chunk, offset int) (string, int) {
	slot := chunk.At(offset + 1)
	return fmt.Sprintf("%s%-16s %4d", prefix, op, slot), offset + 2
}

func jumpInstruction(prefix string, op OpCode, chunk *Chunk, offset int, sign int) (string, int) {
	hi, lo := chunk.At(offset+1), chunk.At(offset+2)
	jump := int(hi)<<8 | int(lo)
	target := offset + 3 + sign*jump
	return fmt.Sprintf("%s%-16s %4d -> %d", prefix, op, offset, target), offset + 3
}

func closureInstruction(prefix string, chunk *Chunk, offset int) (string, int) {
	idx := chunk.At(offset + 1)
	fn := chunk.Constant(int(idx)).AsFunction()
	next := offset + 2
	s := fmt.Sprintf("%s%-16s %4d '%s'", prefix, OpClosure, idx, chunk.Constant(int(idx)))
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := chunk.At(next)
		index := chunk.At(next + 1)
		kind := "upvalue"
		if isLocal != 0 {
			kind = "local"
		}
		s += fmt.Sprintf("\n%04d      |                     %s %d", next, kind, index)
		next += 2
	}
	return s, next
}
