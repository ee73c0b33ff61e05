package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestJumpTargetsLandOnInstructionBoundaries exercises property T1: every
// JUMP/JUMP_IF_FALSE/LOOP operand, added to (resp. subtracted from) ip,
// lands on a valid opcode start within the same chunk.
func TestJumpTargetsLandOnInstructionBoundaries(t *testing.T) {
	vm := New()
	fn, err := Compile(vm, `
		var x = 0;
		for (var i = 0; i < 10; i = i + 1) {
			if (i == 5) {
				x = x + 100;
			} else {
				x = x + 1;
			}
			if (i > 7 and i < 9) x = x - 1; else x = x + 0;
		}
		print x;
	`)
	require.NoError(t, err)
	checkJumpTargets(t, &fn.Chunk)
}

func checkJumpTargets(t *testing.T, chunk *Chunk) {
	t.Helper()

	boundaries := map[int]bool{}
	for offset := 0; offset < chunk.Len(); {
		boundaries[offset] = true
		_, next := disassembleAt(chunk, offset)
		offset = next
	}

	for offset := 0; offset < chunk.Len(); {
		op := OpCode(chunk.At(offset))
		switch op {
		case OpJump, OpJumpIfFalse:
			target := offset + 3 + readOperand16(chunk, offset+1)
			assert.True(t, boundaries[target], "jump at %d targets %d, not an instruction boundary", offset, target)
		case OpLoop:
			target := offset + 3 - readOperand16(chunk, offset+1)
			assert.True(t, boundaries[target], "loop at %d targets %d, not an instruction boundary", offset, target)
		}
		_, next := disassembleAt(chunk, offset)
		offset = next
	}
}

func readOperand16(chunk *Chunk, offset int) int {
	hi, lo := chunk.At(offset), chunk.At(offset+1)
	return int(hi)<<8 | int(lo)
}

// TestLocalSlotCountIsBounded is part of property T2: GET_LOCAL/
// SET_LOCAL's operand must fit in one byte, so the compiler must reject
// the 257th local rather than silently truncate the index.
func TestLocalSlotCountIsBounded(t *testing.T) {
	vm := New()
	var src strings.Builder
	src.WriteString("{\n")
	for i := 0; i < 260; i++ {
		fmt.Fprintf(&src, "var v%d = %d;\n", i, i)
	}
	src.WriteString("}\n")
	_, err := Compile(vm, src.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Too many local variables")
}

func TestUninitializedLocalInOwnInitializerIsCompileError(t *testing.T) {
	vm := New()
	_, err := Compile(vm, `{ var a = a; }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't read local variable in its own initializer")
}

func TestDuplicateLocalInSameScopeIsCompileError(t *testing.T) {
	vm := New()
	_, err := Compile(vm, `{ var a = 1; var a = 2; }`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Already a variable with this name in this scope")
}

// TestReturnAtTopLevelIsCompileError covers spec section 4.4's statement
// rule for `return` outside a function.
func TestReturnAtTopLevelIsCompileError(t *testing.T) {
	vm := New()
	_, err := Compile(vm, `return 1;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Can't return from top-level code")
}

// TestConstantPoolOverflowIsCompileError covers the OP_CONSTANT 255-index
// ceiling from spec section 4.3.
func TestConstantPoolOverflowIsCompileError(t *testing.T) {
	vm := New()
	var src strings.Builder
	src.WriteString("print 0")
	for i := 0; i < 300; i++ {
		fmt.Fprintf(&src, " + %d", i)
	}
	src.WriteString(";")
	_, err := Compile(vm, src.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Too many constants in one chunk")
}

// TestStringLiteralsInternAcrossProgram exercises property T4: two string
// literals with identical bytes anywhere in a program resolve to the same
// *ObjString.
func TestStringLiteralsInternAcrossProgram(t *testing.T) {
	vm := New()
	fn, err := Compile(vm, `print "dup"; var also = "dup";`)
	require.NoError(t, err)

	var strs []*ObjString
	for _, c := range fn.Chunk.constants {
		if c.IsString() && c.AsString().chars == "dup" {
			strs = append(strs, c.AsString())
		}
	}
	require.Len(t, strs, 2)
	assert.Same(t, strs[0], strs[1])
}

func TestMutuallyRecursiveGlobalFunctionsCompile(t *testing.T) {
	vm := New()
	_, err := Compile(vm, `
		fun even(n) {
			if (n == 0) return true;
			return odd(n - 1);
		}
		fun odd(n) {
			if (n == 0) return false;
			return even(n - 1);
		}
	`)
	require.NoError(t, err)
}
