package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestIsCompileErrorClassification checks that main.go's exit-code
// routing (spec section 6: 65 for a compile error, 70 for a runtime
// error) can tell the two failure kinds apart.
func TestIsCompileErrorClassification(t *testing.T) {
	ctx := context.Background()

	compileErr := New().Run(ctx, `1 +;`)
	require.Error(t, compileErr)
	assert.True(t, isCompileError(compileErr))

	runtimeErr := New().Run(ctx, `print 1 + "a";`)
	require.Error(t, runtimeErr)
	assert.False(t, isCompileError(runtimeErr))
}

func TestDisassembleChunkDoesNotPanic(t *testing.T) {
	vm := New()
	fn, err := Compile(vm, `
		fun add(a, b) { return a + b; }
		print add(1, 2);
	`)
	require.NoError(t, err)

	var lines []string
	disassembleChunk(func(mess string, args ...interface{}) {
		lines = append(lines, mess)
	}, &fn.Chunk, "<script>")

	assert.NotEmpty(t, lines)
}
