package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TestGCStressMatchesNoGCOutput exercises property T3: running under
// GC-on-every-allocation produces the same output as running with GC
// left at its normal threshold. The two VM configurations run
// concurrently through an errgroup, each with its own VM and output
// buffer so there is no shared mutable state between them.
func TestGCStressMatchesNoGCOutput(t *testing.T) {
	const src = `
		fun fib(n) {
			if (n < 2) return n;
			return fib(n - 1) + fib(n - 2);
		}
		fun makeAdder(n) {
			fun add(m) { return n + m; }
			return add;
		}
		var add5 = makeAdder(5);
		for (var i = 0; i < 12; i = i + 1) {
			print fib(i);
		}
		print add5(10);
		print "done" + "!";
	`

	var outs [2]bytes.Buffer
	var g errgroup.Group
	g.Go(func() error {
		vm := New(WithOutput(&outs[0]))
		return vm.Run(context.Background(), src)
	})
	g.Go(func() error {
		vm := New(WithOutput(&outs[1]), WithGCStressTest(true))
		return vm.Run(context.Background(), src)
	})
	require.NoError(t, g.Wait())
	assert.Equal(t, outs[0].String(), outs[1].String())
}

// TestCollectGarbageFreesUnreachableString confirms the interner is a
// weak table (spec section 4.6 phase 3): a string reachable from nothing
// but vm.strings is collected, while one reachable from globals survives.
func TestCollectGarbageFreesUnreachableString(t *testing.T) {
	vm := New()
	baseline := vm.gc.bytesAllocated

	vm.intern("unreachable-after-intern-returns")
	withString := vm.gc.bytesAllocated
	assert.Greater(t, withString, baseline)

	vm.collectGarbage()
	assert.Equal(t, baseline, vm.gc.bytesAllocated, "unreachable interned string should be swept")

	err := vm.Run(context.Background(), `var kept = "still-reachable"; print kept;`)
	require.NoError(t, err)

	beforeCollect := vm.gc.bytesAllocated
	vm.collectGarbage()
	assert.Equal(t, beforeCollect, vm.gc.bytesAllocated, "global-rooted string should survive a collection")
}
