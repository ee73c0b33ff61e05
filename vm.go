package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/jcorbin/golox/internal/flushio"
	"github.com/jcorbin/golox/internal/panicerr"
	"github.com/jcorbin/golox/internal/runeio"
)

const framesMax = 64

type callFrame struct {
	closure   *ObjClosure
	ip        int
	slotsBase int // index into vm.stack of slot 0 for this frame
}

// VM is the bytecode interpreter: an operand stack, a call-frame array, a
// globals table, the string interner and the heap's object list, per spec
// section 4.5 and original_source/vm.c. Constructed only via New, the
// teacher's functional-options style (options.go).
type VM struct {
	stack  []Value
	frames []callFrame

	globals Table
	strings Table
	objects Obj

	openUpvalues *ObjUpvalue
	compiler     *compiler // set for the duration of Compile, for markCompilerRoots

	gc *gc

	out   flushio.WriteFlusher
	logfn func(mess string, args ...interface{})
	trace bool

	natives map[string]NativeFn
}

// haltError wraps a runtime error the VM raised mid-dispatch, mirroring
// the teacher's vmHaltError in internals.go.
type haltError struct{ error }

func (err haltError) Error() string {
	if err.error != nil {
		return fmt.Sprintf("VM halted: %v", err.error)
	}
	return "VM halted"
}
func (err haltError) Unwrap() error { return err.error }

// runtimeError carries a message and a captured call-stack trace (one
// "[line N] in <function-or-script>" entry per frame, innermost first),
// surfaced through Run the way the teacher's haltError carries a halt
// reason.
type runtimeError struct {
	msg   string
	trace []string
}

func (re *runtimeError) Error() string {
	s := re.msg
	for _, t := range re.trace {
		s += "\n" + t
	}
	return s
}

func (vm *VM) logf(format string, args ...interface{}) {
	if vm.logfn != nil {
		vm.logfn(format, args...)
	}
}

func (vm *VM) halt(err error) {
	if vm.out != nil {
		if ferr := vm.out.Flush(); err == nil {
			err = ferr
		}
	}
	err = haltError{err}
	vm.logf("halt error: %v", err)
	panic(err)
}

// Run compiles and executes source, returning a non-nil error for either
// a compile-time or runtime failure. A goroutine panic inside the
// dispatch loop is recovered and reported rather than crashing the host
// process, exactly as the teacher's api.go Run wraps vm.run(ctx).
func (vm *VM) Run(ctx context.Context, source string) error {
	fn, err := Compile(vm, source)
	if err != nil {
		return err
	}

	closure := vm.newClosure(fn)
	vm.push(ObjVal(closure))
	vm.frames = append(vm.frames, callFrame{closure: closure, slotsBase: 0})

	err = panicerr.Recover("VM", func() error {
		return vm.run(ctx)
	})
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	var he haltError
	if errors.As(err, &he) {
		err = he.error
	}
	return err
}

func (vm *VM) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := vm.step(); err != nil {
			return err
		}
		if len(vm.frames) == 0 {
			return nil
		}
	}
}

const stackMax = framesMax * 256

// --- operand stack ---

func (vm *VM) push(v Value) {
	if len(vm.stack) >= stackMax {
		vm.halt(vm.runtimeErr("Stack overflow."))
		return
	}
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() Value {
	i := len(vm.stack) - 1
	v := vm.stack[i]
	vm.stack = vm.stack[:i]
	return v
}

func (vm *VM) peek(distance int) Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) runtimeErr(format string, args ...interface{}) error {
	var trace []string
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		fn := f.closure.Function
		name := "script"
		if fn.Name != nil {
			name = fn.Name.chars + "()"
		}
		trace = append(trace, fmt.Sprintf("[line %d] in %s", fn.Chunk.LineAt(f.ip-1), name))
	}

	vm.stack = vm.stack[:0]
	vm.frames = vm.frames[:0]

	return &runtimeError{msg: fmt.Sprintf(format, args...), trace: trace}
}

// --- allocation helpers (the single choke point GC hooks into) ---

func (vm *VM) newClosure(fn *ObjFunction) *ObjClosure {
	closure := &ObjClosure{
		objHeader: objHeader{kind: ObjKindClosure},
		Function:  fn,
		Upvalues:  make([]*ObjUpvalue, fn.UpvalueCount),
	}
	vm.trackObject(closure)
	return closure
}

func (vm *VM) newNative(name string, arity int, fn NativeFn) *ObjNative {
	native := &ObjNative{objHeader: objHeader{kind: ObjKindNative}, Fn: fn, Arity: arity}
	vm.trackObject(native)
	return native
}

func (vm *VM) newClass(name *ObjString) *ObjClass {
	class := &ObjClass{objHeader: objHeader{kind: ObjKindClass}, Name: name}
	vm.trackObject(class)
	return class
}

func (vm *VM) newInstance(class *ObjClass) *ObjInstance {
	inst := &ObjInstance{objHeader: objHeader{kind: ObjKindInstance}, Class: class}
	vm.trackObject(inst)
	return inst
}

// captureUpvalue returns the open upvalue for stackIdx, reusing one
// already captured by an earlier closure over the same slot.
func (vm *VM) captureUpvalue(stackIdx int) *ObjUpvalue {
	var prev *ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && cur.stackIdx > stackIdx {
		prev = cur
		cur = cur.NextOpen
	}
	if cur != nil && cur.stackIdx == stackIdx {
		return cur
	}

	uv := newUpvalue(stackIdx)
	vm.trackObject(uv)
	uv.NextOpen = cur
	if prev == nil {
		vm.openUpvalues = uv
	} else {
		prev.NextOpen = uv
	}
	return uv
}

// closeUpvalues closes every open upvalue at or above lastIdx, per
// original_source/vm.c's closeUpvalues, called both when a block scope
// exits (OP_CLOSE_UPVALUE) and when a function returns.
func (vm *VM) closeUpvalues(lastIdx int) {
	for vm.openUpvalues != nil && vm.openUpvalues.stackIdx >= lastIdx {
		uv := vm.openUpvalues
		uv.close(vm)
		vm.openUpvalues = uv.NextOpen
	}
}

// print writes a `print` statement's value, per spec section 6's value
// printing rules. Runs through runeio so control characters embedded in a
// string value render the same way whether out is a terminal or a buffer,
// matching the teacher's core.writeRune.
func (vm *VM) print(s string) {
	if vm.out != nil {
		runeio.WriteANSIString(vm.out, s)
		runeio.WriteANSIRune(vm.out, '\n')
	}
}
