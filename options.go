package main

import (
	"io"
	"io/ioutil"

	"github.com/jcorbin/golox/internal/flushio"
)

// VMOption configures a VM built by New, the teacher's own
// functional-options shape (VMOption interface, options aggregator,
// noption{} zero case) retargeted at this VM's fields.
type VMOption interface{ apply(vm *VM) }

var defaultOptions = VMOptions(
	withOutput(ioutil.Discard),
)

// VMOptions flattens and normalizes a list of options.
func VMOptions(opts ...VMOption) VMOption {
	var res options
	for _, opt := range opts {
		switch impl := opt.(type) {
		case nil, noption:
		case options:
			res = append(res, impl...)
		default:
			res = append(res, opt)
		}
	}
	switch len(res) {
	case 0:
		return noption{}
	case 1:
		return res[0]
	default:
		return res
	}
}

type noption struct{}

func (noption) apply(vm *VM) {}

type options []VMOption

func (opts options) apply(vm *VM) {
	for _, opt := range opts {
		if opt != nil {
			opt.apply(vm)
		}
	}
}

// New builds a VM, applying opts over defaults (discard output, tracing
// off, GC stress test off), then installs the standard native library.
func New(opts ...VMOption) *VM {
	vm := &VM{}
	vm.gc = newGC(vm, 0, false, nil)
	defaultOptions.apply(vm)
	VMOptions(opts...).apply(vm)
	vm.defineStandardLibrary()
	return vm
}

// WithOutput sets the stream `print` statements write to.
func WithOutput(w io.Writer) VMOption { return withOutput(w) }

type outputOption struct{ io.Writer }

func withOutput(w io.Writer) outputOption { return outputOption{w} }

func (o outputOption) apply(vm *VM) {
	if vm.out != nil {
		vm.out.Flush()
	}
	vm.out = flushio.NewWriteFlusher(o.Writer)
}

// WithLogf installs a leveled logging function, used for -trace/-dump
// output the same way the teacher's WithLogf wires vm.logfn.
func WithLogf(logfn func(mess string, args ...interface{})) VMOption { return withLogfn(logfn) }

type withLogfn func(mess string, args ...interface{})

func (logfn withLogfn) apply(vm *VM) { vm.logfn = logfn }

// WithTrace turns on per-instruction disassembly logging through
// whatever WithLogf installed (spec section 6's -trace flag).
func WithTrace(trace bool) VMOption { return traceOption(trace) }

type traceOption bool

func (t traceOption) apply(vm *VM) { vm.trace = bool(t) }

// WithGCStressTest forces a collection on every single allocation,
// exercising spec section 8's property T3; same shape as the teacher's
// WithMemLimit, a single value toggling one gc field.
func WithGCStressTest(on bool) VMOption { return gcStressOption(on) }

type gcStressOption bool

func (o gcStressOption) apply(vm *VM) { vm.gc.stressTest = bool(o) }

// WithNextGC overrides the initial GC trigger threshold, in bytes.
func WithNextGC(n int) VMOption { return nextGCOption(n) }

type nextGCOption int

func (o nextGCOption) apply(vm *VM) { vm.gc.nextGC = int(o) }

// nativeSpec pairs a native function with its fixed arity.
type nativeSpec struct {
	Arity int
	Fn    NativeFn
}

// WithNatives registers additional host functions beyond the standard
// library (spec section 7), e.g. so embedding tests can substitute a
// deterministic clock.
func WithNatives(natives map[string]nativeSpec) VMOption { return nativesOption(natives) }

type nativesOption map[string]nativeSpec

func (o nativesOption) apply(vm *VM) {
	for name, spec := range o {
		vm.defineNative(name, spec.Arity, spec.Fn)
	}
}
