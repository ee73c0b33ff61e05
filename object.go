package main

import "fmt"

// ObjKind discriminates the concrete type behind an Obj, mirroring
// original_source/object.h's ObjType enum.
type ObjKind uint8

const (
	ObjKindString ObjKind = iota
	ObjKindFunction
	ObjKindNative
	ObjKindClosure
	ObjKindUpvalue
	ObjKindClass
	ObjKindInstance
)

// Obj is implemented by every heap object kind. A concrete Go pointer type
// (*ObjString, *ObjFunction, ...) stands in for the C union-by-tagged-struct
// family in original_source/object.h; objHeader supplies the {kind,
// isMarked, next} fields spec section 3 requires of every heap object.
type Obj interface {
	objType() ObjKind
	header() *objHeader
}

// objHeader is embedded in every concrete object type. next threads the
// VM's intrusive allocation list (spec section 3); marked is the GC's
// tri-color bit (spec section 4.6 treats "gray" as "on the worklist", not a
// bit on the object itself, so only white/black need representing here).
type objHeader struct {
	kind   ObjKind
	marked bool
	next   Obj
}

func (h *objHeader) objType() ObjKind   { return h.kind }
func (h *objHeader) header() *objHeader { return h }

// ObjString is an immutable interned string; equality is pointer identity
// (spec section 3).
type ObjString struct {
	objHeader
	chars string
	hash  uint32
}

// ObjFunction is created by the compiler and never mutated after
// compilation completes.
type ObjFunction struct {
	objHeader
	Arity        int
	UpvalueCount int
	Chunk        Chunk
	Name         *ObjString // nil for the top-level script
}

// NativeFn is the signature of a host function exposed to script code.
type NativeFn func(vm *VM, args []Value) (Value, error)

// ObjNative wraps a host function.
type ObjNative struct {
	objHeader
	Fn    NativeFn
	Arity int
}

// ObjUpvalue tracks a captured variable. While open, it refers to the
// owning frame's live slot by stack index rather than by pointer -- Go
// slices can move on growth, unlike the fixed C stack array
// original_source/object.h points Location into directly, so an index
// into the VM's stack slice is the stable handle instead. Close
// snapshots the slot's value into Closed and flips open off.
type ObjUpvalue struct {
	objHeader
	stackIdx int
	open     bool
	Closed   Value
	NextOpen *ObjUpvalue // VM-wide open-upvalue list, sorted by descending stack index
}

func newUpvalue(stackIdx int) *ObjUpvalue {
	return &ObjUpvalue{objHeader: objHeader{kind: ObjKindUpvalue}, stackIdx: stackIdx, open: true}
}

func (uv *ObjUpvalue) get(vm *VM) Value {
	if uv.open {
		return vm.stack[uv.stackIdx]
	}
	return uv.Closed
}

func (uv *ObjUpvalue) set(vm *VM, v Value) {
	if uv.open {
		vm.stack[uv.stackIdx] = v
	} else {
		uv.Closed = v
	}
}

func (uv *ObjUpvalue) close(vm *VM) {
	uv.Closed = vm.stack[uv.stackIdx]
	uv.open = false
}

// ObjClosure pairs a function with its captured upvalues; it is the VM's
// universal callable. A function capturing zero variables still gets a
// closure wrapper, per spec section 3's uniform calling convention.
type ObjClosure struct {
	objHeader
	Function *ObjFunction
	Upvalues []*ObjUpvalue
}

// ObjClass supports allocation only; method binding is out of scope (spec
// section 3).
type ObjClass struct {
	objHeader
	Name *ObjString
}

// ObjInstance is an allocated instance of a class, with a field table.
type ObjInstance struct {
	objHeader
	Class  *ObjClass
	Fields Table
}

func objString(o Obj) string {
	switch v := o.(type) {
	case *ObjString:
		return v.chars
	case *ObjFunction:
		if v.Name == nil {
			return "<script>"
		}
		return fmt.Sprintf("<fn %s>", v.Name.chars)
	case *ObjNative:
		return "<native fn>"
	case *ObjClosure:
		return objString(v.Function)
	case *ObjUpvalue:
		return "<upvalue>"
	case *ObjClass:
		return v.Name.chars
	case *ObjInstance:
		return fmt.Sprintf("%s instance", v.Class.Name.chars)
	default:
		return fmt.Sprintf("<obj %T>", o)
	}
}
