package main

import (
	"fmt"
	"math"
)

// ValueKind discriminates the variant held by a Value.
type ValueKind uint8

const (
	ValNil ValueKind = iota
	ValBool
	ValNumber
	ValObj
)

// Value is the tagged-union representation spec section 3 allows as an
// alternative to NaN-boxing: a tag byte plus a number field and an object
// field. Go has no
// portable way to stuff a pointer into the bit pattern of a float64 without
// unsafe tricks that defeat the host garbage collector, so the tagged form
// is the idiomatic choice here.
type Value struct {
	Kind ValueKind
	num  float64
	obj  Obj
}

// NilVal is the sole nil value.
var NilVal = Value{Kind: ValNil}

// BoolVal wraps a bool.
func BoolVal(b bool) Value {
	v := Value{Kind: ValBool}
	if b {
		v.num = 1
	}
	return v
}

// NumberVal wraps a float64.
func NumberVal(n float64) Value { return Value{Kind: ValNumber, num: n} }

// ObjVal wraps a heap object reference.
func ObjVal(o Obj) Value { return Value{Kind: ValObj, obj: o} }

func (v Value) IsNil() bool    { return v.Kind == ValNil }
func (v Value) IsBool() bool   { return v.Kind == ValBool }
func (v Value) IsNumber() bool { return v.Kind == ValNumber }
func (v Value) IsObj() bool    { return v.Kind == ValObj }

func (v Value) AsBool() bool      { return v.num != 0 }
func (v Value) AsNumber() float64 { return v.num }
func (v Value) AsObj() Obj        { return v.obj }

// IsObjKind reports whether v holds a heap object of the given kind.
func (v Value) IsObjKind(kind ObjKind) bool {
	return v.Kind == ValObj && v.obj != nil && v.obj.objType() == kind
}

func (v Value) IsString() bool   { return v.IsObjKind(ObjKindString) }
func (v Value) IsFunction() bool { return v.IsObjKind(ObjKindFunction) }
func (v Value) IsClosure() bool  { return v.IsObjKind(ObjKindClosure) }
func (v Value) IsNative() bool   { return v.IsObjKind(ObjKindNative) }
func (v Value) IsClass() bool    { return v.IsObjKind(ObjKindClass) }
func (v Value) IsInstance() bool { return v.IsObjKind(ObjKindInstance) }

func (v Value) AsString() *ObjString     { return v.obj.(*ObjString) }
func (v Value) AsFunction() *ObjFunction { return v.obj.(*ObjFunction) }
func (v Value) AsClosure() *ObjClosure   { return v.obj.(*ObjClosure) }
func (v Value) AsNative() *ObjNative     { return v.obj.(*ObjNative) }
func (v Value) AsClass() *ObjClass       { return v.obj.(*ObjClass) }
func (v Value) AsInstance() *ObjInstance { return v.obj.(*ObjInstance) }

// isFalsey: only nil and false are falsey, per spec section 4.5.
func isFalsey(v Value) bool {
	return v.IsNil() || (v.IsBool() && !v.AsBool())
}

// valuesEqual ports original_source/value.c's valuesEqual: values of
// different kinds are never equal; strings compare by identity (interning
// guarantees correctness); numbers compare by IEEE-754 equality.
func valuesEqual(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ValNil:
		return true
	case ValBool:
		return a.AsBool() == b.AsBool()
	case ValNumber:
		return a.num == b.num
	case ValObj:
		return a.obj == b.obj
	default:
		return false
	}
}

// String renders a value the way the VM's print statement does, per spec
// section 6's value-printing table.
func (v Value) String() string {
	switch v.Kind {
	case ValNil:
		return "nil"
	case ValBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case ValNumber:
		return formatNumber(v.num)
	case ValObj:
		return objString(v.obj)
	default:
		return "<invalid value>"
	}
}

func formatNumber(n float64) string {
	if math.IsInf(n, 1) {
		return "inf"
	}
	if math.IsInf(n, -1) {
		return "-inf"
	}
	return fmt.Sprintf("%g", n)
}
