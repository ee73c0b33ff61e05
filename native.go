package main

import "time"

// defineNative registers a host function as a global, per
// original_source/vm.c's defineNative: the name is pushed/popped around
// the table insert for the same stress-GC-safety reason intern() is.
func (vm *VM) defineNative(name string, arity int, fn NativeFn) {
	nameObj := vm.intern(name)
	vm.push(ObjVal(nameObj))
	native := vm.newNative(name, arity, fn)
	vm.push(ObjVal(native))
	vm.globals.Set(vm.stack[len(vm.stack)-2].AsString(), vm.stack[len(vm.stack)-1])
	vm.pop()
	vm.pop()

	if vm.natives == nil {
		vm.natives = make(map[string]NativeFn)
	}
	vm.natives[name] = fn
}

// defineStandardLibrary installs the native functions spec section 7 lists.
func (vm *VM) defineStandardLibrary() {
	vm.defineNative("clock", 0, nativeClock)
}

func nativeClock(vm *VM, args []Value) (Value, error) {
	return NumberVal(float64(time.Now().UnixNano()) / 1e9), nil
}
