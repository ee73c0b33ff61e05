package main

// step executes exactly one bytecode instruction in the current frame,
// mirroring original_source/vm.c's run() loop body with one iteration
// pulled out into its own method the way the teacher's internals.go
// splits exec(ctx)/step() so a -trace flag and a per-instruction context
// cancellation check can sit in the outer loop (vm.go's run).
func (vm *VM) step() error {
	frame := &vm.frames[len(vm.frames)-1]
	chunk := &frame.closure.Function.Chunk

	op := OpCode(chunk.At(frame.ip))
	start := frame.ip
	frame.ip++

	if vm.trace {
		vm.logf("%s", disassembleInstruction(chunk, start))
	}

	switch op {
	case OpConstant:
		idx := vm.readByte(chunk, frame)
		vm.push(chunk.Constant(int(idx)))

	case OpNil:
		vm.push(NilVal)
	case OpTrue:
		vm.push(BoolVal(true))
	case OpFalse:
		vm.push(BoolVal(false))

	case OpPop:
		vm.pop()

	case OpGetLocal:
		slot := vm.readByte(chunk, frame)
		vm.push(vm.stack[frame.slotsBase+int(slot)])
	case OpSetLocal:
		slot := vm.readByte(chunk, frame)
		vm.stack[frame.slotsBase+int(slot)] = vm.peek(0)

	case OpGetGlobal:
		name := vm.readConstant(chunk, frame).AsString()
		v, ok := vm.globals.Get(name)
		if !ok {
			return vm.runtimeErr("Undefined variable '%s'.", name.chars)
		}
		vm.push(v)
	case OpDefineGlobal:
		name := vm.readConstant(chunk, frame).AsString()
		vm.globals.Set(name, vm.peek(0))
		vm.pop()
	case OpSetGlobal:
		name := vm.readConstant(chunk, frame).AsString()
		if vm.globals.Set(name, vm.peek(0)) {
			vm.globals.Delete(name)
			return vm.runtimeErr("Undefined variable '%s'.", name.chars)
		}

	case OpGetUpvalue:
		idx := vm.readByte(chunk, frame)
		vm.push(frame.closure.Upvalues[idx].get(vm))
	case OpSetUpvalue:
		idx := vm.readByte(chunk, frame)
		frame.closure.Upvalues[idx].set(vm, vm.peek(0))

	case OpEqual:
		b, a := vm.pop(), vm.pop()
		vm.push(BoolVal(valuesEqual(a, b)))
	case OpGreater:
		return vm.binaryCompare(func(a, b float64) bool { return a > b })
	case OpLess:
		return vm.binaryCompare(func(a, b float64) bool { return a < b })

	case OpAdd:
		return vm.add()
	case OpSubtract:
		return vm.binaryArith(func(a, b float64) float64 { return a - b })
	case OpMultiply:
		return vm.binaryArith(func(a, b float64) float64 { return a * b })
	case OpDivide:
		return vm.binaryArith(func(a, b float64) float64 { return a / b })

	case OpNot:
		vm.push(BoolVal(isFalsey(vm.pop())))
	case OpNegate:
		if !vm.peek(0).IsNumber() {
			return vm.runtimeErr("Operand must be a number.")
		}
		vm.push(NumberVal(-vm.pop().AsNumber()))

	case OpPrint:
		vm.print(vm.pop().String())

	case OpJump:
		offset := vm.readShort(chunk, frame)
		frame.ip += offset
	case OpJumpIfFalse:
		offset := vm.readShort(chunk, frame)
		if isFalsey(vm.peek(0)) {
			frame.ip += offset
		}
	case OpLoop:
		offset := vm.readShort(chunk, frame)
		frame.ip -= offset

	case OpCall:
		argCount := int(vm.readByte(chunk, frame))
		if err := vm.callValue(vm.peek(argCount), argCount); err != nil {
			return err
		}

	case OpClosure:
		fn := vm.readConstant(chunk, frame).AsFunction()
		closure := vm.newClosure(fn)
		for i := 0; i < fn.UpvalueCount; i++ {
			isLocal := vm.readByte(chunk, frame)
			index := vm.readByte(chunk, frame)
			if isLocal != 0 {
				closure.Upvalues[i] = vm.captureUpvalue(frame.slotsBase + int(index))
			} else {
				closure.Upvalues[i] = frame.closure.Upvalues[index]
			}
		}
		vm.push(ObjVal(closure))

	case OpCloseUpvalue:
		vm.closeUpvalues(len(vm.stack) - 1)
		vm.pop()

	case OpReturn:
		result := vm.pop()
		vm.closeUpvalues(frame.slotsBase)
		vm.frames = vm.frames[:len(vm.frames)-1]
		if len(vm.frames) == 0 {
			vm.pop() // the running script's own closure (frame slot 0 sentinel)
			return nil
		}
		vm.stack = vm.stack[:frame.slotsBase]
		vm.push(result)

	case OpClass:
		name := vm.readConstant(chunk, frame).AsString()
		vm.push(ObjVal(vm.newClass(name)))

	default:
		return vm.runtimeErr("Unknown opcode %d.", byte(op))
	}
	return nil
}

func (vm *VM) readByte(chunk *Chunk, frame *callFrame) byte {
	b := chunk.At(frame.ip)
	frame.ip++
	return b
}

func (vm *VM) readConstant(chunk *Chunk, frame *callFrame) Value {
	return chunk.Constant(int(vm.readByte(chunk, frame)))
}

// readShort reads JUMP/LOOP's big-endian 2-byte operand (spec section 6).
func (vm *VM) readShort(chunk *Chunk, frame *callFrame) int {
	hi := vm.readByte(chunk, frame)
	lo := vm.readByte(chunk, frame)
	return int(hi)<<8 | int(lo)
}

// add implements OP_ADD's dual numeric/string semantics (spec section
// 4.5): numeric addition when both operands are numbers, string
// concatenation when both are strings, else a runtime type error.
func (vm *VM) add() error {
	switch {
	case vm.peek(0).IsNumber() && vm.peek(1).IsNumber():
		b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
		vm.push(NumberVal(a + b))
		return nil
	case vm.peek(0).IsString() && vm.peek(1).IsString():
		b, a := vm.pop().AsString(), vm.pop().AsString()
		vm.push(ObjVal(vm.intern(a.chars + b.chars)))
		return nil
	default:
		return vm.runtimeErr("Operands must be two numbers or two strings.")
	}
}

func (vm *VM) binaryArith(op func(a, b float64) float64) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeErr("Operands must be numbers.")
	}
	b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
	vm.push(NumberVal(op(a, b)))
	return nil
}

func (vm *VM) binaryCompare(op func(a, b float64) bool) error {
	if !vm.peek(0).IsNumber() || !vm.peek(1).IsNumber() {
		return vm.runtimeErr("Operands must be numbers.")
	}
	b, a := vm.pop().AsNumber(), vm.pop().AsNumber()
	vm.push(BoolVal(op(a, b)))
	return nil
}

// callValue dispatches OP_CALL's callee, per spec section 4.5's call
// sequence: closures push a new frame, natives invoke directly and
// replace callee+args with the result in place.
func (vm *VM) callValue(callee Value, argCount int) error {
	switch {
	case callee.IsClosure():
		return vm.callClosure(callee.AsClosure(), argCount)
	case callee.IsNative():
		return vm.callNative(callee.AsNative(), argCount)
	default:
		return vm.runtimeErr("Can only call functions and classes.")
	}
}

func (vm *VM) callClosure(closure *ObjClosure, argCount int) error {
	if argCount != closure.Function.Arity {
		return vm.runtimeErr("Expected %d arguments but got %d.", closure.Function.Arity, argCount)
	}
	if len(vm.frames) >= framesMax {
		return vm.runtimeErr("Stack overflow.")
	}
	vm.frames = append(vm.frames, callFrame{
		closure:   closure,
		slotsBase: len(vm.stack) - argCount - 1,
	})
	return nil
}

func (vm *VM) callNative(native *ObjNative, argCount int) error {
	if argCount != native.Arity {
		return vm.runtimeErr("Expected %d arguments but got %d.", native.Arity, argCount)
	}
	args := make([]Value, argCount)
	copy(args, vm.stack[len(vm.stack)-argCount:])

	result, err := native.Fn(vm, args)
	if err != nil {
		return vm.runtimeErr("%s", err.Error())
	}

	vm.stack = vm.stack[:len(vm.stack)-argCount-1]
	vm.push(result)
	return nil
}
