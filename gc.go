package main

// gc implements the tri-color mark-sweep collector, per original_source's
// memory.c extended to the complete algorithm spec section 4.6 describes
// (the book-chapter snapshot in original_source/memory.c predates mark/
// sweep entirely). "Gray" is represented as membership on grayStack rather
// than a bit on the object, matching the reference implementation; white
// is "unmarked", black is "marked and no longer on the worklist".
type gc struct {
	vm             *VM
	bytesAllocated int
	nextGC         int
	grayStack      []Obj
	stressTest     bool
	logf           func(format string, args ...interface{})
}

const gcHeapGrowFactor = 2

func newGC(vm *VM, nextGC int, stressTest bool, logf func(string, ...interface{})) *gc {
	if nextGC <= 0 {
		nextGC = 1 << 20
	}
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &gc{vm: vm, nextGC: nextGC, stressTest: stressTest, logf: logf}
}

// objectSize estimates the bytes charged against bytesAllocated for obj;
// exact accounting doesn't matter, only that every kind charges something
// so nextGC thresholds are meaningful.
func objectSize(o Obj) int {
	switch o.(type) {
	case *ObjString:
		return 32
	case *ObjFunction:
		return 64
	case *ObjNative:
		return 32
	case *ObjClosure:
		return 40
	case *ObjUpvalue:
		return 24
	case *ObjClass:
		return 24
	case *ObjInstance:
		return 32
	default:
		return 16
	}
}

// trackObject registers a freshly allocated object on the VM's heap list
// and triggers a collection if growth warrants (or stress mode is on),
// per spec section 4.6's single allocation choke point requirement.
func (vm *VM) trackObject(o Obj) {
	h := o.header()
	h.next = vm.objects
	vm.objects = o

	vm.gc.bytesAllocated += objectSize(o)
	if vm.gc.stressTest || vm.gc.bytesAllocated > vm.gc.nextGC {
		vm.collectGarbage()
	}
}

// collectGarbage runs one full mark-sweep cycle.
func (vm *VM) collectGarbage() {
	g := vm.gc
	g.logf("gc begin")

	vm.markRoots()
	vm.markCompilerRoots()
	g.traceReferences()
	vm.strings.RemoveWhite()
	vm.sweep()

	g.nextGC = g.bytesAllocated * gcHeapGrowFactor
	if g.nextGC == 0 {
		g.nextGC = 1 << 20
	}
	g.logf("gc end, %d bytes allocated, next at %d", g.bytesAllocated, g.nextGC)
}

// markRoots marks every object directly reachable from VM state: the
// operand stack, call frames' closures, open upvalues and the globals
// table.
func (vm *VM) markRoots() {
	for i := 0; i < len(vm.stack); i++ {
		vm.gc.markValue(vm.stack[i])
	}
	for i := range vm.frames {
		vm.gc.markObject(vm.frames[i].closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.NextOpen {
		vm.gc.markObject(uv)
	}
	vm.globals.Mark(vm.gc)
}

// markCompilerRoots marks the function chain under construction by an
// in-progress Compile call, so a GC triggered by string interning during
// compilation cannot collect a constant the compiler hasn't wired into a
// reachable chunk yet. Novel relative to the teacher: the single-pass
// compiler has no VM-visible root of its own in original_source, so spec
// section 9 calls this out explicitly.
func (vm *VM) markCompilerRoots() {
	for c := vm.compiler; c != nil; c = c.enclosing {
		vm.gc.markObject(c.function)
	}
}

func (g *gc) markValue(v Value) {
	if v.IsObj() {
		g.markObject(v.AsObj())
	}
}

func (g *gc) markObject(o Obj) {
	if o == nil {
		return
	}
	h := o.header()
	if h.marked {
		return
	}
	h.marked = true
	g.grayStack = append(g.grayStack, o)
}

func (g *gc) traceReferences() {
	for len(g.grayStack) > 0 {
		o := g.grayStack[len(g.grayStack)-1]
		g.grayStack = g.grayStack[:len(g.grayStack)-1]
		g.blacken(o)
	}
}

func (g *gc) blacken(o Obj) {
	switch v := o.(type) {
	case *ObjString, *ObjNative:
		// no outgoing references
	case *ObjUpvalue:
		g.markValue(v.Closed)
	case *ObjFunction:
		if v.Name != nil {
			g.markObject(v.Name)
		}
		for _, c := range v.Chunk.constants {
			g.markValue(c)
		}
	case *ObjClosure:
		g.markObject(v.Function)
		for _, uv := range v.Upvalues {
			g.markObject(uv)
		}
	case *ObjClass:
		g.markObject(v.Name)
	case *ObjInstance:
		g.markObject(v.Class)
		v.Fields.Mark(g)
	}
}

// sweep walks the VM's intrusive object list, freeing (unlinking) every
// object left white and clearing the mark bit on every object left black,
// per original_source's sweep phase generalized to mark/sweep.
func (vm *VM) sweep() {
	var prev Obj
	obj := vm.objects
	for obj != nil {
		h := obj.header()
		if h.marked {
			h.marked = false
			prev = obj
			obj = h.next
			continue
		}

		unreached := obj
		obj = h.next
		if prev != nil {
			prev.header().next = obj
		} else {
			vm.objects = obj
		}
		vm.gc.bytesAllocated -= objectSize(unreached)
	}
}
