// Package main implements golox: a single-pass Pratt-parsed compiler and a
// stack-based bytecode virtual machine for a small dynamically-typed
// scripting language with closures, lexical scoping, and a tri-color
// mark-sweep garbage collector over an open-addressed, string-interning
// object heap.
//
// The pipeline is: source text -> Scanner tokens -> Compiler emits an
// ObjFunction's Chunk directly while parsing (no separate AST) -> VM wraps
// the top-level function in a closure, pushes a call frame, and dispatches
// bytecode one instruction at a time. Allocation during either compiling or
// running may trigger a garbage collection; the collector consults both the
// VM's roots (operand stack, call frames, open upvalues, globals) and the
// compiler's in-progress function chain.
//
// File layout:
//
//	value.go, object.go  - the Value/Obj heap representation
//	table.go             - the open-addressed hash table
//	intern.go            - string interning on top of table.go
//	chunk.go             - bytecode container: code, lines, constants
//	scanner.go           - the lexer (an out-of-scope "external collaborator"
//	                       per the language spec, implemented minimally here)
//	compiler.go          - the Pratt parser / single-pass compiler
//	vm.go, dispatch.go   - the VM's state and instruction dispatch loop
//	gc.go                - the tri-color mark-sweep collector
//	native.go            - the host-function standard library
//	options.go           - functional-options VM constructor
//	dumper.go            - bytecode disassembly, used by -trace and -dump
//	main.go              - the CLI driver (REPL / file runner)
package main
