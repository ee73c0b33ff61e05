package main

import (
	"fmt"
	"strconv"
)

// precedence mirrors original_source/compiler.c's Precedence enum, low to
// high.
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *compiler, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

var rules map[TokenKind]parseRule

func init() {
	rules = map[TokenKind]parseRule{
		TokenLeftParen:    {prefix: (*compiler).grouping, infix: (*compiler).call, precedence: precCall},
		TokenMinus:        {prefix: (*compiler).unary, infix: (*compiler).binary, precedence: precTerm},
		TokenPlus:         {infix: (*compiler).binary, precedence: precTerm},
		TokenSlash:        {infix: (*compiler).binary, precedence: precFactor},
		TokenStar:         {infix: (*compiler).binary, precedence: precFactor},
		TokenBang:         {prefix: (*compiler).unary},
		TokenBangEqual:    {infix: (*compiler).binary, precedence: precEquality},
		TokenEqualEqual:   {infix: (*compiler).binary, precedence: precEquality},
		TokenGreater:      {infix: (*compiler).binary, precedence: precComparison},
		TokenGreaterEqual: {infix: (*compiler).binary, precedence: precComparison},
		TokenLess:         {infix: (*compiler).binary, precedence: precComparison},
		TokenLessEqual:    {infix: (*compiler).binary, precedence: precComparison},
		TokenIdentifier:   {prefix: (*compiler).variable},
		TokenString:       {prefix: (*compiler).string},
		TokenNumber:       {prefix: (*compiler).number},
		TokenAnd:          {infix: (*compiler).and_, precedence: precAnd},
		TokenOr:           {infix: (*compiler).or_, precedence: precOr},
		TokenFalse:        {prefix: (*compiler).literal},
		TokenNil:          {prefix: (*compiler).literal},
		TokenTrue:         {prefix: (*compiler).literal},
	}
}

func getRule(kind TokenKind) parseRule {
	return rules[kind]
}

type local struct {
	name     Token
	depth    int // -1 means "declared but not yet defined"
	captured bool
}

type upvalueRef struct {
	index   uint8
	isLocal bool
}

type funcType int

const (
	funcTypeFunction funcType = iota
	funcTypeScript
)

// compiler is one activation of the recursive-descent compiler, one per
// function body being compiled, chained through enclosing the way
// original_source/compiler.c chains `current` through a single global
// pointer; Go has no file-scope globals playing that role so the chain is
// threaded explicitly instead (spec section 9's VM-parameterization advice
// applies equally here).
type compiler struct {
	parser    *parser
	vm        *VM
	enclosing *compiler
	function  *ObjFunction
	kind      funcType

	locals     []local
	upvalues   []upvalueRef
	scopeDepth int
}

type parser struct {
	scanner   *Scanner
	current   Token
	previous  Token
	hadError  bool
	panicMode bool
	errs      []string
}

// Compile translates source into a top-level ObjFunction, per
// original_source/compiler.c's `compile`. A non-nil error means the source
// contains one or more syntax errors; the returned function is nil in that
// case.
func Compile(vm *VM, source string) (*ObjFunction, error) {
	p := &parser{scanner: NewScanner(source)}
	c := newCompiler(p, vm, nil, funcTypeScript)
	vm.compiler = c
	defer func() { vm.compiler = nil }()

	p.advance()
	for !c.match(TokenEOF) {
		c.declaration()
	}

	fn := c.end()
	if p.hadError {
		return nil, &compileError{msg: joinErrs(p.errs)}
	}
	return fn, nil
}

// compileError reports one or more syntax errors accumulated during a
// compile (spec section 7's "compile errors" kind). The CompileError
// marker method lets main.go's isCompileError distinguish this from a
// runtimeError without depending on string matching.
type compileError struct{ msg string }

func (e *compileError) Error() string { return e.msg }
func (e *compileError) CompileError() {}

func joinErrs(errs []string) string {
	switch len(errs) {
	case 0:
		return "unknown error"
	case 1:
		return errs[0]
	default:
		s := errs[0]
		for _, e := range errs[1:] {
			s += "; " + e
		}
		return s
	}
}

func newCompiler(p *parser, vm *VM, enclosing *compiler, kind funcType) *compiler {
	fn := &ObjFunction{objHeader: objHeader{kind: ObjKindFunction}}
	if kind != funcTypeScript && enclosing != nil {
		fn.Name = vm.intern(enclosing.parser.previous.Lexeme)
	}
	c := &compiler{parser: p, vm: vm, enclosing: enclosing, function: fn, kind: kind}
	// slot 0 is reserved for the running closure itself, unnamed.
	c.locals = append(c.locals, local{depth: 0})
	return c
}

// --- parser primitives ---

func (p *parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scanner.Next()
		if p.current.Kind != TokenError {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

func (c *compiler) check(kind TokenKind) bool { return c.parser.current.Kind == kind }

func (c *compiler) match(kind TokenKind) bool {
	if !c.check(kind) {
		return false
	}
	c.parser.advance()
	return true
}

func (c *compiler) consume(kind TokenKind, msg string) {
	if c.parser.current.Kind == kind {
		c.parser.advance()
		return
	}
	c.parser.errorAtCurrent(msg)
}

func (p *parser) errorAtCurrent(msg string) { p.errorAt(&p.current, msg) }
func (p *parser) error(msg string)          { p.errorAt(&p.previous, msg) }

func (p *parser) errorAt(tok *Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true

	where := ""
	switch tok.Kind {
	case TokenEOF:
		where = " at end"
	case TokenError:
		// no location detail
	default:
		where = fmt.Sprintf(" at '%s'", tok.Lexeme)
	}
	p.errs = append(p.errs, fmt.Sprintf("[line %d] Error%s: %s", tok.Line, where, msg))
	p.hadError = true
}

func (c *compiler) synchronize() {
	p := c.parser
	p.panicMode = false

	for p.current.Kind != TokenEOF {
		if p.previous.Kind == TokenSemicolon {
			return
		}
		switch p.current.Kind {
		case TokenClass, TokenFun, TokenVar, TokenFor, TokenIf, TokenWhile, TokenPrint, TokenReturn:
			return
		}
		p.advance()
	}
}

// --- byte emission ---

func (c *compiler) chunk() *Chunk { return &c.function.Chunk }

func (c *compiler) emitByte(b byte) { c.chunk().WriteByte(b, c.parser.previous.Line) }
func (c *compiler) emitOp(op OpCode) { c.chunk().WriteOp(op, c.parser.previous.Line) }
func (c *compiler) emitOps(op1, op2 OpCode) {
	c.emitOp(op1)
	c.emitOp(op2)
}
func (c *compiler) emitOpByte(op OpCode, b byte) {
	c.emitOp(op)
	c.emitByte(b)
}

func (c *compiler) emitLoop(loopStart int) {
	c.emitOp(OpLoop)
	offset := c.chunk().Len() - loopStart + 2
	if offset > 0xffff {
		c.parser.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8 & 0xff))
	c.emitByte(byte(offset & 0xff))
}

func (c *compiler) emitJump(op OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return c.chunk().Len() - 2
}

func (c *compiler) patchJump(offset int) {
	jump := c.chunk().Len() - offset - 2
	if jump > 0xffff {
		c.parser.error("Too much code to jump over.")
	}
	c.chunk().SetAt(offset, byte(jump>>8&0xff))
	c.chunk().SetAt(offset+1, byte(jump&0xff))
}

func (c *compiler) emitReturn() {
	c.emitOp(OpNil)
	c.emitOp(OpReturn)
}

func (c *compiler) makeConstant(v Value) byte {
	idx := c.chunk().AddConstant(v)
	if idx > 255 {
		c.parser.error("Too many constants in one chunk.")
		return 0
	}
	return byte(idx)
}

func (c *compiler) emitConstant(v Value) {
	c.emitOpByte(OpConstant, c.makeConstant(v))
}

func (c *compiler) end() *ObjFunction {
	c.emitReturn()
	return c.function
}

// --- scopes ---

func (c *compiler) beginScope() { c.scopeDepth++ }

func (c *compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		last := c.locals[len(c.locals)-1]
		if last.captured {
			c.emitOp(OpCloseUpvalue)
		} else {
			c.emitOp(OpPop)
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

// --- declarations ---

func (c *compiler) declaration() {
	switch {
	case c.match(TokenClass):
		c.classDeclaration()
	case c.match(TokenFun):
		c.funDeclaration()
	case c.match(TokenVar):
		c.varDeclaration()
	default:
		c.statement()
	}

	if c.parser.panicMode {
		c.synchronize()
	}
}

func (c *compiler) classDeclaration() {
	c.consume(TokenIdentifier, "Expect class name.")
	nameTok := c.parser.previous
	nameConst := c.identifierConstant(nameTok)
	c.declareVariable()

	c.emitOpByte(OpClass, nameConst)
	c.defineVariable(nameConst)

	c.consume(TokenLeftBrace, "Expect '{' before class body.")
	c.consume(TokenRightBrace, "Expect '}' after class body.")
}

func (c *compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function_(funcTypeFunction)
	c.defineVariable(global)
}

func (c *compiler) function_(kind funcType) {
	fc := newCompiler(c.parser, c.vm, c, kind)
	fc.beginScope()

	fc.consume(TokenLeftParen, "Expect '(' after function name.")
	if !fc.check(TokenRightParen) {
		for {
			fc.function.Arity++
			if fc.function.Arity > 255 {
				fc.parser.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := fc.parseVariable("Expect parameter name.")
			fc.defineVariable(constant)
			if !fc.match(TokenComma) {
				break
			}
		}
	}
	fc.consume(TokenRightParen, "Expect ')' after parameters.")
	fc.consume(TokenLeftBrace, "Expect '{' before function body.")
	fc.block()

	fn := fc.end()
	fn.UpvalueCount = len(fc.upvalues)

	c.emitOpByte(OpClosure, c.makeConstant(ObjVal(fn)))
	for _, uv := range fc.upvalues {
		if uv.isLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.index)
	}
}

func (c *compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")

	if c.match(TokenEqual) {
		c.expression()
	} else {
		c.emitOp(OpNil)
	}
	c.consume(TokenSemicolon, "Expect ';' after variable declaration.")

	c.defineVariable(global)
}

func (c *compiler) parseVariable(msg string) byte {
	c.consume(TokenIdentifier, msg)

	c.declareVariable()
	if c.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.parser.previous)
}

func (c *compiler) identifierConstant(name Token) byte {
	return c.makeConstant(ObjVal(c.vm.intern(name.Lexeme)))
}

func (c *compiler) declareVariable() {
	if c.scopeDepth == 0 {
		return
	}
	name := c.parser.previous
	for i := len(c.locals) - 1; i >= 0; i-- {
		l := &c.locals[i]
		if l.depth != -1 && l.depth < c.scopeDepth {
			break
		}
		if l.name.Lexeme == name.Lexeme {
			c.parser.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *compiler) addLocal(name Token) {
	if len(c.locals) >= 256 {
		c.parser.error("Too many local variables in function.")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: -1})
}

func (c *compiler) markInitialized() {
	if c.scopeDepth == 0 {
		return
	}
	c.locals[len(c.locals)-1].depth = c.scopeDepth
}

func (c *compiler) defineVariable(global byte) {
	if c.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emitOpByte(OpDefineGlobal, global)
}

// --- statements ---

func (c *compiler) statement() {
	switch {
	case c.match(TokenPrint):
		c.printStatement()
	case c.match(TokenIf):
		c.ifStatement()
	case c.match(TokenReturn):
		c.returnStatement()
	case c.match(TokenWhile):
		c.whileStatement()
	case c.match(TokenFor):
		c.forStatement()
	case c.match(TokenLeftBrace):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *compiler) block() {
	for !c.check(TokenRightBrace) && !c.check(TokenEOF) {
		c.declaration()
	}
	c.consume(TokenRightBrace, "Expect '}' after block.")
}

func (c *compiler) printStatement() {
	c.expression()
	c.consume(TokenSemicolon, "Expect ';' after value.")
	c.emitOp(OpPrint)
}

func (c *compiler) returnStatement() {
	if c.kind == funcTypeScript {
		c.parser.error("Can't return from top-level code.")
	}
	if c.match(TokenSemicolon) {
		c.emitReturn()
		return
	}
	c.expression()
	c.consume(TokenSemicolon, "Expect ';' after return value.")
	c.emitOp(OpReturn)
}

func (c *compiler) expressionStatement() {
	c.expression()
	c.consume(TokenSemicolon, "Expect ';' after expression.")
	c.emitOp(OpPop)
}

func (c *compiler) ifStatement() {
	c.consume(TokenLeftParen, "Expect '(' after 'if'.")
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after condition.")

	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()

	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitOp(OpPop)

	if c.match(TokenElse) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *compiler) whileStatement() {
	loopStart := c.chunk().Len()
	c.consume(TokenLeftParen, "Expect '(' after 'while'.")
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after condition.")

	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(OpPop)
}

func (c *compiler) forStatement() {
	c.beginScope()
	c.consume(TokenLeftParen, "Expect '(' after 'for'.")

	switch {
	case c.match(TokenSemicolon):
		// no initializer
	case c.match(TokenVar):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := c.chunk().Len()
	exitJump := -1
	if !c.match(TokenSemicolon) {
		c.expression()
		c.consume(TokenSemicolon, "Expect ';' after loop condition.")

		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitOp(OpPop)
	}

	if !c.match(TokenRightParen) {
		bodyJump := c.emitJump(OpJump)

		incrementStart := c.chunk().Len()
		c.expression()
		c.emitOp(OpPop)
		c.consume(TokenRightParen, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(OpPop)
	}

	c.endScope()
}

// --- expressions ---

func (c *compiler) expression() { c.parsePrecedence(precAssignment) }

func (c *compiler) parsePrecedence(prec precedence) {
	c.parser.advance()
	prefixRule := getRule(c.parser.previous.Kind).prefix
	if prefixRule == nil {
		c.parser.error("Expect expression.")
		return
	}

	canAssign := prec <= precAssignment
	prefixRule(c, canAssign)

	for prec <= getRule(c.parser.current.Kind).precedence {
		c.parser.advance()
		infixRule := getRule(c.parser.previous.Kind).infix
		infixRule(c, canAssign)
	}

	if canAssign && c.match(TokenEqual) {
		c.parser.error("Invalid assignment target.")
	}
}

func (c *compiler) number(canAssign bool) {
	n, err := strconv.ParseFloat(c.parser.previous.Lexeme, 64)
	if err != nil {
		c.parser.error("Invalid number literal.")
		return
	}
	c.emitConstant(NumberVal(n))
}

func (c *compiler) string(canAssign bool) {
	lex := c.parser.previous.Lexeme
	s := lex[1 : len(lex)-1]
	c.emitConstant(ObjVal(c.vm.intern(s)))
}

func (c *compiler) literal(canAssign bool) {
	switch c.parser.previous.Kind {
	case TokenFalse:
		c.emitOp(OpFalse)
	case TokenTrue:
		c.emitOp(OpTrue)
	case TokenNil:
		c.emitOp(OpNil)
	}
}

func (c *compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(TokenRightParen, "Expect ')' after expression.")
}

func (c *compiler) unary(canAssign bool) {
	opKind := c.parser.previous.Kind
	c.parsePrecedence(precUnary)

	switch opKind {
	case TokenBang:
		c.emitOp(OpNot)
	case TokenMinus:
		c.emitOp(OpNegate)
	}
}

func (c *compiler) binary(canAssign bool) {
	opKind := c.parser.previous.Kind
	rule := getRule(opKind)
	c.parsePrecedence(rule.precedence + 1)

	switch opKind {
	case TokenBangEqual:
		c.emitOps(OpEqual, OpNot)
	case TokenEqualEqual:
		c.emitOp(OpEqual)
	case TokenGreater:
		c.emitOp(OpGreater)
	case TokenGreaterEqual:
		c.emitOps(OpLess, OpNot)
	case TokenLess:
		c.emitOp(OpLess)
	case TokenLessEqual:
		c.emitOps(OpGreater, OpNot)
	case TokenPlus:
		c.emitOp(OpAdd)
	case TokenMinus:
		c.emitOp(OpSubtract)
	case TokenStar:
		c.emitOp(OpMultiply)
	case TokenSlash:
		c.emitOp(OpDivide)
	}
}

func (c *compiler) and_(canAssign bool) {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.parsePrecedence(precAnd)
	c.patchJump(endJump)
}

func (c *compiler) or_(canAssign bool) {
	elseJump := c.emitJump(OpJumpIfFalse)
	endJump := c.emitJump(OpJump)

	c.patchJump(elseJump)
	c.emitOp(OpPop)

	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *compiler) call(canAssign bool) {
	argCount := c.argumentList()
	c.emitOpByte(OpCall, argCount)
}

func (c *compiler) argumentList() byte {
	var count int
	if !c.check(TokenRightParen) {
		for {
			c.expression()
			if count == 255 {
				c.parser.error("Can't have more than 255 arguments.")
			}
			count++
			if !c.match(TokenComma) {
				break
			}
		}
	}
	c.consume(TokenRightParen, "Expect ')' after arguments.")
	return byte(count)
}

func (c *compiler) variable(canAssign bool) {
	c.namedVariable(c.parser.previous, canAssign)
}

func (c *compiler) namedVariable(name Token, canAssign bool) {
	var getOp, setOp OpCode
	arg, ok := c.resolveLocal(name)
	switch {
	case ok:
		getOp, setOp = OpGetLocal, OpSetLocal
	default:
		if idx, ok := c.resolveUpvalue(name); ok {
			arg = idx
			getOp, setOp = OpGetUpvalue, OpSetUpvalue
		} else {
			arg = int(c.identifierConstant(name))
			getOp, setOp = OpGetGlobal, OpSetGlobal
		}
	}

	if canAssign && c.match(TokenEqual) {
		c.expression()
		c.emitOpByte(setOp, byte(arg))
	} else {
		c.emitOpByte(getOp, byte(arg))
	}
}

func (c *compiler) resolveLocal(name Token) (int, bool) {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name.Lexeme == name.Lexeme {
			if c.locals[i].depth == -1 {
				c.parser.error("Can't read local variable in its own initializer.")
			}
			return i, true
		}
	}
	return 0, false
}

func (c *compiler) resolveUpvalue(name Token) (int, bool) {
	if c.enclosing == nil {
		return 0, false
	}
	if idx, ok := c.enclosing.resolveLocal(name); ok {
		c.enclosing.locals[idx].captured = true
		return c.addUpvalue(byte(idx), true), true
	}
	if idx, ok := c.enclosing.resolveUpvalue(name); ok {
		return c.addUpvalue(byte(idx), false), true
	}
	return 0, false
}

func (c *compiler) addUpvalue(index byte, isLocal bool) int {
	for i, uv := range c.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(c.upvalues) >= 256 {
		c.parser.error("Too many closure variables in function.")
		return 0
	}
	c.upvalues = append(c.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(c.upvalues) - 1
}
