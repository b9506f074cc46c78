package lpir

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseError reports a failure to parse LPIR text, with a byte position
// pointing at the offending token.
type ParseError struct {
	Message  string
	Position int
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at byte %d: %s", e.Position, e.Message)
}

type parser struct {
	lex     *lexer
	peeked  *token
	builder *Builder
	blocks  map[string]Block
	values  map[string]Value
}

func newParser(src string) *parser {
	return &parser{lex: newLexer(src)}
}

func (p *parser) peek() (token, error) {
	if p.peeked != nil {
		return *p.peeked, nil
	}
	t, err := p.lex.next()
	if err != nil {
		return token{}, err
	}
	p.peeked = &t
	return t, nil
}

func (p *parser) advance() (token, error) {
	t, err := p.peek()
	if err != nil {
		return token{}, err
	}
	p.peeked = nil
	return t, nil
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t, err := p.advance()
	if err != nil {
		return token{}, err
	}
	if t.kind != kind {
		return token{}, &ParseError{Message: fmt.Sprintf("expected %s, found %q", what, t.text), Position: t.pos}
	}
	return t, nil
}

func (p *parser) expectIdent(word string) error {
	t, err := p.advance()
	if err != nil {
		return err
	}
	if t.kind != tokIdent || t.text != word {
		return &ParseError{Message: fmt.Sprintf("expected %q, found %q", word, t.text), Position: t.pos}
	}
	return nil
}

// ParseModule parses a complete module from LPIR text.
func ParseModule(input string) (*Module, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, &ParseError{Message: "empty input", Position: 0}
	}
	p := newParser(trimmed)
	mod, err := p.parseModuleBody()
	if err != nil {
		return nil, err
	}
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.kind != tokEOF {
		return nil, &ParseError{Message: fmt.Sprintf("unexpected input remaining: %q", t.text), Position: t.pos}
	}
	if err := validateParsedModule(mod); err != nil {
		return nil, err
	}
	return mod, nil
}

func (p *parser) parseModuleBody() (*Module, error) {
	if err := p.expectIdent("module"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}

	mod := NewModule()
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBrace {
			p.advance()
			return mod, nil
		}
		if t.kind == tokIdent && t.text == "entry" {
			p.advance()
			if _, err := p.expect(tokColon, ":"); err != nil {
				return nil, err
			}
			name, err := p.expect(tokFuncName, "%name")
			if err != nil {
				return nil, err
			}
			mod.SetEntry(name.text)
			continue
		}
		if t.kind == tokIdent && t.text == "function" {
			fn, err := p.parseFunctionBody()
			if err != nil {
				return nil, err
			}
			mod.AddFunction(fn)
			continue
		}
		if t.kind == tokEOF {
			return nil, &ParseError{Message: "unexpected end of input, missing closing brace", Position: t.pos}
		}
		return nil, &ParseError{Message: fmt.Sprintf("unexpected token %q in module", t.text), Position: t.pos}
	}
}

// ParseFunction parses a single function from LPIR text and runs the
// post-parse validation pass.
func ParseFunction(input string) (*Function, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil, &ParseError{Message: "empty input", Position: 0}
	}
	p := newParser(trimmed)
	fn, err := p.parseFunctionBody()
	if err != nil {
		return nil, err
	}
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.kind != tokEOF {
		return nil, &ParseError{Message: fmt.Sprintf("unexpected input remaining: %q", t.text), Position: t.pos}
	}
	if err := validateParsedFunction(fn); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *parser) parseFunctionBody() (*Function, error) {
	if err := p.expectIdent("function"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokFuncName, "%name")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	var params []Type
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRParen {
			p.advance()
			break
		}
		if len(params) > 0 {
			if _, err := p.expect(tokComma, ","); err != nil {
				return nil, err
			}
		}
		tname, err := p.expect(tokIdent, "type")
		if err != nil {
			return nil, err
		}
		typ, err := ParseType(tname.text)
		if err != nil {
			return nil, &ParseError{Message: err.Error(), Position: tname.pos}
		}
		params = append(params, typ)
	}

	var returns []Type
	t, err := p.peek()
	if err != nil {
		return nil, err
	}
	if t.kind == tokArrow {
		p.advance()
		for {
			tname, err := p.expect(tokIdent, "type")
			if err != nil {
				return nil, err
			}
			typ, err := ParseType(tname.text)
			if err != nil {
				return nil, &ParseError{Message: err.Error(), Position: tname.pos}
			}
			returns = append(returns, typ)
			nt, err := p.peek()
			if err != nil {
				return nil, err
			}
			if nt.kind != tokComma {
				break
			}
			p.advance()
		}
	}

	if _, err := p.expect(tokLBrace, "{"); err != nil {
		return nil, err
	}

	fn := NewFunction(name.text, Signature{Params: params, Returns: returns})
	b := NewBuilder(fn)
	p.builder = b
	p.blocks = make(map[string]Block)
	p.values = make(map[string]Value)

	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRBrace {
			p.advance()
			return fn, nil
		}
		if t.kind == tokEOF {
			return nil, &ParseError{Message: "unexpected end of input, missing closing brace", Position: t.pos}
		}
		if err := p.parseBlock(); err != nil {
			return nil, err
		}
	}
}

func (p *parser) blockID(name string) Block {
	if b, ok := p.blocks[name]; ok {
		return b
	}
	b := p.builder.CreateBlock()
	p.blocks[name] = b
	return b
}

func (p *parser) parseBlock() error {
	label, err := p.expect(tokBlockID, "block label")
	if err != nil {
		return err
	}
	blk, alreadyDeclared := p.blocks[label.text]
	var paramNames []string
	var paramTypes []Type

	t, err := p.peek()
	if err != nil {
		return err
	}
	if t.kind == tokLParen {
		p.advance()
		for {
			nt, err := p.peek()
			if err != nil {
				return err
			}
			if nt.kind == tokRParen {
				p.advance()
				break
			}
			if len(paramNames) > 0 {
				if _, err := p.expect(tokComma, ","); err != nil {
					return err
				}
			}
			vname, err := p.expect(tokValueID, "value id")
			if err != nil {
				return err
			}
			if _, err := p.expect(tokColon, ":"); err != nil {
				return err
			}
			tname, err := p.expect(tokIdent, "type")
			if err != nil {
				return err
			}
			typ, err := ParseType(tname.text)
			if err != nil {
				return &ParseError{Message: err.Error(), Position: tname.pos}
			}
			paramNames = append(paramNames, vname.text)
			paramTypes = append(paramTypes, typ)
		}
	}
	if _, err := p.expect(tokColon, ":"); err != nil {
		return err
	}

	if alreadyDeclared {
		if len(paramTypes) > 0 {
			params := p.builder.DeclareBlockParams(blk, paramTypes)
			for i, n := range paramNames {
				p.values[n] = params[i]
			}
		}
	} else {
		if len(paramTypes) > 0 {
			newBlk, params := p.builder.CreateBlockWithParams(paramTypes)
			blk = newBlk
			for i, n := range paramNames {
				p.values[n] = params[i]
			}
		} else {
			blk = p.builder.CreateBlock()
		}
		p.blocks[label.text] = blk
	}
	p.builder.SetBlock(blk)

	for {
		t, err := p.peek()
		if err != nil {
			return err
		}
		if t.kind == tokBlockID || t.kind == tokRBrace {
			return nil
		}
		first := p.builder.fn.DFG.nextInst
		if err := p.parseInst(); err != nil {
			return err
		}
		if p.builder.fn.DFG.nextInst > first {
			p.builder.fn.SourcePos[first] = t.pos
		}
	}
}

func (p *parser) valueRef() (Value, error) {
	t, err := p.expect(tokValueID, "value")
	if err != nil {
		return 0, err
	}
	if v, ok := p.values[t.text]; ok {
		return v, nil
	}
	return 0, &ParseError{Message: fmt.Sprintf("undefined value %s", t.text), Position: t.pos}
}

func parseIntLiteral(s string) (int64, error) {
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var v uint64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 64)
	} else {
		v, err = strconv.ParseUint(s, 10, 64)
	}
	if err != nil {
		return 0, err
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

func (p *parser) parseBlockTarget() (Block, []Value, error) {
	t, err := p.expect(tokBlockID, "block target")
	if err != nil {
		return 0, nil, err
	}
	blk := p.blockID(t.text)
	nt, err := p.peek()
	if err != nil {
		return 0, nil, err
	}
	if nt.kind != tokLParen {
		return blk, nil, nil
	}
	p.advance()
	var args []Value
	for {
		pt, err := p.peek()
		if err != nil {
			return 0, nil, err
		}
		if pt.kind == tokRParen {
			p.advance()
			break
		}
		if len(args) > 0 {
			if _, err := p.expect(tokComma, ","); err != nil {
				return 0, nil, err
			}
		}
		v, err := p.valueRef()
		if err != nil {
			return 0, nil, err
		}
		args = append(args, v)
	}
	return blk, args, nil
}

func (p *parser) parseInst() error {
	t, err := p.peek()
	if err != nil {
		return err
	}

	// Instructions with a result: `vN[, vM...] = opcode ...`
	if t.kind == tokValueID {
		return p.parseResultInst()
	}

	if t.kind != tokIdent {
		return &ParseError{Message: fmt.Sprintf("expected instruction, found %q", t.text), Position: t.pos}
	}

	switch t.text {
	case "store":
		return p.parseStore()
	case "jump":
		p.advance()
		blk, args, err := p.parseBlockTarget()
		if err != nil {
			return err
		}
		p.builder.Jump(blk, args)
		return nil
	case "brif":
		p.advance()
		cond, err := p.valueRef()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		tb, targs, err := p.parseBlockTarget()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		fb, fargs, err := p.parseBlockTarget()
		if err != nil {
			return err
		}
		p.builder.Brif(cond, tb, targs, fb, fargs)
		return nil
	case "return":
		p.advance()
		var vals []Value
		nt, err := p.peek()
		if err != nil {
			return err
		}
		if nt.kind == tokValueID {
			for {
				v, err := p.valueRef()
				if err != nil {
					return err
				}
				vals = append(vals, v)
				ct, err := p.peek()
				if err != nil {
					return err
				}
				if ct.kind != tokComma {
					break
				}
				p.advance()
			}
		}
		p.builder.Return(vals)
		return nil
	case "halt":
		p.advance()
		p.builder.Halt()
		return nil
	default:
		return &ParseError{Message: fmt.Sprintf("unexpected statement %q", t.text), Position: t.pos}
	}
}

func (p *parser) parseStore() error {
	p.advance() // "store"
	if _, err := p.expect(tokDot, "."); err != nil {
		return err
	}
	tname, err := p.expect(tokIdent, "type")
	if err != nil {
		return err
	}
	typ, err := ParseType(tname.text)
	if err != nil {
		return &ParseError{Message: err.Error(), Position: tname.pos}
	}
	addr, err := p.valueRef()
	if err != nil {
		return err
	}
	if _, err := p.expect(tokComma, ","); err != nil {
		return err
	}
	val, err := p.valueRef()
	if err != nil {
		return err
	}
	p.builder.Store(typ, addr, val)
	return nil
}

func (p *parser) parseResultInst() error {
	firstName, err := p.expect(tokValueID, "value")
	if err != nil {
		return err
	}
	resultNames := []string{firstName.text}
	for {
		t, err := p.peek()
		if err != nil {
			return err
		}
		if t.kind != tokComma {
			break
		}
		p.advance()
		n, err := p.expect(tokValueID, "value")
		if err != nil {
			return err
		}
		resultNames = append(resultNames, n.text)
	}
	if _, err := p.expect(tokEquals, "="); err != nil {
		return err
	}

	opTok, err := p.peek()
	if err != nil {
		return err
	}

	var results []Value
	switch opTok.text {
	case "iconst":
		p.advance()
		n, err := p.expect(tokNumber, "integer literal")
		if err != nil {
			return err
		}
		v, err := parseIntLiteral(n.text)
		if err != nil {
			return &ParseError{Message: err.Error(), Position: n.pos}
		}
		res := p.builder.Iconst(v, TypeI32)
		results = []Value{res}
	case "fconst":
		p.advance()
		n, err := p.advance()
		if err != nil {
			return err
		}
		f, err := strconv.ParseFloat(n.text, 32)
		if err != nil {
			return &ParseError{Message: err.Error(), Position: n.pos}
		}
		bits := math.Float32bits(float32(f))
		res := p.builder.Fconst(bits)
		results = []Value{res}
	case "load":
		p.advance()
		if _, err := p.expect(tokDot, "."); err != nil {
			return err
		}
		tname, err := p.expect(tokIdent, "type")
		if err != nil {
			return err
		}
		typ, err := ParseType(tname.text)
		if err != nil {
			return &ParseError{Message: err.Error(), Position: tname.pos}
		}
		addr, err := p.valueRef()
		if err != nil {
			return err
		}
		res := p.builder.Load(typ, addr)
		results = []Value{res}
	case "icmp", "fcmp":
		p.advance()
		condTok, err := p.expect(tokIdent, "condition code")
		if err != nil {
			return err
		}
		cond, err := ParseCondCode(condTok.text)
		if err != nil {
			return &ParseError{Message: err.Error(), Position: condTok.pos}
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		l, err := p.valueRef()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		r, err := p.valueRef()
		if err != nil {
			return err
		}
		var res Value
		if opTok.text == "icmp" {
			res = p.builder.Icmp(cond, l, r)
		} else {
			res = p.builder.Fcmp(cond, l, r)
		}
		results = []Value{res}
	case "call":
		p.advance()
		callee, err := p.expect(tokFuncName, "%callee")
		if err != nil {
			return err
		}
		args, err := p.parseArgList()
		if err != nil {
			return err
		}
		types := make([]Type, len(resultNames))
		for i := range types {
			types[i] = TypeI32
		}
		results = p.builder.Call(callee.text, args, types)
	case "syscall":
		p.advance()
		n, err := p.expect(tokNumber, "syscall number")
		if err != nil {
			return err
		}
		num, err := parseIntLiteral(n.text)
		if err != nil {
			return &ParseError{Message: err.Error(), Position: n.pos}
		}
		args, err := p.parseArgList()
		if err != nil {
			return err
		}
		types := make([]Type, len(resultNames))
		for i := range types {
			types[i] = TypeI32
		}
		results = p.builder.Syscall(num, args, types)
	default:
		op, ok := ParseOpcode(opTok.text)
		if !ok {
			return &ParseError{Message: fmt.Sprintf("unknown opcode %q", opTok.text), Position: opTok.pos}
		}
		p.advance()
		l, err := p.valueRef()
		if err != nil {
			return err
		}
		if _, err := p.expect(tokComma, ","); err != nil {
			return err
		}
		r, err := p.valueRef()
		if err != nil {
			return err
		}
		res := p.emitBinop(op, l, r)
		results = []Value{res}
	}

	for i, name := range resultNames {
		if i < len(results) {
			p.values[name] = results[i]
		}
	}
	return nil
}

func (p *parser) emitBinop(op Opcode, l, r Value) Value {
	switch op {
	case OpIadd:
		return p.builder.Iadd(l, r)
	case OpIsub:
		return p.builder.Isub(l, r)
	case OpImul:
		return p.builder.Imul(l, r)
	case OpImulh:
		return p.builder.Imulh(l, r)
	case OpIdiv:
		return p.builder.Idiv(l, r)
	case OpIrem:
		return p.builder.Irem(l, r)
	case OpIand:
		return p.builder.Iand(l, r)
	case OpIor:
		return p.builder.Ior(l, r)
	case OpIxor:
		return p.builder.Ixor(l, r)
	case OpIshl:
		return p.builder.Ishl(l, r)
	case OpIshr:
		return p.builder.Ishr(l, r)
	case OpIsra:
		return p.builder.Isra(l, r)
	case OpFadd:
		return p.builder.Fadd(l, r)
	case OpFsub:
		return p.builder.Fsub(l, r)
	case OpFmul:
		return p.builder.Fmul(l, r)
	case OpFdiv:
		return p.builder.Fdiv(l, r)
	default:
		panic(fmt.Sprintf("unhandled binop opcode %v", op))
	}
}

func (p *parser) parseArgList() ([]Value, error) {
	if _, err := p.expect(tokLParen, "("); err != nil {
		return nil, err
	}
	var args []Value
	for {
		t, err := p.peek()
		if err != nil {
			return nil, err
		}
		if t.kind == tokRParen {
			p.advance()
			return args, nil
		}
		if len(args) > 0 {
			if _, err := p.expect(tokComma, ","); err != nil {
				return nil, err
			}
		}
		v, err := p.valueRef()
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
}
