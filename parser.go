package webclv

import "fmt"

// Parser is a straightforward recursive-descent parser over the
// token stream Lexer produces. It accepts the WebCL subset of OpenCL
// C: kernel and ordinary function definitions, address-space-qualified
// declarations, and the statement/expression forms needed to discover
// every memory access and declaration the Analyser cares about. It is
// not a general C parser: struct/typedef declarations and other
// constructs outside the subset are skipped over rather than modeled,
// since anything the AST doesn't describe is simply carried through
// to the output unedited.
type Parser struct {
	toks      []Token
	pos       int
	file      string
	src       []byte
	lineIndex *LineIndex
	reporter  *Reporter
}

func NewParser(file string, src []byte, reporter *Reporter) (*Parser, error) {
	lex := NewLexer(file, src)
	var toks []Token
	for {
		tok, err := lex.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			break
		}
	}
	return &Parser{
		toks:      toks,
		file:      file,
		src:       src,
		lineIndex: NewLineIndex(file, src),
		reporter:  reporter,
	}, nil
}

// LineIndex returns the source's line index, for callers (the driver)
// that need to turn a Range into a Span after parsing finishes.
func (p *Parser) LineIndex() *LineIndex { return p.lineIndex }

func (p *Parser) cur() Token { return p.toks[p.pos] }

func (p *Parser) peekAt(n int) Token {
	idx := p.pos + n
	if idx >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[idx]
}

func (p *Parser) advance() Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *Parser) at(text string) bool { return p.cur().Text == text }

func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

func (p *Parser) span(start Range) Span {
	end := p.toks[max(0, p.pos-1)].Range
	return p.lineIndex.Span(NewRange(start.Start, end.End))
}

func (p *Parser) errorf(format string, args ...any) error {
	span := p.lineIndex.Span(p.cur().Range)
	return fmt.Errorf("%s: %s", span, fmt.Sprintf(format, args...))
}

func (p *Parser) expectPunct(text string) (Token, error) {
	if p.cur().Kind == TokPunct && p.cur().Text == text {
		return p.advance(), nil
	}
	return Token{}, p.errorf("expected %q but found %q", text, p.cur().Text)
}

func (p *Parser) expectIdent() (Token, error) {
	if p.cur().Kind == TokIdent {
		return p.advance(), nil
	}
	return Token{}, p.errorf("expected an identifier but found %q", p.cur().Text)
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// ParseTranslationUnit parses the whole input, returning every
// function and file-scope variable declaration found. Constructs
// outside the subset (struct/typedef/enum) are skipped.
func (p *Parser) ParseTranslationUnit() (*TranslationUnit, error) {
	start := p.cur().Range
	var decls []Decl
	for !p.atEOF() {
		if p.at("struct") || p.at("typedef") || p.at("enum") {
			p.skipToSemicolonOrBlock()
			continue
		}
		decl, err := p.parseTopLevelDecl()
		if err != nil {
			return nil, err
		}
		if decl != nil {
			decls = append(decls, decl)
		}
	}
	return NewTranslationUnit(decls, NewRange(start.Start, p.cur().Range.End)), nil
}

// skipToSemicolonOrBlock consumes tokens until it passes a top-level
// ";" or a balanced "{ ... }" followed by ";", tracking brace depth so
// nested blocks don't terminate the skip early.
func (p *Parser) skipToSemicolonOrBlock() {
	depth := 0
	for !p.atEOF() {
		t := p.advance()
		switch t.Text {
		case "{":
			depth++
		case "}":
			depth--
		case ";":
			if depth <= 0 {
				return
			}
		}
	}
}

func (p *Parser) isTypeStart() bool {
	t := p.cur()
	if t.Kind != TokIdent {
		return false
	}
	if _, ok := isAddressSpaceKeyword(t.Text); ok {
		return true
	}
	switch t.Text {
	case "const", "volatile", "static", "unsigned", "signed":
		return true
	}
	return isTypeName(t.Text)
}

// parseTopLevelDecl parses one function definition/prototype or one
// file-scope variable declaration.
func (p *Parser) parseTopLevelDecl() (Decl, error) {
	start := p.cur().Range

	isKernel := false
	for p.at("__kernel") || p.at("kernel") {
		isKernel = true
		p.advance()
	}
	// __attribute__((...)) and similar qualifiers the grammar doesn't
	// model are skipped so they don't block recognizing the decl.
	for p.at("__attribute__") {
		p.advance()
		if p.at("(") {
			p.skipBalanced("(", ")")
		}
	}

	if !p.isTypeStart() {
		// Unrecognized top-level construct; skip it rather than fail
		// the whole translation unit.
		p.skipToSemicolonOrBlock()
		return nil, nil
	}

	typ, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	if p.at("(") {
		return p.parseFunctionDecl(isKernel, typ, name.Text, start)
	}

	decl, err := p.parseVarDeclTail(typ, name.Text, false, start)
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return decl, nil
}

func (p *Parser) skipBalanced(open, close string) {
	depth := 0
	for !p.atEOF() {
		t := p.advance()
		if t.Text == open {
			depth++
		} else if t.Text == close {
			depth--
			if depth == 0 {
				return
			}
		}
	}
}

// parseTypeSpec parses an (optional) address space qualifier, any
// number of const/volatile/static/unsigned/signed qualifiers, a base
// type name, and any number of "*" pointer markers.
func (p *Parser) parseTypeSpec() (*TypeSpec, error) {
	start := p.cur().Range
	spec := &TypeSpec{}

	for {
		if space, ok := isAddressSpaceKeyword(p.cur().Text); ok && p.cur().Kind == TokIdent {
			spec.HasAddressSpace = true
			spec.AddressSpace = space
			p.advance()
			continue
		}
		switch p.cur().Text {
		case "const", "volatile", "restrict", "__restrict":
			p.advance()
			continue
		case "static":
			p.advance()
			continue
		case "unsigned", "signed":
			p.advance()
			continue
		}
		break
	}

	if p.cur().Kind != TokIdent {
		return nil, p.errorf("expected a type name but found %q", p.cur().Text)
	}
	spec.BaseType = p.advance().Text

	for p.at("*") {
		spec.PointerDepth++
		p.advance()
	}

	spec.rg = NewRange(start.Start, p.toks[p.pos-1].Range.End)
	return spec, nil
}

func (p *Parser) parseFunctionDecl(isKernel bool, ret *TypeSpec, name string, start Range) (Decl, error) {
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []*ParamDecl
	if !p.at(")") {
		for {
			param, err := p.parseParamDecl()
			if err != nil {
				return nil, err
			}
			params = append(params, param)
			if p.at(",") {
				p.advance()
				continue
			}
			break
		}
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}

	for p.at("__attribute__") {
		p.advance()
		if p.at("(") {
			p.skipBalanced("(", ")")
		}
	}

	if p.at(";") {
		p.advance()
		return NewFunctionDecl(isKernel, ret, name, params, nil, NewRange(start.Start, p.toks[p.pos-1].Range.End)), nil
	}

	body, err := p.parseCompoundStmt()
	if err != nil {
		return nil, err
	}
	rg := NewRange(start.Start, body.Range().End)
	return NewFunctionDecl(isKernel, ret, name, params, body, rg), nil
}

func (p *Parser) parseParamDecl() (*ParamDecl, error) {
	start := p.cur().Range
	if p.at("void") && (p.peekAt(1).Text == ")" || p.peekAt(1).Text == ",") {
		p.advance()
		return NewParamDecl(&TypeSpec{BaseType: "void", rg: start}, "", start), nil
	}
	typ, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}

	// A function-pointer declarator, "(*name)(paramtypes)", is parsed
	// just well enough for the Restrictor to reject it by name rather
	// than the grammar rejecting it with an opaque syntax error.
	if p.at("(") {
		save := p.pos
		p.advance()
		if p.at("*") {
			p.advance()
			if p.cur().Kind == TokIdent {
				fnName := p.advance().Text
				if _, err := p.expectPunct(")"); err == nil && p.at("(") {
					p.skipBalanced("(", ")")
					typ.IsFunctionPointer = true
					rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
					return NewParamDecl(typ, fnName, rg), nil
				}
			}
		}
		p.pos = save
	}

	name := ""
	if p.cur().Kind == TokIdent {
		name = p.advance().Text
	}
	// An array-typed parameter decays to a pointer; the declared
	// extent (if any) isn't part of the call-site ABI so it's
	// discarded here the same way the C compiler discards it.
	for p.at("[") {
		p.advance()
		for !p.at("]") && !p.atEOF() {
			p.advance()
		}
		if _, err := p.expectPunct("]"); err != nil {
			return nil, err
		}
		typ.PointerDepth++
	}
	rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
	return NewParamDecl(typ, name, rg), nil
}

func (p *Parser) parseVarDeclTail(typ *TypeSpec, name string, isStatic bool, start Range) (*VarDecl, error) {
	arrayLen := int64(1)
	isArray := false
	for p.at("[") {
		isArray = true
		p.advance()
		if p.at("]") {
			// unspecified extent; treated as a flexible array with a
			// conservative zero extent until an initializer proves
			// otherwise is out of scope here.
			arrayLen = 0
		} else {
			lenExpr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if lit, ok := lenExpr.(*IntLiteral); ok {
				arrayLen *= lit.Value
			}
		}
		if _, err := p.expectPunct("]"); err != nil {
			return nil, err
		}
	}
	if isArray {
		typ.IsArray = true
		typ.ArrayLen = arrayLen
	}

	var init Expr
	if p.at("=") {
		p.advance()
		var err error
		init, err = p.parseInitializer()
		if err != nil {
			return nil, err
		}
	}
	rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
	return NewVarDecl(typ, name, init, isStatic, rg), nil
}

// parseInitializer accepts either a brace initializer list (only its
// span matters; WebCL treats any non-trivial initializer the same
// way) or a plain assignment expression.
func (p *Parser) parseInitializer() (Expr, error) {
	if p.at("{") {
		start := p.cur().Range
		p.skipBalanced("{", "}")
		rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
		return &ParenExpr{Inner: &Identifier{Name: "{...}", rg: rg}, rg: rg}, nil
	}
	return p.parseAssignment()
}

// ---- statements ----

func (p *Parser) parseCompoundStmt() (*CompoundStmt, error) {
	start := p.cur().Range
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var stmts []Stmt
	for !p.at("}") && !p.atEOF() {
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			stmts = append(stmts, stmt)
		}
	}
	if _, err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
	return NewCompoundStmt(stmts, rg), nil
}

func (p *Parser) parseStmt() (Stmt, error) {
	switch p.cur().Text {
	case "{":
		return p.parseCompoundStmt()
	case "if":
		return p.parseIfStmt()
	case "for":
		return p.parseForStmt()
	case "while":
		return p.parseWhileStmt()
	case "do":
		return p.parseDoStmt()
	case "return":
		return p.parseReturnStmt()
	case "break":
		start := p.advance().Range
		_, err := p.expectPunct(";")
		return &BreakStmt{rg: start}, err
	case "continue":
		start := p.advance().Range
		_, err := p.expectPunct(";")
		return &ContinueStmt{rg: start}, err
	case "goto":
		start := p.advance().Range
		label, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
		return &GotoStmt{Label: label.Text, rg: rg}, nil
	case ";":
		// A bare ";" is a no-op statement. It is represented as an empty
		// CompoundStmt rather than nil: an if/while/do/label body or a
		// for-loop body that is just ";" (e.g. "for (;;) ;") is otherwise
		// handed straight to its enclosing node without a nil check.
		rg := p.cur().Range
		p.advance()
		return &CompoundStmt{rg: rg}, nil
	}
	if p.cur().Kind == TokIdent && !isKeyword(p.cur().Text) && p.peekAt(1).Text == ":" {
		start := p.cur().Range
		label := p.advance().Text
		p.advance() // ":"
		stmt, err := p.parseStmt()
		if err != nil {
			return nil, err
		}
		rg := NewRange(start.Start, stmt.Range().End)
		return &LabelStmt{Label: label, Stmt: stmt, rg: rg}, nil
	}
	if p.isTypeStart() {
		return p.parseDeclStmt()
	}
	return p.parseExprStmt()
}

func (p *Parser) parseDeclStmt() (*DeclStmt, error) {
	start := p.cur().Range
	isStatic := false
	for _, t := range p.remainingQualifiersAhead() {
		if t == "static" {
			isStatic = true
		}
	}
	typ, err := p.parseTypeSpec()
	if err != nil {
		return nil, err
	}
	var decls []*VarDecl
	for {
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		declType := typ
		if len(decls) > 0 {
			// "int a, *b;" declares distinct pointer depths per
			// declarator; clone the base type per declarator.
			clone := *typ
			declType = &clone
			declType.PointerDepth = 0
			// the first declarator's array extent was written into typ
			// itself; it belongs to that declarator alone
			declType.IsArray = false
			declType.ArrayLen = 0
			for p.at("*") {
				declType.PointerDepth++
				p.advance()
			}
		}
		decl, err := p.parseVarDeclTail(declType, name.Text, isStatic, name.Range)
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
		if p.at(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
	return NewDeclStmt(decls, rg), nil
}

// remainingQualifiersAhead peeks the qualifier keywords that precede
// the base type without consuming them, so parseDeclStmt can notice
// "static" before handing the real parse off to parseTypeSpec.
func (p *Parser) remainingQualifiersAhead() []string {
	var quals []string
	for i := 0; ; i++ {
		t := p.peekAt(i)
		if t.Kind != TokIdent {
			break
		}
		if _, ok := isAddressSpaceKeyword(t.Text); ok {
			quals = append(quals, t.Text)
			continue
		}
		switch t.Text {
		case "const", "volatile", "static", "restrict", "__restrict", "unsigned", "signed":
			quals = append(quals, t.Text)
			continue
		}
		break
	}
	return quals
}

func (p *Parser) parseExprStmt() (*ExprStmt, error) {
	start := p.cur().Range
	x, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
	return NewExprStmt(x, rg), nil
}

func (p *Parser) parseIfStmt() (*IfStmt, error) {
	start := p.advance().Range // "if"
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	then, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	var els Stmt
	if p.at("else") {
		p.advance()
		els, err = p.parseStmt()
		if err != nil {
			return nil, err
		}
	}
	rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
	return &IfStmt{Cond: cond, Then: then, Else: els, rg: rg}, nil
}

func (p *Parser) parseForStmt() (*ForStmt, error) {
	start := p.advance().Range // "for"
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var init Stmt
	if !p.at(";") {
		if p.isTypeStart() {
			d, err := p.parseDeclStmt()
			if err != nil {
				return nil, err
			}
			init = d
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(";"); err != nil {
				return nil, err
			}
			init = NewExprStmt(e, e.Range())
		}
	} else {
		p.advance()
	}
	var cond Expr
	if !p.at(";") {
		var err error
		cond, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	var post Expr
	if !p.at(")") {
		var err error
		post, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	rg := NewRange(start.Start, body.Range().End)
	return &ForStmt{Init: init, Cond: cond, Post: post, Body: body, rg: rg}, nil
}

func (p *Parser) parseWhileStmt() (*WhileStmt, error) {
	start := p.advance().Range
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	rg := NewRange(start.Start, body.Range().End)
	return &WhileStmt{Cond: cond, Body: body, rg: rg}, nil
}

func (p *Parser) parseDoStmt() (*DoStmt, error) {
	start := p.advance().Range
	body, err := p.parseStmt()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("while"); err != nil {
		// "while" is lexed as an identifier keyword, not punctuation
		if !p.at("while") {
			return nil, p.errorf("expected 'while' but found %q", p.cur().Text)
		}
		p.advance()
	}
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
	return &DoStmt{Body: body, Cond: cond, rg: rg}, nil
}

func (p *Parser) parseReturnStmt() (*ReturnStmt, error) {
	start := p.advance().Range
	var value Expr
	if !p.at(";") {
		var err error
		value, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
	return &ReturnStmt{Value: value, rg: rg}, nil
}

// ---- expressions ----

var assignOps = map[string]struct{}{
	"=": {}, "+=": {}, "-=": {}, "*=": {}, "/=": {}, "%=": {},
	"&=": {}, "|=": {}, "^=": {}, "<<=": {}, ">>=": {},
}

var binaryPrec = map[string]int{
	"||": 1,
	"&&": 2,
	"|":  3,
	"^":  4,
	"&":  5,
	"==": 6, "!=": 6,
	"<": 7, "<=": 7, ">": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *Parser) parseExpr() (Expr, error) {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() (Expr, error) {
	left, err := p.parseConditional()
	if err != nil {
		return nil, err
	}
	if _, ok := assignOps[p.cur().Text]; ok && p.cur().Kind == TokPunct {
		op := p.advance().Text
		right, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		rg := NewRange(left.Range().Start, right.Range().End)
		return &AssignExpr{Op: op, Left: left, Right: right, rg: rg}, nil
	}
	return left, nil
}

func (p *Parser) parseConditional() (Expr, error) {
	cond, err := p.parseBinary(1)
	if err != nil {
		return nil, err
	}
	if p.at("?") {
		p.advance()
		then, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		els, err := p.parseConditional()
		if err != nil {
			return nil, err
		}
		rg := NewRange(cond.Range().Start, els.Range().End)
		return &ConditionalExpr{Cond: cond, Then: then, Else: els, rg: rg}, nil
	}
	return cond, nil
}

func (p *Parser) parseBinary(minPrec int) (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		prec, ok := binaryPrec[p.cur().Text]
		if !ok || p.cur().Kind != TokPunct || prec < minPrec {
			break
		}
		op := p.advance().Text
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		rg := NewRange(left.Range().Start, right.Range().End)
		left = &BinaryExpr{Op: op, Left: left, Right: right, rg: rg}
	}
	return left, nil
}

var unaryPrefixOps = map[string]struct{}{
	"&": {}, "*": {}, "-": {}, "+": {}, "!": {}, "~": {}, "++": {}, "--": {},
}

func (p *Parser) parseUnary() (Expr, error) {
	if p.at("sizeof") {
		return p.parseSizeof()
	}
	if _, ok := unaryPrefixOps[p.cur().Text]; ok && p.cur().Kind == TokPunct {
		start := p.cur().Range
		op := p.advance().Text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		rg := NewRange(start.Start, operand.Range().End)
		return &UnaryExpr{Op: op, Operand: operand, rg: rg}, nil
	}
	if p.at("(") && p.cur().Kind == TokPunct {
		save := p.pos
		p.advance()
		if p.isTypeStart() {
			start := p.toks[save].Range
			typ, err := p.parseTypeSpec()
			if err == nil {
				if _, perr := p.expectPunct(")"); perr == nil {
					operand, err := p.parseUnary()
					if err == nil {
						rg := NewRange(start.Start, operand.Range().End)
						return &CastExpr{Type: typ, Operand: operand, rg: rg}, nil
					}
				}
			}
			p.pos = save
		} else {
			p.pos = save
		}
	}
	return p.parsePostfix()
}

func (p *Parser) parseSizeof() (Expr, error) {
	start := p.advance().Range // "sizeof"
	if p.at("(") {
		save := p.pos
		p.advance()
		if p.isTypeStart() {
			if _, err := p.parseTypeSpec(); err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			rg := NewRange(start.Start, p.toks[p.pos-1].Range.End)
			return &IntLiteral{Text: "sizeof(...)", Value: 0, rg: rg}, nil
		}
		p.pos = save
	}
	operand, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	rg := NewRange(start.Start, operand.Range().End)
	return &UnaryExpr{Op: "sizeof", Operand: operand, rg: rg}, nil
}

func (p *Parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.cur().Text {
		case "[":
			p.advance()
			index, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct("]"); err != nil {
				return nil, err
			}
			rg := NewRange(expr.Range().Start, p.toks[p.pos-1].Range.End)
			expr = &SubscriptExpr{Base: expr, Index: index, rg: rg}
		case "(":
			ident, ok := expr.(*Identifier)
			if !ok {
				return expr, nil
			}
			p.advance()
			var args []Expr
			if !p.at(")") {
				for {
					arg, err := p.parseAssignment()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if p.at(",") {
						p.advance()
						continue
					}
					break
				}
			}
			if _, err := p.expectPunct(")"); err != nil {
				return nil, err
			}
			rg := NewRange(expr.Range().Start, p.toks[p.pos-1].Range.End)
			expr = &CallExpr{Callee: ident.Name, Args: args, rg: rg}
		case ".":
			p.advance()
			field, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			rg := NewRange(expr.Range().Start, field.Range.End)
			expr = &MemberExpr{Base: expr, Field: field.Text, rg: rg}
		case "->":
			p.advance()
			field, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			rg := NewRange(expr.Range().Start, field.Range.End)
			expr = &MemberExpr{Base: expr, Field: field.Text, Arrow: true, rg: rg}
		case "++", "--":
			op := p.advance().Text
			rg := NewRange(expr.Range().Start, p.toks[p.pos-1].Range.End)
			expr = &UnaryExpr{Op: op, Operand: expr, Postfix: true, rg: rg}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch {
	case t.Kind == TokIdent:
		p.advance()
		return NewIdentifier(t.Text, t.Range), nil
	case t.Kind == TokIntLit:
		p.advance()
		return &IntLiteral{Text: t.Text, Value: parseIntLiteralValue(t.Text), rg: t.Range}, nil
	case t.Kind == TokFloatLit:
		p.advance()
		return &FloatLiteral{Text: t.Text, rg: t.Range}, nil
	case t.Text == "(":
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		rg := NewRange(t.Range.Start, p.toks[p.pos-1].Range.End)
		return &ParenExpr{Inner: inner, rg: rg}, nil
	}
	return nil, p.errorf("unexpected token %q", t.Text)
}
