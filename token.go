package webclv

// TokenKind classifies one lexeme of the OpenCL C subset the parser
// understands.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokIntLit
	TokFloatLit
	TokPunct
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "EOF"
	case TokIdent:
		return "identifier"
	case TokIntLit:
		return "integer literal"
	case TokFloatLit:
		return "float literal"
	case TokPunct:
		return "punctuation"
	default:
		return "token"
	}
}

// Token is one lexeme: its classification, its exact source text, and
// the byte range it occupies.
type Token struct {
	Kind  TokenKind
	Text  string
	Range Range
}

// openCLKeywords is the subset of C/OpenCL C keywords the parser
// treats specially; every other identifier is just a name.
var openCLKeywords = map[string]struct{}{
	"__kernel": {}, "kernel": {},
	"__global": {}, "global": {},
	"__local": {}, "local": {},
	"__constant": {}, "constant": {},
	"__private": {}, "private": {},
	"void": {}, "char": {}, "uchar": {}, "short": {}, "ushort": {},
	"int": {}, "uint": {}, "long": {}, "ulong": {}, "float": {}, "double": {},
	"size_t": {}, "bool": {},
	"const": {}, "static": {}, "volatile": {}, "restrict": {}, "__restrict": {},
	"struct": {}, "typedef": {}, "unsigned": {}, "signed": {},
	"if": {}, "else": {}, "for": {}, "while": {}, "do": {},
	"return": {}, "break": {}, "continue": {}, "goto": {},
	"sizeof": {},
}

func isKeyword(text string) bool {
	_, ok := openCLKeywords[text]
	return ok
}

// vectorBaseTypes and vectorWidthSuffixes let the parser recognize
// OpenCL C's built-in vector type names (int4, float2, uchar16, ...)
// without hardcoding every combination.
var vectorBaseTypes = map[string]struct{}{
	"char": {}, "uchar": {}, "short": {}, "ushort": {},
	"int": {}, "uint": {}, "long": {}, "ulong": {}, "float": {}, "double": {},
}

func isVectorTypeName(text string) bool {
	for _, width := range vectorWidths {
		if len(text) > len(width) && text[len(text)-len(width):] == width {
			if _, ok := vectorBaseTypes[text[:len(text)-len(width)]]; ok {
				return true
			}
		}
	}
	return false
}

func isTypeName(text string) bool {
	switch text {
	case "void", "char", "uchar", "short", "ushort", "int", "uint",
		"long", "ulong", "float", "double", "size_t", "bool", "unsigned", "signed":
		return true
	}
	return isVectorTypeName(text)
}

func isAddressSpaceKeyword(text string) (AddressSpace, bool) {
	switch text {
	case "__private", "private":
		return AddressSpacePrivate, true
	case "__local", "local":
		return AddressSpaceLocal, true
	case "__constant", "constant":
		return AddressSpaceConstant, true
	case "__global", "global":
		return AddressSpaceGlobal, true
	}
	return AddressSpacePrivate, false
}
