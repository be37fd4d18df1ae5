// Package mquery parses Power Query ("M") section documents into a small
// expression tree and diffs queries semantically: record field order, case
// of keyword literals, parenthesization and whitespace are not significant;
// list order is.
package mquery

import (
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Kind enumerates the node shapes the M AST distinguishes. Anything the
// parser does not recognize falls through to Opaque, which keeps the raw
// token stream for textual-hash comparison.
type Kind uint8

const (
	Primitive Kind = iota
	Ident
	If
	Each
	FunctionLiteral
	FunctionCall
	BinaryOp
	UnaryOp
	TryOtherwise
	Record
	List
	Access
	Let
	Opaque
)

func (k Kind) String() string {
	switch k {
	case Primitive:
		return "primitive"
	case Ident:
		return "ident"
	case If:
		return "if"
	case Each:
		return "each"
	case FunctionLiteral:
		return "function-literal"
	case FunctionCall:
		return "function-call"
	case BinaryOp:
		return "binary-op"
	case UnaryOp:
		return "unary-op"
	case TryOtherwise:
		return "try-otherwise"
	case Record:
		return "record"
	case List:
		return "list"
	case Access:
		return "access"
	case Let:
		return "let"
	case Opaque:
		return "opaque"
	}
	return "unknown"
}

// AccessKind distinguishes field access ("Source[Name]") from item access
// ("Source{0}").
type AccessKind uint8

const (
	FieldAccess AccessKind = iota
	ItemAccess
)

// Field is one record field or one let binding.
type Field struct {
	Name  string
	Value *Node
}

// Node is an M AST node. Which members are populated depends on Kind:
//
//	Primitive      Literal
//	Ident          Name
//	If             Children[cond, then, else]
//	Each           Children[body]
//	FunctionLiteral ParamCount, Children[body]
//	FunctionCall   Name, Children[args...]
//	BinaryOp       Op, Children[left, right]
//	UnaryOp        Op, Children[operand]
//	TryOtherwise   Children[try, otherwise]
//	Record         Fields
//	List           Children[items...]
//	Access         AccessKind (of the last link), ChainLen, Children[target, key]
//	Let            Fields (steps in order), Children[body]
//	Opaque         Tokens
type Node struct {
	Kind       Kind
	Name       string
	Op         string
	Literal    string
	ParamCount int
	AccessKind AccessKind
	ChainLen   int
	Tokens     []string
	Children   []*Node
	Fields     []Field
}

// SemanticallyEqual compares two canonicalized trees. Opaque nodes compare
// by a hash of their token streams.
func SemanticallyEqual(a, b *Node) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Opaque:
		return opaqueHash(a.Tokens) == opaqueHash(b.Tokens)
	case Primitive:
		return a.Literal == b.Literal
	case Ident:
		return a.Name == b.Name
	}
	if a.Name != b.Name || a.Op != b.Op || a.ParamCount != b.ParamCount ||
		a.AccessKind != b.AccessKind || a.ChainLen != b.ChainLen {
		return false
	}
	if len(a.Children) != len(b.Children) || len(a.Fields) != len(b.Fields) {
		return false
	}
	for i := range a.Children {
		if !SemanticallyEqual(a.Children[i], b.Children[i]) {
			return false
		}
	}
	for i := range a.Fields {
		if a.Fields[i].Name != b.Fields[i].Name {
			return false
		}
		if !SemanticallyEqual(a.Fields[i].Value, b.Fields[i].Value) {
			return false
		}
	}
	return true
}

func opaqueHash(tokens []string) uint64 {
	h := xxhash.New()
	for _, tok := range tokens {
		h.WriteString(tok)
		h.Write([]byte{0})
	}
	return h.Sum64()
}

// Hash returns a structural digest of a canonicalized tree, used for cheap
// rename detection across whole query definitions.
func Hash(n *Node) uint64 {
	var sb strings.Builder
	writeHash(&sb, n)
	return xxhash.Sum64String(sb.String())
}

func writeHash(sb *strings.Builder, n *Node) {
	if n == nil {
		sb.WriteString("<nil>")
		return
	}
	sb.WriteString(n.Kind.String())
	sb.WriteByte('|')
	sb.WriteString(n.Name)
	sb.WriteByte('|')
	sb.WriteString(n.Op)
	sb.WriteByte('|')
	sb.WriteString(n.Literal)
	sb.WriteByte('|')
	for _, tok := range n.Tokens {
		sb.WriteString(tok)
		sb.WriteByte(' ')
	}
	sb.WriteByte('(')
	for _, child := range n.Children {
		writeHash(sb, child)
		sb.WriteByte(',')
	}
	for _, field := range n.Fields {
		sb.WriteString(field.Name)
		sb.WriteByte('=')
		writeHash(sb, field.Value)
		sb.WriteByte(',')
	}
	sb.WriteByte(')')
}
