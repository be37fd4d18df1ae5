package mquery

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingSectionHeader is returned when a section document has no
// leading "section Name;" declaration. This is a hard parse error:
// ParseSectionMembers returns no members with it.
var ErrMissingSectionHeader = errors.New("m: missing section header")

// Member is one "[shared] Ident = expr;" entry of a section document.
type Member struct {
	SectionName string
	MemberName  string
	Expression  string
	IsShared    bool
}

// ParseSectionMembers splits a section document into its members. Comments,
// whitespace and a UTF-8 BOM are tolerated; the expression text is kept
// verbatim (trimmed) for later AST parsing.
func ParseSectionMembers(src string) ([]Member, error) {
	src = strings.TrimPrefix(src, "\ufeff")

	lx := &mLexer{input: src}
	tokens, err := lx.lexAll()
	if err != nil {
		return nil, err
	}

	pos := 0
	peek := func() mToken { return tokens[pos] }
	advance := func() mToken {
		tok := tokens[pos]
		if tok.typ != mEOF {
			pos++
		}
		return tok
	}

	if peek().typ != mIdent || peek().lit != "section" {
		return nil, ErrMissingSectionHeader
	}
	advance()

	nameTok := peek()
	if nameTok.typ != mIdent && nameTok.typ != mQuotedIdent {
		return nil, fmt.Errorf("m: expected section name at offset %d", nameTok.pos)
	}
	advance()
	sectionName := nameTok.lit

	if peek().typ != mPunct || peek().lit != ";" {
		return nil, fmt.Errorf("m: expected ';' after section name at offset %d", peek().pos)
	}
	advance()

	var members []Member
	for peek().typ != mEOF {
		member := Member{SectionName: sectionName}

		if peek().typ == mIdent && peek().lit == "shared" {
			member.IsShared = true
			advance()
		}

		nameTok := peek()
		if nameTok.typ != mIdent && nameTok.typ != mQuotedIdent {
			return nil, fmt.Errorf("m: expected member name at offset %d", nameTok.pos)
		}
		advance()
		member.MemberName = nameTok.lit

		if peek().typ != mPunct || peek().lit != "=" {
			return nil, fmt.Errorf("m: expected '=' after member name at offset %d", peek().pos)
		}
		advance()

		exprStart := peek().pos
		depth := 0
		exprEnd := -1
		for peek().typ != mEOF {
			tok := advance()
			if tok.typ == mPunct {
				switch tok.lit {
				case "(", "[", "{":
					depth++
				case ")", "]", "}":
					depth--
				case ";":
					if depth == 0 {
						exprEnd = tok.pos
					}
				}
			}
			if exprEnd >= 0 {
				break
			}
		}
		if exprEnd < 0 {
			return nil, fmt.Errorf("m: unterminated member %q", member.MemberName)
		}

		member.Expression = strings.TrimSpace(src[exprStart:exprEnd])
		members = append(members, member)
	}

	return members, nil
}
