package mquery

import (
	"sort"
	"strings"
)

// Canonicalize rewrites a tree in place into its canonical form: record
// fields sort by name (records are order-independent, lists are not), and
// the case of boolean/null literals and type names folds to lower. Opaque
// token streams also fold keyword-literal case so that comment- and
// whitespace-insensitive comparison is stable.
func Canonicalize(n *Node) {
	if n == nil {
		return
	}

	switch n.Kind {
	case Primitive:
		if strings.HasPrefix(n.Literal, "kw:") || strings.HasPrefix(n.Literal, "type:") {
			n.Literal = strings.ToLower(n.Literal)
		}
	case Record:
		for i := range n.Fields {
			Canonicalize(n.Fields[i].Value)
		}
		sort.SliceStable(n.Fields, func(i, j int) bool {
			return n.Fields[i].Name < n.Fields[j].Name
		})
	case Let:
		// Let bindings are ordered like list items; only the values recurse.
		for i := range n.Fields {
			Canonicalize(n.Fields[i].Value)
		}
	case Opaque:
		for i, tok := range n.Tokens {
			switch strings.ToLower(tok) {
			case "true", "false", "null":
				n.Tokens[i] = strings.ToLower(tok)
			}
		}
	}

	for _, child := range n.Children {
		Canonicalize(child)
	}
}
