// Package serialize turns an immutable algebra tree (package algebra) into
// injection-safe SPARQL text. It is a pure function of its input: the same
// tree always serializes to the same string, and no caller-supplied string
// ever reaches the output except through the escaping in Literal.
package serialize

import (
	"fmt"
	"strings"

	"github.com/twinfer/gqlsparql/algebra"
)

const xsdString = algebra.XSDString

// Term renders a single algebra.Term as SPARQL text: <iri> for named
// nodes, a (possibly typed) quoted literal for literals, ?name for
// variables.
func Term(t algebra.Term) (string, error) {
	switch v := t.(type) {
	case algebra.NamedNode:
		return "<" + v.IRI + ">", nil
	case algebra.Literal:
		return Literal(v), nil
	case algebra.Variable:
		return "?" + v.Name, nil
	default:
		return "", fmt.Errorf("serialize: unsupported term type %T", t)
	}
}

// Literal renders a typed literal, escaping its lexical form per SPARQL
// 1.1's string-literal escape rules. The ^^<datatype> suffix is omitted
// only when the datatype is exactly xsd:string (SPARQL's default for plain
// quoted literals).
func Literal(l algebra.Literal) string {
	escaped := escapeLexical(l.Lexical)
	if l.Datatype == "" || l.Datatype == xsdString {
		return `"` + escaped + `"`
	}
	return `"` + escaped + `"^^<` + l.Datatype + `>`
}

// escapeLexical applies the SPARQL 1.1 ECHAR escapes required inside a
// double-quoted string literal: backslash first (so later escapes aren't
// double-escaped), then the quote and whitespace control characters.
func escapeLexical(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 8)
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Pattern renders one triple pattern as "<s> <p> <o> ." (or the GRAPH
// wrapping form when Graph is set).
func Pattern(p algebra.Pattern) (string, error) {
	s, err := Term(p.Subject)
	if err != nil {
		return "", err
	}
	pr, err := Term(p.Predicate)
	if err != nil {
		return "", err
	}
	o, err := Term(p.Object)
	if err != nil {
		return "", err
	}
	line := s + " " + pr + " " + o + " ."
	if p.Graph != "" {
		return "GRAPH <" + p.Graph + "> { " + line + " }", nil
	}
	return line, nil
}

// BGP renders a basic graph pattern as a brace-delimited block of triple
// patterns, one per line.
func BGP(b *algebra.BGP) (string, error) {
	var sb strings.Builder
	sb.WriteString("{\n")
	for _, p := range b.Patterns {
		line, err := Pattern(p)
		if err != nil {
			return "", err
		}
		sb.WriteString("  " + line + "\n")
	}
	sb.WriteString("}")
	return sb.String(), nil
}

func patternBlock(patterns []algebra.Pattern) (string, error) {
	return BGP(&algebra.BGP{Patterns: patterns})
}

// DeleteInsert renders one update statement: INSERT DATA when Delete and
// Where are both empty, DELETE ... WHERE when Insert is empty, and
// DELETE ... INSERT ... WHERE otherwise.
func DeleteInsert(u algebra.DeleteInsert) (string, error) {
	switch {
	case len(u.Delete) == 0 && u.Where == nil:
		body, err := patternBlock(u.Insert)
		if err != nil {
			return "", err
		}
		return "INSERT DATA " + body, nil
	case len(u.Insert) == 0:
		del, err := patternBlock(u.Delete)
		if err != nil {
			return "", err
		}
		where, err := BGP(u.Where)
		if err != nil {
			return "", err
		}
		return "DELETE " + del + "\nWHERE " + where, nil
	default:
		del, err := patternBlock(u.Delete)
		if err != nil {
			return "", err
		}
		ins, err := patternBlock(u.Insert)
		if err != nil {
			return "", err
		}
		where, err := BGP(u.Where)
		if err != nil {
			return "", err
		}
		return "DELETE " + del + "\nINSERT " + ins + "\nWHERE " + where, nil
	}
}

// CompositeUpdate renders a sequence of update statements separated by
// " ;\n", the form a SPARQL 1.1 Update request body takes for multiple
// operations executed together.
func CompositeUpdate(c algebra.CompositeUpdate) (string, error) {
	parts := make([]string, 0, len(c.Updates))
	for _, u := range c.Updates {
		s, err := DeleteInsert(u)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, " ;\n"), nil
}

// Project renders the query-side counterpart used by the reference query
// compiler: "SELECT ?a ?b WHERE { ... }".
func Project(p algebra.Project) (string, error) {
	where, err := BGP(p.Where)
	if err != nil {
		return "", err
	}
	vars := make([]string, 0, len(p.Vars))
	for _, v := range p.Vars {
		vars = append(vars, "?"+v)
	}
	return "SELECT " + strings.Join(vars, " ") + " WHERE " + where, nil
}
