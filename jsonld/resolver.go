// Package jsonld resolves a normalized JSON-LD context: mapping short
// names to predicate/type IRIs, detecting relationship (object-valued)
// terms, and expanding relative IRIs against @base.
package jsonld

import (
	"fmt"
	"strings"
)

// ContextError reports a failed term, type, or IRI lookup against a
// Context.
type ContextError struct {
	Name   string
	Reason string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("jsonld: term %q: %s", e.Name, e.Reason)
}

const idTypeMarker = "@id"

type termDef struct {
	iri     string
	typeIRI string // datatype IRI, the "@id" marker, or "" if unset.
	isSet   bool
}

// Context is a normalized, read-only JSON-LD context. It is built once
// (ParseContext) and shared by reference across every compilation a Client
// performs; it carries no mutable state.
type Context struct {
	base  string
	vocab string
	terms map[string]termDef
}

// inverseTable pairs common bidirectional relationship names. It is a
// convenience fallback, not derived from the context document itself.
var inverseTable = map[string]string{
	"product": "reviews",
	"reviews": "product",
	"author":  "works",
	"works":   "author",
}

// relationshipHeuristics names terms conventionally used for object-valued
// predicates even when the context gives them no structured @type: @id
// form. This mirrors the source system's convenience fallback in
// IsRelationship; see DESIGN.md.
var relationshipHeuristics = map[string]bool{
	"author": true, "authorId": true,
	"reviewer": true, "reviewerId": true,
	"product": true, "productId": true,
	"reviews": true, "works": true,
	"owner": true, "ownerId": true,
	"publisher": true, "publisherId": true,
}

// ParseContext normalizes a raw JSON-LD context document (as decoded from
// JSON: string or map[string]any values) into a Context. Term IRI values
// that are themselves CURIEs (e.g. "ex:age") are expanded once here against
// sibling terms that act as namespace prefixes (e.g. "ex": "http://...").
// This one-time normalization is distinct from, and not to be confused
// with, the (deliberately non-standard) runtime ExpandIRI used on
// user-supplied relationship values.
func ParseContext(raw map[string]any) (*Context, error) {
	ctx := &Context{terms: make(map[string]termDef, len(raw))}

	prefixes := make(map[string]string, len(raw))
	for key, val := range raw {
		if s, ok := val.(string); ok && key != "@base" && key != "@vocab" {
			prefixes[key] = s
		}
	}
	expand := func(v string) string {
		idx := strings.IndexByte(v, ':')
		if idx <= 0 {
			return v
		}
		prefix, local := v[:idx], v[idx+1:]
		if ns, ok := prefixes[prefix]; ok {
			return ns + local
		}
		return v
	}

	for key, val := range raw {
		switch key {
		case "@base":
			s, ok := val.(string)
			if !ok {
				return nil, &ContextError{Name: "@base", Reason: "must be a string"}
			}
			ctx.base = s
		case "@vocab":
			s, ok := val.(string)
			if !ok {
				return nil, &ContextError{Name: "@vocab", Reason: "must be a string"}
			}
			ctx.vocab = s
		default:
			def, err := parseTermDef(key, val, expand)
			if err != nil {
				return nil, err
			}
			ctx.terms[key] = def
		}
	}
	return ctx, nil
}

func parseTermDef(name string, val any, expand func(string) string) (termDef, error) {
	switch v := val.(type) {
	case string:
		return termDef{iri: expand(v)}, nil
	case map[string]any:
		idRaw, ok := v["@id"]
		if !ok {
			return termDef{}, &ContextError{Name: name, Reason: "structured term definition missing @id"}
		}
		id, ok := idRaw.(string)
		if !ok {
			return termDef{}, &ContextError{Name: name, Reason: "@id must be a string"}
		}
		def := termDef{iri: expand(id)}
		if typeRaw, ok := v["@type"]; ok {
			t, ok := typeRaw.(string)
			if !ok {
				return termDef{}, &ContextError{Name: name, Reason: "@type must be a string"}
			}
			if t == idTypeMarker {
				def.typeIRI = idTypeMarker
			} else {
				def.typeIRI = expand(t)
			}
		}
		if containerRaw, ok := v["@container"]; ok {
			if c, ok := containerRaw.(string); ok && c == "@set" {
				def.isSet = true
			}
		}
		return def, nil
	default:
		return termDef{}, &ContextError{Name: name, Reason: "term definition must be a string or an object"}
	}
}

// PredicateIRI resolves a term name to its predicate IRI.
func (c *Context) PredicateIRI(name string) (string, error) {
	def, ok := c.terms[name]
	if !ok {
		return "", &ContextError{Name: name, Reason: "no term definition"}
	}
	return def.iri, nil
}

// TypeIRI resolves a GraphQL type name to an IRI, trying (in order) the
// exact name, the capitalized name, and finally @vocab + name.
func (c *Context) TypeIRI(name string) (string, error) {
	if def, ok := c.terms[name]; ok {
		return def.iri, nil
	}
	if capitalized := capitalize(name); capitalized != name {
		if def, ok := c.terms[capitalized]; ok {
			return def.iri, nil
		}
	}
	if c.vocab != "" {
		return c.vocab + name, nil
	}
	return "", &ContextError{Name: name, Reason: "no type mapping and no @vocab fallback"}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ExpandIRI expands a raw relationship-value string into an absolute IRI.
//
// This reproduces the source system's documented behavior: if value is
// already absolute (http:// or https://), it is returned verbatim;
// otherwise, when @base is set, the result is base (without its trailing
// slash) + "/" + value — even when value itself looks like a CURIE (e.g.
// "ex:user1"), which is concatenated rather than resolved against the
// context's prefix table. This is a known quirk of the source system, kept
// intentionally; see DESIGN.md.
func (c *Context) ExpandIRI(value string) string {
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return value
	}
	if c.base != "" {
		return strings.TrimSuffix(c.base, "/") + "/" + value
	}
	return value
}

// IsRelationship reports whether name denotes an object-valued predicate:
// either its term definition carries @type: @id, or — as a convenience
// fallback — it matches a heuristic list of common relationship names.
func (c *Context) IsRelationship(name string) bool {
	if def, ok := c.terms[name]; ok && def.typeIRI == idTypeMarker {
		return true
	}
	return relationshipHeuristics[name]
}

// Datatype returns the explicit @type datatype IRI the context declares
// for name, if any. It never returns the "@id" relationship marker itself
// — IsRelationship is the query for that — only a genuine datatype IRI.
func (c *Context) Datatype(name string) (string, bool) {
	def, ok := c.terms[name]
	if !ok || def.typeIRI == "" || def.typeIRI == idTypeMarker {
		return "", false
	}
	return def.typeIRI, true
}

// InverseOf returns the predicate IRI of name's inverse relationship, if
// the context defines the paired term.
func (c *Context) InverseOf(name string) (string, bool) {
	inverseName, ok := inverseTable[name]
	if !ok {
		return "", false
	}
	def, ok := c.terms[inverseName]
	if !ok {
		return "", false
	}
	return def.iri, true
}
