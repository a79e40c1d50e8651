// Package shape implements the result shaper (C8): it turns a SPARQL JSON
// Results document (package endpoint's Result) into a GraphQL-shaped tree,
// collapsing singular-marked variables to scalars and materializing RDF
// terms into native Go values.
package shape

import (
	"strconv"

	"github.com/twinfer/gqlsparql/endpoint"
)

// xsd datatype IRIs this package knows how to coerce into native values.
const (
	xsdInteger = "http://www.w3.org/2001/XMLSchema#integer"
	xsdDecimal = "http://www.w3.org/2001/XMLSchema#decimal"
	xsdDouble  = "http://www.w3.org/2001/XMLSchema#double"
	xsdBoolean = "http://www.w3.org/2001/XMLSchema#boolean"
)

// RawLiteral is how Shape materializes a literal whose datatype it does not
// recognize: the lexical form kept alongside its datatype. A named node
// materializes as a bare string and a literal of a recognized datatype as
// a coerced native value.
type RawLiteral struct {
	Lexical  string
	Datatype string
}

// Shape converts result's bindings into a tree keyed by each projected
// variable. singularize marks which variables should collapse to a single
// value (the first binding's) rather than surface as a list preserving
// binding order — per P11.
func Shape(result *endpoint.Result, singularize map[string]bool) map[string]any {
	out := make(map[string]any, len(result.Vars))
	for _, v := range result.Vars {
		values := valuesFor(result.Bindings, v)
		if singularize[v] {
			if len(values) == 0 {
				out[v] = nil
			} else {
				out[v] = values[0]
			}
			continue
		}
		out[v] = values
	}
	return out
}

func valuesFor(bindings []map[string]endpoint.Binding, varName string) []any {
	values := make([]any, 0, len(bindings))
	for _, row := range bindings {
		b, ok := row[varName]
		if !ok {
			continue
		}
		values = append(values, materialize(b))
	}
	return values
}

// materialize converts one SPARQL JSON binding value into its Go
// representation: named nodes become IRI strings, literals are coerced
// from recognized xsd datatypes into native int64/float64/bool, and
// anything else is kept as a RawLiteral carrying its lexical form and
// datatype.
func materialize(b endpoint.Binding) any {
	if b.Type == "uri" {
		return b.Value
	}
	// literal (or typed-literal)
	switch b.Datatype {
	case xsdInteger:
		if n, err := strconv.ParseInt(b.Value, 10, 64); err == nil {
			return n
		}
	case xsdDecimal, xsdDouble:
		if f, err := strconv.ParseFloat(b.Value, 64); err == nil {
			return f
		}
	case xsdBoolean:
		if v, err := strconv.ParseBool(b.Value); err == nil {
			return v
		}
	case "", "http://www.w3.org/2001/XMLSchema#string":
		return b.Value
	}
	return RawLiteral{Lexical: b.Value, Datatype: b.Datatype}
}
