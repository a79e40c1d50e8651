// Package querycompile consumes a parsed GraphQL query operation and a
// JSON-LD context and produces a SPARQL SELECT algebra tree plus a
// singularize map. The query compiler is meant to be swappable; this
// package ships one concrete, minimal implementation good enough to
// exercise the serializer, endpoint driver, and result shaper end to
// end.
//
// BasicCompiler handles two query shapes: a "byId"-style root field
// (singular result, e.g. userById(id: "...")) and a flat "all"-style root
// field (list result, e.g. allUsers { ... }). It does not attempt nested
// joins, filters, or pagination — a fuller query compiler is a separate
// concern from the mutation compiler at this module's core.
package querycompile

import (
	"fmt"
	"strings"

	"github.com/twinfer/gqlsparql/algebra"
	"github.com/twinfer/gqlsparql/gql"
	"github.com/twinfer/gqlsparql/jsonld"
)

// Compiled is the result of compiling a query: the SELECT algebra plus a
// singularize map (variable name -> true if the shaped result should
// collapse to a scalar rather than a list).
type Compiled struct {
	Project     algebra.Project
	Singularize map[string]bool
}

// CompileError reports a query the compiler can't handle. Cause, when set,
// lets errors.As reach the original typed error (e.g. a jsonld.ContextError
// for an unmapped field name) through this wrapper.
type CompileError struct {
	Reason string
	Cause  error
}

func (e *CompileError) Error() string { return "querycompile: " + e.Reason }

func (e *CompileError) Unwrap() error { return e.Cause }

// idArgNames are the root-field argument names BasicCompiler recognizes as
// "this query identifies a single entity directly" — the
// `*ById`/`*BySubject` convention.
var idArgNames = []string{"id", "subject"}

// BasicCompiler is the reference query compiler implementation.
type BasicCompiler struct{}

// Compile compiles a single root query field whose selection set is a
// flat list of scalar and relationship field names.
func (BasicCompiler) Compile(op *gql.Operation, ctx *jsonld.Context) (*Compiled, error) {
	if op.Kind != gql.Query {
		return nil, &CompileError{Reason: "BasicCompiler only compiles query operations"}
	}
	if op.HasVariables {
		return nil, &CompileError{Reason: "query variable substitution is not supported by BasicCompiler"}
	}
	root := op.RootField
	if len(root.SelectionSet) == 0 {
		return nil, &CompileError{Reason: fmt.Sprintf("query field %q selects no fields", root.Name)}
	}

	entity, singular := entityAndArity(root.Name)

	var subject algebra.Term
	var patterns []algebra.Pattern
	vars := []string{}
	singularize := map[string]bool{}

	if idValue, ok := singularIDArgument(root.Arguments); ok {
		subject = algebra.NamedNode{IRI: ctx.ExpandIRI(idValue)}
	} else {
		subjectVar := algebra.Variable{Name: "subject"}
		subject = subjectVar
		vars = append(vars, subjectVar.Name)
		singularize[subjectVar.Name] = singular
		if typeIRI, err := ctx.TypeIRI(entity); err == nil {
			patterns = append(patterns, algebra.Pattern{
				Subject: subject, Predicate: algebra.NamedNode{IRI: algebra.RDFType}, Object: algebra.NamedNode{IRI: typeIRI},
			})
		}
	}

	for _, field := range root.SelectionSet {
		if field.Name == "id" {
			continue
		}
		predIRI, err := ctx.PredicateIRI(field.Name)
		if err != nil {
			return nil, &CompileError{Reason: err.Error(), Cause: err}
		}
		v := algebra.Variable{Name: field.Name}
		patterns = append(patterns, algebra.Pattern{Subject: subject, Predicate: algebra.NamedNode{IRI: predIRI}, Object: v})
		vars = append(vars, field.Name)
		singularize[field.Name] = singular && !ctx.IsRelationship(field.Name)
	}

	return &Compiled{
		Project:     algebra.Project{Vars: vars, Where: &algebra.BGP{Patterns: patterns}},
		Singularize: singularize,
	}, nil
}

// singularIDArgument reports whether root carries an id-like argument,
// which marks this as a singular ("byId"-style) query whose subject is
// already known rather than projected as a variable.
func singularIDArgument(args map[string]any) (string, bool) {
	for _, name := range idArgNames {
		if s, ok := args[name].(string); ok {
			return s, true
		}
	}
	return "", false
}

// entityAndArity derives the queried entity type name and whether the
// query is singular from the root field name, by convention: an
// "all"-prefixed field is a list query over the pluralized type name;
// anything else (typically carrying an id-like argument) is singular.
func entityAndArity(fieldName string) (entity string, singular bool) {
	if strings.HasPrefix(fieldName, "all") {
		return singularizeTypeName(strings.TrimPrefix(fieldName, "all")), false
	}
	if idx := strings.Index(fieldName, "By"); idx > 0 {
		return capitalize(fieldName[:idx]), true
	}
	return capitalize(fieldName), true
}

func singularizeTypeName(plural string) string {
	if strings.HasSuffix(plural, "ies") {
		return plural[:len(plural)-3] + "y"
	}
	if strings.HasSuffix(plural, "s") {
		return plural[:len(plural)-1]
	}
	return plural
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
