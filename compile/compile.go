// Package compile implements the mutation compiler: it takes a parsed
// GraphQL mutation operation (see package gql) and a JSON-LD context (see
// package jsonld) and produces a SPARQL UPDATE algebra tree (see package
// algebra).
//
// The compiler never touches an endpoint and never serializes text; it
// only builds algebra. Every compiled tree is immutable and meant to be
// consumed exactly once, by package serialize.
package compile

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/twinfer/gqlsparql/algebra"
	"github.com/twinfer/gqlsparql/gql"
	"github.com/twinfer/gqlsparql/iri"
	"github.com/twinfer/gqlsparql/jsonld"
)

// Op identifies the mutation intent derived from the root field's name.
type Op int

const (
	Create Op = iota
	Update
	Delete
)

// ValidationError is returned for malformed input: empty update input,
// update attempting to touch "id", or an operation prefix the compiler
// doesn't recognize. It carries the error code the caller should
// surface.
type ValidationError struct {
	Code   string // VALIDATION_ERROR, CONVERSION_ERROR, or UNSUPPORTED_FEATURE
	Reason string
}

func (e *ValidationError) Error() string { return "compile: " + e.Reason }

// Result is the compiled algebra plus the subject IRI the operation acted
// on, which the caller typically needs to shape the mutation's response
// (e.g. `{mutate: {success: true, id: "..."}}`).
type Result struct {
	Update  algebra.CompositeUpdate
	Subject string
}

// Compile compiles a single parsed mutation operation against ctx. It is
// the entry point for the whole C4 state machine described in the
// specification this package implements:
// Parsed -> OperationIdentified -> InputValidated -> AlgebraBuilt.
// "Serialized" is package serialize's job, not this one's.
//
// Inverse links are maintained on create only. A create inserts the
// inverse triple for every relationship field whose term has a known
// InverseOf; an update neither removes the inverse triple pointing from a
// relationship field's old value nor inserts one for its new value; a
// delete removes only triples whose subject is the deleted entity, so
// inverse triples pointing at it stay in the store.
func Compile(op *gql.Operation, ctx *jsonld.Context) (*Result, error) {
	if op.Kind != gql.Mutation {
		return nil, &ValidationError{Code: "CONVERSION_ERROR", Reason: "Compile requires a mutation operation"}
	}
	if op.HasVariables {
		return nil, &ValidationError{Code: "UNSUPPORTED_FEATURE", Reason: "mutation variable substitution is unsupported"}
	}

	kind, entity, err := identify(op.RootField.Name)
	if err != nil {
		return nil, err
	}

	switch kind {
	case Create:
		return compileCreate(entity, op.RootField.Arguments, ctx)
	case Update:
		return compileUpdate(entity, op.RootField.Arguments, ctx)
	case Delete:
		return compileDelete(entity, op.RootField.Arguments, ctx)
	default:
		return nil, &ValidationError{Code: "CONVERSION_ERROR", Reason: "unreachable operation kind"}
	}
}

// identify derives the operation kind and entity name from a mutation
// root field name following the <verb><Entity> convention: create, update,
// delete.
func identify(fieldName string) (Op, string, error) {
	switch {
	case strings.HasPrefix(fieldName, "create"):
		entity := strings.TrimPrefix(fieldName, "create")
		if entity == "" {
			return 0, "", &ValidationError{Code: "CONVERSION_ERROR", Reason: "createX mutation has no entity name"}
		}
		return Create, entity, nil
	case strings.HasPrefix(fieldName, "update"):
		entity := strings.TrimPrefix(fieldName, "update")
		if entity == "" {
			return 0, "", &ValidationError{Code: "CONVERSION_ERROR", Reason: "updateX mutation has no entity name"}
		}
		return Update, entity, nil
	case strings.HasPrefix(fieldName, "delete"):
		entity := strings.TrimPrefix(fieldName, "delete")
		if entity == "" {
			return 0, "", &ValidationError{Code: "CONVERSION_ERROR", Reason: "deleteX mutation has no entity name"}
		}
		return Delete, entity, nil
	default:
		return 0, "", &ValidationError{Code: "CONVERSION_ERROR", Reason: fmt.Sprintf("root field %q does not follow the create/update/delete naming convention", fieldName)}
	}
}

func requireStringArg(args map[string]any, name string) (string, error) {
	raw, ok := args[name]
	if !ok {
		return "", &ValidationError{Code: "VALIDATION_ERROR", Reason: fmt.Sprintf("argument %q is required", name)}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Code: "VALIDATION_ERROR", Reason: fmt.Sprintf("argument %q must be a string", name)}
	}
	return s, nil
}

func requireInputObject(args map[string]any) (map[string]any, error) {
	raw, ok := args["input"]
	if !ok {
		return nil, &ValidationError{Code: "VALIDATION_ERROR", Reason: `argument "input" is required`}
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, &ValidationError{Code: "VALIDATION_ERROR", Reason: `argument "input" must be an object`}
	}
	if err := iri.ValidateMutationInput(obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// compileCreate implements create semantics: subject selection
// (explicit id or a minted urn:uuid:<v4>), the mandatory rdf:type triple,
// and per-field relationship-or-literal emission with inverse-link
// materialization.
func compileCreate(entity string, args map[string]any, ctx *jsonld.Context) (*Result, error) {
	input, err := requireInputObject(args)
	if err != nil {
		return nil, err
	}

	typeIRI, err := ctx.TypeIRI(entity)
	if err != nil {
		return nil, err
	}

	subject, err := createSubject(input, ctx)
	if err != nil {
		return nil, err
	}
	subjectTerm := algebra.NamedNode{IRI: subject}

	patterns := []algebra.Pattern{
		{Subject: subjectTerm, Predicate: algebra.NamedNode{IRI: algebra.RDFType}, Object: algebra.NamedNode{IRI: typeIRI}},
	}

	for field, value := range input {
		if field == "id" {
			continue
		}
		ps, err := createFieldPatterns(subjectTerm, field, value, ctx)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, ps...)
	}

	update := algebra.CompositeUpdate{
		Updates: []algebra.DeleteInsert{
			{Insert: patterns},
		},
	}
	return &Result{Update: update, Subject: subject}, nil
}

// createSubject resolves the create subject: an explicit validated
// input.id (expanded against @base), or else a freshly minted
// urn:uuid:<v4> skolemized IRI. Blank nodes are never used — see
// DESIGN.md's "skolemization over blank nodes" decision.
func createSubject(input map[string]any, ctx *jsonld.Context) (string, error) {
	raw, ok := input["id"]
	if !ok {
		return mintSubject()
	}
	s, ok := raw.(string)
	if !ok {
		return "", &ValidationError{Code: "VALIDATION_ERROR", Reason: "input.id must be a string"}
	}
	expanded := ctx.ExpandIRI(s)
	if err := iri.ValidIRI(expanded); err != nil {
		return "", err
	}
	return expanded, nil
}

func mintSubject() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("compile: minting subject uuid: %w", err)
	}
	return "urn:uuid:" + id.String(), nil
}

// relationshipName strips a trailing "Id" suffix from field, following the
// "<name>Id" reserved-key convention, and reports whether it applied.
func relationshipName(field string) (string, bool) {
	if strings.HasSuffix(field, "Id") && len(field) > len("Id") {
		return strings.TrimSuffix(field, "Id"), true
	}
	return field, false
}

// createFieldPatterns emits the triple pattern(s) for one non-id create
// input field: a relationship predicate (plus its inverse, if the context
// declares one) when the field is <name>Id or a declared relationship with
// a string value, otherwise a typed literal.
func createFieldPatterns(subject algebra.Term, field string, value any, ctx *jsonld.Context) ([]algebra.Pattern, error) {
	stripped, hasIDSuffix := relationshipName(field)
	str, isString := value.(string)

	if (hasIDSuffix || ctx.IsRelationship(field)) && isString {
		relName := stripped
		if !hasIDSuffix {
			relName = field
		}
		predIRI, err := ctx.PredicateIRI(relName)
		if err != nil {
			return nil, err
		}
		objectIRI := ctx.ExpandIRI(str)
		if err := iri.ValidIRI(objectIRI); err != nil {
			return nil, err
		}
		objectTerm := algebra.NamedNode{IRI: objectIRI}

		patterns := []algebra.Pattern{
			{Subject: subject, Predicate: algebra.NamedNode{IRI: predIRI}, Object: objectTerm},
		}
		if inverseIRI, ok := ctx.InverseOf(relName); ok {
			patterns = append(patterns, algebra.Pattern{
				Subject:   objectTerm,
				Predicate: algebra.NamedNode{IRI: inverseIRI},
				Object:    subject,
			})
		}
		return patterns, nil
	}

	predIRI, err := ctx.PredicateIRI(field)
	if err != nil {
		return nil, err
	}
	lit, err := literalFor(field, value, ctx)
	if err != nil {
		return nil, err
	}
	return []algebra.Pattern{
		{Subject: subject, Predicate: algebra.NamedNode{IRI: predIRI}, Object: lit},
	}, nil
}

// literalFor maps a GraphQL value kind to a typed algebra.Literal: an
// explicit context @type wins over the value-kind inference.
func literalFor(field string, value any, ctx *jsonld.Context) (algebra.Literal, error) {
	datatype := contextDatatype(field, ctx)
	switch v := value.(type) {
	case string:
		if datatype == "" {
			datatype = algebra.XSDString
		}
		return algebra.Literal{Lexical: v, Datatype: datatype}, nil
	case int64:
		if datatype == "" {
			datatype = algebra.XSDInteger
		}
		return algebra.Literal{Lexical: fmt.Sprintf("%d", v), Datatype: datatype}, nil
	case float64:
		if datatype == "" {
			datatype = algebra.XSDDouble
		}
		return algebra.Literal{Lexical: formatFloat(v), Datatype: datatype}, nil
	case bool:
		if datatype == "" {
			datatype = algebra.XSDBoolean
		}
		return algebra.Literal{Lexical: fmt.Sprintf("%t", v), Datatype: datatype}, nil
	case nil:
		return algebra.Literal{}, &ValidationError{Code: "CONVERSION_ERROR", Reason: fmt.Sprintf("field %q: null literal values are not supported", field)}
	default:
		return algebra.Literal{}, &ValidationError{Code: "CONVERSION_ERROR", Reason: fmt.Sprintf("field %q: unsupported GraphQL value kind %T", field, v)}
	}
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// contextDatatype looks up an explicit @type datatype IRI for field, if
// the context declares one and it isn't the @id relationship marker.
func contextDatatype(field string, ctx *jsonld.Context) string {
	dt, ok := ctx.Datatype(field)
	if !ok {
		return ""
	}
	return dt
}

// compileUpdate implements update semantics: one DELETE/INSERT WHERE per
// compilation, rebinding every existing value of each touched predicate
// via a fresh ?old_<field> variable.
func compileUpdate(entity string, args map[string]any, ctx *jsonld.Context) (*Result, error) {
	idArg, err := requireStringArg(args, "id")
	if err != nil {
		return nil, err
	}
	input, err := requireInputObject(args)
	if err != nil {
		return nil, err
	}
	if len(input) == 0 {
		return nil, &ValidationError{Code: "VALIDATION_ERROR", Reason: "Update operation has no fields"}
	}
	if _, ok := input["id"]; ok {
		return nil, &ValidationError{Code: "CONVERSION_ERROR", Reason: "update input must not contain \"id\""}
	}

	subject := ctx.ExpandIRI(idArg)
	if err := iri.ValidIRI(subject); err != nil {
		return nil, err
	}
	subjectTerm := algebra.NamedNode{IRI: subject}

	var deletePatterns, insertPatterns, wherePatterns []algebra.Pattern
	for field, value := range input {
		predIRI, err := ctx.PredicateIRI(field)
		if err != nil {
			return nil, err
		}
		predTerm := algebra.NamedNode{IRI: predIRI}
		oldVar := algebra.Variable{Name: "old_" + field}

		deletePatterns = append(deletePatterns, algebra.Pattern{Subject: subjectTerm, Predicate: predTerm, Object: oldVar})
		wherePatterns = append(wherePatterns, algebra.Pattern{Subject: subjectTerm, Predicate: predTerm, Object: oldVar})

		newObject, err := updateObjectTerm(field, value, ctx)
		if err != nil {
			return nil, err
		}
		insertPatterns = append(insertPatterns, algebra.Pattern{Subject: subjectTerm, Predicate: predTerm, Object: newObject})
	}

	update := algebra.CompositeUpdate{
		Updates: []algebra.DeleteInsert{
			{
				Delete: deletePatterns,
				Insert: insertPatterns,
				Where:  &algebra.BGP{Patterns: wherePatterns},
			},
		},
	}
	return &Result{Update: update, Subject: subject}, nil
}

// updateObjectTerm resolves the new object term for one update field.
// Relationship updates follow the same literal-vs-IRI split as create does,
// but never touch inverse links — the asymmetry is intentional, see
// DESIGN.md.
func updateObjectTerm(field string, value any, ctx *jsonld.Context) (algebra.Term, error) {
	stripped, hasIDSuffix := relationshipName(field)
	str, isString := value.(string)
	if (hasIDSuffix || ctx.IsRelationship(field)) && isString {
		_ = stripped
		objectIRI := ctx.ExpandIRI(str)
		if err := iri.ValidIRI(objectIRI); err != nil {
			return nil, err
		}
		return algebra.NamedNode{IRI: objectIRI}, nil
	}
	return literalFor(field, value, ctx)
}

// compileDelete removes every triple with the given subject, and only
// those triples — inverse links pointing at the subject are left
// dangling, per the open question recorded in DESIGN.md.
func compileDelete(entity string, args map[string]any, ctx *jsonld.Context) (*Result, error) {
	idArg, err := requireStringArg(args, "id")
	if err != nil {
		return nil, err
	}
	subject := ctx.ExpandIRI(idArg)
	if err := iri.ValidIRI(subject); err != nil {
		return nil, err
	}
	subjectTerm := algebra.NamedNode{IRI: subject}
	pVar := algebra.Variable{Name: "p_del"}
	oVar := algebra.Variable{Name: "o_del"}
	pattern := algebra.Pattern{Subject: subjectTerm, Predicate: pVar, Object: oVar}

	update := algebra.CompositeUpdate{
		Updates: []algebra.DeleteInsert{
			{
				Delete: []algebra.Pattern{pattern},
				Where:  &algebra.BGP{Patterns: []algebra.Pattern{pattern}},
			},
		},
	}
	return &Result{Update: update, Subject: subject}, nil
}
