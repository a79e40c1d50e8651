package gqlsparql

import (
	"errors"
	"fmt"

	"github.com/twinfer/gqlsparql/compile"
	"github.com/twinfer/gqlsparql/endpoint"
	"github.com/twinfer/gqlsparql/gql"
	"github.com/twinfer/gqlsparql/iri"
	"github.com/twinfer/gqlsparql/jsonld"
	"github.com/twinfer/gqlsparql/querycompile"
)

// CallError is the top-level error envelope every Client call returns on
// failure: {name, message, code, details?}. Name distinguishes query
// from mutation calls; Code is one of the stable codes enumerated below;
// Cause carries the underlying typed error for inspection via errors.As.
type CallError struct {
	Name    string // "QUERY_ERROR" or "MUTATION_ERROR"
	Message string
	Code    string
	Cause   error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Name, e.Message, e.Code)
}

func (e *CallError) Unwrap() error { return e.Cause }

// newQueryError classifies err into a QUERY_ERROR envelope, preserving
// whatever stable code the underlying typed error already carries.
func newQueryError(err error) *CallError {
	return &CallError{Name: "QUERY_ERROR", Message: err.Error(), Code: codeOf(err), Cause: err}
}

// newMutationError classifies err into a MUTATION_ERROR envelope.
func newMutationError(err error) *CallError {
	return &CallError{Name: "MUTATION_ERROR", Message: err.Error(), Code: codeOf(err), Cause: err}
}

// codeOf maps a typed error from any pipeline stage to one of the stable
// codes the error envelope's `code` field carries. An error that matches
// none of the known typed errors gets the generic EXECUTION_ERROR code
// (propagation policy: the client never swallows an error, it just can't
// always name it more precisely than "something in this call failed").
func codeOf(err error) string {
	var parseErr *gql.ParseError
	if errors.As(err, &parseErr) {
		return "CONVERSION_ERROR"
	}
	var valErr *iri.ValidationError
	if errors.As(err, &valErr) {
		return "VALIDATION_ERROR"
	}
	var ctxErr *jsonld.ContextError
	if errors.As(err, &ctxErr) {
		return "CONTEXT_ERROR"
	}
	var compileErr *compile.ValidationError
	if errors.As(err, &compileErr) {
		return compileErr.Code
	}
	var queryCompileErr *querycompile.CompileError
	if errors.As(err, &queryCompileErr) {
		return "CONVERSION_ERROR"
	}
	var failure *endpoint.Failure
	if errors.As(err, &failure) {
		return failure.Code()
	}
	return "EXECUTION_ERROR"
}
