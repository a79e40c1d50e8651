// Package gql parses GraphQL operation text and extracts the pieces the
// compilers need: operation kind, the root field's name and arguments, and
// (for queries) the root field's selection set. It performs no schema
// validation — this system has no GraphQL schema of its own; the JSON-LD
// context plays that role.
package gql

import (
	"fmt"
	"strconv"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
)

// Kind identifies the GraphQL operation type.
type Kind int

const (
	Query Kind = iota
	Mutation
	Subscription
)

func (k Kind) String() string {
	switch k {
	case Query:
		return "query"
	case Mutation:
		return "mutation"
	case Subscription:
		return "subscription"
	default:
		return "unknown"
	}
}

// Field is a GraphQL selection field with its arguments and (decoded)
// sub-selections, detached from gqlparser's AST types so the rest of this
// system doesn't need to import gqlparser.
type Field struct {
	Name         string
	Alias        string
	Arguments    map[string]any
	SelectionSet []*Field
}

// VariableRef is the native value substituted for a GraphQL variable
// reference (e.g. $name) encountered while walking argument values. Its
// presence in an argument tree is always accompanied by
// Operation.HasVariables == true.
type VariableRef string

// Operation is a single parsed GraphQL operation.
type Operation struct {
	Kind         Kind
	RootField    *Field
	HasVariables bool
}

// ParseError wraps a GraphQL syntax or structural error.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string { return "gql: " + e.Reason }

// Parse parses query text and returns its single operation. A document
// with other than exactly one operation, or whose operation has zero
// selections on the root, is rejected with a ParseError. An operation with
// variable definitions is still returned, with Operation.HasVariables set;
// it is the caller's responsibility to reject that shape (the mutation
// compiler fails fast on HasVariables per its contract).
func Parse(query string) (*Operation, error) {
	doc, gqlErr := parser.ParseQuery(&ast.Source{Input: query})
	if gqlErr != nil {
		return nil, &ParseError{Reason: gqlErr.Error()}
	}
	if len(doc.Operations) != 1 {
		return nil, &ParseError{Reason: fmt.Sprintf("expected exactly one operation, got %d", len(doc.Operations))}
	}
	op := doc.Operations[0]
	if len(op.SelectionSet) == 0 {
		return nil, &ParseError{Reason: "operation has no root field"}
	}
	rootSelection, ok := op.SelectionSet[0].(*ast.Field)
	if !ok {
		return nil, &ParseError{Reason: "root selection is not a field"}
	}

	root, err := convertField(rootSelection)
	if err != nil {
		return nil, err
	}

	var kind Kind
	switch op.Operation {
	case ast.Query:
		kind = Query
	case ast.Mutation:
		kind = Mutation
	case ast.Subscription:
		kind = Subscription
	default:
		return nil, &ParseError{Reason: fmt.Sprintf("unknown operation kind %v", op.Operation)}
	}

	return &Operation{
		Kind:         kind,
		RootField:    root,
		HasVariables: len(op.VariableDefinitions) > 0,
	}, nil
}

func convertField(f *ast.Field) (*Field, error) {
	args := make(map[string]any, len(f.Arguments))
	for _, arg := range f.Arguments {
		val, err := valueToNative(arg.Value)
		if err != nil {
			return nil, fmt.Errorf("gql: argument %q: %w", arg.Name, err)
		}
		args[arg.Name] = val
	}

	var children []*Field
	for _, sel := range f.SelectionSet {
		childField, ok := sel.(*ast.Field)
		if !ok {
			// Fragments are out of scope; skip rather than fail, since the
			// selection set only affects shaping, never compilation.
			continue
		}
		child, err := convertField(childField)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	return &Field{
		Name:         f.Name,
		Alias:        f.Alias,
		Arguments:    args,
		SelectionSet: children,
	}, nil
}

// valueToNative converts a gqlparser AST value into a native Go value:
// string, int64, float64, bool, nil, []any, or map[string]any. A GraphQL
// variable reference is passed through as a VariableRef rather than
// substituted — this package never rejects variables outright; it only
// surfaces their presence via Operation.HasVariables. It is the caller's
// job to reject unsupported uses (the mutation compiler fails fast on
// HasVariables per its contract, before it ever inspects argument values).
func valueToNative(v *ast.Value) (any, error) {
	switch v.Kind {
	case ast.Variable:
		return VariableRef(v.Raw), nil
	case ast.IntValue:
		return parseInt(v.Raw)
	case ast.FloatValue:
		return parseFloat(v.Raw)
	case ast.StringValue, ast.BlockValue, ast.EnumValue:
		return v.Raw, nil
	case ast.BooleanValue:
		return v.Raw == "true", nil
	case ast.NullValue:
		return nil, nil
	case ast.ListValue:
		items := make([]any, 0, len(v.Children))
		for _, child := range v.Children {
			item, err := valueToNative(child.Value)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	case ast.ObjectValue:
		obj := make(map[string]any, len(v.Children))
		for _, child := range v.Children {
			val, err := valueToNative(child.Value)
			if err != nil {
				return nil, err
			}
			obj[child.Name] = val
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported GraphQL value kind %v", v.Kind)
	}
}

func parseInt(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed integer literal %q", raw)
	}
	return n, nil
}

func parseFloat(raw string) (float64, error) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed float literal %q", raw)
	}
	return f, nil
}
