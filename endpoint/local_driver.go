package endpoint

import (
	"context"
	"fmt"

	"github.com/twinfer/gqlsparql/algebra"
	"github.com/twinfer/gqlsparql/factstore"
)

// AlgebraDriver is satisfied by drivers that can execute an algebra tree
// directly, bypassing textual serialization entirely. LocalDriver is the
// only one; HTTPDriver relies on package serialize and the SPARQL wire
// formats instead. A Client checks for this interface and prefers it
// when present, since it avoids a pointless serialize/parse round trip
// against an in-process store.
type AlgebraDriver interface {
	ExecuteUpdate(ctx context.Context, update algebra.CompositeUpdate) (*UpdateResult, error)
	ExecuteQuery(ctx context.Context, proj algebra.Project) (*Result, error)
}

// LocalDriver executes algebra directly against an in-process
// factstore.Store, with no network SPARQL endpoint involved. It exists so
// the compiler pipeline and the demo CLI can run end to end against an
// embedded SQLite- or Postgres-backed triple store, and so tests can
// assert on stored triples without mocking HTTP.
//
// LocalDriver also implements Driver (Query/Update taking serialized
// SPARQL text) so it can be handed to callers that only take a Driver,
// but it carries no SPARQL parser: both methods return a FailureTransport
// error, and execution goes through ExecuteQuery/ExecuteUpdate — see
// DESIGN.md's note on why LocalDriver does not carry a SPARQL parser.
type LocalDriver struct {
	Store *factstore.Store
}

var _ AlgebraDriver = (*LocalDriver)(nil)
var _ Driver = (*LocalDriver)(nil)

// Query always fails: LocalDriver does not parse SPARQL text.
func (d *LocalDriver) Query(ctx context.Context, sparql string, opts Options) (*Result, error) {
	return nil, &Failure{Kind: FailureTransport, Detail: "LocalDriver executes algebra only; use ExecuteQuery"}
}

// Update always fails: LocalDriver does not parse SPARQL text.
func (d *LocalDriver) Update(ctx context.Context, sparql string, opts Options) (*UpdateResult, error) {
	return nil, &Failure{Kind: FailureTransport, Detail: "LocalDriver executes algebra only; use ExecuteUpdate"}
}

// ExecuteUpdate applies every DeleteInsert statement in update to the
// store in order: for DELETE clauses, every WHERE-bound pattern matching
// the store is removed; for INSERT clauses (including pure INSERT DATA),
// every pattern is added.
func (d *LocalDriver) ExecuteUpdate(ctx context.Context, update algebra.CompositeUpdate) (*UpdateResult, error) {
	for _, stmt := range update.Updates {
		if err := ctx.Err(); err != nil {
			return nil, &Failure{Kind: FailureTimeout, Detail: err.Error(), Cause: err}
		}
		if err := d.applyStatement(stmt); err != nil {
			return nil, &Failure{Kind: FailureTransport, Detail: err.Error(), Cause: err}
		}
	}
	return &UpdateResult{Success: true}, nil
}

func (d *LocalDriver) applyStatement(stmt algebra.DeleteInsert) error {
	if len(stmt.Delete) > 0 {
		bound, err := d.resolveDeletions(stmt)
		if err != nil {
			return err
		}
		for _, t := range bound {
			if err := d.Store.RemoveTriple(t); err != nil {
				return err
			}
		}
	}
	for _, p := range stmt.Insert {
		t, err := patternToGroundTriple(p)
		if err != nil {
			return err
		}
		if err := d.Store.AddTriple(t); err != nil {
			return err
		}
	}
	return nil
}

// resolveDeletions evaluates stmt.Where against the store (this reference
// driver only supports the single-subject, fixed-subject WHERE shapes the
// mutation compiler actually emits: `<s> ?p ?o` for delete-breadth and
// `<s> <p> ?old` per field for update) and returns the ground triples the
// Delete clause's variables resolve to.
func (d *LocalDriver) resolveDeletions(stmt algebra.DeleteInsert) ([]factstore.Triple, error) {
	if stmt.Where == nil {
		return nil, fmt.Errorf("endpoint: DELETE without WHERE is not supported by LocalDriver")
	}
	var out []factstore.Triple
	for _, wp := range stmt.Where.Patterns {
		subj, ok := wp.Subject.(algebra.NamedNode)
		if !ok {
			return nil, fmt.Errorf("endpoint: LocalDriver requires a fixed-IRI subject in WHERE, got %v", wp.Subject)
		}
		if _, isVar := wp.Predicate.(algebra.Variable); isVar {
			matches, err := d.Store.MatchSubject(subj.IRI)
			if err != nil {
				return nil, err
			}
			out = append(out, matches...)
			continue
		}
		predNode, ok := wp.Predicate.(algebra.NamedNode)
		if !ok {
			return nil, fmt.Errorf("endpoint: unsupported WHERE predicate term %v", wp.Predicate)
		}
		matches, err := d.Store.MatchSubjectPredicate(subj.IRI, predNode.IRI)
		if err != nil {
			return nil, err
		}
		out = append(out, matches...)
	}
	return out, nil
}

// patternToGroundTriple converts an algebra.Pattern into a factstore.Triple.
// Mutation INSERT clauses are always fully ground by construction (see
// package compile), so this never needs to resolve a variable binding.
func patternToGroundTriple(p algebra.Pattern) (factstore.Triple, error) {
	subj, err := groundIRI(p.Subject)
	if err != nil {
		return factstore.Triple{}, fmt.Errorf("subject: %w", err)
	}
	pred, err := groundIRI(p.Predicate)
	if err != nil {
		return factstore.Triple{}, fmt.Errorf("predicate: %w", err)
	}
	switch obj := p.Object.(type) {
	case algebra.NamedNode:
		return factstore.Triple{Subject: subj, Predicate: pred, ObjectIRI: obj.IRI}, nil
	case algebra.Literal:
		return factstore.Triple{Subject: subj, Predicate: pred, Literal: obj.Lexical, Datatype: obj.Datatype}, nil
	default:
		return factstore.Triple{}, fmt.Errorf("object term %v is not ground", p.Object)
	}
}

func groundIRI(t algebra.Term) (string, error) {
	nn, ok := t.(algebra.NamedNode)
	if !ok {
		return "", fmt.Errorf("expected a ground IRI, got %v", t)
	}
	return nn.IRI, nil
}

// ExecuteQuery evaluates proj against the store. Like resolveDeletions,
// this reference implementation only supports the single fixed-or-variable
// -subject BGP shapes querycompile.BasicCompiler actually emits: every
// pattern in proj.Where shares either the same subject variable or the
// same fixed subject IRI.
func (d *LocalDriver) ExecuteQuery(ctx context.Context, proj algebra.Project) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Failure{Kind: FailureTimeout, Detail: err.Error(), Cause: err}
	}
	if proj.Where == nil || len(proj.Where.Patterns) == 0 {
		return &Result{Vars: proj.Vars}, nil
	}

	subjects, fixedSubject, err := d.candidateSubjects(proj.Where.Patterns[0])
	if err != nil {
		return nil, &Failure{Kind: FailureTransport, Detail: err.Error(), Cause: err}
	}

	var rows []map[string]Binding
	for _, subjIRI := range subjects {
		triples, err := d.Store.MatchSubject(subjIRI)
		if err != nil {
			return nil, &Failure{Kind: FailureTransport, Detail: err.Error(), Cause: err}
		}
		row, ok := bindRow(proj, fixedSubject, subjIRI, triples)
		if ok {
			rows = append(rows, row)
		}
	}
	return &Result{Vars: proj.Vars, Bindings: rows}, nil
}

// candidateSubjects derives the set of subjects a list query should
// consider from its first WHERE pattern. When that pattern has a fixed
// subject (a byId-style query), there is exactly one candidate. Otherwise
// the pattern is expected to be the entity's rdf:type constraint (as
// querycompile.BasicCompiler always emits first for list queries); matches
// are filtered to that fixed type object.
func (d *LocalDriver) candidateSubjects(first algebra.Pattern) ([]string, bool, error) {
	if nn, ok := first.Subject.(algebra.NamedNode); ok {
		return []string{nn.IRI}, true, nil
	}
	predNode, ok := first.Predicate.(algebra.NamedNode)
	if !ok {
		return nil, false, fmt.Errorf("endpoint: LocalDriver requires a fixed predicate in the first WHERE pattern, got %v", first.Predicate)
	}
	wantType, typeFixed := first.Object.(algebra.NamedNode)

	triples, err := d.Store.MatchPredicate(predNode.IRI)
	if err != nil {
		return nil, false, err
	}
	var subjects []string
	seen := make(map[string]bool)
	for _, t := range triples {
		if typeFixed && t.ObjectIRI != wantType.IRI {
			continue
		}
		if !seen[t.Subject] {
			seen[t.Subject] = true
			subjects = append(subjects, t.Subject)
		}
	}
	return subjects, false, nil
}

func bindRow(proj algebra.Project, fixedSubject bool, subjIRI string, triples []factstore.Triple) (map[string]Binding, bool) {
	byPred := make(map[string][]factstore.Triple)
	for _, t := range triples {
		byPred[t.Predicate] = append(byPred[t.Predicate], t)
	}
	row := make(map[string]Binding)
	for _, v := range proj.Vars {
		if v == "subject" && !fixedSubject {
			row[v] = Binding{Type: "uri", Value: subjIRI}
			continue
		}
	}
	for _, p := range proj.Where.Patterns {
		predNode, ok := p.Predicate.(algebra.NamedNode)
		if !ok || predNode.IRI == algebra.RDFType {
			continue
		}
		vName, ok := objectVarName(p.Object)
		if !ok {
			continue
		}
		matches := byPred[predNode.IRI]
		if len(matches) == 0 {
			return nil, false
		}
		row[vName] = tripleToBinding(matches[0])
	}
	return row, true
}

func objectVarName(t algebra.Term) (string, bool) {
	v, ok := t.(algebra.Variable)
	if !ok {
		return "", false
	}
	return v.Name, true
}

func tripleToBinding(t factstore.Triple) Binding {
	if t.IsLiteral() {
		return Binding{Type: "literal", Value: t.Literal, Datatype: t.Datatype}
	}
	return Binding{Type: "uri", Value: t.ObjectIRI}
}
