package endpoint

import (
	"context"
	"testing"

	"github.com/twinfer/gqlsparql/algebra"
	"github.com/twinfer/gqlsparql/factstore"
)

func newTestDriver(t *testing.T) *LocalDriver {
	t.Helper()
	db, err := factstore.NewFactStoreSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewFactStoreSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &LocalDriver{Store: factstore.NewStore(db)}
}

func TestLocalDriverExecutesInsertData(t *testing.T) {
	d := newTestDriver(t)
	subj := algebra.NamedNode{IRI: "http://example.org/user1"}
	update := algebra.CompositeUpdate{Updates: []algebra.DeleteInsert{{
		Insert: []algebra.Pattern{
			{Subject: subj, Predicate: algebra.NamedNode{IRI: algebra.RDFType}, Object: algebra.NamedNode{IRI: "http://example.org/User"}},
			{Subject: subj, Predicate: algebra.NamedNode{IRI: "http://xmlns.com/foaf/0.1/name"}, Object: algebra.Literal{Lexical: "Alice", Datatype: algebra.XSDString}},
		},
	}}}
	res, err := d.ExecuteUpdate(context.Background(), update)
	if err != nil {
		t.Fatalf("ExecuteUpdate: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success")
	}
	triples, err := d.Store.MatchSubject("http://example.org/user1")
	if err != nil {
		t.Fatalf("MatchSubject: %v", err)
	}
	if len(triples) != 2 {
		t.Fatalf("got %d triples, want 2", len(triples))
	}
}

func TestLocalDriverExecutesDeleteInsertWhere(t *testing.T) {
	d := newTestDriver(t)
	subj := algebra.NamedNode{IRI: "http://example.org/user1"}
	namePred := algebra.NamedNode{IRI: "http://xmlns.com/foaf/0.1/name"}

	seed := algebra.CompositeUpdate{Updates: []algebra.DeleteInsert{{
		Insert: []algebra.Pattern{{Subject: subj, Predicate: namePred, Object: algebra.Literal{Lexical: "Alice", Datatype: algebra.XSDString}}},
	}}}
	if _, err := d.ExecuteUpdate(context.Background(), seed); err != nil {
		t.Fatalf("seed ExecuteUpdate: %v", err)
	}

	oldVar := algebra.Variable{Name: "old_name"}
	update := algebra.CompositeUpdate{Updates: []algebra.DeleteInsert{{
		Delete: []algebra.Pattern{{Subject: subj, Predicate: namePred, Object: oldVar}},
		Insert: []algebra.Pattern{{Subject: subj, Predicate: namePred, Object: algebra.Literal{Lexical: "Alicia", Datatype: algebra.XSDString}}},
		Where:  &algebra.BGP{Patterns: []algebra.Pattern{{Subject: subj, Predicate: namePred, Object: oldVar}}},
	}}}
	if _, err := d.ExecuteUpdate(context.Background(), update); err != nil {
		t.Fatalf("ExecuteUpdate: %v", err)
	}

	triples, err := d.Store.MatchSubjectPredicate("http://example.org/user1", namePred.IRI)
	if err != nil {
		t.Fatalf("MatchSubjectPredicate: %v", err)
	}
	if len(triples) != 1 || triples[0].Literal != "Alicia" {
		t.Fatalf("triples = %+v, want exactly one Alicia literal", triples)
	}
}

func TestLocalDriverExecutesDeleteBreadth(t *testing.T) {
	d := newTestDriver(t)
	subj := algebra.NamedNode{IRI: "http://example.org/user1"}
	seed := algebra.CompositeUpdate{Updates: []algebra.DeleteInsert{{
		Insert: []algebra.Pattern{
			{Subject: subj, Predicate: algebra.NamedNode{IRI: algebra.RDFType}, Object: algebra.NamedNode{IRI: "http://example.org/User"}},
			{Subject: subj, Predicate: algebra.NamedNode{IRI: "http://xmlns.com/foaf/0.1/name"}, Object: algebra.Literal{Lexical: "Alice", Datatype: algebra.XSDString}},
		},
	}}}
	if _, err := d.ExecuteUpdate(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	pVar, oVar := algebra.Variable{Name: "p_del"}, algebra.Variable{Name: "o_del"}
	pattern := algebra.Pattern{Subject: subj, Predicate: pVar, Object: oVar}
	del := algebra.CompositeUpdate{Updates: []algebra.DeleteInsert{{
		Delete: []algebra.Pattern{pattern},
		Where:  &algebra.BGP{Patterns: []algebra.Pattern{pattern}},
	}}}
	if _, err := d.ExecuteUpdate(context.Background(), del); err != nil {
		t.Fatalf("delete: %v", err)
	}
	triples, err := d.Store.MatchSubject("http://example.org/user1")
	if err != nil {
		t.Fatalf("MatchSubject: %v", err)
	}
	if len(triples) != 0 {
		t.Fatalf("expected all triples removed, got %+v", triples)
	}
}

func TestLocalDriverExecuteQueryByFixedSubject(t *testing.T) {
	d := newTestDriver(t)
	subj := algebra.NamedNode{IRI: "http://example.org/user1"}
	namePred := algebra.NamedNode{IRI: "http://xmlns.com/foaf/0.1/name"}
	seed := algebra.CompositeUpdate{Updates: []algebra.DeleteInsert{{
		Insert: []algebra.Pattern{{Subject: subj, Predicate: namePred, Object: algebra.Literal{Lexical: "Alice", Datatype: algebra.XSDString}}},
	}}}
	if _, err := d.ExecuteUpdate(context.Background(), seed); err != nil {
		t.Fatalf("seed: %v", err)
	}

	proj := algebra.Project{
		Vars: []string{"name"},
		Where: &algebra.BGP{Patterns: []algebra.Pattern{
			{Subject: subj, Predicate: namePred, Object: algebra.Variable{Name: "name"}},
		}},
	}
	res, err := d.ExecuteQuery(context.Background(), proj)
	if err != nil {
		t.Fatalf("ExecuteQuery: %v", err)
	}
	if len(res.Bindings) != 1 || res.Bindings[0]["name"].Value != "Alice" {
		t.Fatalf("Bindings = %+v, want one row with name=Alice", res.Bindings)
	}
}
