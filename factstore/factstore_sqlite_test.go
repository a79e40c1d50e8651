package factstore

import (
	"bytes"
	"database/sql"
	"sort"
	"testing"
)

// TestNewFactStoreSQLite tests the constructor against the RDF triple
// domain this system actually stores: triple_iri/3 and triple_lit/4
// facts, not arbitrary Datalog predicates.
func TestNewFactStoreSQLite(t *testing.T) {
	db, err := NewFactStoreSQLite(":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if db.db == nil {
		t.Fatal("Database connection is nil")
	}
	if !db.ownsDB {
		t.Error("Expected store to own the database connection")
	}
	if count := db.EstimateFactCount(); count != 0 {
		t.Errorf("Expected empty store, got %d facts", count)
	}

	store := NewStore(db)
	triple := Triple{Subject: "http://example.org/user1", Predicate: "http://xmlns.com/foaf/0.1/name", Literal: "Alice"}
	if err := store.AddTriple(triple); err != nil {
		t.Fatalf("AddTriple: %v", err)
	}
	if count := db.EstimateFactCount(); count != 1 {
		t.Errorf("Expected 1 fact, got %d", count)
	}
}

// TestNewFactStoreSQLiteFromDB tests the FromDB constructor, which must
// not take ownership of the caller's connection.
func TestNewFactStoreSQLiteFromDB(t *testing.T) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	db, err := NewFactStoreSQLiteFromDB(conn)
	if err != nil {
		t.Fatalf("Failed to create store from db: %v", err)
	}

	if db.ownsDB {
		t.Error("Expected store to NOT own the database connection")
	}

	store := NewStore(db)
	triple := Triple{Subject: "http://example.org/user1", Predicate: "http://xmlns.com/foaf/0.1/name", Literal: "Alice"}
	if err := store.AddTriple(triple); err != nil {
		t.Fatalf("AddTriple: %v", err)
	}

	// Closing the store must not close the caller-owned connection.
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	var result int
	if err := conn.QueryRow("SELECT COUNT(*) FROM facts").Scan(&result); err != nil {
		t.Errorf("Database should still be usable after store.Close(): %v", err)
	}
	if result != 1 {
		t.Errorf("Expected 1 fact in database, got %d", result)
	}
}

// TestSQLiteTripleStore exercises triples.Store's full surface (add,
// remove, match by subject/predicate) against the SQLite backing engine:
// the behavior the RDF domain actually depends on, not FactStoreDB's
// generic Datalog interface.
func TestSQLiteTripleStore(t *testing.T) {
	db, err := NewFactStoreSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewFactStoreSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := NewStore(db)

	user := "http://example.org/user1"
	nameTriple := Triple{Subject: user, Predicate: "http://xmlns.com/foaf/0.1/name", Literal: "Alice"}
	ageTriple := Triple{Subject: user, Predicate: "http://example.org/age", Literal: "30", Datatype: "http://www.w3.org/2001/XMLSchema#integer"}
	typeTriple := Triple{Subject: user, Predicate: "http://www.w3.org/1999/02/22-rdf-syntax-ns#type", ObjectIRI: "http://example.org/User"}

	for _, tr := range []Triple{nameTriple, ageTriple, typeTriple} {
		if err := store.AddTriple(tr); err != nil {
			t.Fatalf("AddTriple(%+v): %v", tr, err)
		}
	}

	// Re-adding is a no-op, not a duplicate.
	if err := store.AddTriple(nameTriple); err != nil {
		t.Fatalf("AddTriple re-add: %v", err)
	}
	if count := db.EstimateFactCount(); count != 3 {
		t.Errorf("Expected 3 distinct facts after re-add, got %d", count)
	}

	got, err := store.MatchSubject(user)
	if err != nil {
		t.Fatalf("MatchSubject: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("MatchSubject: want 3 triples, got %d: %+v", len(got), got)
	}

	nameMatches, err := store.MatchSubjectPredicate(user, "http://xmlns.com/foaf/0.1/name")
	if err != nil {
		t.Fatalf("MatchSubjectPredicate: %v", err)
	}
	if len(nameMatches) != 1 || nameMatches[0].Literal != "Alice" {
		t.Errorf("MatchSubjectPredicate(name): got %+v", nameMatches)
	}

	byType, err := store.MatchPredicate("http://www.w3.org/1999/02/22-rdf-syntax-ns#type")
	if err != nil {
		t.Fatalf("MatchPredicate: %v", err)
	}
	if len(byType) != 1 || byType[0].ObjectIRI != "http://example.org/User" {
		t.Errorf("MatchPredicate(rdf:type): got %+v", byType)
	}

	if err := store.RemoveTriple(ageTriple); err != nil {
		t.Fatalf("RemoveTriple: %v", err)
	}
	remaining, err := store.MatchSubject(user)
	if err != nil {
		t.Fatalf("MatchSubject after remove: %v", err)
	}
	preds := make([]string, 0, len(remaining))
	for _, tr := range remaining {
		preds = append(preds, tr.Predicate)
	}
	sort.Strings(preds)
	want := []string{"http://www.w3.org/1999/02/22-rdf-syntax-ns#type", "http://xmlns.com/foaf/0.1/name"}
	if len(preds) != len(want) || preds[0] != want[0] || preds[1] != want[1] {
		t.Errorf("after remove, predicates = %v, want %v", preds, want)
	}
}

// TestSQLiteWriteToReadFrom round-trips the store's JSON dump through a
// second store, the same path endpoint.LocalDriver could use to seed or
// snapshot a triple store.
func TestSQLiteWriteToReadFrom(t *testing.T) {
	src, err := NewFactStoreSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewFactStoreSQLite: %v", err)
	}
	t.Cleanup(func() { src.Close() })
	srcStore := NewStore(src)

	triples := []Triple{
		{Subject: "http://example.org/p1", Predicate: "http://schema.org/itemReviewed", ObjectIRI: "http://example.org/product1"},
		{Subject: "http://example.org/p1", Predicate: "http://schema.org/rating", Literal: "5", Datatype: "http://www.w3.org/2001/XMLSchema#integer"},
	}
	for _, tr := range triples {
		if err := srcStore.AddTriple(tr); err != nil {
			t.Fatalf("AddTriple: %v", err)
		}
	}

	var buf bytes.Buffer
	if _, err := src.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}

	dst, err := NewFactStoreSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewFactStoreSQLite (dst): %v", err)
	}
	t.Cleanup(func() { dst.Close() })
	if _, err := dst.ReadFrom(&buf); err != nil {
		t.Fatalf("ReadFrom: %v", err)
	}

	if got, want := dst.EstimateFactCount(), len(triples); got != want {
		t.Errorf("after round-trip, fact count = %d, want %d", got, want)
	}
	dstStore := NewStore(dst)
	matches, err := dstStore.MatchSubject("http://example.org/p1")
	if err != nil {
		t.Fatalf("MatchSubject on dst: %v", err)
	}
	if len(matches) != len(triples) {
		t.Errorf("MatchSubject on dst: got %d triples, want %d", len(matches), len(triples))
	}
}
