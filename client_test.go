package gqlsparql

import (
	"context"
	"testing"

	"github.com/twinfer/gqlsparql/config"
	"github.com/twinfer/gqlsparql/endpoint"
	"github.com/twinfer/gqlsparql/factstore"
	"github.com/twinfer/gqlsparql/jsonld"
)

func testContext(t *testing.T) *jsonld.Context {
	t.Helper()
	ctx, err := jsonld.ParseContext(jsonld.ExampleContext())
	if err != nil {
		t.Fatalf("jsonld.ParseContext: %v", err)
	}
	return ctx
}

func testClient(t *testing.T) *Client {
	t.Helper()
	db, err := factstore.NewFactStoreSQLite(":memory:")
	if err != nil {
		t.Fatalf("NewFactStoreSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	driver := &endpoint.LocalDriver{Store: factstore.NewStore(db)}

	opts := config.Defaults()
	opts.CacheMaxEntries = 10

	c, err := New(opts, testContext(t), driver, nil, nil, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

func TestMutateCreateThenQueryByID(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	mres, err := c.Mutate(ctx, `mutation { createUser(input: {id: "ex:user1", name: "Alice", age: 30}) { id } }`)
	if err != nil {
		t.Fatalf("Mutate: %v", err)
	}
	if !mres.Success || mres.Subject != "http://example.org/ex:user1" {
		t.Fatalf("Mutate result = %+v", mres)
	}

	qres, err := c.Query(ctx, `query { userById(id: "ex:user1") { name age } }`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if qres.Data["name"] != "Alice" {
		t.Errorf("name = %v, want Alice", qres.Data["name"])
	}
	if qres.Data["age"] != int64(30) {
		t.Errorf("age = %v (%T), want int64(30)", qres.Data["age"], qres.Data["age"])
	}
}

func TestQueryCompilationIsCachedAcrossCalls(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	if _, err := c.Mutate(ctx, `mutation { createUser(input: {id: "ex:user2", name: "Bob"}) { id } }`); err != nil {
		t.Fatalf("Mutate: %v", err)
	}

	const query = `query { userById(id: "ex:user2") { name } }`
	if _, err := c.Query(ctx, query); err != nil {
		t.Fatalf("Query (miss): %v", err)
	}
	if _, ok := c.cache.Get(query); !ok {
		t.Fatalf("expected compiled query to be cached after first call")
	}
	if _, err := c.Query(ctx, query); err != nil {
		t.Fatalf("Query (hit): %v", err)
	}
}

func TestMutateRejectsMalformedMutationWithStableCode(t *testing.T) {
	c := testClient(t)

	_, err := c.Mutate(context.Background(), `mutation { createUser(input: {id: "not a valid iri!", name: "X"}) { id } }`)
	if err == nil {
		t.Fatalf("expected an error for malformed id")
	}
	callErr, ok := err.(*CallError)
	if !ok {
		t.Fatalf("err = %T, want *CallError", err)
	}
	if callErr.Name != "MUTATION_ERROR" || callErr.Code != "VALIDATION_ERROR" {
		t.Errorf("CallError = %+v, unexpected", callErr)
	}
}

func TestQueryRejectsUnmappedFieldNameWithContextCode(t *testing.T) {
	c := testClient(t)

	_, err := c.Query(context.Background(), `query { allUsers { bogusField } }`)
	if err == nil {
		t.Fatalf("expected an error")
	}
	callErr, ok := err.(*CallError)
	if !ok {
		t.Fatalf("err = %T, want *CallError", err)
	}
	if callErr.Name != "QUERY_ERROR" || callErr.Code != "CONTEXT_ERROR" {
		t.Errorf("CallError = %+v, unexpected", callErr)
	}
}
