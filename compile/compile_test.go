package compile

import (
	"strings"
	"testing"

	"github.com/twinfer/gqlsparql/algebra"
	"github.com/twinfer/gqlsparql/gql"
	"github.com/twinfer/gqlsparql/jsonld"
)

func mustParse(t *testing.T, query string) *gql.Operation {
	t.Helper()
	op, err := gql.Parse(query)
	if err != nil {
		t.Fatalf("gql.Parse: %v", err)
	}
	return op
}

func mustContext(t *testing.T, raw map[string]any) *jsonld.Context {
	t.Helper()
	ctx, err := jsonld.ParseContext(raw)
	if err != nil {
		t.Fatalf("jsonld.ParseContext: %v", err)
	}
	return ctx
}

func baseContext() map[string]any {
	return map[string]any{
		"@base": "http://example.org/",
		"ex":    "http://example.org/",
		"xsd":   "http://www.w3.org/2001/XMLSchema#",
		"User":  "ex:User",
		"name":  "http://xmlns.com/foaf/0.1/name",
		"age": map[string]any{
			"@id":   "ex:age",
			"@type": "xsd:integer",
		},
	}
}

func findPattern(patterns []algebra.Pattern, predIRI string) (algebra.Pattern, bool) {
	for _, p := range patterns {
		if nn, ok := p.Predicate.(algebra.NamedNode); ok && nn.IRI == predIRI {
			return p, true
		}
	}
	return algebra.Pattern{}, false
}

// create with explicit id.
func TestCompileCreateWithExplicitID(t *testing.T) {
	op := mustParse(t, `mutation { createUser(input: {id: "ex:user1", name: "Alice", age: 30}) { id } }`)
	ctx := mustContext(t, baseContext())

	res, err := Compile(op, ctx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if res.Subject != "http://example.org/ex:user1" {
		t.Fatalf("Subject = %q, want base-concatenated CURIE per the documented quirk", res.Subject)
	}
	if len(res.Update.Updates) != 1 {
		t.Fatalf("want exactly one DeleteInsert, got %d", len(res.Update.Updates))
	}
	ins := res.Update.Updates[0]
	if len(ins.Delete) != 0 || ins.Where != nil {
		t.Fatalf("create must be pure INSERT DATA: delete=%v where=%v", ins.Delete, ins.Where)
	}
	typeP, ok := findPattern(ins.Insert, algebra.RDFType)
	if !ok {
		t.Fatalf("missing rdf:type pattern (P4)")
	}
	if nn, ok := typeP.Object.(algebra.NamedNode); !ok || nn.IRI != "http://example.org/User" {
		t.Errorf("rdf:type object = %v, want User type IRI", typeP.Object)
	}
	nameP, ok := findPattern(ins.Insert, "http://xmlns.com/foaf/0.1/name")
	if !ok {
		t.Fatalf("missing name pattern")
	}
	if lit, ok := nameP.Object.(algebra.Literal); !ok || lit.Lexical != "Alice" || lit.Datatype != algebra.XSDString {
		t.Errorf("name object = %v, want plain string literal Alice", nameP.Object)
	}
	ageP, ok := findPattern(ins.Insert, "http://example.org/age")
	if !ok {
		t.Fatalf("missing age pattern")
	}
	if lit, ok := ageP.Object.(algebra.Literal); !ok || lit.Lexical != "30" || lit.Datatype != "http://www.w3.org/2001/XMLSchema#integer" {
		t.Errorf("age object = %v, want typed integer literal 30", ageP.Object)
	}
}

// create with auto-minted id.
func TestCompileCreateMintsUUIDWhenIDAbsent(t *testing.T) {
	op := mustParse(t, `mutation { createUser(input: {name: "Bob"}) { id } }`)
	ctx := mustContext(t, baseContext())

	res, err := Compile(op, ctx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.HasPrefix(res.Subject, "urn:uuid:") {
		t.Fatalf("Subject = %q, want urn:uuid:<v4> (P5)", res.Subject)
	}
	if len(res.Subject) != len("urn:uuid:")+36 {
		t.Errorf("Subject length = %d, want a 36-char UUID after the prefix", len(res.Subject))
	}
}

// determinism up to fresh UUIDs.
func TestCompileCreateIsDeterministicUpToUUID(t *testing.T) {
	op := mustParse(t, `mutation { createUser(input: {name: "Bob"}) { id } }`)
	ctx := mustContext(t, baseContext())

	r1, err := Compile(op, ctx)
	if err != nil {
		t.Fatalf("Compile #1: %v", err)
	}
	r2, err := Compile(op, ctx)
	if err != nil {
		t.Fatalf("Compile #2: %v", err)
	}
	if r1.Subject == r2.Subject {
		t.Errorf("two compilations minted the same subject %q; UUID source is not varying", r1.Subject)
	}
	if len(r1.Update.Updates) != 1 || len(r2.Update.Updates) != 1 {
		t.Fatalf("want one DeleteInsert per compilation, got %d and %d", len(r1.Update.Updates), len(r2.Update.Updates))
	}
	ins1, ins2 := r1.Update.Updates[0].Insert, r2.Update.Updates[0].Insert
	if len(ins1) != len(ins2) {
		t.Fatalf("insert pattern counts differ: %d vs %d", len(ins1), len(ins2))
	}
	n1, ok1 := findPattern(ins1, "http://xmlns.com/foaf/0.1/name")
	n2, ok2 := findPattern(ins2, "http://xmlns.com/foaf/0.1/name")
	if !ok1 || !ok2 || n1.Object != n2.Object {
		t.Errorf("name pattern differs between compilations: %v vs %v", n1.Object, n2.Object)
	}
}

// update.
func TestCompileUpdateRebindsOldValues(t *testing.T) {
	op := mustParse(t, `mutation { updateUser(id: "ex:user1", input: {name: "Alicia", age: 31}) { id } }`)
	ctx := mustContext(t, baseContext())

	res, err := Compile(op, ctx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ins := res.Update.Updates[0]
	if len(ins.Delete) != 2 || len(ins.Insert) != 2 || ins.Where == nil || len(ins.Where.Patterns) != 2 {
		t.Fatalf("update shape = delete:%d insert:%d where:%v, want 2/2/2 (P6)", len(ins.Delete), len(ins.Insert), ins.Where)
	}
	// every variable in Delete appears in Where with the same predicate.
	for _, d := range ins.Delete {
		v, ok := d.Object.(algebra.Variable)
		if !ok {
			t.Fatalf("delete pattern object is not a variable: %v", d.Object)
		}
		found := false
		for _, w := range ins.Where.Patterns {
			if wv, ok := w.Object.(algebra.Variable); ok && wv == v && w.Predicate == d.Predicate {
				found = true
			}
		}
		if !found {
			t.Errorf("delete variable %v not bound in WHERE with matching predicate", v)
		}
	}
}

// empty update input is rejected.
func TestCompileUpdateRejectsEmptyInput(t *testing.T) {
	op := mustParse(t, `mutation { updateUser(id: "ex:user1", input: {}) { id } }`)
	ctx := mustContext(t, baseContext())
	_, err := Compile(op, ctx)
	if err == nil {
		t.Fatalf("expected VALIDATION_ERROR for empty update input")
	}
	ve, ok := err.(*ValidationError)
	if !ok || ve.Code != "VALIDATION_ERROR" {
		t.Errorf("err = %#v, want *ValidationError{Code: VALIDATION_ERROR}", err)
	}
}

// update touching "id" is rejected.
func TestCompileUpdateRejectsIDField(t *testing.T) {
	op := mustParse(t, `mutation { updateUser(id: "ex:user1", input: {id: "ex:user2"}) { id } }`)
	ctx := mustContext(t, baseContext())
	_, err := Compile(op, ctx)
	if err == nil {
		t.Fatalf("expected CONVERSION_ERROR for update touching id")
	}
	ve, ok := err.(*ValidationError)
	if !ok || ve.Code != "CONVERSION_ERROR" {
		t.Errorf("err = %#v, want *ValidationError{Code: CONVERSION_ERROR}", err)
	}
}

// delete breadth.
func TestCompileDeleteRemovesAllSubjectTriples(t *testing.T) {
	op := mustParse(t, `mutation { deleteUser(id: "ex:user1") }`)
	ctx := mustContext(t, baseContext())

	res, err := Compile(op, ctx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ins := res.Update.Updates[0]
	if len(ins.Delete) != 1 || len(ins.Insert) != 0 || ins.Where == nil || len(ins.Where.Patterns) != 1 {
		t.Fatalf("delete shape = delete:%d insert:%d where:%v, want 1/0/1", len(ins.Delete), len(ins.Insert), ins.Where)
	}
	if _, ok := ins.Delete[0].Predicate.(algebra.Variable); !ok {
		t.Errorf("delete predicate must be a variable, got %v", ins.Delete[0].Predicate)
	}
	if _, ok := ins.Delete[0].Object.(algebra.Variable); !ok {
		t.Errorf("delete object must be a variable, got %v", ins.Delete[0].Object)
	}
}

// injection attempt via a malformed id is rejected before any algebra
// is built.
func TestCompileRejectsMalformedSubjectIRI(t *testing.T) {
	op := mustParse(t, `mutation { createProduct(input: {id: "ex:evil> } ; DROP ALL ; INSERT { <x> <y> <z", name: "x"}) { id } }`)
	ctx := mustContext(t, map[string]any{
		"@base":   "http://example.org/",
		"Product": "http://example.org/Product",
		"name":    "http://example.org/name",
	})
	_, err := Compile(op, ctx)
	if err == nil {
		t.Fatalf("expected VALIDATION_ERROR for IRI with illegal characters")
	}
}

// inverse link emission on create.
func TestCompileCreateEmitsInverseLink(t *testing.T) {
	ctx := mustContext(t, map[string]any{
		"@base":   "http://example.org/",
		"Review":  "http://example.org/Review",
		"rating":  map[string]any{"@id": "http://example.org/rating", "@type": "xsd:integer"},
		"xsd":     "http://www.w3.org/2001/XMLSchema#",
		"reviewer": "http://example.org/reviewer",
		"product": map[string]any{"@id": "http://schema.org/itemReviewed", "@type": "@id"},
		"reviews": map[string]any{"@id": "http://schema.org/review", "@type": "@id", "@container": "@set"},
	})
	op := mustParse(t, `mutation { createReview(input: {productId: "ex:p1", rating: 5, reviewer: "a@b"}) { id } }`)

	res, err := Compile(op, ctx)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	ins := res.Update.Updates[0]
	forward, ok := findPattern(ins.Insert, "http://schema.org/itemReviewed")
	if !ok {
		t.Fatalf("missing forward product relationship triple")
	}
	forwardObj, ok := forward.Object.(algebra.NamedNode)
	if !ok {
		t.Fatalf("forward object is not an IRI: %v", forward.Object)
	}
	foundInverse := false
	for _, p := range ins.Insert {
		if subj, ok := p.Subject.(algebra.NamedNode); ok && subj.IRI == forwardObj.IRI {
			if nn, ok := p.Predicate.(algebra.NamedNode); ok && nn.IRI == "http://schema.org/review" {
				foundInverse = true
			}
		}
	}
	if !foundInverse {
		t.Errorf("missing inverse review triple from %q back to the new subject", forwardObj.IRI)
	}
}

func TestCompileRejectsUnrecognizedRootFieldPrefix(t *testing.T) {
	op := mustParse(t, `mutation { renameUser(input: {name: "X"}) { id } }`)
	ctx := mustContext(t, baseContext())
	_, err := Compile(op, ctx)
	if err == nil {
		t.Fatalf("expected CONVERSION_ERROR for unrecognized prefix")
	}
}

func TestCompileRejectsMutationVariables(t *testing.T) {
	op := mustParse(t, `mutation($n: String!) { createUser(input: {name: $n}) { id } }`)
	ctx := mustContext(t, baseContext())
	_, err := Compile(op, ctx)
	if err == nil {
		t.Fatalf("expected UNSUPPORTED_FEATURE for mutation variables")
	}
	ve, ok := err.(*ValidationError)
	if !ok || ve.Code != "UNSUPPORTED_FEATURE" {
		t.Errorf("err = %#v, want UNSUPPORTED_FEATURE", err)
	}
}
