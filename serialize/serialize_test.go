package serialize

import (
	"strings"
	"testing"

	"github.com/twinfer/gqlsparql/algebra"
)

// quoted literal with embedded quote and newline.
func TestLiteralEscapesQuotesAndControlChars(t *testing.T) {
	lit := algebra.Literal{Lexical: `Alice says "Hello" then newline` + "\n" + "here", Datatype: algebra.XSDString}
	got := Literal(lit)
	want := `"Alice says \"Hello\" then newline\nhere"`
	if got != want {
		t.Fatalf("Literal = %q, want %q", got, want)
	}
	if strings.Count(got, `\"`) != 2 {
		t.Errorf("expected both quotes escaped in %q", got)
	}
	if strings.Contains(got, "\n") {
		t.Errorf("literal must not contain a bare newline: %q", got)
	}
}

// every disallowed-in-isolation character is escaped, never
// interpolated raw.
func TestLiteralEscapesEveryDangerousCharacter(t *testing.T) {
	dangerous := "\"\n\r\t\\};"
	got := Literal(algebra.Literal{Lexical: dangerous, Datatype: algebra.XSDString})
	want := `"\"\n\r\t\\};"`
	if got != want {
		t.Fatalf("Literal = %q, want %q", got, want)
	}
	// Between the delimiting quotes, every quote must be part of an
	// escape sequence and no raw control character may remain.
	inner := got[1 : len(got)-1]
	if strings.Count(inner, `"`) != strings.Count(inner, `\"`) {
		t.Errorf("unescaped dangerous rune %q leaked into %q", `"`, got)
	}
	for _, bad := range []string{"\n", "\r", "\t"} {
		if strings.Contains(inner, bad) {
			t.Errorf("unescaped dangerous rune %q leaked into %q", bad, got)
		}
	}
}

func TestLiteralOmitsDatatypeSuffixOnlyForXSDString(t *testing.T) {
	plain := Literal(algebra.Literal{Lexical: "x", Datatype: algebra.XSDString})
	if plain != `"x"` {
		t.Errorf("plain string literal = %q, want bare quoted form", plain)
	}
	typed := Literal(algebra.Literal{Lexical: "30", Datatype: algebra.XSDInteger})
	if typed != `"30"^^<`+algebra.XSDInteger+`>` {
		t.Errorf("typed literal = %q, want explicit ^^<datatype>", typed)
	}
}

// full create scenario round-trip through the serializer.
func TestCompositeUpdateRendersInsertData(t *testing.T) {
	subj := algebra.NamedNode{IRI: "http://example.org/ex:user1"}
	update := algebra.CompositeUpdate{Updates: []algebra.DeleteInsert{{
		Insert: []algebra.Pattern{
			{Subject: subj, Predicate: algebra.NamedNode{IRI: algebra.RDFType}, Object: algebra.NamedNode{IRI: "http://example.org/User"}},
			{Subject: subj, Predicate: algebra.NamedNode{IRI: "http://xmlns.com/foaf/0.1/name"}, Object: algebra.Literal{Lexical: "Alice", Datatype: algebra.XSDString}},
		},
	}}}
	got, err := CompositeUpdate(update)
	if err != nil {
		t.Fatalf("CompositeUpdate: %v", err)
	}
	if !strings.HasPrefix(got, "INSERT DATA") {
		t.Fatalf("got %q, want INSERT DATA prefix", got)
	}
	if !strings.Contains(got, "<http://example.org/ex:user1>") {
		t.Errorf("missing subject IRI in output: %q", got)
	}
	if !strings.Contains(got, `"Alice"`) {
		t.Errorf("missing literal in output: %q", got)
	}
}

// update renders DELETE/INSERT/WHERE in that order.
func TestDeleteInsertRendersAllThreeClauses(t *testing.T) {
	subj := algebra.NamedNode{IRI: "http://example.org/ex:user1"}
	pred := algebra.NamedNode{IRI: "http://xmlns.com/foaf/0.1/name"}
	oldVar := algebra.Variable{Name: "old_name"}
	u := algebra.DeleteInsert{
		Delete: []algebra.Pattern{{Subject: subj, Predicate: pred, Object: oldVar}},
		Insert: []algebra.Pattern{{Subject: subj, Predicate: pred, Object: algebra.Literal{Lexical: "Alicia", Datatype: algebra.XSDString}}},
		Where:  &algebra.BGP{Patterns: []algebra.Pattern{{Subject: subj, Predicate: pred, Object: oldVar}}},
	}
	got, err := DeleteInsert(u)
	if err != nil {
		t.Fatalf("DeleteInsert: %v", err)
	}
	for _, want := range []string{"DELETE", "INSERT", "WHERE", "?old_name"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
	if strings.Index(got, "DELETE") > strings.Index(got, "INSERT") || strings.Index(got, "INSERT") > strings.Index(got, "WHERE") {
		t.Errorf("clauses out of order: %q", got)
	}
}

// delete-only renders "DELETE ... WHERE ..." with no INSERT clause.
func TestDeleteInsertRendersDeleteOnlyWithoutInsertKeyword(t *testing.T) {
	subj := algebra.NamedNode{IRI: "http://example.org/ex:user1"}
	pVar := algebra.Variable{Name: "p_del"}
	oVar := algebra.Variable{Name: "o_del"}
	pattern := algebra.Pattern{Subject: subj, Predicate: pVar, Object: oVar}
	u := algebra.DeleteInsert{
		Delete: []algebra.Pattern{pattern},
		Where:  &algebra.BGP{Patterns: []algebra.Pattern{pattern}},
	}
	got, err := DeleteInsert(u)
	if err != nil {
		t.Fatalf("DeleteInsert: %v", err)
	}
	if strings.Contains(got, "\nINSERT ") {
		t.Errorf("delete-only update must not contain an INSERT clause: %q", got)
	}
	if !strings.HasPrefix(got, "DELETE") {
		t.Errorf("got %q, want DELETE prefix", got)
	}
}

func TestCompositeUpdateJoinsMultipleStatementsWithSemicolon(t *testing.T) {
	subj := algebra.NamedNode{IRI: "http://example.org/a"}
	single := algebra.DeleteInsert{Insert: []algebra.Pattern{{Subject: subj, Predicate: algebra.NamedNode{IRI: algebra.RDFType}, Object: algebra.NamedNode{IRI: "http://example.org/T"}}}}
	got, err := CompositeUpdate(algebra.CompositeUpdate{Updates: []algebra.DeleteInsert{single, single}})
	if err != nil {
		t.Fatalf("CompositeUpdate: %v", err)
	}
	if strings.Count(got, "INSERT DATA") != 2 {
		t.Fatalf("expected two INSERT DATA statements, got %q", got)
	}
	if !strings.Contains(got, ";") {
		t.Errorf("expected statements joined by ';', got %q", got)
	}
}
