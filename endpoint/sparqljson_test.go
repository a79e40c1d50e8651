package endpoint

import "testing"

func TestParseSPARQLJSONValidDocument(t *testing.T) {
	body := []byte(`{
		"head": {"vars": ["s", "name"]},
		"results": {"bindings": [
			{"s": {"type": "uri", "value": "http://example.org/user1"}, "name": {"type": "literal", "value": "Alice"}}
		]}
	}`)
	res, err := ParseSPARQLJSON(body)
	if err != nil {
		t.Fatalf("ParseSPARQLJSON: %v", err)
	}
	if len(res.Vars) != 2 || res.Vars[0] != "s" {
		t.Errorf("Vars = %v", res.Vars)
	}
	if len(res.Bindings) != 1 || res.Bindings[0]["name"].Value != "Alice" {
		t.Errorf("Bindings = %+v", res.Bindings)
	}
}

func TestParseSPARQLJSONRejectsMissingHead(t *testing.T) {
	if _, err := ParseSPARQLJSON([]byte(`{"results": {"bindings": []}}`)); err == nil {
		t.Fatalf("expected shape error for missing head.vars")
	}
}

func TestParseSPARQLJSONRejectsMalformedBody(t *testing.T) {
	if _, err := ParseSPARQLJSON([]byte(`not json`)); err == nil {
		t.Fatalf("expected error for malformed JSON")
	}
}
