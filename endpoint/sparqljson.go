package endpoint

import (
	"fmt"

	"github.com/go-json-experiment/json"
)

// wireResult mirrors the SPARQL 1.1 JSON Results Format's on-the-wire
// shape: {head:{vars:[string]}, results:{bindings:[{var:{type,value,...}}]}}.
type wireResult struct {
	Head struct {
		Vars []string `json:"vars"`
	} `json:"head"`
	Results struct {
		Bindings []map[string]Binding `json:"bindings"`
	} `json:"results"`
}

// ParseSPARQLJSON parses and shape-validates a SPARQL 1.1 JSON Results
// Format response body, decoding it with go-json-experiment/json's
// Unmarshal (as package jsonld's loader does) rather than encoding/json.
func ParseSPARQLJSON(body []byte) (*Result, error) {
	var wire wireResult
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("endpoint: malformed SPARQL JSON results: %w", err)
	}
	if wire.Head.Vars == nil {
		return nil, fmt.Errorf("endpoint: response missing head.vars")
	}
	for i, binding := range wire.Results.Bindings {
		for name, val := range binding {
			if val.Type == "" || val.Value == "" {
				return nil, fmt.Errorf("endpoint: binding %d, variable %q: missing type or value", i, name)
			}
		}
	}
	return &Result{Vars: wire.Head.Vars, Bindings: wire.Results.Bindings}, nil
}
