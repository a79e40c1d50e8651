package jsonld

import (
	"fmt"
	"os"

	"github.com/go-json-experiment/json"
	"github.com/piprate/json-gold/ld"
)

// LoadContextFile reads a JSON-LD context document from disk and parses it
// into a Context. The file may be a bare context object ({"@base": ...}) or
// a full document with a top-level "@context" key.
func LoadContextFile(path string) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jsonld: reading context file %s: %w", path, err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("jsonld: parsing context file %s: %w", path, err)
	}
	return ParseContext(unwrapContext(doc))
}

// LoadContextURL fetches a JSON-LD context document over HTTP(S) using
// json-gold's document loader (which handles link-header context discovery
// and JSON-LD media types) and parses it into a Context.
func LoadContextURL(url string) (*Context, error) {
	loader := ld.NewDefaultDocumentLoader(nil)
	remote, err := loader.LoadDocument(url)
	if err != nil {
		return nil, fmt.Errorf("jsonld: loading context %s: %w", url, err)
	}
	doc, ok := remote.Document.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("jsonld: context document at %s is not a JSON object", url)
	}
	return ParseContext(unwrapContext(doc))
}

func unwrapContext(doc map[string]any) map[string]any {
	if inner, ok := doc["@context"]; ok {
		if m, ok := inner.(map[string]any); ok {
			return m
		}
	}
	return doc
}
