// Package rdf converts between the triple store's native shape
// (factstore.Triple) and JSON-LD documents, using json-gold as the RDF
// dataset intermediate representation. It exists so fixtures and dumps can
// move in and out of the triple store without a SPARQL endpoint.
package rdf

import (
	"fmt"

	"github.com/piprate/json-gold/ld"

	"github.com/twinfer/gqlsparql/factstore"
)

const xsdString = "http://www.w3.org/2001/XMLSchema#string"

// ImportJSONLD parses a JSON-LD document (already decoded into Go values,
// i.e. map[string]any or []any, as returned by encoding/json or
// go-json-experiment) into triples, expanding it against its own embedded
// context.
func ImportJSONLD(doc any) ([]factstore.Triple, error) {
	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")

	raw, err := proc.ToRDF(doc, opts)
	if err != nil {
		return nil, fmt.Errorf("rdf: JSON-LD to RDF: %w", err)
	}
	dataset, ok := raw.(*ld.RDFDataset)
	if !ok {
		return nil, fmt.Errorf("rdf: unexpected RDF dataset type %T", raw)
	}
	return datasetToTriples(dataset, "@default")
}

// ExportJSONLD serializes triples as a JSON-LD document (flat, no context
// compaction — callers wanting compact output should run the result through
// a compaction pass with their own context).
func ExportJSONLD(triples []factstore.Triple) (any, error) {
	dataset := ld.NewRDFDataset()
	for _, t := range triples {
		quad, err := tripleToQuad(t)
		if err != nil {
			return nil, err
		}
		dataset.Graphs["@default"] = append(dataset.Graphs["@default"], quad)
	}

	proc := ld.NewJsonLdProcessor()
	opts := ld.NewJsonLdOptions("")
	opts.UseNativeTypes = true

	doc, err := proc.FromRDF(dataset, opts)
	if err != nil {
		return nil, fmt.Errorf("rdf: RDF to JSON-LD: %w", err)
	}
	return doc, nil
}

func tripleToQuad(t factstore.Triple) (*ld.Quad, error) {
	subject := ld.NewIRI(t.Subject)
	predicate := ld.NewIRI(t.Predicate)
	if t.IsLiteral() {
		datatype := t.Datatype
		if datatype == "" {
			datatype = xsdString
		}
		return ld.NewQuad(subject, predicate, ld.NewLiteral(t.Literal, datatype, ""), "@default"), nil
	}
	if t.ObjectIRI == "" {
		return nil, fmt.Errorf("rdf: triple %+v has neither object IRI nor literal", t)
	}
	return ld.NewQuad(subject, predicate, ld.NewIRI(t.ObjectIRI), "@default"), nil
}

func datasetToTriples(dataset *ld.RDFDataset, graphName string) ([]factstore.Triple, error) {
	quads := dataset.GetQuads(graphName)
	triples := make([]factstore.Triple, 0, len(quads))
	for _, q := range quads {
		subj, ok := asIRI(q.Subject)
		if !ok {
			return nil, fmt.Errorf("rdf: blank-node subjects are not supported by this store: %s", nodeToString(q.Subject))
		}
		pred, ok := asIRI(q.Predicate)
		if !ok {
			return nil, fmt.Errorf("rdf: predicate must be an IRI, got %s", nodeToString(q.Predicate))
		}
		switch {
		case ld.IsIRI(q.Object):
			triples = append(triples, factstore.Triple{
				Subject:   subj,
				Predicate: pred,
				ObjectIRI: q.Object.(ld.IRI).Value,
			})
		case ld.IsLiteral(q.Object):
			lit := q.Object.(ld.Literal)
			triples = append(triples, factstore.Triple{
				Subject:   subj,
				Predicate: pred,
				Literal:   lit.Value,
				Datatype:  lit.Datatype,
			})
		default:
			return nil, fmt.Errorf("rdf: unsupported object node %s", nodeToString(q.Object))
		}
	}
	return triples, nil
}

func asIRI(node ld.Node) (string, bool) {
	if !ld.IsIRI(node) {
		return "", false
	}
	return node.(ld.IRI).Value, true
}

func nodeToString(node ld.Node) string {
	if node == nil {
		return ""
	}
	if ld.IsIRI(node) {
		return node.(ld.IRI).Value
	}
	if ld.IsLiteral(node) {
		return node.(ld.Literal).Value
	}
	if ld.IsBlankNode(node) {
		return "_:" + node.(ld.BlankNode).Attribute
	}
	return ""
}
