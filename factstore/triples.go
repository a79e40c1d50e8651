package factstore

import (
	"fmt"

	"github.com/google/mangle/ast"
)

// Triple is a single RDF statement as stored by Store. Exactly one of
// ObjectIRI or Literal is set: object-valued triples carry ObjectIRI,
// literal-valued triples carry Literal and Datatype (an IRI, defaulting to
// xsd:string when empty).
type Triple struct {
	Subject   string
	Predicate string
	ObjectIRI string
	Literal   string
	Datatype  string
}

// IsLiteral reports whether this triple's object is a literal rather than
// an IRI.
func (t Triple) IsLiteral() bool { return t.ObjectIRI == "" }

var (
	triplePredIRI = ast.PredicateSym{Symbol: "triple_iri", Arity: 3}
	triplePredLit = ast.PredicateSym{Symbol: "triple_lit", Arity: 4}
)

// Store adapts a FactStoreDB (the Mangle-fact-shaped relational backing
// store) into an RDF triple store: object-valued triples become
// triple_iri/3 facts, literal-valued triples become triple_lit/4 facts
// carrying their datatype IRI.
type Store struct {
	facts *FactStoreDB
}

// NewStore wraps an existing FactStoreDB as a triple store.
func NewStore(facts *FactStoreDB) *Store {
	return &Store{facts: facts}
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.facts.Close()
}

func tripleToAtom(t Triple) (ast.Atom, error) {
	subj, err := ast.Name(t.Subject)
	if err != nil {
		return ast.Atom{}, fmt.Errorf("triple subject %q: %w", t.Subject, err)
	}
	pred, err := ast.Name(t.Predicate)
	if err != nil {
		return ast.Atom{}, fmt.Errorf("triple predicate %q: %w", t.Predicate, err)
	}
	if t.IsLiteral() {
		datatype := t.Datatype
		if datatype == "" {
			datatype = xsdString
		}
		dt, err := ast.Name(datatype)
		if err != nil {
			return ast.Atom{}, fmt.Errorf("triple datatype %q: %w", datatype, err)
		}
		return ast.Atom{
			Predicate: triplePredLit,
			Args:      []ast.BaseTerm{subj, pred, ast.String(t.Literal), dt},
		}, nil
	}
	obj, err := ast.Name(t.ObjectIRI)
	if err != nil {
		return ast.Atom{}, fmt.Errorf("triple object %q: %w", t.ObjectIRI, err)
	}
	return ast.Atom{
		Predicate: triplePredIRI,
		Args:      []ast.BaseTerm{subj, pred, obj},
	}, nil
}

func atomToTriple(a ast.Atom) (Triple, error) {
	switch a.Predicate {
	case triplePredIRI:
		if len(a.Args) != 3 {
			return Triple{}, fmt.Errorf("triple_iri: want 3 args, got %d", len(a.Args))
		}
		subj, pred, obj, err := threeNames(a.Args)
		if err != nil {
			return Triple{}, err
		}
		return Triple{Subject: subj, Predicate: pred, ObjectIRI: obj}, nil
	case triplePredLit:
		if len(a.Args) != 4 {
			return Triple{}, fmt.Errorf("triple_lit: want 4 args, got %d", len(a.Args))
		}
		subj, err := nameValue(a.Args[0])
		if err != nil {
			return Triple{}, err
		}
		pred, err := nameValue(a.Args[1])
		if err != nil {
			return Triple{}, err
		}
		lit, ok := a.Args[2].(ast.Constant)
		if !ok || lit.Type != ast.StringType {
			return Triple{}, fmt.Errorf("triple_lit: arg 3 is not a string literal")
		}
		lex, err := lit.StringValue()
		if err != nil {
			return Triple{}, err
		}
		datatype, err := nameValue(a.Args[3])
		if err != nil {
			return Triple{}, err
		}
		return Triple{Subject: subj, Predicate: pred, Literal: lex, Datatype: datatype}, nil
	default:
		return Triple{}, fmt.Errorf("not a triple atom: predicate %v", a.Predicate)
	}
}

func threeNames(args []ast.BaseTerm) (string, string, string, error) {
	a, err := nameValue(args[0])
	if err != nil {
		return "", "", "", err
	}
	b, err := nameValue(args[1])
	if err != nil {
		return "", "", "", err
	}
	c, err := nameValue(args[2])
	if err != nil {
		return "", "", "", err
	}
	return a, b, c, nil
}

func nameValue(term ast.BaseTerm) (string, error) {
	c, ok := term.(ast.Constant)
	if !ok || c.Type != ast.NameType {
		return "", fmt.Errorf("expected a name constant, got %v", term)
	}
	return c.NameValue()
}

const xsdString = "http://www.w3.org/2001/XMLSchema#string"

// AddTriple stores a single triple. Duplicate triples are no-ops.
func (s *Store) AddTriple(t Triple) error {
	a, err := tripleToAtom(t)
	if err != nil {
		return err
	}
	s.facts.Add(a)
	return nil
}

// RemoveTriple deletes a single triple if present.
func (s *Store) RemoveTriple(t Triple) error {
	a, err := tripleToAtom(t)
	if err != nil {
		return err
	}
	s.facts.Remove(a)
	return nil
}

// MatchSubject returns every triple with the given subject, regardless of
// predicate or object. Used to evaluate delete's `<subject> ?p ?o` pattern.
func (s *Store) MatchSubject(subject string) ([]Triple, error) {
	subj, err := ast.Name(subject)
	if err != nil {
		return nil, fmt.Errorf("subject %q: %w", subject, err)
	}
	var out []Triple
	irisPattern := ast.Atom{
		Predicate: triplePredIRI,
		Args:      []ast.BaseTerm{subj, ast.Variable{Symbol: "P"}, ast.Variable{Symbol: "O"}},
	}
	if err := s.facts.GetFacts(irisPattern, func(a ast.Atom) error {
		t, err := atomToTriple(a)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	}); err != nil {
		return nil, err
	}
	litsPattern := ast.Atom{
		Predicate: triplePredLit,
		Args:      []ast.BaseTerm{subj, ast.Variable{Symbol: "P"}, ast.Variable{Symbol: "L"}, ast.Variable{Symbol: "D"}},
	}
	if err := s.facts.GetFacts(litsPattern, func(a ast.Atom) error {
		t, err := atomToTriple(a)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// MatchPredicate returns every triple using the given predicate,
// regardless of subject or object. Used to evaluate queries whose root
// selection has no fixed subject (e.g. "allUsers").
func (s *Store) MatchPredicate(predicate string) ([]Triple, error) {
	pred, err := ast.Name(predicate)
	if err != nil {
		return nil, fmt.Errorf("predicate %q: %w", predicate, err)
	}
	var out []Triple
	irisPattern := ast.Atom{
		Predicate: triplePredIRI,
		Args:      []ast.BaseTerm{ast.Variable{Symbol: "S"}, pred, ast.Variable{Symbol: "O"}},
	}
	if err := s.facts.GetFacts(irisPattern, func(a ast.Atom) error {
		t, err := atomToTriple(a)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	}); err != nil {
		return nil, err
	}
	litsPattern := ast.Atom{
		Predicate: triplePredLit,
		Args:      []ast.BaseTerm{ast.Variable{Symbol: "S"}, pred, ast.Variable{Symbol: "L"}, ast.Variable{Symbol: "D"}},
	}
	if err := s.facts.GetFacts(litsPattern, func(a ast.Atom) error {
		t, err := atomToTriple(a)
		if err != nil {
			return err
		}
		out = append(out, t)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// MatchSubjectPredicate returns every triple with the given subject and
// predicate, regardless of object. Used to evaluate update's
// `<subject> <predicate> ?old` pattern.
func (s *Store) MatchSubjectPredicate(subject, predicate string) ([]Triple, error) {
	all, err := s.MatchSubject(subject)
	if err != nil {
		return nil, err
	}
	var out []Triple
	for _, t := range all {
		if t.Predicate == predicate {
			out = append(out, t)
		}
	}
	return out, nil
}
