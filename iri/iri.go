// Package iri validates IRIs and mutation input shapes before they reach
// the compiler, and provides a coarse safety net for user-supplied SPARQL
// query text.
package iri

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"bitbucket.org/creachadair/stringset"
)

// ValidationError carries the key/value that failed validation (either may
// be empty, e.g. for top-level IRI checks) and a human-readable reason. It
// never carries the original input by reference — constructing one never
// mutates the caller's data.
type ValidationError struct {
	Key    string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("validation: field %q: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("validation: %s", e.Reason)
}

var disallowedChars = stringset.New("<", ">", `"`, "{", "}", "|", `\`, "^", "`")

var schemePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.-]*:`)

var urnPattern = regexp.MustCompile(`^urn:[A-Za-z0-9][A-Za-z0-9-]{0,31}:[A-Za-z0-9()+,\-.:=@;$_!*'%/?#]+$`)

// ValidIRI reports whether s satisfies the IRI contract: non-empty,
// contains no disallowed characters or control codepoints, carries a
// syntactically valid scheme, and satisfies that scheme's specific rules
// (urn:, file:, http(s):, or "no authority form" for anything else).
func ValidIRI(s string) error {
	if strings.TrimSpace(s) == "" {
		return &ValidationError{Value: s, Reason: "IRI is empty or all whitespace"}
	}
	for _, r := range s {
		if r <= 0x20 {
			return &ValidationError{Value: s, Reason: "IRI contains a control character or whitespace"}
		}
	}
	for _, ch := range disallowedChars.Elements() {
		if strings.Contains(s, ch) {
			return &ValidationError{Value: s, Reason: fmt.Sprintf("IRI contains illegal character %q", ch)}
		}
	}
	if !schemePattern.MatchString(s) {
		return &ValidationError{Value: s, Reason: "IRI has no valid scheme"}
	}
	scheme := s[:strings.IndexByte(s, ':')]
	switch strings.ToLower(scheme) {
	case "urn":
		if !urnPattern.MatchString(s) {
			return &ValidationError{Value: s, Reason: "malformed urn: IRI"}
		}
	case "file":
		if !strings.HasPrefix(s, "file:///") {
			return &ValidationError{Value: s, Reason: "file: IRI must be of the form file:///..."}
		}
	case "http", "https":
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return &ValidationError{Value: s, Reason: "http(s): IRI must parse as a URL with a non-empty host"}
		}
	default:
		if strings.Contains(s[len(scheme)+1:], "//") {
			return &ValidationError{Value: s, Reason: fmt.Sprintf("scheme %q may not use the authority (//) form", scheme)}
		}
	}
	return nil
}

// looksLikeIDKey reports whether key case-insensitively contains "id",
// the mutation input contract's trigger for IRI validation.
func looksLikeIDKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "id")
}

// ValidateMutationInput walks a decoded mutation input object (as produced
// by the GraphQL AST walker: map[string]any, []any, string, float64/int64,
// bool, or nil) and validates every "id"-like key's string value as an
// IRI. It never mutates input.
func ValidateMutationInput(input map[string]any) error {
	if input == nil {
		return &ValidationError{Reason: "mutation input must be a non-null object"}
	}
	return validateFields(input)
}

func validateFields(input map[string]any) error {
	for key, val := range input {
		if err := validateValue(key, val); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(key string, val any) error {
	switch v := val.(type) {
	case nil, bool, string, float64, float32, int, int32, int64:
		if s, ok := v.(string); ok && looksLikeIDKey(key) {
			if err := ValidIRI(s); err != nil {
				reason := err.Error()
				if ve, ok := err.(*ValidationError); ok {
					reason = ve.Reason
				}
				return &ValidationError{Key: key, Value: s, Reason: reason}
			}
		}
		return nil
	case []any:
		for _, elem := range v {
			if err := validateValue(key, elem); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for nestedKey, nestedVal := range v {
			if err := validateValue(nestedKey, nestedVal); err != nil {
				return err
			}
		}
		return nil
	default:
		return &ValidationError{Key: key, Reason: fmt.Sprintf("unsupported value type %T", val)}
	}
}

var forbiddenVerbs = stringset.New("DROP", "CREATE", "LOAD", "CLEAR", "DELETE", "INSERT", "UPDATE")

// QueryValidationOptions configures ValidateSPARQLQuery.
type QueryValidationOptions struct {
	MaxLength int
}

// ValidateSPARQLQuery is a coarse safety net for user-provided SPARQL query
// text; it is not a SPARQL parser. It rejects queries over a configured
// length bound, queries whose text contains (by case-insensitive substring
// match — deliberately overcautious, see DESIGN.md) any forbidden update
// verb, queries that don't start with SELECT or CONSTRUCT, queries missing
// a WHERE clause, and queries with unbalanced braces.
func ValidateSPARQLQuery(query string, opts QueryValidationOptions) error {
	if opts.MaxLength > 0 && len(query) > opts.MaxLength {
		return &ValidationError{Reason: fmt.Sprintf("query exceeds maximum length of %d bytes", opts.MaxLength)}
	}
	upper := strings.ToUpper(query)
	for _, verb := range forbiddenVerbs.Elements() {
		if strings.Contains(upper, verb) {
			return &ValidationError{Reason: fmt.Sprintf("query contains forbidden verb %q", verb)}
		}
	}
	trimmed := strings.TrimSpace(upper)
	if !strings.HasPrefix(trimmed, "SELECT") && !strings.HasPrefix(trimmed, "CONSTRUCT") {
		return &ValidationError{Reason: "query must start with SELECT or CONSTRUCT"}
	}
	if !strings.Contains(upper, "WHERE") {
		return &ValidationError{Reason: "query must contain a WHERE clause"}
	}
	depth := 0
	for _, r := range query {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return &ValidationError{Reason: "query has unbalanced braces"}
			}
		}
	}
	if depth != 0 {
		return &ValidationError{Reason: "query has unbalanced braces"}
	}
	return nil
}
