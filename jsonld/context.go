package jsonld

// ExampleContext returns a small normalized context useful as a test
// fixture and as a starting point for a real deployment's context
// document. It mirrors the shape a deployment would load via
// LoadContextFile/LoadContextURL: a `@base`, a `@vocab` fallback, a handful
// of bare-IRI term definitions, and a couple of structured ones including
// an `@id`-typed relationship.
func ExampleContext() map[string]any {
	return map[string]any{
		"@base":  "http://example.org/",
		"@vocab": "http://example.org/",
		"ex":     "http://example.org/",
		"xsd":    "http://www.w3.org/2001/XMLSchema#",
		"foaf":   "http://xmlns.com/foaf/0.1/",

		"User":    "ex:User",
		"Product": "ex:Product",
		"Review":  "ex:Review",

		"name": "http://xmlns.com/foaf/0.1/name",
		"age": map[string]any{
			"@id":   "ex:age",
			"@type": "xsd:integer",
		},
		"rating": map[string]any{
			"@id":   "ex:rating",
			"@type": "xsd:integer",
		},
		"reviewer": "ex:reviewer",

		"product": map[string]any{
			"@id":   "http://schema.org/itemReviewed",
			"@type": "@id",
		},
		"reviews": map[string]any{
			"@id":        "http://schema.org/review",
			"@type":      "@id",
			"@container": "@set",
		},
	}
}
