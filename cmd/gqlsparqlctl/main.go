// Command gqlsparqlctl is a demo CLI driving the compiler pipeline end to
// end against an in-process endpoint.LocalDriver: no SPARQL endpoint is
// needed to try out compile-mutation, compile-query, and serve-local. It
// has no stable surface; it exists to exercise the library, not as a
// product.
package main

import (
	"fmt"
	"os"

	"github.com/twinfer/gqlsparql/cmd/gqlsparqlctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
