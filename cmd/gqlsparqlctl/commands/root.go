package commands

import (
	"github.com/spf13/cobra"

	"github.com/twinfer/gqlsparql/jsonld"
)

var contextPath string

var rootCmd = &cobra.Command{
	Use:   "gqlsparqlctl",
	Short: "Demo driver for the GraphQL-to-SPARQL compiler pipeline",
	Long: `gqlsparqlctl drives the compiler pipeline (parse -> validate -> compile
-> serialize -> execute -> shape) against an in-process triple store, with
no SPARQL endpoint required.

Examples:
  # compile a mutation to SPARQL UPDATE text, without executing it
  gqlsparqlctl compile-mutation 'mutation { createUser(input: {id: "ex:u1", name: "Alice"}) { id } }'

  # compile a query to SPARQL SELECT text
  gqlsparqlctl compile-query 'query { allUsers { name } }'

  # run mutations/queries end to end against an embedded store
  gqlsparqlctl serve-local --db ./demo.sqlite
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&contextPath, "context", "", "path to a JSON-LD context file (defaults to the built-in example context)")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadContext() (*jsonld.Context, error) {
	if contextPath == "" {
		return jsonld.ParseContext(jsonld.ExampleContext())
	}
	return jsonld.LoadContextFile(contextPath)
}
