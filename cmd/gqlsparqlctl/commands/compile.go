package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/twinfer/gqlsparql/compile"
	"github.com/twinfer/gqlsparql/gql"
	"github.com/twinfer/gqlsparql/querycompile"
	"github.com/twinfer/gqlsparql/serialize"
)

var compileMutationCmd = &cobra.Command{
	Use:   "compile-mutation <graphql mutation text>",
	Short: "Compile a GraphQL mutation to SPARQL UPDATE text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := loadContext()
		if err != nil {
			return fmt.Errorf("loading context: %w", err)
		}
		op, err := gql.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parsing mutation: %w", err)
		}
		result, err := compile.Compile(op, ctx)
		if err != nil {
			return fmt.Errorf("compiling mutation: %w", err)
		}
		sparql, err := serialize.CompositeUpdate(result.Update)
		if err != nil {
			return fmt.Errorf("serializing update: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "subject: %s\n\n%s\n", result.Subject, sparql)
		return nil
	},
}

var compileQueryCmd = &cobra.Command{
	Use:   "compile-query <graphql query text>",
	Short: "Compile a GraphQL query to SPARQL SELECT text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := loadContext()
		if err != nil {
			return fmt.Errorf("loading context: %w", err)
		}
		op, err := gql.Parse(args[0])
		if err != nil {
			return fmt.Errorf("parsing query: %w", err)
		}
		compiled, err := querycompile.BasicCompiler{}.Compile(op, ctx)
		if err != nil {
			return fmt.Errorf("compiling query: %w", err)
		}
		sparql, err := serialize.Project(compiled.Project)
		if err != nil {
			return fmt.Errorf("serializing query: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), sparql)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(compileMutationCmd)
	rootCmd.AddCommand(compileQueryCmd)
}
