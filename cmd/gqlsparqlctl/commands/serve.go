package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	gqlsparql "github.com/twinfer/gqlsparql"
	"github.com/twinfer/gqlsparql/config"
	"github.com/twinfer/gqlsparql/endpoint"
	"github.com/twinfer/gqlsparql/factstore"
)

var serveLocalDBPath string

var serveLocalCmd = &cobra.Command{
	Use:   "serve-local",
	Short: "Run mutations/queries end to end against an embedded SQLite triple store",
	Long: `serve-local reads GraphQL operations one per line from stdin and
executes each one against an embedded SQLite-backed triple store, with no
network SPARQL endpoint involved. A line starting with "mutation" is routed
to Client.Mutate; anything else is routed to Client.Query.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, err := loadContext()
		if err != nil {
			return fmt.Errorf("loading context: %w", err)
		}

		db, err := factstore.NewFactStoreSQLite(serveLocalDBPath)
		if err != nil {
			return fmt.Errorf("opening store: %w", err)
		}
		defer db.Close()

		driver := &endpoint.LocalDriver{Store: factstore.NewStore(db)}
		client, err := gqlsparql.New(config.Defaults(), ctx, driver, nil, nil, nil)
		if err != nil {
			return fmt.Errorf("building client: %w", err)
		}
		defer client.Close()

		scanner := bufio.NewScanner(cmd.InOrStdin())
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if err := runLine(cmd, client, line); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
			}
		}
		return scanner.Err()
	},
}

func runLine(cmd *cobra.Command, client *gqlsparql.Client, line string) error {
	ctx := context.Background()
	if strings.HasPrefix(strings.TrimSpace(line), "mutation") {
		resp, err := client.Mutate(ctx, line)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "success=%t subject=%s\n", resp.Success, resp.Subject)
		return nil
	}
	resp, err := client.Query(ctx, line)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%v\n", resp.Data)
	return nil
}

func init() {
	serveLocalCmd.Flags().StringVar(&serveLocalDBPath, "db", ":memory:", "path to the SQLite database file (\":memory:\" for an ephemeral store)")
	rootCmd.AddCommand(serveLocalCmd)
}
