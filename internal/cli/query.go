package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/usagegraph/internal/graph"
)

var (
	queryKinds        []string
	queryDepth        int
	queryMaxResults   int
	queryContext      bool
	queryContextLines int
	queryJSON         bool
	querySQLite       bool
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <operation> <symbol>",
	Short: "Query the usage graph",
	Long: `Query walks the stored usage graph from a symbol.

Operations:
  uses             what the symbol depends on
  used_by          what depends on the symbol
  implementations  types implementing a trait or interface
  composes         types transitively held by the symbol's fields

The symbol is a qualified id (src/shapes::Circle) or a unique simple name.

Examples:
  usagegraph query used_by Circle
  usagegraph query uses src/canvas::Canvas --kind Composition --depth 2
  usagegraph query composes Canvas --json
`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringSliceVarP(&queryKinds, "kind", "k", nil, "Only follow edges of these pattern kinds")
	queryCmd.Flags().IntVarP(&queryDepth, "depth", "d", graph.DefaultDepth, "Traversal depth")
	queryCmd.Flags().IntVarP(&queryMaxResults, "max-results", "n", graph.DefaultMaxResults, "Maximum number of results")
	queryCmd.Flags().BoolVar(&queryContext, "context", false, "Show source lines around each site")
	queryCmd.Flags().IntVar(&queryContextLines, "context-lines", graph.DefaultContextLines, "Lines of context around each site")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "Output as JSON")
	queryCmd.Flags().BoolVar(&querySQLite, "sqlite", false, "Read the graph from SQLite")
}

func runQuery(cmd *cobra.Command, args []string) error {
	op, err := parseQueryOperation(args[0])
	if err != nil {
		return err
	}
	kinds, err := parseKinds(queryKinds)
	if err != nil {
		return err
	}

	p, err := loadProject(nil)
	if err != nil {
		return err
	}
	g, err := loadGraph(p, querySQLite)
	if err != nil {
		return err
	}

	searcher, err := graph.NewSearcherFunc(func() (*graph.Graph, error) { return g, nil }, p.Root)
	if err != nil {
		return err
	}
	defer searcher.Close()

	resp, err := searcher.Query(cmd.Context(), &graph.QueryRequest{
		Operation:      op,
		Target:         args[1],
		Kinds:          kinds,
		IncludeContext: queryContext,
		ContextLines:   queryContextLines,
		Depth:          queryDepth,
		MaxResults:     queryMaxResults,
	})
	if err != nil {
		return err
	}

	if queryJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	printQueryResponse(cmd.OutOrStdout(), resp)
	return nil
}

func parseQueryOperation(name string) (graph.QueryOperation, error) {
	names := make([]string, len(graph.Operations))
	for i, op := range graph.Operations {
		if string(op) == name {
			return op, nil
		}
		names[i] = string(op)
	}
	return "", fmt.Errorf("invalid operation: %s (must be one of: %s)", name, strings.Join(names, ", "))
}

func parseKinds(names []string) ([]graph.Kind, error) {
	var kinds []graph.Kind
	for _, name := range names {
		kind, ok := graph.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown pattern kind: %s", name)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

// printQueryResponse renders results one per line, indented by depth.
func printQueryResponse(w io.Writer, resp *graph.QueryResponse) {
	fmt.Fprintf(w, "%s %s: %d result(s)", resp.Operation, resp.Target, resp.TotalReturned)
	if resp.Truncated {
		fmt.Fprintf(w, " of %d", resp.TotalFound)
	}
	fmt.Fprintln(w)

	for _, r := range resp.Results {
		name := "?" + r.Raw
		if r.Symbol != nil {
			name = r.Symbol.ID
		}
		indent := strings.Repeat("  ", max(r.Depth, 1))
		fmt.Fprintf(w, "%s%-22s %s  %s:%d:%d\n", indent, r.Kind, name, r.Site.File, r.Site.Start.Line, r.Site.Start.Column)
		if r.Context != "" {
			for _, line := range strings.Split(strings.TrimRight(r.Context, "\n"), "\n") {
				fmt.Fprintf(w, "%s    | %s\n", indent, line)
			}
		}
	}
}
