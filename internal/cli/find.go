package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mvp-joe/usagegraph/internal/graph"
	"github.com/mvp-joe/usagegraph/internal/search"
)

var (
	findKind     string
	findLanguage string
	findLimit    int
	findJSON     bool
	findSQLite   bool
)

// findCmd represents the find command
var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Search symbols in the usage graph",
	Long: `Find searches symbol names, ids and files with keyword query syntax.

Examples:
  usagegraph find Circle
  usagegraph find 'name:Shape*' --kind Trait
  usagegraph find 'file:src/geo' --json
`,
	Args: cobra.ExactArgs(1),
	RunE: runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)
	findCmd.Flags().StringVar(&findKind, "kind", "", "Filter by symbol kind (Type, Trait, Function, Module)")
	findCmd.Flags().StringVar(&findLanguage, "language", "", "Filter by language tag")
	findCmd.Flags().IntVarP(&findLimit, "limit", "n", search.DefaultLimit, "Maximum number of results")
	findCmd.Flags().BoolVar(&findJSON, "json", false, "Output as JSON")
	findCmd.Flags().BoolVar(&findSQLite, "sqlite", false, "Read the graph from SQLite")
}

func runFind(cmd *cobra.Command, args []string) error {
	p, err := loadProject(nil)
	if err != nil {
		return err
	}
	g, err := loadGraph(p, findSQLite)
	if err != nil {
		return err
	}

	index, err := search.NewSymbolIndex(cmd.Context(), g)
	if err != nil {
		return err
	}
	defer index.Close()

	results, err := index.Search(cmd.Context(), args[0], &search.SearchOptions{
		Kind:     graph.SymbolKind(findKind),
		Language: findLanguage,
		Limit:    findLimit,
	})
	if err != nil {
		return err
	}

	if findJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	printSymbolResults(cmd.OutOrStdout(), results)
	return nil
}

// printSymbolResults renders one symbol per line with its usage counts.
func printSymbolResults(w io.Writer, results []*search.SymbolResult) {
	if len(results) == 0 {
		fmt.Fprintln(w, "No symbols found")
		return
	}
	for _, r := range results {
		location := "(external)"
		if r.Symbol.Span != nil {
			location = fmt.Sprintf("%s:%d", r.Symbol.Span.File, r.Symbol.Span.Start.Line)
		}
		fmt.Fprintf(w, "%-8s %-40s uses=%-3d used_by=%-3d %s\n",
			r.Symbol.Kind, r.Symbol.ID, r.Uses, r.UsedBy, location)
	}
}
