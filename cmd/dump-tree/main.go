// dump-tree prints the normalized structure tree an adapter builds for a
// source file. It is a debugging aid for adapter work.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/mvp-joe/usagegraph/internal/indexer/parsers"
	"github.com/mvp-joe/usagegraph/internal/structure"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: dump-tree <file>")
		os.Exit(2)
	}
	path := os.Args[1]

	source, err := os.ReadFile(path)
	if err != nil {
		panic(err)
	}

	registry := parsers.DefaultRegistry()
	lang, ok := registry.Detect(path)
	if !ok {
		fmt.Fprintf(os.Stderr, "no adapter for %s\n", path)
		os.Exit(1)
	}
	adapter, _ := registry.Get(lang)

	result, err := adapter.Parse(context.Background(), path, source)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("=== %s (%s) ===\n", path, lang)
	walkTree(result.Root, 0)

	if len(result.Diagnostics) > 0 {
		fmt.Println("\n=== Diagnostics ===")
		for _, d := range result.Diagnostics {
			fmt.Println(d)
		}
	}
}

func walkTree(node *structure.Node, depth int) {
	if node == nil {
		return
	}

	fmt.Printf("%s%s %s [%d:%d]", strings.Repeat("  ", depth), node.Kind, node.Name,
		node.Span.Start.Line, node.Span.Start.Column)
	if node.TypeAnnotation != nil {
		fmt.Printf(" type=%s", formatRef(*node.TypeAnnotation))
	}
	if node.Target != nil {
		fmt.Printf(" target=%s", formatRef(*node.Target))
	}
	if len(node.Generics) > 0 {
		refs := make([]string, len(node.Generics))
		for i, g := range node.Generics {
			refs[i] = formatRef(g)
		}
		fmt.Printf(" generics=<%s>", strings.Join(refs, ", "))
	}
	fmt.Println()

	for _, child := range node.Children {
		walkTree(child, depth+1)
	}
}

func formatRef(r structure.NameRef) string {
	s := strings.Join(r.Path, "::")
	if r.Primitive {
		s += "(primitive)"
	}
	return s
}
