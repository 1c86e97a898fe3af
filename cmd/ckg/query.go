package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ckg/internal/search"
	"ckg/internal/track"
)

var (
	queryDepth  int
	queryLimit  int
	queryMode   string
	queryFormat string
)

var queryCmd = &cobra.Command{
	Use:   "query TEXT",
	Short: "Search the knowledge graph",
	Long: `Run a hybrid retrieval query: exact name matching, vector-similarity
search over concept embeddings, and bounded graph expansion.

Examples:
  ckg query "authentication"
  ckg query "token refresh" --depth=2 --limit=20
  ckg query foo --mode=exact --format=human`,
	Args: cobra.ExactArgs(1),
	Run:  runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryDepth, "depth", 1, "Graph expansion depth (0-2)")
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Maximum concepts to return (1-50)")
	queryCmd.Flags().StringVar(&queryMode, "mode", "hybrid", "Search mode (exact, semantic, hybrid)")
	queryCmd.Flags().StringVar(&queryFormat, "format", "json", "Output format (json, human)")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) {
	start := time.Now()
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, queryFormat)

	db, store := mustOpenStore(cfg, logger)
	defer db.Close()

	engine := search.NewEngine(store, newEmbedder(cfg, logger), track.NewStore(db), search.Config{
		DefaultLimit: cfg.Query.DefaultLimit,
		MaxLimit:     cfg.Query.MaxLimit,
		PreviewChars: cfg.Query.PreviewChars,
	}, logger)

	result, err := engine.Query(args[0], search.Options{
		Depth: queryDepth,
		Limit: queryLimit,
		Mode:  search.Mode(queryMode),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running query: %v\n", err)
		os.Exit(1)
	}

	output, err := FormatResponse(queryResponseCLI{result}, OutputFormat(queryFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)

	logger.Debug("Query completed", map[string]interface{}{
		"concepts": len(result.Concepts),
		"files":    len(result.Files),
		"duration": time.Since(start).Milliseconds(),
	})
}

// queryResponseCLI wraps a retrieval result for CLI output
type queryResponseCLI struct {
	*search.Result
}

func (r queryResponseCLI) HumanFormat() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Query %q (%s): %d concepts, %d files\n",
		r.Query, r.Mode, len(r.Concepts), len(r.Files))

	for _, hit := range r.Concepts {
		line := fmt.Sprintf("  [%d] %s (%s) %s", hit.Concept.ID, hit.Concept.Name, hit.Concept.Type, hit.Relevance)
		if hit.Score > 0 {
			line += fmt.Sprintf(" score=%.3f", hit.Score)
		}
		b.WriteString(line + "\n")
	}

	if len(r.Graph.Edges) > 0 {
		fmt.Fprintf(&b, "Edges:\n")
		for _, e := range r.Graph.Edges {
			fmt.Fprintf(&b, "  %d -[%s %.1f]-> %d\n", e.Source, e.Relation, e.Weight, e.Target)
		}
	}

	if len(r.Files) > 0 {
		fmt.Fprintf(&b, "Files:\n")
		for _, f := range r.Files {
			fmt.Fprintf(&b, "  %s\n", f.FileURL)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}
