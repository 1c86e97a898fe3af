package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"ckg/internal/graph"
)

var (
	edgesRelation string
	edgesWeight   float64
	edgesFormat   string
)

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "Inspect and edit edges directly",
	Long: `List, add, and remove edges between concepts by id.

Edges are not deduplicated: adding the same (source, target, relation) twice
creates two rows with distinct ids.

Examples:
  ckg edges list
  ckg edges list --relation=uses
  ckg edges add 1 2 uses --weight=0.8
  ckg edges rm 5`,
}

var edgesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List edges",
	Run:   runEdgesList,
}

var edgesAddCmd = &cobra.Command{
	Use:   "add SOURCE TARGET RELATION",
	Short: "Add an edge between two concept ids",
	Args:  cobra.ExactArgs(3),
	Run:   runEdgesAdd,
}

var edgesRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete an edge",
	Args:  cobra.ExactArgs(1),
	Run:   runEdgesRm,
}

func init() {
	edgesListCmd.Flags().StringVar(&edgesRelation, "relation", "", "Filter by relation")
	edgesAddCmd.Flags().Float64Var(&edgesWeight, "weight", 1.0, "Edge weight")
	edgesCmd.PersistentFlags().StringVar(&edgesFormat, "format", "json", "Output format (json, human)")
	edgesCmd.AddCommand(edgesListCmd, edgesAddCmd, edgesRmCmd)
	rootCmd.AddCommand(edgesCmd)
}

func runEdgesList(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, edgesFormat)

	db, store := mustOpenStore(cfg, logger)
	defer db.Close()

	edges, err := store.ListEdges(edgesRelation)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing edges: %v\n", err)
		os.Exit(1)
	}

	printResponse(edgeListCLI{edges}, edgesFormat)
}

func runEdgesAdd(cmd *cobra.Command, args []string) {
	source, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid source id %q\n", args[0])
		os.Exit(1)
	}
	target, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid target id %q\n", args[1])
		os.Exit(1)
	}

	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, edgesFormat)

	db, store := mustOpenStore(cfg, logger)
	defer db.Close()

	id, err := store.CreateEdge(source, target, args[2], edgesWeight)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating edge: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Created edge %d\n", id)
}

func runEdgesRm(cmd *cobra.Command, args []string) {
	id := mustParseID(args[0])
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, edgesFormat)

	db, store := mustOpenStore(cfg, logger)
	defer db.Close()

	if err := store.DeleteEdge(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting edge: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted edge %d\n", id)
}

// edgeListCLI wraps an edge list for CLI output
type edgeListCLI struct {
	Edges []*graph.Edge `json:"edges"`
}

func (r edgeListCLI) HumanFormat() string {
	if len(r.Edges) == 0 {
		return "No edges"
	}
	var b strings.Builder
	for _, e := range r.Edges {
		fmt.Fprintf(&b, "  [%d] %d -[%s %.1f]-> %d\n", e.ID, e.Source, e.Relation, e.Weight, e.Target)
	}
	return strings.TrimRight(b.String(), "\n")
}
