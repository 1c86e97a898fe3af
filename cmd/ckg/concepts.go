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
	conceptsType   string
	conceptsFormat string
)

var conceptsCmd = &cobra.Command{
	Use:   "concepts",
	Short: "Inspect and edit concepts directly",
	Long: `List, show, add, and remove concepts without going through a patch.

Manually added concepts carry no provenance, so they are garbage-collection
candidates the moment a patch orphans them; protect them via a lens protected
type if they must survive.

Examples:
  ckg concepts list
  ckg concepts list --type=Entity
  ckg concepts add "Billing" Process
  ckg concepts show 3
  ckg concepts rm 3`,
}

var conceptsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List concepts",
	Run:   runConceptsList,
}

var conceptsAddCmd = &cobra.Command{
	Use:   "add NAME TYPE",
	Short: "Add a concept",
	Args:  cobra.ExactArgs(2),
	Run:   runConceptsAdd,
}

var conceptsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one concept with its provenance",
	Args:  cobra.ExactArgs(1),
	Run:   runConceptsShow,
}

var conceptsRmCmd = &cobra.Command{
	Use:   "rm ID",
	Short: "Delete a concept",
	Args:  cobra.ExactArgs(1),
	Run:   runConceptsRm,
}

func init() {
	conceptsListCmd.Flags().StringVar(&conceptsType, "type", "", "Filter by concept type")
	conceptsCmd.PersistentFlags().StringVar(&conceptsFormat, "format", "json", "Output format (json, human)")
	conceptsCmd.AddCommand(conceptsListCmd, conceptsAddCmd, conceptsShowCmd, conceptsRmCmd)
	rootCmd.AddCommand(conceptsCmd)
}

func runConceptsList(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, conceptsFormat)

	db, store := mustOpenStore(cfg, logger)
	defer db.Close()

	concepts, err := store.ListConcepts(conceptsType)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing concepts: %v\n", err)
		os.Exit(1)
	}

	printResponse(conceptListCLI{concepts}, conceptsFormat)
}

func runConceptsAdd(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, conceptsFormat)

	db, store := mustOpenStore(cfg, logger)
	defer db.Close()

	id, err := store.CreateConcept(args[0], args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating concept: %v\n", err)
		os.Exit(1)
	}

	if backend := newEmbedder(cfg, logger); backend != nil {
		if vec, embErr := backend.Embed(args[0]); embErr == nil {
			if err := store.SetConceptVector(id, vec); err != nil {
				logger.Warn("storing concept vector failed", map[string]interface{}{
					"concept_id": id,
					"error":      err.Error(),
				})
			}
		}
	}

	fmt.Printf("Created concept %d\n", id)
}

func runConceptsShow(cmd *cobra.Command, args []string) {
	id := mustParseID(args[0])
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, conceptsFormat)

	db, store := mustOpenStore(cfg, logger)
	defer db.Close()

	concept, err := store.GetConcept(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading concept: %v\n", err)
		os.Exit(1)
	}
	links, err := store.ListProvenance(id, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading provenance: %v\n", err)
		os.Exit(1)
	}

	printResponse(conceptShowCLI{Concept: concept, Provenance: links, HasVector: concept.HasVector()}, conceptsFormat)
}

func runConceptsRm(cmd *cobra.Command, args []string) {
	id := mustParseID(args[0])
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, conceptsFormat)

	db, store := mustOpenStore(cfg, logger)
	defer db.Close()

	if err := store.DeleteConcept(id); err != nil {
		fmt.Fprintf(os.Stderr, "Error deleting concept: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Deleted concept %d\n", id)
}

func mustParseID(s string) int64 {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		fmt.Fprintf(os.Stderr, "Invalid id %q\n", s)
		os.Exit(1)
	}
	return id
}

func printResponse(response interface{}, format string) {
	output, err := FormatResponse(response, OutputFormat(format))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

// conceptListCLI wraps a concept list for CLI output
type conceptListCLI struct {
	Concepts []*graph.Concept `json:"concepts"`
}

func (r conceptListCLI) HumanFormat() string {
	if len(r.Concepts) == 0 {
		return "No concepts"
	}
	var b strings.Builder
	for _, c := range r.Concepts {
		marker := " "
		if c.HasVector() {
			marker = "*"
		}
		fmt.Fprintf(&b, "  [%d]%s %s (%s)\n", c.ID, marker, c.Name, c.Type)
	}
	return strings.TrimRight(b.String(), "\n")
}

// conceptShowCLI wraps one concept for CLI output
type conceptShowCLI struct {
	Concept    *graph.Concept          `json:"concept"`
	Provenance []*graph.ProvenanceLink `json:"provenance"`
	HasVector  bool                    `json:"hasVector"`
}

func (r conceptShowCLI) HumanFormat() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Concept %d\n", r.Concept.ID)
	kvLine(&b, "name", r.Concept.Name)
	kvLine(&b, "type", r.Concept.Type)
	kvLine(&b, "has vector", r.HasVector)
	for _, l := range r.Provenance {
		kvLine(&b, "provenance", l.FileURL)
	}
	return strings.TrimRight(b.String(), "\n")
}
