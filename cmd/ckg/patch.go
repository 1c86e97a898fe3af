package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ckg/internal/patch"
	"ckg/internal/track"
)

var (
	patchFileURL string
	patchInput   string
	patchFormat  string
	patchNoCheck bool
)

var patchCmd = &cobra.Command{
	Use:   "patch",
	Short: "Apply a file-scoped extraction patch to the graph",
	Long: `Apply one extraction result for one file: concepts are deduplicated by
name, the file's provenance links are replaced wholesale, and concepts the file
no longer anchors are garbage-collected unless protected or still referenced.

The patch payload is JSON: {"concepts": [{"name", "type"}], "edges":
[{"source", "target", "relation", "weight"}]}. Edge endpoints are names, not
ids.

Examples:
  ckg patch --file file://a.ts --input patch.json
  cat patch.json | ckg patch --file file://a.ts --input -
  ckg patch --file file://gone.ts --input empty.json   # clears the file`,
	Run: runPatch,
}

func init() {
	patchCmd.Flags().StringVar(&patchFileURL, "file", "", "File URL the patch is scoped to (required)")
	patchCmd.Flags().StringVar(&patchInput, "input", "-", "Patch JSON path, or - for stdin")
	patchCmd.Flags().StringVar(&patchFormat, "format", "json", "Output format (json, human)")
	patchCmd.Flags().BoolVar(&patchNoCheck, "no-track-check", false, "Skip the tracked-file check")
	_ = patchCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(patchCmd)
}

func runPatch(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, patchFormat)

	payload, err := readPatchPayload(patchInput)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading patch: %v\n", err)
		os.Exit(1)
	}

	db, store := mustOpenStore(cfg, logger)
	defer db.Close()

	var tracking patch.TrackingStore
	if !patchNoCheck {
		tracking = track.NewStore(db)
	}

	engine := patch.NewEngine(store, mustLoadLens(cfg), newEmbedder(cfg, logger), tracking, logger)
	result, err := engine.Apply(patchFileURL, payload)
	if err != nil {
		// A non-nil result means the creation committed and only the
		// orphan sweep failed: report what landed before exiting.
		if result != nil {
			if output, ferr := FormatResponse(patchResponseCLI{result}, OutputFormat(patchFormat)); ferr == nil {
				fmt.Println(output)
			}
		}
		fmt.Fprintf(os.Stderr, "Error applying patch: %v\n", err)
		os.Exit(1)
	}

	output, err := FormatResponse(patchResponseCLI{result}, OutputFormat(patchFormat))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(output)
}

func readPatchPayload(input string) (*patch.Patch, error) {
	var data []byte
	var err error
	if input == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(input)
	}
	if err != nil {
		return nil, err
	}

	var p patch.Patch
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("malformed patch JSON: %w", err)
	}
	return &p, nil
}

// patchResponseCLI wraps a patch result for CLI output
type patchResponseCLI struct {
	*patch.Result
}

func (r patchResponseCLI) HumanFormat() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Patch %s applied to %s\n", r.PatchID, r.FileURL)
	kvLine(&b, "concepts created", r.ConceptsCreated)
	kvLine(&b, "concepts reused", r.ConceptsReused)
	kvLine(&b, "edges created", r.EdgesCreated)
	kvLine(&b, "provenance links", r.ProvenanceLinks)
	kvLine(&b, "concepts deleted", r.ConceptsDeleted)
	return strings.TrimRight(b.String(), "\n")
}
