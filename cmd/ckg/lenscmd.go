package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"ckg/internal/lens"
)

var lensFormat string

var lensCmd = &cobra.Command{
	Use:   "lens",
	Short: "Manage the type and relation vocabularies",
	Long: `Show, export, and import the lens: golden concept types, golden
relations, and the protected types the orphan sweep never deletes.

Examples:
  ckg lens show
  ckg lens export > lens.yaml
  ckg lens import lens.yaml`,
}

var lensShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active lens",
	Run:   runLensShow,
}

var lensExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the active lens as YAML to stdout",
	Run:   runLensExport,
}

var lensImportCmd = &cobra.Command{
	Use:   "import PATH",
	Short: "Replace the active lens from a YAML file (- for stdin)",
	Args:  cobra.ExactArgs(1),
	Run:   runLensImport,
}

func init() {
	lensCmd.PersistentFlags().StringVar(&lensFormat, "format", "json", "Output format (json, human)")
	lensCmd.AddCommand(lensShowCmd, lensExportCmd, lensImportCmd)
	rootCmd.AddCommand(lensCmd)
}

func runLensShow(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(mustGetRepoRoot())
	printResponse(lensCLI{mustLoadLens(cfg)}, lensFormat)
}

func runLensExport(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(mustGetRepoRoot())
	data, err := yaml.Marshal(mustLoadLens(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding lens: %v\n", err)
		os.Exit(1)
	}
	fmt.Print(string(data))
}

func runLensImport(cmd *cobra.Command, args []string) {
	cfg := mustLoadConfig(mustGetRepoRoot())

	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading lens: %v\n", err)
		os.Exit(1)
	}

	var l lens.Lens
	if err := yaml.Unmarshal(data, &l); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing lens: %v\n", err)
		os.Exit(1)
	}

	if err := l.Save(cfg.Lens.Path); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving lens: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Imported lens to %s\n", cfg.Lens.Path)
}

// lensCLI wraps a lens for CLI output
type lensCLI struct {
	*lens.Lens
}

func (r lensCLI) HumanFormat() string {
	var b strings.Builder
	b.WriteString("Golden types:\n")
	for _, t := range r.GoldenTypes {
		fmt.Fprintf(&b, "  %-12s %s\n", t.Type, t.Description)
	}
	b.WriteString("Golden relations:\n")
	for _, rel := range r.GoldenRelations {
		sym := ""
		if rel.Symmetric {
			sym = " (symmetric)"
		}
		fmt.Fprintf(&b, "  %-12s %s%s\n", rel.Rel, rel.Description, sym)
	}
	fmt.Fprintf(&b, "Protected types: %s", strings.Join(r.ProtectedTypes, ", "))
	return b.String()
}
