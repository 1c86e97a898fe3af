package main

import (
	"github.com/spf13/cobra"

	"ckg/internal/version"
)

var (
	// repoRootFlag is the CLI --repo flag value
	repoRootFlag string
)

var rootCmd = &cobra.Command{
	Use:   "ckg",
	Short: "CKG - Concept Knowledge Graph",
	Long: `CKG (Concept Knowledge Graph) maintains a typed knowledge graph over a
source repository: concepts, relations between them, and provenance links back
to source files. Extraction patches are absorbed atomically per file, orphaned
concepts are garbage-collected, and retrieval combines exact matching,
vector-similarity search, and bounded graph expansion.`,
	Version: version.Version,
}

func init() {
	rootCmd.SetVersionTemplate("CKG version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&repoRootFlag, "repo", "",
		"Repository root (default: current directory)")
}
