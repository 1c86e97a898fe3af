package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed TEXT",
	Short: "Embed text with the configured backend",
	Long: `Print the unit vector the configured embedding backend produces for the
text, or null when no backend is available.

Examples:
  ckg embed "token refresh"`,
	Args: cobra.ExactArgs(1),
	Run:  runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, "json")

	backend := newEmbedder(cfg, logger)
	if backend == nil {
		fmt.Println("null")
		return
	}

	vector, err := backend.Embed(args[0])
	if err != nil {
		fmt.Println("null")
		return
	}

	data, err := json.Marshal(vector)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error formatting vector: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}
