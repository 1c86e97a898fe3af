package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ckg/internal/config"
	"ckg/internal/lens"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a CKG store in the repository",
	Long: `Create the .ckg directory with a fresh graph store, default
configuration, and default lens.

Examples:
  ckg init
  ckg init --repo /path/to/repo`,
	Run: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := config.Default(repoRoot)
	logger := newLogger(cfg, "human")

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing config: %v\n", err)
		os.Exit(1)
	}

	if _, err := os.Stat(cfg.Lens.Path); os.IsNotExist(err) {
		if err := lens.Default().Save(cfg.Lens.Path); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing lens: %v\n", err)
			os.Exit(1)
		}
	}

	db, _ := mustOpenStore(cfg, logger)
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Error closing store: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Initialized CKG store in %s/.ckg\n", repoRoot)
}
