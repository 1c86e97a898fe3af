package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"ckg/internal/track"
)

var (
	trackFormat  string
	trackNoIndex bool
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Manage tracked files and indexed content",
	Long: `Register files with the tracking store so patches for them are
accepted, and index their content for retrieval previews.

File URLs are file:// plus the path given.

Examples:
  ckg track add src/auth.ts
  ckg track add src/auth.ts --no-index
  ckg track list
  ckg track rm src/auth.ts`,
}

var trackAddCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "Track a file and index its content",
	Args:  cobra.ExactArgs(1),
	Run:   runTrackAdd,
}

var trackRmCmd = &cobra.Command{
	Use:   "rm PATH",
	Short: "Untrack a file",
	Args:  cobra.ExactArgs(1),
	Run:   runTrackRm,
}

var trackListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked files",
	Run:   runTrackList,
}

func init() {
	trackAddCmd.Flags().BoolVar(&trackNoIndex, "no-index", false, "Skip content indexing")
	trackCmd.PersistentFlags().StringVar(&trackFormat, "format", "json", "Output format (json, human)")
	trackCmd.AddCommand(trackAddCmd, trackRmCmd, trackListCmd)
	rootCmd.AddCommand(trackCmd)
}

// fileURLFor converts a CLI path argument to the stored file URL.
func fileURLFor(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}

func runTrackAdd(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, trackFormat)

	content, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %v\n", err)
		os.Exit(1)
	}

	db, _ := mustOpenStore(cfg, logger)
	defer db.Close()

	store := track.NewStore(db)
	fileURL := fileURLFor(args[0])
	if err := store.Track(fileURL, content); err != nil {
		fmt.Fprintf(os.Stderr, "Error tracking file: %v\n", err)
		os.Exit(1)
	}
	if !trackNoIndex {
		if err := store.Index(fileURL, string(content)); err != nil {
			fmt.Fprintf(os.Stderr, "Error indexing file: %v\n", err)
			os.Exit(1)
		}
	}
	fmt.Printf("Tracked %s\n", fileURL)
}

func runTrackRm(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, trackFormat)

	db, _ := mustOpenStore(cfg, logger)
	defer db.Close()

	if err := track.NewStore(db).Untrack(fileURLFor(args[0])); err != nil {
		fmt.Fprintf(os.Stderr, "Error untracking file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Untracked %s\n", fileURLFor(args[0]))
}

func runTrackList(cmd *cobra.Command, args []string) {
	repoRoot := mustGetRepoRoot()
	cfg := mustLoadConfig(repoRoot)
	logger := newLogger(cfg, trackFormat)

	db, _ := mustOpenStore(cfg, logger)
	defer db.Close()

	files, err := track.NewStore(db).List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing tracked files: %v\n", err)
		os.Exit(1)
	}

	printResponse(trackListCLI{files}, trackFormat)
}

// trackListCLI wraps the tracked-file list for CLI output
type trackListCLI struct {
	Files []*track.TrackedFile `json:"files"`
}

func (r trackListCLI) HumanFormat() string {
	if len(r.Files) == 0 {
		return "No tracked files"
	}
	var b strings.Builder
	for _, f := range r.Files {
		fmt.Fprintf(&b, "  %s  %s\n", f.ContentHash[:12], f.FileURL)
	}
	return strings.TrimRight(b.String(), "\n")
}
