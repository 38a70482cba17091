// dreamsight is the DreamSight AI backend: a Vietnamese dream-interpretation
// service combining Jungian psychology, Tarot, I Ching and the folk dream
// book, powered by Gemini with RAG over a local knowledge base.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhatai1995/DreamSight-AI/internal/config"
	"github.com/nhatai1995/DreamSight-AI/internal/logging"
)

var (
	// Global flags
	cfgPath string
	verbose bool

	// Loaded in PersistentPreRunE, shared by all subcommands.
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "dreamsight",
	Short: "DreamSight AI - dream interpretation service",
	Long: `DreamSight AI interprets dreams through three lenses:

  1. Psychology: Jungian analysis (archetypes, shadow work, emotions)
  2. Mystical: Tarot and I Ching readings
  3. Lucky numbers: the Vietnamese folk dream book (Sổ Mơ)

The serve command starts the HTTP API; ingest and lookup are
operational helpers for the knowledge base and the dream book.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}

		level := cfg.Logging.Level
		if verbose {
			level = "debug"
		}
		if err := logging.Init(level, cfg.Logging.Format); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

// versionCmd prints the build identity.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the DreamSight version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("%s %s\n", cfg.Name, cfg.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(lookupCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
