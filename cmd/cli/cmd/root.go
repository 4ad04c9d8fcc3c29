package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hprof-analysis/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configFile string
	logger     utils.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hprof-analysis",
	Short: "A JVM heap dump analysis tool",
	Long: `hprof-analysis is a CLI tool for analyzing JVM heap dumps in the HPROF
binary format ("JAVA PROFILE 1.0.2").

It summarizes the record stream and reconstructs the parent/child hierarchy
of Kotlin structured coroutines found in the dumped heap, annotated with the
state of each coroutine job.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file path (default: search standard locations)")

	binName := BinName()
	rootCmd.Example = `  # Summarize a heap dump and print the coroutine hierarchy
  ` + binName + ` analyze --dump-file ./heap.hprof

  # Write the report as gzipped JSON next to the console output
  ` + binName + ` analyze --dump-file ./heap.hprof -o ./output

  # Persist the report to the configured database
  ` + binName + ` analyze --dump-file ./heap.hprof --save`
}

// GetLogger returns the configured logger.
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
