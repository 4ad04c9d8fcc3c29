package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hprof-analysis/internal/analyzer"
	"github.com/hprof-analysis/internal/formatter"
	"github.com/hprof-analysis/internal/repository"
	"github.com/hprof-analysis/internal/storage"
	"github.com/hprof-analysis/pkg/config"
	apperrors "github.com/hprof-analysis/pkg/errors"
	"github.com/hprof-analysis/pkg/model"
	"github.com/hprof-analysis/pkg/telemetry"
	"github.com/hprof-analysis/pkg/writer"
)

var (
	// Analyze command flags
	dumpFile        string
	outputDir       string
	taskUUID        string
	excludeInternal bool
	saveReport      bool
	uploadReport    bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze an HPROF heap dump",
	Long: `Analyze a JVM heap dump in HPROF format ("JAVA PROFILE 1.0.2").

The analyze command parses the dump in independent passes and prints:
  - A frequency table of record tags and heap dump sub-tags
  - The hierarchy of Kotlin coroutine instances with their job states

With -o, the full report is also written as gzipped JSON. With --save and
--upload, the report is persisted to the configured database and object
storage.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	binName := BinName()
	analyzeCmd.Example = `  # Print summary and coroutine hierarchy
  ` + binName + ` analyze --dump-file ./heap.hprof

  # Exclude internal coroutine classes and write the JSON report
  ` + binName + ` analyze --dump-file ./heap.hprof --exclude-internal -o ./output`

	analyzeCmd.Flags().StringVar(&dumpFile, "dump-file", "", "Heap dump file in HPROF format (required)")
	analyzeCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Output directory for the gzipped JSON report")
	analyzeCmd.Flags().StringVar(&taskUUID, "uuid", "", "Task UUID (auto-generated if empty)")
	analyzeCmd.Flags().BoolVar(&excludeInternal, "exclude-internal", false, "Exclude coroutine classes whose name contains \"internal\"")
	analyzeCmd.Flags().BoolVar(&saveReport, "save", false, "Persist the report to the configured database")
	analyzeCmd.Flags().BoolVar(&uploadReport, "upload", false, "Upload the report to the configured object storage")
	analyzeCmd.MarkFlagRequired("dump-file")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := GetLogger()
	ctx := context.Background()

	cfg, err := config.Load(configFile)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "load config", err)
	}

	shutdown, err := telemetry.Init(ctx)
	if err != nil {
		log.Warn("Failed to initialize telemetry: %v", err)
	} else {
		defer shutdown(ctx)
	}

	if _, err := os.Stat(dumpFile); os.IsNotExist(err) {
		return fmt.Errorf("dump file not found: %s", dumpFile)
	}

	uuid := taskUUID
	if uuid == "" {
		uuid = fmt.Sprintf("local-%d", os.Getpid())
	}

	req := &model.AnalysisRequest{
		TaskUUID:  uuid,
		DumpFile:  dumpFile,
		OutputDir: outputDir,
	}

	opts := &analyzer.Options{IncludeInternal: !excludeInternal}
	if verbose {
		opts.Logger = log
	}
	ana := analyzer.NewCoroutineHeapAnalyzer(opts)

	log.Debug("Using analyzer: %s", ana.Name())
	report, err := ana.Analyze(ctx, req)
	if err != nil {
		return err
	}

	formatter.NewHeapFormatter().Write(os.Stdout, report)

	var reportFile string
	if outputDir != "" {
		taskDir := filepath.Join(outputDir, uuid)
		if err := os.MkdirAll(taskDir, 0755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		reportFile = filepath.Join(taskDir, "report.json.gz")
		if err := writer.NewGzipWriter[*model.HeapDumpReport]().WriteToFile(report, reportFile); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Info("Report written to: %s", reportFile)
	}

	if saveReport {
		if err := persistReport(ctx, cfg, report); err != nil {
			return apperrors.Wrap(apperrors.CodeDatabaseError, "save report", err)
		}
		log.Info("Report saved to %s database", cfg.Database.Type)
	}

	if uploadReport {
		if err := upload(ctx, cfg, uuid, report, reportFile); err != nil {
			return apperrors.Wrap(apperrors.CodeUploadError, "upload report", err)
		}
		log.Info("Report uploaded")
	}

	return nil
}

// persistReport stores the report through the configured repository backend.
func persistReport(ctx context.Context, cfg *config.Config, report *model.HeapDumpReport) error {
	db, err := repository.NewGormDB(&cfg.Database)
	if err != nil {
		return err
	}
	repo := repository.NewGormReportRepository(db)
	defer repo.Close()

	if err := repo.Migrate(ctx); err != nil {
		return err
	}
	return repo.SaveReport(ctx, report)
}

// upload pushes the report to the configured object storage, preferring the
// already-written report file when one exists.
func upload(ctx context.Context, cfg *config.Config, uuid string, report *model.HeapDumpReport, reportFile string) error {
	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		return err
	}

	key := filepath.Join("reports", uuid, "report.json.gz")
	if reportFile != "" {
		return store.UploadFile(ctx, key, reportFile)
	}

	var buf bytes.Buffer
	if err := writer.NewGzipWriter[*model.HeapDumpReport]().Write(report, &buf); err != nil {
		return err
	}
	return store.Upload(ctx, key, &buf)
}
