package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluwatch/pipeline/internal/geocode"
	"github.com/fluwatch/pipeline/internal/loader"
	"github.com/fluwatch/pipeline/internal/parser"
	"github.com/fluwatch/pipeline/internal/pipeline"
	"github.com/fluwatch/pipeline/internal/repository"
)

var (
	ingestSkipGeocode bool
	ingestBatchSize   int
	ingestCountyTable string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [source=file ...]",
	Short: "Ingest surveillance files into the case store",
	Long: `Ingest one or more source files. Each argument pairs a source name with
a file path; with no arguments the sources configured under pipeline.sources
in config.yaml are used.

Known sources: ` + strings.Join(parser.SourceNames(), ", ") + `

Examples:
  fluwatch ingest                                    # all configured sources
  fluwatch ingest commercial=data/commercial.csv
  fluwatch ingest wild_bird=birds.csv mammal=mammals.xlsx --skip-geocode`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&ingestSkipGeocode, "skip-geocode", false, "skip coordinate resolution")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 0, "rows per insert transaction (0 = default)")
	ingestCmd.Flags().StringVar(&ingestCountyTable, "county-table", "", "CSV file with county centroid coordinates")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	sourceFiles, err := resolveSourceFiles(args)
	if err != nil {
		return err
	}
	if len(sourceFiles) == 0 {
		return fmt.Errorf("no source files: pass source=file arguments or set pipeline.sources in config.yaml")
	}

	batchSize := cfg.BatchSize
	if ingestBatchSize > 0 {
		batchSize = ingestBatchSize
	}

	geocoder := geocode.NewResolver(logger)
	countyTable := cfg.CountyTable
	if ingestCountyTable != "" {
		countyTable = ingestCountyTable
	}
	if countyTable != "" {
		content, err := os.ReadFile(countyTable)
		if err != nil {
			return fmt.Errorf("read county table: %w", err)
		}
		if err := geocoder.LoadCountyTable(content); err != nil {
			return fmt.Errorf("load county table: %w", err)
		}
	}

	cases := repository.NewCaseRepository(conn)
	audits := repository.NewImportAuditRepository(conn.Pool)
	rowErrors := repository.NewRowErrorRepository(conn.Pool)
	ld := loader.NewLoader(cases, audits, batchSize, logger)

	pipe := pipeline.New(geocoder, ld, rowErrors, logger, pipeline.Options{
		SkipGeocode: ingestSkipGeocode || cfg.SkipGeocode,
	})

	summary, err := pipe.Run(ctx, parser.Sources(), sourceFiles)
	printSummary(summary)
	if err != nil {
		return err
	}

	total, err := cases.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("\nTotal cases in store: %d\n", total)
	return nil
}

// resolveSourceFiles merges configured sources with source=file arguments;
// arguments win.
func resolveSourceFiles(args []string) (map[string]string, error) {
	files := map[string]string{}
	if len(args) == 0 {
		for name, path := range cfg.SourceFiles {
			files[name] = path
		}
		return files, nil
	}

	for _, arg := range args {
		name, path, ok := strings.Cut(arg, "=")
		if !ok || name == "" || path == "" {
			return nil, fmt.Errorf("invalid source argument %q, expected source=file", arg)
		}
		if _, known := parser.Sources()[name]; !known {
			return nil, fmt.Errorf("unknown source %q, known sources: %s", name, strings.Join(parser.SourceNames(), ", "))
		}
		files[name] = path
	}
	return files, nil
}

func printSummary(summary pipeline.Summary) {
	if len(summary.Results) == 0 {
		return
	}

	fmt.Printf("%-12s %-28s %-24s %8s %8s %8s\n", "SOURCE", "FILE", "STATUS", "LOADED", "FAILED", "DUPES")
	fmt.Println(strings.Repeat("-", 94))
	for _, result := range summary.Results {
		status := string(result.Audit.Status)
		if result.AlreadyImported {
			status = "already_imported"
		}
		fmt.Printf("%-12s %-28s %-24s %8d %8d %8d\n",
			result.Source, result.Filename, status,
			result.Audit.SuccessfulRows, result.Audit.FailedRows, result.Audit.DuplicateRows)
	}
	fmt.Printf("\nProcessed %d sources in %s: %d loaded, %d failed, %d duplicates\n",
		len(summary.Results), summary.Elapsed.Round(time.Millisecond),
		summary.Successful, summary.Failed, summary.Duplicates)
}
