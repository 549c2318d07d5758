package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fluwatch/pipeline/internal/repository"
)

var (
	auditsLimit          int
	auditsStaleThreshold time.Duration
)

var auditsCmd = &cobra.Command{
	Use:   "audits",
	Short: "List recent import runs",
	Long: `List recent import audit records, newest first. Runs stuck in the
in_progress state longer than the stale threshold are flagged.`,
	RunE: runAudits,
}

func init() {
	auditsCmd.Flags().IntVar(&auditsLimit, "limit", 20, "maximum audits to show")
	auditsCmd.Flags().DurationVar(&auditsStaleThreshold, "stale-after", time.Hour, "flag in_progress runs older than this")
	rootCmd.AddCommand(auditsCmd)
}

func runAudits(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	audits := repository.NewImportAuditRepository(conn.Pool)

	recent, err := audits.ListRecent(ctx, auditsLimit)
	if err != nil {
		return fmt.Errorf("list audits: %w", err)
	}
	if len(recent) == 0 {
		fmt.Println("No imports recorded")
		return nil
	}

	now := time.Now()
	fmt.Printf("%-13s %-28s %-24s %6s %6s %6s %6s %6s  %s\n",
		"SOURCE", "FILE", "STATUS", "TOTAL", "OK", "FAIL", "DUPES", "MERGED", "STARTED")
	fmt.Println(strings.Repeat("-", 117))
	for _, audit := range recent {
		status := string(audit.Status)
		if audit.Stale(auditsStaleThreshold, now) {
			status += " (stale)"
		}
		fmt.Printf("%-13s %-28s %-24s %6d %6d %6d %6d %6d  %s\n",
			audit.Source, audit.Filename, status,
			audit.TotalRows, audit.SuccessfulRows, audit.FailedRows, audit.DuplicateRows,
			audit.MergedRows,
			audit.StartedAt.Format("2006-01-02 15:04:05"))

		for _, msg := range audit.ErrorLog {
			fmt.Printf("    - %s\n", msg)
		}
	}

	return nil
}
