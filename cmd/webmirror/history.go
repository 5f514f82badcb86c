package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nao1215/webmirror/internal/config"
	"github.com/nao1215/webmirror/internal/database"
	"github.com/nao1215/webmirror/internal/report"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [page-url]",
		Short: "Show previous mirror runs",
		Long: `History lists the mirror runs recorded in the local database, newest
first. Pass a page URL to list only the runs of that page.

Examples:
  # List every run
  webmirror history

  # List the runs of one page
  webmirror history https://example.com/

  # List every page that was ever mirrored
  webmirror history --urls

  # Show the full report of run 3 as JSON
  webmirror history --id 3 --json

  # Show the per-resource results of run 3
  webmirror history --id 3 --resources`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().Int64("id", 0, "Show the full report of the run with this ID")
	cmd.Flags().Bool("resources", false, "With --id, list the resource results only")
	cmd.Flags().Bool("urls", false, "List mirrored page URLs")
	cmd.Flags().BoolP("json", "j", false, "Output JSON report (with --id)")
	cmd.Flags().BoolP("markdown", "m", false, "Output Markdown report (with --id)")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the history database")

	return cmd
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	id, err := flags.GetInt64("id")
	if err != nil {
		return err
	}
	resources, err := flags.GetBool("resources")
	if err != nil {
		return err
	}
	urls, err := flags.GetBool("urls")
	if err != nil {
		return err
	}
	jsonReport, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownReport, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonReport && markdownReport {
		return config.ErrConflictingReportFormats
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if _, err := os.Stat(filepath.Join(dbDir, database.FileName)); errors.Is(err, os.ErrNotExist) {
		_, err := fmt.Fprintln(out, "no mirror runs recorded")
		return err
	}

	db, err := database.Open(dbDir, database.Options{EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	switch {
	case urls:
		mirrored, err := db.ListMirroredURLs(ctx)
		if err != nil {
			return err
		}
		for _, u := range mirrored {
			fmt.Fprintln(out, u)
		}
		return nil

	case id > 0 && resources:
		outcomes, err := db.GetResources(ctx, id)
		if err != nil {
			return err
		}
		if len(outcomes) == 0 {
			if _, err := db.GetRun(ctx, id); err != nil {
				return err
			}
		}
		for _, o := range outcomes {
			fmt.Fprintln(out, report.FormatOutcome(o))
		}
		return nil

	case id > 0:
		run, err := db.GetRun(ctx, id)
		if err != nil {
			return err
		}
		verbose := getBoolFlag(cmd, "verbose")
		_, err = newReportWriter(jsonReport, markdownReport, verbose, out).Write(run)
		return err
	}

	var pageURL string
	if len(args) == 1 {
		pageURL = args[0]
	}
	runs, err := db.ListRuns(ctx, pageURL)
	if err != nil {
		return err
	}
	return report.WriteHistory(out, runs)
}
