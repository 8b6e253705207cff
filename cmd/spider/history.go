package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"

	"github.com/nao1215/spider/internal/config"
	"github.com/nao1215/spider/internal/database"
	"github.com/nao1215/spider/internal/report"
)

// defaultHistoryLimit is the number of runs listed when --limit is not given.
const defaultHistoryLimit = 20

// NewHistoryCmd creates the history command.
// This command reads runs recorded with --record from the database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded crawl runs",
		Long: `History lists crawl runs saved with 'spider --record', newest first.

With --id it prints the full report of one run, in the same formats the
crawl itself supports. With --digest it finds every saved copy of an image
by its SHA3-256 digest.

Examples:
  # List the last 20 runs
  spider history

  # Show one run as Markdown
  spider history --id 3 --markdown

  # Find where an image was saved before
  spider history --digest 5f0c...

  # Remove a run
  spider history --delete 3`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of runs to list (0 = all)")
	cmd.Flags().Int64P("id", "i", 0,
		"Show the report of the run with this ID")
	cmd.Flags().String("digest", "",
		"List saved images with this SHA3-256 digest")
	cmd.Flags().Int64("delete", 0,
		"Delete the run with this ID")
	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format (with --id)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	cmd.MarkFlagsMutuallyExclusive("json", "markdown")
	cmd.MarkFlagsMutuallyExclusive("id", "digest", "delete")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()

	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	if limit < 0 {
		return errors.New("--limit must not be negative")
	}
	id, err := flags.GetInt64("id")
	if err != nil {
		return err
	}
	digest, err := flags.GetString("digest")
	if err != nil {
		return err
	}
	deleteID, err := flags.GetInt64("delete")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	// Reading history must not create an empty database
	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case deleteID > 0:
		if err := db.DeleteRun(ctx, deleteID); err != nil {
			return err
		}
		fmt.Fprintf(out, "Deleted run %d\n", deleteID)
		return nil

	case id > 0:
		summary, err := db.GetRun(ctx, id)
		if err != nil {
			return err
		}
		var writer report.Writer
		switch {
		case jsonOutput:
			writer = report.NewJSONWriter(out, report.WithPrettyPrint(), report.WithVersion(getVersion()))
		case markdownOutput:
			writer = report.NewMarkdownWriter(out)
		default:
			writer = report.NewSimpleWriter(out, report.WithVerbose(getVerboseFlag(cmd)))
		}
		_, err = writer.Write(summary)
		return err

	case digest != "":
		images, err := db.FindImagesByDigest(ctx, strings.ToLower(digest))
		if err != nil {
			return err
		}
		if len(images) == 0 {
			fmt.Fprintf(out, "No saved image has digest %s\n", digest)
			return nil
		}
		fmt.Fprintf(out, "Images with digest %s (%d):\n\n", digest, len(images))
		for _, img := range images {
			fmt.Fprintf(out, "  run %-4d %s\n", img.RunID, img.Path)
			fmt.Fprintf(out, "           from %s\n", img.URL)
		}
		return nil
	}

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}

	if markdownOutput {
		return writeHistoryMarkdown(out, runs)
	}
	writeHistoryText(out, runs)
	return nil
}

// runStatus returns a short description of how a recorded run ended.
func runStatus(run database.RunRecord) string {
	switch {
	case run.Error != "":
		return "failed"
	case run.Cancelled:
		return "cancelled"
	case run.DownloadsFailed > 0 || run.PagesFailed > 0:
		return "partial"
	default:
		return "ok"
	}
}

// writeHistoryText prints the run list as an aligned table.
func writeHistoryText(out io.Writer, runs []database.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs found.")
		fmt.Fprintln(out, "\nUse 'spider --record <url>' to record a crawl.")
		return
	}

	fmt.Fprintf(out, "Recorded runs (%d):\n\n", len(runs))
	fmt.Fprintf(out, "  %-6s  %-19s  %6s  %6s  %6s  %-9s  %s\n",
		"ID", "Date", "Pages", "Images", "Failed", "Status", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 80))

	for _, run := range runs {
		fmt.Fprintf(out, "  %-6d  %-19s  %6d  %6d  %6d  %-9s  %s\n",
			run.ID,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.PagesVisited,
			run.TotalDownloaded,
			run.DownloadsFailed,
			runStatus(run),
			run.Seed,
		)
	}

	fmt.Fprintln(out, "\nUse 'spider history --id <ID>' to see the full report of a run.")
}

// writeHistoryMarkdown prints the run list as a Markdown table.
func writeHistoryMarkdown(out io.Writer, runs []database.RunRecord) error {
	md := markdown.NewMarkdown(out)
	md.H1("Spider History")
	md.PlainText("")

	if len(runs) == 0 {
		md.Note("No recorded runs found.")
		return md.Build()
	}

	rows := make([][]string, len(runs))
	for i, run := range runs {
		rows[i] = []string{
			strconv.FormatInt(run.ID, 10),
			run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			"`" + run.Seed + "`",
			strconv.Itoa(run.PagesVisited),
			strconv.Itoa(run.TotalDownloaded),
			strconv.Itoa(run.DownloadsFailed),
			run.Duration().Round(time.Millisecond).String(),
			runStatus(run),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"ID", "Date", "Seed", "Pages", "Images", "Failed", "Duration", "Status"},
		Rows:   rows,
	})

	return md.Build()
}
