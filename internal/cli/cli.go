package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	internal_http "github.com/edigiacomo/archive-maildir/internal/http"
	"github.com/edigiacomo/archive-maildir/internal/log"
	internal_storage "github.com/edigiacomo/archive-maildir/internal/storage"
	"github.com/edigiacomo/archive-maildir/pkg/models"
	"github.com/edigiacomo/archive-maildir/pkg/service"
	"github.com/edigiacomo/archive-maildir/pkg/storage"
)

// journalEnv names the environment variable consulted for the journal DSN
// when --journal is not given.
const journalEnv = "ARCHIVE_MAILDIR_JOURNAL"

const dateLayout = "2006-01-02"

func SetupCLI(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase logging verbosity (repeat for more detail)")
	rootCmd.PersistentFlags().StringP("journal", "j", "", "Journal database DSN (defaults to "+journalEnv+")")
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		// LOG_LEVEL keeps working when -v is not given.
		if cmd.Flags().Changed("verbose") {
			if verbosity, err := cmd.Flags().GetCount("verbose"); err == nil {
				log.SetVerbosity(verbosity)
			}
		}
		if err := godotenv.Load(); err != nil {
			log.GetLogger().Debugf("No .env file loaded: %v", err)
		}
	}

	archiveCmd := &cobra.Command{
		Use:   "archive [maildir]",
		Short: "Archive old emails from a maildir",
		Long: `Archive emails older than a threshold date into per-period archive
maildirs next to each other under the output directory. The default mode is
dry-run, which only reports what would be archived.`,
		Args: cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			opts, err := archiveOptions(cmd, args[0])
			if err != nil {
				log.GetLogger().Errorf("Invalid arguments: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			log.GetLogger().Debugf("Running archive with options: %+v", opts)
			store := initStore(cmd)
			defer store.Close()
			svc := service.NewArchiveService(store, log.GetLogger())

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rep, err := svc.Run(ctx, opts)
			if err != nil {
				log.GetLogger().Errorf("Archive run failed: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			printReport(rep)
			if rep.Failed > 0 {
				os.Exit(1)
			}
		},
	}
	archiveCmd.Flags().StringP("output-dir", "o", ".", "Directory where the archive maildirs are created")
	archiveCmd.Flags().StringP("prefix", "p", "", "Prefix of the archive maildir names")
	archiveCmd.Flags().StringP("suffix", "s", "", "Suffix of the archive maildir names")
	archiveCmd.Flags().StringP("split-by", "S", string(models.YearSplit), "Granularity of the archive maildirs: year, month or day")
	archiveCmd.Flags().StringP("mode", "m", string(models.DryRunMode), "Archive mode: copy, move or dry-run")
	archiveCmd.Flags().StringP("before", "b", "", "Archive messages older than this date (YYYY-MM-DD, default one year ago)")
	archiveCmd.Flags().Int("workers", 0, "Number of archive workers (default: number of CPUs)")
	archiveCmd.Flags().BoolP("recursive", "r", false, "Archive the maildir subfolders too")

	historyCmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show journaled archive runs",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			store := requireStore(cmd)
			defer store.Close()
			if len(args) == 1 {
				showRun(store, args[0])
				return
			}
			listRuns(store)
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive journal over HTTP",
		Run: func(cmd *cobra.Command, args []string) {
			// The server logs at info level unless -v overrides it.
			if !cmd.Flags().Changed("verbose") {
				log.SetVerbosity(3)
			}
			port := stringFlag(cmd, "port")
			store := requireStore(cmd)
			defer store.Close()
			if err := internal_http.StartServer(port, store); err != nil {
				log.GetLogger().Errorf("Server stopped: %v", err)
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "Port to listen on")

	rootCmd.AddCommand(archiveCmd, historyCmd, serveCmd)
}

func archiveOptions(cmd *cobra.Command, maildirPath string) (service.Options, error) {
	split, err := models.ParseSplit(stringFlag(cmd, "split-by"))
	if err != nil {
		return service.Options{}, err
	}
	mode, err := models.ParseMode(stringFlag(cmd, "mode"))
	if err != nil {
		return service.Options{}, err
	}
	var before time.Time
	if beforeStr := stringFlag(cmd, "before"); beforeStr != "" {
		before, err = time.Parse(dateLayout, beforeStr)
		if err != nil {
			return service.Options{}, errors.Errorf("invalid before date %q: expected YYYY-MM-DD", beforeStr)
		}
	}
	return service.Options{
		Maildir:   maildirPath,
		OutputDir: stringFlag(cmd, "output-dir"),
		Prefix:    stringFlag(cmd, "prefix"),
		Suffix:    stringFlag(cmd, "suffix"),
		SplitBy:   split,
		Mode:      mode,
		Before:    before,
		Workers:   intFlag(cmd, "workers"),
		Recursive: boolFlag(cmd, "recursive"),
	}, nil
}

func printReport(rep service.Report) {
	verb := "Archived"
	if rep.Mode == models.DryRunMode {
		verb = "Would archive"
	}
	fmt.Fprintf(os.Stdout, "%s %d of %d messages (%d skipped, %d failed)\n",
		verb, rep.Archived, rep.Scanned, rep.Skipped, rep.Failed)
	periods := make([]string, 0, len(rep.ByPeriod))
	for period := range rep.ByPeriod {
		periods = append(periods, period)
	}
	sort.Strings(periods)
	for _, period := range periods {
		fmt.Fprintf(os.Stdout, "- %s: %d messages\n", period, rep.ByPeriod[period])
	}
}

func listRuns(store storage.Store) {
	runs, err := store.ListRuns()
	if err != nil {
		log.GetLogger().Errorf("Failed to list runs: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
		os.Exit(1)
	}
	if len(runs) == 0 {
		fmt.Fprintf(os.Stdout, "No runs found.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Runs:\n")
	for _, r := range runs {
		fmt.Fprintf(os.Stdout, "- ID: %s, Maildir: %s, Mode: %s, Status: %s, Archived: %d/%d, Started: %s\n",
			r.ID, r.Maildir, r.Mode, r.Status, r.Archived, r.Scanned, r.StartedAt.Format(time.RFC3339))
	}
}

func showRun(store storage.Store, id string) {
	run, err := store.GetRun(id)
	if err != nil {
		log.GetLogger().Errorf("Failed to get run %s: %v", id, err)
		fmt.Fprintf(os.Stderr, "Error: failed to get run: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Run %s\n", run.ID)
	fmt.Fprintf(os.Stdout, "  Maildir:    %s\n", run.Maildir)
	fmt.Fprintf(os.Stdout, "  Output dir: %s\n", run.OutputDir)
	fmt.Fprintf(os.Stdout, "  Mode:       %s\n", run.Mode)
	fmt.Fprintf(os.Stdout, "  Split by:   %s\n", run.SplitBy)
	fmt.Fprintf(os.Stdout, "  Before:     %s\n", run.Before.Format(dateLayout))
	fmt.Fprintf(os.Stdout, "  Status:     %s\n", run.Status)
	if run.ErrorMsg != "" {
		fmt.Fprintf(os.Stdout, "  Error:      %s\n", run.ErrorMsg)
	}
	fmt.Fprintf(os.Stdout, "  Scanned %d, matched %d, archived %d, skipped %d, failed %d\n",
		run.Scanned, run.Matched, run.Archived, run.Skipped, run.Failed)
	if len(run.Records) == 0 {
		return
	}
	fmt.Fprintf(os.Stdout, "Records:\n")
	for _, rec := range run.Records {
		fmt.Fprintf(os.Stdout, "- %s: %s -> %s (%s)\n",
			rec.MessageKey, rec.SourceDir, rec.TargetDir, rec.MessageDate.Format(dateLayout))
	}
}

// initStore opens the configured journal, falling back to an in-memory one
// so an archive run never requires a database.
func initStore(cmd *cobra.Command) storage.Store {
	dsn := journalDSN(cmd)
	if dsn == "" {
		log.GetLogger().Debugf("No journal configured, using in-memory journal")
		return storage.NewMemStore()
	}
	store, err := internal_storage.InitStore(dsn)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize journal: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to initialize journal: %v\n", err)
		os.Exit(1)
	}
	return store
}

// requireStore is initStore for the commands that read the journal, where an
// in-memory fallback would only ever show an empty history.
func requireStore(cmd *cobra.Command) storage.Store {
	dsn := journalDSN(cmd)
	if dsn == "" {
		fmt.Fprintf(os.Stderr, "Error: a journal database is required (--journal or %s)\n", journalEnv)
		os.Exit(1)
	}
	store, err := internal_storage.InitStore(dsn)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize journal: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to initialize journal: %v\n", err)
		os.Exit(1)
	}
	return store
}

func journalDSN(cmd *cobra.Command) string {
	dsn := stringFlag(cmd, "journal")
	if dsn == "" {
		dsn = os.Getenv(journalEnv)
	}
	return dsn
}

func stringFlag(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		log.GetLogger().Errorf("Error retrieving %s flag: %v", name, err)
		os.Exit(1)
	}
	return v
}

func intFlag(cmd *cobra.Command, name string) int {
	v, err := cmd.Flags().GetInt(name)
	if err != nil {
		log.GetLogger().Errorf("Error retrieving %s flag: %v", name, err)
		os.Exit(1)
	}
	return v
}

func boolFlag(cmd *cobra.Command, name string) bool {
	v, err := cmd.Flags().GetBool(name)
	if err != nil {
		log.GetLogger().Errorf("Error retrieving %s flag: %v", name, err)
		os.Exit(1)
	}
	return v
}
