package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/edigiacomo/archive-maildir/pkg/archive"
	"github.com/edigiacomo/archive-maildir/pkg/maildir"
	"github.com/edigiacomo/archive-maildir/pkg/models"
	"github.com/edigiacomo/archive-maildir/pkg/storage"
)

// Logger defines the logging interface for ArchiveService
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

const dateLayout = "2006-01-02"

// scanConcurrency caps how many folders are listed in parallel.
const scanConcurrency = 4

// Options configures a single archive run.
type Options struct {
	// Maildir is the path of the maildir to archive.
	Maildir string
	// OutputDir is where archive folders are created. Defaults to ".".
	OutputDir string
	// Prefix and Suffix decorate the name of each archive folder.
	Prefix string
	Suffix string
	// SplitBy selects the granularity of the archive folders. Defaults to
	// one folder per year.
	SplitBy models.Split
	// Mode selects copy, move or dry-run. Defaults to dry-run.
	Mode models.Mode
	// Before is the threshold date: messages received strictly before it are
	// archived. Zero means one year before now.
	Before time.Time
	// Workers caps the number of concurrent archivers. Zero means NumCPU.
	Workers int
	// Recursive archives Maildir++ subfolders of the maildir as well.
	Recursive bool
}

// Report is the outcome of an archive run: the journaled run itself plus the
// number of archived messages per archive period.
type Report struct {
	models.Run
	ByPeriod map[string]int
}

// ArchiveService runs the archiver over maildirs and journals the outcome.
// An archive run scans the cur directory of the maildir, selects the
// messages received strictly before the threshold date and hands them to a
// pool of archivers, one archive folder per period.
type ArchiveService struct {
	store  storage.Store
	logger Logger
}

func NewArchiveService(store storage.Store, logger Logger) *ArchiveService {
	return &ArchiveService{
		store:  store,
		logger: logger,
	}
}

// DefaultBefore returns the default archive threshold: the current date one
// year back, normalized by the calendar (Feb 29 becomes Mar 1).
func DefaultBefore(now time.Time) time.Time {
	return dateOnly(now.UTC()).AddDate(-1, 0, 0)
}

// Run executes a full archive pass over the maildir described by opts. The
// returned error reports failures of the run itself; individual messages
// that could not be archived only mark the run as failed and are counted in
// the report.
func (s *ArchiveService) Run(ctx context.Context, opts Options) (Report, error) {
	opts = withDefaults(opts)
	rep := Report{ByPeriod: make(map[string]int)}

	if opts.Maildir == "" {
		return rep, errors.New("maildir path cannot be empty")
	}
	if _, err := os.Stat(filepath.Join(opts.Maildir, "cur")); err != nil {
		return rep, errors.Wrapf(err, "not a maildir: %s", opts.Maildir)
	}

	root := maildir.New(opts.Maildir)
	folders := []maildir.Dir{root}
	if opts.Recursive {
		subfolders, err := root.ListFolders()
		if err != nil {
			return rep, err
		}
		folders = append(folders, subfolders...)
	}

	run := models.Run{
		ID:        uuid.NewString(),
		Maildir:   opts.Maildir,
		OutputDir: opts.OutputDir,
		Mode:      opts.Mode,
		SplitBy:   opts.SplitBy,
		Before:    opts.Before,
		Status:    models.RunningRunStatus,
		StartedAt: time.Now().UTC(),
	}
	if err := s.store.SaveRun(run); err != nil {
		return rep, errors.Wrap(err, "journaling run")
	}

	finish := func(status models.RunStatus, errMsg string) {
		now := time.Now().UTC()
		run.Status = status
		run.ErrorMsg = errMsg
		run.FinishedAt = &now
		if err := s.store.FinishRun(run); err != nil {
			s.logger.Errorf("Failed to finalize run %s in journal: %v", run.ID, err)
		}
		rep.Run = run
	}

	s.logger.Infof("Archiving emails in maildir %s older than %s", opts.Maildir, opts.Before.Format(dateLayout))

	jobs, err := s.scan(ctx, folders, &run, opts)
	if err != nil {
		finish(models.FailedRunStatus, err.Error())
		return rep, err
	}
	run.Matched = len(jobs)

	pool := NewWorkerPool(archive.New(opts.Mode), s.logger)
	pool.Start(opts.Workers)
	for _, res := range pool.ExecuteJobs(ctx, jobs) {
		if res.Err != nil {
			run.Failed++
			s.logger.Errorf("Error while archiving email %s: %v", res.Job.Entry.Key, res.Err)
			continue
		}
		run.Archived++
		rep.ByPeriod[res.Job.Period]++
		if opts.Mode == models.DryRunMode {
			continue
		}
		rec := models.Record{
			RunID:       run.ID,
			MessageKey:  res.Job.Entry.Key,
			SourceDir:   res.Job.From.Path(),
			TargetDir:   res.Job.To.Path(),
			MessageDate: res.Job.Date,
			ArchivedAt:  time.Now().UTC(),
		}
		if err := s.store.SaveRecord(rec); err != nil {
			s.logger.Errorf("Failed to journal email %s: %v", rec.MessageKey, err)
		}
	}

	if err := ctx.Err(); err != nil {
		finish(models.FailedRunStatus, err.Error())
		return rep, errors.Wrap(err, "archive run interrupted")
	}
	if run.Failed > 0 {
		finish(models.FailedRunStatus, fmt.Sprintf("%d messages could not be archived", run.Failed))
	} else {
		finish(models.CompletedRunStatus, "")
	}
	s.logger.Infof("Run %s finished: %d archived, %d skipped, %d failed out of %d scanned",
		run.ID, run.Archived, run.Skipped, run.Failed, run.Scanned)
	return rep, nil
}

// scan lists the folders in parallel and selects the messages older than the
// threshold, building one Job per match. Counters for scanned, skipped and
// unparsable messages are accumulated on the run.
func (s *ArchiveService) scan(ctx context.Context, folders []maildir.Dir, run *models.Run, opts Options) ([]Job, error) {
	var (
		mu   sync.Mutex
		jobs []Job
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scanConcurrency)
	for _, folder := range folders {
		folder := folder
		g.Go(func() error {
			entries, err := folder.ListCur()
			if err != nil {
				return errors.Wrapf(err, "scanning folder %s", folder.Path())
			}
			var local []Job
			var scanned, skipped, failed int
			for _, entry := range entries {
				if err := gctx.Err(); err != nil {
					return err
				}
				scanned++
				received, err := entry.Received()
				if err != nil {
					failed++
					s.logger.Errorf("Error while extracting date from email %s: %v", entry.Key, err)
					continue
				}
				day := dateOnly(received.UTC())
				if !day.Before(opts.Before) {
					skipped++
					s.logger.Debugf("Ignoring email %s: date %s is not older than %s", entry.Key, day.Format(dateLayout), opts.Before.Format(dateLayout))
					continue
				}
				s.logger.Debugf("Email %s date %s is older than %s", entry.Key, day.Format(dateLayout), opts.Before.Format(dateLayout))
				period := opts.SplitBy.Format(day)
				local = append(local, Job{
					Entry:  entry,
					From:   folder,
					To:     maildir.New(filepath.Join(opts.OutputDir, opts.Prefix+period+opts.Suffix)),
					Period: period,
					Date:   received,
				})
			}
			mu.Lock()
			jobs = append(jobs, local...)
			run.Scanned += scanned
			run.Skipped += skipped
			run.Failed += failed
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return jobs, nil
}

func withDefaults(opts Options) Options {
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	if opts.Mode == "" {
		opts.Mode = models.DryRunMode
	}
	if opts.SplitBy == "" {
		opts.SplitBy = models.YearSplit
	}
	if opts.Before.IsZero() {
		opts.Before = DefaultBefore(time.Now())
	} else {
		opts.Before = dateOnly(opts.Before.UTC())
	}
	return opts
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
