package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/edigiacomo/archive-maildir/pkg/archive"
	"github.com/edigiacomo/archive-maildir/pkg/maildir"
)

// Job is a single message due for archiving: the entry itself, the folder it
// lives in and the archive folder it belongs to.
type Job struct {
	Entry  maildir.Entry
	From   maildir.Dir
	To     maildir.Dir
	Period string
	Date   time.Time
}

// JobResult pairs a Job with the outcome of its archiver call.
type JobResult struct {
	Job Job
	Err error
}

// WorkerPool archives messages in parallel. A pool executes a single batch:
// create it, Start it, then call ExecuteJobs once.
type WorkerPool struct {
	archiver archive.Archiver
	logger   Logger
	jobChan  chan Job
	results  chan JobResult
	wg       sync.WaitGroup
}

func NewWorkerPool(archiver archive.Archiver, logger Logger) *WorkerPool {
	return &WorkerPool{
		archiver: archiver,
		logger:   logger,
	}
}

// Start begins the worker pool with the specified number of workers
func (wp *WorkerPool) Start(workers int) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	wp.jobChan = make(chan Job, workers)
	wp.results = make(chan JobResult, workers)
	for i := 0; i < workers; i++ {
		wp.wg.Add(1)
		go wp.worker()
	}
}

// ExecuteJobs hands the batch to the workers and blocks until every handed
// out job came back. When ctx is cancelled the remaining jobs are withheld
// and the results collected so far are returned.
func (wp *WorkerPool) ExecuteJobs(ctx context.Context, jobs []Job) []JobResult {
	go func() {
		defer close(wp.jobChan)
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return
			default:
			}
			select {
			case <-ctx.Done():
				return
			case wp.jobChan <- job:
			}
		}
	}()
	go func() {
		wp.wg.Wait()
		close(wp.results)
	}()

	results := make([]JobResult, 0, len(jobs))
	for res := range wp.results {
		results = append(results, res)
	}
	return results
}

func (wp *WorkerPool) worker() {
	defer wp.wg.Done()
	for job := range wp.jobChan {
		wp.logger.Infof("Archiving email %s from folder %s to folder %s", job.Entry.Key, job.From.Path(), job.To.Path())
		err := wp.archiver.Archive(job.Entry, job.From, job.To)
		wp.results <- JobResult{Job: job, Err: err}
	}
}
