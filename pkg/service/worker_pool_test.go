package service_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edigiacomo/archive-maildir/internal/testutil"
	"github.com/edigiacomo/archive-maildir/pkg/archive"
	"github.com/edigiacomo/archive-maildir/pkg/maildir"
	"github.com/edigiacomo/archive-maildir/pkg/models"
	"github.com/edigiacomo/archive-maildir/pkg/service"
)

// testLogger implements Logger interface for testing
type testLogger struct{}

func (l *testLogger) Infof(format string, args ...interface{})  {}
func (l *testLogger) Errorf(format string, args ...interface{}) {}
func (l *testLogger) Debugf(format string, args ...interface{}) {}

// newJobBatch delivers count messages into a fresh maildir and builds one Job
// per message, all pointing at the same archive folder.
func newJobBatch(t *testing.T, count int) ([]service.Job, maildir.Dir, maildir.Dir) {
	t.Helper()
	from := testutil.NewMaildir(t, filepath.Join(t.TempDir(), "mail"))
	for i := 0; i < count; i++ {
		testutil.DeliverCur(t, from, testutil.Message{
			Key:      "msg-" + string(rune('a'+i)),
			Flags:    "S",
			Received: time.Date(2016, time.May, 21, 22, 8, 25, 0, time.UTC),
		})
	}
	entries, err := from.ListCur()
	require.NoError(t, err)
	require.Len(t, entries, count)

	to := maildir.New(filepath.Join(t.TempDir(), "archive", "2016"))
	jobs := make([]service.Job, 0, count)
	for _, entry := range entries {
		jobs = append(jobs, service.Job{
			Entry:  entry,
			From:   from,
			To:     to,
			Period: "2016",
			Date:   time.Date(2016, time.May, 21, 22, 8, 25, 0, time.UTC),
		})
	}
	return jobs, from, to
}

func TestWorkerPool_ExecuteJobs(t *testing.T) {
	jobs, from, to := newJobBatch(t, 5)

	wp := service.NewWorkerPool(archive.New(models.CopyMode), &testLogger{})
	wp.Start(2)
	results := wp.ExecuteJobs(context.Background(), jobs)

	require.Len(t, results, 5)
	for _, res := range results {
		assert.NoError(t, res.Err)
	}

	fromCount, err := from.CountCur()
	require.NoError(t, err)
	assert.Equal(t, 5, fromCount)

	toCount, err := to.CountCur()
	require.NoError(t, err)
	assert.Equal(t, 5, toCount)
}

func TestWorkerPool_ErrorResults(t *testing.T) {
	jobs, _, to := newJobBatch(t, 3)

	// Remove one message behind the pool's back to force a failure.
	require.NoError(t, os.Remove(jobs[1].Entry.Path))

	wp := service.NewWorkerPool(archive.New(models.CopyMode), &testLogger{})
	wp.Start(2)
	results := wp.ExecuteJobs(context.Background(), jobs)

	require.Len(t, results, 3)
	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
			assert.Equal(t, jobs[1].Entry.Key, res.Job.Entry.Key)
		}
	}
	assert.Equal(t, 1, failed)

	toCount, err := to.CountCur()
	require.NoError(t, err)
	assert.Equal(t, 2, toCount)
}

func TestWorkerPool_CancelledContext(t *testing.T) {
	jobs, from, to := newJobBatch(t, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wp := service.NewWorkerPool(archive.New(models.MoveMode), &testLogger{})
	wp.Start(2)
	results := wp.ExecuteJobs(ctx, jobs)

	assert.Empty(t, results)

	fromCount, err := from.CountCur()
	require.NoError(t, err)
	assert.Equal(t, 4, fromCount)

	_, err = os.Stat(to.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestWorkerPool_NoJobs(t *testing.T) {
	wp := service.NewWorkerPool(archive.New(models.DryRunMode), &testLogger{})
	wp.Start(1)
	results := wp.ExecuteJobs(context.Background(), nil)
	assert.Empty(t, results)
}
