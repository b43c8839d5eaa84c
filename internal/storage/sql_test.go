package storage_test

import (
	"path/filepath"
	"testing"
	"time"

	internal_storage "github.com/edigiacomo/archive-maildir/internal/storage"
	"github.com/edigiacomo/archive-maildir/internal/testutil"
	"github.com/edigiacomo/archive-maildir/pkg/models"
	"github.com/edigiacomo/archive-maildir/pkg/storage"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRun(started time.Time) models.Run {
	return models.Run{
		ID:        uuid.NewString(),
		Maildir:   "/var/mail/user",
		OutputDir: "/var/mail/archive",
		Mode:      models.CopyMode,
		SplitBy:   models.YearSplit,
		Before:    time.Date(2018, 1, 1, 0, 0, 0, 0, time.UTC),
		Status:    models.RunningRunStatus,
		StartedAt: started,
	}
}

func TestSQLStore(t *testing.T) {
	// Helper to create a fresh sqlite journal per subtest
	newStore := func(t *testing.T) *internal_storage.SQLStore {
		store, err := internal_storage.InitStore("sqlite:" + filepath.Join(t.TempDir(), "journal.db"))
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() })
		return store
	}

	started := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	// Test SaveRun
	t.Run("SaveRun", func(t *testing.T) {
		store := newStore(t)
		run := newRun(started)
		err := store.SaveRun(run)
		assert.NoError(t, err)

		saved, err := store.GetRun(run.ID)
		assert.NoError(t, err)
		assert.Equal(t, run.ID, saved.ID)
		assert.Equal(t, run.Maildir, saved.Maildir)
		assert.Equal(t, run.OutputDir, saved.OutputDir)
		assert.Equal(t, models.CopyMode, saved.Mode)
		assert.Equal(t, models.YearSplit, saved.SplitBy)
		assert.Equal(t, models.RunningRunStatus, saved.Status)
		assert.True(t, saved.Before.Equal(run.Before))
		assert.True(t, saved.StartedAt.Equal(run.StartedAt))
		assert.Nil(t, saved.FinishedAt)
		assert.Empty(t, saved.Records)
	})

	// GetNonExistingRun
	t.Run("GetNonExistingRun", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetRun(uuid.NewString())
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	// Test FinishRun
	t.Run("FinishRun", func(t *testing.T) {
		store := newStore(t)
		run := newRun(started)
		err := store.SaveRun(run)
		assert.NoError(t, err)

		run.Status = models.CompletedRunStatus
		run.Scanned = 5
		run.Matched = 3
		run.Archived = 3
		run.Skipped = 2
		finished := started.Add(2 * time.Second)
		run.FinishedAt = &finished
		err = store.FinishRun(run)
		assert.NoError(t, err)

		updated, err := store.GetRun(run.ID)
		assert.NoError(t, err)
		assert.Equal(t, models.CompletedRunStatus, updated.Status)
		assert.Equal(t, 5, updated.Scanned)
		assert.Equal(t, 3, updated.Matched)
		assert.Equal(t, 3, updated.Archived)
		assert.Equal(t, 2, updated.Skipped)
		require.NotNil(t, updated.FinishedAt)
		assert.True(t, updated.FinishedAt.Equal(finished))
	})

	// Test FinishRun with an error message
	t.Run("FinishFailedRun", func(t *testing.T) {
		store := newStore(t)
		run := newRun(started)
		err := store.SaveRun(run)
		assert.NoError(t, err)

		run.Status = models.FailedRunStatus
		run.Failed = 1
		run.ErrorMsg = "1 messages could not be archived"
		finished := started.Add(time.Second)
		run.FinishedAt = &finished
		err = store.FinishRun(run)
		assert.NoError(t, err)

		updated, err := store.GetRun(run.ID)
		assert.NoError(t, err)
		assert.Equal(t, models.FailedRunStatus, updated.Status)
		assert.Equal(t, 1, updated.Failed)
		assert.Equal(t, "1 messages could not be archived", updated.ErrorMsg)
	})

	// FinishNonExistingRun
	t.Run("FinishNonExistingRun", func(t *testing.T) {
		store := newStore(t)
		err := store.FinishRun(newRun(started))
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	// Test ListRuns (Empty)
	t.Run("ListRuns returns empty list when no runs exist", func(t *testing.T) {
		store := newStore(t)
		runs, err := store.ListRuns()
		assert.NoError(t, err)
		assert.NotNil(t, runs)
		assert.Empty(t, runs)
	})

	// Test ListRuns (Populated)
	t.Run("ListRuns returns runs in descending order", func(t *testing.T) {
		store := newStore(t)
		run1 := newRun(started.Add(-2 * time.Hour))
		run2 := newRun(started.Add(-1 * time.Hour))
		run3 := newRun(started)

		assert.NoError(t, store.SaveRun(run1))
		assert.NoError(t, store.SaveRun(run2))
		assert.NoError(t, store.SaveRun(run3))

		runs, err := store.ListRuns()
		assert.NoError(t, err)
		assert.Len(t, runs, 3)
		assert.Equal(t, run3.ID, runs[0].ID)
		assert.Equal(t, run2.ID, runs[1].ID)
		assert.Equal(t, run1.ID, runs[2].ID)
	})

	// Test SaveRecord and ListRecords
	t.Run("SaveRecord", func(t *testing.T) {
		store := newStore(t)
		run := newRun(started)
		err := store.SaveRun(run)
		assert.NoError(t, err)

		rec1 := models.Record{
			RunID:       run.ID,
			MessageKey:  "1463868505.38518452d49213cb409aa1db32f53184",
			SourceDir:   "/var/mail/user",
			TargetDir:   "/var/mail/archive/2016",
			MessageDate: time.Date(2016, 5, 21, 22, 8, 25, 0, time.UTC),
			ArchivedAt:  started,
		}
		rec2 := models.Record{
			RunID:       run.ID,
			MessageKey:  "1488445200.9f51151c3fd7a2b17cf92eafe3f54525",
			SourceDir:   "/var/mail/user",
			TargetDir:   "/var/mail/archive/2017",
			MessageDate: time.Date(2017, 3, 2, 9, 0, 0, 0, time.UTC),
			ArchivedAt:  started.Add(time.Second),
		}
		assert.NoError(t, store.SaveRecord(rec1))
		assert.NoError(t, store.SaveRecord(rec2))

		records, err := store.ListRecords(run.ID)
		assert.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, rec1.MessageKey, records[0].MessageKey)
		assert.Equal(t, rec1.TargetDir, records[0].TargetDir)
		assert.True(t, records[0].MessageDate.Equal(rec1.MessageDate))
		assert.Equal(t, rec2.MessageKey, records[1].MessageKey)

		retrieved, err := store.GetRun(run.ID)
		assert.NoError(t, err)
		assert.Len(t, retrieved.Records, 2)
	})

	// Test ListRecords (Empty)
	t.Run("ListRecords returns empty list when no records exist", func(t *testing.T) {
		store := newStore(t)
		run := newRun(started)
		err := store.SaveRun(run)
		assert.NoError(t, err)

		records, err := store.ListRecords(run.ID)
		assert.NoError(t, err)
		assert.NotNil(t, records)
		assert.Empty(t, records)
	})

	// Migrations must be safe to apply twice
	t.Run("MigrateTwice", func(t *testing.T) {
		store := newStore(t)
		assert.NoError(t, store.Migrate())
	})
}

func TestSQLStorePostgres(t *testing.T) {
	testDB := testutil.SetupPostgres(t)
	defer testDB.Teardown(t)

	store, err := internal_storage.InitStore(testDB.ConnStr)
	require.NoError(t, err)
	defer store.Close()

	started := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	run := newRun(started)
	require.NoError(t, store.SaveRun(run))

	rec := models.Record{
		RunID:       run.ID,
		MessageKey:  "1463868505.38518452d49213cb409aa1db32f53184",
		SourceDir:   "/var/mail/user",
		TargetDir:   "/var/mail/archive/2016",
		MessageDate: time.Date(2016, 5, 21, 22, 8, 25, 0, time.UTC),
		ArchivedAt:  started,
	}
	require.NoError(t, store.SaveRecord(rec))

	run.Status = models.CompletedRunStatus
	run.Scanned = 3
	run.Matched = 1
	run.Archived = 1
	run.Skipped = 2
	finished := started.Add(2 * time.Second)
	run.FinishedAt = &finished
	require.NoError(t, store.FinishRun(run))

	saved, err := store.GetRun(run.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.CompletedRunStatus, saved.Status)
	assert.Equal(t, 1, saved.Archived)
	require.Len(t, saved.Records, 1)
	assert.Equal(t, rec.MessageKey, saved.Records[0].MessageKey)
	assert.True(t, saved.Records[0].MessageDate.Equal(rec.MessageDate))
	require.NotNil(t, saved.FinishedAt)
	assert.True(t, saved.FinishedAt.Equal(finished))

	runs, err := store.ListRuns()
	assert.NoError(t, err)
	assert.Len(t, runs, 1)

	_, err = store.GetRun(uuid.NewString())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
