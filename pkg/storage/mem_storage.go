package storage

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/edigiacomo/archive-maildir/pkg/models"
)

// memStore implements storage.Store with in-memory storage. It backs runs
// that were started without a journal database configured.
type memStore struct {
	mu      sync.RWMutex
	runs    []models.Run
	records []models.Record
}

// NewMemStore returns an empty in-memory journal.
func NewMemStore() Store {
	return &memStore{}
}

func (m *memStore) SaveRun(r models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.runs {
		if existing.ID == r.ID {
			return errors.Errorf("run %s already exists", r.ID)
		}
	}
	r.Records = nil
	m.runs = append(m.runs, r)
	return nil
}

func (m *memStore) FinishRun(r models.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.runs {
		if m.runs[i].ID == r.ID {
			r.Records = nil
			m.runs[i] = r
			return nil
		}
	}
	return errors.Wrapf(ErrNotFound, "run %s", r.ID)
}

func (m *memStore) GetRun(id string) (models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.runs {
		if r.ID == id {
			r.Records = m.recordsOf(id)
			return r, nil
		}
	}
	return models.Run{}, errors.Wrapf(ErrNotFound, "run %s", id)
}

func (m *memStore) ListRuns() ([]models.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	runs := make([]models.Run, len(m.runs))
	copy(runs, m.runs)
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

func (m *memStore) SaveRecord(rec models.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *memStore) ListRecords(runID string) ([]models.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recordsOf(runID), nil
}

func (m *memStore) Close() error {
	return nil
}

// recordsOf expects the caller to hold at least a read lock.
func (m *memStore) recordsOf(runID string) []models.Record {
	records := []models.Record{}
	for _, rec := range m.records {
		if rec.RunID == runID {
			records = append(records, rec)
		}
	}
	return records
}
