package storage

import (
	"github.com/pkg/errors"

	"github.com/edigiacomo/archive-maildir/pkg/models"
)

// ErrNotFound is returned when the requested run does not exist.
var ErrNotFound = errors.New("run not found")

// Store defines the journal operations for archive runs.
type Store interface {
	// Run operations
	SaveRun(r models.Run) error
	FinishRun(r models.Run) error
	GetRun(id string) (models.Run, error)
	ListRuns() ([]models.Run, error)

	// Record operations
	SaveRecord(rec models.Record) error
	ListRecords(runID string) ([]models.Record, error)

	Close() error
}
