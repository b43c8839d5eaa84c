package models

import (
	"time"

	"github.com/pkg/errors"
)

// Mode selects what happens to a message once it matched the archive
// threshold.
type Mode string

const (
	// CopyMode stores the message in the archive and leaves the original in
	// place.
	CopyMode Mode = "copy"
	// MoveMode stores the message in the archive and removes the original.
	MoveMode Mode = "move"
	// DryRunMode only reports what would be archived without touching any
	// file.
	DryRunMode Mode = "dry-run"
)

// ParseMode converts a user supplied string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case CopyMode, MoveMode, DryRunMode:
		return Mode(s), nil
	default:
		return "", errors.Errorf("invalid mode %q: must be one of copy, move, dry-run", s)
	}
}

// Split selects the granularity of the archive folders.
type Split string

const (
	YearSplit  Split = "year"
	MonthSplit Split = "month"
	DaySplit   Split = "day"
)

// ParseSplit converts a user supplied string into a Split.
func ParseSplit(s string) (Split, error) {
	switch Split(s) {
	case YearSplit, MonthSplit, DaySplit:
		return Split(s), nil
	default:
		return "", errors.Errorf("invalid split %q: must be one of year, month, day", s)
	}
}

// Layout returns the time layout used to name archive folders of this
// granularity.
func (s Split) Layout() string {
	switch s {
	case MonthSplit:
		return "2006-01"
	case DaySplit:
		return "2006-01-02"
	default:
		return "2006"
	}
}

// Format renders the archive period the given time falls into.
func (s Split) Format(t time.Time) string {
	return t.Format(s.Layout())
}
