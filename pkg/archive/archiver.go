// Package archive implements the strategies for moving messages into archive
// folders: copying, moving or doing nothing at all for a dry run.
package archive

import (
	"github.com/pkg/errors"

	"github.com/edigiacomo/archive-maildir/pkg/maildir"
	"github.com/edigiacomo/archive-maildir/pkg/models"
)

// Archiver stores a message from one maildir folder into another. The flags
// of the message are preserved.
type Archiver interface {
	Archive(entry maildir.Entry, from, to maildir.Dir) error
}

// New returns the Archiver for the given mode. Unknown modes fall back to the
// dry run archiver, which never touches the filesystem.
func New(mode models.Mode) Archiver {
	switch mode {
	case models.CopyMode:
		return copyArchiver{}
	case models.MoveMode:
		return moveArchiver{}
	default:
		return dryRunArchiver{}
	}
}

type dryRunArchiver struct{}

func (dryRunArchiver) Archive(entry maildir.Entry, from, to maildir.Dir) error {
	return nil
}

type copyArchiver struct{}

func (copyArchiver) Archive(entry maildir.Entry, from, to maildir.Dir) error {
	return copyEntry(entry, to)
}

type moveArchiver struct{}

func (moveArchiver) Archive(entry maildir.Entry, from, to maildir.Dir) error {
	if err := copyEntry(entry, to); err != nil {
		return err
	}
	if err := from.Remove(entry.Key); err != nil {
		return errors.Wrapf(err, "removing archived message from %s", from.Path())
	}
	return nil
}

func copyEntry(entry maildir.Entry, to maildir.Dir) error {
	content, err := entry.Content()
	if err != nil {
		return err
	}
	if err := to.Init(); err != nil {
		return err
	}
	if _, err := to.StoreCur(content, entry.Flags); err != nil {
		return errors.Wrapf(err, "archiving message %s into %s", entry.Key, to.Path())
	}
	return nil
}
