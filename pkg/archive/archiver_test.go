package archive_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edigiacomo/archive-maildir/pkg/archive"
	"github.com/edigiacomo/archive-maildir/pkg/maildir"
	"github.com/edigiacomo/archive-maildir/pkg/models"
)

const sampleMessage = "Received: from mail.example.org by mx.example.org with SMTP; Sat, 21 May 2016 22:08:25 +0000\r\n" +
	"From: sender@example.org\r\n" +
	"To: recipient@example.org\r\n" +
	"Subject: hello\r\n" +
	"\r\n" +
	"Hello\r\n"

func newSourceDir(t *testing.T) (maildir.Dir, maildir.Entry) {
	t.Helper()
	d := maildir.New(filepath.Join(t.TempDir(), "mail"))
	require.NoError(t, d.Init())
	_, err := d.StoreCur([]byte(sampleMessage), "S")
	require.NoError(t, err)
	entries, err := d.ListCur()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	return d, entries[0]
}

func TestCopyArchiver(t *testing.T) {
	from, entry := newSourceDir(t)
	to := maildir.New(filepath.Join(t.TempDir(), "archive", "2016"))

	archiver := archive.New(models.CopyMode)
	require.NoError(t, archiver.Archive(entry, from, to))

	fromCount, err := from.CountCur()
	require.NoError(t, err)
	assert.Equal(t, 1, fromCount, "copy must leave the original in place")

	toEntries, err := to.ListCur()
	require.NoError(t, err)
	require.Len(t, toEntries, 1)
	assert.Equal(t, "S", toEntries[0].Flags)

	content, err := toEntries[0].Content()
	require.NoError(t, err)
	assert.Equal(t, sampleMessage, string(content))
}

func TestMoveArchiver(t *testing.T) {
	from, entry := newSourceDir(t)
	to := maildir.New(filepath.Join(t.TempDir(), "archive", "2016"))

	archiver := archive.New(models.MoveMode)
	require.NoError(t, archiver.Archive(entry, from, to))

	fromCount, err := from.CountCur()
	require.NoError(t, err)
	assert.Equal(t, 0, fromCount, "move must remove the original")

	toEntries, err := to.ListCur()
	require.NoError(t, err)
	require.Len(t, toEntries, 1)
	assert.Equal(t, "S", toEntries[0].Flags)
}

func TestDryRunArchiver(t *testing.T) {
	from, entry := newSourceDir(t)
	targetPath := filepath.Join(t.TempDir(), "archive", "2016")
	to := maildir.New(targetPath)

	archiver := archive.New(models.DryRunMode)
	require.NoError(t, archiver.Archive(entry, from, to))

	fromCount, err := from.CountCur()
	require.NoError(t, err)
	assert.Equal(t, 1, fromCount)

	_, err = os.Stat(targetPath)
	assert.True(t, os.IsNotExist(err), "dry run must not create the target maildir")
}

func TestMoveArchiver_MissingSource(t *testing.T) {
	from, entry := newSourceDir(t)
	to := maildir.New(filepath.Join(t.TempDir(), "archive", "2016"))

	require.NoError(t, from.Remove(entry.Key))

	archiver := archive.New(models.MoveMode)
	err := archiver.Archive(entry, from, to)
	assert.Error(t, err)
}
