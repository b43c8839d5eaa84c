// Package maildir implements the subset of the maildir format needed to
// archive messages: listing and reading the cur directory of a folder,
// delivering messages into another folder and removing them afterwards.
package maildir

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when no message with the requested key exists.
var ErrNotFound = errors.New("message not found")

// infoSeparator splits the unique part of a maildir filename from its flags.
const infoSeparator = ":2,"

var deliveryCount uint64

// Dir is a single maildir folder. The zero value is not usable, use New.
type Dir struct {
	path string
}

// New returns a Dir rooted at path. The filesystem is not touched until one
// of the operations is called.
func New(path string) Dir {
	return Dir{path: path}
}

// Path returns the root of the folder.
func (d Dir) Path() string {
	return d.path
}

// Init creates the tmp, new and cur directories of the folder. It is safe to
// call on an already initialized folder.
func (d Dir) Init() error {
	for _, sub := range []string{"tmp", "new", "cur"} {
		if err := os.MkdirAll(filepath.Join(d.path, sub), 0o700); err != nil {
			return errors.Wrapf(err, "initializing maildir %s", d.path)
		}
	}
	return nil
}

// ListCur returns the messages in the cur directory of the folder, ordered by
// key. Dotfiles and subdirectories are ignored.
func (d Dir) ListCur() ([]Entry, error) {
	curDir := filepath.Join(d.path, "cur")
	dirents, err := os.ReadDir(curDir)
	if err != nil {
		return nil, errors.Wrapf(err, "listing maildir %s", d.path)
	}
	entries := make([]Entry, 0, len(dirents))
	for _, dirent := range dirents {
		if dirent.IsDir() || strings.HasPrefix(dirent.Name(), ".") {
			continue
		}
		key, flags := splitFilename(dirent.Name())
		entries = append(entries, Entry{
			Key:   key,
			Flags: flags,
			Path:  filepath.Join(curDir, dirent.Name()),
		})
	}
	return entries, nil
}

// CountCur returns the number of messages in the cur directory.
func (d Dir) CountCur() (int, error) {
	entries, err := d.ListCur()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// StoreCur delivers content as a new message in the cur directory, carrying
// the given flags. The message is written to tmp first and renamed into cur,
// as the maildir protocol requires. It returns the key of the new message.
func (d Dir) StoreCur(content []byte, flags string) (string, error) {
	key := uniqueName()
	tmpPath := filepath.Join(d.path, "tmp", key)
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return "", errors.Wrapf(err, "storing message in maildir %s", d.path)
	}
	curPath := filepath.Join(d.path, "cur", key+infoSeparator+NormalizeFlags(flags))
	if err := os.Rename(tmpPath, curPath); err != nil {
		os.Remove(tmpPath)
		return "", errors.Wrapf(err, "storing message in maildir %s", d.path)
	}
	return key, nil
}

// Read returns the content of the message with the given key from the cur
// directory, regardless of its current flags.
func (d Dir) Read(key string) ([]byte, error) {
	path, err := d.findCur(key)
	if err != nil {
		return nil, err
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading message %s", key)
	}
	return content, nil
}

// Remove deletes the message with the given key from the cur directory.
func (d Dir) Remove(key string) error {
	path, err := d.findCur(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return errors.Wrapf(err, "removing message %s", key)
	}
	return nil
}

// ListFolders returns the subfolders of the folder, following the Maildir++
// convention of one dot-prefixed directory per subfolder. Directories without
// a cur subdirectory are ignored.
func (d Dir) ListFolders() ([]Dir, error) {
	dirents, err := os.ReadDir(d.path)
	if err != nil {
		return nil, errors.Wrapf(err, "listing folders of maildir %s", d.path)
	}
	var folders []Dir
	for _, dirent := range dirents {
		if !dirent.IsDir() || !strings.HasPrefix(dirent.Name(), ".") || dirent.Name() == "." || dirent.Name() == ".." {
			continue
		}
		sub := filepath.Join(d.path, dirent.Name())
		if info, err := os.Stat(filepath.Join(sub, "cur")); err != nil || !info.IsDir() {
			continue
		}
		folders = append(folders, New(sub))
	}
	return folders, nil
}

func (d Dir) findCur(key string) (string, error) {
	if key == "" || strings.ContainsRune(key, ':') || strings.ContainsRune(key, '/') {
		return "", errors.Wrapf(ErrNotFound, "invalid key %q", key)
	}
	curDir := filepath.Join(d.path, "cur")
	dirents, err := os.ReadDir(curDir)
	if err != nil {
		return "", errors.Wrapf(err, "listing maildir %s", d.path)
	}
	for _, dirent := range dirents {
		if dirent.Name() == key || strings.HasPrefix(dirent.Name(), key+":") {
			return filepath.Join(curDir, dirent.Name()), nil
		}
	}
	return "", errors.Wrapf(ErrNotFound, "message %s in maildir %s", key, d.path)
}

// NormalizeFlags returns the flags sorted in ASCII order with duplicates
// removed, the canonical form for maildir filenames.
func NormalizeFlags(flags string) string {
	b := []byte(flags)
	sort.Slice(b, func(i, j int) bool { return b[i] < b[j] })
	out := b[:0]
	for i := 0; i < len(b); i++ {
		if i > 0 && b[i] == b[i-1] {
			continue
		}
		out = append(out, b[i])
	}
	return string(out)
}

func splitFilename(name string) (key, flags string) {
	i := strings.IndexByte(name, ':')
	if i < 0 {
		return name, ""
	}
	key = name[:i]
	if info := name[i+1:]; strings.HasPrefix(info, "2,") {
		flags = info[2:]
	}
	return key, flags
}

// uniqueName builds a delivery identifier that is unique across processes on
// the same host, following the usual time.pid_counter.host scheme.
func uniqueName() string {
	now := time.Now()
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	host = strings.NewReplacer("/", "_", ":", "_").Replace(host)
	n := atomic.AddUint64(&deliveryCount, 1)
	return fmt.Sprintf("%d.M%06dP%dQ%d.%s", now.Unix(), now.Nanosecond()/1000, os.Getpid(), n, host)
}
