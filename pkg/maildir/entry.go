package maildir

import (
	"bufio"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Entry is a single message inside a maildir folder.
type Entry struct {
	// Key is the unique part of the filename, without the flag suffix.
	Key string
	// Flags are the maildir flags of the message, e.g. "S" for seen.
	Flags string
	// Path is the location of the message file.
	Path string
}

// Content returns the raw content of the message.
func (e Entry) Content() ([]byte, error) {
	content, err := os.ReadFile(e.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading message %s", e.Key)
	}
	return content, nil
}

// Received returns the delivery time of the message. It prefers the date
// stamped by the local MTA in the topmost Received header and falls back to
// the Date header when no Received date can be parsed.
func (e Entry) Received() (time.Time, error) {
	f, err := os.Open(e.Path)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "opening message %s", e.Key)
	}
	defer f.Close()
	msg, err := mail.ReadMessage(bufio.NewReader(f))
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parsing message %s", e.Key)
	}
	if received := msg.Header.Get("Received"); received != "" {
		// The date of a Received header sits after the last semicolon.
		if i := strings.LastIndex(received, ";"); i >= 0 {
			if t, err := mail.ParseDate(strings.TrimSpace(received[i+1:])); err == nil {
				return t, nil
			}
		}
	}
	if t, err := msg.Header.Date(); err == nil {
		return t, nil
	}
	return time.Time{}, errors.Errorf("message %s has no parsable Received or Date header", e.Key)
}
