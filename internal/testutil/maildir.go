// Package testutil provides helpers shared by the test suites: maildir
// fixtures and throwaway journal databases.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edigiacomo/archive-maildir/pkg/maildir"
)

// Message is a fixture e-mail to deliver into a maildir.
type Message struct {
	Key      string
	Flags    string
	Received time.Time
	Subject  string
	// NoReceived omits the Received header, NoDate the Date header. A
	// message with both set has no parsable date at all.
	NoReceived bool
	NoDate     bool
}

// NewMaildir creates and initializes a maildir at path.
func NewMaildir(t *testing.T, path string) maildir.Dir {
	t.Helper()
	d := maildir.New(path)
	if err := d.Init(); err != nil {
		t.Fatalf("Failed to init maildir %s: %v", path, err)
	}
	return d
}

// DeliverCur writes msg straight into the cur directory of the maildir,
// bypassing the delivery protocol.
func DeliverCur(t *testing.T, d maildir.Dir, msg Message) {
	t.Helper()
	name := msg.Key + ":2," + msg.Flags
	path := filepath.Join(d.Path(), "cur", name)
	if err := os.WriteFile(path, []byte(RenderMessage(msg)), 0o600); err != nil {
		t.Fatalf("Failed to deliver message %s: %v", msg.Key, err)
	}
}

// RenderMessage builds the raw content of the fixture message.
func RenderMessage(msg Message) string {
	subject := msg.Subject
	if subject == "" {
		subject = "hello"
	}
	date := msg.Received.Format(time.RFC1123Z)
	var b strings.Builder
	if !msg.NoReceived {
		fmt.Fprintf(&b, "Received: from mail.example.org by mx.example.org with SMTP; %s\r\n", date)
	}
	b.WriteString("From: sender@example.org\r\n")
	b.WriteString("To: recipient@example.org\r\n")
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	if !msg.NoDate {
		fmt.Fprintf(&b, "Date: %s\r\n", date)
	}
	fmt.Fprintf(&b, "Message-ID: <%s@example.org>\r\n", msg.Key)
	b.WriteString("\r\n")
	b.WriteString("Hello\r\n")
	return b.String()
}
