package models

import "time"

// Record is one archived message inside a run: which message it was, where it
// came from and which archive folder it ended up in.
type Record struct {
	RunID       string    `json:"run_id"`
	MessageKey  string    `json:"message_key"`
	SourceDir   string    `json:"source_dir"`
	TargetDir   string    `json:"target_dir"`
	MessageDate time.Time `json:"message_date"`
	ArchivedAt  time.Time `json:"archived_at"`
}
