package models

import "time"

// RunStatus is the lifecycle state of an archive run.
type RunStatus string

const (
	RunningRunStatus   RunStatus = "RUNNING"
	CompletedRunStatus RunStatus = "COMPLETED"
	FailedRunStatus    RunStatus = "FAILED"
)

// Run is one invocation of the archiver over a maildir. It carries the
// parameters the run was started with and the counters accumulated while it
// executed.
type Run struct {
	ID         string     `json:"id"`
	Maildir    string     `json:"maildir"`
	OutputDir  string     `json:"output_dir"`
	Mode       Mode       `json:"mode"`
	SplitBy    Split      `json:"split_by"`
	Before     time.Time  `json:"before"`
	Status     RunStatus  `json:"status"`
	Scanned    int        `json:"scanned"`
	Matched    int        `json:"matched"`
	Archived   int        `json:"archived"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	ErrorMsg   string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Records    []Record   `json:"records,omitempty"`
}
