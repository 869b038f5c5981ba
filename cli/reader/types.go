package reader

import "time"

// HistoryItem is one row of `dockpull history`.
type HistoryItem struct {
	PullID     string    `json:"pull_id" yaml:"pull_id"`
	Image      string    `json:"image" yaml:"image"`
	Outcome    string    `json:"outcome" yaml:"outcome"`
	Restarts   int64     `json:"restarts" yaml:"restarts"`
	Duration   string    `json:"duration" yaml:"duration"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Message    string    `json:"message" yaml:"message"`
}

// HistoryOptions filters `dockpull history`.
type HistoryOptions struct {
	Image   string
	Outcome string
	Limit   int
}

// StatusItem is one row of `dockpull status`.
type StatusItem struct {
	Image   string    `json:"image" yaml:"image"`
	PullOK  bool      `json:"pull_ok" yaml:"pull_ok"`
	Outcome string    `json:"outcome" yaml:"outcome"`
	SavedAt time.Time `json:"saved_at" yaml:"saved_at"`
	PullID  string    `json:"pull_id" yaml:"pull_id"`
}

// ReplaySummary is the state rebuilt from a recorded event stream.
type ReplaySummary struct {
	PullID      string   `json:"pull_id" yaml:"pull_id"`
	Events      int      `json:"events" yaml:"events"`
	Generations int64    `json:"generations" yaml:"generations"`
	Ratio       float64  `json:"ratio" yaml:"ratio"`
	Status      string   `json:"status" yaml:"status"`
	Finished    bool     `json:"finished" yaml:"finished"`
	OK          bool     `json:"ok" yaml:"ok"`
	Message     string   `json:"message,omitempty" yaml:"message,omitempty"`
	Truncated   bool     `json:"truncated,omitempty" yaml:"truncated,omitempty"`
	SeqGaps     int      `json:"seq_gaps,omitempty" yaml:"seq_gaps,omitempty"`
	Transcript  []string `json:"transcript" yaml:"transcript"`
}
