package scan

import (
	"math"
	"time"
)

// Status is the lifecycle state of a run.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusStopped   Status = "stopped"
	StatusError     Status = "error"
)

// RunState is a point-in-time view of the current or most recent run.
type RunState struct {
	RunID   string `json:"run_id,omitempty"`
	Status  Status `json:"status"`
	Running bool   `json:"running"`
	Cursor  string `json:"cursor,omitempty"`
	Page    int    `json:"page"`
	// Processed counts every asset visited, including skipped ones.
	Processed       int        `json:"processed"`
	Skipped         int        `json:"skipped"`
	Failed          int        `json:"failed"`
	CandidatesFound int        `json:"candidates_found"`
	Total           int        `json:"total"`
	TotalKnown      bool       `json:"total_known"`
	CurrentFile     string     `json:"current_file,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// Percent reports progress in [0,100], or -1 while the total is unknown.
func (s RunState) Percent() float64 {
	if !s.TotalKnown || s.Total <= 0 {
		return -1
	}
	pct := float64(s.Processed) * 100 / float64(s.Total)
	return math.Round(math.Min(pct, 100)*10) / 10
}

// Rate reports assets processed per second.
func (s RunState) Rate() float64 {
	return s.rateAt(time.Now())
}

func (s RunState) rateAt(now time.Time) float64 {
	if s.StartedAt == nil || s.Processed == 0 {
		return 0
	}
	end := now
	if s.FinishedAt != nil {
		end = *s.FinishedAt
	}
	elapsed := end.Sub(*s.StartedAt).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(s.Processed) / elapsed
}

// Elapsed reports how long the run has been going, or took.
func (s RunState) Elapsed() time.Duration {
	if s.StartedAt == nil {
		return 0
	}
	end := time.Now()
	if s.FinishedAt != nil {
		end = *s.FinishedAt
	}
	return end.Sub(*s.StartedAt)
}
