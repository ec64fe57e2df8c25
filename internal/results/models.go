package results

import (
	"strings"
	"time"

	"sweeper/internal/classify"
)

// Record is a stored verdict plus its deletion mark.
type Record struct {
	classify.Verdict
	MarkedForDeletion bool      `json:"marked_for_deletion"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Filter narrows Query results. Zero values match everything.
type Filter struct {
	// Category "" or "all" matches every category.
	Category      string
	MinConfidence float64
	MarkedOnly    bool
	Limit         int
	Offset        int
}

func (f Filter) category() string {
	c := strings.ToLower(strings.TrimSpace(f.Category))
	if c == "all" {
		return ""
	}
	return c
}

// CategoryStats aggregates one category.
type CategoryStats struct {
	Count             int     `json:"count"`
	AverageConfidence float64 `json:"average_confidence"`
	TotalBytes        int64   `json:"total_bytes"`
}

// Statistics summarises the store contents.
type Statistics struct {
	TotalCandidates int                      `json:"total_candidates"`
	TotalAnalyzed   int                      `json:"total_analyzed"`
	Categories      map[string]CategoryStats `json:"categories"`
	TotalBytes      int64                    `json:"total_bytes"`
	MarkedCount     int                      `json:"marked_for_deletion"`
	MarkedBytes     int64                    `json:"marked_bytes"`
	HighConfidence  int                      `json:"high_confidence"`
}

// UpsertOption adjusts Upsert behaviour.
type UpsertOption func(*upsertOptions)

type upsertOptions struct {
	clearMark bool
}

// ClearMark resets the deletion mark instead of preserving it.
func ClearMark() UpsertOption {
	return func(o *upsertOptions) {
		o.clearMark = true
	}
}
