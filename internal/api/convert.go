package api

import (
	"math"
	"slices"
	"time"

	"sweeper/internal/classify"
	"sweeper/internal/results"
	"sweeper/internal/scan"
)

// FromRunState converts a coordinator snapshot into a RunStatus.
func FromRunState(state scan.RunState, configured bool) RunStatus {
	status := state.Status
	if status == "" {
		status = scan.StatusIdle
	}
	return RunStatus{
		Configured:      configured,
		RunID:           state.RunID,
		Status:          string(status),
		Running:         state.Running,
		Page:            state.Page,
		Processed:       state.Processed,
		Skipped:         state.Skipped,
		Failed:          state.Failed,
		CandidatesFound: state.CandidatesFound,
		Total:           state.Total,
		TotalKnown:      state.TotalKnown,
		Percent:         state.Percent(),
		Rate:            round(state.Rate(), 2),
		ElapsedSeconds:  round(state.Elapsed().Seconds(), 1),
		CurrentFile:     state.CurrentFile,
		StartedAt:       formatTimePtr(state.StartedAt),
		FinishedAt:      formatTimePtr(state.FinishedAt),
		Error:           state.Error,
	}
}

// FromRecord converts a stored record into a ResultItem.
func FromRecord(rec results.Record) ResultItem {
	return ResultItem{
		AssetID:           rec.AssetID,
		Filename:          rec.Filename,
		Path:              rec.Path,
		FileSize:          rec.FileSize,
		Width:             rec.Width,
		Height:            rec.Height,
		CreatedAt:         formatTimePtr(rec.CreatedAt),
		Category:          string(rec.Category),
		Confidence:        rec.Confidence,
		Reason:            rec.Reason(),
		Evidence:          nonNil(rec.Evidence),
		FaceCount:         rec.FaceCount,
		Recommendation:    rec.Recommendation,
		Recommendations:   nonNil(rec.Recommendations),
		MarkedForDeletion: rec.MarkedForDeletion,
		AnalyzedAt:        formatTime(rec.AnalyzedAt),
		UpdatedAt:         formatTime(rec.UpdatedAt),
	}
}

// FromRecords converts a slice of records.
func FromRecords(recs []results.Record) []ResultItem {
	out := make([]ResultItem, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecord(rec))
	}
	return out
}

// FromStatistics orders per-category stats by category precedence and
// appends any category the evaluator no longer produces.
func FromStatistics(stats results.Statistics) StatisticsResponse {
	resp := StatisticsResponse{
		TotalCandidates: stats.TotalCandidates,
		TotalAnalyzed:   stats.TotalAnalyzed,
		Categories:      make([]CategorySummary, 0, len(stats.Categories)),
		TotalBytes:      stats.TotalBytes,
		MarkedCount:     stats.MarkedCount,
		MarkedBytes:     stats.MarkedBytes,
		HighConfidence:  stats.HighConfidence,
	}
	seen := make(map[string]bool, len(stats.Categories))
	for _, category := range classify.Categories {
		key := string(category)
		if cs, ok := stats.Categories[key]; ok {
			resp.Categories = append(resp.Categories, summary(key, cs))
			seen[key] = true
		}
	}
	var extra []string
	for key := range stats.Categories {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	slices.Sort(extra)
	for _, key := range extra {
		resp.Categories = append(resp.Categories, summary(key, stats.Categories[key]))
	}
	return resp
}

func summary(key string, cs results.CategoryStats) CategorySummary {
	return CategorySummary{
		Category:          key,
		Count:             cs.Count,
		AverageConfidence: round(cs.AverageConfidence, 3),
		TotalBytes:        cs.TotalBytes,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
