package api

import "sweeper/internal/events"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// RunStatus is the dashboard view of the current or most recent run.
type RunStatus struct {
	Configured      bool    `json:"configured"`
	RunID           string  `json:"run_id,omitempty"`
	Status          string  `json:"status"`
	Running         bool    `json:"running"`
	Page            int     `json:"page"`
	Processed       int     `json:"processed"`
	Skipped         int     `json:"skipped"`
	Failed          int     `json:"failed"`
	CandidatesFound int     `json:"candidates_found"`
	Total           int     `json:"total"`
	TotalKnown      bool    `json:"total_known"`
	Percent         float64 `json:"percent"`
	Rate            float64 `json:"rate"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	CurrentFile     string  `json:"current_file,omitempty"`
	StartedAt       string  `json:"started_at,omitempty"`
	FinishedAt      string  `json:"finished_at,omitempty"`
	Error           string  `json:"error,omitempty"`
}

// ResultItem is a stored candidate in a transport-friendly format.
type ResultItem struct {
	AssetID           string   `json:"asset_id"`
	Filename          string   `json:"filename"`
	Path              string   `json:"path"`
	FileSize          int64    `json:"file_size"`
	Width             int      `json:"width,omitempty"`
	Height            int      `json:"height,omitempty"`
	CreatedAt         string   `json:"created_at,omitempty"`
	Category          string   `json:"category"`
	Confidence        float64  `json:"confidence"`
	Reason            string   `json:"reason"`
	Evidence          []string `json:"evidence"`
	FaceCount         int      `json:"face_count"`
	Recommendation    string   `json:"recommendation"`
	Recommendations   []string `json:"recommendations"`
	MarkedForDeletion bool     `json:"marked_for_deletion"`
	AnalyzedAt        string   `json:"analyzed_at,omitempty"`
	UpdatedAt         string   `json:"updated_at,omitempty"`
}

// ResultsQuery mirrors the dashboard result filters.
type ResultsQuery struct {
	Category      string  `json:"category"`
	MinConfidence float64 `json:"min_confidence"`
	MarkedOnly    bool    `json:"marked"`
	Limit         int     `json:"limit"`
	Offset        int     `json:"offset"`
}

// ResultsResponse wraps a page of result items.
type ResultsResponse struct {
	Items  []ResultItem `json:"items"`
	Count  int          `json:"count"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// CategorySummary aggregates one category in deterministic order.
type CategorySummary struct {
	Category          string  `json:"category"`
	Count             int     `json:"count"`
	AverageConfidence float64 `json:"average_confidence"`
	TotalBytes        int64   `json:"total_bytes"`
}

// StatisticsResponse summarises the result store.
type StatisticsResponse struct {
	TotalCandidates int               `json:"total_candidates"`
	TotalAnalyzed   int               `json:"total_analyzed"`
	Categories      []CategorySummary `json:"categories"`
	TotalBytes      int64             `json:"total_bytes"`
	MarkedCount     int               `json:"marked_for_deletion"`
	MarkedBytes     int64             `json:"marked_bytes"`
	HighConfidence  int               `json:"high_confidence"`
}

// MarkRequest sets or clears the deletion mark on ids.
type MarkRequest struct {
	IDs    []string `json:"ids"`
	Marked bool     `json:"marked"`
}

// DeleteRequest selects assets to delete. Marked selects every marked record
// and ignores IDs.
type DeleteRequest struct {
	IDs    []string `json:"ids"`
	Marked bool     `json:"marked"`
}

// ActionResponse is the outcome of a mutating operation.
type ActionResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Count   int64      `json:"count"`
	Run     *RunStatus `json:"run,omitempty"`
}

// ConnectionRequest supplies Immich credentials.
type ConnectionRequest struct {
	ImmichURL string `json:"immich_url"`
	APIKey    string `json:"api_key"`
}

// ConnectionStatus reports the configured Immich connection without the key.
type ConnectionStatus struct {
	Configured bool   `json:"configured"`
	ImmichURL  string `json:"immich_url,omitempty"`
	APIKeySet  bool   `json:"api_key_set"`
}

// EventsResponse carries progress events after a sequence number.
type EventsResponse struct {
	Events []events.Event `json:"events"`
	Next   uint64         `json:"next"`
}
