package classify

import (
	"strings"
	"time"
)

// Category is the primary label assigned to a verdict.
type Category string

const (
	CategoryScreenshot Category = "screenshot"
	CategoryWebCache   Category = "web_cache"
	CategoryRecovery   Category = "recovery_artifact"
	CategoryDuplicate  Category = "duplicate"
	CategoryLowQuality Category = "low_quality"
	CategoryCorrupt    Category = "corrupt"
	CategoryUnknown    Category = "unknown"
)

// Categories lists every category in precedence order.
var Categories = []Category{
	CategoryScreenshot,
	CategoryWebCache,
	CategoryRecovery,
	CategoryDuplicate,
	CategoryCorrupt,
	CategoryLowQuality,
	CategoryUnknown,
}

// ParseCategory reports the category for s, accepting only known labels.
func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

// Flags records which strong indicators fired.
type Flags struct {
	Screenshot bool `json:"screenshot"`
	WebCache   bool `json:"web_cache"`
	Recovery   bool `json:"recovery"`
	Duplicate  bool `json:"duplicate"`
	LowQuality bool `json:"low_quality"`
	Corrupt    bool `json:"corrupt"`
	HasFaces   bool `json:"has_faces"`
}

// Verdict is the evaluator output for one asset.
type Verdict struct {
	AssetID         string     `json:"asset_id"`
	Filename        string     `json:"filename"`
	Path            string     `json:"path"`
	FileSize        int64      `json:"file_size"`
	MimeType        string     `json:"mime_type,omitempty"`
	Width           int        `json:"width,omitempty"`
	Height          int        `json:"height,omitempty"`
	CreatedAt       *time.Time `json:"created_at,omitempty"`
	Category        Category   `json:"category"`
	Confidence      float64    `json:"confidence"`
	Evidence        []string   `json:"evidence"`
	Flags           Flags      `json:"flags"`
	FaceCount       int        `json:"face_count"`
	Recommendation  string     `json:"recommendation"`
	Recommendations []string   `json:"recommendations"`
	AnalyzedAt      time.Time  `json:"analyzed_at"`
}

// Reason joins the evidence into a single line.
func (v Verdict) Reason() string {
	return strings.Join(v.Evidence, "; ")
}

func categorize(f Flags) Category {
	switch {
	case f.Screenshot:
		return CategoryScreenshot
	case f.WebCache:
		return CategoryWebCache
	case f.Recovery:
		return CategoryRecovery
	case f.Duplicate:
		return CategoryDuplicate
	case f.Corrupt:
		return CategoryCorrupt
	case f.LowQuality:
		return CategoryLowQuality
	default:
		return CategoryUnknown
	}
}

// Recommendation returns the threshold text for a confidence score.
func Recommendation(confidence float64) string {
	switch {
	case confidence > highConfidence:
		return "Strongly recommend deletion"
	case confidence > mediumConfidence:
		return "Consider for removal"
	case confidence > lowConfidence:
		return "Manual review recommended"
	default:
		return "Likely keep"
	}
}

func recommendations(confidence float64, f Flags) []string {
	out := []string{Recommendation(confidence)}
	if f.Screenshot {
		out = append(out, "Move to a screenshots album or delete")
	}
	if f.WebCache {
		out = append(out, "Web artifact, safe to delete")
	}
	if f.LowQuality {
		out = append(out, "Check if a higher quality version exists")
	}
	if f.Corrupt {
		out = append(out, "Corrupted file, delete")
	}
	if f.Recovery || f.Duplicate {
		out = append(out, "Check whether the original copy is already in the library")
	}
	return out
}
