package results

import (
	"context"
	"database/sql"
	"fmt"
)

// HighConfidenceThreshold is the confidence above which a record counts as high confidence.
const HighConfidenceThreshold = 0.7

// Statistics aggregates counts, sizes and confidence across the store.
func (s *Store) Statistics(ctx context.Context) (Statistics, error) {
	ctx = ensureContext(ctx)
	stats := Statistics{Categories: map[string]CategoryStats{}}

	rows, err := s.db.QueryContext(ctx,
		"SELECT category, COUNT(1), AVG(confidence), COALESCE(SUM(file_size), 0) FROM candidates GROUP BY category")
	if err != nil {
		return stats, fmt.Errorf("query category statistics: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			category string
			cs       CategoryStats
			avg      sql.NullFloat64
		)
		if err := rows.Scan(&category, &cs.Count, &avg, &cs.TotalBytes); err != nil {
			return stats, fmt.Errorf("scan category statistics: %w", err)
		}
		cs.AverageConfidence = avg.Float64
		stats.Categories[category] = cs
		stats.TotalCandidates += cs.Count
		stats.TotalBytes += cs.TotalBytes
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate category statistics: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
SELECT
    COALESCE(SUM(CASE WHEN marked_for_deletion = 1 THEN 1 ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN marked_for_deletion = 1 THEN file_size ELSE 0 END), 0),
    COALESCE(SUM(CASE WHEN confidence > ? THEN 1 ELSE 0 END), 0)
FROM candidates`, HighConfidenceThreshold).Scan(&stats.MarkedCount, &stats.MarkedBytes, &stats.HighConfidence)
	if err != nil {
		return stats, fmt.Errorf("query mark statistics: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM (SELECT asset_id FROM analyzed_assets UNION SELECT asset_id FROM candidates)",
	).Scan(&stats.TotalAnalyzed)
	if err != nil {
		return stats, fmt.Errorf("count analyzed assets: %w", err)
	}
	return stats, nil
}
