package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"sweeper/internal/classify"
)

const recordColumns = "asset_id, filename, original_path, file_size, mime_type, width, height, created_at, category, confidence, evidence_json, flags_json, face_count, recommendation, recommendations_json, analyzed_at, marked_for_deletion, updated_at"

// Upsert stores a verdict. An existing deletion mark survives unless ClearMark is passed.
func (s *Store) Upsert(ctx context.Context, v classify.Verdict, opts ...UpsertOption) error {
	if strings.TrimSpace(v.AssetID) == "" {
		return errors.New("upsert: asset id required")
	}
	var o upsertOptions
	for _, opt := range opts {
		opt(&o)
	}

	evidence, err := json.Marshal(nonNil(v.Evidence))
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}
	flags, err := json.Marshal(v.Flags)
	if err != nil {
		return fmt.Errorf("encode flags: %w", err)
	}
	recs, err := json.Marshal(nonNil(v.Recommendations))
	if err != nil {
		return fmt.Errorf("encode recommendations: %w", err)
	}
	var created sql.NullString
	if v.CreatedAt != nil {
		created = sql.NullString{String: formatTime(*v.CreatedAt), Valid: true}
	}
	analyzed := v.AnalyzedAt
	if analyzed.IsZero() {
		analyzed = s.now()
	}

	_, err = s.execWithRetry(ctx, `
INSERT INTO candidates (`+recordColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
ON CONFLICT(asset_id) DO UPDATE SET
    filename = excluded.filename,
    original_path = excluded.original_path,
    file_size = excluded.file_size,
    mime_type = excluded.mime_type,
    width = excluded.width,
    height = excluded.height,
    created_at = excluded.created_at,
    category = excluded.category,
    confidence = excluded.confidence,
    evidence_json = excluded.evidence_json,
    flags_json = excluded.flags_json,
    face_count = excluded.face_count,
    recommendation = excluded.recommendation,
    recommendations_json = excluded.recommendations_json,
    analyzed_at = excluded.analyzed_at,
    marked_for_deletion = CASE WHEN ? THEN 0 ELSE candidates.marked_for_deletion END,
    updated_at = excluded.updated_at`,
		v.AssetID, v.Filename, v.Path, v.FileSize, v.MimeType, v.Width, v.Height, created,
		string(v.Category), v.Confidence, string(evidence), string(flags), v.FaceCount,
		v.Recommendation, string(recs), formatTime(analyzed), formatTime(s.now()),
		o.clearMark,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", v.AssetID, err)
	}
	return nil
}

// Get returns the record for id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), "SELECT "+recordColumns+" FROM candidates WHERE asset_id = ?", id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}

// Query lists records matching filter, highest confidence first.
func (s *Store) Query(ctx context.Context, filter Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if c := filter.category(); c != "" {
		where = append(where, "category = ?")
		args = append(args, c)
	}
	if filter.MinConfidence > 0 {
		where = append(where, "confidence >= ?")
		args = append(args, filter.MinConfidence)
	}
	if filter.MarkedOnly {
		where = append(where, "marked_for_deletion = 1")
	}

	query := "SELECT " + recordColumns + " FROM candidates"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY confidence DESC, asset_id ASC"
	if filter.Limit > 0 || filter.Offset > 0 {
		limit := filter.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, max(filter.Offset, 0))
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

// Mark sets or clears the deletion mark and reports how many records changed.
func (s *Store) Mark(ctx context.Context, ids []string, marked bool) (int64, error) {
	flag := 0
	if marked {
		flag = 1
	}
	var total int64
	for _, chunk := range chunkIDs(ids) {
		in, args := placeholders(chunk)
		args = append([]any{flag, formatTime(s.now())}, args...)
		res, err := s.execWithRetry(ctx,
			"UPDATE candidates SET marked_for_deletion = ?, updated_at = ? WHERE asset_id IN ("+in+")", args...)
		if err != nil {
			return total, fmt.Errorf("mark records: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Remove deletes records and their ledger entries. Absent identifiers are ignored.
func (s *Store) Remove(ctx context.Context, ids []string) (int64, error) {
	var total int64
	for _, chunk := range chunkIDs(ids) {
		in, args := placeholders(chunk)
		res, err := s.execWithRetry(ctx, "DELETE FROM candidates WHERE asset_id IN ("+in+")", args...)
		if err != nil {
			return total, fmt.Errorf("remove records: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
		if _, err := s.execWithRetry(ctx, "DELETE FROM analyzed_assets WHERE asset_id IN ("+in+")", args...); err != nil {
			return total, fmt.Errorf("remove ledger entries: %w", err)
		}
	}
	return total, nil
}

// MarkedIDs lists every asset currently marked for deletion.
func (s *Store) MarkedIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		"SELECT asset_id FROM candidates WHERE marked_for_deletion = 1 ORDER BY asset_id")
	if err != nil {
		return nil, fmt.Errorf("query marked ids: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan marked id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Clear removes every record and ledger entry.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.execWithRetry(ctx, "DELETE FROM candidates"); err != nil {
		return fmt.Errorf("clear candidates: %w", err)
	}
	if _, err := s.execWithRetry(ctx, "DELETE FROM analyzed_assets"); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec        Record
		category   string
		created    sql.NullString
		evidence   sql.NullString
		flags      sql.NullString
		recs       sql.NullString
		analyzed   sql.NullString
		updated    sql.NullString
		markedFlag int
	)
	if err := scanner.Scan(
		&rec.AssetID,
		&rec.Filename,
		&rec.Path,
		&rec.FileSize,
		&rec.MimeType,
		&rec.Width,
		&rec.Height,
		&created,
		&category,
		&rec.Confidence,
		&evidence,
		&flags,
		&rec.FaceCount,
		&rec.Recommendation,
		&recs,
		&analyzed,
		&markedFlag,
		&updated,
	); err != nil {
		return nil, err
	}
	rec.Category = classify.Category(category)
	if t := parseTime(created); !t.IsZero() {
		rec.CreatedAt = &t
	}
	rec.AnalyzedAt = parseTime(analyzed)
	rec.UpdatedAt = parseTime(updated)
	rec.MarkedForDeletion = markedFlag != 0
	rec.Evidence = decodeStrings(evidence)
	rec.Recommendations = decodeStrings(recs)
	if flags.Valid && flags.String != "" {
		_ = json.Unmarshal([]byte(flags.String), &rec.Flags)
	}
	return &rec, nil
}

func decodeStrings(raw sql.NullString) []string {
	out := []string{}
	if raw.Valid && raw.String != "" {
		_ = json.Unmarshal([]byte(raw.String), &out)
	}
	return out
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// RecordAnalyzed notes that an asset was analyzed, whether or not it qualified.
func (s *Store) RecordAnalyzed(ctx context.Context, id string, confidence float64, at time.Time) error {
	if at.IsZero() {
		at = s.now()
	}
	_, err := s.execWithRetry(ctx, `
INSERT INTO analyzed_assets (asset_id, confidence, analyzed_at) VALUES (?, ?, ?)
ON CONFLICT(asset_id) DO UPDATE SET confidence = excluded.confidence, analyzed_at = excluded.analyzed_at`,
		id, confidence, formatTime(at))
	if err != nil {
		return fmt.Errorf("record analyzed %s: %w", id, err)
	}
	return nil
}

// Analyzed reports whether id appears in the ledger or the candidate table.
func (s *Store) Analyzed(ctx context.Context, id string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ensureContext(ctx), `
SELECT (SELECT COUNT(1) FROM analyzed_assets WHERE asset_id = ?) + (SELECT COUNT(1) FROM candidates WHERE asset_id = ?)`,
		id, id).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check analyzed %s: %w", id, err)
	}
	return n > 0, nil
}
