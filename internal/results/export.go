package results

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

var csvHeader = []string{
	"ID", "Filename", "Path", "Size (bytes)", "Created", "Category", "Confidence", "Reason", "Marked for Deletion",
}

// WriteCSV writes every record as CSV, highest confidence first.
func (s *Store) WriteCSV(ctx context.Context, w io.Writer) error {
	records, err := s.Query(ctx, Filter{})
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		created := ""
		if rec.CreatedAt != nil {
			created = rec.CreatedAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			rec.AssetID,
			rec.Filename,
			rec.Path,
			strconv.FormatInt(rec.FileSize, 10),
			created,
			string(rec.Category),
			strconv.FormatFloat(rec.Confidence, 'f', 3, 64),
			rec.Reason(),
			strconv.FormatBool(rec.MarkedForDeletion),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", rec.AssetID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteDeletionScript writes a bash script that moves every marked asset to
// the server trash. The API key is read from $IMMICH_API_KEY at run time.
func (s *Store) WriteDeletionScript(ctx context.Context, w io.Writer, baseURL string) error {
	records, err := s.Query(ctx, Filter{MarkedOnly: true})
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(strings.TrimRight(strings.TrimSpace(baseURL), "/"), "/api")

	var b strings.Builder
	b.WriteString("#!/usr/bin/env bash\n")
	fmt.Fprintf(&b, "# Generated by sweeper at %s. Deletes %d marked assets.\n", s.now().UTC().Format(time.RFC3339), len(records))
	b.WriteString("set -euo pipefail\n\n")
	b.WriteString(": \"${IMMICH_API_KEY:?set IMMICH_API_KEY before running}\"\n")
	fmt.Fprintf(&b, "IMMICH_URL=\"${IMMICH_URL:-%s}\"\n\n", shellEscapeDouble(base))
	for _, rec := range records {
		payload, err := json.Marshal(map[string]any{"ids": []string{rec.AssetID}, "force": false})
		if err != nil {
			return fmt.Errorf("encode delete payload: %w", err)
		}
		fmt.Fprintf(&b, "# %s (%s, %.2f)\n", commentSafe(rec.Filename), rec.Category, rec.Confidence)
		fmt.Fprintf(&b, "curl -fsS -X DELETE \"$IMMICH_URL/api/assets\" -H \"x-api-key: $IMMICH_API_KEY\" -H 'Content-Type: application/json' -d %s\n",
			shellQuote(string(payload)))
	}
	b.WriteString("\necho \"done\"\n")
	_, err = io.WriteString(w, b.String())
	return err
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func shellEscapeDouble(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "$", `\$`, "`", "\\`")
	return r.Replace(s)
}

func commentSafe(s string) string {
	return strings.NewReplacer("\n", " ", "\r", " ").Replace(s)
}
