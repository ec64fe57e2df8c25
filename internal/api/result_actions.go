package api

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"sweeper/internal/classify"
	"sweeper/internal/logging"
	"sweeper/internal/notifications"
	"sweeper/internal/results"
	"sweeper/internal/scan"
	"sweeper/internal/services"
)

const (
	defaultResultLimit = 100
	maxResultLimit     = 1000
	deleteBatchSize    = 100
	notifyTimeout      = 15 * time.Second
)

// Results returns stored candidates matching q, highest confidence first.
func (s *Service) Results(ctx context.Context, q ResultsQuery) (ResultsResponse, error) {
	filter, err := q.filter()
	if err != nil {
		return ResultsResponse{}, err
	}
	recs, err := s.store.Query(ctx, filter)
	if err != nil {
		return ResultsResponse{}, err
	}
	items := FromRecords(recs)
	return ResultsResponse{Items: items, Count: len(items), Limit: filter.Limit, Offset: filter.Offset}, nil
}

func (q ResultsQuery) filter() (results.Filter, error) {
	category := strings.ToLower(strings.TrimSpace(q.Category))
	if category != "" && category != "all" {
		if _, ok := classify.ParseCategory(category); !ok {
			return results.Filter{}, services.Wrap(services.ErrValidation, "api", "results", fmt.Sprintf("unknown category %q", q.Category), nil)
		}
	}
	if q.MinConfidence < 0 || q.MinConfidence > 1 {
		return results.Filter{}, services.Wrap(services.ErrValidation, "api", "results", "min_confidence must be between 0 and 1", nil)
	}
	if q.Offset < 0 {
		return results.Filter{}, services.Wrap(services.ErrValidation, "api", "results", "offset must be non-negative", nil)
	}
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = defaultResultLimit
	case limit > maxResultLimit:
		limit = maxResultLimit
	}
	return results.Filter{
		Category:      category,
		MinConfidence: q.MinConfidence,
		MarkedOnly:    q.MarkedOnly,
		Limit:         limit,
		Offset:        q.Offset,
	}, nil
}

// Statistics summarises the result store.
func (s *Service) Statistics(ctx context.Context) (StatisticsResponse, error) {
	stats, err := s.store.Statistics(ctx)
	if err != nil {
		return StatisticsResponse{}, err
	}
	return FromStatistics(stats), nil
}

// Mark sets or clears the deletion mark on the requested records.
func (s *Service) Mark(ctx context.Context, req MarkRequest) (ActionResponse, error) {
	ids := cleanIDs(req.IDs)
	if len(ids) == 0 {
		return ActionResponse{Message: "no assets selected"}, services.Wrap(services.ErrValidation, "api", "mark", "no assets selected", nil)
	}
	count, err := s.store.Mark(ctx, ids, req.Marked)
	if err != nil {
		return ActionResponse{Message: err.Error()}, err
	}
	verb := "marked"
	if !req.Marked {
		verb = "unmarked"
	}
	return ActionResponse{Success: true, Message: fmt.Sprintf("%d assets %s", count, verb), Count: count}, nil
}

// Delete removes assets from Immich and then from the store. Batches are
// processed in order; a remote failure stops at the failing batch and leaves
// its records in place.
func (s *Service) Delete(ctx context.Context, req DeleteRequest) (ActionResponse, error) {
	h := s.Handle()
	if h == nil {
		return ActionResponse{Message: "immich connection not configured"}, ErrNotConfigured
	}

	ids := cleanIDs(req.IDs)
	if req.Marked {
		marked, err := s.store.MarkedIDs(ctx)
		if err != nil {
			return ActionResponse{Message: err.Error()}, err
		}
		ids = marked
		if len(ids) == 0 {
			return ActionResponse{Success: true, Message: "no assets marked for deletion"}, nil
		}
	}
	if len(ids) == 0 {
		return ActionResponse{Message: "no assets selected"}, services.Wrap(services.ErrValidation, "api", "delete", "no assets selected", nil)
	}

	force := s.config().Immich.ForceDelete
	logger := logging.WithContext(ctx, s.logger)
	var deleted int64
	for start := 0; start < len(ids); start += deleteBatchSize {
		batch := ids[start:min(start+deleteBatchSize, len(ids))]
		if err := h.Client.Delete(ctx, batch, force); err != nil {
			logging.ErrorWithContext(logger, "immich delete failed", "delete_failed",
				logging.Int("batch_size", len(batch)),
				logging.Int64("deleted", deleted),
				logging.String("error_kind", services.Kind(err)),
				logging.String(logging.FieldErrorHint, "check that the API key has asset.delete permission"),
				logging.Error(err),
			)
			s.notifyDeleted(logger, deleted)
			return ActionResponse{
				Message: fmt.Sprintf("deleted %d of %d assets before Immich failed", deleted, len(ids)),
				Count:   deleted,
			}, fmt.Errorf("%w: %w", ErrRemoteDelete, err)
		}
		removed, err := s.store.Remove(ctx, batch)
		if err != nil {
			logging.WarnWithContext(logger, "store cleanup after delete failed", "store_remove_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "deleted assets still listed until the next scan"),
			)
		} else if removed < int64(len(batch)) {
			logger.Debug("deleted assets were not all stored", logging.Int64("removed", removed), logging.Int("batch_size", len(batch)))
		}
		deleted += int64(len(batch))
	}

	logger.Info("assets deleted", logging.Int64("count", deleted), logging.Bool("force", force))
	s.notifyDeleted(logger, deleted)
	return ActionResponse{Success: true, Message: fmt.Sprintf("%d assets deleted", deleted), Count: deleted}, nil
}

// ClearResults drops every stored record and the analysis ledger so the next
// scan starts fresh. It is refused while a run is active.
func (s *Service) ClearResults(ctx context.Context) (ActionResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle != nil && s.handle.Coordinator.Status().Running {
		return ActionResponse{Message: scan.ErrAlreadyRunning.Error()}, scan.ErrAlreadyRunning
	}
	if err := s.store.Clear(ctx); err != nil {
		return ActionResponse{Message: err.Error()}, err
	}
	s.logger.Info("results cleared")
	return ActionResponse{Success: true, Message: "results cleared"}, nil
}

// Export writes every stored record as CSV.
func (s *Service) Export(ctx context.Context, w io.Writer) error {
	return s.store.WriteCSV(ctx, w)
}

// Script writes a shell script that deletes the marked assets with curl.
func (s *Service) Script(ctx context.Context, w io.Writer) error {
	base := s.config().Immich.URL
	if base == "" {
		return ErrNotConfigured
	}
	return s.store.WriteDeletionScript(ctx, w, base)
}

func (s *Service) notifyDeleted(logger *slog.Logger, count int64) {
	if count == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	if err := s.notifier.Publish(ctx, notifications.EventDeleteCompleted, notifications.Payload{"count": count}); err != nil {
		logging.WarnWithContext(logger, "delete notification failed", "notification_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "no push notification delivered"),
		)
	}
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
