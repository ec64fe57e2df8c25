package api

import (
	"context"
	"errors"

	"sweeper/internal/events"
)

// Events returns progress events after since. With follow set it waits until
// an event arrives or ctx ends, and an expired wait yields an empty page.
func (s *Service) Events(ctx context.Context, since uint64, limit int, follow bool) (EventsResponse, error) {
	evts, next, err := s.hub.Fetch(ctx, since, limit, follow)
	if err != nil && !(follow && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled))) {
		return EventsResponse{}, err
	}
	if evts == nil {
		evts = []events.Event{}
	}
	return EventsResponse{Events: evts, Next: next}, nil
}
