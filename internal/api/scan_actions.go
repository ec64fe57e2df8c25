package api

import (
	"context"

	"sweeper/internal/scan"
)

// Status returns the current run state. An unconfigured service reports idle.
func (s *Service) Status() RunStatus {
	h := s.Handle()
	if h == nil {
		return FromRunState(scan.RunState{Status: scan.StatusIdle}, false)
	}
	return FromRunState(h.Coordinator.Status(), true)
}

// Start launches a background run. The run is detached from ctx cancellation
// so it outlives the request that started it; use Stop to end it. The read
// lock is held until the run is registered so Configure cannot swap the
// handle underneath it.
func (s *Service) Start(ctx context.Context) (ActionResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h := s.handle
	if h == nil {
		return ActionResponse{Message: "immich connection not configured"}, ErrNotConfigured
	}
	state, err := h.Coordinator.Start(context.WithoutCancel(ctx))
	if err != nil {
		run := FromRunState(state, true)
		return ActionResponse{Message: err.Error(), Run: &run}, err
	}
	run := FromRunState(state, true)
	return ActionResponse{Success: true, Message: "scan started", Run: &run}, nil
}

// Stop requests cancellation of the active run.
func (s *Service) Stop() (ActionResponse, error) {
	h := s.Handle()
	if h == nil {
		return ActionResponse{Message: scan.ErrNotRunning.Error()}, scan.ErrNotRunning
	}
	if err := h.Coordinator.Stop(); err != nil {
		return ActionResponse{Message: err.Error()}, err
	}
	run := FromRunState(h.Coordinator.Status(), true)
	return ActionResponse{Success: true, Message: "stop requested", Run: &run}, nil
}
