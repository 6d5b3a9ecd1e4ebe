package routing

import (
	"context"
	"errors"
	"sync"
)

// Sessions keeps at most one in-flight request per client session. Starting
// a new request cancels the previous one of the same session.
type Sessions struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[string]flight
}

type flight struct {
	seq    uint64
	cancel context.CancelCauseFunc
}

// NewSessions returns an empty guard.
func NewSessions() *Sessions {
	return &Sessions{inflight: make(map[string]flight)}
}

// Begin registers a request for session and returns its context and a
// release func that must be called when the request ends. An empty session
// is not guarded.
func (s *Sessions) Begin(ctx context.Context, session string) (context.Context, func()) {
	if session == "" {
		return ctx, func() {}
	}

	ctx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	if prev, ok := s.inflight[session]; ok {
		prev.cancel(ErrSuperseded)
	}
	s.inflight[session] = flight{seq: seq, cancel: cancel}
	s.mu.Unlock()

	return ctx, func() {
		s.mu.Lock()
		if cur, ok := s.inflight[session]; ok && cur.seq == seq {
			delete(s.inflight, session)
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

// Len returns the number of guarded in-flight requests.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Superseded reports whether ctx was cancelled by a newer request.
func Superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrSuperseded)
}
