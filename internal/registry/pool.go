package registry

import (
	"context"
	"errors"
	"fmt"
)

// SessionPool owns a fixed set of sessions created at startup.
// Each request borrows one session, so concurrent requests never share a page.
type SessionPool struct {
	sessions chan Session
	all      []Session
}

// NewSessionPool opens size sessions with open. Sessions opened before a
// failure are closed again.
func NewSessionPool(size int, open func() (Session, error)) (*SessionPool, error) {
	if size < 1 {
		size = 1
	}

	p := &SessionPool{
		sessions: make(chan Session, size),
		all:      make([]Session, 0, size),
	}
	for i := 0; i < size; i++ {
		s, err := open()
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("opening session %d: %w", i+1, err)
		}
		p.all = append(p.all, s)
		p.sessions <- s
	}
	return p, nil
}

// Size returns the number of sessions in the pool
func (p *SessionPool) Size() int {
	return len(p.all)
}

// Acquire waits for a free session or for ctx to end
func (p *SessionPool) Acquire(ctx context.Context) (Session, error) {
	select {
	case s := <-p.sessions:
		return s, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("waiting for session: %w", ctx.Err())
	}
}

// Release returns a session to the pool
func (p *SessionPool) Release(s Session) {
	p.sessions <- s
}

// Close closes every session
func (p *SessionPool) Close() error {
	var errs []error
	for _, s := range p.all {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
