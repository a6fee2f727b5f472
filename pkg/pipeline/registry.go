package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ErrDraining is returned by Register once shutdown has begun.
var ErrDraining = errors.New("session registry draining")

// Session is one live audio stream.
type Session struct {
	ID      string
	UserID  string
	Remote  string
	Created time.Time

	clips atomic.Int64
	close func()
}

func (s *Session) AddClip() int64 { return s.clips.Add(1) }
func (s *Session) Clips() int64   { return s.clips.Load() }

// SessionRegistry tracks open streams so shutdown can close and await them.
type SessionRegistry struct {
	sessions sync.Map
	count    atomic.Int64
	draining atomic.Bool
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{}
}

// Register records a new stream. closeFn must unblock the stream's reader.
func (r *SessionRegistry) Register(userID, remote string, closeFn func()) (*Session, error) {
	if r.draining.Load() {
		return nil, ErrDraining
	}
	sess := &Session{
		ID:      uuid.NewString(),
		UserID:  userID,
		Remote:  remote,
		Created: time.Now(),
		close:   closeFn,
	}
	r.sessions.Store(sess.ID, sess)
	r.count.Add(1)
	return sess, nil
}

func (r *SessionRegistry) Get(id string) (*Session, bool) {
	if v, ok := r.sessions.Load(id); ok {
		return v.(*Session), true
	}
	return nil, false
}

// Remove forgets a session without closing it; the stream calls this on exit.
func (r *SessionRegistry) Remove(id string) {
	if _, ok := r.sessions.LoadAndDelete(id); ok {
		r.count.Add(-1)
	}
}

// CloseAll asks every stream to stop. Sessions leave the registry when
// their handler returns.
func (r *SessionRegistry) CloseAll() {
	r.sessions.Range(func(_, value any) bool {
		if sess, ok := value.(*Session); ok && sess.close != nil {
			sess.close()
		}
		return true
	})
}

func (r *SessionRegistry) Count() int64 {
	return r.count.Load()
}

func (r *SessionRegistry) SetDraining(v bool) {
	r.draining.Store(v)
}

func (r *SessionRegistry) Draining() bool {
	return r.draining.Load()
}

func (r *SessionRegistry) WaitForEmpty(ctx context.Context, interval time.Duration) bool {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if r.Count() == 0 {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}
