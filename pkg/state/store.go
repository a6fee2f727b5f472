// Package state keeps the most recent recommendation per user.
package state

import (
	"sync"
	"time"

	"github.com/harunnryd/scenecue/pkg/recommend"
)

// GlobalSlot is the key used by deployments without per-user identity.
const GlobalSlot = ""

// AnonymousUser is the id assigned to streams that carry no user_id.
const AnonymousUser = "anon"

type Entry struct {
	Recommendation recommend.Recommendation
	Source         string
	Label          string
	UpdatedAt      time.Time
}

// Store maps user id to its latest Entry. Writers never block readers and
// the last write for a key wins; entries live for the process lifetime.
type Store struct {
	entries sync.Map
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{now: time.Now}
}

// Set overwrites the entry for userID.
func (s *Store) Set(userID string, rec recommend.Recommendation, source, label string) Entry {
	e := Entry{
		Recommendation: rec,
		Source:         source,
		Label:          label,
		UpdatedAt:      s.now(),
	}
	s.entries.Store(userID, e)
	return e
}

func (s *Store) Get(userID string) (Entry, bool) {
	v, ok := s.entries.Load(userID)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// Len counts stored users, including the global slot when set.
func (s *Store) Len() int {
	n := 0
	s.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
