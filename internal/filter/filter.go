// Package filter holds the current search, status, priority and page
// selection and persists it across runs.
package filter

import (
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"todo/internal/service"
	"todo/internal/store"
)

// Defaults is the selection used when nothing valid is persisted.
var Defaults = store.FilterSettings{
	Search:   "",
	Status:   service.StatusAll,
	Priority: service.PriorityAll,
	Page:     1,
}

// Patch changes part of the selection. Nil fields are kept.
type Patch struct {
	Search   *string
	Status   *string
	Priority *string
}

// State is the filter and pagination selection.
type State struct {
	creds  *store.Credentials
	logger *zap.Logger

	mu      sync.RWMutex
	current store.FilterSettings
}

// New returns a State at Defaults. creds may be nil for an unpersisted state.
func New(creds *store.Credentials, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{creds: creds, logger: logger, current: Defaults}
}

// Restore loads the persisted selection, merged over Defaults.
// A corrupt record is discarded and Defaults are kept.
func (s *State) Restore() {
	if s.creds == nil {
		return
	}
	loaded := Defaults
	ok, err := s.creds.LoadFilters(&loaded)
	if err != nil {
		if errors.Is(err, store.ErrCorrupt) {
			s.logger.Warn("discarding corrupt saved filters", zap.Error(err))
		} else {
			s.logger.Warn("loading saved filters failed", zap.Error(err))
		}
		return
	}
	if !ok {
		return
	}
	s.mu.Lock()
	s.current = normalize(loaded)
	s.mu.Unlock()
}

// Current returns the selection.
func (s *State) Current() store.FilterSettings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Query returns the selection as a list query.
func (s *State) Query() service.Query {
	c := s.Current()
	return service.Query{Search: c.Search, Status: c.Status, Priority: c.Priority, Page: c.Page}
}

// Update applies p. Changing the search, status or priority resets the page
// to 1. It reports whether the selection changed and a refetch is due.
func (s *State) Update(p Patch) bool {
	s.mu.Lock()
	next := s.current
	if p.Search != nil {
		next.Search = strings.TrimSpace(*p.Search)
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.Priority != nil {
		next.Priority = *p.Priority
	}
	next = normalize(next)
	if next.Search != s.current.Search || next.Status != s.current.Status || next.Priority != s.current.Priority {
		next.Page = 1
	}
	changed := next != s.current
	s.current = next
	s.mu.Unlock()

	s.persist(next)
	return changed
}

// SetPage selects page n without touching the other fields.
func (s *State) SetPage(n int) {
	if n < 1 {
		n = 1
	}
	s.mu.Lock()
	s.current.Page = n
	next := s.current
	s.mu.Unlock()

	s.persist(next)
}

// Reset returns to Defaults.
func (s *State) Reset() {
	s.mu.Lock()
	s.current = Defaults
	s.mu.Unlock()

	s.persist(Defaults)
}

func (s *State) persist(f store.FilterSettings) {
	if s.creds == nil {
		return
	}
	if err := s.creds.SaveFilters(f); err != nil {
		s.logger.Warn("saving filters failed", zap.Error(err))
	}
}

// ValidStatus reports whether v is an accepted status filter.
func ValidStatus(v string) bool {
	switch v {
	case service.StatusAll, service.StatusActive, service.StatusCompleted, service.StatusOverdue:
		return true
	}
	return false
}

// ValidPriority reports whether v is an accepted priority filter.
func ValidPriority(v string) bool {
	if v == service.PriorityAll {
		return true
	}
	for _, p := range service.Priorities {
		if v == string(p) {
			return true
		}
	}
	return false
}

// normalize replaces unknown values with their defaults.
func normalize(f store.FilterSettings) store.FilterSettings {
	if !ValidStatus(f.Status) {
		f.Status = Defaults.Status
	}
	if !ValidPriority(f.Priority) {
		f.Priority = Defaults.Priority
	}
	if f.Page < 1 {
		f.Page = 1
	}
	return f
}
