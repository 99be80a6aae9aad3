package graph

import (
	"time"

	"github.com/google/uuid"
)

// DefaultPageSize is used when a page size is not given.
const DefaultPageSize = 50

// CursorInfo describes an open cursor without advancing it.
type CursorInfo struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Total     int       `json:"total"`
	Position  int       `json:"position"`
	Exhausted bool      `json:"exhausted"`
	CreatedAt time.Time `json:"created_at"`
}

// CursorPage is one batch of results.
type CursorPage struct {
	Items     []SearchMatch `json:"items"`
	Offset    int           `json:"offset"`
	Remaining int           `json:"remaining"`
	Exhausted bool          `json:"exhausted"`
}

type cursor struct {
	id      string
	query   string
	items   []SearchMatch
	pos     int
	created time.Time
}

// Session holds at most one open cursor. Opening a new cursor discards
// the previous one; results are materialized eagerly at open time so
// later graph mutations do not shift pages.
type Session struct {
	cur *cursor
}

// NewSession creates a session with no open cursor.
func NewSession() *Session {
	return &Session{}
}

// Open materializes a result set under a fresh cursor, replacing any
// cursor already open.
func (s *Session) Open(query string, items []SearchMatch) *CursorInfo {
	s.cur = &cursor{
		id:      uuid.New().String(),
		query:   query,
		items:   append([]SearchMatch(nil), items...),
		created: time.Now().UTC(),
	}
	return s.Info()
}

// Next returns the next batch of up to count items. A non-positive
// count uses the default page size. Reading past the end yields an
// empty exhausted page, never an error.
func (s *Session) Next(count int) (*CursorPage, error) {
	if s.cur == nil {
		return nil, InvalidStatef("no cursor open")
	}
	if count <= 0 {
		count = DefaultPageSize
	}
	c := s.cur
	page := &CursorPage{Offset: c.pos}
	end := c.pos + count
	if end > len(c.items) {
		end = len(c.items)
	}
	page.Items = append([]SearchMatch(nil), c.items[c.pos:end]...)
	c.pos = end
	page.Remaining = len(c.items) - c.pos
	page.Exhausted = page.Remaining == 0
	return page, nil
}

// Info reports the open cursor's state, or nil when none is open.
func (s *Session) Info() *CursorInfo {
	if s.cur == nil {
		return nil
	}
	c := s.cur
	return &CursorInfo{
		ID:        c.id,
		Query:     c.query,
		Total:     len(c.items),
		Position:  c.pos,
		Exhausted: c.pos >= len(c.items),
		CreatedAt: c.created,
	}
}

// Close discards the open cursor if any.
func (s *Session) Close() {
	s.cur = nil
}
