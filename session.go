package blendsql

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ZhaoFuheng/blendsql/backend"
)

// session tracks the temp tables one top-level Blend call has created, so
// they can all be dropped in a single cleanup pass when the outermost
// call returns — mirroring the Python orchestrator's single `finally`
// block at the bottom of its recursive blend() function, which drains one
// shared cleanup set regardless of how deep the recursion went.
type session struct {
	id      string
	backend backend.Backend
	temp    []string
}

// newSession generates a short random session id and returns a session
// ready to track temp tables for one Blend call. Using a UUID (truncated)
// rather than a counter keeps concurrent Blend calls against the same
// backend connection from colliding on temp table names.
func newSession(be backend.Backend) *session {
	id := uuid.NewString()[:SessionIDLength]

	return &session{id: id, backend: be}
}

// TempTableName returns a unique temp table name for this session derived
// from a stable label (e.g. a subquery's alias, or a base table name a
// MAP ingredient is writing a new column into) and the number of names
// the session has handed out so far, so a label used twice still yields
// two distinct tables.
func (s *session) TempTableName(label string) string {
	name := fmt.Sprintf("blendsql_%s_%d_%s", s.id, len(s.temp), label)
	s.temp = append(s.temp, name)

	return name
}

// cleanup drops every temp table this session created. It is invoked
// exactly once, from the outermost Blend call's deferred cleanup, never
// from a nested subquery resolution.
func (s *session) cleanup(ctx context.Context) {
	for _, name := range s.temp {
		_ = s.backend.DropTable(ctx, name)
	}
}
