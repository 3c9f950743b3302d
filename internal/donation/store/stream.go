// Package store holds the donation persistence backends: in-memory, Firestore
// and Postgres. Every backend serves the same operations and reports failures
// through pkg/platform/sentinel errors.
package store

import (
	"context"
	"errors"
	"sort"

	"feedra/internal/donation/models"
	"feedra/internal/donation/normalize"
)

// ErrStreamClosed is returned by Stream.Next once the stream will produce no
// further snapshots, either because it was stopped or because the backend
// terminated it.
var ErrStreamClosed = errors.New("stream closed")

// Stream is a live query. Every successful Next returns the complete, ordered
// result set at that moment. Errors that are not ErrStreamClosed leave the
// stream usable.
type Stream interface {
	Next(ctx context.Context) ([]models.Record, error)
	Stop()
}

// sortNewestFirst orders records by createdAt descending. Records without a
// resolvable createdAt sort last; ties keep insertion order reversed via seq.
func sortNewestFirst(recs []models.Record, seq func(id string) int64) {
	sort.SliceStable(recs, func(i, j int) bool {
		ti, okI := normalize.Instant(recs[i].CreatedAt)
		tj, okJ := normalize.Instant(recs[j].CreatedAt)
		switch {
		case okI && !okJ:
			return true
		case !okI && okJ:
			return false
		case okI && okJ && !ti.Equal(tj):
			return ti.After(tj)
		}
		return seq(recs[i].ID) > seq(recs[j].ID)
	})
}
