// Package audit records one immutable entry per authorized mutation. Entries
// are appended through the transaction of the mutation they describe, so an
// entry exists exactly when its mutation committed.
package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"reftracker.org/internal/ids"
)

// Entry is an append-only audit record. ID is stamped by the Recorder; Seq and
// CreatedAt are assigned by storage in insertion order.
type Entry struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"`
	ActorID   string         `json:"actor_id"`
	Action    string         `json:"action"`
	Entity    string         `json:"entity"`
	EntityID  string         `json:"entity_id"`
	Meta      map[string]any `json:"meta"`
	CreatedAt time.Time      `json:"created_at"`
}

// Store appends entries. Implementations never update or delete.
type Store interface {
	Append(ctx context.Context, entry *Entry) error
}

// ErrInvalidEntry is returned for entries missing a required field.
var ErrInvalidEntry = errors.New("audit: invalid entry")

type ctxKey struct{}

// WithRequestID attaches the request identifier recorded on entries.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(ctxKey{}).(string)
	return v
}

// Recorder validates and appends entries.
type Recorder struct {
	newID func() string
}

// NewRecorder builds a Recorder stamping ULID identifiers.
func NewRecorder() *Recorder {
	return &Recorder{newID: ids.New}
}

// Log appends entry through store, which must be the transaction of the
// enclosing mutation. Any error must abort that transaction.
func (r *Recorder) Log(ctx context.Context, store Store, entry Entry) (Entry, error) {
	if store == nil {
		return Entry{}, errors.New("audit: store is required")
	}
	entry.ActorID = strings.TrimSpace(entry.ActorID)
	entry.Action = strings.TrimSpace(entry.Action)
	entry.Entity = strings.TrimSpace(entry.Entity)
	entry.EntityID = strings.TrimSpace(entry.EntityID)
	if entry.ActorID == "" || entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return Entry{}, fmt.Errorf("%w: actor_id, action, entity and entity_id are required", ErrInvalidEntry)
	}

	meta := make(map[string]any, len(entry.Meta)+1)
	for k, v := range entry.Meta {
		meta[k] = v
	}
	if rid := requestIDFromContext(ctx); rid != "" {
		if _, taken := meta["request_id"]; !taken {
			meta["request_id"] = rid
		}
	}
	entry.Meta = meta
	entry.ID = r.newID()

	if err := store.Append(ctx, &entry); err != nil {
		return Entry{}, fmt.Errorf("append audit %s: %w", entry.Action, err)
	}
	return entry, nil
}
