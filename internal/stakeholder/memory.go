package stakeholder

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"reftracker.org/internal/audit"
)

// InMemory implements Store in process. A unit of work holds the store lock
// for its whole duration and stages its writes; staged writes are applied
// only when the unit of work succeeds.
type InMemory struct {
	mu      sync.RWMutex
	rows    map[string]Stakeholder
	members map[memberKey]Member
	entries []audit.Entry
	seq     int64
	now     func() time.Time
}

type memberKey struct {
	stakeholderID string
	userID        string
}

// NewInMemory creates an empty store.
func NewInMemory() *InMemory {
	return &InMemory{
		rows:    make(map[string]Stakeholder),
		members: make(map[memberKey]Member),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		store:   s,
		rows:    make(map[string]Stakeholder),
		members: make(map[memberKey]Member),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for id, row := range tx.rows {
		s.rows[id] = row
	}
	for k, m := range tx.members {
		s.members[k] = m
	}
	s.entries = append(s.entries, tx.entries...)
	s.seq += int64(len(tx.entries))
	return nil
}

func (s *InMemory) Get(ctx context.Context, id string) (Stakeholder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.rows[id]
	if !ok {
		return Stakeholder{}, ErrNotFound
	}
	row.Meta = copyMeta(row.Meta)
	return row, nil
}

// Members returns the memberships of a stakeholder ordered by user id.
func (s *InMemory) Members(stakeholderID string) []Member {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Member
	for k, m := range s.members {
		if k.stakeholderID == stakeholderID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// AuditEntries returns a copy of the audit log in insertion order.
func (s *InMemory) AuditEntries() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Ping always succeeds.
func (s *InMemory) Ping(ctx context.Context) error {
	return ctx.Err()
}

type memTx struct {
	store   *InMemory
	rows    map[string]Stakeholder
	members map[memberKey]Member
	entries []audit.Entry
}

func (t *memTx) lookup(id string) (Stakeholder, bool) {
	if row, ok := t.rows[id]; ok {
		return row, true
	}
	row, ok := t.store.rows[id]
	return row, ok
}

func (t *memTx) Insert(ctx context.Context, s *Stakeholder) error {
	if s == nil || s.ID == "" {
		return errors.New("stakeholder: id is required")
	}
	if _, exists := t.lookup(s.ID); exists {
		return errors.New("stakeholder: duplicate id")
	}
	row := *s
	row.Meta = copyMeta(s.Meta)
	t.rows[s.ID] = row
	return nil
}

func (t *memTx) GetForUpdate(ctx context.Context, id string) (Stakeholder, error) {
	row, ok := t.lookup(id)
	if !ok {
		return Stakeholder{}, ErrNotFound
	}
	row.Meta = copyMeta(row.Meta)
	return row, nil
}

func (t *memTx) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) error {
	row, ok := t.lookup(id)
	if !ok {
		return ErrNotFound
	}
	row.Status = status
	row.UpdatedAt = at
	t.rows[id] = row
	return nil
}

func (t *memTx) UpsertMember(ctx context.Context, m Member) error {
	if _, ok := t.lookup(m.StakeholderID); !ok {
		return ErrNotFound
	}
	t.members[memberKey{stakeholderID: m.StakeholderID, userID: m.UserID}] = m
	return nil
}

func (t *memTx) Append(ctx context.Context, entry *audit.Entry) error {
	if entry == nil {
		return audit.ErrInvalidEntry
	}
	now := t.store.now()
	if last, ok := t.lastCreatedAt(); ok && now.Before(last) {
		now = last
	}
	entry.Seq = t.store.seq + int64(len(t.entries)) + 1
	entry.CreatedAt = now
	stored := *entry
	stored.Meta = copyMeta(entry.Meta)
	t.entries = append(t.entries, stored)
	return nil
}

// lastCreatedAt keeps audit timestamps non-decreasing in insertion order.
func (t *memTx) lastCreatedAt() (time.Time, bool) {
	if n := len(t.entries); n > 0 {
		return t.entries[n-1].CreatedAt, true
	}
	if n := len(t.store.entries); n > 0 {
		return t.store.entries[n-1].CreatedAt, true
	}
	return time.Time{}, false
}
