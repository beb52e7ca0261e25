// Package stakeholder owns the stakeholder lifecycle: creation, validated
// status transitions and the audit record each mutation carries.
package stakeholder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"reftracker.org/internal/apperr"
	"reftracker.org/internal/audit"
	"reftracker.org/internal/auth"
	"reftracker.org/internal/ids"
	"reftracker.org/internal/obs"
)

const (
	entityName = "stakeholder"

	ActionCreated       = "stakeholder.created"
	ActionStatusChanged = "stakeholder.status_changed"
)

// Service orchestrates stakeholder mutations. Authorization is checked by the
// caller; the service enforces the org boundary and the transition table.
type Service struct {
	store    Store
	recorder *audit.Recorder
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the clock used for entity timestamps.
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithNotifier registers an observer for committed changes.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// WithLogger overrides the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService wires a Service over store.
func NewService(store Store, recorder *audit.Recorder, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("stakeholder: store is required")
	}
	if recorder == nil {
		recorder = audit.NewRecorder()
	}
	s := &Service{
		store:    store,
		recorder: recorder,
		logger:   obs.Logger(),
		now:      func() time.Time { return time.Now().UTC() },
		newID:    ids.NewUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Create persists a new stakeholder in status created and returns its id.
// Org and owner default to the actor's.
func (s *Service) Create(ctx context.Context, in CreateInput, actor auth.Actor) (string, error) {
	actor.Normalize()
	if actor.ID == "" {
		return "", apperr.Validation("Actor id is required", nil)
	}
	name := strings.TrimSpace(in.Name)
	if !in.Type.Valid() {
		return "", apperr.Validation("Unknown stakeholder type", map[string]any{"type": string(in.Type)})
	}
	if name == "" {
		return "", apperr.Validation("Name is required", nil)
	}

	orgID := strings.TrimSpace(in.OrgID)
	if orgID == "" {
		orgID = actor.OrgID
	}
	ownerID := strings.TrimSpace(in.OwnerID)
	if ownerID == "" {
		ownerID = actor.ID
	}
	meta := copyMeta(in.Meta)
	now := s.now()

	row := Stakeholder{
		ID:        s.newID(),
		Type:      in.Type,
		Name:      name,
		Status:    StatusCreated,
		OwnerID:   ownerID,
		OrgID:     orgID,
		Meta:      meta,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.Insert(ctx, &row); err != nil {
			return fmt.Errorf("insert stakeholder: %w", err)
		}
		if row.OwnerID != "" {
			member := Member{StakeholderID: row.ID, UserID: row.OwnerID, Role: MemberOwner}
			if err := tx.UpsertMember(ctx, member); err != nil {
				return fmt.Errorf("upsert owner: %w", err)
			}
		}
		_, err := s.recorder.Log(ctx, tx, audit.Entry{
			ActorID:  actor.ID,
			Action:   ActionCreated,
			Entity:   entityName,
			EntityID: row.ID,
			Meta: map[string]any{
				"type":   string(row.Type),
				"name":   row.Name,
				"org_id": nullable(row.OrgID),
			},
		})
		return err
	})
	if err != nil {
		return "", err
	}

	obs.StakeholderCreated(string(row.Type))
	obs.AuditRecorded(ActionCreated)
	s.logger.InfoContext(ctx, "stakeholder created",
		slog.String("stakeholder_id", row.ID),
		slog.String("type", string(row.Type)),
		slog.String("actor_id", actor.ID),
	)
	s.publish(Event{
		Kind:          ActionCreated,
		StakeholderID: row.ID,
		Type:          row.Type,
		OrgID:         row.OrgID,
		ActorID:       actor.ID,
		To:            row.Status,
		At:            now,
	})
	return row.ID, nil
}

// UpdateStatus moves a stakeholder to in.Status. Re-applying the current
// status succeeds without writing anything.
func (s *Service) UpdateStatus(ctx context.Context, in UpdateStatusInput, actor auth.Actor) error {
	actor.Normalize()
	id := strings.TrimSpace(in.StakeholderID)
	if id == "" {
		return apperr.Validation("Stakeholder id is required", nil)
	}
	if !in.Status.Valid() {
		return apperr.Validation("Unknown status", map[string]any{"status": string(in.Status)})
	}
	if actor.ID == "" {
		return apperr.Validation("Actor id is required", nil)
	}

	var (
		changed bool
		current Stakeholder
		at      time.Time
	)
	err := s.store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		current, err = tx.GetForUpdate(ctx, id)
		if errors.Is(err, ErrNotFound) {
			return apperr.NotFound("Stakeholder not found", map[string]any{"stakeholder_id": id})
		}
		if err != nil {
			return fmt.Errorf("load stakeholder: %w", err)
		}
		if err := checkOrg(current, actor, "update"); err != nil {
			return err
		}
		if current.Status == in.Status {
			return nil
		}
		if !CanTransition(current.Status, in.Status) {
			return apperr.Conflict("Status transition not allowed", map[string]any{
				"from":    string(current.Status),
				"to":      string(in.Status),
				"allowed": allowedNames(current.Status),
			})
		}

		at = s.now()
		if err := tx.UpdateStatus(ctx, id, in.Status, at); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		meta := map[string]any{
			"from": string(current.Status),
			"to":   string(in.Status),
		}
		if reason := strings.TrimSpace(in.Reason); reason != "" {
			meta["reason"] = reason
		}
		if _, err := s.recorder.Log(ctx, tx, audit.Entry{
			ActorID:  actor.ID,
			Action:   ActionStatusChanged,
			Entity:   entityName,
			EntityID: id,
			Meta:     meta,
		}); err != nil {
			return err
		}
		changed = true
		return nil
	})
	if err != nil {
		if appErr, ok := apperr.As(err); ok {
			obs.TransitionRejected(appErr.Code())
		}
		return err
	}
	if !changed {
		return nil
	}

	obs.StatusTransition(string(current.Status), string(in.Status))
	obs.AuditRecorded(ActionStatusChanged)
	s.logger.InfoContext(ctx, "stakeholder status changed",
		slog.String("stakeholder_id", id),
		slog.String("from", string(current.Status)),
		slog.String("to", string(in.Status)),
		slog.String("actor_id", actor.ID),
	)
	s.publish(Event{
		Kind:          ActionStatusChanged,
		StakeholderID: id,
		Type:          current.Type,
		OrgID:         current.OrgID,
		ActorID:       actor.ID,
		From:          current.Status,
		To:            in.Status,
		At:            at,
	})
	return nil
}

// Get returns a stakeholder visible to actor.
func (s *Service) Get(ctx context.Context, id string, actor auth.Actor) (Stakeholder, error) {
	actor.Normalize()
	id = strings.TrimSpace(id)
	if id == "" {
		return Stakeholder{}, apperr.Validation("Stakeholder id is required", nil)
	}
	row, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Stakeholder{}, apperr.NotFound("Stakeholder not found", map[string]any{"stakeholder_id": id})
	}
	if err != nil {
		return Stakeholder{}, fmt.Errorf("get stakeholder: %w", err)
	}
	if err := checkOrg(row, actor, "read"); err != nil {
		return Stakeholder{}, err
	}
	return row, nil
}

// checkOrg rejects access across two known, different organizations.
func checkOrg(row Stakeholder, actor auth.Actor, op string) error {
	if row.OrgID != "" && actor.OrgID != "" && row.OrgID != actor.OrgID {
		return apperr.Forbidden("Cross-organization "+op+" rejected", map[string]any{
			"stakeholder_org_id": row.OrgID,
			"actor_org_id":       actor.OrgID,
		})
	}
	return nil
}

func (s *Service) publish(evt Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Publish(evt)
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func allowedNames(from Status) []string {
	next := AllowedTransitions(from)
	out := make([]string, len(next))
	for i, s := range next {
		out[i] = string(s)
	}
	return out
}
