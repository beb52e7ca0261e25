package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"reftracker.org/internal/apperr"
	"reftracker.org/internal/audit"
	"reftracker.org/internal/stakeholder"
)

const (
	uniqueViolation           = "23505"
	invalidTextRepresentation = "22P02"
)

type Store struct {
	db *sql.DB
}

var _ stakeholder.Store = (*Store)(nil)

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	// Tuned pool defaults; adjust under load tests
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// New wraps an existing handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// RunInTx runs fn in a read-committed transaction. Row locks taken through
// GetForUpdate are held until commit or rollback.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx stakeholder.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (stakeholder.Stakeholder, error) {
	return scanStakeholder(s.db.QueryRowContext(ctx, selectStakeholder+` where id = $1`, id))
}

const selectStakeholder = `
		select id, type, name, status, owner_id, org_id, meta, created_at, updated_at
		from stakeholders`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStakeholder(row rowScanner) (stakeholder.Stakeholder, error) {
	var (
		out       stakeholder.Stakeholder
		kind      string
		status    string
		ownerID   sql.NullString
		orgID     sql.NullString
		metaBytes []byte
	)
	err := row.Scan(&out.ID, &kind, &out.Name, &status, &ownerID, &orgID, &metaBytes, &out.CreatedAt, &out.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return stakeholder.Stakeholder{}, stakeholder.ErrNotFound
	}
	if err != nil {
		return stakeholder.Stakeholder{}, err
	}
	out.Type = stakeholder.Type(kind)
	out.Status = stakeholder.Status(status)
	out.OwnerID = ownerID.String
	out.OrgID = orgID.String
	out.Meta = map[string]any{}
	if len(metaBytes) > 0 {
		if err := json.Unmarshal(metaBytes, &out.Meta); err != nil {
			return stakeholder.Stakeholder{}, fmt.Errorf("decode meta: %w", err)
		}
	}
	return out, nil
}

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) Insert(ctx context.Context, s *stakeholder.Stakeholder) error {
	meta, err := encodeMeta(s.Meta)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(ctx, `
		insert into stakeholders(id, type, name, status, owner_id, org_id, meta, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7::jsonb, $8, $9)
	`, s.ID, string(s.Type), s.Name, string(s.Status), nullString(s.OwnerID), nullString(s.OrgID), meta, s.CreatedAt, s.UpdatedAt)
	return mapError(err)
}

func (t *pgTx) GetForUpdate(ctx context.Context, id string) (stakeholder.Stakeholder, error) {
	return scanStakeholder(t.tx.QueryRowContext(ctx, selectStakeholder+` where id = $1 for update`, id))
}

func (t *pgTx) UpdateStatus(ctx context.Context, id string, status stakeholder.Status, at time.Time) error {
	res, err := t.tx.ExecContext(ctx, `update stakeholders set status = $2, updated_at = $3 where id = $1`, id, string(status), at)
	if isMalformedID(err) {
		return stakeholder.ErrNotFound
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return stakeholder.ErrNotFound
	}
	return nil
}

func (t *pgTx) UpsertMember(ctx context.Context, m stakeholder.Member) error {
	_, err := t.tx.ExecContext(ctx, `
		insert into stakeholder_members(stakeholder_id, user_id, role)
		values ($1, $2, $3)
		on conflict (stakeholder_id, user_id) do update
		set role = excluded.role
	`, m.StakeholderID, m.UserID, string(m.Role))
	return mapError(err)
}

func (t *pgTx) Append(ctx context.Context, entry *audit.Entry) error {
	if entry == nil {
		return audit.ErrInvalidEntry
	}
	meta, err := encodeMeta(entry.Meta)
	if err != nil {
		return err
	}
	return t.tx.QueryRowContext(ctx, `
		insert into audit_log(id, actor_id, action, entity, entity_id, meta)
		values ($1, $2, $3, $4, $5, $6::jsonb)
		returning seq, created_at
	`, entry.ID, entry.ActorID, entry.Action, entry.Entity, entry.EntityID, meta).Scan(&entry.Seq, &entry.CreatedAt)
}

func encodeMeta(meta map[string]any) (string, error) {
	if meta == nil {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("encode meta: %w", err)
	}
	return string(b), nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

// isMalformedID reports a value Postgres could not cast to uuid; no row can
// carry such an id.
func isMalformedID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation
}

func mapError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.Conflict("Duplicate record", map[string]any{"constraint": pgErr.ConstraintName})
	}
	return err
}
