package pg

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"reftracker.org/internal/apperr"
	"reftracker.org/internal/audit"
	"reftracker.org/internal/auth"
	"reftracker.org/internal/stakeholder"
)

var (
	actor = auth.Actor{ID: "U1", Roles: []string{auth.RoleManager}, OrgID: "O1"}
	epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	stakeholderColumns = []string{"id", "type", "name", "status", "owner_id", "org_id", "meta", "created_at", "updated_at"}
)

func newMockService(t *testing.T) (*stakeholder.Service, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	svc, err := stakeholder.NewService(New(db), audit.NewRecorder(), stakeholder.WithClock(func() time.Time { return epoch }))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, mock
}

func lockedRow(id, status, orgID string) *sqlmock.Rows {
	var org any
	if orgID != "" {
		org = orgID
	}
	return sqlmock.NewRows(stakeholderColumns).
		AddRow(id, "referrer", "Cardio Partners", status, "U1", org, []byte(`{"notes":"x"}`), epoch, epoch)
}

func auditReturning(seq int64) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"seq", "created_at"}).AddRow(seq, epoch)
}

func TestCreateWritesRowMemberAndAudit(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into stakeholders").
		WithArgs(sqlmock.AnyArg(), "facility", "Acme Health", "created", "U1", "O1", `{"notes":"Priority lead"}`, epoch, epoch).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("on conflict (stakeholder_id, user_id) do update")).
		WithArgs(sqlmock.AnyArg(), "U1", "owner").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into audit_log.*returning seq, created_at").
		WithArgs(sqlmock.AnyArg(), "U1", "stakeholder.created", "stakeholder", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(auditReturning(1))
	mock.ExpectCommit()

	id, err := svc.Create(context.Background(), stakeholder.CreateInput{
		Type: stakeholder.TypeFacility,
		Name: "Acme Health",
		Meta: map[string]any{"notes": "Priority lead"},
	}, actor)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if id == "" {
		t.Fatalf("expected id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateWithoutOrgStoresNull(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into stakeholders").
		WithArgs(sqlmock.AnyArg(), "internal", "Field Team", "created", "U2", nil, "{}", epoch, epoch).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("insert into stakeholder_members").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into audit_log").WillReturnRows(auditReturning(2))
	mock.ExpectCommit()

	_, err := svc.Create(context.Background(), stakeholder.CreateInput{Type: stakeholder.TypeInternal, Name: "Field Team"}, auth.Actor{ID: "U2"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateDuplicateIsConflict(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("insert into stakeholders").WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "stakeholders_pkey"})
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), stakeholder.CreateInput{Type: stakeholder.TypePayer, Name: "Payer"}, actor)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusLocksRowThenWrites(t *testing.T) {
	svc, mock := newMockService(t)
	const id = "33333333-3333-3333-3333-333333333333"

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("from stakeholders where id = $1 for update")).
		WithArgs(id).
		WillReturnRows(lockedRow(id, "created", "O1"))
	mock.ExpectExec(regexp.QuoteMeta("update stakeholders set status = $2, updated_at = $3 where id = $1")).
		WithArgs(id, "engaged", epoch).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into audit_log").
		WithArgs(sqlmock.AnyArg(), "U1", "stakeholder.status_changed", "stakeholder", id, `{"from":"created","reason":"Kickoff call scheduled","to":"engaged"}`).
		WillReturnRows(auditReturning(7))
	mock.ExpectCommit()

	err := svc.UpdateStatus(context.Background(), stakeholder.UpdateStatusInput{StakeholderID: id, Status: stakeholder.StatusEngaged, Reason: "Kickoff call scheduled"}, actor)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusAuditFailureRollsBack(t *testing.T) {
	svc, mock := newMockService(t)
	const id = "s1"

	mock.ExpectBegin()
	mock.ExpectQuery("for update").WithArgs(id).WillReturnRows(lockedRow(id, "engaged", "O1"))
	mock.ExpectExec("update stakeholders set status").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("insert into audit_log").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := svc.UpdateStatus(context.Background(), stakeholder.UpdateStatusInput{StakeholderID: id, Status: stakeholder.StatusActive}, actor)
	if err == nil {
		t.Fatalf("expected audit failure to surface")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusRejectionsRollBack(t *testing.T) {
	cases := []struct {
		name   string
		rows   *sqlmock.Rows
		target stakeholder.Status
		kind   error
	}{
		{name: "conflict", rows: lockedRow("s1", "created", "O1"), target: stakeholder.StatusActive, kind: apperr.ErrConflict},
		{name: "cross org", rows: lockedRow("s1", "engaged", "O2"), target: stakeholder.StatusActive, kind: apperr.ErrForbidden},
		{name: "missing", rows: sqlmock.NewRows(stakeholderColumns), target: stakeholder.StatusActive, kind: apperr.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, mock := newMockService(t)
			mock.ExpectBegin()
			mock.ExpectQuery("for update").WithArgs("s1").WillReturnRows(tc.rows)
			mock.ExpectRollback()

			err := svc.UpdateStatus(context.Background(), stakeholder.UpdateStatusInput{StakeholderID: "s1", Status: tc.target}, actor)
			if !errors.Is(err, tc.kind) {
				t.Fatalf("expected %v, got %v", tc.kind, err)
			}
			if err := mock.ExpectationsWereMet(); err != nil {
				t.Fatalf("unmet expectations: %v", err)
			}
		})
	}
}

func TestMalformedIDIsNotFound(t *testing.T) {
	malformed := &pgconn.PgError{Code: "22P02", Message: `invalid input syntax for type uuid: "abc"`}

	svc, mock := newMockService(t)
	mock.ExpectBegin()
	mock.ExpectQuery("for update").WithArgs("abc").WillReturnError(malformed)
	mock.ExpectRollback()

	err := svc.UpdateStatus(context.Background(), stakeholder.UpdateStatusInput{StakeholderID: "abc", Status: stakeholder.StatusEngaged}, actor)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectQuery("from stakeholders where id = ").WithArgs("abc").WillReturnError(malformed)
	if _, err := svc.Get(context.Background(), "abc", actor); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUpdateStatusSameStatusCommitsNothing(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectQuery("for update").WithArgs("s1").WillReturnRows(lockedRow("s1", "dormant", "O1"))
	mock.ExpectCommit()

	if err := svc.UpdateStatus(context.Background(), stakeholder.UpdateStatusInput{StakeholderID: "s1", Status: stakeholder.StatusDormant}, actor); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestGetScansNullableColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()
	store := New(db)

	mock.ExpectQuery("from stakeholders where id = ").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(stakeholderColumns).AddRow("s1", "payer", "Payer", "active", nil, nil, []byte(`{"tier":2}`), epoch, epoch))

	row, err := store.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if row.OrgID != "" || row.OwnerID != "" {
		t.Fatalf("expected empty org and owner, got %+v", row)
	}
	if row.Status != stakeholder.StatusActive || row.Type != stakeholder.TypePayer {
		t.Fatalf("unexpected row %+v", row)
	}
	if row.Meta["tier"] != float64(2) {
		t.Fatalf("meta not decoded: %v", row.Meta)
	}

	mock.ExpectQuery("from stakeholders where id = ").WithArgs("gone").WillReturnRows(sqlmock.NewRows(stakeholderColumns))
	if _, err := store.Get(context.Background(), "gone"); !errors.Is(err, stakeholder.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
