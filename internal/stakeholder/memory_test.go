package stakeholder

import (
	"context"
	"errors"
	"testing"
	"time"

	"reftracker.org/internal/audit"
)

func TestInMemoryDiscardsStagedWritesOnError(t *testing.T) {
	store := NewInMemory()
	abort := errors.New("abort")

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.Insert(ctx, &Stakeholder{ID: "s1", Type: TypePayer, Name: "Payer", Status: StatusCreated}); err != nil {
			return err
		}
		if err := tx.UpsertMember(ctx, Member{StakeholderID: "s1", UserID: "u1", Role: MemberOwner}); err != nil {
			return err
		}
		if err := tx.Append(ctx, &audit.Entry{ID: "a1", Action: ActionCreated}); err != nil {
			return err
		}
		return abort
	})
	if !errors.Is(err, abort) {
		t.Fatalf("expected abort, got %v", err)
	}
	if _, err := store.Get(context.Background(), "s1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("staged insert leaked: %v", err)
	}
	if len(store.Members("s1")) != 0 || len(store.AuditEntries()) != 0 {
		t.Fatalf("staged writes leaked")
	}
}

func TestInMemoryTxSeesOwnWrites(t *testing.T) {
	store := NewInMemory()
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.Insert(ctx, &Stakeholder{ID: "s1", Status: StatusCreated}); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, "s1", StatusEngaged, time.Now()); err != nil {
			return err
		}
		row, err := tx.GetForUpdate(ctx, "s1")
		if err != nil {
			return err
		}
		if row.Status != StatusEngaged {
			t.Fatalf("tx should see its own update, got %s", row.Status)
		}
		if err := tx.Insert(ctx, &Stakeholder{ID: "s1"}); err == nil {
			t.Fatalf("duplicate insert accepted")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
}

func TestInMemoryUpsertMemberLastRoleWins(t *testing.T) {
	store := NewInMemory()
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		if err := tx.Insert(ctx, &Stakeholder{ID: "s1"}); err != nil {
			return err
		}
		if err := tx.UpsertMember(ctx, Member{StakeholderID: "s1", UserID: "u1", Role: MemberViewer}); err != nil {
			return err
		}
		return tx.UpsertMember(ctx, Member{StakeholderID: "s1", UserID: "u1", Role: MemberOwner})
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	members := store.Members("s1")
	if len(members) != 1 || members[0].Role != MemberOwner {
		t.Fatalf("unexpected members %+v", members)
	}
	err = store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
		return tx.UpsertMember(ctx, Member{StakeholderID: "missing", UserID: "u1", Role: MemberOwner})
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown stakeholder, got %v", err)
	}
}

func TestInMemoryAuditSequenceAndClock(t *testing.T) {
	store := NewInMemory()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ticks := []time.Time{base, base.Add(-time.Second), base.Add(time.Second)}
	store.now = func() time.Time {
		next := ticks[0]
		ticks = ticks[1:]
		return next
	}
	for i := 0; i < 3; i++ {
		err := store.RunInTx(context.Background(), func(ctx context.Context, tx Tx) error {
			return tx.Append(ctx, &audit.Entry{ID: "a", Action: ActionCreated})
		})
		if err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	entries := store.AuditEntries()
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			t.Fatalf("entry %d has seq %d", i, e.Seq)
		}
		if i > 0 && e.CreatedAt.Before(entries[i-1].CreatedAt) {
			t.Fatalf("created_at went backwards at %d", i)
		}
	}
	if !entries[1].CreatedAt.Equal(base) {
		t.Fatalf("clock skew not clamped: %v", entries[1].CreatedAt)
	}
}
