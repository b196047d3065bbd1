package access

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"huddler.io/internal/roles"
)

func TestPGStoreDecideLatestPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`update l2_access set status=\$2`).
		WithArgs("u1", StatusApproved, "", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "requested_at", "approved_at", "coalesce"}).
			AddRow("r1", "u1", StatusApproved, now.Add(-time.Hour), now, ""))

	store := NewPGStore(db)
	r, err := store.DecideLatestPending(context.Background(), "u1", StatusApproved, "", &now)
	if err != nil {
		t.Fatalf("DecideLatestPending: %v", err)
	}
	if r.Status != StatusApproved || r.ApprovedAt == nil {
		t.Fatalf("unexpected request: %+v", r)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreDecideNoPending(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(`update l2_access set status=\$2`).
		WithArgs("u1", StatusRejected, "nope", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "status", "requested_at", "approved_at", "coalesce"}))

	store := NewPGStore(db)
	if _, err := store.DecideLatestPending(context.Background(), "u1", StatusRejected, "nope", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreHasLive(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`select exists(select 1 from l2_access where user_id=$1 and status in ('pending','approved'))`)).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	store := NewPGStore(db)
	live, err := store.HasLive(context.Background(), "u1")
	if err != nil {
		t.Fatalf("HasLive: %v", err)
	}
	if !live {
		t.Fatal("expected live=true")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreSetProfileRoleMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`update users set role=$2, updated_at=now() where id=$1`)).
		WithArgs("ghost", "admin").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	if err := store.SetProfileRole(context.Background(), "ghost", roles.Admin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
