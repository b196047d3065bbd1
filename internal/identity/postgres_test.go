package identity

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestPGStoreFind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta(`select id, email, metadata, created_at, updated_at from identities where id=$1`)).
		WithArgs("id-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "metadata", "created_at", "updated_at"}).
			AddRow("id-1", "a@b.co", []byte(`{"role":"admin","full_name":"Ada"}`), now, now))

	store := NewPGStore(db)
	ident, err := store.Find(context.Background(), "id-1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if ident.Email != "a@b.co" || ident.Metadata["role"] != "admin" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreFindMissing(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery(regexp.QuoteMeta(`select id, email, metadata, created_at, updated_at from identities where email=$1`)).
		WithArgs("nobody@b.co").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "metadata", "created_at", "updated_at"}))

	store := NewPGStore(db)
	if _, err := store.FindByEmail(context.Background(), "nobody@b.co"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreUpdateMetadataMissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`update identities set metadata=$2, updated_at=now() where id=$1`)).
		WithArgs("ghost", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPGStore(db)
	err = store.UpdateMetadata(context.Background(), "ghost", map[string]string{"role": "admin"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err=%v, want ErrNotFound", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGStoreCreateAssignsID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta(`insert into identities(id, email, password_hash, metadata) values($1,$2,$3,$4)`)).
		WithArgs(sqlmock.AnyArg(), "a@b.co", "hash", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	store := NewPGStore(db)
	ident := &Identity{Email: "a@b.co"}
	if err := store.Create(context.Background(), ident, "hash"); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if ident.ID == "" {
		t.Fatal("expected generated id")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
