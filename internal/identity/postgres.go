package identity

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"huddler.io/internal/ids"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const identityColumns = `id, email, metadata, created_at, updated_at`

func (s *PGStore) Create(ctx context.Context, ident *Identity, passwordHash string) error {
	if ident.ID == "" {
		ident.ID = ids.New()
	}
	meta, _ := json.Marshal(ident.Metadata)
	_, err := s.db.ExecContext(ctx,
		`insert into identities(id, email, password_hash, metadata) values($1,$2,$3,$4)`,
		ident.ID, ident.Email, passwordHash, meta,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (s *PGStore) Find(ctx context.Context, id string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where id=$1`, id)
	return scanIdentity(row)
}

func (s *PGStore) FindByEmail(ctx context.Context, email string) (*Identity, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+identityColumns+` from identities where email=$1`, email)
	return scanIdentity(row)
}

func (s *PGStore) List(ctx context.Context) ([]*Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+identityColumns+` from identities order by created_at asc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Identity
	for rows.Next() {
		ident, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, ident)
	}
	return res, rows.Err()
}

func (s *PGStore) PasswordHash(ctx context.Context, id string) (string, error) {
	row := s.db.QueryRowContext(ctx,
		`select password_hash from identities where id=$1`, id)
	var hash string
	if err := row.Scan(&hash); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", err
	}
	return hash, nil
}

func (s *PGStore) SetPasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`update identities set password_hash=$2, updated_at=now() where id=$1`, id, hash)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *PGStore) UpdateMetadata(ctx context.Context, id string, metadata map[string]string) error {
	meta, _ := json.Marshal(metadata)
	res, err := s.db.ExecContext(ctx,
		`update identities set metadata=$2, updated_at=now() where id=$1`, id, meta)
	if err != nil {
		return err
	}
	return requireRow(res)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (*Identity, error) {
	var (
		ident    Identity
		metadata []byte
	)
	if err := row.Scan(&ident.ID, &ident.Email, &metadata, &ident.CreatedAt, &ident.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_ = json.Unmarshal(metadata, &ident.Metadata)
	return &ident, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
