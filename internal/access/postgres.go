package access

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"huddler.io/internal/ids"
	"huddler.io/internal/roles"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store using PostgreSQL. A partial unique index on
// l2_access(user_id) where status in ('pending','approved') backs the
// single-live-request rule at the database level.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

const requestColumns = `id, user_id, status, requested_at, approved_at, coalesce(notes,'')`

func (s *PGStore) CreateRequest(ctx context.Context, r *Request) error {
	if r.ID == "" {
		r.ID = ids.New()
	}
	_, err := s.db.ExecContext(ctx,
		`insert into l2_access(id, user_id, status, requested_at) values($1,$2,$3,$4)`,
		r.ID, r.UserID, r.Status, r.RequestedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *PGStore) LatestForUser(ctx context.Context, userID string) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		`select `+requestColumns+` from l2_access where user_id=$1 order by requested_at desc limit 1`,
		userID)
	return scanRequest(row)
}

func (s *PGStore) HasLive(ctx context.Context, userID string) (bool, error) {
	return s.exists(ctx,
		`select exists(select 1 from l2_access where user_id=$1 and status in ('pending','approved'))`,
		userID)
}

func (s *PGStore) HasApproved(ctx context.Context, userID string) (bool, error) {
	return s.exists(ctx,
		`select exists(select 1 from l2_access where user_id=$1 and status='approved')`,
		userID)
}

func (s *PGStore) exists(ctx context.Context, query, userID string) (bool, error) {
	var ok bool
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *PGStore) ListRequests(ctx context.Context) ([]*Request, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+requestColumns+` from l2_access order by requested_at desc`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *PGStore) DecideLatestPending(ctx context.Context, userID, status, notes string, approvedAt *time.Time) (*Request, error) {
	row := s.db.QueryRowContext(ctx,
		`update l2_access set status=$2, notes=nullif($3,''), approved_at=$4
		 where id = (
		   select id from l2_access
		   where user_id=$1 and status='pending'
		   order by requested_at desc limit 1
		 )
		 and status='pending'
		 returning `+requestColumns,
		userID, status, notes, approvedAt,
	)
	return scanRequest(row)
}

func (s *PGStore) UpsertProfile(ctx context.Context, p *Profile) error {
	_, err := s.db.ExecContext(ctx,
		`insert into users(id, email, full_name, role) values($1,$2,$3,$4)
		 on conflict (id) do update set email=excluded.email, full_name=excluded.full_name, updated_at=now()`,
		p.ID, p.Email, p.FullName, string(p.Role),
	)
	return err
}

func (s *PGStore) SetProfileRole(ctx context.Context, userID string, role roles.Role) error {
	res, err := s.db.ExecContext(ctx,
		`update users set role=$2, updated_at=now() where id=$1`, userID, string(role))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var (
		r          Request
		approvedAt sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Status, &r.RequestedAt, &approvedAt, &r.Notes); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		r.ApprovedAt = &t
	}
	return &r, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
