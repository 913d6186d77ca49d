// Package pg is the PostgreSQL repository behind the guard layer and the
// account directory.
package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"ticketdesk.org/internal/access"
	"ticketdesk.org/internal/auth"
	"ticketdesk.org/internal/ticket"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

var (
	_ auth.CredentialStore = (*Store)(nil)
	_ auth.UserStore       = (*Store)(nil)
	_ ticket.Store         = (*Store)(nil)
)

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

// NewWithDB wraps an existing handle (tests use this with sqlmock).
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Tickets() ticket.TicketStore   { return (*ticketStore)(s) }
func (s *Store) Comments() ticket.CommentStore { return (*commentStore)(s) }
func (s *Store) Pins() ticket.PinStore         { return (*pinStore)(s) }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- auth.CredentialStore / auth.UserStore ---

func (s *Store) FindByEmail(ctx context.Context, email string) (auth.Identity, string, error) {
	var (
		id   int64
		role string
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`select id, role, password_hash from users where email=$1`, email,
	).Scan(&id, &role, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, "", auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, "", err
	}
	return auth.Identity{ID: id, Email: email, Role: access.ParseRole(role)}, hash, nil
}

func (s *Store) Create(ctx context.Context, email, passwordHash string, role access.Role) (auth.Identity, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`insert into users(email, password_hash, role, created_at)
		 values ($1, $2, $3, now())
		 returning id`,
		email, passwordHash, string(role),
	).Scan(&id)
	if isUniqueViolation(err) {
		return auth.Identity{}, auth.ErrAlreadyExists
	}
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{ID: id, Email: email, Role: role}, nil
}

func (s *Store) Get(ctx context.Context, id int64) (auth.Identity, error) {
	var (
		email string
		role  string
	)
	err := s.db.QueryRowContext(ctx,
		`select email, role from users where id=$1`, id,
	).Scan(&email, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{ID: id, Email: email, Role: access.ParseRole(role)}, nil
}

func (s *Store) List(ctx context.Context) ([]auth.Identity, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, email, role from users order by email`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []auth.Identity
	for rows.Next() {
		var (
			u    auth.Identity
			role string
		)
		if err := rows.Scan(&u.ID, &u.Email, &role); err != nil {
			return nil, err
		}
		u.Role = access.ParseRole(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, id int64, upd auth.IdentityUpdate) (auth.Identity, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return auth.Identity{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if upd.Email != nil {
		if _, err := tx.ExecContext(ctx, `update users set email=$1 where id=$2`, *upd.Email, id); err != nil {
			if isUniqueViolation(err) {
				return auth.Identity{}, auth.ErrAlreadyExists
			}
			return auth.Identity{}, err
		}
	}
	if upd.Password != nil {
		if _, err := tx.ExecContext(ctx, `update users set password_hash=$1 where id=$2`, *upd.Password, id); err != nil {
			return auth.Identity{}, err
		}
	}
	if upd.Role != nil {
		if _, err := tx.ExecContext(ctx, `update users set role=$1 where id=$2`, string(*upd.Role), id); err != nil {
			return auth.Identity{}, err
		}
	}

	var (
		email string
		role  string
	)
	err = tx.QueryRowContext(ctx, `select email, role from users where id=$1`, id).Scan(&email, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, auth.ErrNotFound
	}
	if err != nil {
		return auth.Identity{}, err
	}
	if err := tx.Commit(); err != nil {
		return auth.Identity{}, err
	}
	return auth.Identity{ID: id, Email: email, Role: access.ParseRole(role)}, nil
}

// Delete removes the account. Owned tickets, comments and pins cascade at
// the schema level; assignments on surviving tickets reset to null.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `delete from users where id=$1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return auth.ErrNotFound
	}
	return nil
}
