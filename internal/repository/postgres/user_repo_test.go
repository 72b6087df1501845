package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/and161185/passkit/internal/errs"
	"github.com/and161185/passkit/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

const (
	encHash  = "$argon2id$v=19$m=64,t=2,p=2$c29tZXNhbHQ$NQrDciL0Nsy1wJcvHr079rlYvyBxhBNi"
	encHash2 = "$argon2id$v=19$m=128,t=2,p=2$c29tZXNhbHQ$NQrDciL0Nsy1wJcvHr079rlYvyBxhBNi"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

var userCols = []string{"id", "username", "password_hash", "mac_key", "created_at", "updated_at"}

func TestUserRepo_Create_OK_and_UniqueViolation(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	u := &model.User{
		ID:           uuid.Must(uuid.NewV4()),
		Username:     "u",
		PasswordHash: encHash,
		MACKey:       []byte("k"),
	}

	mock.ExpectExec(`INSERT INTO users \(id, username, password_hash, mac_key\) VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs(u.ID, u.Username, u.PasswordHash, u.MACKey).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, r.Create(ctx, u))

	mock.ExpectExec(`INSERT INTO users \(id, username, password_hash, mac_key\) VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs(u.ID, u.Username, u.PasswordHash, u.MACKey).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	require.ErrorIs(t, r.Create(ctx, u), errs.ErrAlreadyExists)

	boom := errors.New("boom")
	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(u.ID, u.Username, u.PasswordHash, u.MACKey).
		WillReturnError(boom)
	require.ErrorIs(t, r.Create(ctx, u), boom)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepo_GetByID(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT id, username, password_hash, mac_key, created_at, updated_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(userCols).AddRow(id, "u", encHash, []byte("k"), now, now))
	u, err := r.GetByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, id, u.ID)
	require.Equal(t, encHash, u.PasswordHash)

	mock.ExpectQuery(`SELECT id, username, password_hash, mac_key, created_at, updated_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, errs.ErrNotFound)

	mock.ExpectQuery(`SELECT id, username, password_hash, mac_key, created_at, updated_at FROM users WHERE id=\$1`).
		WithArgs(id).
		WillReturnError(context.Canceled)
	_, err = r.GetByID(ctx, id)
	require.ErrorIs(t, err, context.Canceled)
}

func TestUserRepo_GetByUsername(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	name := "u2"
	id := uuid.Must(uuid.NewV4())
	now := time.Now()

	mock.ExpectQuery(`SELECT id, username, password_hash, mac_key, created_at, updated_at FROM users WHERE username=\$1`).
		WithArgs(name).
		WillReturnRows(pgxmock.NewRows(userCols).AddRow(id, name, encHash, []byte("k"), now, now))
	u, err := r.GetByUsername(ctx, name)
	require.NoError(t, err)
	require.Equal(t, name, u.Username)
	require.Equal(t, []byte("k"), u.MACKey)

	mock.ExpectQuery(`SELECT id, username, password_hash, mac_key, created_at, updated_at FROM users WHERE username=\$1`).
		WithArgs(name).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetByUsername(ctx, name)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestUserRepo_UpdatePasswordHash(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewUserRepo(db)
	ctx := context.Background()
	id := uuid.Must(uuid.NewV4())

	mock.ExpectExec(`UPDATE users SET password_hash = \$3, updated_at = now\(\) WHERE id = \$1 AND password_hash = \$2`).
		WithArgs(id, encHash, encHash2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, r.UpdatePasswordHash(ctx, id, encHash, encHash2))

	mock.ExpectExec(`UPDATE users SET password_hash = \$3, updated_at = now\(\) WHERE id = \$1 AND password_hash = \$2`).
		WithArgs(id, encHash, encHash2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	require.ErrorIs(t, r.UpdatePasswordHash(ctx, id, encHash, encHash2), errs.ErrConflict)
}

func TestDB_Ready(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()

	mock.ExpectPing()
	require.NoError(t, db.Ready(context.Background(), time.Second))

	mock.ExpectPing().WillReturnError(errors.New("down"))
	require.Error(t, db.Ready(context.Background(), time.Second))
}
