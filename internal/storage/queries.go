package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

type SessionRow struct {
	ID        string
	Token     string
	UserID    string
	UserName  string
	UserEmail string
	ExpiresAt int64
	CreatedAt int64
}

const upsertSession = `
INSERT INTO sessions (id, token, user_id, user_name, user_email, expires_at, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
    token = excluded.token,
    user_name = excluded.user_name,
    user_email = excluded.user_email,
    expires_at = excluded.expires_at
`

func (q *Queries) UpsertSession(ctx context.Context, arg SessionRow) error {
	_, err := q.db.ExecContext(ctx, upsertSession,
		arg.ID, arg.Token, arg.UserID, arg.UserName, arg.UserEmail, arg.ExpiresAt, arg.CreatedAt)
	return err
}

const getSession = `
SELECT id, token, user_id, user_name, user_email, expires_at, created_at
FROM sessions
WHERE id = ? AND expires_at > ?
`

func (q *Queries) GetSession(ctx context.Context, id string, now int64) (SessionRow, error) {
	var r SessionRow
	err := q.db.QueryRowContext(ctx, getSession, id, now).Scan(
		&r.ID, &r.Token, &r.UserID, &r.UserName, &r.UserEmail, &r.ExpiresAt, &r.CreatedAt)
	return r, err
}

const deleteSession = `DELETE FROM sessions WHERE id = ?`

func (q *Queries) DeleteSession(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, deleteSession, id)
	return err
}

const deleteExpiredSessions = `DELETE FROM sessions WHERE expires_at <= ?`

func (q *Queries) DeleteExpiredSessions(ctx context.Context, now int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteExpiredSessions, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
