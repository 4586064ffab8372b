package database

import (
	"context"
)

const ensureUser = `-- name: EnsureUser :exec
INSERT INTO users (id, created_at)
VALUES ($1, now())
ON CONFLICT (id) DO NOTHING
`

// EnsureUser creates the users row for id if it does not exist yet.
func (q *Queries) EnsureUser(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, ensureUser, id)
	return err
}

const getUser = `-- name: GetUser :one
SELECT id, nickname, height_cm, weight_kg, goals, created_at
FROM users
WHERE id = $1
`

func (q *Queries) GetUser(ctx context.Context, id int64) (User, error) {
	row := q.db.QueryRow(ctx, getUser, id)
	var i User
	err := row.Scan(
		&i.ID,
		&i.Nickname,
		&i.HeightCm,
		&i.WeightKg,
		&i.Goals,
		&i.CreatedAt,
	)
	return i, err
}
