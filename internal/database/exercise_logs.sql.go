package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const exerciseLogColumns = `id, user_id, image_path, logged_at, exercise_type, feedback_text`

func scanExerciseLog(row interface{ Scan(...interface{}) error }) (ExerciseLog, error) {
	var i ExerciseLog
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ImagePath,
		&i.LoggedAt,
		&i.ExerciseType,
		&i.FeedbackText,
	)
	i.LoggedAt = i.LoggedAt.UTC()
	return i, err
}

const createExerciseLog = `-- name: CreateExerciseLog :one
INSERT INTO exercise_logs (user_id, image_path, logged_at, exercise_type, feedback_text)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + exerciseLogColumns

type CreateExerciseLogParams struct {
	UserID       int64
	ImagePath    pgtype.Text
	LoggedAt     time.Time
	ExerciseType string
	FeedbackText string
}

func (q *Queries) CreateExerciseLog(ctx context.Context, arg CreateExerciseLogParams) (ExerciseLog, error) {
	row := q.db.QueryRow(ctx, createExerciseLog,
		arg.UserID,
		arg.ImagePath,
		arg.LoggedAt,
		arg.ExerciseType,
		arg.FeedbackText,
	)
	return scanExerciseLog(row)
}

const listExerciseLogs = `-- name: ListExerciseLogs :many
SELECT ` + exerciseLogColumns + `
FROM exercise_logs
WHERE user_id = $1
ORDER BY logged_at DESC, id DESC
LIMIT $2
`

type ListExerciseLogsParams struct {
	UserID int64
	// Limit is nullable; NULL means no limit.
	Limit pgtype.Int4
}

func (q *Queries) ListExerciseLogs(ctx context.Context, arg ListExerciseLogsParams) ([]ExerciseLog, error) {
	rows, err := q.db.Query(ctx, listExerciseLogs, arg.UserID, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []ExerciseLog{}
	for rows.Next() {
		i, err := scanExerciseLog(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const latestExerciseTimestamp = `-- name: LatestExerciseTimestamp :one
SELECT max(logged_at)::timestamptz
FROM exercise_logs
WHERE user_id = $1
`

// LatestExerciseTimestamp returns an invalid Timestamptz when the user has no entries.
func (q *Queries) LatestExerciseTimestamp(ctx context.Context, userID int64) (pgtype.Timestamptz, error) {
	row := q.db.QueryRow(ctx, latestExerciseTimestamp, userID)
	var latest pgtype.Timestamptz
	err := row.Scan(&latest)
	return latest, err
}
