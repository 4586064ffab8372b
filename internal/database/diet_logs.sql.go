package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const dietLogColumns = `id, user_id, image_path, logged_at, food_items, total_kcal, is_confirmed, advice`

func scanDietLog(row interface{ Scan(...interface{}) error }) (DietLog, error) {
	var i DietLog
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.ImagePath,
		&i.LoggedAt,
		&i.FoodItems,
		&i.TotalKcal,
		&i.IsConfirmed,
		&i.Advice,
	)
	i.LoggedAt = i.LoggedAt.UTC()
	return i, err
}

const createDietLog = `-- name: CreateDietLog :one
INSERT INTO diet_logs (user_id, image_path, logged_at, food_items, total_kcal, is_confirmed, advice)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + dietLogColumns

type CreateDietLogParams struct {
	UserID      int64
	ImagePath   pgtype.Text
	LoggedAt    time.Time
	FoodItems   []FoodItem
	TotalKcal   int32
	IsConfirmed bool
	Advice      pgtype.Text
}

func (q *Queries) CreateDietLog(ctx context.Context, arg CreateDietLogParams) (DietLog, error) {
	items := arg.FoodItems
	if items == nil {
		items = []FoodItem{}
	}
	row := q.db.QueryRow(ctx, createDietLog,
		arg.UserID,
		arg.ImagePath,
		arg.LoggedAt,
		items,
		arg.TotalKcal,
		arg.IsConfirmed,
		arg.Advice,
	)
	return scanDietLog(row)
}

const listDietLogs = `-- name: ListDietLogs :many
SELECT ` + dietLogColumns + `
FROM diet_logs
WHERE user_id = $1
  AND (NOT $2::boolean OR is_confirmed)
ORDER BY logged_at DESC, id DESC
LIMIT $3
`

type ListDietLogsParams struct {
	UserID        int64
	ConfirmedOnly bool
	// Limit is nullable; NULL means no limit.
	Limit pgtype.Int4
}

func (q *Queries) ListDietLogs(ctx context.Context, arg ListDietLogsParams) ([]DietLog, error) {
	rows, err := q.db.Query(ctx, listDietLogs, arg.UserID, arg.ConfirmedOnly, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []DietLog{}
	for rows.Next() {
		i, err := scanDietLog(rows)
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

const latestDietTimestamp = `-- name: LatestDietTimestamp :one
SELECT max(logged_at)::timestamptz
FROM diet_logs
WHERE user_id = $1
  AND (NOT $2::boolean OR is_confirmed)
`

// LatestDietTimestamp returns an invalid Timestamptz when the user has no matching entries.
func (q *Queries) LatestDietTimestamp(ctx context.Context, userID int64, confirmedOnly bool) (pgtype.Timestamptz, error) {
	row := q.db.QueryRow(ctx, latestDietTimestamp, userID, confirmedOnly)
	var latest pgtype.Timestamptz
	err := row.Scan(&latest)
	return latest, err
}

const sumConfirmedCalories = `-- name: SumConfirmedCalories :one
SELECT COALESCE(sum(total_kcal), 0)::bigint
FROM diet_logs
WHERE user_id = $1
  AND is_confirmed
  AND logged_at >= $2
  AND logged_at < $3
`

type SumConfirmedCaloriesParams struct {
	UserID int64
	Start  time.Time
	End    time.Time
}

func (q *Queries) SumConfirmedCalories(ctx context.Context, arg SumConfirmedCaloriesParams) (int64, error) {
	row := q.db.QueryRow(ctx, sumConfirmedCalories, arg.UserID, arg.Start, arg.End)
	var total int64
	err := row.Scan(&total)
	return total, err
}
