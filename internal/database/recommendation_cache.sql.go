package database

import (
	"context"
	"time"
)

const getRecommendationCache = `-- name: GetRecommendationCache :one
SELECT user_id, meal_recommendation, workout_recommendation, generated_at
FROM recommendation_cache
WHERE user_id = $1
`

// GetRecommendationCache returns pgx.ErrNoRows when the user has no cached recommendation.
func (q *Queries) GetRecommendationCache(ctx context.Context, userID int64) (RecommendationCache, error) {
	row := q.db.QueryRow(ctx, getRecommendationCache, userID)
	var i RecommendationCache
	err := row.Scan(
		&i.UserID,
		&i.MealRecommendation,
		&i.WorkoutRecommendation,
		&i.GeneratedAt,
	)
	i.GeneratedAt = i.GeneratedAt.UTC()
	return i, err
}

const upsertRecommendationCache = `-- name: UpsertRecommendationCache :one
INSERT INTO recommendation_cache (user_id, meal_recommendation, workout_recommendation, generated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET meal_recommendation = EXCLUDED.meal_recommendation,
    workout_recommendation = EXCLUDED.workout_recommendation,
    generated_at = EXCLUDED.generated_at
RETURNING user_id, meal_recommendation, workout_recommendation, generated_at
`

type UpsertRecommendationCacheParams struct {
	UserID                int64
	MealRecommendation    string
	WorkoutRecommendation string
	GeneratedAt           time.Time
}

func (q *Queries) UpsertRecommendationCache(ctx context.Context, arg UpsertRecommendationCacheParams) (RecommendationCache, error) {
	row := q.db.QueryRow(ctx, upsertRecommendationCache,
		arg.UserID,
		arg.MealRecommendation,
		arg.WorkoutRecommendation,
		arg.GeneratedAt,
	)
	var i RecommendationCache
	err := row.Scan(
		&i.UserID,
		&i.MealRecommendation,
		&i.WorkoutRecommendation,
		&i.GeneratedAt,
	)
	i.GeneratedAt = i.GeneratedAt.UTC()
	return i, err
}

const countRecommendationCache = `-- name: CountRecommendationCache :one
SELECT count(*) FROM recommendation_cache WHERE user_id = $1
`

func (q *Queries) CountRecommendationCache(ctx context.Context, userID int64) (int64, error) {
	row := q.db.QueryRow(ctx, countRecommendationCache, userID)
	var count int64
	err := row.Scan(&count)
	return count, err
}
