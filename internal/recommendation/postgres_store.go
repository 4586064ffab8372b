package recommendation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"VibeHealth_V0.1/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

// PostgresStore implements Store over the database package queries.
type PostgresStore struct {
	db database.Service
}

func NewPostgresStore(db database.Service) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) FindCacheByUser(ctx context.Context, userID int64) (*CacheEntry, error) {
	row, err := s.db.Queries().GetRecommendationCache(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &CacheEntry{
		UserID:      row.UserID,
		Meal:        row.MealRecommendation,
		Workout:     row.WorkoutRecommendation,
		GeneratedAt: row.GeneratedAt,
	}, nil
}

// UpsertCache makes sure the users row exists, then writes the entry, in one transaction.
func (s *PostgresStore) UpsertCache(ctx context.Context, entry CacheEntry) error {
	return pgx.BeginFunc(ctx, s.db.Pool(), func(tx pgx.Tx) error {
		qtx := s.db.Queries().WithTx(tx)
		if err := qtx.EnsureUser(ctx, entry.UserID); err != nil {
			return fmt.Errorf("ensure user: %w", err)
		}
		_, err := qtx.UpsertRecommendationCache(ctx, database.UpsertRecommendationCacheParams{
			UserID:                entry.UserID,
			MealRecommendation:    entry.Meal,
			WorkoutRecommendation: entry.Workout,
			GeneratedAt:           entry.GeneratedAt,
		})
		return err
	})
}

func (s *PostgresStore) LatestTimestamp(ctx context.Context, kind Kind, userID int64, confirmedOnly bool) (time.Time, error) {
	var (
		ts  pgtype.Timestamptz
		err error
	)
	switch kind {
	case KindDiet:
		ts, err = s.db.Queries().LatestDietTimestamp(ctx, userID, confirmedOnly)
	case KindExercise:
		ts, err = s.db.Queries().LatestExerciseTimestamp(ctx, userID)
	default:
		return time.Time{}, fmt.Errorf("unknown entry kind %q", kind)
	}
	if err != nil || !ts.Valid {
		return time.Time{}, err
	}
	return ts.Time.UTC(), nil
}

// ListRecent ignores confirmedOnly for exercise entries, which are only stored once confirmed.
func (s *PostgresStore) ListRecent(ctx context.Context, kind Kind, userID int64, limit int, confirmedOnly bool) ([]Entry, error) {
	lim := pgtype.Int4{Int32: int32(limit), Valid: limit > 0}

	switch kind {
	case KindDiet:
		logs, err := s.db.Queries().ListDietLogs(ctx, database.ListDietLogsParams{
			UserID:        userID,
			ConfirmedOnly: confirmedOnly,
			Limit:         lim,
		})
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(logs))
		for _, l := range logs {
			entries = append(entries, DietEntry(l))
		}
		return entries, nil
	case KindExercise:
		logs, err := s.db.Queries().ListExerciseLogs(ctx, database.ListExerciseLogsParams{
			UserID: userID,
			Limit:  lim,
		})
		if err != nil {
			return nil, err
		}
		entries := make([]Entry, 0, len(logs))
		for _, l := range logs {
			entries = append(entries, ExerciseEntry(l))
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("unknown entry kind %q", kind)
	}
}

// DietEntry converts a stored diet log for digest rendering.
func DietEntry(l database.DietLog) Entry {
	names := make([]string, 0, len(l.FoodItems))
	for _, item := range l.FoodItems {
		if name := strings.TrimSpace(item.Name); name != "" {
			names = append(names, name)
		}
	}
	title := strings.Join(names, ", ")
	if title == "" {
		title = "Unlabelled meal"
	}
	return Entry{LoggedAt: l.LoggedAt, Title: title, Kcal: l.TotalKcal}
}

// ExerciseEntry converts a stored exercise log for digest rendering.
func ExerciseEntry(l database.ExerciseLog) Entry {
	return Entry{LoggedAt: l.LoggedAt, Title: l.ExerciseType, Detail: l.FeedbackText}
}
