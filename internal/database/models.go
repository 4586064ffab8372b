package database

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID        int64         `json:"id"`
	Nickname  string        `json:"nickname"`
	HeightCm  pgtype.Float8 `json:"height_cm"`
	WeightKg  pgtype.Float8 `json:"weight_kg"`
	Goals     pgtype.Text   `json:"goals"`
	CreatedAt time.Time     `json:"created_at"`
}

// FoodItem is one element of the diet_logs.food_items jsonb column.
type FoodItem struct {
	Name    string  `json:"name"`
	Kcal    float64 `json:"kcal"`
	Carbs   float64 `json:"carbs"`
	Protein float64 `json:"protein"`
	Fat     float64 `json:"fat"`
}

type DietLog struct {
	ID          int64       `json:"id"`
	UserID      int64       `json:"user_id"`
	ImagePath   pgtype.Text `json:"image_path"`
	LoggedAt    time.Time   `json:"timestamp"`
	FoodItems   []FoodItem  `json:"food_items"`
	TotalKcal   int32       `json:"total_kcal"`
	IsConfirmed bool        `json:"is_confirmed"`
	Advice      pgtype.Text `json:"advice"`
}

type ExerciseLog struct {
	ID           int64       `json:"id"`
	UserID       int64       `json:"user_id"`
	ImagePath    pgtype.Text `json:"image_path"`
	LoggedAt     time.Time   `json:"timestamp"`
	ExerciseType string      `json:"exercise_type"`
	FeedbackText string      `json:"feedback_text"`
}

type RecommendationCache struct {
	UserID                int64     `json:"user_id"`
	MealRecommendation    string    `json:"meal_recommendation"`
	WorkoutRecommendation string    `json:"workout_recommendation"`
	GeneratedAt           time.Time `json:"generated_at"`
}
