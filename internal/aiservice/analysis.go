package aiservice

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"VibeHealth_V0.1/internal/database"
)

// ErrNoInput is returned when an analysis receives neither media nor text.
var ErrNoInput = errors.New("provide image, video, or text description")

// Calories is a whole kcal count. It decodes from any JSON number, rounding
// fractional values to the nearest integer.
type Calories int32

func (c *Calories) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("kcal: %w", err)
	}
	rounded := math.Round(f)
	if rounded > math.MaxInt32 || rounded < math.MinInt32 {
		return fmt.Errorf("kcal %v out of range", f)
	}
	*c = Calories(rounded)
	return nil
}

// DietAnalysis is the model's reading of a meal.
type DietAnalysis struct {
	Items     []database.FoodItem `json:"items"`
	TotalKcal Calories            `json:"total_kcal"`
	Advice    string              `json:"advice"`
}

// ExerciseAnalysis is the model's reading of a workout.
type ExerciseAnalysis struct {
	ExerciseType   string `json:"exercise_type"`
	Feedback       string `json:"feedback"`
	Recommendation string `json:"recommendation"`
}

// PlanEvaluation is the model's verdict on a user-written plan.
type PlanEvaluation struct {
	Verdict string `json:"verdict"`
	Pros    string `json:"pros"`
	Cons    string `json:"cons"`
	Advice  string `json:"advice"`
}

// DailyRecommendation holds the raw meal and workout fields; either may be empty
// when the model omitted it.
type DailyRecommendation struct {
	Meal    string
	Workout string
}

// Empty-history substitutes used in the plan evaluation prompt.
const (
	NoDietHistory     = "No recent diet records."
	NoExerciseHistory = "No recent exercise records."
)

// AnalyzeDiet estimates the food items and calories in a meal photo and/or description.
func (c *Client) AnalyzeDiet(ctx context.Context, image []byte, mimeType, textInput string) (DietAnalysis, error) {
	if c.Offline() {
		return DietAnalysis{
			Items:     []database.FoodItem{{Name: "Mock Food (No Key)"}},
			TotalKcal: 0,
			Advice:    fmt.Sprintf("Mock Advice (Text: %s)", textInput),
		}, nil
	}

	prompt := fmt.Sprintf(dietPromptTemplate, userNote(textInput))
	content, err := c.complete(ctx, "diet_analysis", c.cfg.VisionModel, prompt, dataURL(image, mimeType))
	if err != nil {
		return DietAnalysis{}, err
	}

	var out DietAnalysis
	if err := ExtractInto(content, &out); err != nil {
		return DietAnalysis{}, err
	}
	if out.Items == nil {
		out.Items = []database.FoodItem{}
	}
	return out, nil
}

// AnalyzeExercise identifies an exercise and critiques form. A YouTube link in a
// text-only request is analysed through the video's thumbnail.
func (c *Client) AnalyzeExercise(ctx context.Context, image []byte, mimeType, textInput string) (ExerciseAnalysis, error) {
	if c.Offline() {
		return ExerciseAnalysis{
			ExerciseType:   "Mock Squat (No Key)",
			Feedback:       fmt.Sprintf("Text input: %s", textInput),
			Recommendation: "Mock Recommendation",
		}, nil
	}

	if len(image) == 0 && textInput != "" {
		thumb, err := c.fetchYouTubeThumbnail(ctx, textInput)
		if err != nil {
			c.logger.Warn().Err(err).Msg("YouTube thumbnail fetch failed, continuing with text only")
		}
		if len(thumb) > 0 {
			image = thumb
			mimeType = "image/jpeg"
			textInput += " (Analyzed via YouTube Thumbnail)"
		}
	}

	if len(image) == 0 && textInput == "" {
		return ExerciseAnalysis{}, ErrNoInput
	}

	prompt := fmt.Sprintf(exercisePromptTemplate, userNote(textInput))
	content, err := c.complete(ctx, "exercise_analysis", c.cfg.VisionModel, prompt, dataURL(image, mimeType))
	if err != nil {
		return ExerciseAnalysis{}, err
	}

	var out ExerciseAnalysis
	if err := ExtractInto(content, &out); err != nil {
		return ExerciseAnalysis{}, err
	}
	return out, nil
}

// EvaluatePlan judges a free-text plan against the user's recent history digests.
func (c *Client) EvaluatePlan(ctx context.Context, plan, dietDigest, exerciseDigest string) (PlanEvaluation, error) {
	if c.Offline() {
		return PlanEvaluation{
			Verdict: "Good",
			Pros:    "A balanced plan.",
			Cons:    "No particular issues found.",
			Advice:  "Go ahead and follow the plan!",
		}, nil
	}

	if dietDigest == "" {
		dietDigest = NoDietHistory
	}
	if exerciseDigest == "" {
		exerciseDigest = NoExerciseHistory
	}

	prompt := fmt.Sprintf(planEvaluationPromptTemplate, plan, dietDigest, exerciseDigest)
	content, err := c.complete(ctx, "plan_evaluation", c.cfg.TextModel, prompt, "")
	if err != nil {
		return PlanEvaluation{}, err
	}

	var out PlanEvaluation
	if err := ExtractInto(content, &out); err != nil {
		return PlanEvaluation{}, err
	}
	return out, nil
}

// GenerateDailyRecommendation asks the text model for one meal and one workout.
// Fields that are missing or not strings come back empty.
func (c *Client) GenerateDailyRecommendation(ctx context.Context, dietDigest, exerciseDigest string) (DailyRecommendation, error) {
	if c.Offline() {
		return DailyRecommendation{
			Meal:    "Grilled chicken breast salad",
			Workout: "30-minute jog",
		}, nil
	}

	prompt := fmt.Sprintf(dailyRecommendationPromptTemplate, dietDigest, exerciseDigest)
	content, err := c.complete(ctx, "daily_recommendation", c.cfg.TextModel, prompt, "")
	if err != nil {
		return DailyRecommendation{}, err
	}

	obj, err := ExtractJSON(content)
	if err != nil {
		return DailyRecommendation{}, err
	}

	meal, _ := obj["meal"].(string)
	workout, _ := obj["workout"].(string)
	return DailyRecommendation{Meal: meal, Workout: workout}, nil
}

func userNote(textInput string) string {
	if textInput == "" {
		return ""
	}
	return "User Note: " + textInput
}

func dataURL(image []byte, mimeType string) string {
	if len(image) == 0 {
		return ""
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(image))
}
