package health

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"VibeHealth_V0.1/internal/aiservice"
	"VibeHealth_V0.1/internal/database"
	"VibeHealth_V0.1/internal/recommendation"
	"VibeHealth_V0.1/internal/utility"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const planHistoryLimit = 5

type SummaryResponse struct {
	Date          string `json:"date"`
	TotalCalories int64  `json:"total_calories"`
	GoalCalories  int    `json:"goal_calories"`
	Percentage    int    `json:"percentage"`
}

type EvaluatePlanRequest struct {
	UserID   int64  `json:"user_id"`
	UserPlan string `json:"user_plan"`
}

// SummaryHandler sums today's confirmed calories (UTC day) against the daily goal.
func (h *Handler) SummaryHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.QueryUserID(c)
	if err != nil {
		return userIDError(c, err)
	}

	start := h.now().UTC().Truncate(24 * time.Hour)
	total, err := h.logs.SumConfirmedCalories(ctx, database.SumConfirmedCaloriesParams{
		UserID: userID,
		Start:  start,
		End:    start.Add(24 * time.Hour),
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to sum calories")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load summary"})
	}

	percentage := int(total * 100 / int64(h.dailyGoal))
	if percentage > 100 {
		percentage = 100
	}

	return c.JSON(http.StatusOK, SummaryResponse{
		Date:          start.Format("2006-01-02"),
		TotalCalories: total,
		GoalCalories:  h.dailyGoal,
		Percentage:    percentage,
	})
}

// EvaluatePlanHandler judges a free-text plan against the last few diet and exercise logs.
// Model failures come back as {"error": ...} with status 200.
func (h *Handler) EvaluatePlanHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req EvaluatePlanRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.UserPlan) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "User plan is required"})
	}

	userID, err := utility.ResolveUserID(c, req.UserID)
	if err != nil {
		return userIDError(c, err)
	}

	limit := pgtype.Int4{Int32: planHistoryLimit, Valid: true}
	var dietLogs []database.DietLog
	var exerciseLogs []database.ExerciseLog

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var e error
		dietLogs, e = h.logs.ListDietLogs(gctx, database.ListDietLogsParams{UserID: userID, Limit: limit})
		return e
	})
	g.Go(func() error {
		var e error
		exerciseLogs, e = h.logs.ListExerciseLogs(gctx, database.ListExerciseLogsParams{UserID: userID, Limit: limit})
		return e
	})
	if err := g.Wait(); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to load history for plan evaluation")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load history"})
	}

	dietEntries := make([]recommendation.Entry, 0, len(dietLogs))
	for _, l := range dietLogs {
		dietEntries = append(dietEntries, recommendation.DietEntry(l))
	}
	exerciseEntries := make([]recommendation.Entry, 0, len(exerciseLogs))
	for _, l := range exerciseLogs {
		exerciseEntries = append(exerciseEntries, recommendation.ExerciseEntry(l))
	}

	evaluation, err := h.ai.EvaluatePlan(ctx, req.UserPlan,
		recommendation.DatedDietDigest(dietEntries),
		recommendation.DatedExerciseDigest(exerciseEntries),
	)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Plan evaluation failed")
		return c.JSON(http.StatusOK, map[string]string{"error": errorDetail(err)})
	}
	return c.JSON(http.StatusOK, evaluation)
}

// DailyRecommendationsHandler serves the cached meal and workout of the day.
func (h *Handler) DailyRecommendationsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.QueryUserID(c)
	if err != nil {
		return userIDError(c, err)
	}

	result, err := h.recs.GetOrRefresh(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to load recommendations")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load recommendations"})
	}
	return c.JSON(http.StatusOK, result)
}

// errorDetail prefers the user-facing detail of a model error.
func errorDetail(err error) string {
	var genErr *aiservice.GenerationError
	if errors.As(err, &genErr) && genErr.Detail != "" {
		return genErr.Detail
	}
	return err.Error()
}
