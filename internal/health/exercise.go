package health

import (
	"errors"
	"net/http"
	"strings"

	"VibeHealth_V0.1/internal/aiservice"
	"VibeHealth_V0.1/internal/database"
	"VibeHealth_V0.1/internal/events"
	"VibeHealth_V0.1/internal/observability"
	"VibeHealth_V0.1/internal/recommendation"
	"VibeHealth_V0.1/internal/upload"
	"VibeHealth_V0.1/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type ExerciseAnalyzeResponse struct {
	ImagePath *string                    `json:"image_path"`
	Analysis  aiservice.ExerciseAnalysis `json:"analysis"`
}

type ConfirmExerciseRequest struct {
	UserID    int64                      `json:"user_id"`
	ImagePath *string                    `json:"image_path"`
	Analysis  aiservice.ExerciseAnalysis `json:"analysis"`
}

// AnalyzeExerciseHandler critiques a workout photo, a YouTube link or a description.
func (h *Handler) AnalyzeExerciseHandler(c echo.Context) error {
	ctx := c.Request().Context()
	textInput := strings.TrimSpace(c.FormValue("text_input"))

	saved, err := h.saveUpload(c, upload.PrefixExercise)
	if err != nil {
		return uploadError(c, err)
	}

	var image []byte
	var mimeType string
	if saved != nil {
		image, mimeType = saved.Data, saved.MimeType
	}

	analysis, err := h.ai.AnalyzeExercise(ctx, image, mimeType, textInput)
	if errors.Is(err, aiservice.ErrNoInput) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Exercise analysis failed")
		analysis = aiservice.ExerciseAnalysis{
			ExerciseType:   recommendation.Placeholder,
			Feedback:       "Analysis failed.",
			Recommendation: "Error: " + err.Error(),
		}
	}

	return c.JSON(http.StatusOK, ExerciseAnalyzeResponse{ImagePath: imagePath(saved), Analysis: analysis})
}

// ConfirmExerciseHandler stores a reviewed analysis. The recommendation is kept
// with the feedback in one text column.
func (h *Handler) ConfirmExerciseHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req ConfirmExerciseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	userID, err := utility.ResolveUserID(c, req.UserID)
	if err != nil {
		return userIDError(c, err)
	}
	if strings.TrimSpace(req.Analysis.ExerciseType) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "analysis.exercise_type is required"})
	}

	if err := h.logs.EnsureUser(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to ensure user")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save exercise log"})
	}

	entry, err := h.logs.CreateExerciseLog(ctx, database.CreateExerciseLogParams{
		UserID:       userID,
		ImagePath:    optionalText(req.ImagePath),
		LoggedAt:     h.clock(),
		ExerciseType: req.Analysis.ExerciseType,
		FeedbackText: req.Analysis.Feedback + "\n\nRecommended: " + req.Analysis.Recommendation,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to create exercise log")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save exercise log"})
	}

	observability.RecordEntryConfirmed(string(recommendation.KindExercise))
	h.publish(ctx, events.Event{
		Type:       events.TypeExerciseConfirmed,
		UserID:     userID,
		OccurredAt: entry.LoggedAt,
		Payload:    entry,
	})

	return c.JSON(http.StatusCreated, entry)
}

// ExerciseHistoryHandler lists every exercise log of the user, newest first.
func (h *Handler) ExerciseHistoryHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.QueryUserID(c)
	if err != nil {
		return userIDError(c, err)
	}

	logs, err := h.logs.ListExerciseLogs(ctx, database.ListExerciseLogsParams{UserID: userID})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to list exercise logs")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load exercise history"})
	}
	return c.JSON(http.StatusOK, logs)
}
