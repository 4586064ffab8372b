package health

import (
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

type DietAnalyzeResponse struct {
	ImagePath *string                `json:"image_path"`
	Analysis  aiservice.DietAnalysis `json:"analysis"`
}

type ConfirmDietRequest struct {
	UserID    int64                  `json:"user_id"`
	ImagePath *string                `json:"image_path"`
	Analysis  aiservice.DietAnalysis `json:"analysis"`
}

// AnalyzeDietHandler stores the optional photo and asks the model for a nutrition breakdown.
// The model is asked even when the request carries neither a photo nor a note.
// Model failures are reported inside the analysis with status 200.
func (h *Handler) AnalyzeDietHandler(c echo.Context) error {
	ctx := c.Request().Context()
	textInput := strings.TrimSpace(c.FormValue("text_input"))

	saved, err := h.saveUpload(c, upload.PrefixDiet)
	if err != nil {
		return uploadError(c, err)
	}
	var image []byte
	var mimeType string
	if saved != nil {
		image, mimeType = saved.Data, saved.MimeType
	}

	analysis, err := h.ai.AnalyzeDiet(ctx, image, mimeType, textInput)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("Diet analysis failed")
		analysis = aiservice.DietAnalysis{
			Items:     []database.FoodItem{},
			TotalKcal: 0,
			Advice:    "AI Analysis failed. " + err.Error(),
		}
	}

	return c.JSON(http.StatusOK, DietAnalyzeResponse{ImagePath: imagePath(saved), Analysis: analysis})
}

// ConfirmDietHandler persists a reviewed analysis as a confirmed diet log.
func (h *Handler) ConfirmDietHandler(c echo.Context) error {
	ctx := c.Request().Context()

	var req ConfirmDietRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	userID, err := utility.ResolveUserID(c, req.UserID)
	if err != nil {
		return userIDError(c, err)
	}
	if req.Analysis.TotalKcal < 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "total_kcal must not be negative"})
	}

	if err := h.logs.EnsureUser(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to ensure user")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save diet log"})
	}

	advice := req.Analysis.Advice
	entry, err := h.logs.CreateDietLog(ctx, database.CreateDietLogParams{
		UserID:      userID,
		ImagePath:   optionalText(req.ImagePath),
		LoggedAt:    h.clock(),
		FoodItems:   req.Analysis.Items,
		TotalKcal:   int32(req.Analysis.TotalKcal),
		IsConfirmed: true,
		Advice:      optionalText(&advice),
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to create diet log")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save diet log"})
	}

	observability.RecordEntryConfirmed(string(recommendation.KindDiet))
	h.publish(ctx, events.Event{
		Type:       events.TypeDietConfirmed,
		UserID:     userID,
		OccurredAt: entry.LoggedAt,
		Payload:    entry,
	})

	return c.JSON(http.StatusCreated, entry)
}

// DietHistoryHandler lists every diet log of the user, newest first.
func (h *Handler) DietHistoryHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.QueryUserID(c)
	if err != nil {
		return userIDError(c, err)
	}

	logs, err := h.logs.ListDietLogs(ctx, database.ListDietLogsParams{UserID: userID})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to list diet logs")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to load diet history"})
	}
	return c.JSON(http.StatusOK, logs)
}
