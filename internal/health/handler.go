/*
Package health holds the HTTP handlers for diet and exercise logging, the
dashboard and the daily recommendation.
*/
package health

import (
	"context"
	"errors"
	"net/http"
	"time"

	"VibeHealth_V0.1/internal/aiservice"
	"VibeHealth_V0.1/internal/database"
	"VibeHealth_V0.1/internal/events"
	"VibeHealth_V0.1/internal/recommendation"
	"VibeHealth_V0.1/internal/upload"
	"VibeHealth_V0.1/internal/utility"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// LogStore is the subset of database.Queries the handlers use.
type LogStore interface {
	EnsureUser(ctx context.Context, id int64) error
	CreateDietLog(ctx context.Context, arg database.CreateDietLogParams) (database.DietLog, error)
	ListDietLogs(ctx context.Context, arg database.ListDietLogsParams) ([]database.DietLog, error)
	SumConfirmedCalories(ctx context.Context, arg database.SumConfirmedCaloriesParams) (int64, error)
	CreateExerciseLog(ctx context.Context, arg database.CreateExerciseLogParams) (database.ExerciseLog, error)
	ListExerciseLogs(ctx context.Context, arg database.ListExerciseLogsParams) ([]database.ExerciseLog, error)
}

// Analyzer is the model-backed analysis used by the handlers. *aiservice.Client implements it.
type Analyzer interface {
	AnalyzeDiet(ctx context.Context, image []byte, mimeType, textInput string) (aiservice.DietAnalysis, error)
	AnalyzeExercise(ctx context.Context, image []byte, mimeType, textInput string) (aiservice.ExerciseAnalysis, error)
	EvaluatePlan(ctx context.Context, plan, dietDigest, exerciseDigest string) (aiservice.PlanEvaluation, error)
}

// Recommender serves the daily recommendation. *recommendation.Manager implements it.
type Recommender interface {
	GetOrRefresh(ctx context.Context, userID int64) (recommendation.Result, error)
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Logs            LogStore
	AI              Analyzer
	Recommendations Recommender
	Uploads         *upload.Store
	Events          events.Publisher
	DailyGoal       int
}

type Handler struct {
	logs      LogStore
	ai        Analyzer
	recs      Recommender
	uploads   *upload.Store
	events    events.Publisher
	dailyGoal int
	now       func() time.Time
}

const defaultDailyGoal = 2000

func NewHandler(d Deps) *Handler {
	if d.Events == nil {
		d.Events = events.Noop{}
	}
	if d.DailyGoal <= 0 {
		d.DailyGoal = defaultDailyGoal
	}
	return &Handler{
		logs:      d.Logs,
		ai:        d.AI,
		recs:      d.Recommendations,
		uploads:   d.Uploads,
		events:    d.Events,
		dailyGoal: d.DailyGoal,
		now:       time.Now,
	}
}

// clock returns the current UTC time at database precision.
func (h *Handler) clock() time.Time {
	return h.now().UTC().Truncate(time.Microsecond)
}

// saveUpload stores the optional "file" form field. It returns nil when the request has no file.
func (h *Handler) saveUpload(c echo.Context, prefix string) (*upload.Saved, error) {
	fh, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	saved, err := h.uploads.Save(fh, prefix)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// publish never fails the request. With an events.AsyncPublisher only a full
// queue is reported here; delivery errors are logged by its worker.
func (h *Handler) publish(ctx context.Context, ev events.Event) {
	if err := h.events.Publish(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("event", ev.Type).Msg("Failed to publish event")
	}
}

func userIDError(c echo.Context, err error) error {
	return c.JSON(utility.UserIDErrorStatus(err), map[string]string{"error": err.Error()})
}

func uploadError(c echo.Context, err error) error {
	if errors.Is(err, upload.ErrTooLarge) {
		return c.JSON(http.StatusRequestEntityTooLarge, map[string]string{"error": err.Error()})
	}
	zerolog.Ctx(c.Request().Context()).Error().Err(err).Msg("Failed to store upload")
	return c.JSON(http.StatusBadRequest, map[string]string{"error": "Failed to process uploaded file"})
}

func imagePath(saved *upload.Saved) *string {
	if saved == nil {
		return nil
	}
	return &saved.Path
}

func optionalText(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}
