package health

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"VibeHealth_V0.1/internal/aiservice"
	"VibeHealth_V0.1/internal/database"
	"VibeHealth_V0.1/internal/events"
	"VibeHealth_V0.1/internal/recommendation"
	"VibeHealth_V0.1/internal/upload"
	"VibeHealth_V0.1/internal/utility"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLogs struct {
	mu         sync.Mutex
	ensured    []int64
	diet       []database.DietLog
	exercise   []database.ExerciseLog
	dietParams []database.ListDietLogsParams
	exParams   []database.ListExerciseLogsParams
	sumParams  database.SumConfirmedCaloriesParams
	sum        int64
	err        error
	nextID     int64

	createdDiet     database.CreateDietLogParams
	createdExercise database.CreateExerciseLogParams
}

func (f *fakeLogs) EnsureUser(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, id)
	return f.err
}

func (f *fakeLogs) CreateDietLog(_ context.Context, arg database.CreateDietLogParams) (database.DietLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return database.DietLog{}, f.err
	}
	f.nextID++
	f.createdDiet = arg
	return database.DietLog{
		ID:          f.nextID,
		UserID:      arg.UserID,
		ImagePath:   arg.ImagePath,
		LoggedAt:    arg.LoggedAt,
		FoodItems:   arg.FoodItems,
		TotalKcal:   arg.TotalKcal,
		IsConfirmed: arg.IsConfirmed,
		Advice:      arg.Advice,
	}, nil
}

func (f *fakeLogs) ListDietLogs(_ context.Context, arg database.ListDietLogsParams) ([]database.DietLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dietParams = append(f.dietParams, arg)
	return f.diet, f.err
}

func (f *fakeLogs) SumConfirmedCalories(_ context.Context, arg database.SumConfirmedCaloriesParams) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sumParams = arg
	return f.sum, f.err
}

func (f *fakeLogs) CreateExerciseLog(_ context.Context, arg database.CreateExerciseLogParams) (database.ExerciseLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return database.ExerciseLog{}, f.err
	}
	f.nextID++
	f.createdExercise = arg
	return database.ExerciseLog{
		ID:           f.nextID,
		UserID:       arg.UserID,
		ImagePath:    arg.ImagePath,
		LoggedAt:     arg.LoggedAt,
		ExerciseType: arg.ExerciseType,
		FeedbackText: arg.FeedbackText,
	}, nil
}

func (f *fakeLogs) ListExerciseLogs(_ context.Context, arg database.ListExerciseLogsParams) ([]database.ExerciseLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exParams = append(f.exParams, arg)
	return f.exercise, f.err
}

type fakeAI struct {
	diet     aiservice.DietAnalysis
	exercise aiservice.ExerciseAnalysis
	plan     aiservice.PlanEvaluation
	err      error

	dietCalls int
	gotImage  []byte
	gotMime   string
	gotText   string
	gotDiet   string
	gotEx     string
}

func (f *fakeAI) AnalyzeDiet(_ context.Context, image []byte, mimeType, textInput string) (aiservice.DietAnalysis, error) {
	f.dietCalls++
	f.gotImage, f.gotMime, f.gotText = image, mimeType, textInput
	return f.diet, f.err
}

func (f *fakeAI) AnalyzeExercise(_ context.Context, image []byte, mimeType, textInput string) (aiservice.ExerciseAnalysis, error) {
	f.gotImage, f.gotMime, f.gotText = image, mimeType, textInput
	if len(image) == 0 && textInput == "" {
		return aiservice.ExerciseAnalysis{}, aiservice.ErrNoInput
	}
	return f.exercise, f.err
}

func (f *fakeAI) EvaluatePlan(_ context.Context, plan, dietDigest, exerciseDigest string) (aiservice.PlanEvaluation, error) {
	f.gotText, f.gotDiet, f.gotEx = plan, dietDigest, exerciseDigest
	return f.plan, f.err
}

type fakeRecommender struct {
	result recommendation.Result
	err    error
	userID int64
}

func (f *fakeRecommender) GetOrRefresh(_ context.Context, userID int64) (recommendation.Result, error) {
	f.userID = userID
	return f.result, f.err
}

type fakePublisher struct {
	published []events.Event
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, ev events.Event) error {
	p.published = append(p.published, ev)
	return p.err
}

func (p *fakePublisher) Close() error { return nil }

var fixedNow = time.Date(2024, 5, 14, 15, 30, 0, 123456789, time.UTC)

type fixture struct {
	logs *fakeLogs
	ai   *fakeAI
	recs *fakeRecommender
	pub  *fakePublisher
	h    *Handler
	e    *echo.Echo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		logs: &fakeLogs{},
		ai:   &fakeAI{},
		recs: &fakeRecommender{},
		pub:  &fakePublisher{},
		e:    echo.New(),
	}
	f.h = NewHandler(Deps{
		Logs:            f.logs,
		AI:              f.ai,
		Recommendations: f.recs,
		Uploads:         upload.NewStore(t.TempDir(), 1<<20),
		Events:          f.pub,
		DailyGoal:       2000,
	})
	f.h.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) do(handler echo.HandlerFunc, req *http.Request, tokenUser int64) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	c := f.e.NewContext(req, rec)
	if tokenUser != 0 {
		c.Set(utility.ContextUserIDKey, tokenUser)
	}
	if err := handler(c); err != nil {
		f.e.HTTPErrorHandler(err, c)
	}
	return rec
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func multipartRequest(t *testing.T, target string, fields map[string]string, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAnalyzeDietWithPhoto(t *testing.T) {
	f := newFixture(t)
	f.ai.diet = aiservice.DietAnalysis{
		Items:     []database.FoodItem{{Name: "Bibimbap", Kcal: 560}},
		TotalKcal: 560,
		Advice:    "Good balance.",
	}
	jpeg := []byte("\xff\xd8\xff\xe0 fake jpeg")

	rec := f.do(f.h.AnalyzeDietHandler, multipartRequest(t, "/api/v1/diet/analyze", map[string]string{"text_input": "lunch"}, "meal.jpg", jpeg), 0)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DietAnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.ImagePath)
	assert.True(t, strings.HasSuffix(*resp.ImagePath, ".jpg"))
	assert.Equal(t, f.ai.diet, resp.Analysis)

	assert.Equal(t, jpeg, f.ai.gotImage)
	assert.Equal(t, "image/jpeg", f.ai.gotMime)
	assert.Equal(t, "lunch", f.ai.gotText)
}

func TestAnalyzeDietFailureIsReportedInAnalysis(t *testing.T) {
	f := newFixture(t)
	f.ai.err = &aiservice.GenerationError{Operation: "diet_analysis", Status: 429, Detail: "busy"}

	rec := f.do(f.h.AnalyzeDietHandler, multipartRequest(t, "/api/v1/diet/analyze", map[string]string{"text_input": "two eggs"}, "", nil), 0)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp DietAnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.ImagePath)
	assert.Empty(t, resp.Analysis.Items)
	assert.Zero(t, resp.Analysis.TotalKcal)
	assert.True(t, strings.HasPrefix(resp.Analysis.Advice, "AI Analysis failed. "))
}

func TestAnalyzeDietWithoutInputStillAsksModel(t *testing.T) {
	f := newFixture(t)
	f.ai.diet = aiservice.DietAnalysis{Items: []database.FoodItem{}, Advice: "Nothing to analyse."}

	rec := f.do(f.h.AnalyzeDietHandler, multipartRequest(t, "/api/v1/diet/analyze", nil, "", nil), 0)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, f.ai.dietCalls)
	assert.Empty(t, f.ai.gotImage)
	assert.Empty(t, f.ai.gotText)

	var resp DietAnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Nil(t, resp.ImagePath)
	assert.Equal(t, "Nothing to analyse.", resp.Analysis.Advice)
}

func TestConfirmDiet(t *testing.T) {
	f := newFixture(t)
	body := `{"user_id": 3, "image_path": "uploads/a.jpg", "analysis": {"items": [{"name": "Rice", "kcal": 300}], "total_kcal": 300, "advice": "ok"}}`

	rec := f.do(f.h.ConfirmDietHandler, jsonRequest(http.MethodPost, "/api/v1/diet/confirm", body), 0)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []int64{3}, f.logs.ensured)

	created := f.logs.createdDiet
	assert.Equal(t, int64(3), created.UserID)
	assert.True(t, created.IsConfirmed)
	assert.Equal(t, fixedNow.Truncate(time.Microsecond), created.LoggedAt)
	assert.Equal(t, "uploads/a.jpg", created.ImagePath.String)
	assert.Equal(t, "ok", created.Advice.String)
	assert.Equal(t, int32(300), created.TotalKcal)

	resp := decode(t, rec)
	assert.Equal(t, true, resp["is_confirmed"])
	assert.Equal(t, "uploads/a.jpg", resp["image_path"])

	require.Len(t, f.pub.published, 1)
	assert.Equal(t, events.TypeDietConfirmed, f.pub.published[0].Type)
	assert.Equal(t, int64(3), f.pub.published[0].UserID)
}

func TestConfirmDietRoundsFractionalCalories(t *testing.T) {
	f := newFixture(t)
	body := `{"user_id": 3, "analysis": {"items": [{"name": "Bibimbap", "kcal": 550.5}], "total_kcal": 550.5, "advice": "ok"}}`

	rec := f.do(f.h.ConfirmDietHandler, jsonRequest(http.MethodPost, "/api/v1/diet/confirm", body), 0)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int32(551), f.logs.createdDiet.TotalKcal)
	require.Len(t, f.logs.createdDiet.FoodItems, 1)
	assert.InDelta(t, 550.5, f.logs.createdDiet.FoodItems[0].Kcal, 1e-9)
}

func TestConfirmDietPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	rec := f.do(f.h.ConfirmDietHandler, jsonRequest(http.MethodPost, "/api/v1/diet/confirm", `{"user_id": 3, "analysis": {"items": [], "total_kcal": 0}}`), 0)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.False(t, f.logs.createdDiet.ImagePath.Valid)
}

func TestConfirmDietIdentity(t *testing.T) {
	f := newFixture(t)

	rec := f.do(f.h.ConfirmDietHandler, jsonRequest(http.MethodPost, "/api/v1/diet/confirm", `{"analysis": {"total_kcal": 10}}`), 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(f.h.ConfirmDietHandler, jsonRequest(http.MethodPost, "/api/v1/diet/confirm", `{"user_id": 4, "analysis": {"total_kcal": 10}}`), 9)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(f.h.ConfirmDietHandler, jsonRequest(http.MethodPost, "/api/v1/diet/confirm", `{"analysis": {"total_kcal": 10}}`), 9)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, int64(9), f.logs.createdDiet.UserID)
}

func TestConfirmDietStoreError(t *testing.T) {
	f := newFixture(t)
	f.logs.err = errors.New("db down")

	rec := f.do(f.h.ConfirmDietHandler, jsonRequest(http.MethodPost, "/api/v1/diet/confirm", `{"user_id": 1, "analysis": {"total_kcal": 10}}`), 0)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, f.pub.published)
}

func TestDietHistory(t *testing.T) {
	f := newFixture(t)
	f.logs.diet = []database.DietLog{{ID: 2, UserID: 5}, {ID: 1, UserID: 5}}

	rec := f.do(f.h.DietHistoryHandler, httptest.NewRequest(http.MethodGet, "/api/v1/diet/history?user_id=5", nil), 0)

	require.Equal(t, http.StatusOK, rec.Code)
	var logs []database.DietLog
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &logs))
	assert.Len(t, logs, 2)
	require.Len(t, f.logs.dietParams, 1)
	assert.Equal(t, database.ListDietLogsParams{UserID: 5}, f.logs.dietParams[0])

	rec = f.do(f.h.DietHistoryHandler, httptest.NewRequest(http.MethodGet, "/api/v1/diet/history?user_id=0", nil), 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeExercise(t *testing.T) {
	f := newFixture(t)
	f.ai.exercise = aiservice.ExerciseAnalysis{ExerciseType: "Squat", Feedback: "Depth is good", Recommendation: "Add weight"}

	rec := f.do(f.h.AnalyzeExerciseHandler, multipartRequest(t, "/api/v1/exercise/analyze", nil, "squat.png", []byte("\x89PNG\r\n\x1a\nxxxx")), 0)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ExerciseAnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.ImagePath)
	assert.Contains(t, *resp.ImagePath, "ex_")
	assert.Equal(t, "Squat", resp.Analysis.ExerciseType)
}

func TestAnalyzeExerciseNoInputAndFailure(t *testing.T) {
	f := newFixture(t)

	rec := f.do(f.h.AnalyzeExerciseHandler, multipartRequest(t, "/api/v1/exercise/analyze", nil, "", nil), 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.ai.err = &aiservice.ParseError{Raw: "sorry"}
	rec = f.do(f.h.AnalyzeExerciseHandler, multipartRequest(t, "/api/v1/exercise/analyze", map[string]string{"text_input": "pushups"}, "", nil), 0)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ExerciseAnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Unknown", resp.Analysis.ExerciseType)
	assert.Equal(t, "Analysis failed.", resp.Analysis.Feedback)
	assert.True(t, strings.HasPrefix(resp.Analysis.Recommendation, "Error: "))
}

func TestConfirmExercise(t *testing.T) {
	f := newFixture(t)
	body := `{"user_id": 2, "analysis": {"exercise_type": "Deadlift", "feedback": "Neutral spine", "recommendation": "5x5"}}`

	rec := f.do(f.h.ConfirmExerciseHandler, jsonRequest(http.MethodPost, "/api/v1/exercise/confirm", body), 0)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "Neutral spine\n\nRecommended: 5x5", f.logs.createdExercise.FeedbackText)
	assert.Equal(t, fixedNow.Truncate(time.Microsecond), f.logs.createdExercise.LoggedAt)
	require.Len(t, f.pub.published, 1)
	assert.Equal(t, events.TypeExerciseConfirmed, f.pub.published[0].Type)

	rec = f.do(f.h.ConfirmExerciseHandler, jsonRequest(http.MethodPost, "/api/v1/exercise/confirm", `{"user_id": 2, "analysis": {}}`), 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExerciseHistory(t *testing.T) {
	f := newFixture(t)
	f.logs.exercise = []database.ExerciseLog{{ID: 1, UserID: 5, ExerciseType: "Run"}}

	rec := f.do(f.h.ExerciseHistoryHandler, httptest.NewRequest(http.MethodGet, "/api/v1/exercise/history?user_id=5", nil), 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"exercise_type":"Run"`)
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	f.logs.sum = 1500

	rec := f.do(f.h.SummaryHandler, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/summary?user_id=1", nil), 0)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp SummaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, SummaryResponse{Date: "2024-05-14", TotalCalories: 1500, GoalCalories: 2000, Percentage: 75}, resp)

	start := time.Date(2024, 5, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, database.SumConfirmedCaloriesParams{UserID: 1, Start: start, End: start.Add(24 * time.Hour)}, f.logs.sumParams)
}

func TestSummaryPercentageIsCapped(t *testing.T) {
	f := newFixture(t)
	f.logs.sum = 3100

	rec := f.do(f.h.SummaryHandler, httptest.NewRequest(http.MethodGet, "/api/v1/dashboard/summary?user_id=1", nil), 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(100), decode(t, rec)["percentage"])
}

func TestEvaluatePlan(t *testing.T) {
	f := newFixture(t)
	day := time.Date(2024, 5, 13, 8, 0, 0, 0, time.UTC)
	f.logs.diet = []database.DietLog{{LoggedAt: day, TotalKcal: 400, FoodItems: []database.FoodItem{{Name: "Oatmeal"}}}}
	f.logs.exercise = []database.ExerciseLog{{LoggedAt: day, ExerciseType: "Run", FeedbackText: "Steady"}}
	f.ai.plan = aiservice.PlanEvaluation{Verdict: "Good", Pros: "p", Cons: "c", Advice: "a"}

	rec := f.do(f.h.EvaluatePlanHandler, jsonRequest(http.MethodPost, "/api/v1/dashboard/evaluate-plan", `{"user_id": 1, "user_plan": "Run every day"}`), 0)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Good", decode(t, rec)["verdict"])
	assert.Equal(t, "Run every day", f.ai.gotText)
	assert.Equal(t, "- 2024-05-13: Oatmeal (400 kcal)", f.ai.gotDiet)
	assert.Equal(t, "- 2024-05-13: Run - Steady", f.ai.gotEx)

	require.Len(t, f.logs.dietParams, 1)
	assert.False(t, f.logs.dietParams[0].ConfirmedOnly)
	assert.Equal(t, int32(5), f.logs.dietParams[0].Limit.Int32)
}

func TestEvaluatePlanValidationAndFailure(t *testing.T) {
	f := newFixture(t)

	rec := f.do(f.h.EvaluatePlanHandler, jsonRequest(http.MethodPost, "/api/v1/dashboard/evaluate-plan", `{"user_id": 1, "user_plan": "  "}`), 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.ai.err = &aiservice.GenerationError{Operation: "plan_evaluation", Status: 402, Detail: "spend limit reached"}
	rec = f.do(f.h.EvaluatePlanHandler, jsonRequest(http.MethodPost, "/api/v1/dashboard/evaluate-plan", `{"user_id": 1, "user_plan": "Walk"}`), 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "spend limit reached"}, decode(t, rec))
}

func TestDailyRecommendations(t *testing.T) {
	f := newFixture(t)
	f.recs.result = recommendation.Result{Meal: "Salad", Workout: "Swim", Cached: true}

	rec := f.do(f.h.DailyRecommendationsHandler, httptest.NewRequest(http.MethodGet, "/recommendations?user_id=8", nil), 0)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(8), f.recs.userID)
	assert.JSONEq(t, `{"meal":"Salad","workout":"Swim","cached":true}`, rec.Body.String())
}

func TestDailyRecommendationsFallbackPayload(t *testing.T) {
	f := newFixture(t)
	f.recs.result = recommendation.Result{
		Meal:    recommendation.FallbackMeal,
		Workout: recommendation.FallbackWorkout,
		Error:   true,
		Reason:  errors.New("timeout"),
	}

	rec := f.do(f.h.DailyRecommendationsHandler, httptest.NewRequest(http.MethodGet, "/recommendations?user_id=8", nil), 0)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, false, body["cached"])
	assert.Equal(t, true, body["error"])
	assert.NotContains(t, body, "Reason")
}

func TestDailyRecommendationsErrors(t *testing.T) {
	f := newFixture(t)

	rec := f.do(f.h.DailyRecommendationsHandler, httptest.NewRequest(http.MethodGet, "/recommendations", nil), 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(f.h.DailyRecommendationsHandler, httptest.NewRequest(http.MethodGet, "/recommendations?user_id=-2", nil), 0)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.recs.err = errors.New("db down")
	rec = f.do(f.h.DailyRecommendationsHandler, httptest.NewRequest(http.MethodGet, "/recommendations?user_id=1", nil), 0)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
