/*
Package recommendation serves the per-user "meal and workout of the day".

Recommendations are cached per user and stay valid until the user logs a diet or
exercise entry newer than the cached generation time. A stale or missing entry is
regenerated from the user's recent history; if generation fails a fixed fallback is
served and nothing is written.
*/
package recommendation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"VibeHealth_V0.1/internal/aiservice"
	"VibeHealth_V0.1/internal/observability"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	FallbackMeal    = "Balanced home-style meal (rice, soup and side dishes)"
	FallbackWorkout = "Light 30-minute walk"

	// Placeholder replaces a field the model left out or returned empty.
	Placeholder = "Unknown"

	DefaultHistoryLimit = 10

	// DefaultFlightTimeout bounds one check-generate-write run.
	DefaultFlightTimeout = 90 * time.Second
)

// Kind selects one of the two activity logs.
type Kind string

const (
	KindDiet     Kind = "diet"
	KindExercise Kind = "exercise"
)

// CacheEntry is the stored recommendation of one user.
type CacheEntry struct {
	UserID      int64
	Meal        string
	Workout     string
	GeneratedAt time.Time
}

// ValidAgainst reports whether the entry was generated no earlier than both
// watermarks. A zero watermark means the user has no entries of that kind.
func (e CacheEntry) ValidAgainst(dietMark, exerciseMark time.Time) bool {
	return notBefore(e.GeneratedAt, dietMark) && notBefore(e.GeneratedAt, exerciseMark)
}

func notBefore(generatedAt, mark time.Time) bool {
	return mark.IsZero() || !generatedAt.Before(mark)
}

// Entry is one logged diet or exercise record as used for digests.
// For diet entries Title is the food list and Kcal the total; for exercise
// entries Title is the exercise type and Detail the feedback.
type Entry struct {
	LoggedAt time.Time
	Title    string
	Detail   string
	Kcal     int32
}

// Store is the persistence the manager depends on.
type Store interface {
	// FindCacheByUser returns nil and no error when the user has no entry.
	FindCacheByUser(ctx context.Context, userID int64) (*CacheEntry, error)
	UpsertCache(ctx context.Context, entry CacheEntry) error
	// LatestTimestamp returns the zero time when there are no matching entries.
	LatestTimestamp(ctx context.Context, kind Kind, userID int64, confirmedOnly bool) (time.Time, error)
	// ListRecent returns up to limit entries, newest first. limit <= 0 means all.
	ListRecent(ctx context.Context, kind Kind, userID int64, limit int, confirmedOnly bool) ([]Entry, error)
}

// Generator produces a fresh recommendation from history digests.
// *aiservice.Client implements it.
type Generator interface {
	GenerateDailyRecommendation(ctx context.Context, dietDigest, exerciseDigest string) (aiservice.DailyRecommendation, error)
}

// Policy holds the tunable parts of the staleness and regeneration rules.
type Policy struct {
	// WatermarkConfirmedOnly ignores unconfirmed diet entries when computing the
	// diet watermark. Off by default: any diet entry invalidates the cache.
	WatermarkConfirmedOnly bool
	// HistoryLimit is the number of entries of each kind fed to the generator.
	HistoryLimit int
	// FlightTimeout bounds a shared regeneration, store reads included. It should
	// exceed the generator's own timeout.
	FlightTimeout time.Duration
}

// Result is what a caller gets back for one request.
type Result struct {
	Meal    string `json:"meal"`
	Workout string `json:"workout"`
	Cached  bool   `json:"cached"`
	Error   bool   `json:"error,omitempty"`

	// Reason is the generation failure behind a fallback result.
	Reason error `json:"-"`
}

// Outcome names the result for metrics.
func (r Result) Outcome() string {
	switch {
	case r.Cached:
		return observability.OutcomeHit
	case r.Error:
		return observability.OutcomeFallback
	default:
		return observability.OutcomeRegenerated
	}
}

// Manager implements get-or-refresh over a Store and a Generator.
type Manager struct {
	store     Store
	generator Generator
	policy    Policy
	now       func() time.Time

	flights singleflight.Group
}

// NewManager builds a Manager. Non-positive policy limits fall back to their defaults.
func NewManager(store Store, generator Generator, policy Policy) *Manager {
	if policy.HistoryLimit <= 0 {
		policy.HistoryLimit = DefaultHistoryLimit
	}
	if policy.FlightTimeout <= 0 {
		policy.FlightTimeout = DefaultFlightTimeout
	}
	return &Manager{
		store:     store,
		generator: generator,
		policy:    policy,
		now:       time.Now,
	}
}

// GetOrRefresh returns the user's recommendation, regenerating it when stale.
//
// The returned error is non-nil only when the store cannot be read or the
// caller's context ends first; generation failures yield the fallback result.
// Concurrent calls for the same user share one check-generate-write run, which
// is not cancelled when an individual caller goes away. The run is bounded by
// Policy.FlightTimeout instead.
func (m *Manager) GetOrRefresh(ctx context.Context, userID int64) (Result, error) {
	detached := context.WithoutCancel(ctx)
	ch := m.flights.DoChan(strconv.FormatInt(userID, 10), func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(detached, m.policy.FlightTimeout)
		defer cancel()
		return m.getOrRefresh(flightCtx, userID)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		result := res.Val.(Result)
		observability.RecordRecommendation(result.Outcome())
		return result, nil
	}
}

func (m *Manager) getOrRefresh(ctx context.Context, userID int64) (Result, error) {
	logger := zerolog.Ctx(ctx).With().Int64("user_id", userID).Logger()

	dietMark, exerciseMark, err := m.watermarks(ctx, userID)
	if err != nil {
		return Result{}, err
	}

	entry, err := m.store.FindCacheByUser(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load recommendation cache: %w", err)
	}

	if entry != nil && entry.ValidAgainst(dietMark, exerciseMark) {
		logger.Debug().Time("generated_at", entry.GeneratedAt).Msg("Returning cached recommendations")
		return Result{Meal: entry.Meal, Workout: entry.Workout, Cached: true}, nil
	}

	if entry != nil {
		logger.Info().
			Time("generated_at", entry.GeneratedAt).
			Time("latest_diet", dietMark).
			Time("latest_exercise", exerciseMark).
			Msg("Recommendation cache is stale, regenerating")
	}
	return m.regenerate(ctx, logger, userID)
}

func (m *Manager) watermarks(ctx context.Context, userID int64) (diet, exercise time.Time, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var e error
		diet, e = m.store.LatestTimestamp(gctx, KindDiet, userID, m.policy.WatermarkConfirmedOnly)
		return e
	})
	g.Go(func() error {
		var e error
		exercise, e = m.store.LatestTimestamp(gctx, KindExercise, userID, false)
		return e
	})
	if err := g.Wait(); err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("failed to load activity watermarks: %w", err)
	}
	return diet, exercise, nil
}

func (m *Manager) regenerate(ctx context.Context, logger zerolog.Logger, userID int64) (Result, error) {
	// Taken before history is read so anything logged during generation is newer.
	generatedAt := m.now().UTC().Truncate(time.Microsecond)

	var dietEntries, exerciseEntries []Entry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var e error
		dietEntries, e = m.store.ListRecent(gctx, KindDiet, userID, m.policy.HistoryLimit, true)
		return e
	})
	g.Go(func() error {
		var e error
		exerciseEntries, e = m.store.ListRecent(gctx, KindExercise, userID, m.policy.HistoryLimit, true)
		return e
	})
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("failed to load recent history: %w", err)
	}

	rec, err := m.generator.GenerateDailyRecommendation(ctx,
		orDefault(DietDigest(dietEntries), aiservice.NoDietHistory),
		orDefault(ExerciseDigest(exerciseEntries), aiservice.NoExerciseHistory),
	)
	if err != nil {
		ev := logger.Warn()
		if !aiservice.IsGenerationFailure(err) {
			ev = logger.Error()
		}
		ev.Err(err).Msg("Failed to generate recommendations, serving fallback")
		return Result{Meal: FallbackMeal, Workout: FallbackWorkout, Error: true, Reason: err}, nil
	}

	entry := CacheEntry{
		UserID:      userID,
		Meal:        orDefault(rec.Meal, Placeholder),
		Workout:     orDefault(rec.Workout, Placeholder),
		GeneratedAt: generatedAt,
	}
	if err := m.store.UpsertCache(ctx, entry); err != nil {
		logger.Error().Err(err).Msg("Failed to store regenerated recommendations")
	} else {
		observability.RecordRecommendationGenerated(generatedAt)
		logger.Info().Time("generated_at", generatedAt).Msg("Recommendation cache updated")
	}

	return Result{Meal: entry.Meal, Workout: entry.Workout}, nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
