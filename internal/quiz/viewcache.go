package quiz

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
)

// ViewCache holds the student projection of a quiz, keyed by quiz id and
// QuestionsVersion so a view built before a question change is never served
// after it. Implementations treat their own failures as misses.
type ViewCache interface {
	Get(ctx context.Context, quizID string, version int) (QuizView, bool)
	Put(ctx context.Context, view QuizView)
	Invalidate(ctx context.Context, quizID string, version int)
}

// NopViewCache never caches.
type NopViewCache struct{}

func (NopViewCache) Get(context.Context, string, int) (QuizView, bool) { return QuizView{}, false }
func (NopViewCache) Put(context.Context, QuizView)                     {}
func (NopViewCache) Invalidate(context.Context, string, int)           {}

// RedisViewCache stores views as JSON in Redis/Dragonfly.
type RedisViewCache struct {
	cache *cache.Cache
	ttl   time.Duration
}

// NewRedisViewCache creates a view cache with the given entry TTL.
func NewRedisViewCache(c *cache.Cache, ttl time.Duration) *RedisViewCache {
	return &RedisViewCache{cache: c, ttl: ttl}
}

func viewKey(quizID string, version int) string {
	return "quiz:" + quizID + ":v" + strconv.Itoa(version) + ":student_view"
}

func (c *RedisViewCache) Get(ctx context.Context, quizID string, version int) (QuizView, bool) {
	var view QuizView
	if err := c.cache.GetJSON(ctx, viewKey(quizID, version), &view); err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			slog.Warn("view cache read failed", "quiz_id", quizID, "error", err)
		}
		return QuizView{}, false
	}
	return view, true
}

func (c *RedisViewCache) Put(ctx context.Context, view QuizView) {
	if err := c.cache.SetJSON(ctx, viewKey(view.QuizID, view.Version), view, c.ttl); err != nil {
		slog.Warn("view cache write failed", "quiz_id", view.QuizID, "error", err)
	}
}

func (c *RedisViewCache) Invalidate(ctx context.Context, quizID string, version int) {
	if err := c.cache.Delete(ctx, viewKey(quizID, version)); err != nil {
		slog.Warn("view cache invalidation failed", "quiz_id", quizID, "error", err)
	}
}
