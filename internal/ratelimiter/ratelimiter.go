// Package ratelimiter paces outgoing chat messages per chat.
package ratelimiter

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	privateChatRate = time.Second
	groupChatRate   = 3 * time.Second
)

// RateLimiter hands out one send slot per chat at Telegram's pace: one message
// per second in private chats and one per three seconds in groups.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	log      *slog.Logger
}

func New(log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[int64]*rate.Limiter),
		log:      log,
	}
}

// Wait blocks until a message may be sent to chatID or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context, chatID int64) error {
	limiter := rl.limiterFor(chatID)

	if limiter.Tokens() < 1 {
		rl.log.DebugContext(ctx, "Rate limiting message",
			"chatID", chatID,
			"rate", getRate(chatID))
	}

	return limiter.Wait(ctx)
}

func (rl *RateLimiter) limiterFor(chatID int64) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, ok := rl.limiters[chatID]
	if !ok {
		limiter = rate.NewLimiter(rate.Every(getRate(chatID)), 1)
		rl.limiters[chatID] = limiter
	}

	return limiter
}

// getRate returns the minimum gap between messages; negative IDs are groups.
func getRate(chatID int64) time.Duration {
	if chatID < 0 {
		return groupChatRate
	}
	return privateChatRate
}
