package waifuwarhandlers

import (
	"sync"
	"time"

	sharedtypes "github.com/Black-And-White-Club/waifu-bot/pkg/types/shared"
	"golang.org/x/time/rate"
)

const (
	// cleanupThreshold is the minimum map size before a cleanup pass runs.
	cleanupThreshold = 500
	// maxIdleAge is the duration after which an idle user entry is eligible for cleanup.
	maxIdleAge = 10 * time.Minute
)

type userEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter throttles commands per user and prunes stale entries inline.
type UserRateLimiter struct {
	users map[sharedtypes.DiscordID]*userEntry
	mu    sync.Mutex
	r     rate.Limit
	b     int
	now   func() time.Time
}

// NewUserRateLimiter allows perMinute commands per user with bursts of burst.
// A non-positive perMinute disables limiting.
func NewUserRateLimiter(perMinute int, burst int) *UserRateLimiter {
	r := rate.Inf
	if perMinute > 0 {
		r = rate.Limit(float64(perMinute) / 60)
	}
	if burst < 1 {
		burst = 1
	}
	return &UserRateLimiter{
		users: make(map[sharedtypes.DiscordID]*userEntry),
		r:     r,
		b:     burst,
		now:   time.Now,
	}
}

// Allow reports whether userID may run a command now.
func (l *UserRateLimiter) Allow(userID sharedtypes.DiscordID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if len(l.users) > cleanupThreshold {
		cutoff := now.Add(-maxIdleAge)
		for k, e := range l.users {
			if e.lastSeen.Before(cutoff) {
				delete(l.users, k)
			}
		}
	}

	e, exists := l.users[userID]
	if !exists {
		e = &userEntry{limiter: rate.NewLimiter(l.r, l.b)}
		l.users[userID] = e
	}
	e.lastSeen = now
	return e.limiter.AllowN(now, 1)
}
