package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"umari-core/internal/transport"

	"golang.org/x/time/rate"
)

// Rate limit tiers
const (
	// Webhook and refund endpoints (strict)
	limitStrict = rate.Limit(2)
	burstStrict = 5

	// Merchant dashboard traffic (default)
	limitGeneral = rate.Limit(10)
	burstGeneral = 20
)

// LimiterStore hands out a limiter per bucket key. The in-memory store below
// is process-local; a multi-instance deployment swaps in a shared one
// without touching the handlers.
type LimiterStore interface {
	Allow(key string, limit rate.Limit, burst int) bool
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type memoryStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
}

func NewMemoryLimiterStore() LimiterStore {
	s := &memoryStore{visitors: make(map[string]*visitor)}
	go s.cleanup()
	return s
}

func (s *memoryStore) Allow(key string, limit rate.Limit, burst int) bool {
	s.mu.Lock()
	v, exists := s.visitors[key]
	if !exists {
		v = &visitor{limiter: rate.NewLimiter(limit, burst)}
		s.visitors[key] = v
	}
	v.lastSeen = time.Now()
	s.mu.Unlock()

	return v.limiter.Allow()
}

// cleanup removes stale entries so the map cannot grow without bound.
func (s *memoryStore) cleanup() {
	for {
		time.Sleep(time.Minute)

		s.mu.Lock()
		for key, v := range s.visitors {
			if time.Since(v.lastSeen) > 3*time.Minute {
				delete(s.visitors, key)
			}
		}
		s.mu.Unlock()
	}
}

// RateLimit throttles by merchant identity when authenticated, by client IP
// otherwise. Webhook routes get the strict tier.
func RateLimit(store LimiterStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit, burst, tier := resolveRateTier(r)

			var identity string
			if accountID, ok := transport.MerchantAccountFrom(r.Context()); ok {
				identity = "merchant:" + accountID
			} else {
				ip, _, err := net.SplitHostPort(r.RemoteAddr)
				if err != nil {
					ip = r.RemoteAddr
				}
				identity = "ip:" + ip
			}

			// Same identity, separate quotas per tier.
			if !store.Allow(identity+":"+tier, limit, burst) {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func resolveRateTier(r *http.Request) (rate.Limit, int, string) {
	if r.URL.Path == "/webhook/stripe" {
		return limitStrict, burstStrict, "strict"
	}
	return limitGeneral, burstGeneral, "general"
}
