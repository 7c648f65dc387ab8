package ratelimiter

import (
	"math"
	"time"

	"golang.org/x/time/rate"
)

// Budget meters bytes using the token bucket algorithm.
//
// It wraps golang.org/x/time/rate with one token per byte. The transport uses
// it as the advertised send window:
//   - Capacity is the largest burst that may be written at once
//   - Tokens refill at the configured bytes per second
//   - Writing consumes one token per byte
//
// The token bucket algorithm works as follows:
//  1. Tokens are added to the bucket at a constant rate (bytes per second)
//  2. Each write consumes as many tokens as it has bytes
//  3. If the bucket holds too few tokens, the write is held until Until(n) elapses
//  4. Capacity bounds how many tokens can accumulate while idle
//
// Thread safety:
// All methods are safe for concurrent use.
type Budget struct {
	limiter  *rate.Limiter
	capacity int
}

// New creates a Budget refilling at bytesPerSecond with room for capacity
// bytes.
//
// Special cases:
//   - bytesPerSecond = 0: no throttling, the window is always full
//   - capacity = 0: unbounded window (math.MaxInt32 bytes)
//
// Example:
//
//	// 1 MiB/s sustained, 64 KiB window
//	budget := New(1<<20, 64<<10)
func New(bytesPerSecond, capacity uint) *Budget {
	c := int(capacity)
	if capacity == 0 || capacity > math.MaxInt32 {
		c = math.MaxInt32
	}

	limit := rate.Limit(bytesPerSecond)
	if bytesPerSecond == 0 {
		limit = rate.Inf
	}

	return &Budget{
		limiter:  rate.NewLimiter(limit, c),
		capacity: c,
	}
}

// Capacity returns the maximum number of bytes the window can hold.
func (b *Budget) Capacity() int {
	return b.capacity
}

// Unlimited reports whether the budget never throttles.
func (b *Budget) Unlimited() bool {
	return b.limiter.Limit() == rate.Inf
}

// Available returns the whole number of bytes that can be consumed now.
//
// Note that the value may change immediately after this call due to
// concurrent access or token replenishment.
func (b *Budget) Available() int {
	if b.Unlimited() {
		return b.capacity
	}
	tokens := b.limiter.Tokens()
	if tokens <= 0 {
		return 0
	}
	if tokens >= float64(b.capacity) {
		return b.capacity
	}
	return int(tokens)
}

// Consume takes n bytes from the window.
//
// Returns:
//   - true if n tokens were available and consumed
//   - false if fewer than n tokens were available (no tokens consumed)
func (b *Budget) Consume(n int) bool {
	if n <= 0 {
		return true
	}
	if n > b.capacity {
		return false
	}
	return b.limiter.AllowN(time.Now(), n)
}

// Until returns how long it will take for n bytes to become available.
// It returns 0 when they are available now and a negative duration when n
// exceeds the capacity.
func (b *Budget) Until(n int) time.Duration {
	if n > b.capacity {
		return -1
	}
	if b.Unlimited() {
		return 0
	}
	missing := float64(n) - b.limiter.Tokens()
	if missing <= 0 {
		return 0
	}
	return time.Duration(missing / float64(b.limiter.Limit()) * float64(time.Second))
}
