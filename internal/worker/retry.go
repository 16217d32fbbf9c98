package worker

import "time"

// RetryPolicy tracks consecutive unexpected errors during the polling loop
// and decides when the provider session should be recovered with a fresh
// login.  Errors separated by more than the cooldown window are not
// consecutive: the counter restarts at the newer error.
//
// The zero value is not usable; construct with NewRetryPolicy.  RetryPolicy
// is owned by a single worker goroutine and is not safe for concurrent use.
type RetryPolicy struct {
	threshold int
	cooldown  time.Duration

	errCount  int
	lastError time.Time
	now       func() time.Time
}

// NewRetryPolicy returns a policy that requests recovery after threshold
// consecutive errors inside the cooldown window.
func NewRetryPolicy(threshold int, cooldown time.Duration) *RetryPolicy {
	return &RetryPolicy{
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// RecordError registers one unexpected error and reports whether the
// recovery action (re-login) should run now.
func (p *RetryPolicy) RecordError() bool {
	now := p.now()
	if p.errCount > 0 && now.Sub(p.lastError) > p.cooldown {
		p.errCount = 0
	}
	p.errCount++
	p.lastError = now
	return p.errCount >= p.threshold
}

// Reset clears the consecutive-error counter, typically after a successful
// recovery login.
func (p *RetryPolicy) Reset() {
	p.errCount = 0
}
