// Package limits implements the admission counters that bound per-connection
// concurrency: a CAS-guarded in-flight dispatch count and topic-string
// validation.
package limits

import (
	"regexp"
	"sync/atomic"

	"github.com/wsrouter/wsrouter/errs"
)

// Inflight is a simple admission counter bounding concurrent dispatches for
// one connection. maxPending == 0 means unbounded.
type Inflight struct {
	count      atomic.Int32
	maxPending int32
}

// NewInflight constructs a counter with the given ceiling (0 = unbounded).
func NewInflight(maxPending int) *Inflight {
	return &Inflight{maxPending: int32(maxPending)}
}

// Admit attempts to increment the counter. It returns false (and leaves the
// counter unchanged) if admitting would exceed maxPending.
func (c *Inflight) Admit() bool {
	if c.maxPending <= 0 {
		c.count.Add(1)
		return true
	}
	for {
		cur := c.count.Load()
		if cur >= c.maxPending {
			return false
		}
		if c.count.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// Release decrements the counter. Called exactly once per successful Admit.
func (c *Inflight) Release() {
	c.count.Add(-1)
}

// Count returns the current in-flight count.
func (c *Inflight) Count() int {
	return int(c.count.Load())
}

// TopicValidator enforces the configured topic length and pattern
// constraints. Length is checked before pattern so a topic failing both
// constraints consistently reports "length".
type TopicValidator struct {
	Pattern   *regexp.Regexp
	MaxLength int
}

// Validate returns nil if topic satisfies the configured constraints, or a
// *errs.RouterError{Code: errs.InvalidTopic} with Reason set to "length" or
// "pattern" otherwise.
func (v TopicValidator) Validate(topic string) error {
	if v.MaxLength > 0 && len(topic) > v.MaxLength {
		return errs.New(errs.InvalidTopic, "topic exceeds maximum length").WithReason("length")
	}
	if v.Pattern != nil && !v.Pattern.MatchString(topic) {
		return errs.New(errs.InvalidTopic, "topic does not match required pattern").WithReason("pattern")
	}
	return nil
}
