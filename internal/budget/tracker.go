// Package budget tracks token usage and premium requests of a session.
package budget

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	copilot "github.com/armatrix/copilot-sdk-go"
)

// Usage holds cumulative counters for one session.
type Usage struct {
	Turns        int
	InputTokens  int64
	OutputTokens int64
}

// Tracker accumulates usage from session events. Register Observe as a
// session event handler. It is safe for concurrent use.
type Tracker struct {
	maxRequests decimal.Decimal // zero = unlimited
	multipliers Multipliers

	mu       sync.Mutex
	model    string
	usage    Usage
	requests decimal.Decimal
}

// NewTracker creates a tracker for a session running model. maxRequests of
// zero means unlimited.
func NewTracker(model string, maxRequests decimal.Decimal, multipliers Multipliers) *Tracker {
	return &Tracker{
		maxRequests: maxRequests,
		multipliers: multipliers,
		model:       model,
		requests:    decimal.Zero,
	}
}

// Observe records one session event.
func (t *Tracker) Observe(ev copilot.SessionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch ev.Type {
	case copilot.UserMessage:
		t.usage.Turns++
		t.requests = t.requests.Add(t.multipliers.For(t.model))
	case copilot.AssistantUsage:
		if ev.Data.InputTokens != nil {
			t.usage.InputTokens += int64(*ev.Data.InputTokens)
		}
		if ev.Data.OutputTokens != nil {
			t.usage.OutputTokens += int64(*ev.Data.OutputTokens)
		}
	case copilot.SessionModelChange:
		if ev.Data.Model != "" {
			t.model = ev.Data.Model
		}
	}
}

// Usage returns the cumulative counters.
func (t *Tracker) Usage() Usage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.usage
}

// PremiumRequests returns the premium requests consumed so far.
func (t *Tracker) PremiumRequests() decimal.Decimal {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requests
}

// Remaining returns the premium requests left, or false when unlimited.
func (t *Tracker) Remaining() (decimal.Decimal, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.maxRequests.IsZero() {
		return decimal.Zero, false
	}
	return t.maxRequests.Sub(t.requests), true
}

// Exhausted reports whether the request budget is used up. Always false
// when unlimited.
func (t *Tracker) Exhausted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.maxRequests.IsZero() {
		return false
	}
	return t.requests.GreaterThanOrEqual(t.maxRequests)
}

// Summary renders the usage on one line.
func (t *Tracker) Summary() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("%d turns, %d input / %d output tokens, %s premium requests",
		t.usage.Turns, t.usage.InputTokens, t.usage.OutputTokens, t.requests.String())
}
