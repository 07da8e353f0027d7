package gas

import (
	"sync"

	"github.com/aspect-vm/wasmmeter/types"
)

// Meter is the host side of the host-function injector: every call to the
// imported charging function is forwarded to Consume.
type Meter interface {
	// Consume charges amount, failing without charging when it exceeds the
	// remaining budget.
	Consume(amount types.Gas) error
	// Remaining returns the amount of gas left.
	Remaining() types.Gas
}

// LimitMeter is a Meter with a fixed budget. It is safe for concurrent use.
type LimitMeter struct {
	mu       sync.Mutex
	limit    types.Gas
	consumed types.Gas
}

var _ Meter = (*LimitMeter)(nil)

// NewLimitMeter creates a meter that allows charges up to limit.
func NewLimitMeter(limit types.Gas) *LimitMeter {
	return &LimitMeter{limit: limit}
}

func (m *LimitMeter) Consume(amount types.Gas) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount > m.limit-m.consumed {
		return types.OutOfGasError{Wanted: amount, Available: m.limit - m.consumed}
	}
	m.consumed += amount
	return nil
}

func (m *LimitMeter) Remaining() types.Gas {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limit - m.consumed
}

// Report returns the usage so far.
func (m *LimitMeter) Report() Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Report{Limit: m.limit, Remaining: m.limit - m.consumed, Used: m.consumed}
}

// Report contains information about gas usage
type Report struct {
	Limit     types.Gas
	Remaining types.Gas
	Used      types.Gas
}
