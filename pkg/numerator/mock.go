package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockGenerator is a test implementation of Generator.
// Use in unit tests to avoid database dependencies.
type MockGenerator struct {
	NextNumberFunc func(ctx context.Context, prefix string, period time.Time) (string, error)

	mu   sync.Mutex
	seqs map[string]int64
}

// NextNumber implements Generator. Without a custom func it hands out
// predictable sequential numbers per prefix.
func (m *MockGenerator) NextNumber(ctx context.Context, prefix string, period time.Time) (string, error) {
	if m.NextNumberFunc != nil {
		return m.NextNumberFunc(ctx, prefix, period)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seqs == nil {
		m.seqs = make(map[string]int64)
	}
	m.seqs[prefix]++
	return fmt.Sprintf("%s-%d-%05d", prefix, period.Year(), m.seqs[prefix]), nil
}

// Ensure compile-time interface compliance.
var _ Generator = (*MockGenerator)(nil)
