// Package numerator provides document auto-numbering.
// Numbers are unique per (type prefix, year) even under concurrent
// callers: the counter lives in a sequence row bumped with an atomic
// UPSERT + RETURNING.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
)

// Generator allocates the next document number for a type prefix.
// Pattern: PREFIX-YEAR-XXXXX (e.g., INV-2026-00001).
type Generator interface {
	NextNumber(ctx context.Context, prefix string, period time.Time) (string, error)
}

// Strategy defines the numbering generation strategy.
type Strategy int

const (
	// StrategyStrict uses UPSERT ... RETURNING for every number.
	// Guarantees sequential numbers without gaps.
	// Slower, suitable for invoices and accounting documents.
	StrategyStrict Strategy = iota

	// StrategyCached allocates ranges of numbers in memory.
	// Much faster, but may produce gaps if application restarts.
	// Suitable for internal documents (orders, transfers).
	StrategyCached
)

// Options configuration for number generation.
type Options struct {
	Strategy Strategy

	// RangeSize is the number of IDs to allocate at once in Cached
	// strategy. Default is 50.
	RangeSize int64

	// PadWidth is the minimum numeric width (default 5).
	PadWidth int
}

// DefaultOptions returns standard options (Strict).
func DefaultOptions() *Options {
	return &Options{
		Strategy: StrategyStrict,
		PadWidth: 5,
	}
}

// Querier interface for database operations.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type cachedRange struct {
	current int64
	max     int64
}

// Service implements Generator over a sequence table.
type Service struct {
	querier Querier
	opts    Options

	cacheMu sync.Mutex
	ranges  map[string]*cachedRange
}

// New creates a numerator service.
func New(querier Querier, opts *Options) *Service {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Service{
		querier: querier,
		opts:    *opts,
		ranges:  make(map[string]*cachedRange),
	}
}

// NextNumber implements Generator.
func (s *Service) NextNumber(ctx context.Context, prefix string, period time.Time) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}

	var (
		num int64
		err error
	)
	switch s.opts.Strategy {
	case StrategyCached:
		num, err = s.nextCached(ctx, prefix, period)
	default:
		num, err = s.nextStrict(ctx, prefix, period)
	}
	if err != nil {
		return "", err
	}

	return s.format(prefix, period, num), nil
}

// nextStrict fetches the next number directly from DB using UPSERT + RETURNING.
// First use of a (prefix, year) pair inserts the row.
func (s *Service) nextStrict(ctx context.Context, prefix string, period time.Time) (int64, error) {
	var num int64
	err := s.querier.QueryRow(ctx, `
        INSERT INTO sys_sequences (sequence_type, year, current_val)
        VALUES ($1, $2, 1)
        ON CONFLICT (sequence_type, year) DO UPDATE SET current_val = sys_sequences.current_val + 1
        RETURNING current_val
	`, prefix, period.Year()).Scan(&num)
	if err != nil {
		return 0, fmt.Errorf("strict next: %w", err)
	}
	return num, nil
}

// nextCached serves from an in-memory range, reserving a new range from
// the same sequence row when exhausted. current_val tracks the last
// value handed out, so a reservation of size N covers
// (old_val+1 .. old_val+N).
func (s *Service) nextCached(ctx context.Context, prefix string, period time.Time) (int64, error) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	key := fmt.Sprintf("%s_%d", prefix, period.Year())
	rng, exists := s.ranges[key]
	if !exists {
		rng = &cachedRange{}
		s.ranges[key] = rng
	}

	if rng.current >= rng.max {
		size := s.opts.RangeSize
		if size <= 0 {
			size = 50
		}

		var newMax int64
		err := s.querier.QueryRow(ctx, `
            INSERT INTO sys_sequences (sequence_type, year, current_val)
            VALUES ($1, $2, $3)
            ON CONFLICT (sequence_type, year) DO UPDATE SET current_val = sys_sequences.current_val + $3
            RETURNING current_val
		`, prefix, period.Year(), size).Scan(&newMax)
		if err != nil {
			return 0, fmt.Errorf("reserve range: %w", err)
		}

		rng.current = newMax - size
		rng.max = newMax
	}

	rng.current++
	return rng.current, nil
}

// SetNextNumber sets the counter value (for migrations).
func (s *Service) SetNextNumber(ctx context.Context, prefix string, period time.Time, value int64) error {
	var result int64
	err := s.querier.QueryRow(ctx, `
		INSERT INTO sys_sequences (sequence_type, year, current_val)
		VALUES ($1, $2, $3)
		ON CONFLICT (sequence_type, year) DO UPDATE SET current_val = $3
		RETURNING current_val
	`, prefix, period.Year(), value).Scan(&result)

	s.cacheMu.Lock()
	delete(s.ranges, fmt.Sprintf("%s_%d", prefix, period.Year()))
	s.cacheMu.Unlock()

	return err
}

func (s *Service) format(prefix string, period time.Time, num int64) string {
	pad := s.opts.PadWidth
	if pad <= 0 {
		pad = 5
	}
	return fmt.Sprintf("%s-%d-%0*d", prefix, period.Year(), pad, num)
}

var _ Generator = (*Service)(nil)
