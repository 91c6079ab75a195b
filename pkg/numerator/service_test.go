package numerator

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

// Mock objects
type mockRow struct {
	val int64
	err error
}

func (m *mockRow) Scan(dest ...any) error {
	if m.err != nil {
		return m.err
	}
	if len(dest) > 0 {
		if ptr, ok := dest[0].(*int64); ok {
			*ptr = m.val
		}
	}
	return nil
}

type mockQuerier struct {
	mu           sync.Mutex
	currentValue int64 // Simulates DB sequence value
	calls        int
}

func (m *mockQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	// Strict passes (prefix, year): increment 1.
	// Cached passes (prefix, year, size): increment size.
	var increment int64 = 1
	if len(args) == 3 {
		if val, ok := args[2].(int64); ok {
			increment = val
		}
	}

	m.currentValue += increment
	return &mockRow{val: m.currentValue}
}

func TestNextNumber_Strict(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q, nil)
	ctx := context.Background()
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	num, err := svc.NextNumber(ctx, "INV", period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "INV-2026-00001" {
		t.Errorf("expected INV-2026-00001, got %s", num)
	}

	num, err = svc.NextNumber(ctx, "INV", period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "INV-2026-00002" {
		t.Errorf("expected INV-2026-00002, got %s", num)
	}
}

func TestNextNumber_Cached(t *testing.T) {
	q := &mockQuerier{}
	svc := New(q, &Options{Strategy: StrategyCached, RangeSize: 10, PadWidth: 5})
	ctx := context.Background()
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	// First call reserves a range of 10 with one round trip.
	num, err := svc.NextNumber(ctx, "SO", period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "SO-2026-00001" {
		t.Errorf("expected SO-2026-00001, got %s", num)
	}
	if q.calls != 1 {
		t.Errorf("expected 1 DB call, got %d", q.calls)
	}

	// Next nine come from memory.
	for i := 2; i <= 10; i++ {
		num, err = svc.NextNumber(ctx, "SO", period)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		expected := fmt.Sprintf("SO-2026-%05d", i)
		if num != expected {
			t.Errorf("expected %s, got %s", expected, num)
		}
	}
	if q.calls != 1 {
		t.Errorf("expected range served from memory, got %d DB calls", q.calls)
	}

	// Eleventh exhausts the range and reserves a new one.
	num, err = svc.NextNumber(ctx, "SO", period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if num != "SO-2026-00011" {
		t.Errorf("expected SO-2026-00011, got %s", num)
	}
	if q.calls != 2 {
		t.Errorf("expected 2 DB calls, got %d", q.calls)
	}
}

func TestNextNumber_SeparateSeriesPerPrefix(t *testing.T) {
	// Strict mode shares one mock counter, so interleaved prefixes get
	// distinct formatted series even as the counter advances.
	q := &mockQuerier{}
	svc := New(q, nil)
	ctx := context.Background()
	period := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	inv, err := svc.NextNumber(ctx, "INV", period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	so, err := svc.NextNumber(ctx, "SO", period)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inv[:4] != "INV-" {
		t.Errorf("wrong prefix: %s", inv)
	}
	if so[:3] != "SO-" {
		t.Errorf("wrong prefix: %s", so)
	}
}

func TestFormat_PadWidth(t *testing.T) {
	svc := New(&mockQuerier{}, &Options{Strategy: StrategyStrict, PadWidth: 7})
	period := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	got := svc.format("QT", period, 42)
	if got != "QT-2026-0000042" {
		t.Errorf("expected QT-2026-0000042, got %s", got)
	}
}

func TestNextNumber_DBError(t *testing.T) {
	q := &errQuerier{}
	svc := New(q, nil)

	_, err := svc.NextNumber(context.Background(), "INV", time.Now())
	if err == nil {
		t.Fatal("expected error")
	}
}

type errQuerier struct{}

func (errQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return &mockRow{err: fmt.Errorf("connection refused")}
}
