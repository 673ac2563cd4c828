package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stitchfield/api/internal/repositories"
)

type stubCounterRepository struct {
	nextFn      func(context.Context, string, int64) (int64, error)
	configureFn func(context.Context, string, repositories.CounterConfig) error

	nextIDs    []string
	nextSteps  []int64
	configured []repositories.CounterConfig
}

func (s *stubCounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	s.nextIDs = append(s.nextIDs, counterID)
	s.nextSteps = append(s.nextSteps, step)
	if s.nextFn != nil {
		return s.nextFn(ctx, counterID, step)
	}
	return 0, nil
}

func (s *stubCounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	s.configured = append(s.configured, cfg)
	if s.configureFn != nil {
		return s.configureFn(ctx, counterID, cfg)
	}
	return nil
}

func newTestCounterService(t *testing.T, repo repositories.CounterRepository, at time.Time) CounterService {
	t.Helper()
	svc, err := NewCounterService(CounterServiceDeps{
		Repository: repo,
		Clock:      func() time.Time { return at },
	})
	if err != nil {
		t.Fatalf("new counter service: %v", err)
	}
	return svc
}

func TestCounterServiceNextFormatsAndConfigures(t *testing.T) {
	repo := &stubCounterRepository{
		nextFn: func(context.Context, string, int64) (int64, error) { return 42, nil },
	}
	svc := newTestCounterService(t, repo, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	value, err := svc.Next(context.Background(), "skus", "global", CounterGenerationOptions{
		Step:      5,
		Prefix:    "SKU-",
		PadLength: 4,
	})
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if value.Value != 42 {
		t.Fatalf("expected raw value 42, got %d", value.Value)
	}
	if value.Formatted != "SKU-0042" {
		t.Fatalf("expected formatted SKU-0042, got %s", value.Formatted)
	}

	if len(repo.configured) != 1 {
		t.Fatalf("expected configure called once, got %d", len(repo.configured))
	}
	if repo.configured[0].Step != 5 {
		t.Fatalf("expected configure step 5, got %d", repo.configured[0].Step)
	}
	if len(repo.nextSteps) != 1 || repo.nextSteps[0] != 5 {
		t.Fatalf("expected next called with step 5, got %v", repo.nextSteps)
	}
}

func TestCounterServiceConfiguresOnce(t *testing.T) {
	repo := &stubCounterRepository{
		nextFn: func(context.Context, string, int64) (int64, error) { return 1, nil },
	}
	svc := newTestCounterService(t, repo, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	opts := CounterGenerationOptions{Step: 2}
	for i := 0; i < 3; i++ {
		if _, err := svc.Next(context.Background(), "skus", "global", opts); err != nil {
			t.Fatalf("next %d: %v", i, err)
		}
	}

	if len(repo.configured) != 1 {
		t.Fatalf("expected a single configure write for repeated options, got %d", len(repo.configured))
	}
	if len(repo.nextIDs) != 3 {
		t.Fatalf("expected three next calls, got %d", len(repo.nextIDs))
	}
}

func TestCounterServiceMapsRepositoryErrors(t *testing.T) {
	repo := &stubCounterRepository{
		nextFn: func(context.Context, string, int64) (int64, error) {
			return 0, repositories.NewCounterError(repositories.CounterErrorExhausted, "limit", nil)
		},
	}
	svc := newTestCounterService(t, repo, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	_, err := svc.Next(context.Background(), "test", "limit", CounterGenerationOptions{})
	if !errors.Is(err, ErrCounterExhausted) {
		t.Fatalf("expected exhausted error, got %v", err)
	}
}

func TestCounterServiceRejectsBlankScope(t *testing.T) {
	svc := newTestCounterService(t, &stubCounterRepository{}, time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	_, err := svc.Next(context.Background(), "  ", "name", CounterGenerationOptions{})
	if !errors.Is(err, ErrCounterInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestCounterServiceNextOrderNumber(t *testing.T) {
	repo := &stubCounterRepository{
		nextFn: func(context.Context, string, int64) (int64, error) { return 7, nil },
	}
	svc := newTestCounterService(t, repo, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC))

	result, err := svc.NextOrderNumber(context.Background())
	if err != nil {
		t.Fatalf("next order number: %v", err)
	}
	if result != "ORD-20250102-0007" {
		t.Fatalf("expected formatted order number, got %s", result)
	}

	if len(repo.nextIDs) != 1 {
		t.Fatalf("expected one next call, got %d", len(repo.nextIDs))
	}
	if repo.nextIDs[0] != "orders:20250102" {
		t.Fatalf("expected counter id orders:20250102, got %s", repo.nextIDs[0])
	}
}
