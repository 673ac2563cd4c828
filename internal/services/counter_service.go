package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stitchfield/api/internal/repositories"
)

var (
	// ErrCounterInvalidInput indicates the caller supplied invalid counter parameters.
	ErrCounterInvalidInput = errors.New("counter: invalid input")
	// ErrCounterExhausted indicates the requested counter cannot increment further due to max bounds.
	ErrCounterExhausted = errors.New("counter: exhausted")
)

// CounterServiceDeps bundles collaborators required to construct a counter service instance.
type CounterServiceDeps struct {
	Repository repositories.CounterRepository
	Clock      func() time.Time
}

type counterService struct {
	repo  repositories.CounterRepository
	clock func() time.Time

	// configured remembers which (counter, options) pairs were already
	// pushed to the repository, so hot counters skip the Configure write.
	configMu   sync.Mutex
	configured map[string]string
}

// NewCounterService constructs a service that manages counter sequences on top of the repository.
func NewCounterService(deps CounterServiceDeps) (CounterService, error) {
	if deps.Repository == nil {
		return nil, errors.New("counter service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &counterService{
		repo: deps.Repository,
		clock: func() time.Time {
			return clock().UTC()
		},
		configured: make(map[string]string),
	}, nil
}

func (s *counterService) Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error) {
	scope = strings.TrimSpace(scope)
	name = strings.TrimSpace(name)
	if scope == "" {
		return CounterValue{}, fmt.Errorf("%w: scope is required", ErrCounterInvalidInput)
	}
	if name == "" {
		return CounterValue{}, fmt.Errorf("%w: name is required", ErrCounterInvalidInput)
	}

	counterID := scope + ":" + name
	if err := s.ensureConfigured(ctx, counterID, opts); err != nil {
		return CounterValue{}, err
	}

	value, err := s.repo.Next(ctx, counterID, opts.Step)
	if err != nil {
		return CounterValue{}, mapCounterError(err)
	}

	return CounterValue{Value: value, Formatted: formatCounterValue(s.clock(), value, opts)}, nil
}

// NextOrderNumber issues an ORD-YYYYMMDD-NNNN number from a per-day sequence.
// Each day starts its own counter, so the suffix resets at midnight UTC.
func (s *counterService) NextOrderNumber(ctx context.Context) (string, error) {
	day := s.clock().Format("20060102")
	result, err := s.Next(ctx, "orders", day, CounterGenerationOptions{
		Step:      1,
		Formatter: func(_ time.Time, seq int64) string { return fmt.Sprintf("ORD-%s-%04d", day, seq) },
	})
	if err != nil {
		return "", err
	}
	return result.Formatted, nil
}

func (s *counterService) ensureConfigured(ctx context.Context, counterID string, opts CounterGenerationOptions) error {
	signature := configSignature(opts)

	s.configMu.Lock()
	defer s.configMu.Unlock()

	if existing, ok := s.configured[counterID]; ok && existing == signature {
		return nil
	}

	if signature != "" {
		cfg := repositories.CounterConfig{}
		if opts.Step > 0 {
			cfg.Step = opts.Step
		}
		if opts.MaxValue != nil {
			maxValue := *opts.MaxValue
			cfg.MaxValue = &maxValue
		}
		if opts.InitialValue != nil {
			initial := *opts.InitialValue
			cfg.InitialValue = &initial
		}
		if err := s.repo.Configure(ctx, counterID, cfg); err != nil {
			return err
		}
	}

	s.configured[counterID] = signature
	return nil
}

// configSignature renders the non-default options into a comparable key.
// An empty signature means nothing needs to be written.
func configSignature(opts CounterGenerationOptions) string {
	var parts []string
	if opts.Step > 0 {
		parts = append(parts, "step="+strconv.FormatInt(opts.Step, 10))
	}
	if opts.MaxValue != nil {
		parts = append(parts, "max="+strconv.FormatInt(*opts.MaxValue, 10))
	}
	if opts.InitialValue != nil {
		parts = append(parts, "init="+strconv.FormatInt(*opts.InitialValue, 10))
	}
	return strings.Join(parts, ",")
}

func mapCounterError(err error) error {
	var counterErr *repositories.CounterError
	if !errors.As(err, &counterErr) {
		return err
	}
	switch counterErr.Code {
	case repositories.CounterErrorInvalidInput:
		return fmt.Errorf("%w: %s", ErrCounterInvalidInput, counterErr.Message)
	case repositories.CounterErrorExhausted:
		return fmt.Errorf("%w: %s", ErrCounterExhausted, counterErr.Message)
	}
	return err
}

func formatCounterValue(now time.Time, value int64, opts CounterGenerationOptions) string {
	if opts.Formatter != nil {
		return opts.Formatter(now, value)
	}

	formatted := strconv.FormatInt(value, 10)
	if opts.PadLength > 0 {
		formatted = fmt.Sprintf("%0*d", opts.PadLength, value)
	}
	return opts.Prefix + formatted + opts.Suffix
}
