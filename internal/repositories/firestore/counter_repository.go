package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	pfirestore "github.com/stitchfield/api/internal/platform/firestore"
	"github.com/stitchfield/api/internal/repositories"
)

const countersCollection = "counters"

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	Step         int64     `firestore:"step"`
	MaxValue     *int64    `firestore:"maxValue,omitempty"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}

// resolveStep picks the effective increment: an explicit positive step
// wins, then the counter's configured step, then 1.
func (d counterDocument) resolveStep(step int64) int64 {
	if step > 0 {
		return step
	}
	if d.Step > 0 {
		return d.Step
	}
	return 1
}

// CounterRepository implements repositories.CounterRepository backed by Firestore transactions.
type CounterRepository struct {
	provider *pfirestore.Provider
	counters *pfirestore.BaseRepository[counterDocument]
	clock    func() time.Time
}

// CounterRepositoryOption customises counter repository behaviour.
type CounterRepositoryOption func(*CounterRepository)

// WithCounterClock injects a custom clock primarily for tests.
func WithCounterClock(clock func() time.Time) CounterRepositoryOption {
	return func(r *CounterRepository) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewCounterRepository constructs a Firestore-backed counter repository.
func NewCounterRepository(provider *pfirestore.Provider, opts ...CounterRepositoryOption) (*CounterRepository, error) {
	if provider == nil {
		return nil, errors.New("counter repository requires firestore provider")
	}
	repo := &CounterRepository{
		provider: provider,
		counters: pfirestore.NewBaseRepository[counterDocument](provider, countersCollection),
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

func (r *CounterRepository) validID(counterID string) (string, error) {
	if r == nil || r.provider == nil {
		return "", errors.New("counter repository not initialised")
	}
	id := strings.TrimSpace(counterID)
	if id == "" {
		return "", repositories.NewCounterError(repositories.CounterErrorInvalidInput, "counter id is required", nil)
	}
	return id, nil
}

// Next atomically increments the counter identified by counterID and returns the next value.
// A counter that does not exist yet is created with the first value already consumed.
func (r *CounterRepository) Next(ctx context.Context, counterID string, step int64) (int64, error) {
	id, err := r.validID(counterID)
	if err != nil {
		return 0, err
	}
	if step < 0 {
		return 0, repositories.NewCounterError(repositories.CounterErrorInvalidInput, fmt.Sprintf("step must be positive, got %d", step), nil)
	}

	now := r.clock().UTC()
	var nextValue int64

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.counters.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		doc, exists, err := readCounter(tx, ref, id)
		if err != nil {
			return err
		}

		increment := doc.resolveStep(step)
		next := doc.CurrentValue + increment
		if doc.MaxValue != nil && next > *doc.MaxValue {
			return repositories.NewCounterError(repositories.CounterErrorExhausted, fmt.Sprintf("counter %s exceeded max value %d", id, *doc.MaxValue), nil)
		}

		doc.CurrentValue = next
		doc.Step = increment
		doc.UpdatedAt = now

		if !exists {
			if err := tx.Create(ref, doc); err != nil {
				return err
			}
		} else if err := tx.Set(ref, doc, firestore.MergeAll); err != nil {
			return err
		}
		nextValue = next
		return nil
	})
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) {
			return 0, counterErr
		}
		return 0, pfirestore.WrapError("counters.next", err)
	}
	return nextValue, nil
}

func readCounter(tx *firestore.Transaction, ref *firestore.DocumentRef, id string) (counterDocument, bool, error) {
	var doc counterDocument
	snapshot, err := tx.Get(ref)
	if status.Code(err) == codes.NotFound {
		return doc, false, nil
	}
	if err != nil {
		return doc, false, err
	}
	if err := snapshot.DataTo(&doc); err != nil {
		return doc, false, fmt.Errorf("firestore counters decode %s: %w", id, err)
	}
	return doc, true, nil
}

// Configure updates optional settings for the counter such as step size, max value, or initial value.
func (r *CounterRepository) Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error {
	id, err := r.validID(counterID)
	if err != nil {
		return err
	}

	payload := map[string]any{"updatedAt": r.clock().UTC()}
	if cfg.Step > 0 {
		payload["step"] = cfg.Step
	}
	if cfg.MaxValue != nil {
		payload["maxValue"] = *cfg.MaxValue
	}
	if cfg.InitialValue != nil {
		payload["currentValue"] = *cfg.InitialValue
	}

	ref, err := r.counters.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Set(ctx, payload, firestore.MergeAll); err != nil {
		return pfirestore.WrapError("counters.configure", err)
	}
	return nil
}

var _ repositories.CounterRepository = (*CounterRepository)(nil)
