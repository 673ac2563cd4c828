//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"testing"
	"time"

	pconfig "github.com/stitchfield/api/internal/platform/config"
	pfirestore "github.com/stitchfield/api/internal/platform/firestore"
	"github.com/stitchfield/api/internal/repositories"
)

func TestCounterRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}
	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })
	waitForEndpoint(t, endpoint, 30*time.Second)

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "counter-test",
		EmulatorHost: endpoint,
	})
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewCounterRepository(provider)
	if err != nil {
		t.Fatalf("new counter repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	t.Run("concurrent increments stay dense", func(t *testing.T) {
		const workers = 16
		values := make(chan int64, workers)
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				value, err := repo.Next(ctx, "orders:20250102", 1)
				if err != nil {
					t.Errorf("next: %v", err)
					return
				}
				values <- value
			}()
		}
		wg.Wait()
		close(values)

		var got []int64
		for v := range values {
			got = append(got, v)
		}
		if len(got) != workers {
			t.Fatalf("expected %d successful increments, got %d", workers, len(got))
		}
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		for i, val := range got {
			if want := int64(i + 1); val != want {
				t.Fatalf("expected sequence %d at position %d, got %d", want, i, val)
			}
		}
	})

	t.Run("bounded counter exhausts", func(t *testing.T) {
		max := int64(3)
		start := int64(0)
		if err := repo.Configure(ctx, "skus:limited", repositories.CounterConfig{
			Step:         1,
			MaxValue:     &max,
			InitialValue: &start,
		}); err != nil {
			t.Fatalf("configure counter: %v", err)
		}

		for i := int64(1); i <= max; i++ {
			value, err := repo.Next(ctx, "skus:limited", 0)
			if err != nil {
				t.Fatalf("next bounded %d: %v", i, err)
			}
			if value != i {
				t.Fatalf("expected bounded counter %d got %d", i, value)
			}
		}

		_, err := repo.Next(ctx, "skus:limited", 0)
		var counterErr *repositories.CounterError
		if !errors.As(err, &counterErr) {
			t.Fatalf("expected counter error past the max, got %T %v", err, err)
		}
		if counterErr.Code != repositories.CounterErrorExhausted {
			t.Fatalf("expected exhausted code, got %s", counterErr.Code)
		}
	})
}
